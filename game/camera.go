package game

import (
	"context"
	"time"

	"spot-game-server/bitstate"
	"spot-game-server/geo"
)

// CameraPhase is the one-hot phase held in a camera's low state bits.
type CameraPhase bitstate.Word

const (
	CameraIdle    = CameraPhase(bitstate.ObjectCameraIdle)
	CameraWarming = CameraPhase(bitstate.ObjectCameraWarming)
	CameraActive  = CameraPhase(bitstate.ObjectCameraActive)
)

func (p CameraPhase) String() string {
	switch p {
	case CameraIdle:
		return "idle"
	case CameraWarming:
		return "warming"
	case CameraActive:
		return "active"
	}
	return "unknown"
}

func cameraPhaseOf(w bitstate.Word) CameraPhase {
	return CameraPhase(w & bitstate.ObjectCameraMask)
}

// NextCameraPhase advances a camera on timers alone. Idle cameras only leave
// Idle through promotion, so an idle camera never reaches Active here.
func NextCameraPhase(cur CameraPhase, inPhase, warmup, active time.Duration) CameraPhase {
	switch cur {
	case CameraWarming:
		if inPhase >= warmup {
			return CameraActive
		}
	case CameraActive:
		if inPhase >= active {
			return CameraIdle
		}
	}
	return cur
}

func withCameraPhase(w bitstate.Word, p CameraPhase) bitstate.Word {
	return bitstate.Set(bitstate.Clear(w, bitstate.ObjectCameraMask), bitstate.Word(p))
}

// createCameras scatters idle cameras over the bounds' bounding box.
func (e *Engine) createCameras(ctx context.Context, info MatchInfo) error {
	settings := info.Config.Cameras
	if settings == nil || settings.Count <= 0 {
		return nil
	}
	minLong, minLat, maxLong, maxLat, err := geo.Envelope(info.Bounds)
	if err != nil {
		return validationf("bounds: %v", err)
	}
	for i := 0; i < settings.Count; i++ {
		p := geo.Point{
			Long: between(e.Rand, minLong, maxLong),
			Lat:  between(e.Rand, minLat, maxLat),
		}
		_, err := e.createObject(ctx, info.ID, ObjectState{
			Kind:     KindCamera,
			Position: geo.PointGeometry(p),
			State:    bitstate.ObjectCameraIdle,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// tickCameras advances every camera once, promotes idle cameras up to the
// cap and penalises players inside an active camera's radius.
func (e *Engine) tickCameras(ctx context.Context, info MatchInfo) error {
	settings := info.Config.Cameras
	if settings == nil {
		return nil
	}
	cams, err := e.objectsOf(ctx, info.ID, KindCamera)
	if err != nil {
		return err
	}
	now := e.now()
	warmup := seconds(e.Tuning.CameraWarmup)

	busy := 0
	var idle []int
	for i := range cams {
		c := &cams[i]
		cur := cameraPhaseOf(c.State)
		var inPhase time.Duration
		if c.Status.PhaseStarted != nil {
			inPhase = now.Sub(*c.Status.PhaseStarted)
		}
		next := NextCameraPhase(cur, inPhase, warmup, seconds(c.Status.Duration))
		if next != cur {
			updated, err := e.updateObject(ctx, info.ID, c.ID, func(o *ObjectState) error {
				o.State = withCameraPhase(o.State, next)
				o.Status.PhaseStarted = ptr(now)
				return nil
			})
			if err != nil {
				return err
			}
			c.ObjectState = updated
		}
		if next == CameraIdle {
			idle = append(idle, i)
		} else {
			busy++
		}
	}

	e.Rand.Shuffle(len(idle), func(i, j int) { idle[i], idle[j] = idle[j], idle[i] })
	for _, i := range idle {
		if busy >= settings.MaxActive {
			break
		}
		c := &cams[i]
		updated, err := e.updateObject(ctx, info.ID, c.ID, func(o *ObjectState) error {
			o.State = withCameraPhase(o.State, CameraWarming)
			o.Status.PhaseStarted = ptr(now)
			o.Status.Duration = between(e.Rand, settings.MinDuration, settings.MaxDuration)
			o.Status.Radius = between(e.Rand, settings.MinRadius, settings.MaxRadius)
			return nil
		})
		if err != nil {
			return err
		}
		c.ObjectState = updated
		busy++
	}

	players, err := e.joined(ctx, info.ID)
	if err != nil {
		return err
	}
	for _, c := range cams {
		if cameraPhaseOf(c.State) != CameraActive {
			continue
		}
		at, ok := geo.ParsePoint(c.Position)
		if !ok {
			continue
		}
		for _, p := range players {
			pos, ok, err := e.position(ctx, p.ID)
			if err != nil {
				return err
			}
			if ok && geo.Distance(pos, at) <= c.Status.Radius {
				if err := e.addScore(ctx, info.ID, p.ID, -e.Tuning.CameraPenalty); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
