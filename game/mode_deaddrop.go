package game

import (
	"context"
	"log"
	"math"

	"spot-game-server/bitstate"
	"spot-game-server/geo"
)

// deadDrop: everyone hides a drop, then each player retrieves someone else's
// and carries it to a guardian's safe zone.
type deadDrop struct{ e *Engine }

func (deadDrop) ID() ModeID { return ModeDeadDrop }

func (d deadDrop) setup(ctx context.Context, info MatchInfo) error {
	return d.e.createCameras(ctx, info)
}

// start records each player's starting location and hands them a drop.
func (d deadDrop) start(ctx context.Context, info MatchInfo, players []Player) error {
	for _, p := range players {
		if pos, ok, err := d.e.position(ctx, p.ID); err != nil {
			return err
		} else if ok {
			if _, err := d.e.createObject(ctx, info.ID, ObjectState{
				Kind:     KindStart,
				Owner:    p.ID,
				Position: geo.PointGeometry(pos),
			}); err != nil {
				return err
			}
		}
		if _, err := d.e.createObject(ctx, info.ID, ObjectState{
			Kind:   KindDeadDrop,
			Owner:  p.ID,
			Holder: p.ID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// advance moves the drop phase to the collect phase once everyone dropped or
// the drop phase ran out, then ticks the cameras.
func (d deadDrop) advance(ctx context.Context, info MatchInfo, state MatchState) (MatchState, error) {
	if !state.State.Has(bitstate.MatchSubPhase) {
		players, err := d.e.joined(ctx, info.ID)
		if err != nil {
			return state, err
		}
		allDropped := len(players) > 0
		for _, p := range players {
			if !bitstate.Matches(p.State, bitstate.PlayerDropped, bitstate.PlayerDropped) {
				allDropped = false
				break
			}
		}
		timedOut := d.e.EnforceTimers && info.StartedAt != nil && info.Config.DropPhaseMinutes > 0 &&
			d.e.elapsed(info) >= minutes(info.Config.DropPhaseMinutes)
		if allDropped || timedOut {
			// Only the build that flips the sub-phase bit forces drops and
			// draws the ring.
			next, entered, err := d.e.transition(ctx, info.ID, "enter collect phase", func(s *MatchState) bool {
				if !bitstate.InProgress(s.State) || s.State.Has(bitstate.MatchSubPhase) {
					return false
				}
				s.State = bitstate.Set(s.State, bitstate.MatchSubPhase)
				s.Status.CollectStartedAt = ptr(d.e.now())
				return true
			})
			if err != nil {
				return state, err
			}
			state = next
			if entered {
				for _, p := range players {
					if bitstate.Matches(p.State, bitstate.PlayerDropped, bitstate.PlayerDropped) {
						continue
					}
					if err := d.e.forceDrop(ctx, info, p.ID); err != nil {
						return state, err
					}
				}
				if err := d.e.assignDrops(ctx, info.ID); err != nil {
					return state, err
				}
				log.Printf("[Phase] match %s entered the collect phase", info.ID)
			}
		}
	}
	if !bitstate.InProgress(state.State) {
		return state, nil
	}
	if err := d.e.tickCameras(ctx, info); err != nil {
		return state, err
	}
	return state, nil
}

// evaluate scores a delivery when a carrying player reaches the safe zone of
// the drop's guardian.
func (d deadDrop) evaluate(ctx context.Context, info MatchInfo, state MatchState, p Player, at *geo.Point) error {
	if at == nil || !state.State.Has(bitstate.MatchSubPhase) {
		return nil
	}
	if !bitstate.Matches(p.State, bitstate.PlayerHasDelivered, bitstate.PlayerEnRoute) {
		return nil
	}
	drop, ok, err := d.e.carried(ctx, info.ID, p.ID)
	if err != nil || !ok {
		return err
	}
	safe, ok, err := d.e.startingLocation(ctx, info.ID, drop.Status.Guardian)
	if err != nil || !ok {
		return err
	}
	if geo.Distance(*at, safe) >= d.e.Tuning.SafeDistance {
		return nil
	}

	now := d.e.now()
	st, err := d.e.updateMatchStatus(ctx, info.ID, func(s *MatchStatus) {
		if s.FirstSafeTime == nil {
			s.FirstSafeTime = ptr(now)
		}
	})
	if err != nil {
		return err
	}
	since := now.Sub(*st.Status.FirstSafeTime).Seconds()
	_, err = d.e.updatePlayer(ctx, info.ID, p.ID, func(s *PlayerState, _ bool) error {
		if s.State.Has(bitstate.PlayerDelivered) {
			return nil
		}
		s.Score = SafeZoneScore(s.Score, d.e.Tuning.SafeBasePoints, d.e.Tuning.SafeDecayPerSecond, since)
		s.State = bitstate.Toggle(s.State, bitstate.PlayerDelivered)
		return nil
	})
	return err
}

// ended holds once every participant has delivered.
func (d deadDrop) ended(ctx context.Context, info MatchInfo, _ MatchState) (bool, error) {
	players, err := d.e.joined(ctx, info.ID)
	if err != nil {
		return false, err
	}
	if len(players) == 0 {
		return false, nil
	}
	for _, p := range players {
		if !bitstate.Matches(p.State, bitstate.PlayerHasDelivered, bitstate.PlayerHasDelivered) {
			return false, nil
		}
	}
	return true, nil
}

func (deadDrop) visible(o Object) bool {
	return o.Kind == KindDeadDrop || o.Kind == KindCamera
}

// SafeZoneScore is the time-decayed delivery award. It never lowers the
// score.
func SafeZoneScore(score, base, decay, secondsSinceFirst float64) float64 {
	return math.Round(math.Max(score, score+base-decay*secondsSinceFirst))
}

func (e *Engine) carried(ctx context.Context, matchID, playerID string) (Object, bool, error) {
	drops, err := e.objectsOf(ctx, matchID, KindDeadDrop)
	if err != nil {
		return Object{}, false, err
	}
	for _, o := range drops {
		if o.Holder == playerID && o.State.Has(bitstate.ObjectCollected) && !o.Consumed() {
			return o, true, nil
		}
	}
	return Object{}, false, nil
}

// Drop places the player's drop at their position. The player must have held
// still for the drop delay.
func (e *Engine) Drop(ctx context.Context, matchID, playerID string) error {
	info, state, err := e.match(ctx, matchID)
	if err != nil {
		return err
	}
	if info.Mode != ModeDeadDrop || PhaseOf(info.Mode, state.State) != PhaseDrop {
		return validationf("drops are only allowed during the drop phase")
	}
	p, err := e.player(ctx, matchID, playerID)
	if err != nil {
		return err
	}
	if !bitstate.Matches(p.State, bitstate.PlayerDropped, bitstate.PlayerParticipating) {
		return validationf("nothing to drop")
	}
	at, err := e.stationary(ctx, playerID, seconds(e.Tuning.DropDelay))
	if err != nil {
		return err
	}
	return e.placeDrop(ctx, info, playerID, at, false)
}

// forceDrop drops for a player who ran out the drop phase, at their latest
// position or their starting location, with a penalty.
func (e *Engine) forceDrop(ctx context.Context, info MatchInfo, playerID string) error {
	at, ok, err := e.position(ctx, playerID)
	if err != nil {
		return err
	}
	if !ok {
		if at, ok, err = e.startingLocation(ctx, info.ID, playerID); err != nil {
			return err
		}
	}
	if !ok {
		log.Printf("[Phase] match %s player %s has no position for a forced drop", info.ID, playerID)
		_, err := e.updatePlayer(ctx, info.ID, playerID, func(s *PlayerState, _ bool) error {
			s.State = bitstate.Set(s.State, bitstate.PlayerFlag)
			s.Score += e.Tuning.NoDropPenalty
			return nil
		})
		return err
	}
	return e.placeDrop(ctx, info, playerID, at, true)
}

func (e *Engine) placeDrop(ctx context.Context, info MatchInfo, playerID string, at geo.Point, forced bool) error {
	drops, err := e.objectsOf(ctx, info.ID, KindDeadDrop)
	if err != nil {
		return err
	}
	var drop *Object
	for i := range drops {
		if drops[i].Owner == playerID && drops[i].Holder == playerID && !drops[i].Consumed() {
			drop = &drops[i]
			break
		}
	}
	if drop == nil {
		return notFoundf("player %s holds no drop", playerID)
	}

	award := e.Tuning.NoDropPenalty
	if !forced {
		start, ok, err := e.startingLocation(ctx, info.ID, playerID)
		if err != nil {
			return err
		}
		award = 0
		if ok {
			award = math.Floor(e.Tuning.DropScoreFactor * geo.Distance(start, at))
		}
	}

	if _, err := e.updateObject(ctx, info.ID, drop.ID, func(o *ObjectState) error {
		o.Holder = ""
		o.Position = geo.PointGeometry(at)
		return nil
	}); err != nil {
		return err
	}
	_, err = e.updatePlayer(ctx, info.ID, playerID, func(s *PlayerState, _ bool) error {
		s.State = bitstate.Set(s.State, bitstate.PlayerFlag)
		s.Score += award
		return nil
	})
	return err
}

// Collect picks up the drop assigned to the player once they stand still
// within reach of it.
func (e *Engine) Collect(ctx context.Context, matchID, playerID string) error {
	info, state, err := e.match(ctx, matchID)
	if err != nil {
		return err
	}
	if info.Mode != ModeDeadDrop || PhaseOf(info.Mode, state.State) != PhaseCollect {
		return validationf("collecting is only allowed during the collect phase")
	}
	p, err := e.player(ctx, matchID, playerID)
	if err != nil {
		return err
	}
	if !bitstate.Matches(p.State, bitstate.PlayerEnRoute, bitstate.PlayerDropped) {
		return validationf("nothing to collect")
	}
	at, err := e.stationary(ctx, playerID, seconds(e.Tuning.CollectDelay))
	if err != nil {
		return err
	}
	drops, err := e.objectsOf(ctx, matchID, KindDeadDrop)
	if err != nil {
		return err
	}
	for _, d := range drops {
		if d.Status.Collector != playerID || !d.Placed() || d.State.Has(bitstate.ObjectCollected) {
			continue
		}
		pos, ok := geo.ParsePoint(d.Position)
		if !ok || geo.Distance(pos, at) > e.Tuning.PickupDistance {
			return validationf("not close enough to the drop")
		}
		if _, err := e.updateObject(ctx, matchID, d.ID, func(o *ObjectState) error {
			o.Position = ""
			o.Holder = playerID
			o.State = bitstate.Set(o.State, bitstate.ObjectCollected)
			return nil
		}); err != nil {
			return err
		}
		_, err = e.updatePlayer(ctx, matchID, playerID, func(s *PlayerState, _ bool) error {
			s.State = bitstate.Toggle(s.State, bitstate.PlayerCarrying)
			return nil
		})
		return err
	}
	return notFoundf("no drop assigned to player %s", playerID)
}
