package game

import (
	"context"
	"fmt"
	"log"

	"spot-game-server/bitstate"
	"spot-game-server/geo"
)

// captureFlag: two teams, each with a home zone and a flag. Tagging happens
// from inside your own zone; bringing the enemy flag home scores.
type captureFlag struct{ e *Engine }

func (captureFlag) ID() ModeID { return ModeCaptureFlag }

// teamsOf returns the configured teams, or two teams splitting the bounds
// down the middle when none are configured.
func teamsOf(info MatchInfo) ([]TeamConfig, error) {
	if len(info.Config.Teams) >= 2 {
		return info.Config.Teams, nil
	}
	minLong, minLat, maxLong, maxLat, err := geo.Envelope(info.Bounds)
	if err != nil {
		return nil, validationf("bounds: %v", err)
	}
	mid := (minLong + maxLong) / 2
	return []TeamConfig{
		{Name: "A", Zone: geo.Rectangle(minLong, minLat, mid, maxLat)},
		{Name: "B", Zone: geo.Rectangle(mid, minLat, maxLong, maxLat)},
	}, nil
}

func zoneID(team string) string { return "zone:" + team }
func flagID(team string) string { return "flag:" + team }

func (c captureFlag) setup(ctx context.Context, info MatchInfo) error {
	teams, err := teamsOf(info)
	if err != nil {
		return err
	}
	for _, t := range teams {
		if _, err := c.e.updateOrCreate(ctx, info.ID, zoneID(t.Name),
			ObjectState{Kind: KindZone, Position: t.Zone, Status: ObjectStatus{Team: t.Name}},
			func(*ObjectState) error { return nil }); err != nil {
			return err
		}
	}
	return nil
}

func (c captureFlag) start(ctx context.Context, info MatchInfo, _ []Player) error {
	teams, err := teamsOf(info)
	if err != nil {
		return err
	}
	for _, t := range teams {
		at, err := c.spawnPoint(t)
		if err != nil {
			return err
		}
		if _, err := c.e.updateOrCreate(ctx, info.ID, flagID(t.Name),
			ObjectState{Kind: KindFlag, Status: ObjectStatus{Team: t.Name}},
			func(o *ObjectState) error {
				o.Position = geo.PointGeometry(at)
				return nil
			}); err != nil {
			return err
		}
	}
	return nil
}

func (c captureFlag) spawnPoint(t TeamConfig) (geo.Point, error) {
	if len(t.Spawns) > 0 {
		return t.Spawns[c.e.Rand.Intn(len(t.Spawns))], nil
	}
	minLong, minLat, maxLong, maxLat, err := geo.Envelope(t.Zone)
	if err != nil {
		return geo.Point{}, validationf("zone of team %s: %v", t.Name, err)
	}
	return geo.Point{
		Long: between(c.e.Rand, minLong, maxLong),
		Lat:  between(c.e.Rand, minLat, maxLat),
	}, nil
}

func (c captureFlag) respawn(ctx context.Context, info MatchInfo, team string) error {
	teams, err := teamsOf(info)
	if err != nil {
		return err
	}
	for _, t := range teams {
		if t.Name != team {
			continue
		}
		at, err := c.spawnPoint(t)
		if err != nil {
			return err
		}
		_, err = c.e.updateObject(ctx, info.ID, flagID(team), func(o *ObjectState) error {
			o.Holder = ""
			o.Position = geo.PointGeometry(at)
			return nil
		})
		return err
	}
	return notFoundf("team %s not found", team)
}

func (c captureFlag) inOwnZone(ctx context.Context, info MatchInfo, p Player, at geo.Point) (bool, error) {
	if p.Team == "" {
		return false, nil
	}
	zone, err := c.e.Objects.Latest(ctx, ObjectKey{info.ID, zoneID(p.Team)})
	if err != nil {
		return false, storeErr("load zone", err)
	}
	inside, err := c.e.Geo.Contains(ctx, zone.Value.Position, at)
	return inside, storeErr("zone check", err)
}

func (captureFlag) advance(_ context.Context, _ MatchInfo, state MatchState) (MatchState, error) {
	return state, nil
}

// evaluate untags players who made it home and scores flags carried home.
func (c captureFlag) evaluate(ctx context.Context, info MatchInfo, _ MatchState, p Player, at *geo.Point) error {
	if at == nil {
		return nil
	}
	home, err := c.inOwnZone(ctx, info, p, *at)
	if err != nil || !home {
		return err
	}
	if p.State.Has(bitstate.PlayerFlag) {
		_, err := c.e.updatePlayer(ctx, info.ID, p.ID, func(s *PlayerState, _ bool) error {
			s.State = bitstate.Clear(s.State, bitstate.PlayerFlag)
			return nil
		})
		return err
	}
	if !p.State.Has(bitstate.PlayerCarrying) {
		return nil
	}
	flags, err := c.e.objectsOf(ctx, info.ID, KindFlag)
	if err != nil {
		return err
	}
	for _, f := range flags {
		if f.Holder != p.ID {
			continue
		}
		if err := c.respawn(ctx, info, f.Status.Team); err != nil {
			return err
		}
		log.Printf("[Rules] match %s: %s captured the %s flag", info.ID, p.ID, f.Status.Team)
	}
	_, err = c.e.updatePlayer(ctx, info.ID, p.ID, func(s *PlayerState, _ bool) error {
		s.State = bitstate.Clear(s.State, bitstate.PlayerCarrying)
		s.Score += c.e.Tuning.FlagCapturePoints
		return nil
	})
	return err
}

func (captureFlag) ended(context.Context, MatchInfo, MatchState) (bool, error) { return false, nil }

func (captureFlag) visible(o Object) bool { return o.Kind == KindFlag || o.Kind == KindZone }

func (e *Engine) flagMatch(ctx context.Context, matchID, playerID string) (MatchInfo, Player, geo.Point, error) {
	info, state, err := e.match(ctx, matchID)
	if err != nil {
		return info, Player{}, geo.Point{}, err
	}
	if info.Mode != ModeCaptureFlag {
		return info, Player{}, geo.Point{}, validationf("match %s is not capture the flag", matchID)
	}
	if !bitstate.InProgress(state.State) {
		return info, Player{}, geo.Point{}, validationf("match is not running")
	}
	ps, err := e.player(ctx, matchID, playerID)
	if err != nil {
		return info, Player{}, geo.Point{}, err
	}
	if !ps.State.Has(bitstate.PlayerJoined) {
		return info, Player{}, geo.Point{}, notFoundf("player %s is not in match %s", playerID, matchID)
	}
	at, ok, err := e.position(ctx, playerID)
	if err != nil {
		return info, Player{}, geo.Point{}, err
	}
	if !ok {
		return info, Player{}, geo.Point{}, validationf("no position reported yet")
	}
	return info, Player{ID: playerID, PlayerState: ps}, at, nil
}

// Tag tags the nearest opposing player. The tagger must stand in their own
// zone and the target must be within tag distance. A tagged flag carrier
// drops the flag, which respawns.
func (e *Engine) Tag(ctx context.Context, matchID, playerID string) (string, error) {
	info, p, at, err := e.flagMatch(ctx, matchID, playerID)
	if err != nil {
		return "", err
	}
	cf := captureFlag{e}
	home, err := cf.inOwnZone(ctx, info, p, at)
	if err != nil {
		return "", err
	}
	if !home {
		return "", validationf("Not In Zone")
	}

	players, err := e.joined(ctx, matchID)
	if err != nil {
		return "", err
	}
	var targets []Player
	var points []geo.Point
	for _, o := range players {
		if o.Team == p.Team {
			continue
		}
		pos, ok, err := e.position(ctx, o.ID)
		if err != nil {
			return "", err
		}
		if ok {
			targets = append(targets, o)
			points = append(points, pos)
		}
	}
	idx, dist, err := e.Geo.Nearest(ctx, at, points)
	if err != nil {
		return "", storeErr("nearest opponent", err)
	}
	if idx < 0 || dist > e.Tuning.TagDistance {
		return "", validationf("Not In Range")
	}
	target := targets[idx]
	if target.State.Has(bitstate.PlayerFlag) {
		return "", validationf("%s is already tagged", target.ID)
	}

	if target.State.Has(bitstate.PlayerCarrying) {
		flags, err := e.objectsOf(ctx, matchID, KindFlag)
		if err != nil {
			return "", err
		}
		for _, f := range flags {
			if f.Holder == target.ID {
				if err := cf.respawn(ctx, info, f.Status.Team); err != nil {
					return "", err
				}
			}
		}
	}
	if _, err := e.updatePlayer(ctx, matchID, target.ID, func(s *PlayerState, _ bool) error {
		s.State = bitstate.Set(bitstate.Clear(s.State, bitstate.PlayerCarrying), bitstate.PlayerFlag)
		return nil
	}); err != nil {
		return "", err
	}
	return fmt.Sprintf("You tagged %s", target.ID), nil
}

// PickupFlag takes the enemy flag when it lies within tag distance.
func (e *Engine) PickupFlag(ctx context.Context, matchID, playerID string) error {
	_, p, at, err := e.flagMatch(ctx, matchID, playerID)
	if err != nil {
		return err
	}
	if p.State.Has(bitstate.PlayerFlag) {
		return validationf("tagged players cannot pick up a flag")
	}
	if p.State.Has(bitstate.PlayerCarrying) {
		return validationf("already carrying a flag")
	}
	flags, err := e.objectsOf(ctx, matchID, KindFlag)
	if err != nil {
		return err
	}
	for _, f := range flags {
		if f.Status.Team == p.Team || !f.Placed() {
			continue
		}
		pos, ok := geo.ParsePoint(f.Position)
		if !ok || geo.Distance(pos, at) > e.Tuning.TagDistance {
			continue
		}
		if _, err := e.updateObject(ctx, matchID, f.ID, func(o *ObjectState) error {
			o.Position = ""
			o.Holder = playerID
			return nil
		}); err != nil {
			return err
		}
		_, err := e.updatePlayer(ctx, matchID, playerID, func(s *PlayerState, _ bool) error {
			s.State = bitstate.Set(s.State, bitstate.PlayerCarrying)
			return nil
		})
		return err
	}
	return validationf("Not In Range")
}
