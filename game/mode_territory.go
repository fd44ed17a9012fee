package game

import (
	"context"
	"math"

	"spot-game-server/geo"
)

// territory is king of the hill: walking lays a trail, closed loops become
// territory, and the score is the share of the map a player holds.
type territory struct{ e *Engine }

func (territory) ID() ModeID { return ModeTerritory }

func (territory) setup(context.Context, MatchInfo) error { return nil }

func (t territory) start(ctx context.Context, info MatchInfo, players []Player) error {
	for _, p := range players {
		for _, kind := range []ObjectKind{KindTrail, KindTerritory} {
			_, err := t.e.Objects.Append(ctx, ObjectKey{info.ID, territoryObjectID(kind, p.ID)},
				func(prev ObjectState, exists bool) (ObjectState, error) {
					if exists {
						return prev, nil
					}
					return ObjectState{Kind: kind, Owner: p.ID}, nil
				})
			if err != nil {
				return storeErr("create "+string(kind), err)
			}
		}
	}
	return nil
}

func territoryObjectID(kind ObjectKind, playerID string) string {
	return string(kind) + ":" + playerID
}

func (territory) advance(_ context.Context, _ MatchInfo, state MatchState) (MatchState, error) {
	return state, nil
}

func (t territory) evaluate(ctx context.Context, info MatchInfo, _ MatchState, p Player, at *geo.Point) error {
	if at == nil {
		return nil
	}
	return t.e.extendTerritory(ctx, info, p.ID, *at)
}

func (territory) ended(context.Context, MatchInfo, MatchState) (bool, error) { return false, nil }

func (territory) visible(o Object) bool {
	return o.Kind == KindTrail || o.Kind == KindTerritory
}

// extendTerritory grows the player's trail by a buffered point, rebuilds the
// territory from the trail's exterior rings, cuts the new territory out of
// every other player's trail and territory, and rescores the player.
func (e *Engine) extendTerritory(ctx context.Context, info MatchInfo, playerID string, at geo.Point) error {
	trailID := territoryObjectID(KindTrail, playerID)
	landID := territoryObjectID(KindTerritory, playerID)

	buf, err := e.Geo.Buffer(ctx, at, e.Tuning.TrailBuffer)
	if err != nil {
		return storeErr("buffer position", err)
	}
	trail, err := e.updateOrCreate(ctx, info.ID, trailID, ObjectState{Kind: KindTrail, Owner: playerID}, func(o *ObjectState) error {
		u, err := e.Geo.Union(ctx, o.Position, buf)
		if err != nil {
			return storeErr("extend trail", err)
		}
		o.Position = u
		return nil
	})
	if err != nil {
		return err
	}
	land, err := e.updateOrCreate(ctx, info.ID, landID, ObjectState{Kind: KindTerritory, Owner: playerID}, func(o *ObjectState) error {
		grown, err := e.Geo.Union(ctx, o.Position, trail.Position)
		if err != nil {
			return storeErr("merge territory", err)
		}
		filled, err := e.Geo.FillExterior(ctx, grown)
		if err != nil {
			return storeErr("fill territory", err)
		}
		o.Position = filled
		return nil
	})
	if err != nil {
		return err
	}

	others, err := e.objects(ctx, info.ID)
	if err != nil {
		return err
	}
	for _, o := range others {
		if o.Owner == playerID || (o.Kind != KindTrail && o.Kind != KindTerritory) || o.Position.Empty() {
			continue
		}
		hit, err := e.Geo.Intersects(ctx, o.Position, land.Position)
		if err != nil {
			return storeErr("overlap check", err)
		}
		if !hit {
			continue
		}
		if _, err := e.updateObject(ctx, info.ID, o.ID, func(victim *ObjectState) error {
			cut, err := e.Geo.Difference(ctx, victim.Position, land.Position)
			if err != nil {
				return storeErr("cut overlap", err)
			}
			victim.Position = cut
			return nil
		}); err != nil {
			return err
		}
	}

	score, err := e.territoryScore(ctx, info, land.Position)
	if err != nil {
		return err
	}
	_, err = e.updatePlayer(ctx, info.ID, playerID, func(s *PlayerState, _ bool) error {
		s.Score = score
		return nil
	})
	return err
}

// territoryScore is the percentage of the bounds held, kept to three decimals.
func (e *Engine) territoryScore(ctx context.Context, info MatchInfo, land geo.Geometry) (float64, error) {
	total, err := e.Geo.Area(ctx, info.Bounds)
	if err != nil {
		return 0, storeErr("bounds area", err)
	}
	if total <= 0 {
		return 0, nil
	}
	held, err := e.Geo.Area(ctx, land)
	if err != nil {
		return 0, storeErr("territory area", err)
	}
	return math.Round(held/total*100000) / 1000, nil
}

// updateOrCreate appends to an object, seeding it with init when it has no
// rows yet.
func (e *Engine) updateOrCreate(ctx context.Context, matchID, objectID string, init ObjectState, fn func(*ObjectState) error) (ObjectState, error) {
	row, err := e.Objects.Append(ctx, ObjectKey{matchID, objectID}, func(prev ObjectState, exists bool) (ObjectState, error) {
		if !exists {
			prev = init
		}
		if err := fn(&prev); err != nil {
			return prev, err
		}
		return prev, nil
	})
	return row.Value, storeErr("update "+objectID, err)
}
