package game

import (
	"context"
	"log"

	"spot-game-server/bitstate"
	"spot-game-server/geo"
)

const (
	roleRabbit = "rabbit"
	roleFox    = "fox"
)

// rabbit is chase the rabbit: one player is the rabbit laying landmines,
// everyone else is a fox laying traps. Catching the rabbit in a trap makes
// the trapper the new rabbit.
type rabbit struct{ e *Engine }

func (rabbit) ID() ModeID { return ModeRabbit }

func (rabbit) setup(context.Context, MatchInfo) error { return nil }

func (r rabbit) start(ctx context.Context, info MatchInfo, players []Player) error {
	if len(players) == 0 {
		return nil
	}
	chosen := players[r.e.Rand.Intn(len(players))]
	_, err := r.e.updatePlayer(ctx, info.ID, chosen.ID, func(s *PlayerState, _ bool) error {
		s.State = bitstate.Set(s.State, bitstate.PlayerFlag)
		return nil
	})
	if err == nil {
		log.Printf("[Phase] match %s: %s is the rabbit", info.ID, chosen.ID)
	}
	return err
}

func (rabbit) advance(_ context.Context, _ MatchInfo, state MatchState) (MatchState, error) {
	return state, nil
}

func roleOf(p PlayerState) string {
	if p.State.Has(bitstate.PlayerFlag) {
		return roleRabbit
	}
	return roleFox
}

func (r rabbit) evaluate(ctx context.Context, info MatchInfo, _ MatchState, p Player, at *geo.Point) error {
	if err := r.grantItem(ctx, info, p); err != nil {
		return err
	}
	if at == nil {
		return nil
	}
	if err := r.dropPellet(ctx, info, p, *at); err != nil {
		return err
	}
	return r.resolveContacts(ctx, info, p, *at)
}

func (rabbit) ended(context.Context, MatchInfo, MatchState) (bool, error) { return false, nil }

func (rabbit) visible(o Object) bool { return o.Kind == KindPellet }

// grantItem hands out a landmine (rabbit) or trap (fox) once the cooldown
// has passed and the player has room. The rabbit's room counts everything it
// holds, a fox's only its traps. A full inventory restarts the cooldown.
func (r rabbit) grantItem(ctx context.Context, info MatchInfo, p Player) error {
	t := r.e.Tuning
	rabbitRole := roleOf(p.PlayerState) == roleRabbit
	kind, capacity, interval := KindTrap, t.FoxCapacity, t.TrapInterval
	if rabbitRole {
		kind, capacity, interval = KindLandmine, t.RabbitCapacity, t.LandmineInterval
	}
	now := r.e.now()
	if last := p.Config.LastGrantAt; last != nil && now.Sub(*last) <= seconds(interval) {
		return nil
	}

	items, err := r.e.objects(ctx, info.ID)
	if err != nil {
		return err
	}
	held := 0
	for _, o := range items {
		if o.Holder == p.ID && !o.Consumed() && (rabbitRole || o.Kind == kind) {
			held++
		}
	}
	if held < capacity {
		if _, err := r.e.createObject(ctx, info.ID, ObjectState{Kind: kind, Owner: p.ID, Holder: p.ID}); err != nil {
			return err
		}
	}
	_, err = r.e.updatePlayer(ctx, info.ID, p.ID, func(s *PlayerState, _ bool) error {
		s.Config.LastGrantAt = ptr(now)
		return nil
	})
	return err
}

// dropPellet leaves a pellet behind when the interval has passed or the
// random trial hits, and pays the drop reward.
func (r rabbit) dropPellet(ctx context.Context, info MatchInfo, p Player, at geo.Point) error {
	now := r.e.now()
	due := p.Config.LastDropAt == nil || now.Sub(*p.Config.LastDropAt) >= seconds(r.e.Tuning.PelletInterval)
	if !due && (r.e.Tuning.PelletChance <= 0 || r.e.Rand.Intn(r.e.Tuning.PelletChance) != 0) {
		return nil
	}
	if _, err := r.e.createObject(ctx, info.ID, ObjectState{
		Kind:     KindPellet,
		Owner:    p.ID,
		Position: geo.PointGeometry(at),
		Status:   ObjectStatus{Team: roleOf(p.PlayerState)},
	}); err != nil {
		return err
	}
	_, err := r.e.updatePlayer(ctx, info.ID, p.ID, func(s *PlayerState, _ bool) error {
		s.Config.LastDropAt = ptr(now)
		s.Score += r.e.Tuning.PelletDropValue
		return nil
	})
	return err
}

// resolveContacts applies every opposing item within touch distance: traps
// catch the rabbit, landmines hurt foxes, pellets of the other side are
// collected.
func (r rabbit) resolveContacts(ctx context.Context, info MatchInfo, p Player, at geo.Point) error {
	objects, err := r.e.objects(ctx, info.ID)
	if err != nil {
		return err
	}
	role := roleOf(p.PlayerState)
	for _, o := range objects {
		if !o.Placed() {
			continue
		}
		pos, ok := geo.ParsePoint(o.Position)
		if !ok || geo.Distance(pos, at) > r.e.Tuning.TouchDistance {
			continue
		}
		switch {
		case o.Kind == KindTrap && role == roleRabbit:
			return r.capture(ctx, info, o, p.ID)
		case o.Kind == KindLandmine && role == roleFox:
			if err := r.e.retire(ctx, info.ID, o.ID); err != nil {
				return err
			}
			if err := r.e.addScore(ctx, info.ID, p.ID, -r.e.Tuning.LandminePenalty); err != nil {
				return err
			}
		case o.Kind == KindPellet && o.Status.Team != role:
			if _, err := r.e.updateObject(ctx, info.ID, o.ID, func(s *ObjectState) error {
				s.Position = ""
				s.Holder = p.ID
				return nil
			}); err != nil {
				return err
			}
			if err := r.e.addScore(ctx, info.ID, p.ID, r.e.Tuning.PelletCollectValue); err != nil {
				return err
			}
		}
	}
	return nil
}

// capture resolves the rabbit stepping on a trap. The trapper scores the
// bonus, every pellet a fox holds pays its holder the collect value again,
// the rabbit and the trapper swap roles with empty inventories, and the map
// is cleared of items.
func (r rabbit) capture(ctx context.Context, info MatchInfo, trap Object, rabbitID string) error {
	foxID := trap.Owner
	if err := r.e.retire(ctx, info.ID, trap.ID); err != nil {
		return err
	}

	players, err := r.e.players(ctx, info.ID)
	if err != nil {
		return err
	}
	foxes := make(map[string]bool, len(players))
	for _, p := range players {
		if roleOf(p.PlayerState) == roleFox {
			foxes[p.ID] = true
		}
	}
	objects, err := r.e.objects(ctx, info.ID)
	if err != nil {
		return err
	}
	for _, o := range objects {
		if o.Consumed() {
			continue
		}
		switch {
		case o.Kind == KindPellet && foxes[o.Holder]:
			if err := r.e.addScore(ctx, info.ID, o.Holder, r.e.Tuning.PelletCollectValue); err != nil {
				return err
			}
		case o.Holder == rabbitID || o.Holder == foxID:
		case o.Placed() && (o.Kind == KindLandmine || o.Kind == KindTrap || o.Kind == KindPellet):
		default:
			continue
		}
		if err := r.e.retire(ctx, info.ID, o.ID); err != nil {
			return err
		}
	}

	if err := r.e.addScore(ctx, info.ID, foxID, r.e.Tuning.CaptureBonus); err != nil {
		return err
	}
	for _, id := range []string{rabbitID, foxID} {
		if _, err := r.e.updatePlayer(ctx, info.ID, id, func(s *PlayerState, _ bool) error {
			s.State = bitstate.Toggle(s.State, bitstate.PlayerFlag)
			s.Config.LastGrantAt = nil
			return nil
		}); err != nil {
			return err
		}
	}
	log.Printf("[Rules] match %s: %s trapped the rabbit %s", info.ID, foxID, rabbitID)
	return nil
}

// PlaceItem puts a held landmine or trap on the map at the player's position.
func (e *Engine) PlaceItem(ctx context.Context, matchID, playerID string, kind ObjectKind) error {
	info, state, err := e.match(ctx, matchID)
	if err != nil {
		return err
	}
	if !bitstate.InProgress(state.State) {
		return validationf("match is not running")
	}
	if info.Mode != ModeRabbit || (kind != KindLandmine && kind != KindTrap) {
		return validationf("%s cannot be placed in this match", kind)
	}
	p, err := e.player(ctx, matchID, playerID)
	if err != nil {
		return err
	}
	if !p.State.Has(bitstate.PlayerJoined) {
		return notFoundf("player %s is not in match %s", playerID, matchID)
	}
	at, ok, err := e.position(ctx, playerID)
	if err != nil {
		return err
	}
	if !ok {
		return validationf("no position reported yet")
	}
	items, err := e.objectsOf(ctx, matchID, kind)
	if err != nil {
		return err
	}
	for _, o := range items {
		if o.Holder != playerID || o.Consumed() {
			continue
		}
		_, err := e.updateObject(ctx, matchID, o.ID, func(s *ObjectState) error {
			s.Holder = ""
			s.Position = geo.PointGeometry(at)
			return nil
		})
		return err
	}
	return notFoundf("no %s in inventory", kind)
}
