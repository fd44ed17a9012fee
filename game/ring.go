package game

import (
	"context"
	"fmt"
	"log"

	"spot-game-server/bitstate"
	"spot-game-server/geo"
)

// Assignment names who retrieves a drop and whose safe zone it goes to.
type Assignment struct {
	DropID    string
	Owner     string
	Collector string
	Guardian  string
}

// DropRef is a placed drop and the player who dropped it.
type DropRef struct {
	DropID string
	Owner  string
}

// AssignRing shuffles the drops and links them into a cycle: each drop is
// collected by the previous owner and guarded by the next. Two drops are
// cross-collected and self-guarded.
func AssignRing(drops []DropRef, r Rand) ([]Assignment, error) {
	n := len(drops)
	if n < 2 {
		return nil, fmt.Errorf("ring assignment needs at least two drops, got %d", n)
	}
	ring := append([]DropRef(nil), drops...)
	r.Shuffle(n, func(i, j int) { ring[i], ring[j] = ring[j], ring[i] })

	out := make([]Assignment, n)
	for i, d := range ring {
		a := Assignment{DropID: d.DropID, Owner: d.Owner}
		if n == 2 {
			a.Collector = ring[1-i].Owner
			a.Guardian = d.Owner
		} else {
			a.Collector = ring[(i-1+n)%n].Owner
			a.Guardian = ring[(i+1)%n].Owner
		}
		out[i] = a
	}
	return out, nil
}

// assignDrops runs the ring over every placed drop of the match and stores
// the result on each drop.
func (e *Engine) assignDrops(ctx context.Context, matchID string) error {
	drops, err := e.objectsOf(ctx, matchID, KindDeadDrop)
	if err != nil {
		return err
	}
	var refs []DropRef
	for _, d := range drops {
		if d.Placed() {
			refs = append(refs, DropRef{DropID: d.ID, Owner: d.Owner})
		}
	}
	assignments, err := AssignRing(refs, e.Rand)
	if err != nil {
		return validationf("%v", err)
	}
	for _, a := range assignments {
		_, err := e.updateObject(ctx, matchID, a.DropID, func(o *ObjectState) error {
			o.Status.Collector = a.Collector
			o.Status.Guardian = a.Guardian
			return nil
		})
		if err != nil {
			return err
		}
		log.Printf("[Phase] match %s drop %s: collector=%s guardian=%s", matchID, a.DropID, a.Collector, a.Guardian)
	}
	return nil
}

// startingLocation is where the player stood when the match started. It is
// also the safe zone the player guards.
func (e *Engine) startingLocation(ctx context.Context, matchID, guardian string) (geo.Point, bool, error) {
	starts, err := e.objectsOf(ctx, matchID, KindStart)
	if err != nil {
		return geo.Point{}, false, err
	}
	for _, s := range starts {
		if s.Owner == guardian && !s.State.Has(bitstate.ObjectConsumed) {
			p, ok := geo.ParsePoint(s.Position)
			return p, ok, nil
		}
	}
	return geo.Point{}, false, nil
}
