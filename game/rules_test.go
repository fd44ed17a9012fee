package game_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"spot-game-server/bitstate"
	"spot-game-server/entitylog"
	"spot-game-server/game"
	"spot-game-server/geo"
)

var errGeoDown = errors.New("geometry backend down")

// faultyGeo fails the boundary check for one point and panics for another.
type faultyGeo struct {
	geo.Engine
	failAt, panicAt geo.Point
}

func (f faultyGeo) Contains(ctx context.Context, area geo.Geometry, p geo.Point) (bool, error) {
	switch p {
	case f.failAt:
		return false, errGeoDown
	case f.panicAt:
		panic("corrupt geometry")
	}
	return f.Engine.Contains(ctx, area, p)
}

func TestRuleFailuresAreIsolated(t *testing.T) {
	h := newHarness(t)
	tuning := game.DefaultTuning()
	pA := h.at("a", 0.0002, 0.0002)
	h.at("b", 0.0005, 0.0005)
	pC := h.at("c", 0.0008, 0.0008)
	h.engine = game.NewEngine(h.mem.Stores(), faultyGeo{Engine: h.geo, failAt: pA, panicAt: pC}, game.Config{
		Clock: h.clock, Rand: game.NewRand(7), Tuning: &tuning, EnforceBounds: true,
	})
	info := h.create(game.ModeTerritory, game.ModeConfig{})
	h.start(info.ID, "a", "b", "c")

	h.build(info.ID)
	if got := h.player(info.ID, "b").Score; got <= 0 {
		t.Fatalf("b score = %v, want b evaluated despite the others failing", got)
	}
	for _, id := range []string{"a", "c"} {
		if p := h.player(info.ID, id); p.Score != 0 || !p.State.Has(bitstate.PlayerJoined) {
			t.Errorf("failing player %s = %s score %v, want untouched", id, p.State, p.Score)
		}
	}

	tests := []struct {
		player string
		cause  error
	}{
		{"a", game.ErrUnavailable},
		{"c", nil},
	}
	for _, tt := range tests {
		t.Run(tt.player, func(t *testing.T) {
			err := h.engine.EvaluatePlayer(h.ctx, info.ID, tt.player)
			if !errors.Is(err, game.ErrRule) || game.KindOf(err) != game.KindRule {
				t.Fatalf("err = %v, want %s", err, game.KindRule)
			}
			if tt.cause != nil && !errors.Is(err, tt.cause) {
				t.Fatalf("err = %v, want it to wrap %v", err, tt.cause)
			}
		})
	}
}

func TestRulesRefuseNonParticipants(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("evaluating a player without the joined bit did not panic")
		}
	}()
	game.RequireParticipating(game.Player{ID: "a", PlayerState: game.PlayerState{State: bitstate.PlayerPlayed}})
}

// staleMatches serves a fixed match row to Latest, as a request that read the
// match before another one changed it would see.
type staleMatches struct {
	entitylog.Log[game.MatchKey, game.MatchState]
	row entitylog.Entry[game.MatchState]
}

func (s staleMatches) Latest(context.Context, game.MatchKey) (entitylog.Entry[game.MatchState], error) {
	return s.row, nil
}

func (h *harness) staleEngine(matchID string, row entitylog.Entry[game.MatchState], cfg game.Config) *game.Engine {
	stores := h.mem.Stores()
	stores.Matches = staleMatches{Log: h.mem.Matches, row: row}
	return game.NewEngine(stores, h.geo, cfg)
}

func TestStaleBuildAfterEndReturnsEndedSnapshot(t *testing.T) {
	h := newHarness(t, func(c *game.Config) { c.EnforceTimers = true })
	info := h.create(game.ModeTerritory, game.ModeConfig{})
	h.start(info.ID, "a", "b")
	running, err := h.mem.Matches.Latest(h.ctx, game.MatchKey{MatchID: info.ID})
	if err != nil {
		t.Fatal(err)
	}

	h.clock.Advance(30 * time.Minute)
	endedAt := *h.build(info.ID).Match.PhaseTimestamps.EndedAt

	h.clock.Advance(time.Minute)
	late := h.staleEngine(info.ID, running, game.Config{Clock: h.clock, EnforceTimers: true})
	snap, err := late.Build(h.ctx, info.ID)
	if err != nil {
		t.Fatalf("late build err = %v", err)
	}
	if snap.Match.Phase != game.PhaseEnded {
		t.Fatalf("late build phase = %s, want ended", snap.Match.Phase)
	}
	if got := snap.Match.PhaseTimestamps.EndedAt; got == nil || !got.Equal(endedAt) {
		t.Fatalf("ended at = %v, want %v", got, endedAt)
	}
}

func TestStaleBuildKeepsDropAssignments(t *testing.T) {
	h := newHarness(t)
	info := h.create(game.ModeDeadDrop, game.ModeConfig{})
	players := []string{"a", "b", "c"}
	h.at("a", 0.0002, 0.0002)
	h.at("b", 0.0005, 0.0005)
	h.at("c", 0.0008, 0.0008)
	h.start(info.ID, players...)

	dropPhase, err := h.mem.Matches.Latest(h.ctx, game.MatchKey{MatchID: info.ID})
	if err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(11 * time.Second)
	for _, id := range players {
		if err := h.engine.Drop(h.ctx, info.ID, id); err != nil {
			t.Fatalf("Drop(%s): %v", id, err)
		}
	}
	snap := h.build(info.ID)
	if snap.Match.Phase != game.PhaseCollect {
		t.Fatalf("phase = %s, want collect", snap.Match.Phase)
	}

	drops := func() map[string]int {
		t.Helper()
		rows, err := h.mem.Objects.LatestIn(h.ctx, info.ID)
		if err != nil {
			t.Fatal(err)
		}
		out := map[string]int{}
		for _, r := range rows {
			if r.Entry.Value.Kind != game.KindDeadDrop {
				continue
			}
			if r.Entry.Value.Status.Collector == "" {
				t.Fatalf("drop %s has no collector", r.Key.ObjectID)
			}
			hist, err := h.mem.Objects.History(h.ctx, r.Key, time.Time{})
			if err != nil {
				t.Fatal(err)
			}
			out[r.Key.ObjectID] = len(hist)
		}
		return out
	}
	before := drops()
	if len(before) != 3 {
		t.Fatalf("found %d drops, want 3", len(before))
	}

	h.clock.Advance(time.Second)
	late := h.staleEngine(info.ID, dropPhase, game.Config{Clock: h.clock, Rand: game.NewRand(99)})
	lateSnap, err := late.Build(h.ctx, info.ID)
	if err != nil {
		t.Fatalf("late build err = %v", err)
	}
	if lateSnap.Match.Phase != game.PhaseCollect {
		t.Fatalf("late build phase = %s, want collect", lateSnap.Match.Phase)
	}
	if got := lateSnap.Match.PhaseTimestamps.CollectStartedAt; got == nil || !got.Equal(*snap.Match.PhaseTimestamps.CollectStartedAt) {
		t.Fatalf("collect start moved to %v", got)
	}
	for id, n := range drops() {
		if n != before[id] {
			t.Errorf("drop %s rewritten: %d rows, want %d", id, n, before[id])
		}
	}
}
