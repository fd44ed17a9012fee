package services

import (
	"context"
	"testing"
	"time"

	"spot-game-server/game"
	"spot-game-server/geo"
	"spot-game-server/geo/raster"
	"spot-game-server/snapshot"
	"spot-game-server/store"

	"github.com/jonboulle/clockwork"
)

func newTestService(t *testing.T) (*GameService, *clockwork.FakeClock, *store.Memory) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	mem := store.NewMemory(clock)
	bounds := geo.Rectangle(0, 0, 0.001, 0.001)
	grid, err := raster.GridFor(bounds, 0.0001)
	if err != nil {
		t.Fatal(err)
	}
	g, err := raster.New(grid)
	if err != nil {
		t.Fatal(err)
	}
	engine := game.NewEngine(mem.Stores(), g, game.Config{Clock: clock})
	cache := snapshot.NewCache(snapshot.NewMemory(), engine.Build, snapshot.Options{Clock: clock})
	return NewGameService(engine, mem.Sessions, cache), clock, mem
}

func TestHousekeepingJobs(t *testing.T) {
	ctx := context.Background()
	s, clock, mem := newTestService(t)

	info, err := s.Engine.CreateMatch(ctx, game.CreateRequest{
		Name:            "stale",
		Mode:            game.ModeLastStanding,
		DurationMinutes: 10,
		Bounds:          geo.Rectangle(0, 0, 0.001, 0.001),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Cache.Payload(ctx, info.ID); err != nil {
		t.Fatal(err)
	}
	sess, err := mem.Sessions.Login(ctx, "alice", "phone-1")
	if err != nil {
		t.Fatal(err)
	}

	clock.Advance(LobbyMaxAge + time.Minute)
	s.CloseStaleLobbies(ctx)
	s.ExpireSessions(ctx)
	s.SweepCache(ctx)

	if joinable, _ := s.Engine.JoinableMatches(ctx); len(joinable) != 0 {
		t.Errorf("stale lobby still joinable: %+v", joinable)
	}
	if _, err := mem.Sessions.Verify(ctx, sess.ID); err == nil {
		t.Error("idle session survived expiry")
	}
	if n, _ := s.Cache.Sweep(ctx); n != 0 {
		t.Errorf("second sweep evicted %d entries, want 0", n)
	}
}

func TestStartHousekeepingRegistersJobs(t *testing.T) {
	s, _, _ := newTestService(t)
	sched, err := s.StartHousekeeping(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer sched.Shutdown()
	if got := len(sched.Jobs()); got != 3 {
		t.Fatalf("scheduled %d jobs, want 3", got)
	}
}
