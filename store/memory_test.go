package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"spot-game-server/bitstate"
	"spot-game-server/entitylog"
	"spot-game-server/game"
	"spot-game-server/geo"

	"github.com/jonboulle/clockwork"
)

func TestMemoryCatalogCreateWritesInitialState(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	m := NewMemory(clock)

	info := game.MatchInfo{ID: "m1", Name: "Park", Mode: game.ModeTerritory, CreatedAt: clock.Now()}
	if err := m.Catalog.Create(ctx, info, game.MatchState{State: bitstate.MatchOpen}); err != nil {
		t.Fatalf("create: %v", err)
	}
	latest, err := m.Matches.Latest(ctx, game.MatchKey{MatchID: "m1"})
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Value.State != bitstate.MatchOpen {
		t.Errorf("state = %s, want open", latest.Value.State)
	}
	if err := m.Catalog.Create(ctx, info, game.MatchState{}); err == nil {
		t.Fatal("duplicate create succeeded")
	}
	if _, err := m.Catalog.Get(ctx, "missing"); !errors.Is(err, entitylog.ErrNotFound) {
		t.Errorf("get missing = %v, want ErrNotFound", err)
	}
}

func TestMemoryCatalogStartTimeIsSetOnce(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	m := NewMemory(clock)
	if err := m.Catalog.Create(ctx, game.MatchInfo{ID: "m1"}, game.MatchState{}); err != nil {
		t.Fatal(err)
	}
	first := clock.Now()
	got, err := m.Catalog.MarkStarted(ctx, "m1", first)
	if err != nil || !got.Equal(first) {
		t.Fatalf("first mark = %v, %v", got, err)
	}
	got, err = m.Catalog.MarkStarted(ctx, "m1", first.Add(time.Hour))
	if err != nil || !got.Equal(first) {
		t.Fatalf("second mark = %v, %v; want %v", got, err, first)
	}
}

func TestMemoryPositions(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	p := NewMemoryPositions(clock)

	if _, err := p.Latest(ctx, "p1"); !errors.Is(err, entitylog.ErrNotFound) {
		t.Fatalf("latest before any fix = %v", err)
	}
	start := clock.Now()
	for i := 0; i < 3; i++ {
		if err := p.Record(ctx, "p1", geo.Point{Lat: float64(i), Long: 1}); err != nil {
			t.Fatal(err)
		}
		clock.Advance(10 * time.Second)
	}
	latest, err := p.Latest(ctx, "p1")
	if err != nil || latest.Point.Lat != 2 {
		t.Fatalf("latest = %+v, %v", latest, err)
	}
	recent, err := p.Since(ctx, "p1", start.Add(10*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].Point.Lat != 1 {
		t.Errorf("since = %+v", recent)
	}
}

func TestMemorySessions(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	s := NewMemorySessions(clock)

	first, err := s.Login(ctx, "alice", "dev-1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Login(ctx, "alice", "dev-2"); !errors.Is(err, ErrUsernameActive) {
		t.Errorf("second login for alice = %v, want ErrUsernameActive", err)
	}
	if _, err := s.Login(ctx, "bob", "dev-1"); !errors.Is(err, ErrDeviceActive) {
		t.Errorf("login on busy device = %v, want ErrDeviceActive", err)
	}
	if err := s.Logout(ctx, first.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := s.Verify(ctx, first.ID); !errors.Is(err, entitylog.ErrNotFound) {
		t.Errorf("logged out session still verifies: %v", err)
	}
	second, err := s.Login(ctx, "alice", "dev-2")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Verify(ctx, second.ID); err != nil {
		t.Errorf("verify current: %v", err)
	}

	clock.Advance(31 * time.Minute)
	n, err := s.ExpireInactive(ctx, clock.Now().Add(-30*time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("expire = %d, %v", n, err)
	}
	if err := s.Logout(ctx, second.ID); !errors.Is(err, entitylog.ErrNotFound) {
		t.Errorf("logout of expired session = %v", err)
	}
}
