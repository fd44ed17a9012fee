package game_test

import (
	"testing"
	"time"

	"spot-game-server/bitstate"
	"spot-game-server/game"
)

func TestAssignRing(t *testing.T) {
	tests := []struct {
		name  string
		drops []game.DropRef
	}{
		{"three", []game.DropRef{{"d1", "a"}, {"d2", "b"}, {"d3", "c"}}},
		{"five", []game.DropRef{{"d1", "a"}, {"d2", "b"}, {"d3", "c"}, {"d4", "d"}, {"d5", "e"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := game.AssignRing(tt.drops, game.NewRand(42))
			if err != nil {
				t.Fatal(err)
			}
			if len(out) != len(tt.drops) {
				t.Fatalf("got %d assignments, want %d", len(out), len(tt.drops))
			}
			collects := map[string]int{}
			guards := map[string]int{}
			for _, a := range out {
				if a.Collector == a.Owner || a.Guardian == a.Owner || a.Collector == a.Guardian {
					t.Errorf("drop %s: owner=%s collector=%s guardian=%s", a.DropID, a.Owner, a.Collector, a.Guardian)
				}
				collects[a.Collector]++
				guards[a.Guardian]++
			}
			for _, d := range tt.drops {
				if collects[d.Owner] != 1 || guards[d.Owner] != 1 {
					t.Errorf("player %s collects %d and guards %d drops, want 1 and 1", d.Owner, collects[d.Owner], guards[d.Owner])
				}
			}
		})
	}
}

func TestAssignRingTwoDrops(t *testing.T) {
	out, err := game.AssignRing([]game.DropRef{{"d1", "a"}, {"d2", "b"}}, game.NewRand(1))
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range out {
		if a.Guardian != a.Owner {
			t.Errorf("drop %s guardian = %s, want owner %s", a.DropID, a.Guardian, a.Owner)
		}
		if a.Collector == a.Owner {
			t.Errorf("drop %s collected by its owner", a.DropID)
		}
	}
}

func TestAssignRingNeedsTwoDrops(t *testing.T) {
	for _, drops := range [][]game.DropRef{nil, {{"d1", "a"}}} {
		if _, err := game.AssignRing(drops, game.NewRand(1)); err == nil {
			t.Errorf("AssignRing(%d drops) succeeded, want error", len(drops))
		}
	}
}

func TestNextCameraPhase(t *testing.T) {
	warmup, active := 10*time.Second, 30*time.Second
	tests := []struct {
		cur     game.CameraPhase
		inPhase time.Duration
		want    game.CameraPhase
	}{
		{game.CameraIdle, time.Hour, game.CameraIdle},
		{game.CameraWarming, 9 * time.Second, game.CameraWarming},
		{game.CameraWarming, 10 * time.Second, game.CameraActive},
		{game.CameraActive, 29 * time.Second, game.CameraActive},
		{game.CameraActive, 30 * time.Second, game.CameraIdle},
	}
	for _, tt := range tests {
		if got := game.NextCameraPhase(tt.cur, tt.inPhase, warmup, active); got != tt.want {
			t.Errorf("NextCameraPhase(%s, %s) = %s, want %s", tt.cur, tt.inPhase, got, tt.want)
		}
	}
}

func TestSafeZoneScore(t *testing.T) {
	tests := []struct {
		score, since float64
		want         float64
	}{
		{0, 0, 60},
		{0, 40, 40},
		{25, 40, 65},
		{10, 200, 10},
		{0, 119, 1},
	}
	for _, tt := range tests {
		if got := game.SafeZoneScore(tt.score, 60, 0.5, tt.since); got != tt.want {
			t.Errorf("SafeZoneScore(%v, after %vs) = %v, want %v", tt.score, tt.since, got, tt.want)
		}
	}
}

func TestPhaseOf(t *testing.T) {
	tests := []struct {
		mode game.ModeID
		w    bitstate.Word
		want game.Phase
	}{
		{game.ModeTerritory, bitstate.MatchOpen, game.PhaseLobby},
		{game.ModeTerritory, bitstate.MatchOpen | bitstate.MatchRunning, game.PhaseRunning},
		{game.ModeDeadDrop, bitstate.MatchOpen | bitstate.MatchRunning, game.PhaseDrop},
		{game.ModeDeadDrop, bitstate.MatchOpen | bitstate.MatchRunning | bitstate.MatchSubPhase, game.PhaseCollect},
		{game.ModeDeadDrop, bitstate.MatchOpen | bitstate.MatchRunning | bitstate.MatchSubPhase | bitstate.MatchEnded, game.PhaseEnded},
		{game.ModeRabbit, bitstate.MatchOpen | bitstate.MatchEnded, game.PhaseClosed},
		{game.ModeRabbit, 0, game.PhaseClosed},
	}
	for _, tt := range tests {
		if got := game.PhaseOf(tt.mode, tt.w); got != tt.want {
			t.Errorf("PhaseOf(%s, %s) = %s, want %s", tt.mode, tt.w, got, tt.want)
		}
	}
}
