package game

import (
	"context"
	"fmt"

	"spot-game-server/geo"
)

// Mode is the behaviour of one game type. The set of implementations is
// closed: the methods are unexported.
type Mode interface {
	ID() ModeID
	// setup runs once when the match is created.
	setup(ctx context.Context, info MatchInfo) error
	// start runs once when the match leaves the lobby.
	start(ctx context.Context, info MatchInfo, players []Player) error
	// advance runs once per build before player rules: sub-phase
	// transitions and match-wide ticks.
	advance(ctx context.Context, info MatchInfo, state MatchState) (MatchState, error)
	// evaluate runs the per-player rules. at is nil when the player has not
	// reported a position.
	evaluate(ctx context.Context, info MatchInfo, state MatchState, p Player, at *geo.Point) error
	// ended is the mode's termination predicate.
	ended(ctx context.Context, info MatchInfo, state MatchState) (bool, error)
	// visible filters the placed objects shown in the snapshot extras.
	visible(o Object) bool
}

// ModeFor selects the implementation for a mode id.
func (e *Engine) ModeFor(id ModeID) (Mode, error) {
	switch id {
	case ModeTerritory:
		return territory{e}, nil
	case ModeDeadDrop:
		return deadDrop{e}, nil
	case ModeRabbit:
		return rabbit{e}, nil
	case ModeCaptureFlag:
		return captureFlag{e}, nil
	case ModeLastStanding:
		return lastStanding{e}, nil
	}
	return nil, validationf("unknown mode %d", int(id))
}

func (e *Engine) mustMode(id ModeID) Mode {
	m, err := e.ModeFor(id)
	if err != nil {
		panic(fmt.Sprintf("match with invalid mode %d", int(id)))
	}
	return m
}
