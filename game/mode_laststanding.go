package game

import (
	"context"

	"spot-game-server/geo"
)

// lastStanding has no rules beyond the boundary; leaving the bounds removes a
// player and the match ends when one player is left.
type lastStanding struct{ e *Engine }

func (lastStanding) ID() ModeID { return ModeLastStanding }

func (lastStanding) setup(context.Context, MatchInfo) error { return nil }

func (lastStanding) start(context.Context, MatchInfo, []Player) error { return nil }

func (lastStanding) advance(_ context.Context, _ MatchInfo, state MatchState) (MatchState, error) {
	return state, nil
}

func (lastStanding) evaluate(context.Context, MatchInfo, MatchState, Player, *geo.Point) error {
	return nil
}

func (l lastStanding) ended(ctx context.Context, info MatchInfo, _ MatchState) (bool, error) {
	players, err := l.e.joined(ctx, info.ID)
	if err != nil {
		return false, err
	}
	return len(players) <= 1, nil
}

func (lastStanding) visible(Object) bool { return false }
