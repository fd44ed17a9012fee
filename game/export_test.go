package game

import "context"

var RequireParticipating = requireParticipating

// EvaluatePlayer runs the per-player rules for one player as a build would.
func (e *Engine) EvaluatePlayer(ctx context.Context, matchID, playerID string) error {
	info, state, err := e.match(ctx, matchID)
	if err != nil {
		return err
	}
	return e.evaluatePlayer(ctx, info, state, e.mustMode(info.Mode), playerID)
}
