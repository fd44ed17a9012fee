package game

import (
	"context"
	"fmt"
	"log"

	"spot-game-server/bitstate"
	"spot-game-server/geo"
)

// runRules evaluates every participating player once. A failing player is
// logged and skipped; listing the players is the only failure that aborts
// the build.
func (e *Engine) runRules(ctx context.Context, info MatchInfo, state MatchState, mode Mode) error {
	players, err := e.joined(ctx, info.ID)
	if err != nil {
		return err
	}
	for _, p := range players {
		if err := e.evaluatePlayer(ctx, info, state, mode, p.ID); err != nil {
			log.Printf("[Rules] match %s player %s: %v", info.ID, p.ID, err)
		}
	}
	return nil
}

func (e *Engine) evaluatePlayer(ctx context.Context, info MatchInfo, state MatchState, mode Mode, playerID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Kind: KindRule, Message: fmt.Sprint(r)}
		}
	}()

	// Earlier players in this pass may have changed this row.
	cur, err := e.player(ctx, info.ID, playerID)
	if err != nil {
		return &Error{Kind: KindRule, Message: "load player", Err: err}
	}
	p := Player{ID: playerID, PlayerState: cur}
	if !p.State.Has(bitstate.PlayerJoined) {
		return nil
	}

	pos, ok, err := e.position(ctx, playerID)
	if err != nil {
		return &Error{Kind: KindRule, Message: "load position", Err: err}
	}
	var at *geo.Point
	if ok {
		at = &pos
		if e.EnforceBounds && bitstate.InProgress(state.State) {
			inside, err := e.Geo.Contains(ctx, info.Bounds, pos)
			if err != nil {
				return &Error{Kind: KindRule, Message: "boundary check", Err: storeErr("boundary check", err)}
			}
			if !inside {
				log.Printf("[Rules] match %s player %s left the bounds, removing", info.ID, playerID)
				if err := e.leave(ctx, info, playerID); err != nil {
					return &Error{Kind: KindRule, Message: "forced leave", Err: err}
				}
				return nil
			}
		}
	}

	if err := mode.evaluate(ctx, info, state, requireParticipating(p), at); err != nil {
		return &Error{Kind: KindRule, Message: mode.ID().String(), Err: err}
	}
	return nil
}

// requireParticipating guards the mode rules: evaluating a player without the
// joined bit is a bug in the caller.
func requireParticipating(p Player) Player {
	if !p.State.Has(bitstate.PlayerJoined) {
		panic(fmt.Sprintf("rules evaluated for non-participating player %s (state %s)", p.ID, p.State))
	}
	return p
}
