package game

import (
	"context"
	"log"

	"spot-game-server/bitstate"
)

// Phase names the stage a match word encodes.
type Phase string

const (
	PhaseLobby   Phase = "lobby"
	PhaseRunning Phase = "running"
	PhaseDrop    Phase = "drop"
	PhaseCollect Phase = "collect"
	PhaseEnded   Phase = "ended"
	PhaseClosed  Phase = "closed"
)

// PhaseOf decodes a match state word.
func PhaseOf(mode ModeID, w bitstate.Word) Phase {
	switch {
	case bitstate.Ended(w) && !w.Has(bitstate.MatchRunning):
		return PhaseClosed
	case bitstate.Ended(w):
		return PhaseEnded
	case bitstate.InLobby(w):
		return PhaseLobby
	case bitstate.InProgress(w) && mode == ModeDeadDrop:
		if w.Has(bitstate.MatchSubPhase) {
			return PhaseCollect
		}
		return PhaseDrop
	case bitstate.InProgress(w):
		return PhaseRunning
	}
	return PhaseClosed
}

// TryStart moves a lobby to running when at least two players are joined and
// every one of them is ready. It reports whether the match started.
func (e *Engine) TryStart(ctx context.Context, matchID string) (bool, error) {
	info, state, err := e.match(ctx, matchID)
	if err != nil {
		return false, err
	}
	if !bitstate.InLobby(state.State) {
		return false, nil
	}
	players, err := e.joined(ctx, matchID)
	if err != nil {
		return false, err
	}
	if len(players) < 2 {
		return false, nil
	}
	ready := bitstate.PlayerJoined | bitstate.PlayerReady
	for _, p := range players {
		if !bitstate.Matches(p.State, ready, ready) {
			return false, nil
		}
	}

	_, started, err := e.transition(ctx, matchID, "start match", func(s *MatchState) bool {
		if !bitstate.InLobby(s.State) {
			return false
		}
		s.State = bitstate.Set(s.State, bitstate.MatchRunning)
		return true
	})
	if err != nil {
		return false, err
	}
	if !started {
		return false, nil
	}

	at, err := e.Catalog.MarkStarted(ctx, matchID, e.now())
	if err != nil {
		return false, storeErr("record start time", err)
	}
	info.StartedAt = &at

	for i, p := range players {
		updated, err := e.updatePlayer(ctx, matchID, p.ID, func(s *PlayerState, _ bool) error {
			s.State = bitstate.Set(s.State, bitstate.PlayerPlayed)
			return nil
		})
		if err != nil {
			return false, err
		}
		players[i].PlayerState = updated
	}
	if err := e.mustMode(info.Mode).start(ctx, info, players); err != nil {
		return false, err
	}
	log.Printf("[Phase] match %s started with %d players", matchID, len(players))
	return true, nil
}

// advance applies every due transition of a running match: the overall
// timer, the mode's sub-phases and its termination predicate. Player rules
// run between the mode tick and the termination check.
func (e *Engine) advance(ctx context.Context, info MatchInfo, state MatchState) (MatchState, error) {
	if !bitstate.InProgress(state.State) {
		return state, nil
	}
	if e.timeUp(info) {
		return e.end(ctx, info.ID, "duration elapsed")
	}
	mode := e.mustMode(info.Mode)
	state, err := mode.advance(ctx, info, state)
	if err != nil {
		return state, err
	}
	if !bitstate.InProgress(state.State) {
		return state, nil
	}
	if err := e.runRules(ctx, info, state, mode); err != nil {
		return state, err
	}
	done, err := mode.ended(ctx, info, state)
	if err != nil {
		return state, err
	}
	if done {
		return e.end(ctx, info.ID, "mode finished")
	}
	return state, nil
}

func (e *Engine) timeUp(info MatchInfo) bool {
	if !e.EnforceTimers || info.StartedAt == nil {
		return false
	}
	return e.elapsed(info) >= minutes(info.DurationMinutes)
}

// end sets the terminal bit and the end time. A build that lost the race to
// another one gets the already ended state back.
func (e *Engine) end(ctx context.Context, matchID, reason string) (MatchState, error) {
	st, ended, err := e.transition(ctx, matchID, "end match", func(s *MatchState) bool {
		s.State = bitstate.Set(s.State, bitstate.MatchEnded)
		if s.Status.EndedAt == nil {
			s.Status.EndedAt = ptr(e.now())
		}
		return true
	})
	if err != nil {
		return MatchState{}, err
	}
	if ended {
		log.Printf("[Phase] match %s ended: %s", matchID, reason)
	}
	return st, nil
}
