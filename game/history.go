package game

import (
	"context"
	"errors"
	"sort"
	"time"

	"spot-game-server/bitstate"
	"spot-game-server/entitylog"
)

// MatchSummary is a match line in lobby and history listings.
type MatchSummary struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Slug            string    `json:"slug"`
	Mode            ModeID    `json:"mode"`
	DurationMinutes float64   `json:"duration_minutes"`
	State           string    `json:"state"`
	Players         int       `json:"players"`
	CreatedAt       time.Time `json:"created_at"`
	Phase           Phase     `json:"phase"`
}

func (e *Engine) summaries(ctx context.Context, keep func(MatchInfo, MatchState) bool) ([]MatchSummary, error) {
	matches, err := e.Catalog.List(ctx)
	if err != nil {
		return nil, storeErr("list matches", err)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })

	var out []MatchSummary
	for _, m := range matches {
		st, err := e.Matches.Latest(ctx, MatchKey{m.ID})
		if errors.Is(err, entitylog.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, storeErr("load match state", err)
		}
		if !keep(m, st.Value) {
			continue
		}
		players, err := e.joined(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, MatchSummary{
			ID:              m.ID,
			Name:            m.Name,
			Slug:            m.Slug,
			Mode:            m.Mode,
			DurationMinutes: m.DurationMinutes,
			State:           st.Value.State.String(),
			Players:         len(players),
			CreatedAt:       m.CreatedAt,
			Phase:           PhaseOf(m.Mode, st.Value.State),
		})
	}
	return out, nil
}

// JoinableMatches lists the matches still in the lobby, newest first.
func (e *Engine) JoinableMatches(ctx context.Context) ([]MatchSummary, error) {
	return e.summaries(ctx, func(_ MatchInfo, st MatchState) bool {
		return bitstate.InLobby(st.State)
	})
}

// RunningMatches lists the matches currently in progress.
func (e *Engine) RunningMatches(ctx context.Context) ([]MatchSummary, error) {
	return e.summaries(ctx, func(_ MatchInfo, st MatchState) bool {
		return bitstate.InProgress(st.State)
	})
}

// PlayedMatches lists ended matches the player took part in.
func (e *Engine) PlayedMatches(ctx context.Context, playerID string) ([]MatchSummary, error) {
	var lookupErr error
	out, err := e.summaries(ctx, func(m MatchInfo, st MatchState) bool {
		if !bitstate.Ended(st.State) || !st.State.Has(bitstate.MatchRunning) || lookupErr != nil {
			return false
		}
		p, err := e.Players.Latest(ctx, PlayerKey{m.ID, playerID})
		if errors.Is(err, entitylog.ErrNotFound) {
			return false
		}
		if err != nil {
			lookupErr = storeErr("load player", err)
			return false
		}
		return p.Value.State.Has(bitstate.PlayerPlayed)
	})
	if lookupErr != nil {
		return nil, lookupErr
	}
	return out, err
}

// Results returns the final rows of an ended match, best score first.
func (e *Engine) Results(ctx context.Context, matchID string) ([]PlayerView, error) {
	_, state, err := e.match(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !bitstate.Ended(state.State) {
		return nil, validationf("match %s has not ended", matchID)
	}
	players, err := e.players(ctx, matchID)
	if err != nil {
		return nil, err
	}
	out := []PlayerView{}
	for _, p := range players {
		if !bitstate.Listed(p.State) {
			continue
		}
		out = append(out, PlayerView{ID: p.ID, State: p.State.String(), Score: p.Score, Team: p.Team, Inventory: []ObjectView{}})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// Inventory lists the objects the player is holding.
func (e *Engine) Inventory(ctx context.Context, matchID, playerID string) ([]ObjectView, error) {
	if _, err := e.player(ctx, matchID, playerID); err != nil {
		return nil, err
	}
	objects, err := e.objects(ctx, matchID)
	if err != nil {
		return nil, err
	}
	out := []ObjectView{}
	for _, o := range objects {
		if o.Holder == playerID && !o.Consumed() {
			out = append(out, viewOf(o))
		}
	}
	return out, nil
}
