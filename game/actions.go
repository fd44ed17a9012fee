package game

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"spot-game-server/bitstate"
	"spot-game-server/entitylog"
	"spot-game-server/geo"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// CreateRequest describes a new match.
type CreateRequest struct {
	Name            string       `json:"name"`
	Mode            ModeID       `json:"mode"`
	DurationMinutes float64      `json:"duration"`
	Bounds          geo.Geometry `json:"bounds"`
	CreatorID       string       `json:"creator_id"`
	Config          ModeConfig   `json:"config"`
}

// CreateMatch stores a new match in the lobby and runs the mode's setup.
func (e *Engine) CreateMatch(ctx context.Context, req CreateRequest) (MatchInfo, error) {
	req.Name = strings.TrimSpace(req.Name)
	switch {
	case req.Name == "":
		return MatchInfo{}, validationf("name is required")
	case !req.Mode.Valid():
		return MatchInfo{}, validationf("unknown mode %d", int(req.Mode))
	case req.DurationMinutes <= 0:
		return MatchInfo{}, validationf("duration must be positive")
	}
	if _, err := geo.Rings(req.Bounds); err != nil {
		return MatchInfo{}, validationf("bounds: %v", err)
	}
	if req.Mode == ModeDeadDrop {
		if req.Config.DropPhaseMinutes <= 0 {
			req.Config.DropPhaseMinutes = req.DurationMinutes / 2
		}
		if req.Config.Cameras != nil {
			if req.Config.Cameras.Count <= 0 {
				req.Config.Cameras.Count = e.Tuning.DefaultCameras
			}
			if req.Config.Cameras.MaxActive <= 0 {
				req.Config.Cameras.MaxActive = 1
			}
		}
	}

	info := MatchInfo{
		ID:              uuid.NewString(),
		Name:            req.Name,
		Slug:            slug.Make(req.Name),
		Mode:            req.Mode,
		DurationMinutes: req.DurationMinutes,
		Bounds:          req.Bounds,
		CreatorID:       req.CreatorID,
		CreatedAt:       e.now(),
		Config:          req.Config,
	}
	if err := e.Catalog.Create(ctx, info, MatchState{State: bitstate.MatchOpen}); err != nil {
		return MatchInfo{}, storeErr("create match", err)
	}
	if err := e.mustMode(info.Mode).setup(ctx, info); err != nil {
		return MatchInfo{}, err
	}
	log.Printf("[Match] created %s (%s, %s)", info.ID, info.Name, info.Mode)
	return info, nil
}

// Join adds the player to a lobby. In capture the flag the player goes to
// the team with fewer members.
func (e *Engine) Join(ctx context.Context, matchID, playerID string) error {
	if playerID == "" {
		return validationf("player id is required")
	}
	info, state, err := e.match(ctx, matchID)
	if err != nil {
		return err
	}
	if !bitstate.InLobby(state.State) {
		return notFoundf("match %s is not joinable", matchID)
	}

	team := ""
	if info.Mode == ModeCaptureFlag {
		if team, err = e.smallestTeam(ctx, info); err != nil {
			return err
		}
	}
	_, err = e.updatePlayer(ctx, matchID, playerID, func(p *PlayerState, _ bool) error {
		if p.State.Has(bitstate.PlayerJoined) {
			return validationf("already joined")
		}
		p.State = bitstate.Set(p.State, bitstate.PlayerJoined)
		if team != "" {
			p.Team = team
		}
		return nil
	})
	return err
}

func (e *Engine) smallestTeam(ctx context.Context, info MatchInfo) (string, error) {
	teams, err := teamsOf(info)
	if err != nil {
		return "", err
	}
	players, err := e.joined(ctx, info.ID)
	if err != nil {
		return "", err
	}
	counts := make(map[string]int, len(teams))
	for _, p := range players {
		counts[p.Team]++
	}
	best := teams[0].Name
	for _, t := range teams[1:] {
		if counts[t.Name] < counts[best] {
			best = t.Name
		}
	}
	return best, nil
}

// Leave removes the player. The row keeps only the has-played bit so the
// player cannot rejoin a running match.
func (e *Engine) Leave(ctx context.Context, matchID, playerID string) error {
	info, _, err := e.match(ctx, matchID)
	if err != nil {
		return err
	}
	return e.leave(ctx, info, playerID)
}

func (e *Engine) leave(ctx context.Context, info MatchInfo, playerID string) error {
	_, err := e.updatePlayer(ctx, info.ID, playerID, func(p *PlayerState, exists bool) error {
		if !exists || !p.State.Has(bitstate.PlayerJoined) {
			return notFoundf("player %s is not in match %s", playerID, info.ID)
		}
		p.State &= bitstate.PlayerPlayed
		return nil
	})
	if err != nil {
		return err
	}
	if info.Mode == ModeCaptureFlag {
		flags, err := e.objectsOf(ctx, info.ID, KindFlag)
		if err != nil {
			return err
		}
		for _, f := range flags {
			if f.Holder == playerID {
				if err := (captureFlag{e}).respawn(ctx, info, f.Status.Team); err != nil {
					return err
				}
			}
		}
	}
	log.Printf("[Match] player %s left %s", playerID, info.ID)
	return nil
}

// Ready toggles the player's ready bit in the lobby and starts the match
// once everyone is ready.
func (e *Engine) Ready(ctx context.Context, matchID, playerID string) (bool, error) {
	info, state, err := e.match(ctx, matchID)
	if err != nil {
		return false, err
	}
	if !bitstate.InLobby(state.State) {
		return false, validationf("match %s is not in the lobby", matchID)
	}
	_, err = e.updatePlayer(ctx, matchID, playerID, func(p *PlayerState, exists bool) error {
		if !exists || !p.State.Has(bitstate.PlayerJoined) {
			return notFoundf("player %s is not in match %s", playerID, matchID)
		}
		p.State = bitstate.Toggle(p.State, bitstate.PlayerReady)
		if info.Mode == ModeCaptureFlag && p.Team != "" {
			p.Config.ZoneID = zoneID(p.Team)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return e.TryStart(ctx, matchID)
}

// Action is a player action as sent by a client.
type Action struct {
	Type string `json:"type"`
	Item string `json:"item,omitempty"`
}

// Act dispatches a client action and returns a short acknowledgement.
func (e *Engine) Act(ctx context.Context, matchID, playerID string, a Action) (string, error) {
	switch strings.ToLower(a.Type) {
	case "ready":
		started, err := e.Ready(ctx, matchID, playerID)
		if err != nil {
			return "", err
		}
		if started {
			return "match started", nil
		}
		return "ready toggled", nil
	case "drop":
		return "dropped", e.Drop(ctx, matchID, playerID)
	case "collect":
		return "collected", e.Collect(ctx, matchID, playerID)
	case "place":
		return "placed", e.PlaceItem(ctx, matchID, playerID, ObjectKind(strings.ToLower(a.Item)))
	case "tag":
		return e.Tag(ctx, matchID, playerID)
	case "pickup":
		return "flag picked up", e.PickupFlag(ctx, matchID, playerID)
	case "":
		return "", validationf("action type is required")
	}
	return "", validationf("unknown action %q", a.Type)
}

// CloseStaleLobbies closes every lobby created before cutoff.
func (e *Engine) CloseStaleLobbies(ctx context.Context, cutoff time.Time) (int, error) {
	matches, err := e.Catalog.List(ctx)
	if err != nil {
		return 0, storeErr("list matches", err)
	}
	closed := 0
	for _, m := range matches {
		if !m.CreatedAt.Before(cutoff) {
			continue
		}
		st, err := e.Matches.Latest(ctx, MatchKey{m.ID})
		if errors.Is(err, entitylog.ErrNotFound) {
			continue
		}
		if err != nil {
			return closed, storeErr("load match state", err)
		}
		if !bitstate.InLobby(st.Value.State) {
			continue
		}
		_, ok, err := e.transition(ctx, m.ID, "close lobby", func(s *MatchState) bool {
			if !bitstate.InLobby(s.State) {
				return false
			}
			s.State = bitstate.Set(s.State, bitstate.MatchEnded|bitstate.MatchOpen)
			return true
		})
		if err != nil {
			return closed, err
		}
		if ok {
			closed++
		}
	}
	return closed, nil
}
