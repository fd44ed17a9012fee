package game

import (
	"context"
	"time"

	"spot-game-server/bitstate"
	"spot-game-server/geo"
)

// Snapshot is the view of a match handed to polling clients.
type Snapshot struct {
	Match   MatchView    `json:"match"`
	Players []PlayerView `json:"players"`
}

type PhaseTimestamps struct {
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CollectStartedAt *time.Time `json:"collect_started_at,omitempty"`
	FirstSafeTime    *time.Time `json:"first_safe_time,omitempty"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	BuiltAt          time.Time  `json:"built_at"`
}

type MatchView struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Mode            ModeID          `json:"mode"`
	State           string          `json:"state"`
	Phase           Phase           `json:"phase"`
	DurationMinutes float64         `json:"duration_minutes"`
	PhaseTimestamps PhaseTimestamps `json:"phase_timestamps"`
	Extras          []ObjectView    `json:"extras"`
}

type PlayerView struct {
	ID        string       `json:"id"`
	State     string       `json:"state"`
	Score     float64      `json:"score"`
	Team      string       `json:"team,omitempty"`
	Position  *geo.Point   `json:"position,omitempty"`
	Inventory []ObjectView `json:"inventory"`
}

type ObjectView struct {
	ID        string       `json:"id"`
	Kind      ObjectKind   `json:"kind"`
	Owner     string       `json:"owner,omitempty"`
	State     string       `json:"state"`
	Position  *geo.Point   `json:"position,omitempty"`
	Area      geo.Geometry `json:"area,omitempty"`
	Team      string       `json:"team,omitempty"`
	Collector string       `json:"collector,omitempty"`
	Guardian  string       `json:"guardian,omitempty"`
	Radius    float64      `json:"radius,omitempty"`
}

func viewOf(o Object) ObjectView {
	v := ObjectView{
		ID:        o.ID,
		Kind:      o.Kind,
		Owner:     o.Owner,
		State:     o.State.String(),
		Team:      o.Status.Team,
		Collector: o.Status.Collector,
		Guardian:  o.Status.Guardian,
		Radius:    o.Status.Radius,
	}
	if p, ok := geo.ParsePoint(o.Position); ok {
		v.Position = &p
	} else {
		v.Area = o.Position
	}
	return v
}

// Build advances the match, runs the rules for every participating player
// and composes the snapshot from the resulting latest rows.
func (e *Engine) Build(ctx context.Context, matchID string) (Snapshot, error) {
	info, state, err := e.match(ctx, matchID)
	if err != nil {
		return Snapshot{}, err
	}
	if state, err = e.advance(ctx, info, state); err != nil {
		return Snapshot{}, err
	}
	return e.compose(ctx, info, state)
}

func (e *Engine) compose(ctx context.Context, info MatchInfo, state MatchState) (Snapshot, error) {
	mode := e.mustMode(info.Mode)
	players, err := e.players(ctx, info.ID)
	if err != nil {
		return Snapshot{}, err
	}
	objects, err := e.objects(ctx, info.ID)
	if err != nil {
		return Snapshot{}, err
	}

	inventory := make(map[string][]ObjectView)
	extras := []ObjectView{}
	for _, o := range objects {
		switch {
		case o.Consumed():
		case o.Holder != "":
			inventory[o.Holder] = append(inventory[o.Holder], viewOf(o))
		case o.Placed() && mode.visible(o):
			extras = append(extras, viewOf(o))
		}
	}

	snap := Snapshot{
		Match: MatchView{
			ID:              info.ID,
			Name:            info.Name,
			Mode:            info.Mode,
			State:           state.State.String(),
			Phase:           PhaseOf(info.Mode, state.State),
			DurationMinutes: info.DurationMinutes,
			PhaseTimestamps: PhaseTimestamps{
				CreatedAt:        info.CreatedAt,
				StartedAt:        info.StartedAt,
				CollectStartedAt: state.Status.CollectStartedAt,
				FirstSafeTime:    state.Status.FirstSafeTime,
				EndedAt:          state.Status.EndedAt,
				BuiltAt:          e.now(),
			},
			Extras: extras,
		},
		Players: []PlayerView{},
	}
	for _, p := range players {
		if !bitstate.Listed(p.State) {
			continue
		}
		v := PlayerView{
			ID:        p.ID,
			State:     p.State.String(),
			Score:     p.Score,
			Team:      p.Team,
			Inventory: inventory[p.ID],
		}
		if v.Inventory == nil {
			v.Inventory = []ObjectView{}
		}
		pos, ok, err := e.position(ctx, p.ID)
		if err != nil {
			return Snapshot{}, err
		}
		if ok {
			v.Position = &pos
		}
		snap.Players = append(snap.Players, v)
	}
	return snap, nil
}
