package game

import (
	"context"
	"errors"
	"time"

	"spot-game-server/bitstate"
	"spot-game-server/entitylog"
	"spot-game-server/geo"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Catalog stores the immutable part of every match.
type Catalog interface {
	// Create inserts the match and its first state row as one atomic unit.
	Create(ctx context.Context, info MatchInfo, initial MatchState) error
	Get(ctx context.Context, matchID string) (MatchInfo, error)
	// MarkStarted records the start time unless one is already set and
	// returns the effective start time.
	MarkStarted(ctx context.Context, matchID string, at time.Time) (time.Time, error)
	List(ctx context.Context) ([]MatchInfo, error)
}

// Fix is one GPS position report.
type Fix struct {
	Point geo.Point
	At    time.Time
}

// PositionLog stores GPS fixes per player.
type PositionLog interface {
	Record(ctx context.Context, playerID string, p geo.Point) error
	// Latest returns entitylog.ErrNotFound when the player never reported.
	Latest(ctx context.Context, playerID string) (Fix, error)
	Since(ctx context.Context, playerID string, since time.Time) ([]Fix, error)
}

// Stores bundles the persistence the engine runs on.
type Stores struct {
	Matches   entitylog.Log[MatchKey, MatchState]
	Players   entitylog.Log[PlayerKey, PlayerState]
	Objects   entitylog.Log[ObjectKey, ObjectState]
	Catalog   Catalog
	Positions PositionLog
}

// Config carries the engine's policies and collaborators. Zero fields get
// defaults.
type Config struct {
	Clock         clockwork.Clock
	Rand          Rand
	Tuning        *Tuning
	EnforceBounds bool
	EnforceTimers bool
}

// Engine runs phases, rules and player actions over the entity logs. It keeps
// no match state of its own between calls.
type Engine struct {
	Stores
	Geo    geo.Engine
	Clock  clockwork.Clock
	Rand   Rand
	Tuning Tuning

	EnforceBounds bool
	EnforceTimers bool
}

func NewEngine(stores Stores, g geo.Engine, cfg Config) *Engine {
	e := &Engine{
		Stores:        stores,
		Geo:           g,
		Clock:         cfg.Clock,
		Rand:          cfg.Rand,
		Tuning:        DefaultTuning(),
		EnforceBounds: cfg.EnforceBounds,
		EnforceTimers: cfg.EnforceTimers,
	}
	if e.Clock == nil {
		e.Clock = clockwork.NewRealClock()
	}
	if e.Rand == nil {
		e.Rand = NewRand(time.Now().UnixNano())
	}
	if cfg.Tuning != nil {
		e.Tuning = *cfg.Tuning
	}
	return e
}

func (e *Engine) now() time.Time { return e.Clock.Now() }

func (e *Engine) match(ctx context.Context, matchID string) (MatchInfo, MatchState, error) {
	info, err := e.Catalog.Get(ctx, matchID)
	if err != nil {
		if errors.Is(err, entitylog.ErrNotFound) {
			return MatchInfo{}, MatchState{}, notFoundf("match %s not found", matchID)
		}
		return MatchInfo{}, MatchState{}, storeErr("load match", err)
	}
	st, err := e.Matches.Latest(ctx, MatchKey{matchID})
	if err != nil {
		return MatchInfo{}, MatchState{}, storeErr("load match state", err)
	}
	return info, st.Value, nil
}

// transition applies fn inside the append, against the true latest row. fn
// reports whether it changed the row and must leave it untouched otherwise.
// An ended match never transitions. Callers run a transition's side effects
// only when it reports true, so concurrent builds apply them once.
func (e *Engine) transition(ctx context.Context, matchID, op string, fn func(s *MatchState) bool) (MatchState, bool, error) {
	won := false
	row, err := e.Matches.Append(ctx, MatchKey{matchID}, func(prev MatchState, exists bool) (MatchState, error) {
		won = false
		if !exists {
			return prev, notFoundf("match %s not found", matchID)
		}
		if bitstate.Ended(prev.State) {
			return prev, nil
		}
		won = fn(&prev)
		return prev, nil
	})
	if err != nil {
		return MatchState{}, false, storeErr(op, err)
	}
	return row.Value, won, nil
}

// updateMatchStatus writes status-config bookkeeping. It is allowed after
// the match ends.
func (e *Engine) updateMatchStatus(ctx context.Context, matchID string, fn func(*MatchStatus)) (MatchState, error) {
	row, err := e.Matches.Append(ctx, MatchKey{matchID}, func(prev MatchState, exists bool) (MatchState, error) {
		if !exists {
			return prev, notFoundf("match %s not found", matchID)
		}
		fn(&prev.Status)
		return prev, nil
	})
	return row.Value, storeErr("update match status", err)
}

func (e *Engine) player(ctx context.Context, matchID, playerID string) (PlayerState, error) {
	row, err := e.Players.Latest(ctx, PlayerKey{matchID, playerID})
	if errors.Is(err, entitylog.ErrNotFound) {
		return PlayerState{}, notFoundf("player %s is not in match %s", playerID, matchID)
	}
	return row.Value, storeErr("load player", err)
}

// updatePlayer appends a row derived from the player's latest row. fn sees
// whether a row existed before.
func (e *Engine) updatePlayer(ctx context.Context, matchID, playerID string, fn func(p *PlayerState, exists bool) error) (PlayerState, error) {
	row, err := e.Players.Append(ctx, PlayerKey{matchID, playerID}, func(prev PlayerState, exists bool) (PlayerState, error) {
		if err := fn(&prev, exists); err != nil {
			return prev, err
		}
		return prev, nil
	})
	return row.Value, storeErr("update player", err)
}

func (e *Engine) addScore(ctx context.Context, matchID, playerID string, delta float64) error {
	if delta == 0 {
		return nil
	}
	_, err := e.updatePlayer(ctx, matchID, playerID, func(p *PlayerState, exists bool) error {
		if !exists {
			return notFoundf("player %s is not in match %s", playerID, matchID)
		}
		p.Score += delta
		return nil
	})
	return err
}

func (e *Engine) players(ctx context.Context, matchID string) ([]Player, error) {
	rows, err := e.Players.LatestIn(ctx, matchID)
	if err != nil {
		return nil, storeErr("list players", err)
	}
	out := make([]Player, len(rows))
	for i, r := range rows {
		out[i] = Player{ID: r.Key.PlayerID, PlayerState: r.Entry.Value}
	}
	return out, nil
}

// joined returns the players currently holding the joined bit.
func (e *Engine) joined(ctx context.Context, matchID string) ([]Player, error) {
	all, err := e.players(ctx, matchID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if p.State.Has(bitstate.PlayerJoined) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (e *Engine) objects(ctx context.Context, matchID string) ([]Object, error) {
	rows, err := e.Objects.LatestIn(ctx, matchID)
	if err != nil {
		return nil, storeErr("list objects", err)
	}
	out := make([]Object, len(rows))
	for i, r := range rows {
		out[i] = Object{ID: r.Key.ObjectID, ObjectState: r.Entry.Value}
	}
	return out, nil
}

func (e *Engine) objectsOf(ctx context.Context, matchID string, kind ObjectKind) ([]Object, error) {
	all, err := e.objects(ctx, matchID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, o := range all {
		if o.Kind == kind {
			out = append(out, o)
		}
	}
	return out, nil
}

func (e *Engine) createObject(ctx context.Context, matchID string, o ObjectState) (string, error) {
	id := uuid.NewString()
	_, err := e.Objects.Append(ctx, ObjectKey{matchID, id}, func(ObjectState, bool) (ObjectState, error) {
		return o, nil
	})
	return id, storeErr("create object", err)
}

func (e *Engine) updateObject(ctx context.Context, matchID, objectID string, fn func(o *ObjectState) error) (ObjectState, error) {
	row, err := e.Objects.Append(ctx, ObjectKey{matchID, objectID}, func(prev ObjectState, exists bool) (ObjectState, error) {
		if !exists {
			return prev, notFoundf("object %s not found", objectID)
		}
		if err := fn(&prev); err != nil {
			return prev, err
		}
		return prev, nil
	})
	return row.Value, storeErr("update object", err)
}

// retire marks an object consumed and takes it off the map and out of any
// inventory.
func (e *Engine) retire(ctx context.Context, matchID, objectID string) error {
	_, err := e.updateObject(ctx, matchID, objectID, func(o *ObjectState) error {
		o.State = bitstate.Set(o.State, bitstate.ObjectConsumed)
		o.Position = ""
		o.Holder = ""
		return nil
	})
	return err
}

// position returns the player's latest fix. ok is false when the player has
// never reported one.
func (e *Engine) position(ctx context.Context, playerID string) (geo.Point, bool, error) {
	fix, err := e.Positions.Latest(ctx, playerID)
	if errors.Is(err, entitylog.ErrNotFound) {
		return geo.Point{}, false, nil
	}
	if err != nil {
		return geo.Point{}, false, storeErr("load position", err)
	}
	return fix.Point, true, nil
}

// stationary reports whether every fix of the last window stays within the
// movement threshold of the latest fix.
func (e *Engine) stationary(ctx context.Context, playerID string, window time.Duration) (geo.Point, error) {
	latest, ok, err := e.position(ctx, playerID)
	if err != nil {
		return geo.Point{}, err
	}
	if !ok {
		return geo.Point{}, validationf("no position reported yet")
	}
	fixes, err := e.Positions.Since(ctx, playerID, e.now().Add(-window))
	if err != nil {
		return geo.Point{}, storeErr("load recent positions", err)
	}
	for _, f := range fixes {
		if geo.Distance(f.Point, latest) > e.Tuning.MovementThreshold {
			return geo.Point{}, validationf("hold still for %s", window)
		}
	}
	return latest, nil
}

// elapsed is the time since the match started, zero before the start.
func (e *Engine) elapsed(info MatchInfo) time.Duration {
	if info.StartedAt == nil {
		return 0
	}
	return e.now().Sub(*info.StartedAt)
}

func ptr[T any](v T) *T { return &v }
