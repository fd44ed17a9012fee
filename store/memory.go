package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"spot-game-server/entitylog"
	"spot-game-server/game"

	"github.com/jonboulle/clockwork"
)

// Memory is the in-process store bundle used by tests and STORE=memory.
type Memory struct {
	Matches   *entitylog.Memory[game.MatchKey, game.MatchState]
	Players   *entitylog.Memory[game.PlayerKey, game.PlayerState]
	Objects   *entitylog.Memory[game.ObjectKey, game.ObjectState]
	Catalog   *MemoryCatalog
	Positions *MemoryPositions
	Sessions  *MemorySessions
}

func NewMemory(clock clockwork.Clock) *Memory {
	matches := entitylog.NewMemory[game.MatchKey, game.MatchState](clock)
	return &Memory{
		Matches:   matches,
		Players:   entitylog.NewMemory[game.PlayerKey, game.PlayerState](clock),
		Objects:   entitylog.NewMemory[game.ObjectKey, game.ObjectState](clock),
		Catalog:   &MemoryCatalog{matches: matches, info: make(map[string]game.MatchInfo)},
		Positions: NewMemoryPositions(clock),
		Sessions:  NewMemorySessions(clock),
	}
}

func (m *Memory) Stores() game.Stores {
	return game.Stores{
		Matches:   m.Matches,
		Players:   m.Players,
		Objects:   m.Objects,
		Catalog:   m.Catalog,
		Positions: m.Positions,
	}
}

// MemoryCatalog keeps match info in a map and writes the initial state row
// to the match log under its own lock.
type MemoryCatalog struct {
	mu      sync.Mutex
	matches entitylog.Log[game.MatchKey, game.MatchState]
	info    map[string]game.MatchInfo
}

func (c *MemoryCatalog) Create(ctx context.Context, info game.MatchInfo, initial game.MatchState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.info[info.ID]; ok {
		return fmt.Errorf("create match %s: %w: duplicate id", info.ID, entitylog.ErrUnavailable)
	}
	_, err := c.matches.Append(ctx, game.MatchKey{MatchID: info.ID}, func(game.MatchState, bool) (game.MatchState, error) {
		return initial, nil
	})
	if err != nil {
		return err
	}
	c.info[info.ID] = info
	return nil
}

func (c *MemoryCatalog) Get(_ context.Context, matchID string) (game.MatchInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.info[matchID]
	if !ok {
		return game.MatchInfo{}, entitylog.ErrNotFound
	}
	return info, nil
}

func (c *MemoryCatalog) MarkStarted(_ context.Context, matchID string, at time.Time) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.info[matchID]
	if !ok {
		return time.Time{}, entitylog.ErrNotFound
	}
	if info.StartedAt == nil {
		info.StartedAt = &at
		c.info[matchID] = info
	}
	return *info.StartedAt, nil
}

func (c *MemoryCatalog) List(_ context.Context) ([]game.MatchInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]game.MatchInfo, 0, len(c.info))
	for _, info := range c.info {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
