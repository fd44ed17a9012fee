package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"spot-game-server/entitylog"
	"spot-game-server/game"
	"spot-game-server/geo"
	"spot-game-server/models"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// GormPositions stores GPS fixes in geo_data.
type GormPositions struct {
	DB    *gorm.DB
	clock clockwork.Clock
}

func (p *GormPositions) Record(ctx context.Context, playerID string, pt geo.Point) error {
	err := p.DB.WithContext(ctx).Create(&models.PositionFix{
		PlayerID:   playerID,
		Lat:        pt.Lat,
		Long:       pt.Long,
		RecordedAt: p.clock.Now(),
	}).Error
	return dbErr("record position", err)
}

func (p *GormPositions) Latest(ctx context.Context, playerID string) (game.Fix, error) {
	var f models.PositionFix
	err := p.DB.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("recorded_at DESC, seq DESC").
		Take(&f).Error
	if err != nil {
		return game.Fix{}, dbErr("latest position", err)
	}
	return game.Fix{Point: geo.Point{Lat: f.Lat, Long: f.Long}, At: f.RecordedAt}, nil
}

func (p *GormPositions) Since(ctx context.Context, playerID string, since time.Time) ([]game.Fix, error) {
	var rows []models.PositionFix
	err := p.DB.WithContext(ctx).
		Where("player_id = ? AND recorded_at >= ?", playerID, since).
		Order("recorded_at ASC, seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, dbErr("recent positions", err)
	}
	out := make([]game.Fix, len(rows))
	for i, f := range rows {
		out[i] = game.Fix{Point: geo.Point{Lat: f.Lat, Long: f.Long}, At: f.RecordedAt}
	}
	return out, nil
}

// MemoryPositions keeps fixes per player in arrival order.
type MemoryPositions struct {
	mu    sync.RWMutex
	clock clockwork.Clock
	fixes map[string][]game.Fix
}

func NewMemoryPositions(clock clockwork.Clock) *MemoryPositions {
	return &MemoryPositions{clock: clock, fixes: make(map[string][]game.Fix)}
}

func (p *MemoryPositions) Record(_ context.Context, playerID string, pt geo.Point) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fixes[playerID] = append(p.fixes[playerID], game.Fix{Point: pt, At: p.clock.Now()})
	return nil
}

func (p *MemoryPositions) Latest(_ context.Context, playerID string) (game.Fix, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fixes := p.fixes[playerID]
	if len(fixes) == 0 {
		return game.Fix{}, entitylog.ErrNotFound
	}
	return fixes[len(fixes)-1], nil
}

func (p *MemoryPositions) Since(_ context.Context, playerID string, since time.Time) ([]game.Fix, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fixes := p.fixes[playerID]
	i := sort.Search(len(fixes), func(i int) bool { return !fixes[i].At.Before(since) })
	out := make([]game.Fix, len(fixes)-i)
	copy(out, fixes[i:])
	return out, nil
}
