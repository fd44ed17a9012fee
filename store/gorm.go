package store

import (
	"context"
	"time"

	"spot-game-server/bitstate"
	"spot-game-server/entitylog"
	"spot-game-server/game"
	"spot-game-server/geo"
	"spot-game-server/models"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// Gorm is the postgres-backed store bundle.
type Gorm struct {
	DB        *gorm.DB
	Matches   entitylog.Log[game.MatchKey, game.MatchState]
	Players   entitylog.Log[game.PlayerKey, game.PlayerState]
	Objects   entitylog.Log[game.ObjectKey, game.ObjectState]
	Catalog   *GormCatalog
	Positions *GormPositions
	Sessions  *GormSessions
}

// Migrate creates or updates every table the server uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Match{},
		&models.MatchStatusLog{},
		&models.PlayerStateLog{},
		&models.ObjectStatusLog{},
		&models.Session{},
		&models.PositionFix{},
	)
}

func NewGorm(db *gorm.DB, clock clockwork.Clock) *Gorm {
	return &Gorm{
		DB: db,
		Matches: &gormLog[game.MatchKey, game.MatchState, models.MatchStatusLog]{db: db, clock: clock, c: codec[game.MatchKey, game.MatchState, models.MatchStatusLog]{
			table:    "match_status_log",
			keyCols:  "match_id",
			keyWhere: "match_id = ?",
			where:    func(k game.MatchKey) []any { return []any{k.MatchID} },
			toRow: func(k game.MatchKey, v game.MatchState, at time.Time) models.MatchStatusLog {
				return models.MatchStatusLog{MatchID: k.MatchID, State: uint8(v.State), Status: v.Status, LogTime: at}
			},
			fromRow: func(r models.MatchStatusLog) (game.MatchKey, entitylog.Entry[game.MatchState]) {
				return game.MatchKey{MatchID: r.MatchID}, entitylog.Entry[game.MatchState]{
					Seq: r.Seq, LogTime: r.LogTime,
					Value: game.MatchState{State: bitstate.Word(r.State), Status: r.Status},
				}
			},
		}},
		Players: &gormLog[game.PlayerKey, game.PlayerState, models.PlayerStateLog]{db: db, clock: clock, c: codec[game.PlayerKey, game.PlayerState, models.PlayerStateLog]{
			table:    "player_state_log",
			keyCols:  "match_id, player_id",
			keyWhere: "match_id = ? AND player_id = ?",
			where:    func(k game.PlayerKey) []any { return []any{k.MatchID, k.PlayerID} },
			toRow: func(k game.PlayerKey, v game.PlayerState, at time.Time) models.PlayerStateLog {
				return models.PlayerStateLog{
					MatchID: k.MatchID, PlayerID: k.PlayerID, Team: v.Team,
					State: uint8(v.State), Score: v.Score, Config: v.Config, LogTime: at,
				}
			},
			fromRow: func(r models.PlayerStateLog) (game.PlayerKey, entitylog.Entry[game.PlayerState]) {
				return game.PlayerKey{MatchID: r.MatchID, PlayerID: r.PlayerID}, entitylog.Entry[game.PlayerState]{
					Seq: r.Seq, LogTime: r.LogTime,
					Value: game.PlayerState{Team: r.Team, State: bitstate.Word(r.State), Score: r.Score, Config: r.Config},
				}
			},
		}},
		Objects: &gormLog[game.ObjectKey, game.ObjectState, models.ObjectStatusLog]{db: db, clock: clock, c: codec[game.ObjectKey, game.ObjectState, models.ObjectStatusLog]{
			table:    "object_status_log",
			keyCols:  "match_id, object_id",
			keyWhere: "match_id = ? AND object_id = ?",
			where:    func(k game.ObjectKey) []any { return []any{k.MatchID, k.ObjectID} },
			toRow: func(k game.ObjectKey, v game.ObjectState, at time.Time) models.ObjectStatusLog {
				return models.ObjectStatusLog{
					MatchID: k.MatchID, ObjectID: k.ObjectID, Kind: string(v.Kind), Owner: v.Owner, Holder: v.Holder,
					Position: string(v.Position), State: uint8(v.State), Status: v.Status, LogTime: at,
				}
			},
			fromRow: func(r models.ObjectStatusLog) (game.ObjectKey, entitylog.Entry[game.ObjectState]) {
				return game.ObjectKey{MatchID: r.MatchID, ObjectID: r.ObjectID}, entitylog.Entry[game.ObjectState]{
					Seq: r.Seq, LogTime: r.LogTime,
					Value: game.ObjectState{
						Kind: game.ObjectKind(r.Kind), Owner: r.Owner, Holder: r.Holder,
						Position: geo.Geometry(r.Position), State: bitstate.Word(r.State), Status: r.Status,
					},
				}
			},
		}},
		Catalog:   &GormCatalog{DB: db},
		Positions: &GormPositions{DB: db, clock: clock},
		Sessions:  &GormSessions{DB: db, clock: clock},
	}
}

func (g *Gorm) Stores() game.Stores {
	return game.Stores{
		Matches:   g.Matches,
		Players:   g.Players,
		Objects:   g.Objects,
		Catalog:   g.Catalog,
		Positions: g.Positions,
	}
}

// GormCatalog stores match_data rows.
type GormCatalog struct {
	DB *gorm.DB
}

func matchRow(info game.MatchInfo) models.Match {
	return models.Match{
		ID:              info.ID,
		Name:            info.Name,
		Slug:            info.Slug,
		Mode:            int(info.Mode),
		DurationMinutes: info.DurationMinutes,
		Bounds:          string(info.Bounds),
		CreatorID:       info.CreatorID,
		Config:          info.Config,
		StartedAt:       info.StartedAt,
		CreatedAt:       info.CreatedAt,
	}
}

func matchInfo(m models.Match) game.MatchInfo {
	return game.MatchInfo{
		ID:              m.ID,
		Name:            m.Name,
		Slug:            m.Slug,
		Mode:            game.ModeID(m.Mode),
		DurationMinutes: m.DurationMinutes,
		Bounds:          geo.Geometry(m.Bounds),
		CreatorID:       m.CreatorID,
		CreatedAt:       m.CreatedAt,
		StartedAt:       m.StartedAt,
		Config:          m.Config,
	}
}

func (c *GormCatalog) Create(ctx context.Context, info game.MatchInfo, initial game.MatchState) error {
	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := matchRow(info)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return tx.Create(&models.MatchStatusLog{
			MatchID: info.ID,
			State:   uint8(initial.State),
			Status:  initial.Status,
			LogTime: info.CreatedAt,
		}).Error
	})
	return dbErr("create match", err)
}

func (c *GormCatalog) Get(ctx context.Context, matchID string) (game.MatchInfo, error) {
	var m models.Match
	if err := c.DB.WithContext(ctx).First(&m, "id = ?", matchID).Error; err != nil {
		return game.MatchInfo{}, dbErr("get match", err)
	}
	return matchInfo(m), nil
}

func (c *GormCatalog) MarkStarted(ctx context.Context, matchID string, at time.Time) (time.Time, error) {
	db := c.DB.WithContext(ctx)
	err := db.Model(&models.Match{}).
		Where("id = ? AND started_at IS NULL", matchID).
		Update("started_at", at).Error
	if err != nil {
		return time.Time{}, dbErr("mark started", err)
	}
	var m models.Match
	if err := db.Select("started_at").First(&m, "id = ?", matchID).Error; err != nil {
		return time.Time{}, dbErr("mark started", err)
	}
	if m.StartedAt == nil {
		return at, nil
	}
	return *m.StartedAt, nil
}

func (c *GormCatalog) List(ctx context.Context) ([]game.MatchInfo, error) {
	var rows []models.Match
	if err := c.DB.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, dbErr("list matches", err)
	}
	out := make([]game.MatchInfo, len(rows))
	for i, r := range rows {
		out[i] = matchInfo(r)
	}
	return out, nil
}
