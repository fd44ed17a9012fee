package models

import (
	"time"

	"spot-game-server/game"
)

// The three entity logs. Rows are only ever inserted; Seq orders rows that
// share a log time.

type MatchStatusLog struct {
	Seq     int64            `gorm:"primaryKey;autoIncrement"`
	MatchID string           `gorm:"type:uuid;not null;index:idx_match_status_match"`
	State   uint8            `gorm:"type:smallint;not null"`
	Status  game.MatchStatus `gorm:"serializer:json;type:jsonb"`
	LogTime time.Time        `gorm:"not null"`
}

func (MatchStatusLog) TableName() string { return "match_status_log" }

type PlayerStateLog struct {
	Seq      int64             `gorm:"primaryKey;autoIncrement"`
	MatchID  string            `gorm:"type:uuid;not null;index:idx_player_state_key,priority:1"`
	PlayerID string            `gorm:"type:varchar(64);not null;index:idx_player_state_key,priority:2"`
	Team     string            `gorm:"type:varchar(32)"`
	State    uint8             `gorm:"type:smallint;not null"`
	Score    float64           `gorm:"not null;default:0"`
	Config   game.PlayerConfig `gorm:"serializer:json;type:jsonb"`
	LogTime  time.Time         `gorm:"not null"`
}

func (PlayerStateLog) TableName() string { return "player_state_log" }

type ObjectStatusLog struct {
	Seq      int64             `gorm:"primaryKey;autoIncrement"`
	MatchID  string            `gorm:"type:uuid;not null;index:idx_object_status_key,priority:1"`
	ObjectID string            `gorm:"type:varchar(80);not null;index:idx_object_status_key,priority:2"`
	Kind     string            `gorm:"type:varchar(32);not null"`
	Owner    string            `gorm:"type:varchar(64)"`
	Holder   string            `gorm:"type:varchar(64)"`
	Position string            `gorm:"type:text"` // EWKT or engine encoding; empty when held
	State    uint8             `gorm:"type:smallint;not null"`
	Status   game.ObjectStatus `gorm:"serializer:json;type:jsonb"`
	LogTime  time.Time         `gorm:"not null"`
}

func (ObjectStatusLog) TableName() string { return "object_status_log" }
