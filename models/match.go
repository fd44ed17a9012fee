package models

import (
	"time"

	"spot-game-server/game"
)

// Match is the immutable part of a match (match_data). StartedAt is written
// once when the lobby starts.
type Match struct {
	ID              string          `gorm:"primaryKey;type:uuid" json:"id"`
	Name            string          `gorm:"type:varchar(64);not null" json:"name"`
	Slug            string          `gorm:"type:varchar(80);index" json:"slug"`
	Mode            int             `gorm:"not null;check:mode BETWEEN 1 AND 5" json:"mode"`
	DurationMinutes float64         `gorm:"not null" json:"duration_minutes"`
	Bounds          string          `gorm:"type:text;not null" json:"bounds"` // EWKT
	CreatorID       string          `gorm:"index" json:"creator_id"`
	Config          game.ModeConfig `gorm:"serializer:json;type:jsonb" json:"config"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CreatedAt       time.Time       `gorm:"index" json:"created_at"`
}

func (Match) TableName() string { return "match_data" }
