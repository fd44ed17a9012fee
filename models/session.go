package models

import (
	"time"

	"gorm.io/gorm"
)

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// Session is a logged-in device. A username or device has at most one active
// session.
type Session struct {
	ID       string    `gorm:"primaryKey;type:uuid" json:"session_id"`
	Username string    `gorm:"type:varchar(18);index;not null" json:"username"`
	DeviceID string    `gorm:"type:varchar(18);index;not null" json:"device_id"`
	Active   bool      `gorm:"index;not null;default:true" json:"active"`
	LastSeen time.Time `gorm:"index" json:"last_seen"`

	Timestamps
}

// PositionFix is one GPS report (geo_data).
type PositionFix struct {
	Seq        int64     `gorm:"primaryKey;autoIncrement"`
	PlayerID   string    `gorm:"type:varchar(64);not null;index:idx_geo_player_time,priority:1"`
	Lat        float64   `gorm:"not null"`
	Long       float64   `gorm:"not null"`
	RecordedAt time.Time `gorm:"not null;index:idx_geo_player_time,priority:2"`
}

func (PositionFix) TableName() string { return "geo_data" }
