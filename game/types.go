package game

import (
	"fmt"
	"time"

	"spot-game-server/bitstate"
	"spot-game-server/geo"
)

// ModeID is the game type a match is played as.
type ModeID int

const (
	ModeTerritory    ModeID = 1 // king of the hill
	ModeDeadDrop     ModeID = 2
	ModeRabbit       ModeID = 3 // chase the rabbit
	ModeCaptureFlag  ModeID = 4
	ModeLastStanding ModeID = 5
)

func (m ModeID) Valid() bool { return m >= ModeTerritory && m <= ModeLastStanding }

func (m ModeID) String() string {
	switch m {
	case ModeTerritory:
		return "territory"
	case ModeDeadDrop:
		return "dead-drop"
	case ModeRabbit:
		return "chase-the-rabbit"
	case ModeCaptureFlag:
		return "capture-the-flag"
	case ModeLastStanding:
		return "last-standing"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ObjectKind enumerates placed objects.
type ObjectKind string

const (
	KindTrail     ObjectKind = "trail"
	KindTerritory ObjectKind = "territory"
	KindStart     ObjectKind = "starting-location"
	KindDeadDrop  ObjectKind = "dead-drop"
	KindLandmine  ObjectKind = "landmine"
	KindTrap      ObjectKind = "trap"
	KindPellet    ObjectKind = "pellet"
	KindFlag      ObjectKind = "flag"
	KindZone      ObjectKind = "zone"
	KindCamera    ObjectKind = "camera"
)

// MatchKey, PlayerKey and ObjectKey address the three entity logs. All of
// them partition by match.
type MatchKey struct{ MatchID string }

func (k MatchKey) Partition() string { return k.MatchID }

type PlayerKey struct{ MatchID, PlayerID string }

func (k PlayerKey) Partition() string { return k.MatchID }

type ObjectKey struct{ MatchID, ObjectID string }

func (k ObjectKey) Partition() string { return k.MatchID }

// CameraSettings configures the simulated cameras of a dead drop match.
type CameraSettings struct {
	Count       int     `json:"count"`
	MaxActive   int     `json:"max_active"`
	MinDuration float64 `json:"min_duration_sec"`
	MaxDuration float64 `json:"max_duration_sec"`
	MinRadius   float64 `json:"min_radius"`
	MaxRadius   float64 `json:"max_radius"`
}

// TeamConfig describes one side of a capture the flag match.
type TeamConfig struct {
	Name   string       `json:"name"`
	Zone   geo.Geometry `json:"zone,omitempty"`
	Spawns []geo.Point  `json:"spawns,omitempty"`
}

// ModeConfig holds the mode-specific settings fixed at creation.
type ModeConfig struct {
	DropPhaseMinutes float64         `json:"drop_phase_minutes,omitempty"`
	Cameras          *CameraSettings `json:"cameras,omitempty"`
	Teams            []TeamConfig    `json:"teams,omitempty"`
}

// MatchInfo is the immutable part of a match. StartedAt is written once.
type MatchInfo struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Slug            string       `json:"slug"`
	Mode            ModeID       `json:"mode"`
	DurationMinutes float64      `json:"duration_minutes"`
	Bounds          geo.Geometry `json:"bounds"`
	CreatorID       string       `json:"creator_id"`
	CreatedAt       time.Time    `json:"created_at"`
	StartedAt       *time.Time   `json:"started_at,omitempty"`
	Config          ModeConfig   `json:"config"`
}

// MatchStatus is the match status-config: bookkeeping that may still be
// written after the match ends.
type MatchStatus struct {
	FirstSafeTime    *time.Time `json:"first_safe_time,omitempty"`
	CollectStartedAt *time.Time `json:"collect_started_at,omitempty"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
}

// MatchState is one row of the match log.
type MatchState struct {
	State  bitstate.Word `json:"state"`
	Status MatchStatus   `json:"status"`
}

// PlayerConfig is the per-player config map.
type PlayerConfig struct {
	ZoneID      string     `json:"zone_id,omitempty"`
	LastGrantAt *time.Time `json:"last_grant_at,omitempty"`
	LastDropAt  *time.Time `json:"last_drop_at,omitempty"`
}

// PlayerState is one row of the player-in-match log.
type PlayerState struct {
	Team   string        `json:"team,omitempty"`
	State  bitstate.Word `json:"state"`
	Score  float64       `json:"score"`
	Config PlayerConfig  `json:"config"`
}

// ObjectStatus is the object status-config: relational fields and timers.
type ObjectStatus struct {
	Collector    string     `json:"collector,omitempty"`
	Guardian     string     `json:"guardian,omitempty"`
	Team         string     `json:"team,omitempty"`
	PhaseStarted *time.Time `json:"phase_started,omitempty"`
	Duration     float64    `json:"duration_sec,omitempty"`
	Radius       float64    `json:"radius,omitempty"`
}

// ObjectState is one row of the placed-object log. An empty Position means
// the object is held or not placed.
type ObjectState struct {
	Kind     ObjectKind    `json:"kind"`
	Owner    string        `json:"owner,omitempty"`
	Holder   string        `json:"holder,omitempty"`
	Position geo.Geometry  `json:"position,omitempty"`
	State    bitstate.Word `json:"state"`
	Status   ObjectStatus  `json:"status"`
}

// Consumed reports whether the object has been retired.
func (o ObjectState) Consumed() bool { return o.State.Has(bitstate.ObjectConsumed) }

// Placed reports whether the object sits on the map.
func (o ObjectState) Placed() bool { return !o.Position.Empty() && !o.Consumed() }

// Player is a player id with its latest row.
type Player struct {
	ID string
	PlayerState
}

// Object is an object id with its latest row.
type Object struct {
	ID string
	ObjectState
}
