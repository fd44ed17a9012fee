package game

import "time"

// Tuning holds the gameplay constants. Distances are in degrees.
type Tuning struct {
	// Dead drop
	DropDelay          float64 `json:"drop_delay_sec"`
	CollectDelay       float64 `json:"collect_delay_sec"`
	MovementThreshold  float64 `json:"movement_threshold"`
	PickupDistance     float64 `json:"pickup_distance"`
	SafeDistance       float64 `json:"safe_distance"`
	DropScoreFactor    float64 `json:"drop_score_factor"`
	NoDropPenalty      float64 `json:"no_drop_penalty"`
	SafeBasePoints     float64 `json:"safe_base_points"`
	SafeDecayPerSecond float64 `json:"safe_decay_per_sec"`
	CameraWarmup       float64 `json:"camera_warmup_sec"`
	CameraPenalty      float64 `json:"camera_penalty"`

	// Chase the rabbit
	PelletInterval     float64 `json:"pellet_interval_sec"`
	LandmineInterval   float64 `json:"landmine_interval_sec"`
	TrapInterval       float64 `json:"trap_interval_sec"`
	PelletDropValue    float64 `json:"pellet_drop_value"`
	PelletCollectValue float64 `json:"pellet_collect_value"`
	LandminePenalty    float64 `json:"landmine_penalty"`
	CaptureBonus       float64 `json:"capture_bonus"`
	TouchDistance      float64 `json:"touch_distance"`
	RabbitCapacity     int     `json:"rabbit_capacity"`
	FoxCapacity        int     `json:"fox_capacity"`
	PelletChance       int     `json:"pellet_chance"`

	// Capture the flag
	TagDistance       float64 `json:"tag_distance"`
	FlagCapturePoints float64 `json:"flag_capture_points"`

	// Territory
	TrailBuffer float64 `json:"trail_buffer"`

	// Match creation
	DefaultCameras int `json:"default_cameras"`
}

func DefaultTuning() Tuning {
	return Tuning{
		DropDelay:          10,
		CollectDelay:       5,
		MovementThreshold:  0.00015,
		PickupDistance:     0.00015,
		SafeDistance:       0.00015,
		DropScoreFactor:    20000,
		NoDropPenalty:      -10,
		SafeBasePoints:     60,
		SafeDecayPerSecond: 0.5,
		CameraWarmup:       10,
		CameraPenalty:      1,

		PelletInterval:     30,
		LandmineInterval:   60,
		TrapInterval:       60,
		PelletDropValue:    10,
		PelletCollectValue: 5,
		LandminePenalty:    30,
		CaptureBonus:       50,
		TouchDistance:      0.00015,
		RabbitCapacity:     3,
		FoxCapacity:        2,
		PelletChance:       150,

		TagDistance:       0.00015,
		FlagCapturePoints: 100,

		TrailBuffer: 0.00009,

		DefaultCameras: 10,
	}
}

func seconds(f float64) time.Duration { return time.Duration(f * float64(time.Second)) }

func minutes(f float64) time.Duration { return time.Duration(f * float64(time.Minute)) }
