package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"spot-game-server/game"
	"spot-game-server/geo/raster"
	"spot-game-server/snapshot"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
)

// Config is the server configuration read from the environment.
type Config struct {
	Port           string
	DatabaseURL    string
	Store          string // postgres | memory
	GeoEngine      string // postgis | raster
	RasterGrid     raster.Grid
	CacheBackend   string // memory | s3
	S3             snapshot.S3Config
	RefreshWindow  time.Duration
	StaleAfter     time.Duration
	EnforceBounds  bool
	EnforceTimers  bool
	AllowedOrigins string
	TuningPath     string
	GPSRatePerSec  float64
}

// Load reads .env (when present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	c := &Config{
		Port:           env("PORT", "5200"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		Store:          env("STORE", "postgres"),
		GeoEngine:      env("GEO_ENGINE", "postgis"),
		CacheBackend:   env("CACHE_BACKEND", "memory"),
		AllowedOrigins: originList(env("ALLOWED_ORIGINS", "http://localhost:3000")),
		TuningPath:     os.Getenv("GAME_TUNING_PATH"),
		S3: snapshot.S3Config{
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          os.Getenv("S3_REGION"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("S3_ACCESS_KEY_SECRET"),
		},
	}

	var err error
	if c.RefreshWindow, err = duration("CACHE_REFRESH_WINDOW", snapshot.DefaultRefreshWindow); err != nil {
		return nil, err
	}
	if c.StaleAfter, err = duration("CACHE_STALE_AFTER", snapshot.DefaultStaleAfter); err != nil {
		return nil, err
	}
	if c.EnforceBounds, err = boolean("RULES", true); err != nil {
		return nil, err
	}
	if c.EnforceTimers, err = boolean("ENABLE_TIMER", true); err != nil {
		return nil, err
	}
	if c.GPSRatePerSec, err = float("GPS_RATE_PER_SEC", 2); err != nil {
		return nil, err
	}

	if c.Store == "postgres" && c.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	if c.GeoEngine == "postgis" && c.Store != "postgres" {
		return nil, fmt.Errorf("GEO_ENGINE=postgis needs STORE=postgres")
	}
	if c.GeoEngine == "raster" {
		if c.RasterGrid, err = ParseGrid(os.Getenv("RASTER_GRID")); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ParseGrid reads "minLong,minLat,cell,cols,rows".
func ParseGrid(s string) (raster.Grid, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 5 {
		return raster.Grid{}, fmt.Errorf("RASTER_GRID must be minLong,minLat,cell,cols,rows, got %q", s)
	}
	var nums [5]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return raster.Grid{}, fmt.Errorf("RASTER_GRID field %d: %w", i+1, err)
		}
		nums[i] = f
	}
	return raster.Grid{
		MinLong: nums[0],
		MinLat:  nums[1],
		Cell:    nums[2],
		Cols:    int(nums[3]),
		Rows:    int(nums[4]),
	}, nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	log.Printf("⚠️  %s not set, using default: %s", key, def)
	return def
}

func originList(s string) string {
	list := strings.Split(s, ",")
	for i, o := range list {
		list[i] = strings.TrimSpace(o)
	}
	return strings.Join(list, ",")
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func boolean(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func float(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

var (
	tuning     game.Tuning
	tuningOnce sync.Once
	tuningErr  error
)

// LoadTuning reads the gameplay overrides at path once. Fields missing from
// the file keep their defaults; an empty path yields the defaults.
func LoadTuning(path string) (game.Tuning, error) {
	tuningOnce.Do(func() {
		tuning = game.DefaultTuning()
		if path == "" {
			return
		}
		data, err := os.ReadFile(path)
		if err != nil {
			tuningErr = fmt.Errorf("failed to read game tuning: %w", err)
			return
		}
		if err := json.Unmarshal(data, &tuning); err != nil {
			tuningErr = fmt.Errorf("failed to unmarshal game tuning: %w", err)
		}
	})
	return tuning, tuningErr
}
