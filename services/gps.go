package services

import (
	"fmt"
	"log"
	"sync"

	"spot-game-server/game"
	"spot-game-server/geo"
	"spot-game-server/middleware"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/gofiber/fiber/v2"
)

const (
	fixFilterSize = 1_000_000
	fixFilterFP   = 0.001
)

// fixFilter drops GPS reports a device has already sent. Clients retry
// uploads, so the same fix can arrive several times. The filter is replaced
// once it has seen its estimated capacity.
type fixFilter struct {
	mu     sync.Mutex
	seen   *bloom.BloomFilter
	filled uint
}

func newFixFilter() *fixFilter {
	return &fixFilter{seen: bloom.NewWithEstimates(fixFilterSize, fixFilterFP)}
}

// firstSighting records key and reports whether it was new.
func (f *fixFilter) firstSighting(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen.TestString(key) {
		return false
	}
	if f.filled >= fixFilterSize {
		log.Println("[GPS] resetting duplicate filter")
		f.seen = bloom.NewWithEstimates(fixFilterSize, fixFilterFP)
		f.filled = 0
	}
	f.seen.AddString(key)
	f.filled++
	return true
}

type gpsRequest struct {
	Lat      float64 `json:"lat"`
	Long     float64 `json:"long"`
	Accuracy float64 `json:"acc"`
	Speed    float64 `json:"spd"`
	Time     string  `json:"time"`
}

// LogGPS stores a position fix for the session's player.
func (s *GameService) LogGPS(c *fiber.Ctx) error {
	var req gpsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Lat < -90 || req.Lat > 90 || req.Long < -180 || req.Long > 180 {
		return badRequest(c, "coordinates out of range")
	}

	device, _ := c.Locals(middleware.LocalDeviceID).(string)
	key := fmt.Sprintf("%s|%s|%.7f|%.7f", device, req.Time, req.Lat, req.Long)
	if req.Time != "" && !s.fixes.firstSighting(key) {
		return c.JSON(fiber.Map{"message": "duplicate fix ignored"})
	}

	p := geo.Point{Lat: req.Lat, Long: req.Long}
	if err := s.Engine.Positions.Record(c.UserContext(), playerID(c), p); err != nil {
		return respondError(c, &game.Error{Kind: game.KindUnavailable, Message: "record position", Err: err})
	}
	return c.JSON(fiber.Map{"message": "position recorded"})
}
