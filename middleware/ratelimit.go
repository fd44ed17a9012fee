package middleware

import (
	"log"
	"math"
	"sync"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// DeviceRateLimit allows each device perSec requests per second with a
// matching burst. It must run after SessionMiddleware.
func DeviceRateLimit(perSec float64) fiber.Handler {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)
	burst := int(math.Max(1, math.Ceil(perSec)))
	limiterFor := func(device string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[device]
		if !ok {
			l = rate.NewLimiter(rate.Limit(perSec), burst)
			limiters[device] = l
		}
		return l
	}

	return func(c *fiber.Ctx) error {
		device, _ := c.Locals(LocalDeviceID).(string)
		if device == "" {
			device = c.IP()
		}
		if !limiterFor(device).Allow() {
			log.Printf("⚠️  [RATE] device %s over %.1f req/s on %s", device, perSec, c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"kind":    "ValidationError",
				"message": "too many requests",
			})
		}
		return c.Next()
	}
}
