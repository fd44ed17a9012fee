package middleware

import (
	"errors"
	"log"

	"spot-game-server/entitylog"
	"spot-game-server/store"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

// Locals set by SessionMiddleware.
const (
	LocalSessionID = "session_id"
	LocalPlayerID  = "player_id"
	LocalDeviceID  = "device_id"
)

// SessionMiddleware resolves the caller's session from the X-Session-ID
// header or the sessionID field of a JSON body and exposes the player and
// device on the context.
func SessionMiddleware(sessions store.Sessions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get("X-Session-ID")
		if id == "" && len(c.Body()) > 0 {
			var body struct {
				SessionID string `json:"sessionID"`
			}
			if err := json.Unmarshal(c.Body(), &body); err == nil {
				id = body.SessionID
			}
		}
		if id == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"kind":    "ValidationError",
				"message": "Missing session ID",
			})
		}

		sess, err := sessions.Verify(c.UserContext(), id)
		if errors.Is(err, entitylog.ErrNotFound) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"kind":    "NotFoundError",
				"message": "Session not found or already ended",
			})
		}
		if err != nil {
			log.Printf("❌ [SESSION] verify %s failed: %v", id, err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"kind":    "StoreUnavailable",
				"message": "session store unavailable",
			})
		}

		c.Locals(LocalSessionID, sess.ID)
		c.Locals(LocalPlayerID, sess.Username)
		c.Locals(LocalDeviceID, sess.DeviceID)
		return c.Next()
	}
}
