package services

import (
	"errors"
	"log"
	"strings"
	"time"

	"spot-game-server/game"
	"spot-game-server/geo"
	"spot-game-server/middleware"
	"spot-game-server/snapshot"
	"spot-game-server/store"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"golang.org/x/text/unicode/norm"
)

// SessionIdle is how long a session may go without requests before it is
// logged out.
const SessionIdle = 30 * time.Minute

type GameService struct {
	Engine   *game.Engine
	Sessions store.Sessions
	Cache    *snapshot.Cache[game.Snapshot]
	Clock    clockwork.Clock

	fixes *fixFilter
}

func NewGameService(engine *game.Engine, sessions store.Sessions, cache *snapshot.Cache[game.Snapshot]) *GameService {
	return &GameService{
		Engine:   engine,
		Sessions: sessions,
		Cache:    cache,
		Clock:    engine.Clock,
		fixes:    newFixFilter(),
	}
}

type gameRequest struct {
	GameID string `json:"gameID"`
}

type loginRequest struct {
	Username string `json:"username"`
	DeviceID string `json:"deviceID"`
}

type createRequest struct {
	GameName string          `json:"gameName"`
	Type     game.ModeID     `json:"type"`
	Duration float64         `json:"duration"`
	Bounds   string          `json:"bounds"`
	Config   game.ModeConfig `json:"config"`
}

type actionRequest struct {
	GameID     string `json:"gameID"`
	ActionData *struct {
		Type string `json:"type"`
		Item string `json:"item"`
	} `json:"actionData"`
}

func playerID(c *fiber.Ctx) string {
	id, _ := c.Locals(middleware.LocalPlayerID).(string)
	return id
}

// respondError writes err as {kind, message} with a status for its kind.
func respondError(c *fiber.Ctx, err error) error {
	kind := game.KindOf(err)
	status := fiber.StatusInternalServerError
	switch kind {
	case game.KindValidation:
		status = fiber.StatusBadRequest
	case game.KindNotFound:
		status = fiber.StatusNotFound
	case game.KindUnavailable:
		status = fiber.StatusServiceUnavailable
	}
	if status >= 500 {
		log.Printf("❌ [API] %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{"kind": kind, "message": game.MessageOf(err)})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"kind": game.KindValidation, "message": msg})
}

func gameID(c *fiber.Ctx) (string, bool) {
	var req gameRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.GameID) == "" {
		return "", false
	}
	return req.GameID, true
}

// Login starts a session for a username on a device.
func (s *GameService) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	// NFC so visually identical names collide on the active-session check.
	req.Username = norm.NFC.String(strings.TrimSpace(req.Username))
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	switch {
	case req.Username == "":
		return badRequest(c, "No username provided")
	case len(req.Username) > 18:
		return badRequest(c, "Username too long")
	case req.DeviceID == "":
		return badRequest(c, "No device id provided")
	case len(req.DeviceID) > 18:
		return badRequest(c, "Device id too long")
	}

	ctx := c.UserContext()
	if _, err := s.Sessions.ExpireInactive(ctx, s.Clock.Now().Add(-SessionIdle)); err != nil {
		log.Printf("[Session] expire before login failed: %v", err)
	}
	sess, err := s.Sessions.Login(ctx, req.Username, req.DeviceID)
	if errors.Is(err, store.ErrUsernameActive) || errors.Is(err, store.ErrDeviceActive) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"kind": game.KindValidation, "message": err.Error()})
	}
	if err != nil {
		return respondError(c, &game.Error{Kind: game.KindUnavailable, Message: "login failed", Err: err})
	}
	log.Printf("✅ [Session] %s logged in on %s", sess.Username, sess.DeviceID)
	return c.JSON(fiber.Map{"sessionID": sess.ID})
}

func (s *GameService) Logout(c *fiber.Ctx) error {
	id, _ := c.Locals(middleware.LocalSessionID).(string)
	if err := s.Sessions.Logout(c.UserContext(), id); err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"kind":    game.KindNotFound,
			"message": "Session not found or already ended",
		})
	}
	return c.JSON(fiber.Map{"message": "Successfully logged out user"})
}

func (s *GameService) JoinableGames(c *fiber.Ctx) error {
	list, err := s.Engine.JoinableMatches(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	if list == nil {
		list = []game.MatchSummary{}
	}
	return c.JSON(fiber.Map{"gameList": list})
}

func (s *GameService) CreateGame(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	info, err := s.Engine.CreateMatch(c.UserContext(), game.CreateRequest{
		Name:            req.GameName,
		Mode:            req.Type,
		DurationMinutes: req.Duration,
		Bounds:          geo.Geometry(req.Bounds),
		CreatorID:       playerID(c),
		Config:          req.Config,
	})
	if err != nil {
		return respondError(c, err)
	}
	log.Printf("✅ [Game] %s created %q (%s)", info.CreatorID, info.Name, info.Mode)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"gameID": info.ID, "slug": info.Slug})
}

func (s *GameService) JoinGame(c *fiber.Ctx) error {
	id, ok := gameID(c)
	if !ok {
		return badRequest(c, "Missing game ID")
	}
	ctx := c.UserContext()
	if err := s.Engine.Join(ctx, id, playerID(c)); err != nil {
		return respondError(c, err)
	}
	info, err := s.Engine.Catalog.Get(ctx, id)
	if err != nil {
		return respondError(c, &game.Error{Kind: game.KindUnavailable, Message: "load match", Err: err})
	}
	return c.JSON(fiber.Map{"gameData": info})
}

func (s *GameService) LeaveGame(c *fiber.Ctx) error {
	id, ok := gameID(c)
	if !ok {
		return badRequest(c, "Missing game ID")
	}
	if err := s.Engine.Leave(c.UserContext(), id, playerID(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Player successfully left game"})
}

// GameComms returns the match snapshot, rebuilt at most once per refresh
// window.
func (s *GameService) GameComms(c *fiber.Ctx) error {
	id, ok := gameID(c)
	if !ok {
		return badRequest(c, "Missing game ID")
	}
	snap, err := s.Cache.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"gameComms": snap})
}

func (s *GameService) Action(c *fiber.Ctx) error {
	var req actionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.GameID) == "" {
		return badRequest(c, "Missing game ID")
	}
	if req.ActionData == nil {
		return badRequest(c, "Missing action data")
	}

	msg, err := s.Engine.Act(c.UserContext(), req.GameID, playerID(c), game.Action{
		Type: req.ActionData.Type,
		Item: req.ActionData.Item,
	})
	if err != nil {
		return respondError(c, err)
	}
	if strings.EqualFold(req.ActionData.Type, "tag") {
		return c.JSON(fiber.Map{"tagged": msg})
	}
	return c.JSON(fiber.Map{"message": msg})
}

func (s *GameService) GameHistory(c *fiber.Ctx) error {
	list, err := s.Engine.PlayedMatches(c.UserContext(), playerID(c))
	if err != nil {
		return respondError(c, err)
	}
	if list == nil {
		list = []game.MatchSummary{}
	}
	return c.JSON(fiber.Map{"gameList": list})
}

func (s *GameService) GameHistoryInfo(c *fiber.Ctx) error {
	id, ok := gameID(c)
	if !ok {
		return badRequest(c, "Missing game ID")
	}
	results, err := s.Engine.Results(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"gameList": results})
}

func (s *GameService) Inventory(c *fiber.Ctx) error {
	id, ok := gameID(c)
	if !ok {
		return badRequest(c, "Missing game ID")
	}
	inv, err := s.Engine.Inventory(c.UserContext(), id, playerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"inventory": inv})
}
