package handlers_test

import (
	"bytes"
	"io"
	"net/http/httptest"
	"testing"

	"spot-game-server/game"
	"spot-game-server/geo"
	"spot-game-server/geo/raster"
	"spot-game-server/handlers"
	"spot-game-server/services"
	"spot-game-server/snapshot"
	"spot-game-server/store"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
)

var bounds = geo.Rectangle(0, 0, 0.001, 0.001)

func newApp(t *testing.T, gpsPerSec float64) *fiber.App {
	t.Helper()
	clock := clockwork.NewFakeClock()
	mem := store.NewMemory(clock)
	grid, err := raster.GridFor(bounds, 0.0001)
	if err != nil {
		t.Fatal(err)
	}
	g, err := raster.New(grid)
	if err != nil {
		t.Fatal(err)
	}
	engine := game.NewEngine(mem.Stores(), g, game.Config{Clock: clock, Rand: game.NewRand(1)})
	cache := snapshot.NewCache(snapshot.NewMemory(), engine.Build, snapshot.Options{Clock: clock})

	app := fiber.New(fiber.Config{JSONEncoder: json.Marshal, JSONDecoder: json.Unmarshal})
	handlers.SetupGameRoutes(app, services.NewGameService(engine, mem.Sessions, cache), mem.Sessions, gpsPerSec)
	return app
}

type response struct {
	status int
	body   map[string]any
}

func call(t *testing.T, app *fiber.App, path, session string, body any) response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set("X-Session-ID", session)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	out := response{status: resp.StatusCode, body: map[string]any{}}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out.body); err != nil {
			t.Fatalf("%s: decode %q: %v", path, data, err)
		}
	}
	return out
}

func login(t *testing.T, app *fiber.App, user, device string) string {
	t.Helper()
	r := call(t, app, "/login", "", fiber.Map{"username": user, "deviceID": device})
	if r.status != fiber.StatusOK {
		t.Fatalf("login %s: %d %v", user, r.status, r.body)
	}
	id, _ := r.body["sessionID"].(string)
	if id == "" {
		t.Fatalf("login %s returned no session", user)
	}
	return id
}

func TestLogin(t *testing.T) {
	app := newApp(t, 100)
	login(t, app, "alice", "phone-1")

	tests := []struct {
		name   string
		body   fiber.Map
		status int
	}{
		{"missing username", fiber.Map{"deviceID": "phone-2"}, fiber.StatusBadRequest},
		{"long username", fiber.Map{"username": "abcdefghijklmnopqrs", "deviceID": "phone-2"}, fiber.StatusBadRequest},
		{"missing device", fiber.Map{"username": "bob"}, fiber.StatusBadRequest},
		{"username in use", fiber.Map{"username": "alice", "deviceID": "phone-2"}, fiber.StatusForbidden},
		{"device in use", fiber.Map{"username": "bob", "deviceID": "phone-1"}, fiber.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if r := call(t, app, "/login", "", tt.body); r.status != tt.status {
				t.Fatalf("status = %d, want %d (%v)", r.status, tt.status, r.body)
			}
		})
	}
}

func TestSessionRequired(t *testing.T) {
	app := newApp(t, 100)
	if r := call(t, app, "/games/list", "", fiber.Map{}); r.status != fiber.StatusBadRequest {
		t.Fatalf("no session: %d", r.status)
	}
	if r := call(t, app, "/games/list", "nope", fiber.Map{}); r.status != fiber.StatusForbidden {
		t.Fatalf("unknown session: %d", r.status)
	}

	sid := login(t, app, "alice", "phone-1")
	// The session id is also accepted in the body.
	if r := call(t, app, "/games/list", "", fiber.Map{"sessionID": sid}); r.status != fiber.StatusOK {
		t.Fatalf("body session: %d %v", r.status, r.body)
	}
	if r := call(t, app, "/logout", sid, fiber.Map{}); r.status != fiber.StatusOK {
		t.Fatalf("logout: %d", r.status)
	}
	if r := call(t, app, "/games/list", sid, fiber.Map{}); r.status != fiber.StatusForbidden {
		t.Fatalf("after logout: %d", r.status)
	}
	login(t, app, "alice", "phone-1")
}

func TestGameFlow(t *testing.T) {
	app := newApp(t, 100)
	alice := login(t, app, "alice", "phone-1")
	bob := login(t, app, "bob", "phone-2")

	r := call(t, app, "/games/create", alice, fiber.Map{
		"gameName": "Park Run",
		"type":     int(game.ModeTerritory),
		"duration": 20,
		"bounds":   string(bounds),
	})
	if r.status != fiber.StatusCreated {
		t.Fatalf("create: %d %v", r.status, r.body)
	}
	id, _ := r.body["gameID"].(string)
	if r.body["slug"] != "park-run" {
		t.Fatalf("slug = %v", r.body["slug"])
	}

	list := call(t, app, "/games/list", bob, fiber.Map{})
	if games, _ := list.body["gameList"].([]any); len(games) != 1 {
		t.Fatalf("gameList = %v", list.body)
	}

	for _, sid := range []string{alice, bob} {
		if r := call(t, app, "/games/join", sid, fiber.Map{"gameID": id}); r.status != fiber.StatusOK {
			t.Fatalf("join: %d %v", r.status, r.body)
		}
	}
	r = call(t, app, "/games/action", alice, fiber.Map{"gameID": id, "actionData": fiber.Map{"type": "ready"}})
	if r.status != fiber.StatusOK || r.body["message"] != "ready toggled" {
		t.Fatalf("ready alice: %d %v", r.status, r.body)
	}
	r = call(t, app, "/games/action", bob, fiber.Map{"gameID": id, "actionData": fiber.Map{"type": "ready"}})
	if r.status != fiber.StatusOK || r.body["message"] != "match started" {
		t.Fatalf("ready bob: %d %v", r.status, r.body)
	}

	r = call(t, app, "/games/comms", alice, fiber.Map{"gameID": id})
	if r.status != fiber.StatusOK {
		t.Fatalf("comms: %d %v", r.status, r.body)
	}
	comms, _ := r.body["gameComms"].(map[string]any)
	match, _ := comms["match"].(map[string]any)
	if match["phase"] != string(game.PhaseRunning) {
		t.Fatalf("comms = %v", r.body)
	}

	r = call(t, app, "/games/inventory", alice, fiber.Map{"gameID": id})
	if r.status != fiber.StatusOK {
		t.Fatalf("inventory: %d %v", r.status, r.body)
	}
	r = call(t, app, "/games/history/info", alice, fiber.Map{"gameID": id})
	if r.status != fiber.StatusBadRequest || r.body["kind"] != string(game.KindValidation) {
		t.Fatalf("results of a running match: %d %v", r.status, r.body)
	}
}

func TestErrorMapping(t *testing.T) {
	app := newApp(t, 100)
	sid := login(t, app, "alice", "phone-1")

	tests := []struct {
		name   string
		path   string
		body   fiber.Map
		status int
		kind   game.Kind
	}{
		{"missing game id", "/games/join", fiber.Map{}, fiber.StatusBadRequest, game.KindValidation},
		{"unknown game", "/games/join", fiber.Map{"gameID": "nope"}, fiber.StatusNotFound, game.KindNotFound},
		{"unknown game comms", "/games/comms", fiber.Map{"gameID": "nope"}, fiber.StatusNotFound, game.KindNotFound},
		{"missing action", "/games/action", fiber.Map{"gameID": "nope"}, fiber.StatusBadRequest, game.KindValidation},
		{"bad create", "/games/create", fiber.Map{"gameName": "x", "type": 42, "duration": 5, "bounds": string(bounds)}, fiber.StatusBadRequest, game.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := call(t, app, tt.path, sid, tt.body)
			if r.status != tt.status || r.body["kind"] != string(tt.kind) {
				t.Fatalf("got %d %v, want %d %s", r.status, r.body, tt.status, tt.kind)
			}
		})
	}
}

func TestGPS(t *testing.T) {
	app := newApp(t, 100)
	sid := login(t, app, "alice", "phone-1")

	fix := fiber.Map{"lat": 0.0005, "long": 0.0005, "time": "2026-06-01T12:00:00Z"}
	if r := call(t, app, "/gps", sid, fix); r.status != fiber.StatusOK || r.body["message"] != "position recorded" {
		t.Fatalf("gps: %d %v", r.status, r.body)
	}
	if r := call(t, app, "/gps", sid, fix); r.body["message"] != "duplicate fix ignored" {
		t.Fatalf("retry: %d %v", r.status, r.body)
	}
	if r := call(t, app, "/gps", sid, fiber.Map{"lat": 91, "long": 0}); r.status != fiber.StatusBadRequest {
		t.Fatalf("out of range: %d", r.status)
	}
}

func TestGPSRateLimit(t *testing.T) {
	app := newApp(t, 1)
	sid := login(t, app, "alice", "phone-1")
	call(t, app, "/gps", sid, fiber.Map{"lat": 0.0005, "long": 0.0005})
	if r := call(t, app, "/gps", sid, fiber.Map{"lat": 0.0006, "long": 0.0005}); r.status != fiber.StatusTooManyRequests {
		t.Fatalf("second fix status = %d, want 429", r.status)
	}
}
