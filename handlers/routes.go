package handlers

import (
	"spot-game-server/middleware"
	"spot-game-server/services"
	"spot-game-server/store"

	"github.com/gofiber/fiber/v2"
)

func SetupGameRoutes(app *fiber.App, gameService *services.GameService, sessions store.Sessions, gpsPerSec float64) {
	// 🔓 Public
	app.Post("/login", gameService.Login)

	// 🔐 Everything else needs a live session
	secured := app.Group("/", middleware.SessionMiddleware(sessions))

	secured.Post("/logout", gameService.Logout)
	secured.Post("/gps", middleware.DeviceRateLimit(gpsPerSec), gameService.LogGPS)

	games := secured.Group("/games")
	games.Post("/list", gameService.JoinableGames)
	games.Post("/create", gameService.CreateGame)
	games.Post("/join", gameService.JoinGame)
	games.Post("/leave", gameService.LeaveGame)
	games.Post("/comms", gameService.GameComms)
	games.Post("/action", gameService.Action)
	games.Post("/history", gameService.GameHistory)
	games.Post("/history/info", gameService.GameHistoryInfo)
	games.Post("/inventory", gameService.Inventory)
}
