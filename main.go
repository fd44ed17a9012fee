package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spot-game-server/config"
	"spot-game-server/game"
	"spot-game-server/geo"
	"spot-game-server/geo/raster"
	"spot-game-server/handlers"
	"spot-game-server/services"
	"spot-game-server/snapshot"
	"spot-game-server/store"
	"spot-game-server/workers"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/jonboulle/clockwork"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration:", err)
	}
	tuning, err := config.LoadTuning(cfg.TuningPath)
	if err != nil {
		log.Fatal("failed to load game tuning:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()

	var (
		stores   game.Stores
		sessions store.Sessions
		db       *gorm.DB
	)
	switch cfg.Store {
	case "postgres":
		db, err = gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
		if err != nil {
			log.Fatal("failed to connect to database:", err)
		}
		if err := store.Migrate(db); err != nil {
			log.Fatal("failed to migrate database:", err)
		}
		g := store.NewGorm(db, clock)
		stores, sessions = g.Stores(), g.Sessions
	case "memory":
		log.Println("⚠️  STORE=memory: match state is lost on restart")
		m := store.NewMemory(clock)
		stores, sessions = m.Stores(), m.Sessions
	default:
		log.Fatalf("unknown STORE %q", cfg.Store)
	}

	var engineGeo geo.Engine
	switch cfg.GeoEngine {
	case "postgis":
		engineGeo = geo.NewPostGIS(db)
	case "raster":
		engineGeo, err = raster.New(cfg.RasterGrid)
		if err != nil {
			log.Fatal("failed to build raster grid:", err)
		}
	default:
		log.Fatalf("unknown GEO_ENGINE %q", cfg.GeoEngine)
	}

	engine := game.NewEngine(stores, engineGeo, game.Config{
		Clock:         clock,
		Rand:          game.NewRand(time.Now().UnixNano()),
		Tuning:        &tuning,
		EnforceBounds: cfg.EnforceBounds,
		EnforceTimers: cfg.EnforceTimers,
	})

	var cacheStore snapshot.Store
	switch cfg.CacheBackend {
	case "s3":
		cacheStore, err = snapshot.NewS3(ctx, cfg.S3)
		if err != nil {
			log.Fatal("failed to initialize S3 snapshot cache:", err)
		}
	case "memory":
		cacheStore = snapshot.NewMemory()
	default:
		log.Fatalf("unknown CACHE_BACKEND %q", cfg.CacheBackend)
	}
	cache := snapshot.NewCache(cacheStore, engine.Build, snapshot.Options{
		Clock:         clock,
		RefreshWindow: cfg.RefreshWindow,
		StaleAfter:    cfg.StaleAfter,
	})

	gameService := services.NewGameService(engine, sessions, cache)
	sched, err := gameService.StartHousekeeping(ctx)
	if err != nil {
		log.Fatal("failed to start scheduler:", err)
	}
	defer func() {
		if err := sched.Shutdown(); err != nil {
			log.Printf("Scheduler shutdown: %v", err)
		}
	}()

	workers.NewMatchClockWorker(engine, cache, 10*time.Second).Start(ctx)

	app := fiber.New(fiber.Config{
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, X-Session-ID, X-Device-ID",
		MaxAge:       86400,
	}))
	handlers.SetupGameRoutes(app, gameService, sessions, cfg.GPSRatePerSec)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", cfg.Port)
	log.Printf("✅ Store=%s Geo=%s Cache=%s", cfg.Store, cfg.GeoEngine, cfg.CacheBackend)
	log.Printf("✅ CORS configured for origins: %s", cfg.AllowedOrigins)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}
