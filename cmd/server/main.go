package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"dispatchboard/internal/bitable"
	"dispatchboard/internal/config"
	"dispatchboard/internal/database"
	"dispatchboard/internal/filter"
	"dispatchboard/internal/handlers"
	"dispatchboard/internal/jobs"
	"dispatchboard/internal/logging"
	"dispatchboard/internal/middleware"
	"dispatchboard/internal/models"
	"dispatchboard/internal/normalize"
	"dispatchboard/internal/services"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Dispatch Board Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s)", cfg.Port)

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	// Filter registry with live reload of the backing file
	registry, err := filter.NewRegistry(cfg.FilterConfigPath)
	if err != nil {
		log.Fatalf("❌ Failed to load filter config: %v", err)
	}
	if err := registry.Watch(); err != nil {
		log.Printf("⚠️ Filter config watcher unavailable: %v", err)
	}
	defer registry.Close()

	engine := filter.NewEngine(cfg.WeekStart)

	// Optional Redis: cross-instance sync lock
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("❌ Invalid REDIS_URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		log.Println("✅ Redis sync lock enabled")
	}

	// Services
	services.InitMetrics()
	taskService := services.NewTaskService(db)
	recordService := services.NewRecordService(db)
	normalizer := normalize.New(models.DefaultFieldMapping())

	bitableClient := bitable.NewClient(bitable.Options{
		BaseURL:   cfg.BitableBaseURL,
		AppID:     cfg.BitableAppID,
		AppSecret: cfg.BitableAppSecret,
		AppToken:  cfg.BitableAppToken,
		TableID:   cfg.BitableTableID,
		QPS:       cfg.BitableQPS,
	})

	syncService := services.NewSyncService(bitableClient, normalizer, taskService, recordService, redisClient)

	// Scheduled sync
	scheduler, err := jobs.NewSyncScheduler(syncService, cfg.SyncCron,
		time.Duration(cfg.SyncIntervalMinutes)*time.Minute)
	if err != nil {
		log.Fatalf("❌ Failed to set up sync scheduler: %v", err)
	}
	scheduler.Start()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Dispatch Board v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  90 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("dispatchboard")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, Public=%d/min, Keyed=%d/min",
		rateLimitConfig.GlobalAPIMax,
		rateLimitConfig.PublicReadMax,
		rateLimitConfig.KeyedMax,
	)

	// Fiber's CORS middleware does not allow AllowCredentials with wildcard
	// origins; the board frontend does not use credentials anyway.
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,X-API-Key",
		AllowCredentials: cfg.AllowedOrigins != "*",
	}))
	log.Printf("🔒 [SECURITY] CORS allowed origins: %s", cfg.AllowedOrigins)

	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(taskService)
	taskHandler := handlers.NewTaskHandler(taskService, registry, engine, cfg.WeekStart)
	filterHandler := handlers.NewFilterHandler(registry)
	syncHandler := handlers.NewSyncHandler(syncService)

	// Public routes
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "派工系统后端服务"})
	})
	app.Get("/health", healthHandler.Handle)

	public := app.Group("/api", middleware.PublicReadRateLimiter(rateLimitConfig))
	public.Get("/tasks", taskHandler.Grouped)
	public.Get("/filters", filterHandler.List)
	public.Post("/filters/activate", filterHandler.Activate)
	public.Post("/filters/add", filterHandler.Add)
	public.Put("/filters/:name", filterHandler.Update)
	public.Delete("/filters/:name", filterHandler.Remove)

	// API-key-gated routes for other backend systems
	keyed := app.Group("/api", middleware.KeyedRateLimiter(rateLimitConfig))
	readonly := keyed.Group("/", middleware.ReadOnlyAPIKey(cfg))
	readonly.Get("/tasks/by-engineer", taskHandler.ByEngineer)
	readonly.Get("/tasks/by-date", taskHandler.ByDate)
	readonly.Get("/tasks/stats", taskHandler.Stats)
	readonly.Get("/tasks/search", taskHandler.Search)
	readonly.Get("/engineers", taskHandler.Engineers)

	keyed.Post("/sync", middleware.AdminAPIKey(cfg), syncHandler.Trigger)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		if err := scheduler.Stop(); err != nil {
			log.Printf("⚠️ Error stopping scheduler: %v", err)
		}

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	// Kick off an initial sync so a fresh deployment serves data without
	// waiting for the first scheduled run.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := syncService.Run(ctx); err != nil {
			log.Printf("⚠️ Initial sync failed: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
