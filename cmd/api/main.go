package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"github.com/campusbeep/beep-server/internal/api/handlers"
	"github.com/campusbeep/beep-server/internal/api/routes"
	"github.com/campusbeep/beep-server/internal/config"
	"github.com/campusbeep/beep-server/internal/notify"
	"github.com/campusbeep/beep-server/internal/service/archive"
	"github.com/campusbeep/beep-server/internal/service/engine"
	"github.com/campusbeep/beep-server/internal/service/position"
	"github.com/campusbeep/beep-server/internal/service/reconcile"
	"github.com/campusbeep/beep-server/internal/storage"
	"github.com/campusbeep/beep-server/pkg/cache"
	"github.com/campusbeep/beep-server/pkg/database"
	"github.com/campusbeep/beep-server/pkg/logger"
	"github.com/campusbeep/beep-server/pkg/monitoring"
	"github.com/campusbeep/beep-server/pkg/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting CampusBeep server",
		logger.String("env", cfg.Server.Env),
		logger.String("port", cfg.Server.Port),
	)

	// Initialize New Relic
	nrApp, err := monitoring.New(monitoring.Config{
		LicenseKey: cfg.NewRelic.LicenseKey,
		AppName:    cfg.NewRelic.AppName,
		Enabled:    cfg.NewRelic.Enabled,
		LogLevel:   cfg.NewRelic.LogLevel,
	})
	if err != nil {
		appLogger.Warn("Failed to initialize New Relic", logger.Err(err))
		nrApp, _ = monitoring.New(monitoring.Config{})
	} else if nrApp.IsEnabled() {
		appLogger.Info("New Relic APM initialized",
			logger.String("app_name", cfg.NewRelic.AppName))
	}
	defer nrApp.Shutdown(10 * time.Second)

	// Initialize Redis (optional; the engine falls back to in-process
	// locking for a single replica)
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(cache.Config{
			Host:        cfg.Redis.Host,
			Port:        cfg.Redis.Port,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			MaxRetries:  cfg.Redis.MaxRetries,
			PoolSize:    cfg.Redis.PoolSize,
			MinIdleConn: cfg.Redis.MinIdleConn,
			DialTimeout: cfg.Redis.DialTimeout,
			ReadTimeout: cfg.Redis.ReadTimeout,
		})
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", logger.Err(err))
		}
		defer cache.Close(redisClient)
		appLogger.Info("Connected to Redis")
	}

	// Initialize PostgreSQL
	db, err := database.NewPostgresDB(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConnections,
		MaxIdle:  cfg.Database.MaxIdleConns,
	})
	if err != nil {
		appLogger.Fatal("Failed to connect to PostgreSQL", logger.Err(err))
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL")

	if err := storage.Migrate(context.Background(), db); err != nil {
		appLogger.Fatal("Failed to run migrations", logger.Err(err))
	}

	store := storage.NewPostgresStore(db)

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(appLogger)
	go wsHub.Run()

	// Wire the queue engine and its collaborators
	var notifier notify.Notifier = notify.Nop{}
	if cfg.Notify.Enabled {
		notifier = notify.NewPushDispatcher(cfg.Notify.Endpoint, cfg.Notify.AccessKey, appLogger)
	}
	coordinator := position.NewCoordinator(store, notifier, wsHub, appLogger)
	archiver := archive.NewArchiver(appLogger)
	eng := engine.New(store, archiver, coordinator, redisClient, engine.Config{
		LeaseTTL: cfg.Queue.LeaseTTL,
	}, appLogger)

	// Background queue-size reconciliation
	reconcileCtx, stopReconcile := context.WithCancel(context.Background())
	defer stopReconcile()
	go reconcile.New(store, cfg.Queue.ReconcileInterval, nrApp, appLogger).Run(reconcileCtx)

	h := handlers.NewHandlers(eng, store, appLogger, wsHub)

	// Initialize Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	var nrRaw *newrelic.Application
	if nrApp.IsEnabled() {
		nrRaw = nrApp.Application
	}
	routes.SetupRoutes(router, h, nrRaw, redisClient, routes.RateLimits{
		RideRequestsPerMinute: cfg.RateLimit.RideRequestsPerMinute,
		GeneralPerMinute:      cfg.RateLimit.GeneralPerMinute,
	}, appLogger)

	appLogger.Info("Routes configured")

	// Create HTTP server
	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in a goroutine
	go func() {
		appLogger.Info("Server starting", logger.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", logger.Err(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	stopReconcile()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", logger.Err(err))
	}

	appLogger.Info("Server stopped gracefully")
}
