package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	fiberRecover "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"movie-discovery-search-service/internal/config"
	"movie-discovery-search-service/internal/database"
	"movie-discovery-search-service/internal/handler"
	"movie-discovery-search-service/internal/history"
	"movie-discovery-search-service/internal/metrics"
	"movie-discovery-search-service/internal/middleware"
	"movie-discovery-search-service/internal/repository"
	"movie-discovery-search-service/internal/search"
	"movie-discovery-search-service/internal/service"
	"movie-discovery-search-service/internal/tmdb"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Structured logging
	log := config.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to Redis (non-fatal if unavailable unless it holds history)
	rdb, err := database.NewRedis(ctx, cfg.Redis)
	if err != nil {
		if cfg.Search.HistoryBackend == config.HistoryBackendRedis {
			log.Error("Redis is required for the redis history backend", "error", err)
			os.Exit(1)
		}
		log.Warn("Redis unavailable, running without cache and rate limiting", "error", err)
		rdb = nil
	}

	// Connect to PostgreSQL only when it holds history
	var db *sql.DB
	if cfg.Search.HistoryBackend == config.HistoryBackendPostgres {
		db, err = database.NewPostgres(ctx, cfg.DB)
		if err != nil {
			log.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
	}

	histories, err := historyFactory(cfg.Search, rdb, db)
	if err != nil {
		log.Error("failed to configure search history", "error", err)
		os.Exit(1)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Initialize layers
	tmdbClient := tmdb.NewClient(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, tmdb.Options{
		Language:  cfg.TMDB.Language,
		Timeout:   cfg.TMDB.Timeout,
		RateLimit: cfg.TMDB.RateLimit,
	})
	catalog := service.NewCatalogService(tmdbClient, rdb, cfg.TMDB.Language, cfg.Search.CacheTTL, m)
	sessions := service.NewSessionService(log, catalog, histories, m, search.Options{
		Debounce:      cfg.Search.Debounce,
		LookupTimeout: cfg.Search.LookupTimeout,
		HistoryLimit:  cfg.Search.HistoryLimit,
		LiveSearch:    cfg.Search.Live,
	}, cfg.Search.SessionIdleTTL)
	go sessions.Run(ctx)

	h := handler.NewSearchHandler(sessions)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Search Service",
		ServerHeader: "Search-Service",
		ErrorHandler: handler.ErrorHandler,
	})

	// Middleware
	app.Use(fiberRecover.New())
	app.Use(logger.New())
	app.Use(cors.New())
	app.Use(middleware.NewRateLimiter(rdb, cfg.RateLimit.Max, cfg.RateLimit.WindowSeconds).Handler())

	var validator *middleware.TokenValidator
	if cfg.Auth.JWTSecret != "" {
		validator = middleware.NewTokenValidator(cfg.Auth.JWTSecret)
	}
	app.Use(middleware.AuthMiddleware(validator, cfg.Auth.AllowAnonymous))

	// Metrics and swagger docs (public)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	swaggerYAML, err := os.ReadFile("docs/swagger.yaml")
	if err != nil {
		log.Warn("swagger.yaml not found, swagger UI will be unavailable", "error", err)
	} else {
		handler.RegisterSwagger(app, swaggerYAML)
	}

	// API routes
	h.Register(app.Group("/api/v1"))

	go func() {
		log.Info("starting search service", "port", cfg.Port, "history_backend", cfg.Search.HistoryBackend)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down search service...")

	// Stop accepting requests, then close sessions so pending history writes finish
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("error shutting down HTTP server", "error", err)
	}
	sessions.Shutdown()

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Error("error closing Redis connection", "error", err)
		}
	}
	if db != nil {
		if err := db.Close(); err != nil {
			log.Error("error closing PostgreSQL connection", "error", err)
		}
	}

	log.Info("search service shutdown complete")
}

// historyFactory maps a user to the history store of the configured backend.
func historyFactory(cfg config.SearchConfig, rdb *redis.Client, db *sql.DB) (service.HistoryFactory, error) {
	switch cfg.HistoryBackend {
	case config.HistoryBackendMemory:
		stores := history.NewMemoryStores(cfg.HistoryLimit)
		return func(userID string) search.HistoryStore { return stores.For(userID) }, nil
	case config.HistoryBackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis history backend requires a Redis connection")
		}
		stores := history.NewRedisStores(rdb, cfg.HistoryLimit)
		return func(userID string) search.HistoryStore { return stores.For(userID) }, nil
	case config.HistoryBackendPostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres history backend requires a database connection")
		}
		repo := repository.NewSearchHistoryRepository(db, cfg.HistoryLimit)
		return func(userID string) search.HistoryStore { return repo.ForUser(userID) }, nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.HistoryBackend)
	}
}
