package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/psalmlabs/selah/internal/action"
	"github.com/psalmlabs/selah/internal/api/anthropic"
	"github.com/psalmlabs/selah/internal/cache"
	"github.com/psalmlabs/selah/internal/companion"
	"github.com/psalmlabs/selah/internal/config"
	"github.com/psalmlabs/selah/internal/observe"
	"github.com/psalmlabs/selah/internal/server"
	"github.com/psalmlabs/selah/internal/storage/sqlite"
	"github.com/psalmlabs/selah/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	shutdownTracer, err := telemetry.InitTracer("selah", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	store, err := sqlite.New(cfg.Storage.Path)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	var refCache cache.Cache = cache.NewMemory()
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedis(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisCache.Close()
		refCache = redisCache
		logger.Info("using redis resolution cache", slog.String("addr", cfg.Redis.Addr))
	}

	catalog, err := action.NewCatalog(refCache)
	if err != nil {
		log.Fatalf("Failed to build action catalog: %v", err)
	}
	processor := action.NewProcessor(catalog, action.WithLogger(logger))

	observer := observe.NewLogger(observe.LoggerOptions{
		Console:          cfg.ConsoleEnabled(),
		Token:            telemetryToken(cfg),
		OrgID:            cfg.Telemetry.OrgID,
		Endpoint:         cfg.Telemetry.Endpoint,
		DatasetEvents:    cfg.Telemetry.DatasetEvents,
		DatasetEnvelopes: cfg.Telemetry.DatasetEnvelopes,
		Logger:           logger,
	})
	batcher := observe.NewEventBatcher(observer)

	model := anthropic.NewClient(cfg.Anthropic.APIKey)
	if cfg.Anthropic.BaseURL != "" {
		model = anthropic.NewClient(cfg.Anthropic.APIKey, anthropic.WithBaseURL(cfg.Anthropic.BaseURL))
	}

	svc := companion.NewService(model, companion.ModelConfig{
		Model:       cfg.Anthropic.Model,
		MaxTokens:   cfg.Anthropic.MaxTokens,
		Temperature: cfg.Anthropic.Temperature,
	}, catalog, processor, observer,
		companion.WithStore(store),
		companion.WithBatcher(batcher),
		companion.WithLogger(logger),
	)

	srv := server.New(cfg.Server.Port, logger)
	companion.NewHandler(svc, store, logger).Routes(srv.Router)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	logger.Info("selah started",
		slog.Int("port", cfg.Server.Port),
		slog.String("model", cfg.Anthropic.Model),
		slog.String("environment", cfg.Environment))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}

	// Drain queued telemetry before exit.
	batcher.Close()
	observer.Flush()

	logger.Info("selah shutdown complete")
}

func telemetryToken(cfg *config.Config) string {
	if !cfg.Telemetry.Enabled {
		return ""
	}
	return cfg.Telemetry.Token
}
