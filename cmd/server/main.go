// Learnora progress service.
//
// Tracks entity completions, propagates them up the content hierarchy and
// awards achievements. Runs against Postgres and Redis in production; with
// no DATABASE_URL it falls back to the in-memory store for local work.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/learnora/learnora-progress/config"
	"github.com/learnora/learnora-progress/internal/application/command"
	"github.com/learnora/learnora-progress/internal/application/eventhandler"
	"github.com/learnora/learnora-progress/internal/application/query"
	"github.com/learnora/learnora-progress/internal/application/saga"
	"github.com/learnora/learnora-progress/internal/domain/achievement"
	"github.com/learnora/learnora-progress/internal/domain/catalog"
	"github.com/learnora/learnora-progress/internal/domain/progress"
	"github.com/learnora/learnora-progress/internal/domain/shared"
	"github.com/learnora/learnora-progress/internal/infrastructure/messaging"
	"github.com/learnora/learnora-progress/internal/infrastructure/persistence/memory"
	"github.com/learnora/learnora-progress/internal/infrastructure/persistence/postgres"
	redisstore "github.com/learnora/learnora-progress/internal/infrastructure/persistence/redis"
	"github.com/learnora/learnora-progress/internal/infrastructure/service"
	httpapi "github.com/learnora/learnora-progress/internal/interface/http"
	"github.com/learnora/learnora-progress/internal/interface/http/handlers"
	"github.com/learnora/learnora-progress/pkg/logger"
	"github.com/learnora/learnora-progress/pkg/retry"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		slog.Error("service terminated", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────
	// 1. Configuration and logging
	// ─────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting learnora-progress",
		"version", cfg.App.Version,
		"environment", string(cfg.App.Environment),
	)

	// ─────────────────────────────────────────────────────────────────────
	// 2. Storage
	// ─────────────────────────────────────────────────────────────────────
	var (
		progressRepo    progress.Repository
		achievementRepo achievement.Repository
		catalogRepo     catalog.Repository
		dbConn          *postgres.Connection
	)

	if cfg.Database.InMemory() {
		log.Warn("DATABASE_URL not set, using in-memory store")
		progressRepo = memory.NewProgressRepository()
		achievementRepo = memory.NewAchievementRepository()
		catalogRepo = memory.NewCatalogRepository()
	} else {
		dbConn, err = postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer dbConn.Close()

		if cfg.Database.AutoMigrate {
			if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			log.Info("database migrations applied")
		}

		progressRepo = postgres.NewProgressRepository(dbConn)
		achievementRepo = postgres.NewAchievementRepository(dbConn)
		catalogRepo = postgres.NewCatalogRepository(dbConn)
	}

	if cfg.Achievements.SeedDefaults {
		for _, def := range achievement.DefaultDefinitions() {
			if err := achievementRepo.SaveDefinition(ctx, def); err != nil {
				return fmt.Errorf("seed achievement %s: %w", def.ID, err)
			}
		}
		log.Info("default achievement definitions seeded")
	}

	// ─────────────────────────────────────────────────────────────────────
	// 3. Redis (optional: catalog cache and cross-instance fan-out)
	// ─────────────────────────────────────────────────────────────────────
	var cache *redisstore.Cache
	var resolver catalog.Resolver = catalogRepo
	var invalidator httpapi.CatalogInvalidator

	if !cfg.Redis.Disabled {
		cache, err = redisstore.NewCache(redisstore.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   3,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			PoolTimeout:  4 * time.Second,
		})
		if err != nil {
			// Redis only accelerates lookups and fans events out. The core
			// progress semantics do not depend on it.
			log.Warn("redis unavailable, continuing without it", "error", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	if cache != nil && cfg.Features.CatalogCacheEnabled() {
		catalogCache := redisstore.NewCatalogCache(catalogRepo, cache, log)
		resolver = catalogCache
		invalidator = catalogCache
		log.Info("catalog cache enabled")
	}

	// ─────────────────────────────────────────────────────────────────────
	// 4. Event bus and dispatcher
	// ─────────────────────────────────────────────────────────────────────
	localBusCfg := messaging.InMemoryEventBusConfig{
		AsyncMode:     cfg.Features.AsyncDispatchEnabled(),
		QueueSize:     cfg.EventBus.QueueSize,
		Logger:        log,
		EnableMetrics: true,
	}

	var eventBus shared.EventBus
	if cache != nil && cfg.Features.RedisEventBusEnabled() {
		bridge := redisstore.NewPubSubBridge(cache)
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         bridge,
			ChannelName:    cfg.EventBus.ChannelName,
			InstanceID:     cfg.App.InstanceID,
			LocalBusConfig: localBusCfg,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("create redis event bus: %w", err)
		}
		defer redisBus.Close()
		eventBus = redisBus
		log.Info("redis event bus enabled", "channel", cfg.EventBus.ChannelName)
	} else {
		localBus := messaging.NewInMemoryEventBus(localBusCfg)
		defer localBus.Close()
		eventBus = localBus
	}

	dispatcher := messaging.NewDispatcherBuilder(eventBus).
		WithRetrier(retry.New(
			retry.WithMaxAttempts(cfg.EventBus.MaxAttempts),
			retry.WithInitialDelay(cfg.EventBus.InitialDelay),
			retry.WithMaxDelay(cfg.EventBus.MaxDelay),
		)).
		WithDeadLetterQueue(cfg.EventBus.DLQSize).
		WithLogger(log).
		Build()

	// ─────────────────────────────────────────────────────────────────────
	// 5. Achievement evaluation
	// ─────────────────────────────────────────────────────────────────────
	if cfg.Features.AchievementEvaluationEnabled() {
		flow := saga.NewAwardFlow(
			achievementRepo,
			progressRepo,
			achievement.NewChecker(),
			eventBus,
			service.NewUUIDGenerator(),
			log,
		)
		onProgress := eventhandler.NewOnProgressUpdated(flow, log)

		// Both completion signals trigger evaluation. The flow re-reads
		// stored progress, so duplicate triggers never double-award.
		for _, eventType := range []shared.EventType{shared.EventProgressUpdated, shared.EventLessonCompleted} {
			err := dispatcher.RegisterHandler(eventType, messaging.HandlerRegistration{
				Name:    "achievement_evaluation",
				Handler: onProgress.Handle,
				Timeout: cfg.EventBus.HandlerTimeout,
			})
			if err != nil {
				return fmt.Errorf("register achievement handler: %w", err)
			}
		}
	}

	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}
	defer dispatcher.Stop()

	// ─────────────────────────────────────────────────────────────────────
	// 6. Application handlers
	// ─────────────────────────────────────────────────────────────────────
	trackHandler := command.NewTrackProgressHandler(
		progressRepo,
		resolver,
		eventBus,
		log,
		command.TrackProgressHandlerConfig{
			EmitLessonCompletedEvent: cfg.Features.LegacyLessonEventEnabled(),
		},
	)

	// ─────────────────────────────────────────────────────────────────────
	// 7. HTTP server
	// ─────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	if dbConn != nil {
		health.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
	}
	if cache != nil {
		health.AddCheck("cache", handlers.NewCacheCheck(cache))
	}

	httpLog := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	}).With(logger.Component("http"))

	srvCfg := httpapi.DefaultConfig()
	srvCfg.Host = cfg.HTTP.Host
	srvCfg.Port = cfg.HTTP.Port
	srvCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	srvCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	srvCfg.IdleTimeout = cfg.HTTP.IdleTimeout

	srv := httpapi.NewServer(srvCfg, httpapi.Dependencies{
		TrackProgressHandler:      trackHandler,
		GetProgressSummaryHandler: query.NewGetProgressSummaryHandler(progressRepo),
		IsEntityCompletedHandler:  query.NewIsEntityCompletedHandler(progressRepo),
		ListAchievementsHandler:   query.NewListAchievementsHandler(achievementRepo),
		CatalogRepository:         catalogRepo,
		CatalogInvalidator:        invalidator,
		Logger:                    httpLog,
		HealthChecker:             health,
	})

	errCh := srv.StartAsync()
	log.Info("http server listening", "addr", cfg.HTTP.Addr())

	// ─────────────────────────────────────────────────────────────────────
	// 8. Graceful shutdown
	// ─────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}

	log.Info("service stopped")
	return nil
}

// setupLogger builds the process-wide slog logger from observability config.
func setupLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Observability.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" || cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler).With(
		"service", cfg.App.Name,
	)
	slog.SetDefault(log)

	return log
}
