package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/studysmart/lesson-engine/internal/config"
	"github.com/studysmart/lesson-engine/internal/coordinator"
	"github.com/studysmart/lesson-engine/internal/curriculum"
	"github.com/studysmart/lesson-engine/internal/domain"
	"github.com/studysmart/lesson-engine/internal/generator"
	"github.com/studysmart/lesson-engine/internal/handler"
	"github.com/studysmart/lesson-engine/internal/infra/postgresql"
	"github.com/studysmart/lesson-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/studysmart/lesson-engine/internal/infra/redis"
	"github.com/studysmart/lesson-engine/internal/llm"
	"github.com/studysmart/lesson-engine/internal/observability"
	"github.com/studysmart/lesson-engine/internal/progress"
	"github.com/studysmart/lesson-engine/internal/ratelimit"
	"github.com/studysmart/lesson-engine/internal/repository"
	"github.com/studysmart/lesson-engine/internal/store"
	"github.com/studysmart/lesson-engine/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("lesson-engine exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()

	var (
		sqlDB   *sql.DB
		archive repository.RunArchive
	)
	if cfg.DatabaseDSN != "" {
		db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("postgres initialization failed: %w", err)
		}
		if err := migrations.Migrate(db); err != nil {
			return fmt.Errorf("database migrations failed: %w", err)
		}
		sqlDB, err = db.DB()
		if err != nil {
			return fmt.Errorf("postgres underlying db init failed: %w", err)
		}
		defer sqlDB.Close()

		archive = repository.NewGormRunArchive(db)
		logger.Info("run archive enabled")
	}

	var (
		rdb     *goredis.Client
		limiter ratelimit.RateLimiter
	)
	if cfg.RedisURL != "" {
		var err error
		rdb, err = infraredis.NewRedis(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		defer rdb.Close()

		limiter, err = infraredis.NewRedisRateLimiter(rdb, 1)
		if err != nil {
			return fmt.Errorf("redis rate limiter init failed: %w", err)
		}
		logger.Info("redis-backed request pacing enabled")
	} else {
		limiter = ratelimit.NewFixedDelayLimiter(time.Duration(cfg.LessonDelaySec) * time.Second)
	}

	source, err := curriculum.NewStore(cfg.CurriculumDir)
	if err != nil {
		return fmt.Errorf("curriculum store init failed: %w", err)
	}

	completer, err := llm.NewClient(llm.ClientConfig{
		BaseURL: cfg.OpenRouterBaseURL,
		APIKey:  cfg.OpenRouterAPIKey,
		Model:   cfg.Model,
		Timeout: time.Duration(cfg.LLMTimeoutSec) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("completion client init failed: %w", err)
	}

	gen, err := generator.New(completer, generator.Config{
		MaxAttempts:      cfg.MaxAttempts,
		RateLimitBackoff: time.Duration(cfg.RateLimitWaitSec) * time.Second,
		Bounds: domain.LengthBounds{
			Min: cfg.MinContentChars,
			Max: cfg.MaxContentChars,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("generator init failed: %w", err)
	}
	gen.SetMetrics(metrics)

	sink, err := store.NewFileStore(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("file store init failed: %w", err)
	}

	tracker := progress.NewTracker()

	coord, err := coordinator.New(source, gen, sink, tracker, limiter, coordinator.Config{
		MaxRuntime:   time.Duration(cfg.MaxRuntimeSec) * time.Second,
		CPUHighWater: cfg.CPUHighWater,
	}, logger)
	if err != nil {
		return fmt.Errorf("coordinator init failed: %w", err)
	}
	coord.SetMetrics(metrics)
	coord.SetSampler(observability.NewSystemSampler())
	if archive != nil {
		coord.SetArchive(archive)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterBatchRoutes(app, coord, tracker); err != nil {
		return fmt.Errorf("route registration failed: %w", err)
	}
	if archive != nil {
		if err := handler.RegisterRunRoutes(app, archive); err != nil {
			return fmt.Errorf("route registration failed: %w", err)
		}
	}

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("lesson-engine api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
