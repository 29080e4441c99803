package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/kursadbilgin/newsletter-engine/internal/config"
	"github.com/kursadbilgin/newsletter-engine/internal/handler"
	"github.com/kursadbilgin/newsletter-engine/internal/infra/postgresql"
	"github.com/kursadbilgin/newsletter-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/newsletter-engine/internal/infra/redis"
	"github.com/kursadbilgin/newsletter-engine/internal/observability"
	"github.com/kursadbilgin/newsletter-engine/internal/provider"
	"github.com/kursadbilgin/newsletter-engine/internal/ratelimit"
	"github.com/kursadbilgin/newsletter-engine/internal/repository"
	"github.com/kursadbilgin/newsletter-engine/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}
	defer postgresql.Close(db) //nolint:errcheck

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	var (
		locker  service.TickLocker
		limiter ratelimit.RateLimiter
	)
	if cfg.RedisURL != "" {
		rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()

		locker = infraredis.NewTickLock(rdb, infraredis.DefaultTickLockTTL, logger)
		if cfg.MailRateLimitPerSec > 0 {
			redisLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.MailRateLimitPerSec)
			if err != nil {
				logger.Fatal("rate limiter initialization failed", zap.Error(err))
			}
			limiter = redisLimiter
		}
	} else {
		logger.Warn("REDIS_URL not set, running without a distributed tick lock")
	}

	mailer, err := provider.New(ctx, cfg, limiter, logger)
	if err != nil {
		logger.Fatal("mail provider initialization failed", zap.Error(err))
	}
	if closer, ok := mailer.(interface{ Close() error }); ok {
		defer closer.Close() //nolint:errcheck
	}

	metrics := observability.NewMetrics()
	campaigns := repository.NewGormCampaignRepo(db)

	dispatcher, err := service.NewCampaignDispatcher(
		campaigns,
		repository.NewGormSubscriberRepo(db),
		mailer,
		service.DispatcherConfig{
			BatchSize:  cfg.BatchSize,
			MaxRetries: cfg.MaxRetries,
			BatchDelay: cfg.BatchDelay(),
		},
		metrics,
		logger,
	)
	if err != nil {
		logger.Fatal("dispatcher initialization failed", zap.Error(err))
	}

	scheduler, err := service.NewCampaignScheduler(
		campaigns,
		dispatcher,
		locker,
		service.SchedulerConfig{
			CronExpression: cfg.CronExpression,
			StaleAfter:     cfg.SendingStaleAfter(),
		},
		metrics,
		logger,
	)
	if err != nil {
		logger.Fatal("scheduler initialization failed", zap.Error(err))
	}

	// The scheduler only serves health checks and metrics.
	app := fiber.New(fiber.Config{
		AppName:               "newsletter-scheduler",
		DisableStartupMessage: true,
	})
	app.Get("/livez", handler.LivezHandler())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("newsletter scheduler started",
			zap.String("cron", cfg.CronExpression),
			zap.String("mailDriver", cfg.MailDriver),
		)
		return scheduler.Start(groupCtx)
	})
	g.Go(func() error {
		return app.Listen(fmt.Sprintf(":%d", cfg.SchedulerPort))
	})
	g.Go(func() error {
		<-groupCtx.Done()
		scheduler.Stop()
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		logger.Error("newsletter scheduler stopped with error", zap.Error(err))
	}
}
