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
	"github.com/kursadbilgin/newsletter-engine/internal/repository"
	"github.com/kursadbilgin/newsletter-engine/internal/service"
	"github.com/kursadbilgin/newsletter-engine/internal/transport"
	"github.com/redis/go-redis/v9"
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

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = infraredis.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()
	}

	// Confirmation mails bypass the shared rate limiter.
	mailer, err := provider.New(ctx, cfg, nil, logger)
	if err != nil {
		logger.Fatal("mail provider initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	campaignService := service.NewCampaignService(repository.NewGormCampaignRepo(db), logger)
	subscriptionService := service.NewSubscriptionService(repository.NewGormSubscriberRepo(db), mailer, logger)

	app := fiber.New(fiber.Config{
		AppName:               "newsletter-engine",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, sqlDB, rdb)

	if err := handler.RegisterCampaignRoutes(app, campaignService); err != nil {
		logger.Fatal("campaign routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterSubscriptionRoutes(app, subscriptionService); err != nil {
		logger.Fatal("subscription routes registration failed", zap.Error(err))
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("newsletter api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})
	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("newsletter api shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		logger.Error("newsletter api stopped with error", zap.Error(err))
	}
}
