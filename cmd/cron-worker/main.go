package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/plateful/plateful-backend/internal/cron"
	"github.com/plateful/plateful-backend/internal/reconcile"
	subsvc "github.com/plateful/plateful-backend/internal/subscriptions"
	usagesvc "github.com/plateful/plateful-backend/internal/usage"
	googleplayvalidation "github.com/plateful/plateful-backend/internal/validation/googleplay"
	"github.com/plateful/plateful-backend/internal/webhooks"
	appstorewebhook "github.com/plateful/plateful-backend/internal/webhooks/appstore"
	googleplaywebhook "github.com/plateful/plateful-backend/internal/webhooks/googleplay"
	"github.com/plateful/plateful-backend/pkg/config"
	"github.com/plateful/plateful-backend/pkg/db"
	"github.com/plateful/plateful-backend/pkg/enums"
	"github.com/plateful/plateful-backend/pkg/logger"
	"github.com/plateful/plateful-backend/pkg/metrics"
	"github.com/plateful/plateful-backend/pkg/migrate"
	"github.com/plateful/plateful-backend/pkg/outbox"
	"github.com/plateful/plateful-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	subscriptionRepo := subsvc.NewRepository(dbClient.DB())

	playValidator, err := googleplayvalidation.NewClient(context.Background(), cfg.GooglePlay, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create google play validator", err)
		os.Exit(1)
	}

	engine, err := reconcile.NewEngine(reconcile.EngineParams{
		Repo:              subscriptionRepo,
		OutboxRepo:        outbox.NewRepository(dbClient.DB()),
		TransactionRunner: dbClient,
		ExpiryResolver:    playValidator,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile engine", err)
		os.Exit(1)
	}

	usageResetJob, err := cron.NewUsageResetJob(cron.UsageResetJobParams{
		Logger:    logg,
		UsageRepo: usagesvc.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create usage reset job", err)
		os.Exit(1)
	}

	replayJob, err := cron.NewWebhookReplayJob(cron.WebhookReplayJobParams{
		Logger:      logg,
		PendingRepo: webhooks.NewPendingRepository(dbClient.DB()),
		Engine:      engine,
		Decoders: map[string]cron.ReplayDecodeFunc{
			enums.PlatformAndroid.String(): googleplaywebhook.DecodePayload,
			enums.PlatformIOS.String():     appstorewebhook.DecodePayload,
		},
		MaxAge: cfg.Webhooks.PendingMaxAge,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook replay job", err)
		os.Exit(1)
	}

	revalidationJob, err := cron.NewRevalidationJob(cron.RevalidationJobParams{
		Logger:        logg,
		Subscriptions: subscriptionRepo,
		PlayValidator: playValidator,
		Engine:        engine,
		Window:        cfg.Cron.RevalidationWindow,
		Limit:         cfg.Cron.RevalidationLimit,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create revalidation job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(usageResetJob, replayJob, revalidationJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
