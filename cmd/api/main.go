package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/plateful/plateful-backend/api/routes"
	"github.com/plateful/plateful-backend/internal/reconcile"
	subsvc "github.com/plateful/plateful-backend/internal/subscriptions"
	usagesvc "github.com/plateful/plateful-backend/internal/usage"
	appstorevalidation "github.com/plateful/plateful-backend/internal/validation/appstore"
	googleplayvalidation "github.com/plateful/plateful-backend/internal/validation/googleplay"
	"github.com/plateful/plateful-backend/internal/webhooks"
	appstorewebhook "github.com/plateful/plateful-backend/internal/webhooks/appstore"
	googleplaywebhook "github.com/plateful/plateful-backend/internal/webhooks/googleplay"
	"github.com/plateful/plateful-backend/pkg/config"
	"github.com/plateful/plateful-backend/pkg/db"
	"github.com/plateful/plateful-backend/pkg/logger"
	"github.com/plateful/plateful-backend/pkg/metrics"
	"github.com/plateful/plateful-backend/pkg/migrate"
	"github.com/plateful/plateful-backend/pkg/outbox"
	"github.com/plateful/plateful-backend/pkg/redis"
)

const shutdownGrace = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
	outboxRepo := outbox.NewRepository(dbClient.DB())

	playValidator, err := googleplayvalidation.NewClient(context.Background(), cfg.GooglePlay, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create google play validator", err)
		os.Exit(1)
	}

	engine, err := reconcile.NewEngine(reconcile.EngineParams{
		Repo:              subscriptionRepo,
		OutboxRepo:        outboxRepo,
		TransactionRunner: dbClient,
		ExpiryResolver:    playValidator,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile engine", err)
		os.Exit(1)
	}
	appStoreValidator, err := appstorevalidation.NewClient(cfg.AppStore, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create app store validator", err)
		os.Exit(1)
	}

	verifyService, err := subsvc.NewVerifyService(subsvc.VerifyServiceParams{
		AndroidValidator: playValidator,
		IOSValidator:     appStoreValidator,
		Engine:           engine,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create verify service", err)
		os.Exit(1)
	}

	subscriptionService, err := subsvc.NewService(subsvc.ServiceParams{Repo: subscriptionRepo})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	usageService, err := usagesvc.NewService(usagesvc.ServiceParams{
		Repo:  usagesvc.NewRepository(dbClient.DB()),
		Tiers: subscriptionService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create usage service", err)
		os.Exit(1)
	}

	webhookMetrics := metrics.NewWebhookMetrics(prometheus.DefaultRegisterer)
	pendingRepo := webhooks.NewPendingRepository(dbClient.DB())

	playGuard, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Webhooks.DedupTTL, googleplaywebhook.Scope)
	if err != nil {
		logg.Error(context.Background(), "failed to create play idempotency guard", err)
		os.Exit(1)
	}
	playProcessor, err := webhooks.NewProcessor(webhooks.ProcessorParams{
		Guard:       playGuard,
		Engine:      engine,
		PendingRepo: pendingRepo,
		Metrics:     webhookMetrics,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create play webhook processor", err)
		os.Exit(1)
	}
	playWebhookService, err := googleplaywebhook.NewService(googleplaywebhook.ServiceParams{
		Processor: playProcessor,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create play webhook service", err)
		os.Exit(1)
	}

	appStoreGuard, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Webhooks.DedupTTL, appstorewebhook.Scope)
	if err != nil {
		logg.Error(context.Background(), "failed to create app store idempotency guard", err)
		os.Exit(1)
	}
	appStoreProcessor, err := webhooks.NewProcessor(webhooks.ProcessorParams{
		Guard:       appStoreGuard,
		Engine:      engine,
		PendingRepo: pendingRepo,
		Metrics:     webhookMetrics,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create app store webhook processor", err)
		os.Exit(1)
	}
	appStoreWebhookService, err := appstorewebhook.NewService(appstorewebhook.ServiceParams{
		Processor:    appStoreProcessor,
		SharedSecret: cfg.AppStore.SharedSecret,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create app store webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	handler := routes.NewRouter(routes.RouterParams{
		Config:              cfg,
		Logger:              logg,
		DB:                  dbClient,
		Redis:               redisClient,
		SubscriptionService: subscriptionService,
		VerifyService:       verifyService,
		UsageService:        usageService,
		GooglePlayWebhook:   playWebhookService,
		AppStoreWebhook:     appStoreWebhookService,
		MetricsGatherer:     prometheus.DefaultGatherer,
	})

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server shutting down gracefully")
}
