package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rassdread/homecheff-app-sub014/internal/cron"
	"github.com/rassdread/homecheff-app-sub014/internal/escrow"
	"github.com/rassdread/homecheff-app-sub014/internal/notifications"
	"github.com/rassdread/homecheff-app-sub014/internal/payouts"
	"github.com/rassdread/homecheff-app-sub014/internal/reviews"
	"github.com/rassdread/homecheff-app-sub014/internal/users"
	"github.com/rassdread/homecheff-app-sub014/pkg/config"
	"github.com/rassdread/homecheff-app-sub014/pkg/db"
	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
	"github.com/rassdread/homecheff-app-sub014/pkg/metrics"
	"github.com/rassdread/homecheff-app-sub014/pkg/migrate"
	"github.com/rassdread/homecheff-app-sub014/pkg/outbox"
	"github.com/rassdread/homecheff-app-sub014/pkg/redis"
	"github.com/rassdread/homecheff-app-sub014/pkg/stripe"
)

const lockKeyFormat = "hc:cron-worker:lock:%s"

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
		Env:         cfg.App.Env,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
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

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lockKeyValue := cfg.Cron.LockKey
	if lockKeyValue == "" {
		lockKeyValue = lockKey(cfg.App.Env)
	}
	lock, err := cron.NewRedisLock(redisClient, lockKeyValue, cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	jobs, err := buildJobs(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	registry, err := cron.NewRegistry(jobs...)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	metrics.ServeWorker(ctx, ":"+cfg.App.Port, logg)
	logg.Info(logg.WithField(ctx, "jobs", registry.Names()), "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) ([]cron.Job, error) {
	gdb := dbClient.DB()
	outboxRepo := outbox.NewRepository(gdb)
	notificationRepo := notifications.NewRepository(gdb)
	escrows := escrow.NewRepository(gdb)

	notificationService, err := notifications.NewService(notificationRepo, logg, cfg.App.BaseURL)
	if err != nil {
		return nil, err
	}
	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		return nil, err
	}
	destination, err := payouts.NewStripeDestination(stripeClient.Transfers())
	if err != nil {
		return nil, err
	}
	engine, err := payouts.NewEngine(payouts.EngineParams{
		Logger:              logg,
		DB:                  dbClient,
		Escrows:             escrows,
		Payouts:             payouts.NewRepository(gdb),
		Users:               users.NewRepository(gdb),
		Destination:         destination,
		PartnerDestination:  payouts.LedgerOnlyDestination{},
		Outbox:              outbox.NewService(outboxRepo, logg),
		Notifier:            notificationService,
		Metrics:             metrics.NewPayoutMetrics(prometheus.DefaultRegisterer),
		Currency:            cfg.Payouts.Currency,
		PartnerSharePercent: cfg.Payouts.PartnerSharePercent,
	})
	if err != nil {
		return nil, err
	}

	payoutJob, err := cron.NewPayoutReconcileJob(cron.PayoutReconcileJobParams{
		Logger:      logg,
		Escrows:     escrows,
		Payouts:     engine,
		GracePeriod: cfg.Payouts.ReconcileGracePeriod,
		BatchSize:   cfg.Payouts.ReconcileBatchSize,
	})
	if err != nil {
		return nil, err
	}
	reviewJob, err := cron.NewReviewTokenExpiryJob(cron.ReviewTokenExpiryJobParams{
		Logger:    logg,
		Reviews:   reviews.NewRepository(gdb),
		Retention: cfg.Reviews.TokenRetention,
	})
	if err != nil {
		return nil, err
	}
	notificationJob, err := cron.NewNotificationCleanupJob(logg, dbClient, notificationRepo, 0)
	if err != nil {
		return nil, err
	}
	outboxJob, err := cron.NewOutboxRetentionJob(logg, dbClient, outboxRepo, 0, 0)
	if err != nil {
		return nil, err
	}
	dlqJob, err := cron.NewOutboxDLQRetentionJob(logg, dbClient, outbox.NewDLQRepository(gdb), 0)
	if err != nil {
		return nil, err
	}
	return []cron.Job{payoutJob, reviewJob, notificationJob, outboxJob, dlqJob}, nil
}
