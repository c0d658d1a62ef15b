package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rassdread/homecheff-app-sub014/api/responses"
	"github.com/rassdread/homecheff-app-sub014/api/routes"
	"github.com/rassdread/homecheff-app-sub014/internal/accounts"
	"github.com/rassdread/homecheff-app-sub014/internal/delivery"
	"github.com/rassdread/homecheff-app-sub014/internal/email"
	"github.com/rassdread/homecheff-app-sub014/internal/escrow"
	"github.com/rassdread/homecheff-app-sub014/internal/notifications"
	"github.com/rassdread/homecheff-app-sub014/internal/orders"
	"github.com/rassdread/homecheff-app-sub014/internal/payouts"
	"github.com/rassdread/homecheff-app-sub014/internal/reviews"
	"github.com/rassdread/homecheff-app-sub014/internal/shipping"
	"github.com/rassdread/homecheff-app-sub014/internal/users"
	"github.com/rassdread/homecheff-app-sub014/pkg/auth/session"
	"github.com/rassdread/homecheff-app-sub014/pkg/config"
	"github.com/rassdread/homecheff-app-sub014/pkg/db"
	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
	"github.com/rassdread/homecheff-app-sub014/pkg/metrics"
	"github.com/rassdread/homecheff-app-sub014/pkg/migrate"
	"github.com/rassdread/homecheff-app-sub014/pkg/outbox"
	"github.com/rassdread/homecheff-app-sub014/pkg/redis"
	"github.com/rassdread/homecheff-app-sub014/pkg/stripe"
)

const countdownTTL = 12 * time.Hour

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
		Env:         cfg.App.Env,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	responses.ExposeInternalErrors(cfg.App.IsDev())

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

	sessionChecker, err := session.NewChecker(redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create session checker", err)
		os.Exit(1)
	}

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	handler, err := buildRouter(cfg, logg, dbClient, redisClient, sessionChecker, stripeClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire api", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"stripe_mode": string(stripeClient.Mode()),
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func buildRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	sessions session.AccessSessionChecker,
	stripeClient *stripe.Client,
) (http.Handler, error) {
	gdb := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gdb), logg)
	usersRepo := users.NewRepository(gdb)
	ordersRepo := orders.NewRepository(gdb)
	reviewsRepo := reviews.NewRepository(gdb)

	notificationService, err := notifications.NewService(notifications.NewRepository(gdb), logg, cfg.App.BaseURL)
	if err != nil {
		return nil, err
	}
	mailer, err := email.NewSender(cfg.Sendgrid, logg)
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
		Escrows:             escrow.NewRepository(gdb),
		Payouts:             payouts.NewRepository(gdb),
		Users:               usersRepo,
		Destination:         destination,
		PartnerDestination:  payouts.LedgerOnlyDestination{},
		Outbox:              outboxService,
		Notifier:            notificationService,
		Metrics:             metrics.NewPayoutMetrics(prometheus.DefaultRegisterer),
		Currency:            cfg.Payouts.Currency,
		PartnerSharePercent: cfg.Payouts.PartnerSharePercent,
	})
	if err != nil {
		return nil, err
	}

	issuer, err := reviews.NewIssuer(reviews.IssuerParams{
		Logger:   logg,
		Reviews:  reviewsRepo,
		Orders:   ordersRepo,
		Users:    usersRepo,
		Email:    mailer,
		Notifier: notificationService,
		BaseURL:  cfg.App.BaseURL,
		TokenTTL: cfg.Reviews.TokenTTL,
	})
	if err != nil {
		return nil, err
	}
	reviewService, err := reviews.NewService(reviews.ServiceParams{
		Logger:   logg,
		DB:       dbClient,
		Reviews:  reviewsRepo,
		Orders:   ordersRepo,
		Notifier: notificationService,
		Outbox:   outboxService,
	})
	if err != nil {
		return nil, err
	}

	reconciler, err := shipping.NewReconciler(shipping.ReconcilerParams{
		Logger:   logg,
		DB:       dbClient,
		Orders:   ordersRepo,
		Labels:   shipping.NewLabelRepository(gdb),
		Payouts:  engine,
		Notifier: notificationService,
		Users:    usersRepo,
		Reviews:  issuer,
		Outbox:   outboxService,
	})
	if err != nil {
		return nil, err
	}
	guard, err := shipping.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, "carrier-webhook")
	if err != nil {
		return nil, err
	}

	deliveryService, err := delivery.NewService(delivery.ServiceParams{
		Logger:     logg,
		DB:         dbClient,
		Deliveries: delivery.NewRepository(gdb),
		Orders:     ordersRepo,
		Users:      usersRepo,
		Payouts:    engine,
		Notifier:   notificationService,
		Reviews:    issuer,
		Countdown:  delivery.NewRedisCountdown(redisClient, countdownTTL),
		Outbox:     outboxService,
	})
	if err != nil {
		return nil, err
	}

	deleter, err := accounts.NewDeleter(accounts.DeleterParams{
		Logger: logg,
		DB:     dbClient,
		Users:  usersRepo,
		Outbox: outboxService,
	})
	if err != nil {
		return nil, err
	}

	return routes.NewRouter(routes.Params{
		Config:         cfg,
		Logger:         logg,
		DB:             dbClient,
		Redis:          redisClient,
		Sessions:       sessions,
		Metrics:        promhttp.Handler(),
		Traffic:        metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
		CarrierEvents:  reconciler,
		Signatures:     shipping.NewSignatureVerifier(cfg.Carrier.SecretFor),
		WebhookGuard:   guard,
		WebhookMetrics: metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
		Delivery:       deliveryService,
		Reviews:        reviewService,
		Accounts:       deleter,
	}), nil
}
