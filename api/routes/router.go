package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rassdread/homecheff-app-sub014/api/controllers"
	admincontrollers "github.com/rassdread/homecheff-app-sub014/api/controllers/admin"
	deliverycontrollers "github.com/rassdread/homecheff-app-sub014/api/controllers/delivery"
	reviewcontrollers "github.com/rassdread/homecheff-app-sub014/api/controllers/reviews"
	webhookcontrollers "github.com/rassdread/homecheff-app-sub014/api/controllers/webhooks"
	"github.com/rassdread/homecheff-app-sub014/api/middleware"
	"github.com/rassdread/homecheff-app-sub014/pkg/auth/session"
	"github.com/rassdread/homecheff-app-sub014/pkg/config"
	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
	"github.com/rassdread/homecheff-app-sub014/pkg/metrics"
)

const (
	reviewRateWindow = time.Minute
	reviewRateLimit  = 20
)

// RedisStore is the subset of the redis client the HTTP layer relies on.
type RedisStore interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	Del(ctx context.Context, keys ...string) error
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Params carries everything the API surface is wired from.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    RedisStore
	Sessions session.AccessSessionChecker
	Metrics  http.Handler
	Traffic  *metrics.HTTPMetrics

	CarrierEvents  webhookcontrollers.CarrierEventHandler
	Signatures     webhookcontrollers.SignatureChecker
	WebhookGuard   webhookcontrollers.ReplayGuard
	WebhookMetrics webhookcontrollers.OutcomeRecorder

	Delivery deliverycontrollers.StatusUpdater
	Reviews  reviewcontrollers.Service
	Accounts admincontrollers.UserDeleter
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, p.Traffic),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	store := p.Redis
	deps := map[string]controllers.Pinger{}
	if p.DB != nil {
		deps["postgres"] = p.DB
	}
	if store != nil {
		deps["redis"] = store
	}

	webhookPolicy := middleware.NewRateLimitPolicy("carrier-webhook", cfg.Carrier.RateLimitWindow, cfg.Carrier.RateLimit, "carrier")
	reviewPolicy := middleware.NewRateLimitPolicy("review-submit", reviewRateWindow, reviewRateLimit, "")

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps, logg))
	})
	if p.Metrics != nil {
		r.Handle("/metrics", p.Metrics)
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.Ping("public"))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.With(middleware.RateLimit(webhookPolicy, store, logg)).
			Post("/{carrier}", webhookcontrollers.CarrierWebhook(p.CarrierEvents, p.Signatures, p.WebhookGuard, p.WebhookMetrics, logg))
	})

	// review links are opened from e-mail without a session
	r.Group(func(r chi.Router) {
		r.Use(middleware.Idempotency(store, logg))
		r.Get("/api/v1/reviews/token/{token}", reviewcontrollers.ValidateToken(p.Reviews, logg))
		r.With(middleware.RateLimit(reviewPolicy, store, logg)).Post("/api/v1/reviews/create", reviewcontrollers.SubmitWithToken(p.Reviews, logg))
		r.Get("/api/v1/products/{productId}/reviews", reviewcontrollers.ListForProduct(p.Reviews, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))
		r.Use(middleware.Idempotency(store, logg))
		r.Get("/api/ping", controllers.Ping("private"))

		r.With(middleware.RateLimit(reviewPolicy, store, logg)).
			Post("/api/v1/products/{productId}/reviews", reviewcontrollers.CreateForProduct(p.Reviews, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleDelivery))
			r.Post("/api/v1/delivery/orders/{orderId}/update-status", deliverycontrollers.UpdateStatus(p.Delivery, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
			r.Get("/api/admin/ping", controllers.Ping("admin"))
			r.Delete("/api/admin/v1/users/{userId}", admincontrollers.DeleteUser(p.Accounts, logg))
		})
	})

	return r
}
