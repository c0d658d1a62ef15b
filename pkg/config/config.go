package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
	Sendgrid     SendgridConfig
	Carrier      CarrierConfig
	Payouts      PayoutsConfig
	Reviews      ReviewsConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Payouts.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"HOMECHEFF_APP_ENV" required:"true"`
	Port         string   `envconfig:"HOMECHEFF_APP_PORT" required:"true"`
	BaseURL      string   `envconfig:"HOMECHEFF_APP_BASE_URL" default:"https://homecheff.eu"`
	LogLevel     string   `envconfig:"HOMECHEFF_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"HOMECHEFF_LOG_WARN_STACK" default:"false"`
	LogFormat    string   `envconfig:"HOMECHEFF_LOG_FORMAT" default:"json"`
	CORSOrigins  []string `envconfig:"HOMECHEFF_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"HOMECHEFF_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN       string        `envconfig:"HOMECHEFF_DB_DSN"`
	SlowQuery time.Duration `envconfig:"HOMECHEFF_DB_SLOW_QUERY" default:"500ms"`

	LegacyHost     string `envconfig:"HOMECHEFF_DB_HOST"`
	LegacyPort     int    `envconfig:"HOMECHEFF_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HOMECHEFF_DB_USER"`
	LegacyPassword string `envconfig:"HOMECHEFF_DB_PASSWORD"`
	LegacyName     string `envconfig:"HOMECHEFF_DB_NAME"`
	LegacySSLMode  string `envconfig:"HOMECHEFF_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HOMECHEFF_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HOMECHEFF_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HOMECHEFF_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HOMECHEFF_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HOMECHEFF_REDIS_URL" required:"true"`
	Address      string        `envconfig:"HOMECHEFF_REDIS_ADDR"`
	Password     string        `envconfig:"HOMECHEFF_REDIS_PASSWORD"`
	DB           int           `envconfig:"HOMECHEFF_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HOMECHEFF_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HOMECHEFF_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HOMECHEFF_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HOMECHEFF_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HOMECHEFF_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"HOMECHEFF_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"HOMECHEFF_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"HOMECHEFF_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"HOMECHEFF_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"HOMECHEFF_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"HOMECHEFF_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic  string `envconfig:"HOMECHEFF_PUBSUB_ORDERS_TOPIC" default:"hc-order-events"`
	PayoutsTopic string `envconfig:"HOMECHEFF_PUBSUB_PAYOUTS_TOPIC" default:"hc-payout-events"`
	ReviewsTopic string `envconfig:"HOMECHEFF_PUBSUB_REVIEWS_TOPIC" default:"hc-review-events"`
	UsersTopic   string `envconfig:"HOMECHEFF_PUBSUB_USERS_TOPIC" default:"hc-user-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"HOMECHEFF_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"HOMECHEFF_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"HOMECHEFF_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	APIKey            string `envconfig:"HOMECHEFF_STRIPE_API_KEY"`
	Env               string `envconfig:"HOMECHEFF_STRIPE_ENV" default:"test"`
	MaxNetworkRetries int    `envconfig:"HOMECHEFF_STRIPE_MAX_RETRIES" default:"2"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"HOMECHEFF_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"HOMECHEFF_SENDGRID_FROM_EMAIL" default:"noreply@homecheff.eu"`
	FromName    string `envconfig:"HOMECHEFF_SENDGRID_FROM_NAME" default:"HomeCheff"`
}

// CarrierConfig holds per-carrier webhook signing secrets. Carriers without a
// secret are accepted unsigned.
type CarrierConfig struct {
	Secrets         map[string]string `envconfig:"HOMECHEFF_CARRIER_WEBHOOK_SECRETS"`
	RateLimit       int               `envconfig:"HOMECHEFF_CARRIER_WEBHOOK_RATE_LIMIT" default:"300"`
	RateLimitWindow time.Duration     `envconfig:"HOMECHEFF_CARRIER_WEBHOOK_RATE_WINDOW" default:"1m"`
}

// SecretFor returns the configured signing secret for a carrier slug.
func (c CarrierConfig) SecretFor(carrier string) string {
	if c.Secrets == nil {
		return ""
	}
	return strings.TrimSpace(c.Secrets[strings.ToLower(strings.TrimSpace(carrier))])
}

type PayoutsConfig struct {
	Currency             string        `envconfig:"HOMECHEFF_PAYOUT_CURRENCY" default:"eur"`
	PartnerSharePercent  int           `envconfig:"HOMECHEFF_PAYOUT_PARTNER_SHARE_PERCENT" default:"88"`
	ReconcileGracePeriod time.Duration `envconfig:"HOMECHEFF_PAYOUT_RECONCILE_GRACE" default:"15m"`
	ReconcileBatchSize   int           `envconfig:"HOMECHEFF_PAYOUT_RECONCILE_BATCH" default:"25"`
}

func (p PayoutsConfig) validate() error {
	if p.PartnerSharePercent < 0 || p.PartnerSharePercent > 100 {
		return fmt.Errorf("%s must be between 0 and 100", EnvPartnerSharePercent)
	}
	return nil
}

type ReviewsConfig struct {
	TokenTTL       time.Duration `envconfig:"HOMECHEFF_REVIEW_TOKEN_TTL" default:"720h"`
	TokenRetention time.Duration `envconfig:"HOMECHEFF_REVIEW_TOKEN_RETENTION" default:"2160h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"HOMECHEFF_CRON_INTERVAL" default:"10m"`
	LockKey  string        `envconfig:"HOMECHEFF_CRON_LOCK_KEY" default:"hc:cron:lock"`
	LockTTL  time.Duration `envconfig:"HOMECHEFF_CRON_LOCK_TTL" default:"9m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
