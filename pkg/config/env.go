package config

const (
	EnvPrefix = "HOMECHEFF"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv              = "HOMECHEFF_APP_ENV"
	EnvPort                = "HOMECHEFF_APP_PORT"
	EnvDBDSN               = "HOMECHEFF_DB_DSN"
	EnvDBHost              = "HOMECHEFF_DB_HOST"
	EnvDBUser              = "HOMECHEFF_DB_USER"
	EnvDBName              = "HOMECHEFF_DB_NAME"
	EnvRedisURL            = "HOMECHEFF_REDIS_URL"
	EnvJWTSecret           = "HOMECHEFF_JWT_SECRET"
	EnvJWTIssuer           = "HOMECHEFF_JWT_ISSUER"
	EnvCarrierSecrets      = "HOMECHEFF_CARRIER_WEBHOOK_SECRETS"
	EnvPartnerSharePercent = "HOMECHEFF_PAYOUT_PARTNER_SHARE_PERCENT"
	EnvReviewTokenTTL      = "HOMECHEFF_REVIEW_TOKEN_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
