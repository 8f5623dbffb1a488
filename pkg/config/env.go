package config

const (
	EnvPrefix = "BENCHLOT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv                 = "BENCHLOT_APP_ENV"
	EnvPort                   = "BENCHLOT_APP_PORT"
	EnvDBDSN                  = "BENCHLOT_DB_DSN"
	EnvDBHost                 = "BENCHLOT_DB_HOST"
	EnvDBUser                 = "BENCHLOT_DB_USER"
	EnvDBName                 = "BENCHLOT_DB_NAME"
	EnvRedisURL               = "BENCHLOT_REDIS_URL"
	EnvJWTSecret              = "BENCHLOT_JWT_SECRET"
	EnvStripeAPIKey           = "BENCHLOT_STRIPE_API_KEY"
	EnvStripeWebhookSecret    = "BENCHLOT_STRIPE_WEBHOOK_SECRET"
	EnvStripeEnv              = "BENCHLOT_STRIPE_ENV"
	EnvStripeAllowMockConnect = "BENCHLOT_STRIPE_ALLOW_MOCK_CONNECT"
	EnvFrontendBaseURL        = "BENCHLOT_FRONTEND_BASE_URL"
	EnvPlatformFeeBps         = "BENCHLOT_PLATFORM_FEE_BPS"
	EnvProcessingReserveBps   = "BENCHLOT_PROCESSING_RESERVE_BPS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
