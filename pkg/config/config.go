package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Stripe   StripeConfig
	Frontend FrontendConfig
	Payments PaymentsConfig
	Eventing EventingConfig
	Outbox   OutboxConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Cron     CronConfig
}

// Load reads the process environment and fails fast on missing or invalid keys.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Frontend.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Payments.validate(); err != nil {
		return nil, err
	}
	if cfg.App.IsProd() && cfg.Stripe.AllowMockConnect {
		return nil, fmt.Errorf("%s cannot be enabled in production", EnvStripeAllowMockConnect)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BENCHLOT_APP_ENV" required:"true"`
	Port         string `envconfig:"BENCHLOT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BENCHLOT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BENCHLOT_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"BENCHLOT_LOG_FORMAT" default:"json"`
	AutoMigrate  bool   `envconfig:"BENCHLOT_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

// ConsoleLogs reports whether logs should use the human readable writer.
func (a AppConfig) ConsoleLogs() bool {
	return strings.EqualFold(strings.TrimSpace(a.LogFormat), "console")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"BENCHLOT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"BENCHLOT_DB_DSN"`

	LegacyHost     string `envconfig:"BENCHLOT_DB_HOST"`
	LegacyPort     int    `envconfig:"BENCHLOT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BENCHLOT_DB_USER"`
	LegacyPassword string `envconfig:"BENCHLOT_DB_PASSWORD"`
	LegacyName     string `envconfig:"BENCHLOT_DB_NAME"`
	LegacySSLMode  string `envconfig:"BENCHLOT_DB_SSLMODE" default:"require"`

	MaxOpenConns    int           `envconfig:"BENCHLOT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BENCHLOT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BENCHLOT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BENCHLOT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"BENCHLOT_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BENCHLOT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BENCHLOT_REDIS_ADDR"`
	Password     string        `envconfig:"BENCHLOT_REDIS_PASSWORD"`
	DB           int           `envconfig:"BENCHLOT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BENCHLOT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BENCHLOT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BENCHLOT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BENCHLOT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BENCHLOT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the Supabase project JWT secret. An empty secret disables bearer auth.
type JWTConfig struct {
	Secret   string `envconfig:"BENCHLOT_JWT_SECRET"`
	Audience string `envconfig:"BENCHLOT_JWT_AUDIENCE" default:"authenticated"`
}

// Enabled reports whether bearer tokens are verified on user routes.
func (j JWTConfig) Enabled() bool {
	return strings.TrimSpace(j.Secret) != ""
}

type StripeConfig struct {
	APIKey           string `envconfig:"BENCHLOT_STRIPE_API_KEY" required:"true"`
	WebhookSecret    string `envconfig:"BENCHLOT_STRIPE_WEBHOOK_SECRET" required:"true"`
	Env              string `envconfig:"BENCHLOT_STRIPE_ENV" default:"test"`
	Country          string `envconfig:"BENCHLOT_STRIPE_CONNECT_COUNTRY" default:"US"`
	AllowMockConnect bool   `envconfig:"BENCHLOT_STRIPE_ALLOW_MOCK_CONNECT" default:"false"`
	MaxRetries       int64  `envconfig:"BENCHLOT_STRIPE_MAX_NETWORK_RETRIES" default:"2"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type FrontendConfig struct {
	BaseURL string `envconfig:"BENCHLOT_FRONTEND_BASE_URL" required:"true"`
}

// URL joins the frontend base URL with the provided path.
func (f FrontendConfig) URL(path string) string {
	base := strings.TrimRight(strings.TrimSpace(f.BaseURL), "/")
	if path == "" {
		return base
	}
	return base + "/" + strings.TrimLeft(path, "/")
}

func (f FrontendConfig) validate() error {
	parsed, err := url.Parse(strings.TrimSpace(f.BaseURL))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", EnvFrontendBaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an absolute http(s) url", EnvFrontendBaseURL)
	}
	return nil
}

// PaymentsConfig captures marketplace money settings, expressed in basis points.
type PaymentsConfig struct {
	Currency              string        `envconfig:"BENCHLOT_PAYMENTS_CURRENCY" default:"usd"`
	PlatformFeeBps        int64         `envconfig:"BENCHLOT_PLATFORM_FEE_BPS" default:"500"`
	ProcessingReserveBps  int64         `envconfig:"BENCHLOT_PROCESSING_RESERVE_BPS" default:"300"`
	OnboardingTokenTTL    time.Duration `envconfig:"BENCHLOT_ONBOARDING_TOKEN_TTL" default:"24h"`
	PayoutRetryMaxAttempt int           `envconfig:"BENCHLOT_PAYOUT_RETRY_MAX_ATTEMPTS" default:"5"`
	PayoutPendingLease    time.Duration `envconfig:"BENCHLOT_PAYOUT_PENDING_LEASE" default:"15m"`
}

func (p PaymentsConfig) validate() error {
	if p.PlatformFeeBps < 0 || p.PlatformFeeBps > 10000 {
		return fmt.Errorf("%s must be between 0 and 10000", EnvPlatformFeeBps)
	}
	if p.ProcessingReserveBps < 0 || p.PlatformFeeBps+p.ProcessingReserveBps > 10000 {
		return fmt.Errorf("%s must keep the combined fee under 10000 bps", EnvProcessingReserveBps)
	}
	return nil
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"BENCHLOT_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BENCHLOT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BENCHLOT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BENCHLOT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// GCPConfig selects the project and, outside GCP, explicit credentials.
// Without either credential setting the client uses application default credentials.
type GCPConfig struct {
	ProjectID              string `envconfig:"BENCHLOT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"BENCHLOT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"BENCHLOT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic  string `envconfig:"BENCHLOT_PUBSUB_ORDERS_TOPIC" default:"benchlot-order-events"`
	PayoutsTopic string `envconfig:"BENCHLOT_PUBSUB_PAYOUTS_TOPIC" default:"benchlot-payout-events"`
}

type CronConfig struct {
	Interval            time.Duration `envconfig:"BENCHLOT_CRON_INTERVAL" default:"15m"`
	JobTimeout          time.Duration `envconfig:"BENCHLOT_CRON_JOB_TIMEOUT" default:"5m"`
	StatusStaleAfter    time.Duration `envconfig:"BENCHLOT_CRON_STATUS_STALE_AFTER" default:"24h"`
	StatusReconcileSize int           `envconfig:"BENCHLOT_CRON_STATUS_BATCH" default:"100"`
	PayoutRetryBatch    int           `envconfig:"BENCHLOT_CRON_PAYOUT_RETRY_BATCH" default:"50"`
	OutboxRetention     time.Duration `envconfig:"BENCHLOT_CRON_OUTBOX_RETENTION" default:"720h"`
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
