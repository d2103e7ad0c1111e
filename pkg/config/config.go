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
	HTTP         HTTPConfig
	Lock         LockConfig
	Scheduler    SchedulerConfig
	GSM          GSMConfig
	PCR          PCRConfig
	Routing      RoutingConfig
	Security     SecurityConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Square       SquareConfig
	MercadoPago  MercadoPagoConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SWITCH_APP_ENV" required:"true"`
	Port         string `envconfig:"SWITCH_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SWITCH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SWITCH_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"SWITCH_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SWITCH_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SWITCH_DB_DSN"`
	Driver string `envconfig:"SWITCH_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SWITCH_DB_HOST"`
	LegacyPort     int    `envconfig:"SWITCH_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SWITCH_DB_USER"`
	LegacyPassword string `envconfig:"SWITCH_DB_PASSWORD"`
	LegacyName     string `envconfig:"SWITCH_DB_NAME"`
	LegacySSLMode  string `envconfig:"SWITCH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SWITCH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SWITCH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SWITCH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SWITCH_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// HealthCheckInterval drives the pool recovery loop; zero disables it.
	HealthCheckInterval time.Duration `envconfig:"SWITCH_DB_HEALTH_CHECK_INTERVAL" default:"15s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SWITCH_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SWITCH_REDIS_ADDR"`
	Password     string        `envconfig:"SWITCH_REDIS_PASSWORD"`
	DB           int           `envconfig:"SWITCH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SWITCH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SWITCH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SWITCH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SWITCH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SWITCH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SWITCH_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SWITCH_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SWITCH_JWT_EXPIRATION_MINUTES" required:"true"`
}

type HTTPConfig struct {
	AllowedOrigins  []string      `envconfig:"SWITCH_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	RateLimitWindow time.Duration `envconfig:"SWITCH_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimit       int           `envconfig:"SWITCH_RATE_LIMIT_PER_MERCHANT" default:"600"`
	ReadTimeout     time.Duration `envconfig:"SWITCH_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SWITCH_HTTP_WRITE_TIMEOUT" default:"60s"`
	// WebhookEventTTL is how long a processed connector event id is remembered.
	WebhookEventTTL time.Duration `envconfig:"SWITCH_WEBHOOK_EVENT_TTL" default:"72h"`
}

// LockConfig bounds acquisition of the per-resource API lock.
type LockConfig struct {
	TTL     time.Duration `envconfig:"SWITCH_LOCK_TTL" default:"100s"`
	Delay   time.Duration `envconfig:"SWITCH_LOCK_DELAY" default:"50ms"`
	Retries uint32        `envconfig:"SWITCH_LOCK_RETRIES" default:"20"`
}

type SchedulerConfig struct {
	PollInterval time.Duration `envconfig:"SWITCH_SCHEDULER_POLL_INTERVAL" default:"5s"`
	BatchSize    int           `envconfig:"SWITCH_SCHEDULER_BATCH_SIZE" default:"50"`
	Workers      int           `envconfig:"SWITCH_SCHEDULER_WORKERS" default:"4"`
	StaleAfter   time.Duration `envconfig:"SWITCH_SCHEDULER_STALE_AFTER" default:"10m"`
	LockTTL      time.Duration `envconfig:"SWITCH_SCHEDULER_LOCK_TTL" default:"1m"`
	RetryDelay   time.Duration `envconfig:"SWITCH_SCHEDULER_RETRY_DELAY" default:"1m"`
	// MaxFailures is how many handler errors a row may take before it is
	// parked in review.
	MaxFailures int `envconfig:"SWITCH_SCHEDULER_MAX_FAILURES" default:"5"`
}

type GSMConfig struct {
	// DefaultEnabled applies when a merchant has no should_call_gsm config row.
	DefaultEnabled bool `envconfig:"SWITCH_GSM_DEFAULT_ENABLED" default:"true"`
}

type PCRConfig struct {
	StartAfter  time.Duration `envconfig:"SWITCH_PCR_START_AFTER" default:"60s"`
	Frequencies string        `envconfig:"SWITCH_PCR_FREQUENCIES" default:"300:3,3600:3"`
}

type RoutingConfig struct {
	ScorerAddr    string        `envconfig:"SWITCH_ROUTING_SCORER_ADDR"`
	ScorerTimeout time.Duration `envconfig:"SWITCH_ROUTING_SCORER_TIMEOUT" default:"300ms"`
}

type SecurityConfig struct {
	// PIIKey is a base64 encoded 32 byte XChaCha20-Poly1305 key.
	PIIKey string `envconfig:"SWITCH_PII_KEY"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SWITCH_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SWITCH_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SWITCH_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"SWITCH_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SWITCH_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	WebhooksTopic string `envconfig:"SWITCH_PUBSUB_WEBHOOKS_TOPIC" default:"payment-webhooks"`
	// Endpoint overrides the Pub/Sub API host, e.g. a local emulator.
	Endpoint string `envconfig:"SWITCH_PUBSUB_ENDPOINT"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SWITCH_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SWITCH_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SWITCH_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"SWITCH_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"SWITCH_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"SWITCH_SQUARE_LOCATION_ID"`

	// WebhookURL is the notification URL registered with Square; it is part of the signed payload.
	WebhookURL          string `envconfig:"SWITCH_SQUARE_WEBHOOK_URL"`
	WebhookSignatureKey string `envconfig:"SWITCH_SQUARE_WEBHOOK_SIGNATURE_KEY"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type MercadoPagoConfig struct {
	AccessToken   string `envconfig:"SWITCH_MERCADOPAGO_ACCESS_TOKEN"`
	WebhookSecret string `envconfig:"SWITCH_MERCADOPAGO_WEBHOOK_SECRET"`
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
