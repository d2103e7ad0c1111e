package config

const (
	EnvPrefix = "SWITCH"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv     = "SWITCH_APP_ENV"
	EnvPort       = "SWITCH_APP_PORT"
	EnvDBDSN      = "SWITCH_DB_DSN"
	EnvDBHost     = "SWITCH_DB_HOST"
	EnvDBUser     = "SWITCH_DB_USER"
	EnvDBName     = "SWITCH_DB_NAME"
	EnvRedisURL   = "SWITCH_REDIS_URL"
	EnvJWTSecret  = "SWITCH_JWT_SECRET"
	EnvJWTIssuer  = "SWITCH_JWT_ISSUER"
	EnvJWTExpMins = "SWITCH_JWT_EXPIRATION_MINUTES"
	EnvLockTTL    = "SWITCH_LOCK_TTL"
	EnvLockDelay  = "SWITCH_LOCK_DELAY"
	EnvLockRetry  = "SWITCH_LOCK_RETRIES"
	EnvPIIKey     = "SWITCH_PII_KEY"
	EnvGCPProject = "SWITCH_GCP_PROJECT_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
