package config

const EnvPrefix = "ANGKOR"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// Variable names referenced by validation messages and tests.
const (
	EnvAppEnv    = "ANGKOR_APP_ENV"
	EnvPort      = "ANGKOR_APP_PORT"
	EnvLogLevel  = "ANGKOR_LOG_LEVEL"
	EnvLogFormat = "ANGKOR_LOG_FORMAT"

	EnvDBDSN      = "ANGKOR_DB_DSN"
	EnvDBHost     = "ANGKOR_DB_HOST"
	EnvDBUser     = "ANGKOR_DB_USER"
	EnvDBName     = "ANGKOR_DB_NAME"
	EnvDBPassword = "ANGKOR_DB_PASSWORD"

	EnvRedisURL = "ANGKOR_REDIS_URL"

	EnvJWTSecret = "ANGKOR_JWT_SECRET"
	EnvJWTIssuer = "ANGKOR_JWT_ISSUER"

	EnvPayWayMerchantID    = "ANGKOR_PAYWAY_MERCHANT_ID"
	EnvPayWaySecretKey     = "ANGKOR_PAYWAY_SECRET_KEY"
	EnvPayWayHashAlgorithm = "ANGKOR_PAYWAY_HASH_ALGORITHM"
	EnvPayWayRetryAttempts = "ANGKOR_PAYWAY_RETRY_ATTEMPTS"
	EnvPayWayRetryDelay    = "ANGKOR_PAYWAY_RETRY_DELAY"

	EnvCatalogVariantSync = "ANGKOR_CATALOG_VARIANT_SYNC"

	EnvOutboxBatchSize    = "ANGKOR_OUTBOX_BATCH_SIZE"
	EnvOutboxPollInterval = "ANGKOR_OUTBOX_POLL_INTERVAL"
	EnvOutboxMaxAttempts  = "ANGKOR_OUTBOX_MAX_ATTEMPTS"
)

const (
	PayWaySandboxURL    = "https://checkout-sandbox.payway.com.kh"
	PayWayProductionURL = "https://checkout.payway.com.kh"

	HashSHA512  = "sha512"
	HashSHA256  = "sha256"
	HashSHA3512 = "sha3-512"

	VariantSyncReconcile = "reconcile"
	VariantSyncReplace   = "replace"
)
