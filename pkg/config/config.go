package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

// Config is the whole process configuration. Every binary loads all of it and
// uses the sections it needs.
type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	PayWay     PayWayConfig
	Storefront StorefrontConfig
	Catalog    CatalogConfig
	GCP        GCPConfig
	PubSub     PubSubConfig
	Outbox     OutboxConfig
	Cron       CronConfig
}

// Load reads the environment and reports every invalid section at once.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	err := multierr.Combine(
		cfg.App.validate(),
		cfg.DB.resolveDSN(),
		cfg.PayWay.validate(),
		cfg.Catalog.validate(),
		cfg.Outbox.validate(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ANGKOR_APP_ENV" required:"true"`
	Port         string `envconfig:"ANGKOR_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ANGKOR_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"ANGKOR_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"ANGKOR_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool  { return strings.EqualFold(a.Env, AppEnvDev) }
func (a AppConfig) IsProd() bool { return strings.EqualFold(a.Env, AppEnvProd) }

func (a AppConfig) validate() (err error) {
	err = multierr.Combine(nonBlank(EnvAppEnv, a.Env), nonBlank(EnvPort, a.Port))
	switch strings.ToLower(a.LogFormat) {
	case LogFormatJSON, LogFormatConsole:
	default:
		err = multierr.Append(err, fmt.Errorf("%s must be %s or %s", EnvLogFormat, LogFormatJSON, LogFormatConsole))
	}
	return err
}

// nonBlank catches variables that are exported but empty, which envconfig's
// required tag lets through.
func nonBlank(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s must not be empty", name)
	}
	return nil
}

// DBConfig accepts either a full DSN or its parts. The parts are only read
// when ANGKOR_DB_DSN is empty.
type DBConfig struct {
	DSN              string `envconfig:"ANGKOR_DB_DSN"`
	Driver           string `envconfig:"ANGKOR_DB_DRIVER" default:"postgres"`
	RunMigrationsDev bool   `envconfig:"ANGKOR_DB_RUN_MIGRATIONS_DEV" default:"false"`

	Host     string `envconfig:"ANGKOR_DB_HOST"`
	Port     int    `envconfig:"ANGKOR_DB_PORT" default:"5432"`
	User     string `envconfig:"ANGKOR_DB_USER"`
	Password string `envconfig:"ANGKOR_DB_PASSWORD"`
	Name     string `envconfig:"ANGKOR_DB_NAME"`
	SSLMode  string `envconfig:"ANGKOR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ANGKOR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ANGKOR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ANGKOR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ANGKOR_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQuery is the duration above which statements are logged at warn.
	SlowQuery time.Duration `envconfig:"ANGKOR_DB_SLOW_QUERY" default:"500ms"`
}

func (d *DBConfig) resolveDSN() error {
	if d.DSN != "" {
		return nil
	}
	var missing []string
	for env, v := range map[string]string{EnvDBHost: d.Host, EnvDBUser: d.User, EnvDBName: d.Name} {
		if v == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%s is empty and %s not set", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.User(d.User),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   d.Name,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
	}
	d.DSN = u.String()
	return nil
}

// RedisConfig prefers URL; Address and the credentials below override the
// matching parts of it when set.
type RedisConfig struct {
	URL          string        `envconfig:"ANGKOR_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ANGKOR_REDIS_ADDR"`
	Password     string        `envconfig:"ANGKOR_REDIS_PASSWORD"`
	DB           int           `envconfig:"ANGKOR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ANGKOR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ANGKOR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ANGKOR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ANGKOR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ANGKOR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ANGKOR_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ANGKOR_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ANGKOR_JWT_EXPIRATION_MINUTES" default:"60"`
}

// PayWayConfig is built once at startup and handed to the gateway client by value.
type PayWayConfig struct {
	BaseURL            string        `envconfig:"ANGKOR_PAYWAY_BASE_URL"`
	MerchantID         string        `envconfig:"ANGKOR_PAYWAY_MERCHANT_ID" required:"true"`
	SecretKey          string        `envconfig:"ANGKOR_PAYWAY_SECRET_KEY" required:"true"`
	Currency           string        `envconfig:"ANGKOR_PAYWAY_CURRENCY" default:"USD"`
	Sandbox            bool          `envconfig:"ANGKOR_PAYWAY_SANDBOX" default:"true"`
	HashAlgorithm      string        `envconfig:"ANGKOR_PAYWAY_HASH_ALGORITHM" default:"sha512"`
	VerifyWebhook      bool          `envconfig:"ANGKOR_PAYWAY_VERIFY_WEBHOOK" default:"true"`
	RetryAttempts      int           `envconfig:"ANGKOR_PAYWAY_RETRY_ATTEMPTS" default:"3"`
	RetryDelay         time.Duration `envconfig:"ANGKOR_PAYWAY_RETRY_DELAY" default:"500ms"`
	WebhookTimeout     time.Duration `envconfig:"ANGKOR_PAYWAY_WEBHOOK_TIMEOUT" default:"30s"`
	RequestTimeout     time.Duration `envconfig:"ANGKOR_PAYWAY_REQUEST_TIMEOUT" default:"10s"`
	PaymentOption      string        `envconfig:"ANGKOR_PAYWAY_PAYMENT_OPTION"`
	ReturnURL          string        `envconfig:"ANGKOR_PAYWAY_RETURN_URL"`
	CancelURL          string        `envconfig:"ANGKOR_PAYWAY_CANCEL_URL"`
	ContinueSuccessURL string        `envconfig:"ANGKOR_PAYWAY_CONTINUE_SUCCESS_URL"`
}

// Endpoint returns the configured base URL or the host selected by the sandbox flag.
func (p PayWayConfig) Endpoint() string {
	if base := strings.TrimRight(strings.TrimSpace(p.BaseURL), "/"); base != "" {
		return base
	}
	if p.Sandbox {
		return PayWaySandboxURL
	}
	return PayWayProductionURL
}

func (p PayWayConfig) validate() (err error) {
	err = multierr.Combine(nonBlank(EnvPayWayMerchantID, p.MerchantID), nonBlank(EnvPayWaySecretKey, p.SecretKey))
	switch strings.ToLower(strings.TrimSpace(p.HashAlgorithm)) {
	case HashSHA512, HashSHA256, HashSHA3512:
	default:
		err = multierr.Append(err, fmt.Errorf("%s must be one of %s", EnvPayWayHashAlgorithm,
			strings.Join([]string{HashSHA512, HashSHA256, HashSHA3512}, ", ")))
	}
	if p.RetryAttempts < 1 {
		err = multierr.Append(err, fmt.Errorf("%s must be at least 1", EnvPayWayRetryAttempts))
	}
	if p.RetryDelay < 0 {
		err = multierr.Append(err, fmt.Errorf("%s must not be negative", EnvPayWayRetryDelay))
	}
	return err
}

type StorefrontConfig struct {
	BaseURL string `envconfig:"ANGKOR_STOREFRONT_URL" default:"http://localhost:3000"`
}

// OrderConfirmationURL is where the browser lands after a completed checkout.
func (s StorefrontConfig) OrderConfirmationURL(orderID int64) string {
	return fmt.Sprintf("%s/orders/%d/confirmation", strings.TrimRight(s.BaseURL, "/"), orderID)
}

// CartURL is where a cancelled or failed checkout is sent back to.
func (s StorefrontConfig) CartURL(reason string) string {
	base := strings.TrimRight(s.BaseURL, "/") + "/cart"
	if reason == "" {
		return base
	}
	return base + "?" + url.Values{"payment": {reason}}.Encode()
}

type CatalogConfig struct {
	VariantSync string `envconfig:"ANGKOR_CATALOG_VARIANT_SYNC" default:"reconcile"`
}

func (c CatalogConfig) validate() error {
	if c.VariantSync == VariantSyncReconcile || c.VariantSync == VariantSyncReplace {
		return nil
	}
	return fmt.Errorf("%s must be %s or %s", EnvCatalogVariantSync, VariantSyncReconcile, VariantSyncReplace)
}

// GCPConfig falls back to application default credentials when neither
// credential field is set.
type GCPConfig struct {
	ProjectID       string `envconfig:"ANGKOR_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"ANGKOR_GCP_CREDENTIALS_JSON"`
	CredentialsFile string `envconfig:"ANGKOR_GCP_CREDENTIALS_FILE"`
}

type PubSubConfig struct {
	OrdersTopic  string `envconfig:"ANGKOR_PUBSUB_ORDERS_TOPIC" default:"angkor-order-events"`
	CatalogTopic string `envconfig:"ANGKOR_PUBSUB_CATALOG_TOPIC" default:"angkor-catalog-events"`

	StockSubscription string `envconfig:"ANGKOR_PUBSUB_STOCK_SUBSCRIPTION" default:"angkor-order-events-stock"`
}

// OutboxConfig drives the relay. A row that fails MaxAttempts times is parked
// in the dead letter table.
type OutboxConfig struct {
	BatchSize      int           `envconfig:"ANGKOR_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval   time.Duration `envconfig:"ANGKOR_OUTBOX_POLL_INTERVAL" default:"500ms"`
	MaxAttempts    int           `envconfig:"ANGKOR_OUTBOX_MAX_ATTEMPTS" default:"10"`
	PublishTimeout time.Duration `envconfig:"ANGKOR_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`
}

func (o OutboxConfig) validate() (err error) {
	if o.BatchSize < 1 {
		err = multierr.Append(err, fmt.Errorf("%s must be at least 1", EnvOutboxBatchSize))
	}
	if o.PollInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvOutboxPollInterval))
	}
	if o.MaxAttempts < 1 {
		err = multierr.Append(err, fmt.Errorf("%s must be at least 1", EnvOutboxMaxAttempts))
	}
	return err
}

type CronConfig struct {
	Interval         time.Duration `envconfig:"ANGKOR_CRON_INTERVAL" default:"5m"`
	PaymentSyncAfter time.Duration `envconfig:"ANGKOR_CRON_PAYMENT_SYNC_AFTER" default:"15m"`
	PaymentSyncBatch int           `envconfig:"ANGKOR_CRON_PAYMENT_SYNC_BATCH" default:"50"`
	OutboxRetention  time.Duration `envconfig:"ANGKOR_CRON_OUTBOX_RETENTION" default:"720h"`
}
