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
	Square       SquareConfig
	Checkout     CheckoutConfig
	Cart         CartConfig
	Payments     PaymentsConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PLATEFUL_APP_ENV" required:"true"`
	Port         string `envconfig:"PLATEFUL_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PLATEFUL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PLATEFUL_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PLATEFUL_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PLATEFUL_DB_DSN"`
	Driver string `envconfig:"PLATEFUL_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PLATEFUL_DB_HOST"`
	LegacyPort     int    `envconfig:"PLATEFUL_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PLATEFUL_DB_USER"`
	LegacyPassword string `envconfig:"PLATEFUL_DB_PASSWORD"`
	LegacyName     string `envconfig:"PLATEFUL_DB_NAME"`
	LegacySSLMode  string `envconfig:"PLATEFUL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PLATEFUL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PLATEFUL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PLATEFUL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PLATEFUL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PLATEFUL_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PLATEFUL_REDIS_ADDR"`
	Password     string        `envconfig:"PLATEFUL_REDIS_PASSWORD"`
	DB           int           `envconfig:"PLATEFUL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PLATEFUL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PLATEFUL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PLATEFUL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PLATEFUL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PLATEFUL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type SquareConfig struct {
	AccessToken         string `envconfig:"PLATEFUL_SQUARE_ACCESS_TOKEN"`
	Env                 string `envconfig:"PLATEFUL_SQUARE_ENV" default:"sandbox"`
	LocationID          string `envconfig:"PLATEFUL_SQUARE_LOCATION_ID"`
	WebhookSignatureKey string `envconfig:"PLATEFUL_SQUARE_WEBHOOK_SIGNATURE_KEY"`
	NotificationURL     string `envconfig:"PLATEFUL_SQUARE_NOTIFICATION_URL"`
	Currency            string `envconfig:"PLATEFUL_SQUARE_CURRENCY" default:"USD"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type CheckoutConfig struct {
	TaxRateBps      int   `envconfig:"PLATEFUL_CHECKOUT_TAX_RATE_BPS" default:"875"`
	ServiceFeeBps   int   `envconfig:"PLATEFUL_CHECKOUT_SERVICE_FEE_BPS" default:"500"`
	DeliveryFee     int64 `envconfig:"PLATEFUL_CHECKOUT_DELIVERY_FEE_CENTS" default:"399"`
	SmallOrderFee   int64 `envconfig:"PLATEFUL_CHECKOUT_SMALL_ORDER_FEE_CENTS" default:"200"`
	SmallOrderFloor int64 `envconfig:"PLATEFUL_CHECKOUT_SMALL_ORDER_FLOOR_CENTS" default:"1500"`
}

type CartConfig struct {
	TTLMinutes int `envconfig:"PLATEFUL_CART_TTL_MINUTES" default:"120"`
}

// TTL returns the cart idle expiry window.
func (c CartConfig) TTL() time.Duration {
	if c.TTLMinutes <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(c.TTLMinutes) * time.Minute
}

type PaymentsConfig struct {
	MaxAttempts    int           `envconfig:"PLATEFUL_PAYMENTS_MAX_ATTEMPTS" default:"3"`
	BackoffBase    time.Duration `envconfig:"PLATEFUL_PAYMENTS_BACKOFF_BASE" default:"2s"`
	IdempotencyTTL time.Duration `envconfig:"PLATEFUL_PAYMENTS_IDEMPOTENCY_TTL" default:"24h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PLATEFUL_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PLATEFUL_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"PLATEFUL_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PLATEFUL_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"PLATEFUL_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PLATEFUL_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"PLATEFUL_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription       string `envconfig:"PLATEFUL_PUBSUB_ORDERS_SUBSCRIPTION" required:"true"`
	NotificationTopic        string `envconfig:"PLATEFUL_PUBSUB_NOTIFICATION_TOPIC" default:"pl-notification-events"`
	NotificationSubscription string `envconfig:"PLATEFUL_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
}

type CronConfig struct {
	IntervalMinutes int `envconfig:"PLATEFUL_CRON_INTERVAL_MINUTES" default:"5"`
	LockTTLMinutes  int `envconfig:"PLATEFUL_CRON_LOCK_TTL_MINUTES" default:"10"`
	SweepBatchSize  int `envconfig:"PLATEFUL_CRON_SWEEP_BATCH_SIZE" default:"200"`
}

// Interval returns how often the worker wakes up.
func (c CronConfig) Interval() time.Duration {
	if c.IntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// LockTTL bounds how long a crashed worker can hold the run lock.
func (c CronConfig) LockTTL() time.Duration {
	if c.LockTTLMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.LockTTLMinutes) * time.Minute
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PLATEFUL_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PLATEFUL_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PLATEFUL_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
