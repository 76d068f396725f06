package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix  = ""
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App        AppConfig
	Service    ServiceConfig
	DB         DBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	GooglePlay GooglePlayConfig
	AppStore   AppStoreConfig
	Webhooks   WebhookConfig
	Cron       CronConfig
	PubSub     PubSubConfig
	Outbox     OutboxConfig
	Flags      FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
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
	DSN    string `envconfig:"PLATEFUL_DB_DSN" required:"true"`
	Driver string `envconfig:"PLATEFUL_DB_DRIVER" default:"postgres"`

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

type JWTConfig struct {
	Secret            string `envconfig:"PLATEFUL_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PLATEFUL_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PLATEFUL_JWT_EXPIRATION_MINUTES" default:"60"`
}

// GooglePlayConfig drives the Android purchase validator.
type GooglePlayConfig struct {
	PackageName     string        `envconfig:"PLATEFUL_GOOGLE_PLAY_PACKAGE_NAME"`
	CredentialsJSON string        `envconfig:"PLATEFUL_GOOGLE_PLAY_CREDENTIALS_JSON"`
	CredentialsFile string        `envconfig:"PLATEFUL_GOOGLE_PLAY_CREDENTIALS_FILE"`
	Timeout         time.Duration `envconfig:"PLATEFUL_GOOGLE_PLAY_TIMEOUT" default:"10s"`
	MaxAttempts     int           `envconfig:"PLATEFUL_GOOGLE_PLAY_MAX_ATTEMPTS" default:"3"`
}

// AppStoreConfig drives the iOS receipt validator.
type AppStoreConfig struct {
	SharedSecret  string        `envconfig:"PLATEFUL_APP_STORE_SHARED_SECRET"`
	ProductionURL string        `envconfig:"PLATEFUL_APP_STORE_PRODUCTION_URL" default:"https://buy.itunes.apple.com/verifyReceipt"`
	SandboxURL    string        `envconfig:"PLATEFUL_APP_STORE_SANDBOX_URL" default:"https://sandbox.itunes.apple.com/verifyReceipt"`
	Timeout       time.Duration `envconfig:"PLATEFUL_APP_STORE_TIMEOUT" default:"10s"`
	MaxAttempts   int           `envconfig:"PLATEFUL_APP_STORE_MAX_ATTEMPTS" default:"3"`
}

type WebhookConfig struct {
	DedupTTL      time.Duration `envconfig:"PLATEFUL_WEBHOOK_DEDUP_TTL" default:"72h"`
	PendingMaxAge time.Duration `envconfig:"PLATEFUL_WEBHOOK_PENDING_MAX_AGE" default:"24h"`
}

type CronConfig struct {
	Interval           time.Duration `envconfig:"PLATEFUL_CRON_INTERVAL" default:"1h"`
	RevalidationWindow time.Duration `envconfig:"PLATEFUL_CRON_REVALIDATION_WINDOW" default:"24h"`
	RevalidationLimit  int           `envconfig:"PLATEFUL_CRON_REVALIDATION_LIMIT" default:"250"`
}

type PubSubConfig struct {
	ProjectID        string `envconfig:"PLATEFUL_PUBSUB_PROJECT_ID"`
	EntitlementTopic string `envconfig:"PLATEFUL_PUBSUB_ENTITLEMENT_TOPIC" default:"entitlement-events"`
}

type OutboxConfig struct {
	BatchSize    int           `envconfig:"PLATEFUL_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval time.Duration `envconfig:"PLATEFUL_OUTBOX_POLL_INTERVAL" default:"500ms"`
	MaxAttempts  int           `envconfig:"PLATEFUL_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PLATEFUL_FEATURE_AUTO_MIGRATE" default:"false"`
}
