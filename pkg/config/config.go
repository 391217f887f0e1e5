package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	Idempotency  IdempotencyConfig
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
	Env          string `envconfig:"PLUSONE_APP_ENV" required:"true"`
	Port         string `envconfig:"PLUSONE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PLUSONE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PLUSONE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind        string   `envconfig:"PLUSONE_SERVICE_KIND" default:"api"`
	CORSOrigins []string `envconfig:"PLUSONE_CORS_ORIGINS"`
}

type DBConfig struct {
	DSN    string `envconfig:"PLUSONE_DB_DSN"`
	Driver string `envconfig:"PLUSONE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"PLUSONE_DB_HOST"`
	Port     int    `envconfig:"PLUSONE_DB_PORT" default:"5432"`
	User     string `envconfig:"PLUSONE_DB_USER"`
	Password string `envconfig:"PLUSONE_DB_PASSWORD"`
	Name     string `envconfig:"PLUSONE_DB_NAME"`
	SSLMode  string `envconfig:"PLUSONE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PLUSONE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PLUSONE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PLUSONE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PLUSONE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	for name, value := range map[string]string{
		"PLUSONE_DB_HOST": db.Host,
		"PLUSONE_DB_USER": db.User,
		"PLUSONE_DB_NAME": db.Name,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either PLUSONE_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"PLUSONE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PLUSONE_REDIS_ADDR"`
	Password     string        `envconfig:"PLUSONE_REDIS_PASSWORD"`
	DB           int           `envconfig:"PLUSONE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PLUSONE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PLUSONE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PLUSONE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PLUSONE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PLUSONE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PLUSONE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"PLUSONE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"PLUSONE_PUBSUB_DOMAIN_TOPIC" default:"plusone-domain-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PLUSONE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PLUSONE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PLUSONE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval             time.Duration `envconfig:"PLUSONE_CRON_INTERVAL" default:"24h"`
	HistoryRetentionDays int           `envconfig:"PLUSONE_CRON_HISTORY_RETENTION_DAYS" default:"90"`
	OutboxRetentionDays  int           `envconfig:"PLUSONE_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"PLUSONE_IDEMPOTENCY_TTL" default:"24h"`
}
