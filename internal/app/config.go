package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	log "github.com/sirupsen/logrus"
)

const (
	// StorageDriverMemory хранит заказы в памяти процесса с демо-каталогом.
	StorageDriverMemory = "memory"
	// StorageDriverPostgres хранит заказы, каталог и outbox в PostgreSQL.
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска сервиса заказов.
// Источники по приоритету: переменные окружения OMS_*, config.yaml, значения по умолчанию.
type Config struct {
	HTTPAddr        string        `default:":8080" env:"HTTP_ADDR" yaml:"http_addr" usage:"REST API listen address"`
	MetricsAddr     string        `default:":9090" env:"METRICS_ADDR" yaml:"metrics_addr" usage:"metrics and health listen address"`
	RequestTimeout  time.Duration `default:"15s" env:"REQUEST_TIMEOUT" yaml:"request_timeout"`
	ShutdownTimeout time.Duration `default:"10s" env:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout"`
	LogLevel        string        `default:"info" env:"LOG_LEVEL" yaml:"log_level"`

	StorageDriver       string `default:"memory" env:"STORAGE_DRIVER" yaml:"storage_driver" usage:"memory or postgres"`
	PostgresDSN         string `env:"POSTGRES_DSN" yaml:"postgres_dsn"`
	PostgresAutoMigrate bool   `default:"true" env:"POSTGRES_AUTO_MIGRATE" yaml:"postgres_auto_migrate"`
	PostgresMaxConns    int    `default:"25" env:"POSTGRES_MAX_CONNS" yaml:"postgres_max_conns"`
	SeedDemoCatalog     bool   `default:"false" env:"SEED_DEMO_CATALOG" yaml:"seed_demo_catalog" usage:"insert demo users and products into postgres"`
	ReserveStock        bool   `default:"false" env:"RESERVE_STOCK" yaml:"reserve_stock" usage:"decrement product stock when an order is created"`

	JWTSecret string `env:"JWT_SECRET" yaml:"jwt_secret" usage:"HS256 secret for bearer tokens"`
	JWTIssuer string `env:"JWT_ISSUER" yaml:"jwt_issuer"`

	KafkaBrokers  []string `env:"KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaTopic    string   `default:"shopdesk.order.events" env:"KAFKA_TOPIC" yaml:"kafka_topic"`
	KafkaDLQTopic string   `default:"shopdesk.order.dlq" env:"KAFKA_DLQ_TOPIC" yaml:"kafka_dlq_topic"`

	RedisAddr string `env:"REDIS_ADDR" yaml:"redis_addr" usage:"enables the Redis idempotency store"`

	OutboxPollInterval time.Duration `default:"1s" env:"OUTBOX_POLL_INTERVAL" yaml:"outbox_poll_interval"`
	OutboxBatchSize    int           `default:"100" env:"OUTBOX_BATCH_SIZE" yaml:"outbox_batch_size"`
	OutboxMaxAttempts  int           `default:"3" env:"OUTBOX_MAX_ATTEMPTS" yaml:"outbox_max_attempts"`
	OutboxRetryDelay   time.Duration `default:"50ms" env:"OUTBOX_RETRY_DELAY" yaml:"outbox_retry_delay"`
	OutboxMaxPending   int           `default:"1000" env:"OUTBOX_MAX_PENDING" yaml:"outbox_max_pending"`
	OutboxMaxAge       time.Duration `default:"5m" env:"OUTBOX_MAX_AGE" yaml:"outbox_max_age"`

	IdempotencyTTL              time.Duration `default:"24h" env:"IDEMPOTENCY_TTL" yaml:"idempotency_ttl"`
	IdempotencyCleanupInterval  time.Duration `default:"1m" env:"IDEMPOTENCY_CLEANUP_INTERVAL" yaml:"idempotency_cleanup_interval"`
	IdempotencyCleanupBatchSize int           `default:"500" env:"IDEMPOTENCY_CLEANUP_BATCH_SIZE" yaml:"idempotency_cleanup_batch_size"`
}

// DefaultConfig возвращает значения по умолчанию без чтения окружения.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		MetricsAddr:                 ":9090",
		RequestTimeout:              15 * time.Second,
		ShutdownTimeout:             10 * time.Second,
		LogLevel:                    "info",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		PostgresMaxConns:            25,
		KafkaTopic:                  "shopdesk.order.events",
		KafkaDLQTopic:               "shopdesk.order.dlq",
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            50 * time.Millisecond,
		OutboxMaxPending:            1000,
		OutboxMaxAge:                5 * time.Minute,
		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}

// LoadConfig читает конфигурацию из окружения (префикс OMS_) и YAML-файлов.
// Без аргументов ищет config.yaml в рабочей директории и /etc/shopdesk.
func LoadConfig(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{"config.yaml", "/etc/shopdesk/config.yaml"}
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix:          "OMS",
		SkipFlags:          true,
		AllowUnknownFields: true,
		AllowUnknownEnvs:   true,
		Files:              files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres storage requires OMS_POSTGRES_DSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}

	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("OMS_JWT_SECRET is required"))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	if c.OutboxPollInterval <= 0 || c.OutboxBatchSize <= 0 || c.OutboxMaxAttempts <= 0 {
		errs = append(errs, errors.New("outbox poll interval, batch size and max attempts must be positive"))
	}
	if c.IdempotencyTTL <= 0 {
		errs = append(errs, errors.New("idempotency ttl must be positive"))
	}

	return errors.Join(errs...)
}
