package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	App     AppConfig
	Catalog CatalogDBConfig
	Redis   RedisConfig
	Lock    LockConfig
	Kafka   KafkaConfig
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"itemledger"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
}

// CatalogDBConfig holds catalog database settings.
type CatalogDBConfig struct {
	Type string `envconfig:"CATALOG_DB_TYPE" default:"sqlite"` // mysql or sqlite
	Path string `envconfig:"CATALOG_DB_PATH" default:"./data/catalog.db"`
	// MySQL settings
	Host     string `envconfig:"CATALOG_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"CATALOG_DB_PORT" default:"3306"`
	Name     string `envconfig:"CATALOG_DB_NAME" default:"itemledger"`
	User     string `envconfig:"CATALOG_DB_USER" default:"root"`
	Password string `envconfig:"CATALOG_DB_PASS" default:""`
}

// MySQLDSN returns the MySQL connection string.
func (c CatalogDBConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// RedisConfig holds the coordination-service connection settings.
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// Address returns the Redis host:port address.
func (c RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LockConfig selects and tunes the lock strategy guarding stock mutations.
type LockConfig struct {
	Strategy      string        `envconfig:"LOCK_STRATEGY" default:"record"` // record or redis
	TTL           time.Duration `envconfig:"LOCK_TTL" default:"5s"`
	WaitTimeout   time.Duration `envconfig:"LOCK_WAIT_TIMEOUT" default:"3s"`
	RetryInterval time.Duration `envconfig:"LOCK_RETRY_INTERVAL" default:"50ms"`
}

// KafkaConfig holds outbound event publishing settings.
// Publishing is disabled when Brokers is empty.
type KafkaConfig struct {
	Brokers string `envconfig:"KAFKA_BROKERS" default:""`
	Topic   string `envconfig:"KAFKA_TOPIC" default:"update-stock"`
}

// BrokerList splits the comma-separated broker addresses.
func (c KafkaConfig) BrokerList() []string {
	if c.Brokers == "" {
		return nil
	}
	parts := strings.Split(c.Brokers, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

// Enabled reports whether event publishing is configured.
func (c KafkaConfig) Enabled() bool {
	return len(c.BrokerList()) > 0
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Lock.Strategy != "record" && cfg.Lock.Strategy != "redis" {
		return nil, fmt.Errorf("invalid LOCK_STRATEGY %q (want record or redis)", cfg.Lock.Strategy)
	}
	return &cfg, nil
}

// MustLoad reads configuration and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
