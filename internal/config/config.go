package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server   ServerConfig
	MySQL    MySQLConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Registry RegistryConfig
	Mongo    MongoConfig
	Audit    AuditConfig
	Events   EventsConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// MySQLConfig holds settings for the ledger database.
type MySQLConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds settings for the quantity cache and idempotency keys.
type RedisConfig struct {
	Addr     string
	PoolSize int
}

// KafkaConfig holds settings for the stock event stream.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// RegistryConfig points at the part/vendor/storage-place registry service.
type RegistryConfig struct {
	BaseURL string
	Timeout time.Duration
}

// MongoConfig holds settings for the audit report archive. An empty URI
// disables archiving; audit results are still logged.
type MongoConfig struct {
	URI    string
	DBName string
}

// AuditConfig holds invariant audit scheduling options.
type AuditConfig struct {
	CronSchedule string
}

// EventsConfig sizes the publish queue and its worker pool.
type EventsConfig struct {
	QueueSize int
	Workers   int
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are acceptable when configuration comes from the
		// environment directly.
		_ = godotenv.Load()
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		MySQL: MySQLConfig{
			DSN:          getenvWithDefault("MYSQL_DSN", "root:root@tcp(localhost:3306)/partledger?parseTime=true"),
			MaxOpenConns: getenvInt("MYSQL_MAX_OPEN_CONNS", 50),
			MaxIdleConns: getenvInt("MYSQL_MAX_IDLE_CONNS", 25),
		},
		Redis: RedisConfig{
			Addr:     getenvWithDefault("REDIS_ADDR", "localhost:6379"),
			PoolSize: getenvInt("REDIS_POOL_SIZE", 100),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getenvWithDefault("KAFKA_BROKERS", "localhost:9092"), ","),
			Topic:   getenvWithDefault("KAFKA_TOPIC", "stock-events"),
		},
		Registry: RegistryConfig{
			BaseURL: getenvWithDefault("REGISTRY_BASE_URL", "http://localhost:8081"),
			Timeout: getenvDuration("REGISTRY_TIMEOUT", 10*time.Second),
		},
		Mongo: MongoConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "partledger"),
		},
		Audit: AuditConfig{
			CronSchedule: getenvWithDefault("AUDIT_CRON_SCHEDULE", "0 3 * * *"),
		},
		Events: EventsConfig{
			QueueSize: getenvInt("EVENT_QUEUE_SIZE", 10000),
			Workers:   getenvInt("EVENT_WORKERS", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	if c.MySQL.DSN == "" {
		return errors.New("MYSQL_DSN must be provided")
	}

	if c.Redis.Addr == "" {
		return errors.New("REDIS_ADDR must be provided")
	}

	switch {
	case len(c.Kafka.Brokers) == 0:
		return errors.New("KAFKA_BROKERS must be provided")
	case c.Kafka.Topic == "":
		return errors.New("KAFKA_TOPIC must be provided")
	}

	if c.Registry.BaseURL == "" {
		return errors.New("REGISTRY_BASE_URL must be provided")
	}

	if c.Mongo.URI != "" && c.Mongo.DBName == "" {
		return errors.New("MONGODB_DB_NAME must be provided when MONGODB_URI is set")
	}

	if c.Audit.CronSchedule == "" {
		return errors.New("AUDIT_CRON_SCHEDULE must be provided")
	}

	if c.Events.QueueSize <= 0 {
		return errors.New("EVENT_QUEUE_SIZE must be positive")
	}

	if c.Events.Workers <= 0 {
		return errors.New("EVENT_WORKERS must be positive")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
