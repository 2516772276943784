package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Schema          string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MigrationsPath  string
}

type KafkaConfig struct {
	Brokers string

	PaymentRequestTopic   string
	PaymentResponseTopic  string
	ApprovalRequestTopic  string
	ApprovalResponseTopic string

	ConsumerGroup string
}

// OutboxConfig holds the scheduler loop knobs. The intervals are explicit
// configuration inputs, not framework behavior.
type OutboxConfig struct {
	SchedulerInterval     time.Duration
	SchedulerInitialDelay time.Duration
	SchedulerBatchSize    int
	CleanerInterval       time.Duration
}

type Config struct {
	AppPort  string
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Outbox   OutboxConfig
}

// Load reads configuration from the environment, optionally seeded from a
// .env file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: failed to load %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	cfg.AppPort = getenv("APP_PORT", "8080")

	cfg.Postgres.Host = os.Getenv("DB_HOST")
	if cfg.Postgres.Host == "" {
		return nil, fmt.Errorf("config: DB_HOST is required")
	}
	cfg.Postgres.Port = getenv("DB_PORT", "5432")
	cfg.Postgres.User = os.Getenv("DB_USER")
	if cfg.Postgres.User == "" {
		return nil, fmt.Errorf("config: DB_USER is required")
	}
	cfg.Postgres.Password = os.Getenv("DB_PASSWORD")
	cfg.Postgres.DBName = os.Getenv("DB_NAME")
	if cfg.Postgres.DBName == "" {
		return nil, fmt.Errorf("config: DB_NAME is required")
	}
	cfg.Postgres.SSLMode = getenv("DB_SSLMODE", "disable")
	cfg.Postgres.Schema = getenv("DB_SCHEMA", "public")
	cfg.Postgres.MaxConns = int32(getenvInt("DB_MAX_CONNS", 10))
	cfg.Postgres.MinConns = int32(getenvInt("DB_MIN_CONNS", 2))
	cfg.Postgres.MaxConnLifetime = getenvDuration("DB_MAX_CONN_LIFETIME_MS", time.Hour)
	cfg.Postgres.MigrationsPath = getenv("DB_MIGRATIONS_PATH", "")

	cfg.Kafka.Brokers = getenv("KAFKA_BROKERS", "localhost:9092")
	cfg.Kafka.PaymentRequestTopic = getenv("KAFKA_PAYMENT_REQUEST_TOPIC", "payment-request")
	cfg.Kafka.PaymentResponseTopic = getenv("KAFKA_PAYMENT_RESPONSE_TOPIC", "payment-response")
	cfg.Kafka.ApprovalRequestTopic = getenv("KAFKA_APPROVAL_REQUEST_TOPIC", "restaurant-approval-request")
	cfg.Kafka.ApprovalResponseTopic = getenv("KAFKA_APPROVAL_RESPONSE_TOPIC", "restaurant-approval-response")
	cfg.Kafka.ConsumerGroup = getenv("KAFKA_CONSUMER_GROUP", "order-saga")

	cfg.Outbox.SchedulerInterval = getenvDuration("OUTBOX_SCHEDULER_INTERVAL_MS", 10*time.Second)
	cfg.Outbox.SchedulerInitialDelay = getenvDuration("OUTBOX_SCHEDULER_INITIAL_DELAY_MS", 10*time.Second)
	cfg.Outbox.SchedulerBatchSize = getenvInt("OUTBOX_SCHEDULER_BATCH_SIZE", 100)
	cfg.Outbox.CleanerInterval = getenvDuration("OUTBOX_CLEANER_INTERVAL_MS", 24*time.Hour)

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
