package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// StorageDriver выбирает реализацию реляционного хранилища.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
)

// LedgerDriver выбирает реализацию metrics ledger.
type LedgerDriver string

const (
	LedgerDriverMemory LedgerDriver = "memory"
	LedgerDriverRedis  LedgerDriver = "redis"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr string

	StorageDriver       StorageDriver
	PostgresDSN         string
	PostgresAutoMigrate bool

	LedgerDriver LedgerDriver
	RedisAddr    string

	KafkaBrokers    string
	KafkaGroupID    string
	KafkaMaxRetries int

	NotifyPollInterval time.Duration
	NotifyBatchSize    int

	IdempotencyTTL              time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	LeaderboardSize int
}

// DefaultConfig возвращает настройки по умолчанию: in-memory хранилища и
// HTTP на :9090. Kafka без brokers не поднимается.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":9090",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		LedgerDriver:                LedgerDriverMemory,
		KafkaGroupID:                "shopq-workers",
		KafkaMaxRetries:             3,
		NotifyPollInterval:          time.Second,
		NotifyBatchSize:             100,
		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  15 * time.Minute,
		IdempotencyCleanupBatchSize: 1000,
		LeaderboardSize:             10,
	}
}

// ConfigFromEnv собирает конфигурацию из окружения поверх значений по
// умолчанию. Заданный SHOPQ_POSTGRES_DSN переключает storage на postgres,
// SHOPQ_REDIS_ADDR — ledger на redis; драйвер можно переопределить явно.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	cfg.HTTPAddr = envString("SHOPQ_HTTP_ADDR", cfg.HTTPAddr)

	cfg.PostgresDSN = envString("SHOPQ_POSTGRES_DSN", cfg.PostgresDSN)
	if cfg.PostgresDSN != "" {
		cfg.StorageDriver = StorageDriverPostgres
	}
	if v := envString("SHOPQ_STORAGE_DRIVER", ""); v != "" {
		cfg.StorageDriver = StorageDriver(strings.ToLower(v))
	}
	cfg.PostgresAutoMigrate = envBool("SHOPQ_POSTGRES_AUTO_MIGRATE", cfg.PostgresAutoMigrate)

	cfg.RedisAddr = envString("SHOPQ_REDIS_ADDR", cfg.RedisAddr)
	if cfg.RedisAddr != "" {
		cfg.LedgerDriver = LedgerDriverRedis
	}
	if v := envString("SHOPQ_LEDGER_DRIVER", ""); v != "" {
		cfg.LedgerDriver = LedgerDriver(strings.ToLower(v))
	}

	cfg.KafkaBrokers = envString("SHOPQ_KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaGroupID = envString("SHOPQ_KAFKA_GROUP_ID", cfg.KafkaGroupID)
	cfg.KafkaMaxRetries = envInt("SHOPQ_KAFKA_MAX_RETRIES", cfg.KafkaMaxRetries)

	cfg.NotifyPollInterval = envDuration("SHOPQ_NOTIFY_POLL_INTERVAL", cfg.NotifyPollInterval)
	cfg.NotifyBatchSize = envInt("SHOPQ_NOTIFY_BATCH_SIZE", cfg.NotifyBatchSize)

	cfg.IdempotencyTTL = envDuration("SHOPQ_IDEMPOTENCY_TTL", cfg.IdempotencyTTL)
	cfg.IdempotencyCleanupInterval = envDuration("SHOPQ_IDEMPOTENCY_CLEANUP_INTERVAL", cfg.IdempotencyCleanupInterval)
	cfg.IdempotencyCleanupBatchSize = envInt("SHOPQ_IDEMPOTENCY_CLEANUP_BATCH_SIZE", cfg.IdempotencyCleanupBatchSize)

	cfg.LeaderboardSize = envInt("SHOPQ_LEADERBOARD_SIZE", cfg.LeaderboardSize)

	return cfg
}

// Brokers возвращает список Kafka brokers из строки конфигурации.
func (c Config) Brokers() []string {
	chunks := strings.Split(c.KafkaBrokers, ",")
	brokers := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		broker := strings.TrimSpace(chunk)
		if broker == "" {
			continue
		}
		brokers = append(brokers, broker)
	}
	return brokers
}

func envString(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}
