package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
	"github.com/vladislavdragonenkov/shopq/internal/storage/memory"
	"github.com/vladislavdragonenkov/shopq/internal/storage/postgres"
	"github.com/vladislavdragonenkov/shopq/internal/storage/redis"
)

// initStore создаёт реляционное хранилище согласно конфигурации.
// Возвращаемый closer закрывает подключение; для memory это no-op.
func initStore(ctx context.Context, cfg Config, logger *log.Entry) (domain.Store, func(), error) {
	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, nil, fmt.Errorf("postgres storage requires SHOPQ_POSTGRES_DSN")
		}

		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}

		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, nil, fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("postgres schema is up to date")
		}

		logger.Info("using postgres storage")
		closer := func() {
			if err := store.Close(); err != nil {
				logger.WithError(err).Warn("failed to close postgres store")
			}
		}
		return store, closer, nil

	case StorageDriverMemory, "":
		logger.Warn("using in-memory storage, data will not survive restart")
		return memory.NewStore(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}
}

// initLedger создаёт metrics ledger согласно конфигурации.
func initLedger(ctx context.Context, cfg Config, logger *log.Entry) (domain.MetricsLedger, func(), error) {
	switch cfg.LedgerDriver {
	case LedgerDriverRedis:
		if cfg.RedisAddr == "" {
			return nil, nil, fmt.Errorf("redis ledger requires SHOPQ_REDIS_ADDR")
		}

		ledger, err := redis.Open(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis ledger: %w", err)
		}

		logger.WithField("addr", cfg.RedisAddr).Info("using redis metrics ledger")
		closer := func() {
			if err := ledger.Close(); err != nil {
				logger.WithError(err).Warn("failed to close redis ledger")
			}
		}
		return ledger, closer, nil

	case LedgerDriverMemory, "":
		logger.Warn("using in-memory metrics ledger")
		return memory.NewMetricsLedger(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported ledger driver: %s", cfg.LedgerDriver)
	}
}
