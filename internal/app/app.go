package app

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/shopq/internal/health"
	"github.com/vladislavdragonenkov/shopq/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shopq/internal/storage/postgres"
	"github.com/vladislavdragonenkov/shopq/internal/version"
)

// Run собирает зависимости и запускает воркеры до отмены ctx: consumer
// очередей, доставку уведомлений, очистку idempotency-ключей и ops HTTP.
// Без Kafka brokers сервис поднимается в degraded-режиме: пайплайны не
// получают job'ы, но HTTP API и фоновые воркеры работают.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	healthHandler := healthcheck.NewHandler(version.String())
	if pgStore, ok := deps.Store.(*postgres.Store); ok {
		healthHandler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
			return pgStore.Ping(context.Background())
		}))
	}

	kafkaProducer, _ := initKafkaProducer(cfg.Brokers(), logger)

	var queue *kafka.Queue
	if kafkaProducer != nil {
		queue = kafka.NewQueue(kafkaProducer)
	}
	dispatcher := NewDispatcher(deps.Orders, deps.Refunds, queue, logger.WithField("component", "dispatcher"))

	var consumer *kafka.Consumer
	if kafkaProducer != nil {
		consumer, err = initKafkaConsumer(cfg, dispatcher.Handle, kafkaProducer)
		if err != nil {
			closeKafka(kafkaProducer, logger)
			return err
		}
		if err := consumer.Start(ctx); err != nil {
			closeKafka(kafkaProducer, logger)
			return err
		}
	} else {
		logger.Warn("kafka is not configured, queue consumers are disabled")
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		deps.NotifyWorker.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		deps.CleanupWorker.Run(ctx)
	}()

	httpSrv := startHTTPServer(ctx, cfg.HTTPAddr, newHTTPHandler(deps.Ledger, healthHandler, logger), logger)

	<-ctx.Done()
	logger.Info("получен сигнал остановки, останавливаем воркеры")

	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			logger.WithError(err).Warn("failed to stop kafka consumer")
		}
	}
	closeKafka(kafkaProducer, logger)

	wg.Wait()
	shutdownHTTP(httpSrv, logger)

	return ctx.Err()
}
