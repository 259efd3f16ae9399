package app

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
	"github.com/vladislavdragonenkov/shopq/internal/metrics"
	"github.com/vladislavdragonenkov/shopq/internal/service/idempotency"
	"github.com/vladislavdragonenkov/shopq/internal/service/kpi"
	"github.com/vladislavdragonenkov/shopq/internal/service/notify"
	"github.com/vladislavdragonenkov/shopq/internal/service/orders"
	"github.com/vladislavdragonenkov/shopq/internal/service/payment"
	"github.com/vladislavdragonenkov/shopq/internal/service/refunds"
	"github.com/vladislavdragonenkov/shopq/internal/service/stats"
)

// Dependencies содержит собранные зависимости приложения.
type Dependencies struct {
	Store   domain.Store
	Ledger  domain.MetricsLedger
	Gateway domain.PaymentGateway

	Orders  *orders.Processor
	Refunds *refunds.Processor
	KPI     *kpi.Generator

	NotifyWorker  *notify.Worker
	CleanupWorker *idempotency.CleanupWorker

	Pipeline *metrics.PipelineMetrics
	Logger   *log.Entry

	closers []func()
}

// NewDependencies создаёт и связывает зависимости приложения.
// NOTE: платёжный шлюз здесь mock с вероятностным исходом; в production
// его заменяет клиент реального provider'а за тем же интерфейсом.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	store, storeCloser, err := initStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	ledger, ledgerCloser, err := initLedger(ctx, cfg, logger)
	if err != nil {
		storeCloser()
		return nil, err
	}

	pipelineMetrics := metrics.NewPipelineMetrics()
	gateway := payment.NewGateway(payment.WithLogger(logger.WithField("component", "payment-gateway")))
	aggregator := stats.NewAggregator(logger.WithField("component", "stats-aggregator"))
	kpiGenerator := kpi.NewGenerator(store.Orders(), store.Customers(), ledger, logger.WithField("component", "kpi-generator"))

	orderProcessor := orders.NewProcessor(
		store,
		gateway,
		aggregator,
		ledger,
		orders.WithMetrics(pipelineMetrics),
		orders.WithIdempotencyTTL(cfg.IdempotencyTTL),
	)
	refundProcessor := refunds.NewProcessor(
		store,
		gateway,
		aggregator,
		ledger,
		refunds.WithLeaderboard(kpiGenerator),
		refunds.WithLeaderboardSize(cfg.LeaderboardSize),
		refunds.WithMetrics(pipelineMetrics),
	)

	notifyWorker := notify.NewWorker(
		store.Notifications(),
		store.Orders(),
		notify.WithPollInterval(cfg.NotifyPollInterval),
		notify.WithBatchSize(cfg.NotifyBatchSize),
	)
	cleanupWorker := idempotency.NewCleanupWorker(
		store.Idempotency(),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)

	return &Dependencies{
		Store:         store,
		Ledger:        ledger,
		Gateway:       gateway,
		Orders:        orderProcessor,
		Refunds:       refundProcessor,
		KPI:           kpiGenerator,
		NotifyWorker:  notifyWorker,
		CleanupWorker: cleanupWorker,
		Pipeline:      pipelineMetrics,
		Logger:        logger,
		closers:       []func(){ledgerCloser, storeCloser},
	}, nil
}

// Close закрывает подключения к хранилищам.
func (d *Dependencies) Close() {
	for _, closer := range d.closers {
		closer()
	}
}
