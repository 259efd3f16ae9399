package refunds

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
	"github.com/vladislavdragonenkov/shopq/internal/metrics"
	"github.com/vladislavdragonenkov/shopq/internal/service/stats"
)

const (
	maxSaveRetries = 3
	baseRetryDelay = 10 * time.Millisecond

	defaultLeaderboardSize = 10

	resultCompleted = "completed"
	resultRejected  = "rejected"
	resultDeclined  = "declined"
	resultNoop      = "noop"
	resultError     = "error"
)

// LeaderboardUpdater пересчитывает снапшот топ-клиентов после возврата.
type LeaderboardUpdater interface {
	UpdateLeaderboard(limit int) error
}

// Processor выполняет пайплайн возврата: идемпотентный short-circuit для
// completed, проверка eligibility, возврат через шлюз и компенсации.
// Компенсации в БД выполняются в одной транзакции; декремент метрик и
// пересчёт leaderboard идут после коммита как best-effort шаги.
type Processor struct {
	store       domain.Store
	gateway     domain.PaymentGateway
	stats       *stats.Aggregator
	ledger      domain.MetricsLedger
	leaderboard LeaderboardUpdater
	metrics     *metrics.PipelineMetrics
	logger      *log.Entry

	leaderboardSize int
}

// ProcessorOptions задаёт параметры пайплайна возвратов.
type ProcessorOptions struct {
	Leaderboard     LeaderboardUpdater
	Metrics         *metrics.PipelineMetrics
	Logger          *log.Entry
	LeaderboardSize int
}

// Option настраивает Processor.
type Option func(*ProcessorOptions)

// WithLeaderboard подключает пересчёт leaderboard после completed-возврата.
func WithLeaderboard(updater LeaderboardUpdater) Option {
	return func(opts *ProcessorOptions) {
		opts.Leaderboard = updater
	}
}

// WithMetrics подключает метрики пайплайна.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(opts *ProcessorOptions) {
		opts.Metrics = m
	}
}

// WithLogger задаёт logger пайплайна.
func WithLogger(logger *log.Entry) Option {
	return func(opts *ProcessorOptions) {
		opts.Logger = logger
	}
}

// WithLeaderboardSize задаёт размер пересчитываемого leaderboard.
func WithLeaderboardSize(size int) Option {
	return func(opts *ProcessorOptions) {
		opts.LeaderboardSize = size
	}
}

// NewProcessor создаёт пайплайн обработки возвратов.
func NewProcessor(
	store domain.Store,
	gateway domain.PaymentGateway,
	aggregator *stats.Aggregator,
	ledger domain.MetricsLedger,
	options ...Option,
) *Processor {
	opts := ProcessorOptions{
		LeaderboardSize: defaultLeaderboardSize,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "refund-pipeline")
	}
	if opts.LeaderboardSize <= 0 {
		opts.LeaderboardSize = defaultLeaderboardSize
	}
	if aggregator == nil {
		aggregator = stats.NewAggregator(logger)
	}

	return &Processor{
		store:           store,
		gateway:         gateway,
		stats:           aggregator,
		ledger:          ledger,
		leaderboard:     opts.Leaderboard,
		metrics:         opts.Metrics,
		logger:          logger,
		leaderboardSize: opts.LeaderboardSize,
	}
}

// Create регистрирует возврат по заказу и возвращает его в статусе pending.
// Для полного возврата сумма берётся из заказа. Лимит по сумме уже
// проведённых возвратов здесь не проверяется: pending-запись создаётся
// всегда, решение принимает транзакция проведения.
func (p *Processor) Create(orderID string, amountMinor int64, refundType domain.RefundType, reason string) (domain.Refund, error) {
	var refund domain.Refund

	err := p.store.WithinTx(func(tx domain.Tx) error {
		order, err := tx.Orders().Get(orderID)
		if err != nil {
			return err
		}
		if !order.Status.Refundable() {
			return fmt.Errorf("%w: order status %s", domain.ErrRefundNotEligible, order.Status)
		}

		if refundType == domain.RefundTypeFull {
			amountMinor = order.TotalMinor
		}

		now := time.Now().UTC()
		refund = domain.Refund{
			ID:            uuid.NewString(),
			OrderID:       order.ID,
			CustomerID:    order.CustomerID,
			RefundNumber:  newNumber("REF-"),
			AmountMinor:   amountMinor,
			OriginalMinor: order.TotalMinor,
			Type:          refundType,
			Status:        domain.RefundStatusPending,
			Reason:        reason,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if errs := refund.Validate(); len(errs) > 0 {
			return errs[0]
		}

		return tx.Refunds().Create(refund)
	})
	if err != nil {
		return domain.Refund{}, err
	}

	p.logger.WithFields(log.Fields{
		"refund_id":     refund.ID,
		"refund_number": refund.RefundNumber,
		"order_id":      refund.OrderID,
		"amount_minor":  refund.AmountMinor,
	}).Info("refund registered")

	return refund, nil
}

// Process проводит возврат. Повторный вызов для completed-возврата — no-op.
// Ошибки валидации постоянны: возврат помечается failed и не повторяется.
// Отказ шлюза — transient: возврат помечается failed, но доставка может
// повториться и провести его.
func (p *Processor) Process(refundID string) (domain.Refund, error) {
	start := time.Now()
	if p.metrics != nil {
		p.metrics.RecordJobStarted()
	}
	defer func() {
		if p.metrics != nil {
			p.metrics.RecordJobFinished()
			p.metrics.RecordPipelineDuration("refunds", time.Since(start))
		}
	}()

	refund, err := p.store.Refunds().Get(refundID)
	if err != nil {
		p.recordRefundResult(resultError)
		return domain.Refund{}, err
	}

	if refund.Completed() {
		p.recordRefundResult(resultNoop)
		p.logger.WithField("refund_id", refund.ID).Info("refund already completed, skipping")
		return refund, nil
	}

	if err := p.markProcessing(&refund); err != nil {
		p.recordRefundResult(resultError)
		return domain.Refund{}, err
	}

	var (
		completed domain.Refund
		noop      bool
	)
	txErr := p.store.WithinTx(func(tx domain.Tx) error {
		var err error
		completed, noop, err = p.settle(tx, refund.ID)
		return err
	})

	if txErr != nil {
		p.failRefund(refund.ID, txErr)
		if errors.Is(txErr, domain.ErrGatewayDeclined) {
			p.recordRefundResult(resultDeclined)
		} else if domain.IsPermanent(txErr) {
			p.recordRefundResult(resultRejected)
		} else {
			p.recordRefundResult(resultError)
		}
		return domain.Refund{}, txErr
	}

	if noop {
		p.recordRefundResult(resultNoop)
		return completed, nil
	}

	p.applyCompensations(completed)

	p.recordRefundResult(resultCompleted)
	p.logger.WithFields(log.Fields{
		"refund_id":     completed.ID,
		"refund_number": completed.RefundNumber,
		"order_id":      completed.OrderID,
		"amount_minor":  completed.AmountMinor,
	}).Info("refund completed")

	return completed, nil
}

// settle выполняет проведение возврата внутри транзакции.
// noop=true означает, что параллельная доставка уже провела возврат.
func (p *Processor) settle(tx domain.Tx, refundID string) (domain.Refund, bool, error) {
	refund, err := tx.Refunds().Get(refundID)
	if err != nil {
		return domain.Refund{}, false, err
	}
	if refund.Completed() {
		return refund, true, nil
	}

	order, err := tx.Orders().Get(refund.OrderID)
	if err != nil {
		return domain.Refund{}, false, err
	}

	if !order.Status.Refundable() {
		return domain.Refund{}, false, fmt.Errorf("%w: order status %s", domain.ErrRefundNotEligible, order.Status)
	}
	if refund.AmountMinor <= 0 || refund.AmountMinor > refund.OriginalMinor {
		return domain.Refund{}, false, domain.ErrRefundAmountInvalid
	}

	alreadyRefunded, err := tx.Refunds().SumCompletedByOrder(order.ID)
	if err != nil {
		return domain.Refund{}, false, fmt.Errorf("sum completed refunds: %w", err)
	}
	if alreadyRefunded+refund.AmountMinor > refund.OriginalMinor {
		return domain.Refund{}, false, domain.ErrRefundExceedsOriginal
	}

	result, err := p.gateway.Refund(refund)
	if err != nil {
		return domain.Refund{}, false, err
	}

	now := time.Now().UTC()

	if refund.FullRefund() {
		// Полный возврат отменяет заказ и возвращает товар на склад.
		for _, item := range order.Items {
			if err := tx.Products().Release(item.ProductID, item.Quantity); err != nil {
				return domain.Refund{}, false, fmt.Errorf("restock %s: %w", item.SKU, err)
			}
		}
		order.Status = domain.OrderStatusCancelled
		order.PaymentStatus = domain.PaymentStateRefunded
	} else {
		order.PaymentStatus = domain.PaymentStatePartiallyRefunded
	}
	if err := tx.Orders().Save(order); err != nil {
		return domain.Refund{}, false, fmt.Errorf("save refunded order: %w", err)
	}

	if _, err := p.stats.Recompute(tx, order.CustomerID); err != nil {
		return domain.Refund{}, false, err
	}

	refund.Status = domain.RefundStatusCompleted
	refund.TransactionID = result.TransactionID
	refund.Gateway = domain.RefundGatewayData{
		Gateway:         result.Gateway,
		GatewayRefundID: result.TransactionID,
		ProcessedAt:     now,
		FeeMinor:        result.FeeMinor,
	}
	refund.CompletedAt = &now
	if err := tx.Refunds().Save(refund); err != nil {
		return domain.Refund{}, false, fmt.Errorf("save completed refund: %w", err)
	}
	refund.Version++

	if _, err := tx.Notifications().Enqueue(domain.Notification{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Type:       domain.NotificationTypeRefundCompleted,
		Channel:    domain.NotificationChannelLog,
	}); err != nil {
		return domain.Refund{}, false, fmt.Errorf("enqueue refund notification: %w", err)
	}

	return refund, false, nil
}

// applyCompensations выполняет best-effort шаги после коммита: декремент
// метрик выручки и пересчёт leaderboard. Отказы логируются и не влияют
// на результат возврата.
func (p *Processor) applyCompensations(refund domain.Refund) {
	if p.ledger != nil {
		// Декремент по времени создания возврата, не проведения.
		if err := p.ledger.DecrementRevenue(domain.ScopesAt(refund.CreatedAt), refund.AmountMinor); err != nil {
			p.logger.WithError(err).WithField("refund_id", refund.ID).Warn("failed to decrement revenue metrics")
			if p.metrics != nil {
				p.metrics.RecordLedgerFailure()
			}
		}
	}

	if p.leaderboard != nil {
		if err := p.leaderboard.UpdateLeaderboard(p.leaderboardSize); err != nil {
			p.logger.WithError(err).WithField("refund_id", refund.ID).Warn("failed to update leaderboard")
		}
	}
}

// markProcessing переводит возврат в processing с retry на version conflict.
func (p *Processor) markProcessing(refund *domain.Refund) error {
	for attempt := 0; attempt < maxSaveRetries; attempt++ {
		now := time.Now().UTC()
		refund.Status = domain.RefundStatusProcessing
		refund.ProcessedAt = &now

		err := p.store.Refunds().Save(*refund)
		if err == nil {
			refund.Version++
			return nil
		}
		if !domain.IsVersionConflict(err) || attempt == maxSaveRetries-1 {
			return fmt.Errorf("mark refund processing: %w", err)
		}

		fresh, loadErr := p.store.Refunds().Get(refund.ID)
		if loadErr != nil {
			return fmt.Errorf("reload refund after conflict: %w", loadErr)
		}
		*refund = fresh
		time.Sleep(baseRetryDelay * time.Duration(1<<uint(attempt)))
	}

	return domain.ErrVersionConflict
}

// failRefund помечает возврат failed с причиной. Лучшая попытка: ошибка
// здесь не перекрывает исходную ошибку пайплайна.
func (p *Processor) failRefund(refundID string, cause error) {
	refund, err := p.store.Refunds().Get(refundID)
	if err != nil {
		p.logger.WithError(err).WithField("refund_id", refundID).Warn("failed to load refund for failure mark")
		return
	}
	if refund.Completed() {
		return
	}

	refund.Status = domain.RefundStatusFailed
	refund.Notes = strings.TrimSpace(refund.Notes + "\n" + cause.Error())
	if err := p.store.Refunds().Save(refund); err != nil {
		p.logger.WithError(err).WithField("refund_id", refundID).Warn("failed to mark refund as failed")
	}
}

func (p *Processor) recordRefundResult(result string) {
	if p.metrics != nil {
		p.metrics.RecordRefundProcessed(result)
	}
}

// newNumber генерирует человекочитаемый номер вида PREFIX-XXXXXXXXXXXX.
func newNumber(prefix string) string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return prefix + raw[:12]
}
