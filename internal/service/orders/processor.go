package orders

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
	defaultIdempotencyTTL = 24 * time.Hour

	resultPaid              = "paid"
	resultDeclined          = "declined"
	resultInsufficientStock = "insufficient_stock"
	resultDuplicate         = "duplicate"
	resultError             = "error"
)

// Processor выполняет пайплайн обработки заказа: клиент → заказ с позициями →
// резерв склада → оплата → финализация или откат. Все мутации БД выполняются
// в одной транзакции: ошибка на любом шаге откатывает резерв и заказ целиком.
// Отказ шлюза — исключение: заказ фиксируется отменённым, а не откатывается.
type Processor struct {
	store   domain.Store
	gateway domain.PaymentGateway
	stats   *stats.Aggregator
	ledger  domain.MetricsLedger
	metrics *metrics.PipelineMetrics
	logger  *log.Entry

	idempotencyTTL time.Duration
}

// ProcessorOptions задаёт параметры пайплайна заказов.
type ProcessorOptions struct {
	Metrics        *metrics.PipelineMetrics
	Logger         *log.Entry
	IdempotencyTTL time.Duration
}

// Option настраивает Processor.
type Option func(*ProcessorOptions)

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

// WithIdempotencyTTL задаёт время жизни idempotency-записей.
func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(opts *ProcessorOptions) {
		opts.IdempotencyTTL = ttl
	}
}

// NewProcessor создаёт пайплайн обработки заказов.
func NewProcessor(
	store domain.Store,
	gateway domain.PaymentGateway,
	aggregator *stats.Aggregator,
	ledger domain.MetricsLedger,
	options ...Option,
) *Processor {
	opts := ProcessorOptions{
		IdempotencyTTL: defaultIdempotencyTTL,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "order-pipeline")
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = defaultIdempotencyTTL
	}
	if aggregator == nil {
		aggregator = stats.NewAggregator(logger)
	}

	return &Processor{
		store:          store,
		gateway:        gateway,
		stats:          aggregator,
		ledger:         ledger,
		metrics:        opts.Metrics,
		logger:         logger,
		idempotencyTTL: opts.IdempotencyTTL,
	}
}

// Process выполняет пайплайн для одного payload. Повторная доставка с тем же
// idempotency-key не создаёт дубликат: done-ключ возвращает существующий
// заказ, processing-ключ — ErrOrderInFlight (доставка повторится позже).
func (p *Processor) Process(payload domain.OrderPayload) (domain.Order, error) {
	start := time.Now()
	if p.metrics != nil {
		p.metrics.RecordJobStarted()
	}
	defer func() {
		if p.metrics != nil {
			p.metrics.RecordJobFinished()
			p.metrics.RecordPipelineDuration("orders", time.Since(start))
		}
	}()

	if errs := payload.Validate(); len(errs) > 0 {
		p.recordOrderResult(resultError)
		return domain.Order{}, errs[0]
	}

	key := strings.TrimSpace(payload.IdempotencyKey)
	if key != "" {
		order, proceed, err := p.claimIdempotencyKey(key, payload.Hash())
		if !proceed {
			return order, err
		}
	}

	var (
		order    domain.Order
		declined bool
	)

	txErr := p.store.WithinTx(func(tx domain.Tx) error {
		var err error
		order, declined, err = p.runPipeline(tx, payload)
		return err
	})

	if txErr != nil {
		p.finishIdempotency(key, "")
		switch {
		case errors.Is(txErr, domain.ErrInsufficientStock):
			p.recordOrderResult(resultInsufficientStock)
		default:
			p.recordOrderResult(resultError)
		}
		return domain.Order{}, txErr
	}

	p.finishIdempotency(key, order.ID)

	if declined {
		p.recordOrderResult(resultDeclined)
		p.logger.WithFields(log.Fields{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
		}).Warn("order cancelled: payment declined")
		return order, nil
	}

	p.applyRevenue(order)

	p.recordOrderResult(resultPaid)
	p.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"total_minor":  order.TotalMinor,
	}).Info("order processed successfully")

	return order, nil
}

// claimIdempotencyKey пытается занять ключ. Возвращает proceed=false, когда
// обработку нужно прекратить: done-ключ отдаёт существующий заказ,
// processing-ключ — ErrOrderInFlight. failed-ключ перезанимается атомарно в
// CreateProcessing: повторная попытка достаётся ровно одной доставке.
func (p *Processor) claimIdempotencyKey(key, requestHash string) (domain.Order, bool, error) {
	record, err := p.store.Idempotency().CreateProcessing(key, requestHash, time.Now().UTC().Add(p.idempotencyTTL))
	if err == nil {
		return domain.Order{}, true, nil
	}

	switch {
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		p.recordOrderResult(resultError)
		return domain.Order{}, false, err
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone:
			existing, getErr := p.store.Orders().Get(record.OrderID)
			if getErr != nil {
				p.recordOrderResult(resultError)
				return domain.Order{}, false, fmt.Errorf("load order for done idempotency key: %w", getErr)
			}
			p.recordOrderResult(resultDuplicate)
			p.logger.WithFields(log.Fields{
				"idempotency_key": key,
				"order_id":        existing.ID,
			}).Info("duplicate delivery short-circuited")
			return existing, false, nil
		default:
			return domain.Order{}, false, domain.ErrOrderInFlight
		}
	default:
		p.recordOrderResult(resultError)
		return domain.Order{}, false, fmt.Errorf("claim idempotency key: %w", err)
	}
}

// runPipeline выполняет шаги пайплайна внутри транзакции.
// declined=true означает отказ шлюза: заказ сохранён отменённым.
func (p *Processor) runPipeline(tx domain.Tx, payload domain.OrderPayload) (domain.Order, bool, error) {
	customer, err := tx.Customers().FindOrCreate(domain.Customer{
		Name:    strings.TrimSpace(payload.CustomerName),
		Email:   payload.CustomerEmail,
		Phone:   payload.Phone,
		Address: payload.Address,
	})
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("resolve customer: %w", err)
	}

	now := time.Now().UTC()
	orderID := uuid.NewString()

	items := make([]domain.OrderItem, 0, len(payload.Products))
	var total int64
	for _, line := range payload.Products {
		product, err := tx.Products().FindBySKU(line.SKU)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				// Неизвестный SKU пропускается молча: заказ собирается
				// из оставшихся позиций.
				p.logger.WithField("sku", line.SKU).Warn("unknown sku skipped")
				continue
			}
			return domain.Order{}, false, fmt.Errorf("resolve product %s: %w", line.SKU, err)
		}

		lineTotal := int64(line.Quantity) * product.PriceMinor
		items = append(items, domain.OrderItem{
			ID:             uuid.NewString(),
			OrderID:        orderID,
			ProductID:      product.ID,
			SKU:            product.SKU,
			Quantity:       line.Quantity,
			UnitPriceMinor: product.PriceMinor,
			TotalMinor:     lineTotal,
			CreatedAt:      now,
		})
		total += lineTotal
	}
	if len(items) == 0 {
		return domain.Order{}, false, domain.ErrItemsRequired
	}

	order := domain.Order{
		ID:            orderID,
		CustomerID:    customer.ID,
		OrderNumber:   newNumber("ORD-"),
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatePending,
		TotalMinor:    total,
		Items:         items,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.Orders().Create(order); err != nil {
		return domain.Order{}, false, fmt.Errorf("create order: %w", err)
	}

	if _, err := tx.Notifications().Enqueue(domain.Notification{
		OrderID:    order.ID,
		CustomerID: customer.ID,
		Type:       domain.NotificationTypeProcessing,
		Channel:    domain.NotificationChannelLog,
	}); err != nil {
		return domain.Order{}, false, fmt.Errorf("enqueue processing notification: %w", err)
	}

	for _, item := range order.Items {
		ok, err := tx.Products().Reserve(item.ProductID, item.Quantity)
		if err != nil {
			return domain.Order{}, false, fmt.Errorf("reserve stock for %s: %w", item.SKU, err)
		}
		if !ok {
			// Откат транзакции вернёт и заказ, и ранее занятые резервы.
			return domain.Order{}, false, fmt.Errorf("%w: sku %s", domain.ErrInsufficientStock, item.SKU)
		}
	}
	order.Status = domain.OrderStatusProcessing
	order.PaymentStatus = domain.PaymentStateProcessing
	if err := tx.Orders().Save(order); err != nil {
		return domain.Order{}, false, fmt.Errorf("save processing order: %w", err)
	}
	order.Version++

	result, chargeErr := p.gateway.Charge(order)
	if chargeErr != nil {
		if !errors.Is(chargeErr, domain.ErrGatewayDeclined) {
			return domain.Order{}, false, fmt.Errorf("charge order: %w", chargeErr)
		}
		cancelled, err := p.cancelDeclinedOrder(tx, order)
		if err != nil {
			return domain.Order{}, false, err
		}
		return cancelled, true, nil
	}

	paidAt := result.ProcessedAt
	order.Status = domain.OrderStatusPaid
	order.PaymentStatus = domain.PaymentStatePaid
	order.PaymentTxnID = result.TransactionID
	order.PaymentMethod = result.Method
	order.PaidAt = &paidAt
	if err := tx.Orders().Save(order); err != nil {
		return domain.Order{}, false, fmt.Errorf("finalize order: %w", err)
	}
	order.Version++

	if _, err := p.stats.Recompute(tx, customer.ID); err != nil {
		return domain.Order{}, false, err
	}

	if _, err := tx.Notifications().Enqueue(domain.Notification{
		OrderID:    order.ID,
		CustomerID: customer.ID,
		Type:       domain.NotificationTypeSuccess,
		Channel:    domain.NotificationChannelLog,
	}); err != nil {
		return domain.Order{}, false, fmt.Errorf("enqueue success notification: %w", err)
	}

	return order, false, nil
}

// cancelDeclinedOrder фиксирует отказ оплаты: резерв снимается, заказ
// остаётся в истории отменённым.
func (p *Processor) cancelDeclinedOrder(tx domain.Tx, order domain.Order) (domain.Order, error) {
	for _, item := range order.Items {
		if err := tx.Products().Release(item.ProductID, item.Quantity); err != nil {
			return domain.Order{}, fmt.Errorf("release stock for %s: %w", item.SKU, err)
		}
	}

	order.Status = domain.OrderStatusCancelled
	order.PaymentStatus = domain.PaymentStateFailed
	if err := tx.Orders().Save(order); err != nil {
		return domain.Order{}, fmt.Errorf("save cancelled order: %w", err)
	}
	order.Version++

	if _, err := tx.Notifications().Enqueue(domain.Notification{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Type:       domain.NotificationTypeFailure,
		Channel:    domain.NotificationChannelLog,
	}); err != nil {
		return domain.Order{}, fmt.Errorf("enqueue failure notification: %w", err)
	}

	return order, nil
}

// applyRevenue инкрементирует счётчики выручки после коммита.
// Best-effort: отказ ledger не откатывает заказ, расхождение устраняет
// batch-пересчёт KPI.
func (p *Processor) applyRevenue(order domain.Order) {
	if p.ledger == nil {
		return
	}
	if err := p.ledger.IncrementRevenue(domain.ScopesAt(order.CreatedAt), order.TotalMinor, 1); err != nil {
		p.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to increment revenue metrics")
		if p.metrics != nil {
			p.metrics.RecordLedgerFailure()
		}
	}
}

func (p *Processor) finishIdempotency(key, orderID string) {
	if key == "" {
		return
	}

	var err error
	if orderID != "" {
		// Отклонённый платёж тоже фиксирует ключ: заказ существует
		// в терминальном статусе, повтор не нужен.
		err = p.store.Idempotency().MarkDone(key, orderID)
	} else {
		err = p.store.Idempotency().MarkFailed(key)
	}
	if err != nil {
		p.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to update idempotency record")
	}
}

func (p *Processor) recordOrderResult(result string) {
	if p.metrics != nil {
		p.metrics.RecordOrderProcessed(result)
	}
}

// newNumber генерирует человекочитаемый номер вида PREFIX-XXXXXXXXXXXX.
func newNumber(prefix string) string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return prefix + raw[:12]
}
