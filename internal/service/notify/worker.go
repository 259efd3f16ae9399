package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
)

const (
	defaultPollInterval = 1 * time.Second
	defaultBatchSize    = 100
)

var (
	notificationsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopq_notifications_delivered_total",
		Help: "Total number of notification deliveries grouped by result.",
	}, []string{"result"})
	notificationsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shopq_notifications_pending",
		Help: "Number of pending notifications pulled in the last polling cycle.",
	})
)

// WorkerOptions задаёт параметры воркера уведомлений.
type WorkerOptions struct {
	Logger       *log.Entry
	PollInterval time.Duration
	BatchSize    int
}

// Option настраивает Worker.
type Option func(*WorkerOptions)

// WithLogger задаёт logger воркера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *WorkerOptions) {
		opts.Logger = logger
	}
}

// WithPollInterval задаёт частоту опроса очереди уведомлений.
func WithPollInterval(interval time.Duration) Option {
	return func(opts *WorkerOptions) {
		opts.PollInterval = interval
	}
}

// WithBatchSize задаёт размер батча уведомлений.
func WithBatchSize(batchSize int) Option {
	return func(opts *WorkerOptions) {
		opts.BatchSize = batchSize
	}
}

// Worker доставляет pending-уведомления из хранилища. Доставка
// fire-and-forget: пайплайны ставят запись в очередь внутри своей
// транзакции, а ошибка доставки никогда не влияет на заказ или возврат.
type Worker struct {
	repo   domain.NotificationRepository
	orders domain.OrderRepository
	logger *log.Entry

	pollInterval time.Duration
	batchSize    int
}

// NewWorker создаёт воркер доставки уведомлений.
func NewWorker(repo domain.NotificationRepository, orders domain.OrderRepository, options ...Option) *Worker {
	opts := WorkerOptions{
		PollInterval: defaultPollInterval,
		BatchSize:    defaultBatchSize,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "notify-worker")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	return &Worker{
		repo:         repo,
		orders:       orders,
		logger:       logger,
		pollInterval: opts.PollInterval,
		batchSize:    opts.BatchSize,
	}
}

// Run запускает периодический polling до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("notify worker is disabled: repository is nil")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.ProcessOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce выполняет один polling-цикл.
func (w *Worker) ProcessOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	pending, err := w.repo.PullPending(w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending notifications")
		return
	}
	notificationsPending.Set(float64(len(pending)))
	if len(pending) == 0 {
		return
	}

	for _, n := range pending {
		if ctx.Err() != nil {
			return
		}

		message, err := w.render(n)
		if err != nil {
			w.logger.WithError(err).WithField("notification_id", n.ID).Warn("failed to render notification")
			notificationsDelivered.WithLabelValues("failed").Inc()
			if markErr := w.repo.MarkFailed(n.ID, err.Error()); markErr != nil {
				w.logger.WithError(markErr).WithField("notification_id", n.ID).Warn("failed to mark notification as failed")
			}
			continue
		}

		w.deliver(n, message)
		notificationsDelivered.WithLabelValues("sent").Inc()
		if err := w.repo.MarkSent(n.ID, message); err != nil {
			w.logger.WithError(err).WithField("notification_id", n.ID).Warn("failed to mark notification as sent")
		}
	}
}

// render собирает текст уведомления из актуального состояния заказа.
func (w *Worker) render(n domain.Notification) (string, error) {
	order, err := w.orders.Get(n.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return "", fmt.Errorf("order %s not found for notification", n.OrderID)
		}
		return "", fmt.Errorf("load order for notification: %w", err)
	}

	switch n.Type {
	case domain.NotificationTypeProcessing:
		return fmt.Sprintf("Order %s is being processed.", order.OrderNumber), nil
	case domain.NotificationTypeSuccess:
		return fmt.Sprintf("Order %s has been processed successfully! Total: $%.2f",
			order.OrderNumber, float64(order.TotalMinor)/100), nil
	case domain.NotificationTypeFailure:
		return fmt.Sprintf("Order %s could not be processed: payment was declined.", order.OrderNumber), nil
	case domain.NotificationTypeRefundCompleted:
		return fmt.Sprintf("Refund for order %s has been completed.", order.OrderNumber), nil
	default:
		return "", fmt.Errorf("unknown notification type %q", n.Type)
	}
}

// deliver доставляет сообщение по каналу. Email-канал пока пишет в лог:
// SMTP-интеграции нет, но запись фиксирует факт и содержание доставки.
func (w *Worker) deliver(n domain.Notification, message string) {
	w.logger.WithFields(log.Fields{
		"notification_id": n.ID,
		"order_id":        n.OrderID,
		"customer_id":     n.CustomerID,
		"type":            string(n.Type),
		"channel":         string(n.Channel),
	}).Info(message)
}
