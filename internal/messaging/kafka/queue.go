package kafka

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
)

// Queue публикует job'ы пайплайнов в очереди обработки.
type Queue struct {
	producer *Producer
	logger   *log.Entry
}

// NewQueue создаёт очередь поверх producer.
func NewQueue(producer *Producer) *Queue {
	return &Queue{
		producer: producer,
		logger:   log.WithField("component", "kafka-queue"),
	}
}

// EnqueueOrder публикует payload заказа в shopq.orders.submitted.
// Ключ партиционирования — idempotency-key либо email клиента: повторные
// доставки одного payload попадают в одну partition и обрабатываются по порядку.
func (q *Queue) EnqueueOrder(payload domain.OrderPayload) error {
	if errs := payload.Validate(); len(errs) > 0 {
		return errs[0]
	}

	key := strings.TrimSpace(payload.IdempotencyKey)
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(payload.CustomerEmail))
	}

	if err := q.producer.PublishEvent(TopicOrdersSubmitted, key, NewOrderJob(payload)); err != nil {
		return fmt.Errorf("enqueue order: %w", err)
	}

	q.logger.WithFields(log.Fields{
		"customer_email": payload.CustomerEmail,
		"items":          len(payload.Products),
	}).Info("order payload enqueued")
	return nil
}

// EnqueueRefund публикует job возврата в shopq.refunds.requested.
func (q *Queue) EnqueueRefund(refundID string) error {
	if strings.TrimSpace(refundID) == "" {
		return domain.ErrRefundNotFound
	}

	if err := q.producer.PublishEvent(TopicRefundsRequested, refundID, NewRefundJob(refundID)); err != nil {
		return fmt.Errorf("enqueue refund: %w", err)
	}

	q.logger.WithField("refund_id", refundID).Info("refund job enqueued")
	return nil
}

// PublishOrderEvent публикует lifecycle-событие в shopq.orders.events.
// Best-effort: вызывающий код логирует ошибку и не прерывает пайплайн.
func (q *Queue) PublishOrderEvent(event *OrderEvent) error {
	if err := q.producer.PublishEvent(TopicOrderEvents, event.OrderID, event); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}
