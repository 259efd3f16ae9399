package app

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
	"github.com/vladislavdragonenkov/shopq/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shopq/internal/service/orders"
	"github.com/vladislavdragonenkov/shopq/internal/service/refunds"
)

// Dispatcher маршрутизирует сообщения очередей в пайплайны.
// Постоянные ошибки подтверждаются сразу: повтор и DLQ для них бесполезны.
// Transient-ошибки возвращаются consumer'у, который повторит и после
// исчерпания попыток отправит сообщение в DLQ.
type Dispatcher struct {
	orders  *orders.Processor
	refunds *refunds.Processor
	queue   *kafka.Queue
	logger  *log.Entry
}

// NewDispatcher создаёт dispatcher очередей.
func NewDispatcher(orderProcessor *orders.Processor, refundProcessor *refunds.Processor, queue *kafka.Queue, logger *log.Entry) *Dispatcher {
	if logger == nil {
		logger = log.WithField("component", "dispatcher")
	}
	return &Dispatcher{
		orders:  orderProcessor,
		refunds: refundProcessor,
		queue:   queue,
		logger:  logger,
	}
}

// Handle обрабатывает одно сообщение очереди.
func (d *Dispatcher) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch message.Topic {
	case kafka.TopicOrdersSubmitted:
		return d.handleOrder(message)
	case kafka.TopicRefundsRequested:
		return d.handleRefund(message)
	default:
		// Неизвестный topic подтверждаем: consumer подписан только на
		// свои очереди, сюда попадает разве что ошибка конфигурации.
		d.logger.WithField("topic", message.Topic).Warn("message from unexpected topic skipped")
		return nil
	}
}

func (d *Dispatcher) handleOrder(message *sarama.ConsumerMessage) error {
	job, err := kafka.ParseOrderJob(message)
	if err != nil {
		d.logger.WithError(err).WithFields(log.Fields{
			"partition": message.Partition,
			"offset":    message.Offset,
		}).Warn("malformed order job acknowledged")
		return nil
	}

	order, err := d.orders.Process(job.Payload)
	if err != nil {
		if domain.IsPermanent(err) {
			d.logger.WithError(err).Warn("order job rejected permanently")
			return nil
		}
		return err
	}

	d.publishOrderOutcome(order)
	return nil
}

func (d *Dispatcher) handleRefund(message *sarama.ConsumerMessage) error {
	job, err := kafka.ParseRefundJob(message)
	if err != nil {
		d.logger.WithError(err).WithFields(log.Fields{
			"partition": message.Partition,
			"offset":    message.Offset,
		}).Warn("malformed refund job acknowledged")
		return nil
	}

	refund, err := d.refunds.Process(job.RefundID)
	if err != nil {
		if domain.IsPermanent(err) {
			d.logger.WithError(err).WithField("refund_id", job.RefundID).Warn("refund job rejected permanently")
			d.publishRefundFailed(job.RefundID)
			return nil
		}
		return err
	}

	d.publishRefundCompleted(refund)
	return nil
}

// publishOrderOutcome публикует lifecycle-событие заказа. Best-effort:
// отказ publish не откатывает уже закоммиченный заказ.
func (d *Dispatcher) publishOrderOutcome(order domain.Order) {
	if d.queue == nil {
		return
	}

	eventType := kafka.EventTypeOrderPaid
	if order.Status == domain.OrderStatusCancelled {
		eventType = kafka.EventTypeOrderCancelled
	}

	event := &kafka.OrderEvent{
		EventType:   eventType,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		Status:      string(order.Status),
		AmountMinor: order.TotalMinor,
		Timestamp:   time.Now().UTC(),
	}
	if err := d.queue.PublishOrderEvent(event); err != nil {
		d.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to publish order event")
	}
}

func (d *Dispatcher) publishRefundCompleted(refund domain.Refund) {
	if d.queue == nil {
		return
	}

	event := &kafka.OrderEvent{
		EventType:   kafka.EventTypeRefundCompleted,
		OrderID:     refund.OrderID,
		CustomerID:  refund.CustomerID,
		RefundID:    refund.ID,
		Status:      string(refund.Status),
		AmountMinor: refund.AmountMinor,
		Timestamp:   time.Now().UTC(),
	}
	if err := d.queue.PublishOrderEvent(event); err != nil {
		d.logger.WithError(err).WithField("refund_id", refund.ID).Warn("failed to publish refund event")
	}
}

func (d *Dispatcher) publishRefundFailed(refundID string) {
	if d.queue == nil {
		return
	}

	event := &kafka.OrderEvent{
		EventType: kafka.EventTypeRefundFailed,
		RefundID:  refundID,
		Status:    string(domain.RefundStatusFailed),
		Timestamp: time.Now().UTC(),
	}
	if err := d.queue.PublishOrderEvent(event); err != nil {
		d.logger.WithError(err).WithField("refund_id", refundID).Warn("failed to publish refund failure event")
	}
}
