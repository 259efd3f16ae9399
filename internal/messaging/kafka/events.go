package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
)

// Topics для Kafka.
const (
	TopicOrdersSubmitted  = "shopq.orders.submitted"
	TopicRefundsRequested = "shopq.refunds.requested"
	TopicOrderEvents      = "shopq.orders.events"
	TopicDeadLetterQueue  = "shopq.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики.
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// EventType определяет тип lifecycle-события.
type EventType string

const (
	EventTypeOrderPaid       EventType = "order.paid"
	EventTypeOrderCancelled  EventType = "order.cancelled"
	EventTypeRefundCompleted EventType = "refund.completed"
	EventTypeRefundFailed    EventType = "refund.failed"
)

// OrderJob — сообщение очереди shopq.orders.submitted: сырой payload
// заказа от внешнего продюсера.
type OrderJob struct {
	Payload     domain.OrderPayload `json:"payload"`
	SubmittedAt time.Time           `json:"submitted_at"`
}

// RefundJob — сообщение очереди shopq.refunds.requested.
type RefundJob struct {
	RefundID    string    `json:"refund_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// OrderEvent — lifecycle-событие заказа или возврата для внешних
// подписчиков. Поля типизированы: подписчики не разбирают динамические map.
type OrderEvent struct {
	EventType   EventType `json:"event_type"`
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number,omitempty"`
	CustomerID  string    `json:"customer_id,omitempty"`
	RefundID    string    `json:"refund_id,omitempty"`
	Status      string    `json:"status,omitempty"`
	AmountMinor int64     `json:"amount_minor,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewOrderJob оборачивает payload в сообщение очереди.
func NewOrderJob(payload domain.OrderPayload) *OrderJob {
	return &OrderJob{
		Payload:     payload,
		SubmittedAt: time.Now().UTC(),
	}
}

// NewRefundJob создаёт сообщение очереди возвратов.
func NewRefundJob(refundID string) *RefundJob {
	return &RefundJob{
		RefundID:    refundID,
		RequestedAt: time.Now().UTC(),
	}
}

// ParseOrderJob разбирает OrderJob из сообщения.
func ParseOrderJob(message *sarama.ConsumerMessage) (*OrderJob, error) {
	var job OrderJob
	if err := json.Unmarshal(message.Value, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order job: %w", err)
	}
	return &job, nil
}

// ParseRefundJob разбирает RefundJob из сообщения.
func ParseRefundJob(message *sarama.ConsumerMessage) (*RefundJob, error) {
	var job RefundJob
	if err := json.Unmarshal(message.Value, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal refund job: %w", err)
	}
	return &job, nil
}
