package app

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
	"github.com/vladislavdragonenkov/shopq/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shopq/internal/service/orders"
	"github.com/vladislavdragonenkov/shopq/internal/service/payment"
	"github.com/vladislavdragonenkov/shopq/internal/service/refunds"
	"github.com/vladislavdragonenkov/shopq/internal/storage/memory"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	if err := store.Products().Create(domain.Product{
		ID: "prod-1", SKU: "SKU-1", Name: "Widget", PriceMinor: 1000, StockQuantity: 10,
	}); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	gateway := payment.NewMockGateway()
	logger := log.New().WithField("test", "dispatcher")

	orderProcessor := orders.NewProcessor(store, gateway, nil, nil, orders.WithLogger(logger))
	refundProcessor := refunds.NewProcessor(store, gateway, nil, nil, refunds.WithLogger(logger))

	return NewDispatcher(orderProcessor, refundProcessor, nil, logger), store
}

func orderJobMessage(t *testing.T, payload domain.OrderPayload) *sarama.ConsumerMessage {
	t.Helper()

	value, err := json.Marshal(kafka.NewOrderJob(payload))
	if err != nil {
		t.Fatalf("marshal order job: %v", err)
	}
	return &sarama.ConsumerMessage{Topic: kafka.TopicOrdersSubmitted, Value: value}
}

func refundJobMessage(t *testing.T, refundID string) *sarama.ConsumerMessage {
	t.Helper()

	value, err := json.Marshal(kafka.NewRefundJob(refundID))
	if err != nil {
		t.Fatalf("marshal refund job: %v", err)
	}
	return &sarama.ConsumerMessage{Topic: kafka.TopicRefundsRequested, Value: value}
}

func TestDispatcher_OrderJobProcessed(t *testing.T) {
	dispatcher, store := newTestDispatcher(t)

	payload := domain.OrderPayload{
		CustomerEmail: "ivan@example.com",
		CustomerName:  "Ivan Petrov",
		Products:      []domain.PayloadItem{{SKU: "SKU-1", Quantity: 2}},
	}

	if err := dispatcher.Handle(context.Background(), orderJobMessage(t, payload)); err != nil {
		t.Fatalf("handle order job: %v", err)
	}

	product, _ := store.Products().Get("prod-1")
	if product.ReservedQuantity != 2 {
		t.Fatalf("expected reserved stock after processing, got %d", product.ReservedQuantity)
	}
}

func TestDispatcher_MalformedMessageAcked(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t)

	message := &sarama.ConsumerMessage{Topic: kafka.TopicOrdersSubmitted, Value: []byte("{not json")}
	if err := dispatcher.Handle(context.Background(), message); err != nil {
		t.Fatalf("malformed message must be acknowledged, got %v", err)
	}

	message = &sarama.ConsumerMessage{Topic: kafka.TopicRefundsRequested, Value: []byte("{not json")}
	if err := dispatcher.Handle(context.Background(), message); err != nil {
		t.Fatalf("malformed refund message must be acknowledged, got %v", err)
	}
}

func TestDispatcher_PermanentErrorAcked(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t)

	// Все SKU неизвестны: ErrItemsRequired — постоянная ошибка, retry бесполезен.
	payload := domain.OrderPayload{
		CustomerEmail: "ivan@example.com",
		CustomerName:  "Ivan Petrov",
		Products:      []domain.PayloadItem{{SKU: "SKU-MISSING", Quantity: 1}},
	}

	if err := dispatcher.Handle(context.Background(), orderJobMessage(t, payload)); err != nil {
		t.Fatalf("permanent error must be acknowledged, got %v", err)
	}
}

func TestDispatcher_TransientErrorPropagates(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t)

	// Несуществующий возврат: not-found считается transient и уходит в retry.
	if err := dispatcher.Handle(context.Background(), refundJobMessage(t, "missing-refund")); err == nil {
		t.Fatal("expected transient error to propagate to the consumer")
	}
}

func TestDispatcher_UnknownTopicAcked(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t)

	message := &sarama.ConsumerMessage{Topic: "shopq.unknown", Value: []byte("{}")}
	if err := dispatcher.Handle(context.Background(), message); err != nil {
		t.Fatalf("unknown topic must be acknowledged, got %v", err)
	}
}

func TestDispatcher_CancelledContext(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	payload := domain.OrderPayload{
		CustomerEmail: "ivan@example.com",
		CustomerName:  "Ivan Petrov",
		Products:      []domain.PayloadItem{{SKU: "SKU-1", Quantity: 1}},
	}
	if err := dispatcher.Handle(ctx, orderJobMessage(t, payload)); err == nil {
		t.Fatal("expected context error")
	}
}
