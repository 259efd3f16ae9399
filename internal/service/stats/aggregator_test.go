package stats

import (
	"errors"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
	"github.com/vladislavdragonenkov/shopq/internal/storage/memory"
)

func seedCustomerWithOrders(t *testing.T, store *memory.Store) domain.Customer {
	t.Helper()

	customer, err := store.Customers().FindOrCreate(domain.Customer{
		Name:  "Anna K",
		Email: "anna@example.com",
	})
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	now := time.Now().UTC()
	orders := []domain.Order{
		{
			ID: "order-1", CustomerID: customer.ID, OrderNumber: "ORD-1",
			Status: domain.OrderStatusPaid, PaymentStatus: domain.PaymentStatePaid,
			TotalMinor: 1500,
			Items: []domain.OrderItem{{
				ID: "i-1", OrderID: "order-1", ProductID: "p-1", SKU: "SKU-1",
				Quantity: 1, UnitPriceMinor: 1500, TotalMinor: 1500, CreatedAt: now,
			}},
			CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "order-2", CustomerID: customer.ID, OrderNumber: "ORD-2",
			Status: domain.OrderStatusDelivered, PaymentStatus: domain.PaymentStatePaid,
			TotalMinor: 500,
			Items: []domain.OrderItem{{
				ID: "i-2", OrderID: "order-2", ProductID: "p-1", SKU: "SKU-1",
				Quantity: 1, UnitPriceMinor: 500, TotalMinor: 500, CreatedAt: now,
			}},
			CreatedAt: now, UpdatedAt: now,
		},
		// Отменённый заказ в агрегаты не попадает.
		{
			ID: "order-3", CustomerID: customer.ID, OrderNumber: "ORD-3",
			Status: domain.OrderStatusCancelled, PaymentStatus: domain.PaymentStateFailed,
			TotalMinor: 9000,
			Items: []domain.OrderItem{{
				ID: "i-3", OrderID: "order-3", ProductID: "p-1", SKU: "SKU-1",
				Quantity: 1, UnitPriceMinor: 9000, TotalMinor: 9000, CreatedAt: now,
			}},
			CreatedAt: now, UpdatedAt: now,
		},
	}
	for _, order := range orders {
		if err := store.Orders().Create(order); err != nil {
			t.Fatalf("seed order %s: %v", order.ID, err)
		}
	}

	return customer
}

func TestRecompute_DerivesFromOrders(t *testing.T) {
	store := memory.NewStore()
	customer := seedCustomerWithOrders(t, store)

	aggregator := NewAggregator(log.New().WithField("test", "stats"))

	var updated domain.Customer
	err := store.WithinTx(func(tx domain.Tx) error {
		var err error
		updated, err = aggregator.Recompute(tx, customer.ID)
		return err
	})
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}

	if updated.TotalSpentMinor != 2000 {
		t.Fatalf("expected total spent 2000, got %d", updated.TotalSpentMinor)
	}
	if updated.TotalOrders != 2 {
		t.Fatalf("expected 2 orders, got %d", updated.TotalOrders)
	}

	stored, _ := store.Customers().Get(customer.ID)
	if stored.TotalSpentMinor != 2000 || stored.TotalOrders != 2 {
		t.Fatalf("stats not persisted: spent=%d orders=%d", stored.TotalSpentMinor, stored.TotalOrders)
	}
}

func TestRecompute_IsIdempotent(t *testing.T) {
	store := memory.NewStore()
	customer := seedCustomerWithOrders(t, store)

	aggregator := NewAggregator(log.New().WithField("test", "stats"))

	for i := 0; i < 3; i++ {
		err := store.WithinTx(func(tx domain.Tx) error {
			_, err := aggregator.Recompute(tx, customer.ID)
			return err
		})
		if err != nil {
			t.Fatalf("recompute attempt %d: %v", i, err)
		}
	}

	stored, _ := store.Customers().Get(customer.ID)
	if stored.TotalSpentMinor != 2000 || stored.TotalOrders != 2 {
		t.Fatalf("repeated recompute drifted: spent=%d orders=%d", stored.TotalSpentMinor, stored.TotalOrders)
	}
}

func TestRecompute_UnknownCustomer(t *testing.T) {
	store := memory.NewStore()
	aggregator := NewAggregator(log.New().WithField("test", "stats"))

	err := store.WithinTx(func(tx domain.Tx) error {
		_, err := aggregator.Recompute(tx, "missing")
		return err
	})
	if !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}
