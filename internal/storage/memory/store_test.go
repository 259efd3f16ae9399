package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
)

func seedProduct(t *testing.T, store *Store) domain.Product {
	t.Helper()

	product := domain.Product{
		ID:            "prod-1",
		SKU:           "SKU-1",
		Name:          "Widget",
		PriceMinor:    1000,
		StockQuantity: 5,
	}
	if err := store.Products().Create(product); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func TestWithinTx_CommitsOnSuccess(t *testing.T) {
	store := NewStore()
	seedProduct(t, store)

	err := store.WithinTx(func(tx domain.Tx) error {
		ok, err := tx.Products().Reserve("prod-1", 2)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("unexpected reserve failure")
		}
		return tx.Orders().Create(domain.Order{
			ID:          "order-1",
			CustomerID:  "customer-1",
			OrderNumber: "ORD-1",
			Status:      domain.OrderStatusPending,
			TotalMinor:  2000,
			Items: []domain.OrderItem{{
				ID: "item-1", OrderID: "order-1", ProductID: "prod-1", SKU: "SKU-1",
				Quantity: 2, UnitPriceMinor: 1000, TotalMinor: 2000,
			}},
		})
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	product, _ := store.Products().Get("prod-1")
	if product.ReservedQuantity != 2 {
		t.Fatalf("expected reserved 2, got %d", product.ReservedQuantity)
	}
	if _, err := store.Orders().Get("order-1"); err != nil {
		t.Fatalf("expected committed order, got %v", err)
	}
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	store := NewStore()
	seedProduct(t, store)

	boom := errors.New("boom")
	err := store.WithinTx(func(tx domain.Tx) error {
		if _, err := tx.Products().Reserve("prod-1", 3); err != nil {
			return err
		}
		if err := tx.Orders().Create(domain.Order{
			ID:          "order-1",
			CustomerID:  "customer-1",
			OrderNumber: "ORD-1",
			Status:      domain.OrderStatusPending,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	// Откат возвращает и резерв, и заказ.
	product, _ := store.Products().Get("prod-1")
	if product.ReservedQuantity != 0 {
		t.Fatalf("expected rollback of reserve, got %d", product.ReservedQuantity)
	}
	if _, err := store.Orders().Get("order-1"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected rolled back order, got %v", err)
	}
}

func TestWithinTx_IdempotencyOutsideTxBoundary(t *testing.T) {
	store := NewStore()

	boom := errors.New("boom")
	err := store.WithinTx(func(tx domain.Tx) error {
		// Ключ занимается вне транзакции и не участвует в откате.
		if _, err := store.Idempotency().CreateProcessing("key-1", "hash-1", time.Now().UTC().Add(time.Hour)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	record, err := store.Idempotency().Get("key-1")
	if err != nil {
		t.Fatalf("idempotency record must survive rollback: %v", err)
	}
	if record.Status != domain.IdempotencyStatusProcessing {
		t.Fatalf("unexpected record status %s", record.Status)
	}
}

func TestOrderRepository_SaveVersionConflict(t *testing.T) {
	store := NewStore()

	order := domain.Order{
		ID:          "order-1",
		CustomerID:  "customer-1",
		OrderNumber: "ORD-1",
		Status:      domain.OrderStatusPending,
	}
	if err := store.Orders().Create(order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	order.Status = domain.OrderStatusProcessing
	if err := store.Orders().Save(order); err != nil {
		t.Fatalf("first save: %v", err)
	}

	// Повторное сохранение со старой версией отклоняется.
	order.Status = domain.OrderStatusPaid
	if err := store.Orders().Save(order); !domain.IsVersionConflict(err) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestOrderRepository_ItemsImmutableOnSave(t *testing.T) {
	store := NewStore()

	order := domain.Order{
		ID:          "order-1",
		CustomerID:  "customer-1",
		OrderNumber: "ORD-1",
		Status:      domain.OrderStatusPending,
		Items: []domain.OrderItem{{
			ID: "item-1", OrderID: "order-1", ProductID: "prod-1", SKU: "SKU-1",
			Quantity: 1, UnitPriceMinor: 1000, TotalMinor: 1000,
		}},
	}
	if err := store.Orders().Create(order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	order.Items = nil
	order.Status = domain.OrderStatusPaid
	if err := store.Orders().Save(order); err != nil {
		t.Fatalf("save order: %v", err)
	}

	stored, _ := store.Orders().Get("order-1")
	if len(stored.Items) != 1 {
		t.Fatalf("items must be immutable, got %d", len(stored.Items))
	}
}

func TestProductRepository_ReserveAndRelease(t *testing.T) {
	store := NewStore()
	seedProduct(t, store)

	ok, err := store.Products().Reserve("prod-1", 5)
	if err != nil || !ok {
		t.Fatalf("reserve full stock: ok=%v err=%v", ok, err)
	}

	// Остаток исчерпан: условный декремент отказывает без мутации.
	ok, err = store.Products().Reserve("prod-1", 1)
	if err != nil {
		t.Fatalf("reserve over stock: %v", err)
	}
	if ok {
		t.Fatal("expected reserve to fail on exhausted stock")
	}

	if err := store.Products().Release("prod-1", 2); err != nil {
		t.Fatalf("release: %v", err)
	}
	product, _ := store.Products().Get("prod-1")
	if product.Available() != 2 {
		t.Fatalf("expected available 2, got %d", product.Available())
	}

	// Release не уводит reserved ниже нуля.
	if err := store.Products().Release("prod-1", 100); err != nil {
		t.Fatalf("over-release: %v", err)
	}
	product, _ = store.Products().Get("prod-1")
	if product.ReservedQuantity != 0 {
		t.Fatalf("expected clamped reserve, got %d", product.ReservedQuantity)
	}
}

func TestCustomerRepository_FindOrCreateByEmail(t *testing.T) {
	store := NewStore()

	first, err := store.Customers().FindOrCreate(domain.Customer{Name: "Ivan", Email: "Ivan@Example.com"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}

	// Email нормализуется, повторный вызов возвращает ту же запись.
	second, err := store.Customers().FindOrCreate(domain.Customer{Name: "Another Name", Email: "ivan@example.com"})
	if err != nil {
		t.Fatalf("find customer: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same customer, got %s and %s", first.ID, second.ID)
	}
	if second.Name != "Ivan" {
		t.Fatalf("expected original name, got %q", second.Name)
	}
}
