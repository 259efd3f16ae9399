package memory

import (
	"time"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
)

// orderRepository — in-memory реализация OrderRepository.
type orderRepository struct {
	store   *Store
	locking bool
}

func (r *orderRepository) lock() {
	if r.locking {
		r.store.mu.Lock()
	}
}

func (r *orderRepository) unlock() {
	if r.locking {
		r.store.mu.Unlock()
	}
}

// Create сохраняет новый заказ вместе с позициями, если ID ещё не занят.
func (r *orderRepository) Create(order domain.Order) error {
	r.lock()
	defer r.unlock()

	if _, exists := r.store.orders[order.ID]; exists {
		return domain.ErrAlreadyExists
	}
	for _, existing := range r.store.orders {
		if existing.OrderNumber == order.OrderNumber {
			return domain.ErrAlreadyExists
		}
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.store.orders[order.ID] = cloneOrder(order)
	return nil
}

// Get возвращает заказ или ErrOrderNotFound.
func (r *orderRepository) Get(id string) (domain.Order, error) {
	r.lock()
	defer r.unlock()

	order, ok := r.store.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
// Позиции неизменяемы: сохранённые items не трогаем.
func (r *orderRepository) Save(order domain.Order) error {
	r.lock()
	defer r.unlock()

	current, ok := r.store.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrVersionConflict
	}
	order.Version++
	order.Items = current.Items
	r.store.orders[order.ID] = cloneOrder(order)
	return nil
}

// AggregateByCustomer считает сумму и количество не-отменённых заказов клиента.
func (r *orderRepository) AggregateByCustomer(customerID string) (int64, int64, error) {
	r.lock()
	defer r.unlock()

	var total, count int64
	for _, order := range r.store.orders {
		if order.CustomerID != customerID || order.Cancelled() {
			continue
		}
		total += order.TotalMinor
		count++
	}
	return total, count, nil
}

// PaidTotalsBetween считает выручку и число оплаченных заказов в интервале [from, to).
func (r *orderRepository) PaidTotalsBetween(from, to time.Time) (int64, int64, error) {
	r.lock()
	defer r.unlock()

	var revenue, count int64
	for _, order := range r.store.orders {
		if order.Status != domain.OrderStatusPaid {
			continue
		}
		if order.CreatedAt.Before(from) || !order.CreatedAt.Before(to) {
			continue
		}
		revenue += order.TotalMinor
		count++
	}
	return revenue, count, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
