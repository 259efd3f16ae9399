package memory

import (
	"github.com/vladislavdragonenkov/shopq/internal/domain"
)

// refundRepository — in-memory реализация RefundRepository.
type refundRepository struct {
	store   *Store
	locking bool
}

func (r *refundRepository) lock() {
	if r.locking {
		r.store.mu.Lock()
	}
}

func (r *refundRepository) unlock() {
	if r.locking {
		r.store.mu.Unlock()
	}
}

// Create сохраняет новый возврат.
func (r *refundRepository) Create(refund domain.Refund) error {
	r.lock()
	defer r.unlock()

	if _, exists := r.store.refunds[refund.ID]; exists {
		return domain.ErrAlreadyExists
	}
	for _, existing := range r.store.refunds {
		if existing.RefundNumber == refund.RefundNumber {
			return domain.ErrAlreadyExists
		}
	}
	r.store.refunds[refund.ID] = refund
	return nil
}

// Get возвращает возврат или ErrRefundNotFound.
func (r *refundRepository) Get(id string) (domain.Refund, error) {
	r.lock()
	defer r.unlock()

	refund, ok := r.store.refunds[id]
	if !ok {
		return domain.Refund{}, domain.ErrRefundNotFound
	}
	return refund, nil
}

// Save перезаписывает возврат, проверяя версию (optimistic locking).
func (r *refundRepository) Save(refund domain.Refund) error {
	r.lock()
	defer r.unlock()

	current, ok := r.store.refunds[refund.ID]
	if !ok {
		return domain.ErrRefundNotFound
	}
	if current.Version != refund.Version {
		return domain.ErrVersionConflict
	}
	refund.Version++
	r.store.refunds[refund.ID] = refund
	return nil
}

// SumCompletedByOrder возвращает сумму completed-возвратов по заказу.
func (r *refundRepository) SumCompletedByOrder(orderID string) (int64, error) {
	r.lock()
	defer r.unlock()

	var sum int64
	for _, refund := range r.store.refunds {
		if refund.OrderID == orderID && refund.Completed() {
			sum += refund.AmountMinor
		}
	}
	return sum, nil
}

var _ domain.RefundRepository = (*refundRepository)(nil)
