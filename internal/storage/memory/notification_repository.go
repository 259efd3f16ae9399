package memory

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
)

// notificationRepository — in-memory хранилище записей уведомлений.
type notificationRepository struct {
	store   *Store
	locking bool
}

func (r *notificationRepository) lock() {
	if r.locking {
		r.store.mu.Lock()
	}
}

func (r *notificationRepository) unlock() {
	if r.locking {
		r.store.mu.Unlock()
	}
}

// Enqueue сохраняет уведомление со статусом pending и возвращает его с присвоенным ID.
func (r *notificationRepository) Enqueue(n domain.Notification) (domain.Notification, error) {
	r.lock()
	defer r.unlock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Status == "" {
		n.Status = domain.NotificationStatusPending
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	r.store.notifications[n.ID] = n
	return n, nil
}

// PullPending возвращает до limit уведомлений со статусом pending, старые первыми.
func (r *notificationRepository) PullPending(limit int) ([]domain.Notification, error) {
	r.lock()
	defer r.unlock()

	if limit <= 0 {
		limit = 100
	}

	result := make([]domain.Notification, 0, limit)
	for _, n := range r.store.notifications {
		if n.Status == domain.NotificationStatusPending {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MarkSent фиксирует успешную доставку и рендеренное сообщение.
func (r *notificationRepository) MarkSent(id, message string) error {
	r.lock()
	defer r.unlock()

	n, ok := r.store.notifications[id]
	if !ok {
		return domain.ErrNotificationNotFound
	}
	now := time.Now().UTC()
	n.Status = domain.NotificationStatusSent
	n.Message = message
	n.AttemptCount++
	n.SentAt = &now
	r.store.notifications[id] = n
	return nil
}

// MarkFailed фиксирует ошибку доставки.
func (r *notificationRepository) MarkFailed(id, reason string) error {
	r.lock()
	defer r.unlock()

	n, ok := r.store.notifications[id]
	if !ok {
		return domain.ErrNotificationNotFound
	}
	n.Status = domain.NotificationStatusFailed
	n.LastError = reason
	n.AttemptCount++
	r.store.notifications[id] = n
	return nil
}

// ListByOrder возвращает все уведомления заказа в порядке создания.
func (r *notificationRepository) ListByOrder(orderID string) ([]domain.Notification, error) {
	r.lock()
	defer r.unlock()

	result := make([]domain.Notification, 0)
	for _, n := range r.store.notifications {
		if n.OrderID == orderID {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

var _ domain.NotificationRepository = (*notificationRepository)(nil)
