package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
)

type notificationRepository struct {
	q querier
}

// NewNotificationRepository создаёт PostgreSQL-реализацию NotificationRepository.
func NewNotificationRepository(store *Store) domain.NotificationRepository {
	return &notificationRepository{q: store.DB()}
}

func (r *notificationRepository) Enqueue(n domain.Notification) (domain.Notification, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Status == "" {
		n.Status = domain.NotificationStatusPending
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO notifications (
			id, order_id, customer_id, type, channel, status,
			message, attempt_count, last_error, created_at, sent_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		n.ID, n.OrderID, n.CustomerID,
		string(n.Type), string(n.Channel), string(n.Status),
		n.Message, n.AttemptCount, n.LastError, n.CreatedAt, n.SentAt,
	)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("enqueue notification: %w", err)
	}

	return n, nil
}

func (r *notificationRepository) PullPending(limit int) ([]domain.Notification, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, order_id, customer_id, type, channel, status,
		       message, attempt_count, last_error, created_at, sent_at
		FROM notifications
		WHERE status = 'pending'
		ORDER BY created_at, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("pull pending notifications: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Notification, 0, limit)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notification rows: %w", err)
	}

	return result, nil
}

func (r *notificationRepository) MarkSent(id, message string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE notifications
		SET status = 'sent',
		    message = $2,
		    attempt_count = attempt_count + 1,
		    sent_at = $3
		WHERE id = $1
	`, id, message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark notification as sent: %w", err)
	}

	return checkNotificationAffected(res)
}

func (r *notificationRepository) MarkFailed(id, reason string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE notifications
		SET status = 'failed',
		    last_error = $2,
		    attempt_count = attempt_count + 1
		WHERE id = $1
	`, id, reason)
	if err != nil {
		return fmt.Errorf("mark notification as failed: %w", err)
	}

	return checkNotificationAffected(res)
}

func (r *notificationRepository) ListByOrder(orderID string) ([]domain.Notification, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, order_id, customer_id, type, channel, status,
		       message, attempt_count, last_error, created_at, sent_at
		FROM notifications
		WHERE order_id = $1
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list notifications by order: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notification rows: %w", err)
	}

	return result, nil
}

func scanNotification(rows *sql.Rows) (domain.Notification, error) {
	var (
		n       domain.Notification
		nType   string
		channel string
		status  string
		sentAt  sql.NullTime
	)
	if err := rows.Scan(
		&n.ID, &n.OrderID, &n.CustomerID, &nType, &channel, &status,
		&n.Message, &n.AttemptCount, &n.LastError, &n.CreatedAt, &sentAt,
	); err != nil {
		return domain.Notification{}, fmt.Errorf("scan notification row: %w", err)
	}
	n.Type = domain.NotificationType(nType)
	n.Channel = domain.NotificationChannel(channel)
	n.Status = domain.NotificationStatus(status)
	if sentAt.Valid {
		t := sentAt.Time.UTC()
		n.SentAt = &t
	}
	return n, nil
}

func checkNotificationAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

var _ domain.NotificationRepository = (*notificationRepository)(nil)
