package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type orderRepository struct {
	q querier
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{q: store.DB()}
}

// Create сохраняет заказ вместе с позициями. Атомарность вставки
// обеспечивается объемлющей WithinTx; пайплайн создаёт заказы только в ней.
func (r *orderRepository) Create(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO orders (
			id, customer_id, order_number, status, payment_status, total_minor,
			payment_txn_id, payment_method, paid_at, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		order.ID, order.CustomerID, order.OrderNumber,
		string(order.Status), string(order.PaymentStatus), order.TotalMinor,
		nullString(order.PaymentTxnID), nullString(order.PaymentMethod), order.PaidAt,
		order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		if _, err := r.q.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, product_id, sku, quantity,
				unit_price_minor, total_minor, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`,
			item.ID, order.ID, item.ProductID, item.SKU, item.Quantity,
			item.UnitPriceMinor, item.TotalMinor, item.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return nil
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		order         domain.Order
		status        string
		paymentStatus string
		txnID         sql.NullString
		method        sql.NullString
		paidAt        sql.NullTime
	)

	err := r.q.QueryRowContext(ctx, `
		SELECT id, customer_id, order_number, status, payment_status, total_minor,
		       payment_txn_id, payment_method, paid_at, version, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(
		&order.ID, &order.CustomerID, &order.OrderNumber, &status, &paymentStatus,
		&order.TotalMinor, &txnID, &method, &paidAt,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	order.Status = domain.OrderStatus(status)
	order.PaymentStatus = domain.PaymentState(paymentStatus)
	order.PaymentTxnID = txnID.String
	order.PaymentMethod = method.String
	if paidAt.Valid {
		t := paidAt.Time.UTC()
		order.PaidAt = &t
	}

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

// Save обновляет заказ с optimistic locking; позиции неизменяемы
// и не перезаписываются.
func (r *orderRepository) Save(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    payment_status = $2,
		    payment_txn_id = $3,
		    payment_method = $4,
		    paid_at = $5,
		    version = version + 1,
		    updated_at = $6
		WHERE id = $7
		  AND version = $8
	`,
		string(order.Status),
		string(order.PaymentStatus),
		nullString(order.PaymentTxnID),
		nullString(order.PaymentMethod),
		order.PaidAt,
		time.Now().UTC(),
		order.ID,
		order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrVersionConflict
	}

	return nil
}

func (r *orderRepository) AggregateByCustomer(customerID string) (int64, int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		total int64
		count int64
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_minor), 0), COUNT(*)
		FROM orders
		WHERE customer_id = $1
		  AND status <> 'cancelled'
	`, customerID).Scan(&total, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("aggregate orders by customer: %w", err)
	}

	return total, count, nil
}

func (r *orderRepository) PaidTotalsBetween(from, to time.Time) (int64, int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		revenue int64
		count   int64
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_minor), 0), COUNT(*)
		FROM orders
		WHERE status = 'paid'
		  AND created_at >= $1
		  AND created_at < $2
	`, from, to).Scan(&revenue, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("aggregate paid orders: %w", err)
	}

	return revenue, count, nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, order_id, product_id, sku, quantity, unit_price_minor, total_minor, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.SKU,
			&item.Quantity, &item.UnitPriceMinor, &item.TotalMinor, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func (r *orderRepository) orderExists(ctx context.Context, orderID string) (bool, error) {
	var id string
	err := r.q.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ domain.OrderRepository = (*orderRepository)(nil)
