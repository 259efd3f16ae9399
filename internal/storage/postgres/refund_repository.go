package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
)

type refundRepository struct {
	q querier
}

// NewRefundRepository создаёт PostgreSQL-реализацию RefundRepository.
func NewRefundRepository(store *Store) domain.RefundRepository {
	return &refundRepository{q: store.DB()}
}

func (r *refundRepository) Create(refund domain.Refund) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO refunds (
			id, order_id, customer_id, refund_number, amount_minor, original_minor,
			type, status, reason, notes, transaction_id,
			gateway, gateway_refund_id, gateway_processed_at, gateway_fee_minor,
			processed_at, completed_at, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`,
		refund.ID, refund.OrderID, refund.CustomerID, refund.RefundNumber,
		refund.AmountMinor, refund.OriginalMinor,
		string(refund.Type), string(refund.Status), refund.Reason, refund.Notes,
		nullString(refund.TransactionID),
		nullString(refund.Gateway.Gateway), nullString(refund.Gateway.GatewayRefundID),
		nullTime(refund.Gateway.ProcessedAt), refund.Gateway.FeeMinor,
		refund.ProcessedAt, refund.CompletedAt,
		refund.Version, refund.CreatedAt, refund.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert refund: %w", err)
	}

	return nil
}

func (r *refundRepository) Get(id string) (domain.Refund, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		refund      domain.Refund
		refundType  string
		status      string
		txnID       sql.NullString
		gateway     sql.NullString
		gatewayID   sql.NullString
		gatewayAt   sql.NullTime
		processedAt sql.NullTime
		completedAt sql.NullTime
	)

	err := r.q.QueryRowContext(ctx, `
		SELECT id, order_id, customer_id, refund_number, amount_minor, original_minor,
		       type, status, reason, notes, transaction_id,
		       gateway, gateway_refund_id, gateway_processed_at, gateway_fee_minor,
		       processed_at, completed_at, version, created_at, updated_at
		FROM refunds
		WHERE id = $1
	`, id).Scan(
		&refund.ID, &refund.OrderID, &refund.CustomerID, &refund.RefundNumber,
		&refund.AmountMinor, &refund.OriginalMinor,
		&refundType, &status, &refund.Reason, &refund.Notes, &txnID,
		&gateway, &gatewayID, &gatewayAt, &refund.Gateway.FeeMinor,
		&processedAt, &completedAt,
		&refund.Version, &refund.CreatedAt, &refund.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Refund{}, domain.ErrRefundNotFound
		}
		return domain.Refund{}, fmt.Errorf("select refund: %w", err)
	}

	refund.Type = domain.RefundType(refundType)
	refund.Status = domain.RefundStatus(status)
	refund.TransactionID = txnID.String
	refund.Gateway.Gateway = gateway.String
	refund.Gateway.GatewayRefundID = gatewayID.String
	if gatewayAt.Valid {
		refund.Gateway.ProcessedAt = gatewayAt.Time.UTC()
	}
	if processedAt.Valid {
		t := processedAt.Time.UTC()
		refund.ProcessedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		refund.CompletedAt = &t
	}

	return refund, nil
}

// Save обновляет возврат с optimistic locking.
func (r *refundRepository) Save(refund domain.Refund) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE refunds
		SET status = $1,
		    reason = $2,
		    notes = $3,
		    transaction_id = $4,
		    gateway = $5,
		    gateway_refund_id = $6,
		    gateway_processed_at = $7,
		    gateway_fee_minor = $8,
		    processed_at = $9,
		    completed_at = $10,
		    version = version + 1,
		    updated_at = $11
		WHERE id = $12
		  AND version = $13
	`,
		string(refund.Status), refund.Reason, refund.Notes,
		nullString(refund.TransactionID),
		nullString(refund.Gateway.Gateway), nullString(refund.Gateway.GatewayRefundID),
		nullTime(refund.Gateway.ProcessedAt), refund.Gateway.FeeMinor,
		refund.ProcessedAt, refund.CompletedAt,
		time.Now().UTC(),
		refund.ID,
		refund.Version,
	)
	if err != nil {
		return fmt.Errorf("update refund: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.refundExists(ctx, refund.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrRefundNotFound
		}
		return domain.ErrVersionConflict
	}

	return nil
}

func (r *refundRepository) SumCompletedByOrder(orderID string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var sum int64
	err := r.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_minor), 0)
		FROM refunds
		WHERE order_id = $1
		  AND status = 'completed'
	`, orderID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum completed refunds: %w", err)
	}

	return sum, nil
}

func (r *refundRepository) refundExists(ctx context.Context, id string) (bool, error) {
	var found string
	err := r.q.QueryRowContext(ctx, `SELECT id FROM refunds WHERE id = $1`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check refund exists: %w", err)
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

var _ domain.RefundRepository = (*refundRepository)(nil)
