package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
)

type productRepository struct {
	q querier
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{q: store.DB()}
}

func (r *productRepository) FindBySKU(sku string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.selectOne(ctx, `WHERE sku = $1`, sku)
}

func (r *productRepository) Get(id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.selectOne(ctx, `WHERE id = $1`, id)
}

func (r *productRepository) Create(p domain.Product) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO products (
			id, sku, name, price_minor,
			stock_quantity, reserved_quantity, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		p.ID, p.SKU, p.Name, p.PriceMinor,
		p.StockQuantity, p.ReservedQuantity, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

// Reserve — условный декремент одним UPDATE: проверка available >= qty
// выполняется в предикате, без read-then-write на стороне приложения.
func (r *productRepository) Reserve(productID string, qty int32) (bool, error) {
	if qty <= 0 {
		return false, domain.ErrItemQtyInvalid
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE products
		SET reserved_quantity = reserved_quantity + $1,
		    updated_at = $2
		WHERE id = $3
		  AND stock_quantity - reserved_quantity >= $1
	`, qty, time.Now().UTC(), productID)
	if err != nil {
		return false, fmt.Errorf("reserve stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := r.Get(productID); getErr != nil {
			return false, getErr
		}
		return false, nil
	}

	return true, nil
}

// Release терпим к release без парного reserve: GREATEST не уводит
// reserved_quantity ниже нуля.
func (r *productRepository) Release(productID string, qty int32) error {
	if qty <= 0 {
		return domain.ErrItemQtyInvalid
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE products
		SET reserved_quantity = GREATEST(reserved_quantity - $1, 0),
		    updated_at = $2
		WHERE id = $3
	`, qty, time.Now().UTC(), productID)
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}

	return nil
}

func (r *productRepository) selectOne(ctx context.Context, where string, arg interface{}) (domain.Product, error) {
	var p domain.Product
	err := r.q.QueryRowContext(ctx, `
		SELECT id, sku, name, price_minor,
		       stock_quantity, reserved_quantity, created_at, updated_at
		FROM products
	`+where, arg).Scan(
		&p.ID, &p.SKU, &p.Name, &p.PriceMinor,
		&p.StockQuantity, &p.ReservedQuantity, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}

	return p, nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
