package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
)

type customerRepository struct {
	q querier
}

// NewCustomerRepository создаёт PostgreSQL-реализацию CustomerRepository.
func NewCustomerRepository(store *Store) domain.CustomerRepository {
	return &customerRepository{q: store.DB()}
}

func (r *customerRepository) FindOrCreate(c domain.Customer) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	email := strings.ToLower(strings.TrimSpace(c.Email))
	if email == "" {
		return domain.Customer{}, domain.ErrCustomerEmailRequired
	}

	existing, err := r.findByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrCustomerNotFound) {
		return domain.Customer{}, err
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Email = email
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO customers (
			id, name, email, phone, address,
			total_spent_minor, total_orders, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		c.ID, c.Name, c.Email, c.Phone, c.Address,
		c.TotalSpentMinor, c.TotalOrders, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		// Конкурентное создание с тем же email: берём победившую запись.
		if isUniqueViolation(err) {
			return r.findByEmail(ctx, email)
		}
		return domain.Customer{}, fmt.Errorf("insert customer: %w", err)
	}

	return c, nil
}

func (r *customerRepository) Get(id string) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var c domain.Customer
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, email, phone, address,
		       total_spent_minor, total_orders, created_at, updated_at
		FROM customers
		WHERE id = $1
	`, id).Scan(
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address,
		&c.TotalSpentMinor, &c.TotalOrders, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("select customer: %w", err)
	}

	return c, nil
}

func (r *customerRepository) Save(c domain.Customer) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE customers
		SET name = $1,
		    phone = $2,
		    address = $3,
		    total_spent_minor = $4,
		    total_orders = $5,
		    updated_at = $6
		WHERE id = $7
	`,
		c.Name, c.Phone, c.Address,
		c.TotalSpentMinor, c.TotalOrders, time.Now().UTC(), c.ID,
	)
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrCustomerNotFound
	}

	return nil
}

func (r *customerRepository) TopBySpent(limit int) ([]domain.Customer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, name, email, phone, address,
		       total_spent_minor, total_orders, created_at, updated_at
		FROM customers
		ORDER BY total_spent_minor DESC, id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list top customers: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Customer, 0, limit)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address,
			&c.TotalSpentMinor, &c.TotalOrders, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan customer row: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customer rows: %w", err)
	}

	return result, nil
}

func (r *customerRepository) findByEmail(ctx context.Context, email string) (domain.Customer, error) {
	var c domain.Customer
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, email, phone, address,
		       total_spent_minor, total_orders, created_at, updated_at
		FROM customers
		WHERE email = $1
	`, email).Scan(
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address,
		&c.TotalSpentMinor, &c.TotalOrders, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("select customer by email: %w", err)
	}

	return c, nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
