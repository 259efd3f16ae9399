package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultTxTimeout       = 30 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
)

// querier покрывает общие методы *sql.DB и *sql.Tx: один и тот же код
// репозитория работает и standalone, и внутри WithinTx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store оборачивает SQL-подключение к PostgreSQL и реализует domain.Store.
type Store struct {
	db *sql.DB
}

// Open открывает подключение к PostgreSQL и проверяет доступность базы.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{db: db}, nil
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Customers возвращает репозиторий клиентов вне транзакции.
func (s *Store) Customers() domain.CustomerRepository { return &customerRepository{q: s.db} }

// Products возвращает складской репозиторий вне транзакции.
func (s *Store) Products() domain.ProductRepository { return &productRepository{q: s.db} }

// Orders возвращает репозиторий заказов вне транзакции.
func (s *Store) Orders() domain.OrderRepository { return &orderRepository{q: s.db} }

// Refunds возвращает репозиторий возвратов вне транзакции.
func (s *Store) Refunds() domain.RefundRepository { return &refundRepository{q: s.db} }

// Notifications возвращает репозиторий уведомлений вне транзакции.
func (s *Store) Notifications() domain.NotificationRepository {
	return &notificationRepository{q: s.db}
}

// Idempotency возвращает репозиторий idempotency-ключей. Он намеренно
// не участвует в WithinTx: отметка done ставится только после коммита.
func (s *Store) Idempotency() domain.IdempotencyRepository {
	return &idempotencyRepository{q: s.db}
}

// txView — репозитории, привязанные к одной открытой транзакции.
type txView struct {
	tx *sql.Tx
}

func (v *txView) Customers() domain.CustomerRepository { return &customerRepository{q: v.tx} }
func (v *txView) Products() domain.ProductRepository   { return &productRepository{q: v.tx} }
func (v *txView) Orders() domain.OrderRepository       { return &orderRepository{q: v.tx} }
func (v *txView) Refunds() domain.RefundRepository     { return &refundRepository{q: v.tx} }
func (v *txView) Notifications() domain.NotificationRepository {
	return &notificationRepository{q: v.tx}
}

// WithinTx выполняет fn в одной транзакции БД. Ошибка fn откатывает
// все изменения целиком: резервирование склада, статусы заказа и
// записи уведомлений не могут разъехаться при падении между шагами.
func (s *Store) WithinTx(fn func(tx domain.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTxTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&txView{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

var _ domain.Store = (*Store)(nil)
var _ domain.Tx = (*txView)(nil)
