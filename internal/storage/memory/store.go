package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
)

// Store — in-memory реализация domain.Store для локальной разработки и тестов.
// WithinTx сериализует транзакции под одним мьютексом и восстанавливает
// снапшот состояния при ошибке; заодно это закрывает check-then-act гонку
// двух возвратов по одному заказу.
type Store struct {
	mu sync.Mutex

	customers        map[string]domain.Customer
	customersByEmail map[string]string
	products         map[string]domain.Product
	productsBySKU    map[string]string
	orders           map[string]domain.Order
	refunds          map[string]domain.Refund
	notifications    map[string]domain.Notification

	idempotency domain.IdempotencyRepository
}

// NewStore возвращает пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		customers:        make(map[string]domain.Customer),
		customersByEmail: make(map[string]string),
		products:         make(map[string]domain.Product),
		productsBySKU:    make(map[string]string),
		orders:           make(map[string]domain.Order),
		refunds:          make(map[string]domain.Refund),
		notifications:    make(map[string]domain.Notification),
		idempotency:      NewIdempotencyRepository(),
	}
}

// snapshot делает глубокую копию всех таблиц для отката транзакции.
type snapshot struct {
	customers        map[string]domain.Customer
	customersByEmail map[string]string
	products         map[string]domain.Product
	productsBySKU    map[string]string
	orders           map[string]domain.Order
	refunds          map[string]domain.Refund
	notifications    map[string]domain.Notification
}

func (s *Store) takeSnapshot() snapshot {
	snap := snapshot{
		customers:        make(map[string]domain.Customer, len(s.customers)),
		customersByEmail: make(map[string]string, len(s.customersByEmail)),
		products:         make(map[string]domain.Product, len(s.products)),
		productsBySKU:    make(map[string]string, len(s.productsBySKU)),
		orders:           make(map[string]domain.Order, len(s.orders)),
		refunds:          make(map[string]domain.Refund, len(s.refunds)),
		notifications:    make(map[string]domain.Notification, len(s.notifications)),
	}
	for k, v := range s.customers {
		snap.customers[k] = v
	}
	for k, v := range s.customersByEmail {
		snap.customersByEmail[k] = v
	}
	for k, v := range s.products {
		snap.products[k] = v
	}
	for k, v := range s.productsBySKU {
		snap.productsBySKU[k] = v
	}
	for k, v := range s.orders {
		snap.orders[k] = cloneOrder(v)
	}
	for k, v := range s.refunds {
		snap.refunds[k] = v
	}
	for k, v := range s.notifications {
		snap.notifications[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.customers = snap.customers
	s.customersByEmail = snap.customersByEmail
	s.products = snap.products
	s.productsBySKU = snap.productsBySKU
	s.orders = snap.orders
	s.refunds = snap.refunds
	s.notifications = snap.notifications
}

func cloneOrder(order domain.Order) domain.Order {
	clone := order
	if order.Items != nil {
		clone.Items = make([]domain.OrderItem, len(order.Items))
		copy(clone.Items, order.Items)
	}
	if order.PaidAt != nil {
		paidAt := *order.PaidAt
		clone.PaidAt = &paidAt
	}
	return clone
}

// WithinTx выполняет fn как одну all-or-nothing транзакцию.
func (s *Store) WithinTx(fn func(tx domain.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.takeSnapshot()
	if err := fn(&txView{store: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// Idempotency возвращает репозиторий idempotency-ключей; он намеренно живёт
// вне транзакционной границы WithinTx.
func (s *Store) Idempotency() domain.IdempotencyRepository {
	return s.idempotency
}

// Customers возвращает автономный (самоблокирующийся) репозиторий клиентов.
func (s *Store) Customers() domain.CustomerRepository {
	return &customerRepository{store: s, locking: true}
}

// Products возвращает автономный репозиторий товаров.
func (s *Store) Products() domain.ProductRepository {
	return &productRepository{store: s, locking: true}
}

// Orders возвращает автономный репозиторий заказов.
func (s *Store) Orders() domain.OrderRepository {
	return &orderRepository{store: s, locking: true}
}

// Refunds возвращает автономный репозиторий возвратов.
func (s *Store) Refunds() domain.RefundRepository {
	return &refundRepository{store: s, locking: true}
}

// Notifications возвращает автономный репозиторий уведомлений.
func (s *Store) Notifications() domain.NotificationRepository {
	return &notificationRepository{store: s, locking: true}
}

// txView отдаёт репозитории без собственных блокировок: мьютекс уже удерживается WithinTx.
type txView struct {
	store *Store
}

func (t *txView) Customers() domain.CustomerRepository {
	return &customerRepository{store: t.store}
}

func (t *txView) Products() domain.ProductRepository {
	return &productRepository{store: t.store}
}

func (t *txView) Orders() domain.OrderRepository {
	return &orderRepository{store: t.store}
}

func (t *txView) Refunds() domain.RefundRepository {
	return &refundRepository{store: t.store}
}

func (t *txView) Notifications() domain.NotificationRepository {
	return &notificationRepository{store: t.store}
}

var _ domain.Store = (*Store)(nil)
var _ domain.Tx = (*txView)(nil)
