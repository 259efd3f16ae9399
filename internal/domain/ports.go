package domain

import "time"

// CustomerRepository описывает требования к хранилищу клиентов.
type CustomerRepository interface {
	// FindOrCreate возвращает клиента по email, создавая его при отсутствии.
	// Идемпотентен за счёт уникальности email.
	FindOrCreate(c Customer) (Customer, error)
	// Get возвращает клиента по идентификатору или ErrCustomerNotFound.
	Get(id string) (Customer, error)
	// Save перезаписывает производные агрегаты клиента.
	Save(c Customer) error
	// TopBySpent возвращает топ-N клиентов по total_spent для пересчёта leaderboard.
	TopBySpent(limit int) ([]Customer, error)
}

// ProductRepository описывает требования к складскому реестру.
type ProductRepository interface {
	// FindBySKU возвращает товар по SKU или ErrProductNotFound.
	FindBySKU(sku string) (Product, error)
	// Get возвращает товар по идентификатору или ErrProductNotFound.
	Get(id string) (Product, error)
	// Create сохраняет новый товар (seed/импорт).
	Create(p Product) error
	// Reserve атомарно резервирует qty, если available >= qty.
	// Возвращает false без мутации при нехватке остатка.
	Reserve(productID string, qty int32) (bool, error)
	// Release атомарно снимает резерв; терпим к release без парного reserve
	// (компенсации на rollback-путях), но не уводит reserved ниже нуля.
	Release(productID string, qty int32) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет заказ вместе с позициями. Возвращает ErrAlreadyExists
	// при занятом ID или order_number.
	Create(order Order) error
	// Get возвращает заказ с позициями или ErrOrderNotFound.
	Get(id string) (Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking;
	// позиции неизменяемы и не перезаписываются.
	Save(order Order) error
	// AggregateByCustomer возвращает сумму и количество не-отменённых заказов клиента.
	AggregateByCustomer(customerID string) (totalMinor int64, count int64, err error)
	// PaidTotalsBetween возвращает выручку и число оплаченных заказов,
	// созданных в интервале [from, to).
	PaidTotalsBetween(from, to time.Time) (revenueMinor int64, count int64, err error)
}

// RefundRepository описывает требования к хранилищу возвратов.
type RefundRepository interface {
	Create(r Refund) error
	// Get возвращает возврат или ErrRefundNotFound.
	Get(id string) (Refund, error)
	// Save применяет обновления с учётом optimistic locking.
	Save(r Refund) error
	// SumCompletedByOrder возвращает сумму completed-возвратов по заказу.
	SumCompletedByOrder(orderID string) (int64, error)
}

// NotificationRepository хранит записи fire-and-forget уведомлений.
type NotificationRepository interface {
	Enqueue(n Notification) (Notification, error)
	PullPending(limit int) ([]Notification, error)
	MarkSent(id, message string) error
	MarkFailed(id, reason string) error
	ListByOrder(orderID string) ([]Notification, error)
}

// IdempotencyRepository хранит состояние обработки payload по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key, orderID string) error
	MarkFailed(key string) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// Tx — набор репозиториев, привязанных к одной транзакции.
type Tx interface {
	Customers() CustomerRepository
	Products() ProductRepository
	Orders() OrderRepository
	Refunds() RefundRepository
	Notifications() NotificationRepository
}

// Store — корневой доступ к реляционному хранилищу.
// WithinTx выполняет fn в одной all-or-nothing транзакции: резервирование
// склада и финализация/откат заказа не могут разъехаться при падении между
// шагами. Idempotency-записи живут вне этой границы: отметка done ставится
// только после коммита.
type Store interface {
	Tx
	Idempotency() IdempotencyRepository
	WithinTx(fn func(tx Tx) error) error
}

// PaymentGateway — подключаемый платёжный шлюз.
type PaymentGateway interface {
	// Charge списывает сумму заказа. Отказ шлюза возвращается как
	// ErrGatewayDeclined и для заказа означает окончательный rollback.
	Charge(order Order) (PaymentResult, error)
	// Refund проводит возврат. Отказ шлюза — transient: job может повторить.
	Refund(refund Refund) (RefundResult, error)
}

// MetricsLedger — счётчики выручки/заказов по scope key в отдельном быстром
// KV-хранилище. Обновления атомарны на уровне store (инкремент/декремент,
// не get-then-put); декремент прижимается к нулю.
type MetricsLedger interface {
	IncrementRevenue(scopes []ScopeKey, amountMinor int64, orderDelta int64) error
	DecrementRevenue(scopes []ScopeKey, amountMinor int64) error
	// PutSnapshot перезаписывает счётчики scope целиком (batch-пересчёт KPI).
	PutSnapshot(scope ScopeKey, snap MetricsSnapshot) error
	// Snapshot возвращает текущее значение счётчиков scope (нулевой снапшот,
	// если записи нет).
	Snapshot(scope ScopeKey) (MetricsSnapshot, error)
	PutLeaderboard(entries []LeaderboardEntry) error
	Leaderboard(limit int) ([]LeaderboardEntry, error)
}
