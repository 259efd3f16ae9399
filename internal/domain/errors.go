package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствующего email клиента.
	ErrCustomerEmailRequired = errors.New("customer email is required")
	// Ошибка отсутствующего имени клиента.
	ErrCustomerNameRequired = errors.New("customer name is required")
	// Ошибка отсутствия хотя бы одного товара в payload/заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("total_minor must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия total позиции её qty * unit price.
	ErrItemTotalMismatch = errors.New("item total does not match qty * unit price")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order total does not match items sum")
	// Ошибка отсутствующего номера заказа.
	ErrOrderNumberRequired = errors.New("order_number is required")
	// Ошибка отсутствующего идентификатора заказа.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка отсутствующего номера возврата.
	ErrRefundNumberRequired = errors.New("refund_number is required")

	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrCustomerNotFound возвращается, если клиент не найден.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrProductNotFound возвращается, если товар не найден по SKU/ID.
	ErrProductNotFound = errors.New("product not found")
	// ErrRefundNotFound возвращается, если возврат не найден.
	ErrRefundNotFound = errors.New("refund not found")
	// ErrNotificationNotFound возвращается, если запись уведомления не найдена.
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrVersionConflict = errors.New("version conflict")
	// ErrAlreadyExists возвращается при нарушении уникальности на создании.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrInsufficientStock — нехватка остатка при резервировании.
	// Постоянная ошибка для данной попытки: заказ откатывается целиком,
	// автоматический retry не выполняется.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrRefundNotEligible — заказ не в статусе, допускающем возврат.
	ErrRefundNotEligible = errors.New("order is not eligible for refund")
	// ErrRefundAmountInvalid — сумма возврата вне диапазона (0, original].
	ErrRefundAmountInvalid = errors.New("refund amount is invalid")
	// ErrRefundTypeInvalid — неизвестный тип возврата.
	ErrRefundTypeInvalid = errors.New("refund type must be full or partial")
	// ErrRefundExceedsOriginal — сумма completed-возвратов превысила бы original.
	ErrRefundExceedsOriginal = errors.New("cumulative refunds would exceed original amount")
	// ErrRefundAlreadyCompleted — возврат уже проведён; повторный вызов — no-op.
	ErrRefundAlreadyCompleted = errors.New("refund already completed")

	// ErrGatewayDeclined — шлюз отклонил операцию; для возвратов это transient
	// ошибка, retry выполняет очередь.
	ErrGatewayDeclined = errors.New("payment gateway declined")

	// ErrIdempotencyKeyRequired — пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — пустой request hash.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyNotFound — запись по ключу не найдена.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	// ErrIdempotencyKeyAlreadyExists — запись по ключу уже есть.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — тот же ключ, но другой payload.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different payload")
	// ErrOrderInFlight — заказ с этим ключом ещё обрабатывается параллельной доставкой.
	ErrOrderInFlight = errors.New("order with this idempotency key is in flight")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsPermanent классифицирует ошибку как постоянную: retry бесполезен,
// терминальный статус уже записан (или записывается вызывающим кодом).
// Всё остальное считается transient/инфраструктурным и отдаётся политике
// повторов очереди.
func IsPermanent(err error) bool {
	switch {
	case errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrRefundNotEligible),
		errors.Is(err, ErrRefundAmountInvalid),
		errors.Is(err, ErrRefundTypeInvalid),
		errors.Is(err, ErrRefundExceedsOriginal),
		errors.Is(err, ErrIdempotencyHashMismatch),
		errors.Is(err, ErrCustomerEmailRequired),
		errors.Is(err, ErrCustomerNameRequired),
		errors.Is(err, ErrItemsRequired),
		errors.Is(err, ErrItemQtyInvalid):
		return true
	default:
		return false
	}
}
