package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, резервирование и оплата ещё не выполнены.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing — заказ в обработке (зарезервирован, ждём оплату).
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusPaid — оплата подтверждена платёжным шлюзом.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ доставлен клиенту.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён; отмена — это статус, записи не удаляются.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentState описывает состояние оплаты заказа.
type PaymentState string

const (
	// PaymentStatePending — оплата ещё не инициирована.
	PaymentStatePending PaymentState = "pending"
	// PaymentStateProcessing — оплата в обработке у шлюза.
	PaymentStateProcessing PaymentState = "processing"
	// PaymentStatePaid — деньги списаны.
	PaymentStatePaid PaymentState = "paid"
	// PaymentStateFailed — шлюз отклонил платёж.
	PaymentStateFailed PaymentState = "failed"
	// PaymentStateRefunded — полный возврат средств.
	PaymentStateRefunded PaymentState = "refunded"
	// PaymentStatePartiallyRefunded — частичный возврат, заказ остаётся активным.
	PaymentStatePartiallyRefunded PaymentState = "partially_refunded"
)

// Refundable сообщает, допускает ли статус заказа возврат средств.
func (s OrderStatus) Refundable() bool {
	switch s {
	case OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered:
		return true
	default:
		return false
	}
}

// OrderItem представляет одну позицию заказа. Позиции неизменяемы после создания:
// возвраты не переписывают историю.
type OrderItem struct {
	ID             string
	OrderID        string
	ProductID      string
	SKU            string
	Quantity       int32
	UnitPriceMinor int64
	TotalMinor     int64
	CreatedAt      time.Time
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID            string
	CustomerID    string
	OrderNumber   string
	Status        OrderStatus
	PaymentStatus PaymentState
	TotalMinor    int64
	Items         []OrderItem
	PaymentTxnID  string
	PaymentMethod string
	PaidAt        *time.Time
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Cancelled сообщает, находится ли заказ в терминальном отменённом статусе.
func (o *Order) Cancelled() bool {
	return o.Status == OrderStatusCancelled
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if o.OrderNumber == "" {
		errs = append(errs, ErrOrderNumberRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.TotalMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	// Сверяем сумму заказа с суммой позиций: qty * unit price.
	var calc int64
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		if item.TotalMinor != int64(item.Quantity)*item.UnitPriceMinor {
			errs = append(errs, ErrItemTotalMismatch)
		}
		calc += item.TotalMinor
	}
	if calc != o.TotalMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
