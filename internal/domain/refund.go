package domain

import "time"

// RefundType различает полный и частичный возврат.
type RefundType string

const (
	// RefundTypeFull — полный возврат: заказ отменяется, склад восстанавливается.
	RefundTypeFull RefundType = "full"
	// RefundTypePartial — частичный возврат: заказ остаётся активным, склад не восстанавливается.
	RefundTypePartial RefundType = "partial"
)

// RefundStatus описывает жизненный цикл возврата.
type RefundStatus string

const (
	// RefundStatusPending — возврат создан и ждёт обработки.
	RefundStatusPending RefundStatus = "pending"
	// RefundStatusProcessing — возврат взят в работу.
	RefundStatusProcessing RefundStatus = "processing"
	// RefundStatusCompleted — возврат проведён; терминальный и поглощающий статус.
	RefundStatusCompleted RefundStatus = "completed"
	// RefundStatusFailed — возврат отклонён валидацией или шлюзом.
	RefundStatusFailed RefundStatus = "failed"
	// RefundStatusCancelled — возврат отменён оператором до обработки.
	RefundStatusCancelled RefundStatus = "cancelled"
)

// Refund описывает возврат средств по заказу.
// Инвариант: сумма completed-возвратов по заказу не превышает OriginalMinor;
// проверяется в транзакции проведения.
type Refund struct {
	ID            string
	OrderID       string
	CustomerID    string
	RefundNumber  string
	AmountMinor   int64
	OriginalMinor int64
	Type          RefundType
	Status        RefundStatus
	Reason        string
	Notes         string
	TransactionID string
	Gateway       RefundGatewayData
	ProcessedAt   *time.Time
	CompletedAt   *time.Time
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FullRefund сообщает, является ли возврат полным.
func (r *Refund) FullRefund() bool {
	return r.Type == RefundTypeFull
}

// Completed сообщает, находится ли возврат в терминальном успешном статусе.
func (r *Refund) Completed() bool {
	return r.Status == RefundStatusCompleted
}

// Validate проверяет корректность полей возврата.
func (r *Refund) Validate() []error {
	var errs []error

	if r.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if r.RefundNumber == "" {
		errs = append(errs, ErrRefundNumberRequired)
	}
	if r.AmountMinor <= 0 || r.AmountMinor > r.OriginalMinor {
		errs = append(errs, ErrRefundAmountInvalid)
	}
	if r.Type != RefundTypeFull && r.Type != RefundTypePartial {
		errs = append(errs, ErrRefundTypeInvalid)
	}

	return errs
}
