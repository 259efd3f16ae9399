package domain

import "time"

// PaymentResult — типизированный ответ шлюза на списание.
// Вместо открытого payment_data blob храним узкую схему (см. DESIGN.md).
type PaymentResult struct {
	TransactionID string    `json:"transaction_id"`
	Method        string    `json:"payment_method"`
	ProcessedAt   time.Time `json:"processed_at"`
}

// RefundGatewayData — типизированный ответ шлюза на возврат.
type RefundGatewayData struct {
	Gateway         string    `json:"gateway"`
	GatewayRefundID string    `json:"refund_id"`
	ProcessedAt     time.Time `json:"processed_at"`
	FeeMinor        int64     `json:"fee_minor"`
}

// RefundResult агрегирует успешный ответ шлюза на возврат.
type RefundResult struct {
	TransactionID string
	Gateway       string
	FeeMinor      int64
}
