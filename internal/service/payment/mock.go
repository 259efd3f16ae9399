package payment

import (
	"time"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
)

// MockGateway — конфигурируемая заглушка PaymentGateway для тестов.
type MockGateway struct {
	ChargeResult domain.PaymentResult
	ChargeErr    error
	RefundResult domain.RefundResult
	RefundErr    error

	ChargeCalls int
	RefundCalls int
}

// NewMockGateway возвращает mock с успешным сценарием по умолчанию.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		ChargeResult: domain.PaymentResult{
			TransactionID: "TXN-TEST00000001",
			Method:        defaultMethod,
			ProcessedAt:   time.Now().UTC(),
		},
		RefundResult: domain.RefundResult{
			TransactionID: "REF-TXN-TEST0001",
			Gateway:       defaultGateway,
		},
	}
}

// Charge возвращает заранее настроенный результат и считает вызовы.
func (m *MockGateway) Charge(order domain.Order) (domain.PaymentResult, error) {
	m.ChargeCalls++
	return m.ChargeResult, m.ChargeErr
}

// Refund возвращает настроенный результат и считает вызовы.
func (m *MockGateway) Refund(refund domain.Refund) (domain.RefundResult, error) {
	m.RefundCalls++
	return m.RefundResult, m.RefundErr
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
