package payment

import (
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
)

const (
	defaultChargeSuccessRate = 0.80
	defaultRefundSuccessRate = 0.90

	defaultMethod  = "credit_card"
	defaultGateway = "mock_gateway"

	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	tokenLength   = 12
)

// Gateway — симулятор внешнего платёжного процессора. Исход операции
// разыгрывается по настроенной вероятности; генератор инжектируется,
// чтобы тесты получали детерминированные исходы.
type Gateway struct {
	chargeSuccessRate float64
	refundSuccessRate float64

	mu     sync.Mutex
	rng    *rand.Rand
	logger *log.Entry
}

// GatewayOption настраивает Gateway.
type GatewayOption func(*Gateway)

// WithChargeSuccessRate задаёт вероятность успешного списания.
func WithChargeSuccessRate(rate float64) GatewayOption {
	return func(g *Gateway) {
		g.chargeSuccessRate = rate
	}
}

// WithRefundSuccessRate задаёт вероятность успешного возврата.
func WithRefundSuccessRate(rate float64) GatewayOption {
	return func(g *Gateway) {
		g.refundSuccessRate = rate
	}
}

// WithRand задаёт источник случайности.
func WithRand(rng *rand.Rand) GatewayOption {
	return func(g *Gateway) {
		g.rng = rng
	}
}

// WithLogger задаёт logger шлюза.
func WithLogger(logger *log.Entry) GatewayOption {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// NewGateway создаёт шлюз с вероятностями по умолчанию: 80% успешных
// списаний и 90% успешных возвратов.
func NewGateway(options ...GatewayOption) *Gateway {
	g := &Gateway{
		chargeSuccessRate: defaultChargeSuccessRate,
		refundSuccessRate: defaultRefundSuccessRate,
	}
	for _, option := range options {
		option(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if g.logger == nil {
		g.logger = log.WithField("component", "payment-gateway")
	}
	return g
}

// Charge списывает сумму заказа. Отказ возвращается как ErrGatewayDeclined.
func (g *Gateway) Charge(order domain.Order) (domain.PaymentResult, error) {
	if !g.roll(g.chargeSuccessRate) {
		g.logger.WithFields(log.Fields{
			"order_id":    order.ID,
			"total_minor": order.TotalMinor,
		}).Warn("charge declined by gateway")
		return domain.PaymentResult{}, domain.ErrGatewayDeclined
	}

	result := domain.PaymentResult{
		TransactionID: "TXN-" + g.token(),
		Method:        defaultMethod,
		ProcessedAt:   time.Now().UTC(),
	}
	g.logger.WithFields(log.Fields{
		"order_id":       order.ID,
		"transaction_id": result.TransactionID,
	}).Info("charge approved")
	return result, nil
}

// Refund проводит возврат средств. Отказ возвращается как ErrGatewayDeclined.
func (g *Gateway) Refund(refund domain.Refund) (domain.RefundResult, error) {
	if !g.roll(g.refundSuccessRate) {
		g.logger.WithFields(log.Fields{
			"refund_id":    refund.ID,
			"amount_minor": refund.AmountMinor,
		}).Warn("refund declined by gateway")
		return domain.RefundResult{}, domain.ErrGatewayDeclined
	}

	result := domain.RefundResult{
		TransactionID: "REF-TXN-" + g.token(),
		Gateway:       defaultGateway,
	}
	g.logger.WithFields(log.Fields{
		"refund_id":      refund.ID,
		"transaction_id": result.TransactionID,
	}).Info("refund approved")
	return result, nil
}

func (g *Gateway) roll(rate float64) bool {
	if rate >= 1 {
		return true
	}
	if rate <= 0 {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64() < rate
}

func (g *Gateway) token() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	buf := make([]byte, tokenLength)
	for i := range buf {
		buf[i] = tokenAlphabet[g.rng.Intn(len(tokenAlphabet))]
	}
	return string(buf)
}

var _ domain.PaymentGateway = (*Gateway)(nil)
