package payment

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
)

func TestGateway_ChargeAlwaysApproves(t *testing.T) {
	gateway := NewGateway(
		WithChargeSuccessRate(1.0),
		WithLogger(log.New().WithField("test", "gateway")),
	)

	result, err := gateway.Charge(domain.Order{ID: "order-1", TotalMinor: 1000})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}

	if !strings.HasPrefix(result.TransactionID, "TXN-") {
		t.Fatalf("unexpected transaction id %q", result.TransactionID)
	}
	if len(result.TransactionID) != len("TXN-")+tokenLength {
		t.Fatalf("unexpected transaction id length: %q", result.TransactionID)
	}
	if result.Method != defaultMethod {
		t.Fatalf("unexpected method %q", result.Method)
	}
	if result.ProcessedAt.IsZero() {
		t.Fatal("expected processed_at to be set")
	}
}

func TestGateway_ChargeAlwaysDeclines(t *testing.T) {
	gateway := NewGateway(
		WithChargeSuccessRate(0),
		WithLogger(log.New().WithField("test", "gateway")),
	)

	_, err := gateway.Charge(domain.Order{ID: "order-1"})
	if !errors.Is(err, domain.ErrGatewayDeclined) {
		t.Fatalf("expected ErrGatewayDeclined, got %v", err)
	}
}

func TestGateway_RefundAlwaysApproves(t *testing.T) {
	gateway := NewGateway(
		WithRefundSuccessRate(1.0),
		WithLogger(log.New().WithField("test", "gateway")),
	)

	result, err := gateway.Refund(domain.Refund{ID: "refund-1", AmountMinor: 500})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if !strings.HasPrefix(result.TransactionID, "REF-TXN-") {
		t.Fatalf("unexpected transaction id %q", result.TransactionID)
	}
	if result.Gateway != defaultGateway {
		t.Fatalf("unexpected gateway %q", result.Gateway)
	}
}

func TestGateway_RefundAlwaysDeclines(t *testing.T) {
	gateway := NewGateway(
		WithRefundSuccessRate(0),
		WithLogger(log.New().WithField("test", "gateway")),
	)

	_, err := gateway.Refund(domain.Refund{ID: "refund-1"})
	if !errors.Is(err, domain.ErrGatewayDeclined) {
		t.Fatalf("expected ErrGatewayDeclined, got %v", err)
	}
}

func TestGateway_SeededRandIsDeterministic(t *testing.T) {
	run := func() []bool {
		gateway := NewGateway(
			WithChargeSuccessRate(0.5),
			WithRand(rand.New(rand.NewSource(42))),
			WithLogger(log.New().WithField("test", "gateway")),
		)

		outcomes := make([]bool, 0, 10)
		for i := 0; i < 10; i++ {
			_, err := gateway.Charge(domain.Order{ID: "order-1"})
			outcomes = append(outcomes, err == nil)
		}
		return outcomes
	}

	first := run()
	second := run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("expected deterministic outcomes with a seeded rand, diverged at %d", i)
		}
	}
}

func TestMockGateway_CountsCalls(t *testing.T) {
	mock := NewMockGateway()

	if _, err := mock.Charge(domain.Order{}); err != nil {
		t.Fatalf("charge: %v", err)
	}
	if _, err := mock.Refund(domain.Refund{}); err != nil {
		t.Fatalf("refund: %v", err)
	}

	if mock.ChargeCalls != 1 || mock.RefundCalls != 1 {
		t.Fatalf("unexpected call counters: charge=%d refund=%d", mock.ChargeCalls, mock.RefundCalls)
	}

	mock.ChargeErr = domain.ErrGatewayDeclined
	if _, err := mock.Charge(domain.Order{}); !errors.Is(err, domain.ErrGatewayDeclined) {
		t.Fatalf("expected configured error, got %v", err)
	}
}
