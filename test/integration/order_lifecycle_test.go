package integration

import (
	"context"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
	"github.com/vladislavdragonenkov/shopq/internal/service/kpi"
	"github.com/vladislavdragonenkov/shopq/internal/service/notify"
	"github.com/vladislavdragonenkov/shopq/internal/service/orders"
	"github.com/vladislavdragonenkov/shopq/internal/service/payment"
	"github.com/vladislavdragonenkov/shopq/internal/service/refunds"
	"github.com/vladislavdragonenkov/shopq/internal/storage/memory"
)

// OrderLifecycleTestSuite тестирует полный жизненный цикл заказа и возврата
// на in-memory хранилищах: payload → оплата → метрики → возврат → компенсации.
type OrderLifecycleTestSuite struct {
	suite.Suite

	store   *memory.Store
	ledger  *memory.MetricsLedger
	gateway *payment.MockGateway

	orders  *orders.Processor
	refunds *refunds.Processor
	kpi     *kpi.Generator
	notify  *notify.Worker
}

func (suite *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	suite.store = memory.NewStore()
	suite.ledger = memory.NewMetricsLedger()
	suite.gateway = payment.NewMockGateway()

	suite.kpi = kpi.NewGenerator(suite.store.Orders(), suite.store.Customers(), suite.ledger, logger)
	suite.orders = orders.NewProcessor(suite.store, suite.gateway, nil, suite.ledger, orders.WithLogger(logger))
	suite.refunds = refunds.NewProcessor(suite.store, suite.gateway, nil, suite.ledger,
		refunds.WithLeaderboard(suite.kpi),
		refunds.WithLogger(logger),
	)
	suite.notify = notify.NewWorker(suite.store.Notifications(), suite.store.Orders(), notify.WithLogger(logger))

	require.NoError(suite.T(), suite.store.Products().Create(domain.Product{
		ID: "prod-laptop", SKU: "laptop-pro", Name: "Laptop Pro", PriceMinor: 199900, StockQuantity: 5,
	}))
	require.NoError(suite.T(), suite.store.Products().Create(domain.Product{
		ID: "prod-mouse", SKU: "mouse-wireless", Name: "Wireless Mouse", PriceMinor: 4999, StockQuantity: 20,
	}))
}

func (suite *OrderLifecycleTestSuite) payload(key string) domain.OrderPayload {
	return domain.OrderPayload{
		IdempotencyKey: key,
		CustomerEmail:  "customer@example.com",
		CustomerName:   "Integration Customer",
		Products: []domain.PayloadItem{
			{SKU: "laptop-pro", Quantity: 1},
			{SKU: "mouse-wireless", Quantity: 2},
		},
	}
}

func (suite *OrderLifecycleTestSuite) TestSuccessfulOrderLifecycle() {
	// 1. Обрабатываем заказ
	order, err := suite.orders.Process(suite.payload("lifecycle-1"))
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.OrderStatusPaid, order.Status)
	require.Equal(suite.T(), int64(209898), order.TotalMinor) // $1999 + 2*$49.99
	require.Equal(suite.T(), 1, suite.gateway.ChargeCalls)

	// 2. Склад зарезервирован за заказом
	laptop, err := suite.store.Products().Get("prod-laptop")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(1), laptop.ReservedQuantity)

	// 3. Метрики выручки инкрементированы
	snap, err := suite.ledger.Snapshot(domain.ScopeOverall)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int64(209898), snap.RevenueMinor)
	require.Equal(suite.T(), int64(1), snap.OrderCount)

	// 4. Агрегаты клиента пересчитаны
	customer, err := suite.store.Customers().Get(order.CustomerID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int64(209898), customer.TotalSpentMinor)
	require.Equal(suite.T(), int32(1), customer.TotalOrders)

	// 5. Уведомления доставляются воркером
	suite.notify.ProcessOnce(context.Background())
	notifications, err := suite.store.Notifications().ListByOrder(order.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), notifications, 2)
	for _, n := range notifications {
		require.Equal(suite.T(), domain.NotificationStatusSent, n.Status)
		require.NotEmpty(suite.T(), n.Message)
	}
}

func (suite *OrderLifecycleTestSuite) TestDuplicateDeliveryIsIdempotent() {
	payload := suite.payload("lifecycle-dup")

	first, err := suite.orders.Process(payload)
	require.NoError(suite.T(), err)

	second, err := suite.orders.Process(payload)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), first.ID, second.ID)
	require.Equal(suite.T(), 1, suite.gateway.ChargeCalls)

	// Повторная доставка не задваивает выручку.
	snap, err := suite.ledger.Snapshot(domain.ScopeOverall)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int64(1), snap.OrderCount)
}

func (suite *OrderLifecycleTestSuite) TestDeclinedPaymentLifecycle() {
	suite.gateway.ChargeErr = domain.ErrGatewayDeclined

	order, err := suite.orders.Process(suite.payload("lifecycle-declined"))
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.OrderStatusCancelled, order.Status)
	require.Equal(suite.T(), domain.PaymentStateFailed, order.PaymentStatus)

	// Резерв снят, выручка не тронута.
	laptop, err := suite.store.Products().Get("prod-laptop")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(0), laptop.ReservedQuantity)

	snap, err := suite.ledger.Snapshot(domain.ScopeOverall)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int64(0), snap.RevenueMinor)

	// Отменённый заказ остаётся в истории.
	stored, err := suite.store.Orders().Get(order.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.OrderStatusCancelled, stored.Status)
}

func (suite *OrderLifecycleTestSuite) TestFullRefundLifecycle() {
	order, err := suite.orders.Process(suite.payload("lifecycle-refund"))
	require.NoError(suite.T(), err)

	refund, err := suite.refunds.Create(order.ID, 0, domain.RefundTypeFull, "customer request")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), order.TotalMinor, refund.AmountMinor)

	completed, err := suite.refunds.Process(refund.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.RefundStatusCompleted, completed.Status)
	require.Equal(suite.T(), 1, suite.gateway.RefundCalls)

	// Заказ отменён, склад восстановлен, выручка декрементирована.
	updated, err := suite.store.Orders().Get(order.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.OrderStatusCancelled, updated.Status)
	require.Equal(suite.T(), domain.PaymentStateRefunded, updated.PaymentStatus)

	laptop, err := suite.store.Products().Get("prod-laptop")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(0), laptop.ReservedQuantity)

	snap, err := suite.ledger.Snapshot(domain.ScopeOverall)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int64(0), snap.RevenueMinor)

	// Leaderboard пересчитан после возврата: клиент обнулён.
	entries, err := suite.ledger.Leaderboard(10)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), entries, 1)
	require.Equal(suite.T(), int64(0), entries[0].TotalSpentMinor)

	// Повторная доставка job возврата — no-op.
	again, err := suite.refunds.Process(refund.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.RefundStatusCompleted, again.Status)
	require.Equal(suite.T(), 1, suite.gateway.RefundCalls)
}

func (suite *OrderLifecycleTestSuite) TestPartialRefundLifecycle() {
	order, err := suite.orders.Process(suite.payload("lifecycle-partial"))
	require.NoError(suite.T(), err)

	refund, err := suite.refunds.Create(order.ID, 4999, domain.RefundTypePartial, "mouse returned")
	require.NoError(suite.T(), err)

	_, err = suite.refunds.Process(refund.ID)
	require.NoError(suite.T(), err)

	// Частичный возврат оставляет заказ активным.
	updated, err := suite.store.Orders().Get(order.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.OrderStatusPaid, updated.Status)
	require.Equal(suite.T(), domain.PaymentStatePartiallyRefunded, updated.PaymentStatus)

	snap, err := suite.ledger.Snapshot(domain.ScopeOverall)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), order.TotalMinor-4999, snap.RevenueMinor)

	// Сумма возвратов не может превысить сумму заказа.
	over, err := suite.refunds.Create(order.ID, order.TotalMinor, domain.RefundTypePartial, "")
	require.NoError(suite.T(), err)
	_, err = suite.refunds.Process(over.ID)
	require.ErrorIs(suite.T(), err, domain.ErrRefundExceedsOriginal)
}

func (suite *OrderLifecycleTestSuite) TestBatchRecomputeMatchesIncrementalCounters() {
	order, err := suite.orders.Process(suite.payload("lifecycle-kpi"))
	require.NoError(suite.T(), err)

	// Batch-пересчёт перезаписывает инкрементальные счётчики теми же числами.
	require.NoError(suite.T(), suite.kpi.GenerateDaily(time.Now().UTC()))

	snap, err := suite.ledger.Snapshot(domain.DailyScope(time.Now().UTC()))
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), order.TotalMinor, snap.RevenueMinor)
	require.Equal(suite.T(), int64(1), snap.OrderCount)
}

func TestOrderLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
