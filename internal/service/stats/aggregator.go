package stats

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
)

// Aggregator пересчитывает производные агрегаты клиента из заказов.
// Пересчёт идемпотентен: повторный вызов даёт тот же результат, потому что
// значения всегда выводятся заново из не-отменённых заказов, а не
// инкрементируются поверх прошлого состояния.
type Aggregator struct {
	logger *log.Entry
}

// NewAggregator создаёт агрегатор статистики клиентов.
func NewAggregator(logger *log.Entry) *Aggregator {
	if logger == nil {
		logger = log.WithField("component", "customer-stats")
	}
	return &Aggregator{logger: logger}
}

// Recompute выводит TotalSpentMinor и TotalOrders клиента из заказов и
// сохраняет результат. Вызывается внутри транзакции пайплайна, чтобы
// агрегаты не разъезжались с заказами.
func (a *Aggregator) Recompute(tx domain.Tx, customerID string) (domain.Customer, error) {
	customer, err := tx.Customers().Get(customerID)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("load customer: %w", err)
	}

	total, count, err := tx.Orders().AggregateByCustomer(customerID)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("aggregate customer orders: %w", err)
	}

	customer.TotalSpentMinor = total
	customer.TotalOrders = int32(count)
	if err := tx.Customers().Save(customer); err != nil {
		return domain.Customer{}, fmt.Errorf("save customer stats: %w", err)
	}

	a.logger.WithFields(log.Fields{
		"customer_id":       customerID,
		"total_spent_minor": total,
		"total_orders":      count,
	}).Debug("customer stats recomputed")

	return customer, nil
}
