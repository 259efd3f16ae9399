package kpi

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
)

const defaultLeaderboardSize = 10

// Generator пересчитывает агрегатные KPI из заказов и перезаписывает
// снапшоты в metrics ledger. Пересчёт идемпотентен: значения выводятся
// из заказов заново и перезаписывают scope целиком, а не добавляются
// поверх прошлого запуска.
type Generator struct {
	orders    domain.OrderRepository
	customers domain.CustomerRepository
	ledger    domain.MetricsLedger
	logger    *log.Entry
}

// NewGenerator создаёт KPI-генератор.
func NewGenerator(
	orders domain.OrderRepository,
	customers domain.CustomerRepository,
	ledger domain.MetricsLedger,
	logger *log.Entry,
) *Generator {
	if logger == nil {
		logger = log.WithField("component", "kpi-generator")
	}
	return &Generator{
		orders:    orders,
		customers: customers,
		ledger:    ledger,
		logger:    logger,
	}
}

// GenerateDaily пересчитывает дневной снапшот за date и обновляет
// связанные месячный, годовой и overall снапшоты.
func (g *Generator) GenerateDaily(date time.Time) error {
	date = date.UTC()
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
	yearStart := time.Date(date.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)

	now := time.Now().UTC()

	windows := []struct {
		scope domain.ScopeKey
		from  time.Time
		to    time.Time
	}{
		{domain.DailyScope(date), dayStart, dayStart.AddDate(0, 0, 1)},
		{domain.MonthlyScope(date), monthStart, monthStart.AddDate(0, 1, 0)},
		{domain.YearlyScope(date), yearStart, yearStart.AddDate(1, 0, 0)},
		{domain.ScopeOverall, time.Time{}, now.AddDate(0, 0, 1)},
	}

	for _, w := range windows {
		revenue, count, err := g.orders.PaidTotalsBetween(w.from, w.to)
		if err != nil {
			return fmt.Errorf("aggregate paid orders for %s: %w", w.scope, err)
		}

		snap := domain.MetricsSnapshot{
			RevenueMinor: revenue,
			OrderCount:   count,
			GeneratedAt:  now,
		}
		if count > 0 {
			snap.AvgOrderMinor = revenue / count
		}

		if err := g.ledger.PutSnapshot(w.scope, snap); err != nil {
			return fmt.Errorf("store snapshot for %s: %w", w.scope, err)
		}

		g.logger.WithFields(log.Fields{
			"scope":         w.scope.String(),
			"revenue_minor": revenue,
			"order_count":   count,
		}).Info("kpi snapshot regenerated")
	}

	return nil
}

// UpdateLeaderboard перезаписывает снапшот топ-N клиентов по total_spent.
func (g *Generator) UpdateLeaderboard(limit int) error {
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}

	customers, err := g.customers.TopBySpent(limit)
	if err != nil {
		return fmt.Errorf("load top customers: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(customers))
	for _, c := range customers {
		entries = append(entries, domain.LeaderboardEntry{
			CustomerID:      c.ID,
			Name:            c.Name,
			Email:           c.Email,
			TotalSpentMinor: c.TotalSpentMinor,
			TotalOrders:     c.TotalOrders,
		})
	}

	if err := g.ledger.PutLeaderboard(entries); err != nil {
		return fmt.Errorf("store leaderboard: %w", err)
	}

	g.logger.WithField("entries", len(entries)).Info("leaderboard snapshot updated")
	return nil
}
