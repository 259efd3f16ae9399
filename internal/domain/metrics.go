package domain

import (
	"fmt"
	"time"
)

// ScopeKey — гранулярность агрегации метрик: день, месяц, год или overall.
type ScopeKey string

// ScopeOverall — единственный глобальный scope.
const ScopeOverall ScopeKey = "overall"

// DailyScope возвращает дневной scope key вида daily:YYYY-MM-DD.
func DailyScope(t time.Time) ScopeKey {
	return ScopeKey("daily:" + t.UTC().Format("2006-01-02"))
}

// MonthlyScope возвращает месячный scope key вида monthly:YYYY-MM.
func MonthlyScope(t time.Time) ScopeKey {
	return ScopeKey("monthly:" + t.UTC().Format("2006-01"))
}

// YearlyScope возвращает годовой scope key вида yearly:YYYY.
func YearlyScope(t time.Time) ScopeKey {
	return ScopeKey("yearly:" + t.UTC().Format("2006"))
}

// ScopesAt возвращает все четыре scope key для момента времени.
// Возвраты декрементируют метрики по времени создания возврата, не проведения.
func ScopesAt(t time.Time) []ScopeKey {
	return []ScopeKey{DailyScope(t), MonthlyScope(t), YearlyScope(t), ScopeOverall}
}

// MetricsSnapshot — текущее значение счётчиков одного scope.
// Read-modify-write семантика; Revenue не бывает отрицательным:
// декремент прижимается к нулю на уровне хранилища.
type MetricsSnapshot struct {
	RevenueMinor  int64     `json:"revenue_minor"`
	OrderCount    int64     `json:"order_count"`
	AvgOrderMinor int64     `json:"average_order_value_minor,omitempty"`
	GeneratedAt   time.Time `json:"generated_at,omitempty"`
}

// LeaderboardEntry — строка снапшота топ-N клиентов по total_spent.
// Кэшированная проекция: может отставать от живых данных до следующего пересчёта.
type LeaderboardEntry struct {
	CustomerID      string `json:"customer_id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	TotalSpentMinor int64  `json:"total_spent_minor"`
	TotalOrders     int32  `json:"total_orders"`
}

// String упрощает логирование scope key.
func (k ScopeKey) String() string {
	return string(k)
}

// ParseDailyScope разбирает дату из дневного scope key.
func ParseDailyScope(k ScopeKey) (time.Time, error) {
	var y, m, d int
	if _, err := fmt.Sscanf(string(k), "daily:%04d-%02d-%02d", &y, &m, &d); err != nil {
		return time.Time{}, fmt.Errorf("parse daily scope %q: %w", k, err)
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC), nil
}
