package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
)

// MetricsLedger — in-memory реализация domain.MetricsLedger.
// Обновления сериализуются per-store мьютексом, что сохраняет инвариант
// "сумма всех применённых дельт" при конкурентных воркерах.
type MetricsLedger struct {
	mu          sync.Mutex
	snapshots   map[domain.ScopeKey]domain.MetricsSnapshot
	leaderboard []domain.LeaderboardEntry
}

// NewMetricsLedger возвращает пустой in-memory ledger.
func NewMetricsLedger() *MetricsLedger {
	return &MetricsLedger{
		snapshots: make(map[domain.ScopeKey]domain.MetricsSnapshot),
	}
}

// IncrementRevenue атомарно добавляет amount и orderDelta ко всем scope.
func (l *MetricsLedger) IncrementRevenue(scopes []domain.ScopeKey, amountMinor int64, orderDelta int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, scope := range scopes {
		snap := l.snapshots[scope]
		snap.RevenueMinor += amountMinor
		snap.OrderCount += orderDelta
		l.snapshots[scope] = snap
	}
	return nil
}

// DecrementRevenue атомарно вычитает amount, прижимая результат к нулю.
func (l *MetricsLedger) DecrementRevenue(scopes []domain.ScopeKey, amountMinor int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, scope := range scopes {
		snap := l.snapshots[scope]
		snap.RevenueMinor -= amountMinor
		if snap.RevenueMinor < 0 {
			snap.RevenueMinor = 0
		}
		l.snapshots[scope] = snap
	}
	return nil
}

// PutSnapshot перезаписывает счётчики scope целиком.
func (l *MetricsLedger) PutSnapshot(scope domain.ScopeKey, snap domain.MetricsSnapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.snapshots[scope] = snap
	return nil
}

// Snapshot возвращает текущее значение счётчиков scope.
func (l *MetricsLedger) Snapshot(scope domain.ScopeKey) (domain.MetricsSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.snapshots[scope], nil
}

// PutLeaderboard перезаписывает снапшот leaderboard.
func (l *MetricsLedger) PutLeaderboard(entries []domain.LeaderboardEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.leaderboard = make([]domain.LeaderboardEntry, len(entries))
	copy(l.leaderboard, entries)
	return nil
}

// Leaderboard возвращает до limit строк снапшота.
func (l *MetricsLedger) Leaderboard(limit int) ([]domain.LeaderboardEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]domain.LeaderboardEntry, len(l.leaderboard))
	copy(result, l.leaderboard)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ domain.MetricsLedger = (*MetricsLedger)(nil)
