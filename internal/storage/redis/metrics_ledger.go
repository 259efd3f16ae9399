package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
)

const (
	kpiKeyPrefix   = "kpis:"
	leaderboardKey = "leaderboard:top_customers"

	opTimeout = 5 * time.Second

	// TTL — страховка от вечного мусора, не механизм корректности.
	snapshotTTL = 365 * 24 * time.Hour
)

// Декремент с прижатием к нулю должен быть атомарным на стороне Redis,
// иначе конкурентные воркеры теряют обновления между get и put.
const decrementScript = `
local cur = tonumber(redis.call("HGET", KEYS[1], "revenue") or "0")
local dec = tonumber(ARGV[1])
if dec > cur then
  dec = cur
end
if dec > 0 then
  redis.call("HINCRBY", KEYS[1], "revenue", -dec)
end
redis.call("EXPIRE", KEYS[1], ARGV[2])
return cur - dec
`

// MetricsLedger — реализация domain.MetricsLedger поверх Redis.
// Счётчики живут в hash по ключу kpis:<scope>; обновления — HINCRBY и
// Lua-скрипт, без read-then-write на стороне приложения.
type MetricsLedger struct {
	client    *redis.Client
	decrement *redis.Script
}

// NewMetricsLedger создаёт ledger поверх существующего клиента.
func NewMetricsLedger(client *redis.Client) *MetricsLedger {
	return &MetricsLedger{
		client:    client,
		decrement: redis.NewScript(decrementScript),
	}
}

// Open подключается к Redis и проверяет доступность.
func Open(ctx context.Context, addr string) (*MetricsLedger, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewMetricsLedger(client), nil
}

// Close закрывает подключение к Redis.
func (l *MetricsLedger) Close() error {
	return l.client.Close()
}

func scopeKey(scope domain.ScopeKey) string {
	return kpiKeyPrefix + string(scope)
}

// IncrementRevenue атомарно добавляет amount и orderDelta ко всем scope.
func (l *MetricsLedger) IncrementRevenue(scopes []domain.ScopeKey, amountMinor int64, orderDelta int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	pipe := l.client.TxPipeline()
	for _, scope := range scopes {
		key := scopeKey(scope)
		pipe.HIncrBy(ctx, key, "revenue", amountMinor)
		if orderDelta != 0 {
			pipe.HIncrBy(ctx, key, "order_count", orderDelta)
		}
		pipe.Expire(ctx, key, snapshotTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("increment revenue: %w", err)
	}
	return nil
}

// DecrementRevenue атомарно вычитает amount по каждому scope, прижимая к нулю.
func (l *MetricsLedger) DecrementRevenue(scopes []domain.ScopeKey, amountMinor int64) error {
	if amountMinor <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	ttlSeconds := int64(snapshotTTL / time.Second)
	for _, scope := range scopes {
		if err := l.decrement.Run(ctx, l.client, []string{scopeKey(scope)}, amountMinor, ttlSeconds).Err(); err != nil {
			return fmt.Errorf("decrement revenue for %s: %w", scope, err)
		}
	}
	return nil
}

// PutSnapshot перезаписывает счётчики scope целиком (batch-пересчёт KPI).
func (l *MetricsLedger) PutSnapshot(scope domain.ScopeKey, snap domain.MetricsSnapshot) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	key := scopeKey(scope)
	fields := map[string]interface{}{
		"revenue":     snap.RevenueMinor,
		"order_count": snap.OrderCount,
	}
	if snap.AvgOrderMinor > 0 {
		fields["average_order_value"] = snap.AvgOrderMinor
	}
	if !snap.GeneratedAt.IsZero() {
		fields["generated_at"] = snap.GeneratedAt.UTC().Format(time.RFC3339)
	}

	pipe := l.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, snapshotTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put snapshot %s: %w", scope, err)
	}
	return nil
}

// Snapshot возвращает текущее значение счётчиков scope; нулевой снапшот, если ключа нет.
func (l *MetricsLedger) Snapshot(scope domain.ScopeKey) (domain.MetricsSnapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	values, err := l.client.HGetAll(ctx, scopeKey(scope)).Result()
	if err != nil {
		return domain.MetricsSnapshot{}, fmt.Errorf("read snapshot %s: %w", scope, err)
	}

	var snap domain.MetricsSnapshot
	snap.RevenueMinor = parseInt(values["revenue"])
	snap.OrderCount = parseInt(values["order_count"])
	snap.AvgOrderMinor = parseInt(values["average_order_value"])
	if raw, ok := values["generated_at"]; ok {
		if ts, parseErr := time.Parse(time.RFC3339, raw); parseErr == nil {
			snap.GeneratedAt = ts
		}
	}
	return snap, nil
}

// PutLeaderboard перезаписывает JSON-снапшот leaderboard.
func (l *MetricsLedger) PutLeaderboard(entries []domain.LeaderboardEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal leaderboard: %w", err)
	}
	if err := l.client.Set(ctx, leaderboardKey, data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("store leaderboard: %w", err)
	}
	return nil
}

// Leaderboard возвращает до limit строк снапшота.
func (l *MetricsLedger) Leaderboard(limit int) ([]domain.LeaderboardEntry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	data, err := l.client.Get(ctx, leaderboardKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []domain.LeaderboardEntry{}, nil
		}
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}

	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal leaderboard: %w", err)
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func parseInt(raw string) int64 {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

var _ domain.MetricsLedger = (*MetricsLedger)(nil)
