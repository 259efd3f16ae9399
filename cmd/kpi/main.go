package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopq/internal/service/kpi"
	"github.com/vladislavdragonenkov/shopq/internal/storage/postgres"
	"github.com/vladislavdragonenkov/shopq/internal/storage/redis"
)

const defaultTimeout = 2 * time.Minute

// kpi пересчитывает дневной/месячный/годовой/overall снапшоты KPI и
// leaderboard из заказов в PostgreSQL и перезаписывает их в Redis.
// Запускается по расписанию (cron) или вручную после инцидента: пересчёт
// идемпотентен и устраняет дрейф инкрементальных счётчиков.
func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	var (
		dateRaw         string
		dsn             string
		redisAddr       string
		leaderboardSize int
		skipLeaderboard bool
	)

	flag.StringVar(&dateRaw, "date", "", "date to recompute in YYYY-MM-DD format (default: yesterday UTC)")
	flag.StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: SHOPQ_POSTGRES_DSN)")
	flag.StringVar(&redisAddr, "redis-addr", "", "Redis address (fallback: SHOPQ_REDIS_ADDR)")
	flag.IntVar(&leaderboardSize, "leaderboard-size", 10, "number of top customers in the leaderboard snapshot")
	flag.BoolVar(&skipLeaderboard, "skip-leaderboard", false, "recompute KPI snapshots only")
	flag.Parse()

	if strings.TrimSpace(dsn) == "" {
		dsn = strings.TrimSpace(os.Getenv("SHOPQ_POSTGRES_DSN"))
	}
	if dsn == "" {
		fail("SHOPQ_POSTGRES_DSN (or -dsn) is required")
	}
	if strings.TrimSpace(redisAddr) == "" {
		redisAddr = strings.TrimSpace(os.Getenv("SHOPQ_REDIS_ADDR"))
	}
	if redisAddr == "" {
		fail("SHOPQ_REDIS_ADDR (or -redis-addr) is required")
	}

	date := time.Now().UTC().AddDate(0, 0, -1)
	if strings.TrimSpace(dateRaw) != "" {
		parsed, err := time.Parse("2006-01-02", strings.TrimSpace(dateRaw))
		if err != nil {
			fail("invalid -date %q: %v", dateRaw, err)
		}
		date = parsed
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	ledger, err := redis.Open(ctx, redisAddr)
	if err != nil {
		fail("open redis ledger: %v", err)
	}
	defer ledger.Close()

	generator := kpi.NewGenerator(store.Orders(), store.Customers(), ledger, log.WithField("component", "kpi-batch"))

	if err := generator.GenerateDaily(date); err != nil {
		fail("kpi recompute failed: %v", err)
	}
	if !skipLeaderboard {
		if err := generator.UpdateLeaderboard(leaderboardSize); err != nil {
			fail("leaderboard recompute failed: %v", err)
		}
	}

	fmt.Printf("kpi recompute ok: date=%s\n", date.Format("2006-01-02"))
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
