package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
	"github.com/vladislavdragonenkov/shopq/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shopq/internal/service/payment"
	"github.com/vladislavdragonenkov/shopq/internal/service/refunds"
	"github.com/vladislavdragonenkov/shopq/internal/storage/postgres"
)

const defaultTimeout = 30 * time.Second

// refund регистрирует возврат по заказу и ставит job проведения в очередь
// shopq.refunds.requested. Само проведение выполняет воркер.
func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	var (
		orderID     string
		amountMinor int64
		full        bool
		reason      string
		dsn         string
		brokersRaw  string
	)

	flag.StringVar(&orderID, "order-id", "", "order to refund")
	flag.Int64Var(&amountMinor, "amount-minor", 0, "refund amount in minor units (ignored with -full)")
	flag.BoolVar(&full, "full", false, "full refund for the whole order total")
	flag.StringVar(&reason, "reason", "", "refund reason")
	flag.StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: SHOPQ_POSTGRES_DSN)")
	flag.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: SHOPQ_KAFKA_BROKERS)")
	flag.Parse()

	if strings.TrimSpace(orderID) == "" {
		fail("-order-id is required")
	}
	if !full && amountMinor <= 0 {
		fail("either -full or a positive -amount-minor is required")
	}
	if strings.TrimSpace(dsn) == "" {
		dsn = strings.TrimSpace(os.Getenv("SHOPQ_POSTGRES_DSN"))
	}
	if dsn == "" {
		fail("SHOPQ_POSTGRES_DSN (or -dsn) is required")
	}
	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = os.Getenv("SHOPQ_KAFKA_BROKERS")
	}
	brokers := parseBrokers(brokersRaw)
	if len(brokers) == 0 {
		fail("kafka brokers are required (-brokers or SHOPQ_KAFKA_BROKERS)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		fail("create kafka producer: %v", err)
	}
	defer producer.Close()

	refundType := domain.RefundTypePartial
	if full {
		refundType = domain.RefundTypeFull
	}

	processor := refunds.NewProcessor(store, payment.NewGateway(), nil, nil)
	refund, err := processor.Create(orderID, amountMinor, refundType, reason)
	if err != nil {
		fail("register refund: %v", err)
	}

	if err := kafka.NewQueue(producer).EnqueueRefund(refund.ID); err != nil {
		fail("enqueue refund job: %v", err)
	}

	fmt.Printf("refund registered: id=%s number=%s amount_minor=%d\n", refund.ID, refund.RefundNumber, refund.AmountMinor)
}

func parseBrokers(raw string) []string {
	chunks := strings.Split(raw, ",")
	brokers := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		broker := strings.TrimSpace(chunk)
		if broker == "" {
			continue
		}
		brokers = append(brokers, broker)
	}
	return brokers
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
