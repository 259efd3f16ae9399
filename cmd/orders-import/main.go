package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopq/internal/domain"
	"github.com/vladislavdragonenkov/shopq/internal/messaging/kafka"
)

// orders-import читает CSV с заказами и публикует их в очередь
// shopq.orders.submitted. Формат файла (с заголовком):
//
//	email,name,phone,address,products,idempotency_key
//
// где products — список позиций вида "SKU-1:2;SKU-2:1", а
// idempotency_key опционален.
func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	var (
		brokersRaw string
		path       string
		dryRun     bool
	)

	flag.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: SHOPQ_KAFKA_BROKERS)")
	flag.StringVar(&path, "file", "", "path to the CSV file with orders ('-' for stdin)")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and validate the file without publishing")
	flag.Parse()

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = os.Getenv("SHOPQ_KAFKA_BROKERS")
	}
	brokers := parseBrokers(brokersRaw)
	if len(brokers) == 0 && !dryRun {
		fail("kafka brokers are required (-brokers or SHOPQ_KAFKA_BROKERS)")
	}
	if strings.TrimSpace(path) == "" {
		fail("-file is required")
	}

	input := os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			fail("open %s: %v", path, err)
		}
		defer f.Close()
		input = f
	}

	payloads, err := readPayloads(input)
	if err != nil {
		fail("read orders: %v", err)
	}
	if len(payloads) == 0 {
		fail("no orders found in %s", path)
	}

	if dryRun {
		fmt.Printf("dry-run ok: %d orders parsed\n", len(payloads))
		return
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		fail("create kafka producer: %v", err)
	}
	defer producer.Close()

	queue := kafka.NewQueue(producer)

	published := 0
	for i, payload := range payloads {
		if err := queue.EnqueueOrder(payload); err != nil {
			fail("enqueue order at row %d: %v", i+2, err)
		}
		published++
	}

	fmt.Printf("orders import ok: published=%d\n", published)
}

// readPayloads разбирает CSV в payload'ы заказов.
func readPayloads(r io.Reader) ([]domain.OrderPayload, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"email", "name", "products"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	var payloads []domain.OrderPayload
	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}

		products, err := parseProducts(field(record, columns, "products"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		payload := domain.OrderPayload{
			IdempotencyKey: field(record, columns, "idempotency_key"),
			CustomerEmail:  field(record, columns, "email"),
			CustomerName:   field(record, columns, "name"),
			Phone:          field(record, columns, "phone"),
			Address:        field(record, columns, "address"),
			Products:       products,
		}
		if errs := payload.Validate(); len(errs) > 0 {
			return nil, fmt.Errorf("row %d: %v", row, errs[0])
		}

		payloads = append(payloads, payload)
	}

	return payloads, nil
}

// parseProducts разбирает список позиций вида "SKU-1:2;SKU-2:1".
func parseProducts(raw string) ([]domain.PayloadItem, error) {
	var items []domain.PayloadItem
	for _, chunk := range strings.Split(raw, ";") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}

		sku, qtyRaw, found := strings.Cut(chunk, ":")
		if !found {
			return nil, fmt.Errorf("invalid product %q, expected SKU:QTY", chunk)
		}
		qty, err := strconv.ParseInt(strings.TrimSpace(qtyRaw), 10, 32)
		if err != nil || qty <= 0 {
			return nil, fmt.Errorf("invalid quantity in %q", chunk)
		}

		items = append(items, domain.PayloadItem{
			SKU:      strings.TrimSpace(sku),
			Quantity: int32(qty),
		})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("products list is empty")
	}
	return items, nil
}

func field(record []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
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
