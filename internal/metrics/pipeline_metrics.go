package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics содержит метрики пайплайнов обработки заказов и возвратов.
type PipelineMetrics struct {
	ordersProcessed  *prometheus.CounterVec
	refundsProcessed *prometheus.CounterVec

	pipelineDuration *prometheus.HistogramVec

	ledgerFailures prometheus.Counter

	activeJobs prometheus.Gauge
}

// NewPipelineMetrics создаёт новый экземпляр метрик пайплайнов.
func NewPipelineMetrics() *PipelineMetrics {
	return newPipelineMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newPipelineMetricsWithRegisterer(registerer prometheus.Registerer) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &PipelineMetrics{
		ordersProcessed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shopq_orders_processed_total",
			Help: "Total number of order jobs processed grouped by result",
		}, []string{"result"}),
		refundsProcessed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shopq_refunds_processed_total",
			Help: "Total number of refund jobs processed grouped by result",
		}, []string{"result"}),
		pipelineDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "shopq_pipeline_duration_seconds",
			Help:    "Duration of pipeline runs in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"pipeline"}),
		ledgerFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shopq_metrics_ledger_failures_total",
			Help: "Total number of best-effort metrics ledger updates that failed after commit",
		}),
		activeJobs: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "shopq_active_jobs",
			Help: "Number of jobs currently being processed",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderProcessed увеличивает счётчик обработанных заказов по результату.
func (m *PipelineMetrics) RecordOrderProcessed(result string) {
	m.ordersProcessed.WithLabelValues(result).Inc()
}

// RecordRefundProcessed увеличивает счётчик обработанных возвратов по результату.
func (m *PipelineMetrics) RecordRefundProcessed(result string) {
	m.refundsProcessed.WithLabelValues(result).Inc()
}

// RecordPipelineDuration записывает время выполнения пайплайна.
func (m *PipelineMetrics) RecordPipelineDuration(pipeline string, duration time.Duration) {
	m.pipelineDuration.WithLabelValues(pipeline).Observe(duration.Seconds())
}

// RecordLedgerFailure увеличивает счётчик неудачных post-commit обновлений ledger.
func (m *PipelineMetrics) RecordLedgerFailure() {
	m.ledgerFailures.Inc()
}

// RecordJobStarted увеличивает количество активных job.
func (m *PipelineMetrics) RecordJobStarted() {
	m.activeJobs.Inc()
}

// RecordJobFinished уменьшает количество активных job.
func (m *PipelineMetrics) RecordJobFinished() {
	m.activeJobs.Dec()
}
