package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики оркестрации заказов.
type OrderMetrics struct {
	// Счётчики операций
	ordersCreated  prometheus.Counter
	orderFailures  *prometheus.CounterVec
	statusChanges  prometheus.Counter
	decrements     prometheus.Counter
	compensations  prometheus.Counter
	reconciliation prometheus.Counter

	// Гистограмма времени создания заказа
	createDuration prometheus.Histogram

	// Счётчик событий outbox
	outboxEvents prometheus.Counter
}

// NewOrderMetrics создаёт новый экземпляр метрик заказов.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders created successfully",
		}),
		orderFailures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_failed_total",
			Help: "Total number of failed order operations grouped by fault kind",
		}, []string{"kind"}),
		statusChanges: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_status_changes_total",
			Help: "Total number of successful order status transitions",
		}),
		decrements: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_stock_decrements_total",
			Help: "Total number of successful inventory decrements",
		}),
		compensations: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_stock_compensations_total",
			Help: "Total number of compensating inventory increments",
		}),
		reconciliation: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_reconciliation_required_total",
			Help: "Total number of partial mutations that could not be fully compensated",
		}),
		createDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "orders_create_duration_seconds",
			Help:    "Duration of the create-order workflow in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_outbox_events_total",
			Help: "Total number of events enqueued to the transactional outbox",
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

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик успешно созданных заказов.
func (m *OrderMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordOrderFailed увеличивает счётчик отказов по виду ошибки.
func (m *OrderMetrics) RecordOrderFailed(kind string) {
	if kind == "" {
		kind = "internal"
	}
	m.orderFailures.WithLabelValues(kind).Inc()
}

// RecordStatusChanged увеличивает счётчик успешных смен статуса.
func (m *OrderMetrics) RecordStatusChanged() {
	m.statusChanges.Inc()
}

// RecordDecrement увеличивает счётчик успешных списаний склада.
func (m *OrderMetrics) RecordDecrement() {
	m.decrements.Inc()
}

// RecordCompensation увеличивает счётчик компенсирующих возвратов.
func (m *OrderMetrics) RecordCompensation() {
	m.compensations.Inc()
}

// RecordReconciliationRequired увеличивает счётчик невосстановленных списаний.
func (m *OrderMetrics) RecordReconciliationRequired() {
	m.reconciliation.Inc()
}

// RecordCreateDuration записывает время создания заказа.
func (m *OrderMetrics) RecordCreateDuration(duration time.Duration) {
	m.createDuration.Observe(duration.Seconds())
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *OrderMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
