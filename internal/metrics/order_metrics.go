package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики операций сервиса заказов.
type OrderMetrics struct {
	ordersCreated prometheus.Counter
	orderFailures *prometheus.CounterVec
	statusUpdates *prometheus.CounterVec
	itemsPerOrder prometheus.Histogram
	orderTotal    prometheus.Histogram
	opDuration    *prometheus.HistogramVec
	ordersListed  *prometheus.CounterVec
}

// NewOrderMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в переданном registerer.
// Повторная регистрация возвращает существующие collectors.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: register(registerer, "oms_orders_created_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oms_orders_created_total",
			Help: "Total number of orders created",
		})),
		orderFailures: register(registerer, "oms_order_operation_failures_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oms_order_operation_failures_total",
			Help: "Failed order operations grouped by operation and error kind",
		}, []string{"operation", "kind"})),
		statusUpdates: register(registerer, "oms_order_status_updates_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oms_order_status_updates_total",
			Help: "Order status updates grouped by target status",
		}, []string{"status"})),
		itemsPerOrder: register(registerer, "oms_order_items_per_order", prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "oms_order_items_per_order",
			Help:    "Number of line items in created orders",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		})),
		orderTotal: register(registerer, "oms_order_total_amount", prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "oms_order_total_amount",
			Help:    "Total amount of created orders at current prices",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		})),
		opDuration: register(registerer, "oms_order_operation_duration_seconds", prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oms_order_operation_duration_seconds",
			Help:    "Duration of order service operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"})),
		ordersListed: register(registerer, "oms_orders_listed_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oms_orders_listed_total",
			Help: "Orders returned by listings grouped by scope",
		}, []string{"scope"})),
	}
}

// RecordOrderCreated фиксирует созданный заказ.
func (m *OrderMetrics) RecordOrderCreated(items int, total float64) {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
	m.itemsPerOrder.Observe(float64(items))
	m.orderTotal.Observe(total)
}

// RecordFailure фиксирует ошибку операции с её видом.
func (m *OrderMetrics) RecordFailure(operation, kind string) {
	if m == nil {
		return
	}
	m.orderFailures.WithLabelValues(operation, kind).Inc()
}

// RecordStatusUpdate фиксирует смену статуса.
func (m *OrderMetrics) RecordStatusUpdate(status string) {
	if m == nil {
		return
	}
	m.statusUpdates.WithLabelValues(status).Inc()
}

// RecordListed фиксирует количество заказов в выдаче.
func (m *OrderMetrics) RecordListed(scope string, count int) {
	if m == nil {
		return
	}
	m.ordersListed.WithLabelValues(scope).Add(float64(count))
}

// ObserveDuration записывает длительность операции.
func (m *OrderMetrics) ObserveDuration(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.opDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
