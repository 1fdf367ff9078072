package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты попытки публикации события из outbox.
const (
	PublishSent      = "sent"
	PublishRetry     = "retry"
	PublishFailed    = "failed"
	PublishDLQFailed = "dlq_failed"
)

// OutboxMetrics описывает доставку событий заказов и размер backlog.
type OutboxMetrics struct {
	attempts  *prometheus.CounterVec
	pending   prometheus.Gauge
	oldestAge prometheus.Gauge
}

// NewOutboxMetrics регистрирует метрики outbox в переданном registerer.
func NewOutboxMetrics(registerer prometheus.Registerer) *OutboxMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OutboxMetrics{
		attempts: register(registerer, "oms_outbox_publish_attempts_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oms_outbox_publish_attempts_total",
			Help: "Order event publish attempts grouped by event type and result",
		}, []string{"event_type", "result"})),
		pending: register(registerer, "oms_outbox_pending_records", prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oms_outbox_pending_records",
			Help: "Pending records in the order outbox",
		})),
		oldestAge: register(registerer, "oms_outbox_oldest_pending_age_seconds", prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oms_outbox_oldest_pending_age_seconds",
			Help: "Age of the oldest pending outbox record in seconds",
		})),
	}
}

// RecordAttempt фиксирует исход попытки публикации.
func (m *OutboxMetrics) RecordAttempt(eventType, result string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(eventType, result).Inc()
}

// SetBacklog обновляет размер очереди и возраст старейшей записи.
func (m *OutboxMetrics) SetBacklog(pending int, oldestAge time.Duration) {
	if m == nil {
		return
	}
	m.pending.Set(float64(pending))
	m.oldestAge.Set(max(oldestAge, 0).Seconds())
}
