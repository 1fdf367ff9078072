package metrics

import "github.com/prometheus/client_golang/prometheus"

// IdempotencyMetrics — метрики очистки Idempotency-Key.
type IdempotencyMetrics struct {
	runs    *prometheus.CounterVec
	deleted *prometheus.CounterVec
}

// NewIdempotencyMetrics регистрирует метрики очистки в переданном registerer.
func NewIdempotencyMetrics(registerer prometheus.Registerer) *IdempotencyMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &IdempotencyMetrics{
		runs: register(registerer, "oms_idempotency_cleanup_runs_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oms_idempotency_cleanup_runs_total",
			Help: "Idempotency cleanup runs grouped by store and result",
		}, []string{"store", "result"})),
		deleted: register(registerer, "oms_idempotency_cleanup_deleted_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oms_idempotency_cleanup_deleted_total",
			Help: "Expired idempotency records deleted by the cleanup worker",
		}, []string{"store"})),
	}
}

// RecordRun фиксирует цикл очистки: result = ok | error.
func (m *IdempotencyMetrics) RecordRun(store, result string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(store, result).Inc()
}

// RecordDeleted добавляет число удалённых записей.
func (m *IdempotencyMetrics) RecordDeleted(store string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.deleted.WithLabelValues(store).Add(float64(n))
}
