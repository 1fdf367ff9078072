package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics — метрики REST API заказов.
type HTTPMetrics struct {
	requests *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewHTTPMetrics регистрирует метрики HTTP в переданном registerer.
func NewHTTPMetrics(registerer prometheus.Registerer) *HTTPMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &HTTPMetrics{
		requests: register(registerer, "oms_http_request_duration_seconds", prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oms_http_request_duration_seconds",
			Help:    "Duration of HTTP requests grouped by method, route and status code",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "code"})),
		inFlight: register(registerer, "oms_http_requests_in_flight", prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oms_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		})),
	}
}

// Started увеличивает счётчик обрабатываемых запросов.
func (m *HTTPMetrics) Started() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// Finished фиксирует завершённый запрос.
func (m *HTTPMetrics) Finished(method, route string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Observe(duration.Seconds())
}
