// Package rest — HTTP API заказов поверх chi.
package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopdesk/internal/domain"
	"github.com/vladislavdragonenkov/shopdesk/internal/metrics"
)

const defaultRequestTimeout = 15 * time.Second

// Config — зависимости роутера.
type Config struct {
	Orders         OrderService
	Verifier       TokenVerifier
	Idempotency    domain.IdempotencyRepository
	IdempotencyTTL time.Duration
	Logger         *log.Entry
	Metrics        *metrics.HTTPMetrics
	RequestTimeout time.Duration
}

// NewRouter собирает маршруты API заказов. Все маршруты /orders требуют bearer-токен.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.WithField("component", "rest")
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = defaultIdempotencyTTL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	h := &Handler{
		orders:  cfg.Orders,
		idem:    cfg.Idempotency,
		idemTTL: cfg.IdempotencyTTL,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(requestLogger(logger, cfg.Metrics))
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Route("/orders", func(r chi.Router) {
		r.Use(authenticate(cfg.Verifier, logger))

		r.Post("/", h.createOrder)
		r.Get("/", h.listOwnOrders)
		r.With(requireAdmin).Get("/admin/all", h.listAllOrders)
		r.Get("/{orderId}", h.getOrder)
		r.With(requireAdmin).Patch("/{orderId}/status", h.updateStatus)
	})

	return r
}
