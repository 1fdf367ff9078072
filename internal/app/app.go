// Package app собирает сервис заказов: конфигурация, хранилища, воркеры и HTTP-серверы.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopdesk/internal/auth"
	healthcheck "github.com/vladislavdragonenkov/shopdesk/internal/health"
	"github.com/vladislavdragonenkov/shopdesk/internal/metrics"
	"github.com/vladislavdragonenkov/shopdesk/internal/service/idempotency"
	"github.com/vladislavdragonenkov/shopdesk/internal/service/orders"
	"github.com/vladislavdragonenkov/shopdesk/internal/service/outbox"
	"github.com/vladislavdragonenkov/shopdesk/internal/service/rest"
	"github.com/vladislavdragonenkov/shopdesk/internal/version"
)

const readHeaderTimeout = 5 * time.Second

// Run поднимает REST API, сервер метрик и фоновые воркеры и блокируется до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return err
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	producer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.Warn("order events will only be logged until kafka is reachable")
	}
	defer closeKafka(producer, logger)

	orderService := orders.NewService(deps.repo, deps.catalog,
		orders.WithLogger(logger.WithField("layer", "service")),
		orders.WithMetrics(metrics.NewOrderMetrics()),
		orders.WithStockReservation(cfg.ReserveStock),
	)

	workersCtx, stopWorkers := context.WithCancel(ctx)
	var workers sync.WaitGroup
	defer func() {
		stopWorkers()
		workers.Wait()
	}()

	publisher, dlqPublisher := outboxPublishers(cfg, producer, logger)
	outboxWorker := outbox.NewWorker(deps.outboxRepo, publisher,
		outbox.Config{
			PollInterval: cfg.OutboxPollInterval,
			BatchSize:    cfg.OutboxBatchSize,
			MaxAttempts:  cfg.OutboxMaxAttempts,
			RetryDelay:   cfg.OutboxRetryDelay,
		},
		outbox.WithLogger(logger.WithField("layer", "outbox")),
		outbox.WithDLQ(dlqPublisher),
		outbox.WithMetrics(metrics.NewOutboxMetrics(prometheus.DefaultRegisterer)),
	)
	workers.Add(1)
	go func() {
		defer workers.Done()
		outboxWorker.Run(workersCtx)
	}()

	// TTL в Redis снимает ключи сам, отдельная очистка нужна только memory и postgres.
	if deps.idempotencyStore != idempotencyStoreRedis {
		cleanupWorker := idempotency.NewCleanupWorker(deps.idempotencyRepo,
			idempotency.Config{
				Interval:  cfg.IdempotencyCleanupInterval,
				BatchSize: cfg.IdempotencyCleanupBatchSize,
				Store:     deps.idempotencyStore,
			},
			logger.WithField("layer", "idempotency"),
			metrics.NewIdempotencyMetrics(prometheus.DefaultRegisterer),
		)
		workers.Add(1)
		go func() {
			defer workers.Done()
			cleanupWorker.Run(workersCtx)
		}()
	}

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	for name, checker := range deps.checkers {
		healthHandler.RegisterChecker(name, checker)
	}
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	defer shutdownHTTP(metricsSrv, logger)

	apiSrv := &http.Server{
		Handler: rest.NewRouter(rest.Config{
			Orders:         orderService,
			Verifier:       verifier,
			Idempotency:    deps.idempotencyRepo,
			IdempotencyTTL: cfg.IdempotencyTTL,
			Logger:         logger.WithField("layer", "rest"),
			Metrics:        metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
			RequestTimeout: cfg.RequestTimeout,
		}),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	lis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.HTTPAddr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(log.Fields{
			"addr":    lis.Addr().String(),
			"storage": cfg.StorageDriver,
			"version": version.GetVersion(),
		}).Info("REST API listening")
		errCh <- apiSrv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping REST API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := apiSrv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("graceful shutdown timed out, closing connections")
			_ = apiSrv.Close()
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics и health-пробы.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		logger.Infof("metrics available at %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
