// Package idempotency очищает просроченные ключи Idempotency-Key запросов создания заказа.
package idempotency

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopdesk/internal/domain"
	"github.com/vladislavdragonenkov/shopdesk/internal/metrics"
)

// Config задаёт расписание очистки.
type Config struct {
	Interval  time.Duration
	BatchSize int
	// Store подписывает логи и метрики: memory | postgres.
	Store string
}

func (c Config) normalized() Config {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.Store == "" {
		c.Store = "memory"
	}
	return c
}

// CleanupWorker периодически удаляет записи с истёкшим ttl.
type CleanupWorker struct {
	repo    domain.IdempotencyRepository
	cfg     Config
	logger  *log.Entry
	metrics *metrics.IdempotencyMetrics
	now     func() time.Time
}

// NewCleanupWorker создаёт воркер очистки. logger и m могут быть nil.
func NewCleanupWorker(repo domain.IdempotencyRepository, cfg Config, logger *log.Entry, m *metrics.IdempotencyMetrics) *CleanupWorker {
	cfg = cfg.normalized()
	if logger == nil {
		logger = log.WithField("component", "idempotency-cleanup")
	}

	return &CleanupWorker{
		repo:    repo,
		cfg:     cfg,
		logger:  logger.WithField("store", cfg.Store),
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run чистит хранилище сразу и затем раз в Interval, пока ctx не отменён.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("idempotency cleanup worker is disabled: repo is nil")
		return
	}

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		w.sweep(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *CleanupWorker) sweep(ctx context.Context) {
	deleted, err := w.DeleteExpired(ctx, w.now())
	if errors.Is(err, context.Canceled) {
		return
	}
	if err != nil {
		w.metrics.RecordRun(w.cfg.Store, "error")
		w.logger.WithError(err).Warn("idempotency cleanup run failed")
		return
	}

	w.metrics.RecordRun(w.cfg.Store, "ok")
	if deleted > 0 {
		w.logger.WithField("deleted", deleted).Info("expired idempotency keys removed")
	}
}

// DeleteExpired удаляет записи с ttl <= before порциями по BatchSize,
// пока очередная порция не окажется неполной.
func (w *CleanupWorker) DeleteExpired(ctx context.Context, before time.Time) (total int, err error) {
	if before.IsZero() {
		before = w.now()
	}

	for n := w.cfg.BatchSize; n == w.cfg.BatchSize; {
		if err = ctx.Err(); err != nil {
			return total, err
		}
		if n, err = w.repo.DeleteExpired(ctx, before, w.cfg.BatchSize); err != nil {
			return total, err
		}
		total += n
		w.metrics.RecordDeleted(w.cfg.Store, n)
	}
	return total, nil
}
