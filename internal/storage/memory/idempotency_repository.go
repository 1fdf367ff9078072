package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/shopdesk/internal/domain"
)

// IdempotencyRepository хранит ключи Idempotency-Key в памяти процесса.
// Просроченную запись можно занять заново. Удаляет их idempotency.CleanupWorker.
type IdempotencyRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.IdempotencyRecord
	now     func() time.Time
}

// NewIdempotencyRepository создаёт in-memory хранилище ключей идемпотентности.
func NewIdempotencyRepository() *IdempotencyRepository {
	return &IdempotencyRepository{
		records: make(map[string]*domain.IdempotencyRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateProcessing занимает ключ. Живой ключ возвращает существующую запись и ошибку конфликта.
func (r *IdempotencyRepository) CreateProcessing(_ context.Context, key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	now := r.now()
	rec, err := domain.NewIdempotencyRecord(key, requestHash, ttlAt, now)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.records[rec.Key]; ok && !existing.Expired(now) {
		return snapshot(existing), existing.ConflictWith(rec.RequestHash)
	}
	r.records[rec.Key] = &rec
	return snapshot(&rec), nil
}

// Get возвращает копию записи.
func (r *IdempotencyRepository) Get(_ context.Context, key string) (domain.IdempotencyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, err := r.lookup(key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	return snapshot(rec), nil
}

// MarkDone сохраняет успешный ответ.
func (r *IdempotencyRepository) MarkDone(_ context.Context, key string, body []byte, httpStatus int) error {
	return r.complete(key, domain.IdempotencyStatusDone, body, httpStatus)
}

// MarkFailed сохраняет ответ с ошибкой.
func (r *IdempotencyRepository) MarkFailed(_ context.Context, key string, body []byte, httpStatus int) error {
	return r.complete(key, domain.IdempotencyStatusFailed, body, httpStatus)
}

// DeleteExpired удаляет не больше limit записей с ttl <= before (limit<=0 снимает ограничение).
func (r *IdempotencyRepository) DeleteExpired(_ context.Context, before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, rec := range r.records {
		if limit > 0 && removed >= limit {
			break
		}
		if rec.Expired(before) {
			delete(r.records, key)
			removed++
		}
	}
	return removed, nil
}

func (r *IdempotencyRepository) complete(key string, status domain.IdempotencyStatus, body []byte, httpStatus int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.lookup(key)
	if err != nil {
		return err
	}
	rec.Complete(status, body, httpStatus, r.now())
	return nil
}

// lookup вызывается под блокировкой.
func (r *IdempotencyRepository) lookup(key string) (*domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, domain.ErrIdempotencyKeyRequired
	}
	rec, ok := r.records[key]
	if !ok {
		return nil, domain.ErrIdempotencyKeyNotFound
	}
	return rec, nil
}

func snapshot(rec *domain.IdempotencyRecord) domain.IdempotencyRecord {
	out := *rec
	out.ResponseBody = append([]byte(nil), rec.ResponseBody...)
	return out
}

var _ domain.IdempotencyRepository = (*IdempotencyRepository)(nil)
