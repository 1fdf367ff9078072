package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vladislavdragonenkov/shopdesk/internal/domain"
)

// PoolConfig ограничивает пул соединений database/sql.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig подходит для одного экземпляра сервиса заказов.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    25,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

func (c PoolConfig) apply(db *sql.DB) {
	def := DefaultPoolConfig()
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = def.MaxOpenConns
	}
	if c.MaxIdleConns <= 0 || c.MaxIdleConns > c.MaxOpenConns {
		c.MaxIdleConns = c.MaxOpenConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = def.ConnMaxLifetime
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = def.ConnMaxIdleTime
	}

	db.SetMaxOpenConns(c.MaxOpenConns)
	db.SetMaxIdleConns(c.MaxIdleConns)
	db.SetConnMaxLifetime(c.ConnMaxLifetime)
	db.SetConnMaxIdleTime(c.ConnMaxIdleTime)
}

const pingTimeout = 5 * time.Second

// Store оборачивает SQL-подключение к PostgreSQL: заказы, позиции, каталог,
// outbox и idempotency-ключи живут в одной базе.
type Store struct {
	db *sql.DB
}

// Open подключается через драйвер pgx и проверяет доступность базы.
// Без pool используется DefaultPoolConfig.
func Open(ctx context.Context, dsn string, pool ...PoolConfig) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	cfg := DefaultPoolConfig()
	if len(pool) > 0 {
		cfg = pool[0]
	}
	cfg.apply(db)

	store := &Store{db: db}
	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return store, nil
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SeedCatalog добавляет пользователей и товары с фиксированными ID, если их ещё нет.
// Остатки и цены уже существующих товаров не меняются.
func (s *Store) SeedCatalog(ctx context.Context, users []domain.UserSummary, products []domain.Product) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, u := range users {
		if _, err = tx.ExecContext(ctx, `
INSERT INTO users (id, name, email)
VALUES ($1, $2, $3)
ON CONFLICT DO NOTHING`, u.ID, u.Name, u.Email); err != nil {
			return fmt.Errorf("seed user %d: %w", u.ID, err)
		}
	}
	for _, p := range products {
		if _, err = tx.ExecContext(ctx, `
INSERT INTO products (id, name, description, price, stock)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING`, p.ID, p.Name, p.Description, p.Price.StringFixed(2), p.Stock); err != nil {
			return fmt.Errorf("seed product %d: %w", p.ID, err)
		}
	}

	// Явные ID не двигают BIGSERIAL, выравниваем последовательности.
	for _, table := range []string{"users", "products"} {
		if _, err = tx.ExecContext(ctx, fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), GREATEST((SELECT COALESCE(MAX(id), 0) FROM %[1]s), 1))`, table,
		)); err != nil {
			return fmt.Errorf("sync %s sequence: %w", table, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit seed tx: %w", err)
	}
	return nil
}
