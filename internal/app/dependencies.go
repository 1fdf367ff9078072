package app

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopdesk/internal/domain"
	"github.com/vladislavdragonenkov/shopdesk/internal/health"
	"github.com/vladislavdragonenkov/shopdesk/internal/storage/memory"
	"github.com/vladislavdragonenkov/shopdesk/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/shopdesk/internal/storage/redis"
)

const (
	idempotencyStoreMemory   = "memory"
	idempotencyStorePostgres = "postgres"
	idempotencyStoreRedis    = "redis"
)

// runtimeDependencies — хранилища, выбранные по конфигурации.
type runtimeDependencies struct {
	repo             domain.OrderRepository
	catalog          domain.ProductCatalog
	outboxRepo       domain.OutboxRepository
	idempotencyRepo  domain.IdempotencyRepository
	idempotencyStore string
	checkers         map[string]health.Checker
	closers          []func() error
}

func (d *runtimeDependencies) close() error {
	if d == nil {
		return nil
	}
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// initRuntimeDependencies открывает хранилища. При ошибке уже открытые соединения закрываются.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (deps *runtimeDependencies, err error) {
	deps = &runtimeDependencies{checkers: make(map[string]health.Checker)}
	// return nil, err обнуляет deps раньше defer, поэтому закрываем сохранённый указатель.
	opened := deps
	defer func() {
		if err != nil {
			_ = opened.close()
		}
	}()

	switch cfg.StorageDriver {
	case StorageDriverMemory:
		catalog := memory.NewDemoCatalog()
		outboxRepo := memory.NewOutboxRepository()
		deps.catalog = catalog
		deps.outboxRepo = outboxRepo
		deps.repo = memory.NewOrderRepository(catalog, outboxRepo)
		deps.idempotencyRepo = memory.NewIdempotencyRepository()
		deps.idempotencyStore = idempotencyStoreMemory
		logger.Info("using in-memory storage with demo catalog")

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres storage requires a DSN")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN, postgres.PoolConfig{MaxOpenConns: cfg.PostgresMaxConns})
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, store.Close)

		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		if cfg.SeedDemoCatalog {
			if err := store.SeedCatalog(ctx, memory.DemoUsers(), memory.DemoProducts()); err != nil {
				return nil, err
			}
		}

		deps.catalog = postgres.NewProductRepository(store)
		deps.outboxRepo = postgres.NewOutboxRepository(store)
		deps.repo = postgres.NewOrderRepository(store, true)
		deps.idempotencyRepo = postgres.NewIdempotencyRepository(store)
		deps.idempotencyStore = idempotencyStorePostgres
		deps.checkers["postgres"] = health.NewPingChecker("postgres", store.Ping)
		logger.Info("using postgres storage")

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if cfg.RedisAddr != "" {
		client, err := redisstore.Open(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, client.Close)
		deps.idempotencyRepo = redisstore.NewIdempotencyRepository(client)
		deps.idempotencyStore = idempotencyStoreRedis
		deps.checkers["redis"] = health.NewPingChecker("redis", redisPing(client))
		logger.WithField("addr", cfg.RedisAddr).Info("using redis idempotency store")
	}

	deps.checkers["outbox"] = health.NewOutboxChecker(deps.outboxRepo, cfg.OutboxMaxPending, cfg.OutboxMaxAge)
	return deps, nil
}

func redisPing(client goredis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
