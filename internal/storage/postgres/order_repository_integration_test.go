package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shopdesk/internal/domain"
)

func draftFor(userID int64, createdAt time.Time, items ...domain.LineItem) domain.OrderDraft {
	return domain.OrderDraft{
		OwnerID:   userID,
		Status:    domain.OrderStatusPending,
		Items:     items,
		CreatedAt: createdAt,
	}
}

func TestOrderRepository_PostgresCreateGetAndList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	userID, products := seedCatalogForIntegrationTest(t, store)
	repo := NewOrderRepository(store, true)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)
	first, err := repo.Create(ctx, draftFor(userID, now.Add(-2*time.Minute),
		domain.LineItem{ProductID: products[0], Quantity: 2},
		domain.LineItem{ProductID: products[1], Quantity: 1},
	))
	require.NoError(t, err)
	require.Positive(t, first.ID)
	require.Len(t, first.Items, 2)
	require.Equal(t, "Jane Doe", first.Owner.Name)
	require.True(t, first.Total().Equal(decimal.RequireFromString("309.48")))

	second, err := repo.Create(ctx, draftFor(userID, now.Add(-time.Minute),
		domain.LineItem{ProductID: products[2], Quantity: 1},
	))
	require.NoError(t, err)

	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPending, got.Status)
	require.Equal(t, "Mechanical Keyboard", got.Items[0].Product.Name)

	own, err := repo.List(ctx, domain.OwnedBy(userID))
	require.NoError(t, err)
	require.Len(t, own, 2)
	require.Equal(t, second.ID, own[0].ID)
	require.Equal(t, first.ID, own[1].ID)

	all, err := repo.List(ctx, domain.AllOrders())
	require.NoError(t, err)
	require.Len(t, all, 2)

	stranger, err := repo.List(ctx, domain.OwnedBy(userID+1000))
	require.NoError(t, err)
	require.Empty(t, stranger)

	pending, err := NewOutboxRepository(store).PullPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, domain.EventTypeOrderCreated, pending[0].EventType)
}

func TestOrderRepository_PostgresUnknownProductRollsBack(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	userID, products := seedCatalogForIntegrationTest(t, store)
	repo := NewOrderRepository(store, true)
	ctx := context.Background()

	_, err := repo.Create(ctx, draftFor(userID, time.Now().UTC(),
		domain.LineItem{ProductID: products[0], Quantity: 1},
		domain.LineItem{ProductID: 999999, Quantity: 1},
	))
	require.ErrorIs(t, err, domain.ErrReferencedRecordNotFound)

	all, err := repo.List(ctx, domain.AllOrders())
	require.NoError(t, err)
	require.Empty(t, all)

	stats, err := NewOutboxRepository(store).Stats(ctx)
	require.NoError(t, err)
	require.Zero(t, stats.PendingCount)
}

func TestOrderRepository_PostgresReserveStock(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	userID, products := seedCatalogForIntegrationTest(t, store)
	repo := NewOrderRepository(store, false)
	catalog := NewProductRepository(store)
	ctx := context.Background()

	draft := draftFor(userID, time.Now().UTC(),
		domain.LineItem{ProductID: products[0], Quantity: 1},
		domain.LineItem{ProductID: products[2], Quantity: 6},
	)
	draft.ReserveStock = true

	_, err := repo.Create(ctx, draft)
	var stockErr *domain.InsufficientStockError
	require.True(t, errors.As(err, &stockErr), "unexpected error: %v", err)
	require.Equal(t, 5, stockErr.Available)
	require.Equal(t, 6, stockErr.Requested)

	keyboard, err := catalog.GetProduct(ctx, products[0])
	require.NoError(t, err)
	require.Equal(t, 25, keyboard.Stock)

	draft.Items[1].Quantity = 5
	_, err = repo.Create(ctx, draft)
	require.NoError(t, err)

	hub, err := catalog.GetProduct(ctx, products[2])
	require.NoError(t, err)
	require.Zero(t, hub.Stock)
}

func TestOrderRepository_PostgresUpdateStatus(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	userID, products := seedCatalogForIntegrationTest(t, store)
	repo := NewOrderRepository(store, true)
	ctx := context.Background()

	created, err := repo.Create(ctx, draftFor(userID, time.Now().UTC(),
		domain.LineItem{ProductID: products[0], Quantity: 1},
	))
	require.NoError(t, err)

	at := time.Now().UTC().Add(time.Minute).Round(time.Microsecond)
	updated, err := repo.UpdateStatus(ctx, created.ID, domain.OrderStatusDelivered, at)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusDelivered, updated.Status)

	reread, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusDelivered, reread.Status)
	require.True(t, reread.UpdatedAt.Equal(at))

	_, err = repo.UpdateStatus(ctx, created.ID+1000, domain.OrderStatusShipped, at)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = repo.Get(ctx, created.ID+1000)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestProductRepository_PostgresMissing(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	catalog := NewProductRepository(store)

	_, err := catalog.GetProduct(context.Background(), 424242)
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestMapWriteError(t *testing.T) {
	err := mapWriteError("insert order item", &pgconn.PgError{Code: "23503"})
	require.ErrorIs(t, err, domain.ErrReferencedRecordNotFound)

	plain := mapWriteError("insert order", errors.New("boom"))
	require.NotErrorIs(t, plain, domain.ErrReferencedRecordNotFound)
	require.Contains(t, plain.Error(), "insert order: boom")

	wrapped := fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"})
	require.Equal(t, "23505", pgErrorCode(wrapped))
	require.Empty(t, pgErrorCode(errors.New("plain")))
}
