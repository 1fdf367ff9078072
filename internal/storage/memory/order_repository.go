package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopdesk/internal/domain"
)

type storedOrder struct {
	order domain.Order
	items []domain.OrderItem
}

// orderRepositoryInMemory — простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu         sync.RWMutex
	catalog    *Catalog
	outbox     domain.OutboxRepository
	logger     *log.Entry
	orders     map[int64]storedOrder
	nextOrder  int64
	nextItemID int64
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
// Товары и владельцы подтягиваются из catalog; outbox может быть nil.
func NewOrderRepository(catalog *Catalog, outbox domain.OutboxRepository) domain.OrderRepository {
	if catalog == nil {
		catalog = NewCatalog()
	}
	return &orderRepositoryInMemory{
		catalog: catalog,
		outbox:  outbox,
		logger:  log.WithField("component", "memory_order_repository"),
		orders:  make(map[int64]storedOrder),
	}
}

// Create сохраняет заказ и позиции целиком или не сохраняет ничего.
func (r *orderRepositoryInMemory) Create(ctx context.Context, draft domain.OrderDraft) (domain.Order, error) {
	if len(draft.Items) == 0 {
		return domain.Order{}, domain.ErrItemsRequired
	}

	r.mu.Lock()
	if err := r.catalog.checkReferences(draft.OwnerID, draft.Items, draft.ReserveStock); err != nil {
		r.mu.Unlock()
		return domain.Order{}, err
	}

	r.nextOrder++
	order := domain.Order{
		ID:        r.nextOrder,
		OwnerID:   draft.OwnerID,
		Status:    draft.Status,
		CreatedAt: draft.CreatedAt,
		UpdatedAt: draft.CreatedAt,
	}
	items := make([]domain.OrderItem, 0, len(draft.Items))
	for _, line := range draft.Items {
		r.nextItemID++
		items = append(items, domain.OrderItem{
			ID:        r.nextItemID,
			OrderID:   order.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}
	r.orders[order.ID] = storedOrder{order: order, items: items}
	created := r.hydrate(r.orders[order.ID])
	r.mu.Unlock()

	r.enqueue(ctx, created, domain.NewOrderCreatedMessage)
	return created, nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(_ context.Context, id int64) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return r.hydrate(stored), nil
}

// List возвращает заказы в scope, новые первыми.
func (r *orderRepositoryInMemory) List(_ context.Context, scope domain.Scope) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.orders))
	for _, stored := range r.orders {
		if !scope.Allows(stored.order.OwnerID) {
			continue
		}
		result = append(result, r.hydrate(stored))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

// UpdateStatus перезаписывает статус без проверки перехода.
func (r *orderRepositoryInMemory) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus, at time.Time) (domain.Order, error) {
	r.mu.Lock()
	stored, ok := r.orders[id]
	if !ok {
		r.mu.Unlock()
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err := stored.order.ApplyStatus(status, at); err != nil {
		r.mu.Unlock()
		return domain.Order{}, err
	}
	r.orders[id] = stored
	updated := r.hydrate(stored)
	r.mu.Unlock()

	r.enqueue(ctx, updated, domain.NewOrderStatusChangedMessage)
	return updated, nil
}

// hydrate подтягивает текущие данные товаров и владельца. Вызывать под r.mu.
func (r *orderRepositoryInMemory) hydrate(stored storedOrder) domain.Order {
	order := stored.order
	order.Items = make([]domain.OrderItem, 0, len(stored.items))
	for _, item := range stored.items {
		if p, ok := r.catalog.product(item.ProductID); ok {
			item.Product = p
		} else {
			item.Product = domain.Product{ID: item.ProductID}
		}
		order.Items = append(order.Items, item)
	}
	if owner, ok := r.catalog.user(order.OwnerID); ok {
		order.Owner = owner
	} else {
		order.Owner = domain.UserSummary{ID: order.OwnerID}
	}
	return order
}

func (r *orderRepositoryInMemory) enqueue(ctx context.Context, order domain.Order, build func(domain.Order) (domain.OutboxMessage, error)) {
	if r.outbox == nil {
		return
	}
	msg, err := build(order)
	if err != nil {
		r.logger.WithError(err).WithField("order_id", order.ID).Warn("build outbox message")
		return
	}
	if _, err := r.outbox.Enqueue(ctx, msg); err != nil {
		r.logger.WithError(err).
			WithField("order_id", order.ID).
			WithField("event_type", msg.EventType).
			Warn("enqueue outbox message")
	}
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
