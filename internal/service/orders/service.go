// Package orders реализует сценарии оформления и просмотра заказов.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopdesk/internal/domain"
	"github.com/vladislavdragonenkov/shopdesk/internal/metrics"
)

const (
	msgReferencedRecordNotFound = "Referenced record not found. Check product IDs."
	msgCreateFailed             = "An error occurred while creating the order. Please try again."
	msgRetrieveFailed           = "An error occurred while retrieving orders. Please try again."
	msgRetrieveOneFailed        = "An error occurred while retrieving the order. Please try again."
	msgUpdateFailed             = "An error occurred while updating the order. Please try again."
	msgNoOwnOrders              = "You don't have any orders yet. Start shopping to create your first order!"
	msgNoOrders                 = "No orders found in the system."

	opCreate       = "create"
	opFindOne      = "find_one"
	opFindAll      = "find_all"
	opUpdateStatus = "update_status"
)

// OrderView — заказ вместе с вычисленной суммой.
type OrderView struct {
	domain.Order
	Total decimal.Decimal
}

// OrderList — результат листинга. Пустой список не считается ошибкой.
type OrderList struct {
	Orders  []OrderView
	Count   int
	Message string
}

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт logger сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics подключает prometheus-метрики.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithStockReservation включает списание остатков в транзакции создания заказа.
func WithStockReservation(enabled bool) Option {
	return func(s *Service) {
		s.reserveStock = enabled
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service — сервис заказов. Хранилище и каталог передаются явно.
type Service struct {
	orders       domain.OrderRepository
	catalog      domain.ProductCatalog
	logger       *log.Entry
	metrics      *metrics.OrderMetrics
	reserveStock bool
	now          func() time.Time
}

// NewService создаёт сервис заказов.
func NewService(orders domain.OrderRepository, catalog domain.ProductCatalog, opts ...Option) *Service {
	s := &Service{
		orders:  orders,
		catalog: catalog,
		logger:  log.WithField("component", "order-service"),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create оформляет заказ от имени requesterID.
// Все позиции проверяются до записи; запись атомарна.
func (s *Service) Create(ctx context.Context, items []domain.LineItem, requesterID int64) (order domain.Order, err error) {
	started := time.Now()
	defer func() { s.finish(opCreate, started, err) }()

	logger := s.logger.WithFields(log.Fields{"user_id": requesterID, "items": len(items)})
	logger.Debug("order creation requested")

	if err := domain.ValidateLineItems(items); err != nil {
		return domain.Order{}, domain.NewError(domain.KindValidation, err, "%s", err.Error())
	}

	for _, item := range items {
		product, err := s.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				return domain.Order{}, domain.NewError(domain.KindInvalidRequest, err, "Product with ID %d not found", item.ProductID)
			}
			logger.WithError(err).WithField("product_id", item.ProductID).Error("catalog lookup failed")
			return domain.Order{}, domain.NewError(domain.KindInternal, err, msgCreateFailed)
		}

		if product.Stock < item.Quantity {
			stockErr := &domain.InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   product.Stock,
				Requested:   item.Quantity,
			}
			return domain.Order{}, domain.NewError(domain.KindInvalidRequest, stockErr, "%s", stockErr.Error())
		}
	}

	order, err = s.orders.Create(ctx, domain.OrderDraft{
		OwnerID:      requesterID,
		Status:       domain.OrderStatusPending,
		Items:        items,
		CreatedAt:    s.now(),
		ReserveStock: s.reserveStock,
	})
	if err != nil {
		var stockErr *domain.InsufficientStockError
		switch {
		case errors.Is(err, domain.ErrReferencedRecordNotFound):
			logger.WithError(err).Warn("order write rejected by referential integrity")
			return domain.Order{}, domain.NewError(domain.KindInvalidRequest, err, msgReferencedRecordNotFound)
		case errors.As(err, &stockErr):
			return domain.Order{}, domain.NewError(domain.KindInvalidRequest, err, "%s", stockErr.Error())
		default:
			logger.WithError(err).Error("order write failed")
			return domain.Order{}, domain.NewError(domain.KindInternal, err, msgCreateFailed)
		}
	}

	total := order.Total()
	s.metrics.RecordOrderCreated(len(order.Items), total.InexactFloat64())
	logger.WithFields(log.Fields{"order_id": order.ID, "total": total.StringFixed(2)}).Info("order created")

	return order, nil
}

// FindOne возвращает заказ с суммой. Для чужого заказа в scope пользователя ошибка KindUnauthorized,
// для отсутствующего KindNotFound.
func (s *Service) FindOne(ctx context.Context, orderID int64, scope domain.Scope) (view OrderView, err error) {
	started := time.Now()
	defer func() { s.finish(opFindOne, started, err) }()

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return OrderView{}, domain.NewError(domain.KindNotFound, err, "Order with ID %d not found", orderID)
		}
		s.logger.WithError(err).WithField("order_id", orderID).Error("order lookup failed")
		return OrderView{}, domain.NewError(domain.KindInternal, err, msgRetrieveOneFailed)
	}

	if !scope.Allows(order.OwnerID) {
		return OrderView{}, domain.NewError(domain.KindUnauthorized, domain.ErrOrderAccessDenied, "You do not have access to this order")
	}

	return OrderView{Order: order, Total: order.Total()}, nil
}

// FindAll возвращает заказы в scope, новые первыми.
func (s *Service) FindAll(ctx context.Context, scope domain.Scope) (list OrderList, err error) {
	started := time.Now()
	defer func() { s.finish(opFindAll, started, err) }()

	_, restricted := scope.OwnerID()

	orders, err := s.orders.List(ctx, scope)
	if err != nil {
		s.logger.WithError(err).WithField("restricted", restricted).Error("error retrieving orders")
		return OrderList{}, domain.NewError(domain.KindInternal, err, msgRetrieveFailed)
	}

	scopeLabel := "all"
	if restricted {
		scopeLabel = "own"
	}
	s.metrics.RecordListed(scopeLabel, len(orders))

	if len(orders) == 0 {
		message := msgNoOrders
		if restricted {
			message = msgNoOwnOrders
		}
		return OrderList{Orders: []OrderView{}, Count: 0, Message: message}, nil
	}

	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, OrderView{Order: order, Total: order.Total()})
	}

	return OrderList{
		Orders:  views,
		Count:   len(views),
		Message: fmt.Sprintf("Successfully retrieved %d orders.", len(views)),
	}, nil
}

// UpdateStatus перезаписывает статус заказа. Допустим любой переход.
func (s *Service) UpdateStatus(ctx context.Context, orderID int64, status domain.OrderStatus) (order domain.Order, err error) {
	started := time.Now()
	defer func() { s.finish(opUpdateStatus, started, err) }()

	if !status.Valid() {
		return domain.Order{}, domain.NewError(domain.KindValidation, domain.ErrInvalidStatus, "%s", domain.ErrInvalidStatus.Error())
	}

	order, err = s.orders.UpdateStatus(ctx, orderID, status, s.now())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			return domain.Order{}, domain.NewError(domain.KindNotFound, err, "Order with ID %d not found", orderID)
		case errors.Is(err, domain.ErrInvalidStatus):
			return domain.Order{}, domain.NewError(domain.KindValidation, err, "%s", err.Error())
		default:
			s.logger.WithError(err).WithField("order_id", orderID).Error("order status update failed")
			return domain.Order{}, domain.NewError(domain.KindInternal, err, msgUpdateFailed)
		}
	}

	s.metrics.RecordStatusUpdate(string(order.Status))
	s.logger.WithFields(log.Fields{"order_id": order.ID, "status": order.Status}).Info("order status updated")

	return order, nil
}

func (s *Service) finish(operation string, started time.Time, err error) {
	s.metrics.ObserveDuration(operation, time.Since(started))
	if err != nil {
		s.metrics.RecordFailure(operation, string(domain.KindOf(err)))
	}
}
