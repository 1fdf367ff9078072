package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан и ждёт обработки.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusProcessing — заказ собирается.
	OrderStatusProcessing OrderStatus = "PROCESSING"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "SHIPPED"
	// OrderStatusDelivered — заказ получен покупателем.
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusCancelled — заказ отменён.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// totalPlaces — точность итоговой суммы заказа.
const totalPlaces = 2

// OrderStatuses возвращает все допустимые статусы в порядке рекомендуемого потока.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled,
	}
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// ParseOrderStatus разбирает строковое значение статуса.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(strings.TrimSpace(raw))
	if !status.Valid() {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// LineItem — одна позиция запроса на создание заказа.
type LineItem struct {
	ProductID int64
	Quantity  int
}

// OrderItem представляет сохранённую позицию заказа вместе с данными товара.
type OrderItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int
	// Product подтягивается из каталога при чтении, в позиции не хранится.
	Product Product
}

// Subtotal возвращает quantity * price по текущей цене товара.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID        int64
	OwnerID   int64
	Status    OrderStatus
	Items     []OrderItem
	Owner     UserSummary
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Total считает сумму заказа по текущим ценам товаров.
// Округление до двух знаков, половина округляется от нуля.
func (o Order) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range o.Items {
		sum = sum.Add(item.Subtotal())
	}
	return sum.Round(totalPlaces)
}

// ApplyStatus — единственная точка изменения статуса заказа.
// Переходы не ограничены: проверяется только принадлежность к перечислению.
func (o *Order) ApplyStatus(status OrderStatus, at time.Time) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	o.Status = status
	o.UpdatedAt = at
	return nil
}

// OrderDraft содержит всё, что нужно репозиторию для атомарного создания заказа.
type OrderDraft struct {
	OwnerID   int64
	Status    OrderStatus
	Items     []LineItem
	CreatedAt time.Time
	// ReserveStock включает списание остатков в той же транзакции.
	ReserveStock bool
}

// ValidateLineItems проверяет форму запроса до обращения к каталогу.
func ValidateLineItems(items []LineItem) error {
	if len(items) == 0 {
		return ErrItemsRequired
	}
	for _, item := range items {
		if item.ProductID <= 0 {
			return ErrProductIDInvalid
		}
		if item.Quantity <= 0 {
			return ErrItemQtyInvalid
		}
	}
	return nil
}
