package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	// AggregateTypeOrder — тип агрегата для outbox-сообщений заказа.
	AggregateTypeOrder = "order"

	EventTypeOrderCreated       = "order.created"
	EventTypeOrderStatusChanged = "order.status_changed"
)

// OrderEventItem — позиция заказа в payload события.
type OrderEventItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// OrderEventPayload — тело событий жизненного цикла заказа.
type OrderEventPayload struct {
	OrderID    int64            `json:"order_id"`
	UserID     int64            `json:"user_id"`
	Status     OrderStatus      `json:"status"`
	Items      []OrderEventItem `json:"items,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// NewOrderCreatedMessage собирает outbox-сообщение о создании заказа.
func NewOrderCreatedMessage(order Order) (OutboxMessage, error) {
	items := make([]OrderEventItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderEventItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return newOrderMessage(EventTypeOrderCreated, OrderEventPayload{
		OrderID:    order.ID,
		UserID:     order.OwnerID,
		Status:     order.Status,
		Items:      items,
		OccurredAt: order.CreatedAt,
	})
}

// NewOrderStatusChangedMessage собирает outbox-сообщение о смене статуса.
func NewOrderStatusChangedMessage(order Order) (OutboxMessage, error) {
	return newOrderMessage(EventTypeOrderStatusChanged, OrderEventPayload{
		OrderID:    order.ID,
		UserID:     order.OwnerID,
		Status:     order.Status,
		OccurredAt: order.UpdatedAt,
	})
}

func newOrderMessage(eventType string, payload OrderEventPayload) (OutboxMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return OutboxMessage{
		ID:            uuid.NewString(),
		AggregateType: AggregateTypeOrder,
		AggregateID:   strconv.FormatInt(payload.OrderID, 10),
		EventType:     eventType,
		Payload:       data,
	}, nil
}
