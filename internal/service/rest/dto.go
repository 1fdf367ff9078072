package rest

import (
	"time"

	"github.com/vladislavdragonenkov/shopdesk/internal/domain"
	"github.com/vladislavdragonenkov/shopdesk/internal/service/orders"
)

type createOrderItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type createOrderRequest struct {
	Items []createOrderItemRequest `json:"items"`
}

func (r createOrderRequest) lineItems() []domain.LineItem {
	items := make([]domain.LineItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, domain.LineItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return items
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type productJSON struct {
	ProductID   int64   `json:"productId"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Stock       int     `json:"stock"`
}

type orderItemJSON struct {
	OrderItemID int64       `json:"orderItemId"`
	OrderID     int64       `json:"orderId"`
	ProductID   int64       `json:"productId"`
	Quantity    int         `json:"quantity"`
	Product     productJSON `json:"product"`
}

type userJSON struct {
	UserID int64  `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

type orderJSON struct {
	OrderID    int64           `json:"orderId"`
	UserID     int64           `json:"userId"`
	Status     string          `json:"status"`
	OrderDate  time.Time       `json:"orderDate"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	OrderItems []orderItemJSON `json:"orderItems"`
	User       *userJSON       `json:"user,omitempty"`
	Total      *float64        `json:"total,omitempty"`
}

type orderListJSON struct {
	Orders  []orderJSON `json:"orders"`
	Count   int         `json:"count"`
	Message string      `json:"message"`
}

type errorJSON struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

func toOrderJSON(order domain.Order) orderJSON {
	items := make([]orderItemJSON, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemJSON{
			OrderItemID: item.ID,
			OrderID:     item.OrderID,
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			Product: productJSON{
				ProductID:   item.Product.ID,
				Name:        item.Product.Name,
				Price:       item.Product.Price.InexactFloat64(),
				Description: item.Product.Description,
				Stock:       item.Product.Stock,
			},
		})
	}

	return orderJSON{
		OrderID:    order.ID,
		UserID:     order.OwnerID,
		Status:     string(order.Status),
		OrderDate:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
		OrderItems: items,
	}
}

func toOrderViewJSON(view orders.OrderView) orderJSON {
	out := toOrderJSON(view.Order)
	out.User = &userJSON{
		UserID: view.Owner.ID,
		Name:   view.Owner.Name,
		Email:  view.Owner.Email,
	}
	total := view.Total.InexactFloat64()
	out.Total = &total
	return out
}

func toOrderListJSON(list orders.OrderList) orderListJSON {
	out := orderListJSON{
		Orders:  make([]orderJSON, 0, len(list.Orders)),
		Count:   list.Count,
		Message: list.Message,
	}
	for _, view := range list.Orders {
		out.Orders = append(out.Orders, toOrderViewJSON(view))
	}
	return out
}
