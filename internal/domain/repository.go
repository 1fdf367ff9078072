package domain

import (
	"context"
	"time"
)

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create атомарно сохраняет заказ и все его позиции.
	// Возвращает заказ с присвоенными идентификаторами и товарами позиций.
	Create(ctx context.Context, draft OrderDraft) (Order, error)
	// Get возвращает заказ с позициями, товарами и владельцем или ErrOrderNotFound.
	Get(ctx context.Context, id int64) (Order, error)
	// List возвращает заказы в scope, новые первыми.
	List(ctx context.Context, scope Scope) ([]Order, error)
	// UpdateStatus перезаписывает статус заказа.
	UpdateStatus(ctx context.Context, id int64, status OrderStatus, at time.Time) (Order, error)
}

// ProductCatalog — внешний каталог, из которого берутся цена и остаток.
type ProductCatalog interface {
	// GetProduct возвращает товар или ErrProductNotFound.
	GetProduct(ctx context.Context, id int64) (Product, error)
}
