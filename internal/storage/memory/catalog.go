package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shopdesk/internal/domain"
)

// Catalog — in-memory каталог товаров и справочник пользователей.
// Заменяет внешние сервисы при storage driver "memory" и в тестах.
type Catalog struct {
	mu            sync.RWMutex
	products      map[int64]domain.Product
	users         map[int64]domain.UserSummary
	nextProductID int64
	nextUserID    int64
}

// NewCatalog создаёт пустой каталог.
func NewCatalog() *Catalog {
	return &Catalog{
		products: make(map[int64]domain.Product),
		users:    make(map[int64]domain.UserSummary),
	}
}

// DemoUsers — демонстрационные владельцы заказов.
func DemoUsers() []domain.UserSummary {
	return []domain.UserSummary{
		{ID: 1, Name: "Admin", Email: "admin@example.com"},
		{ID: 2, Name: "Jane Doe", Email: "jane@example.com"},
	}
}

// DemoProducts — демонстрационный каталог.
func DemoProducts() []domain.Product {
	return []domain.Product{
		{ID: 1, Name: "Mechanical Keyboard", Description: "Hot-swappable 75% keyboard", Price: decimal.RequireFromString("129.99"), Stock: 25},
		{ID: 2, Name: "Wireless Mouse", Description: "Ergonomic, 2.4 GHz", Price: decimal.RequireFromString("49.50"), Stock: 40},
		{ID: 3, Name: "USB-C Hub", Description: "7-in-1 with HDMI", Price: decimal.RequireFromString("35.00"), Stock: 5},
	}
}

// NewDemoCatalog возвращает каталог с демонстрационными пользователями и товарами.
func NewDemoCatalog() *Catalog {
	c := NewCatalog()
	for _, u := range DemoUsers() {
		c.AddUser(u)
	}
	for _, p := range DemoProducts() {
		c.AddProduct(p)
	}
	return c
}

// AddProduct сохраняет товар; нулевой ID заменяется следующим свободным.
func (c *Catalog) AddProduct(p domain.Product) domain.Product {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p.ID == 0 {
		c.nextProductID++
		p.ID = c.nextProductID
	} else if p.ID > c.nextProductID {
		c.nextProductID = p.ID
	}
	c.products[p.ID] = p
	return p
}

// AddUser регистрирует пользователя; нулевой ID заменяется следующим свободным.
func (c *Catalog) AddUser(u domain.UserSummary) domain.UserSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	if u.ID == 0 {
		c.nextUserID++
		u.ID = c.nextUserID
	} else if u.ID > c.nextUserID {
		c.nextUserID = u.ID
	}
	c.users[u.ID] = u
	return u
}

// RemoveProduct удаляет товар из каталога.
func (c *Catalog) RemoveProduct(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, id)
}

// SetPrice меняет текущую цену товара.
func (c *Catalog) SetPrice(id int64, price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.products[id]; ok {
		p.Price = price
		c.products[id] = p
	}
}

// GetProduct возвращает товар или ErrProductNotFound.
func (c *Catalog) GetProduct(_ context.Context, id int64) (domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

func (c *Catalog) user(id int64) (domain.UserSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.users[id]
	return u, ok
}

func (c *Catalog) product(id int64) (domain.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	return p, ok
}

// checkReferences повторяет проверку внешних ключей при записи заказа.
// При reserve списывает остатки: либо все позиции, либо ни одной.
func (c *Catalog) checkReferences(ownerID int64, items []domain.LineItem, reserve bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.users[ownerID]; !ok {
		return domain.ErrReferencedRecordNotFound
	}

	need := make(map[int64]int, len(items))
	order := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := c.products[item.ProductID]; !ok {
			return domain.ErrReferencedRecordNotFound
		}
		if _, seen := need[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		need[item.ProductID] += item.Quantity
	}
	if !reserve {
		return nil
	}

	for _, id := range order {
		p := c.products[id]
		qty := need[id]
		if p.Stock < qty {
			return &domain.InsufficientStockError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Available:   p.Stock,
				Requested:   qty,
			}
		}
	}
	for id, qty := range need {
		p := c.products[id]
		p.Stock -= qty
		c.products[id] = p
	}
	return nil
}

var _ domain.ProductCatalog = (*Catalog)(nil)
