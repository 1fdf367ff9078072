package domain

import "github.com/shopspring/decimal"

// Product — позиция каталога, которую читает сервис заказов.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
}

// Role задаёт уровень доступа пользователя.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Identity — аутентифицированный вызывающий.
type Identity struct {
	UserID int64
	Role   Role
}

// IsAdmin сообщает, есть ли у вызывающего расширенные права.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// UserSummary — сокращённое представление владельца заказа.
type UserSummary struct {
	ID    int64
	Name  string
	Email string
}

// Scope ограничивает видимость заказов владельцем.
// Нулевое значение означает доступ ко всем заказам.
type Scope struct {
	ownerID    int64
	restricted bool
}

// AllOrders возвращает scope без ограничения по владельцу.
func AllOrders() Scope {
	return Scope{}
}

// OwnedBy ограничивает выборку заказами пользователя.
func OwnedBy(userID int64) Scope {
	return Scope{ownerID: userID, restricted: true}
}

// ScopeFor выводит scope из роли вызывающего.
func ScopeFor(identity Identity) Scope {
	if identity.IsAdmin() {
		return AllOrders()
	}
	return OwnedBy(identity.UserID)
}

// OwnerID возвращает владельца и признак наличия ограничения.
func (s Scope) OwnerID() (int64, bool) {
	return s.ownerID, s.restricted
}

// Allows проверяет, виден ли заказ владельца ownerID в этом scope.
func (s Scope) Allows(ownerID int64) bool {
	id, restricted := s.OwnerID()
	return !restricted || id == ownerID
}
