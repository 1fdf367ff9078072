package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be a positive integer")
	// Ошибка при некорректном идентификаторе товара (<= 0).
	ErrProductIDInvalid = errors.New("item productId must be a positive integer")
	// Ошибка неизвестного статуса заказа.
	ErrInvalidStatus = errors.New("status must be one of PENDING, PROCESSING, SHIPPED, DELIVERED, CANCELLED")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderAccessDenied — заказ принадлежит другому пользователю.
	ErrOrderAccessDenied = errors.New("you do not have access to this order")
	// ErrProductNotFound возвращается каталогом для неизвестного товара.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock — запрошено больше, чем есть на складе.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrReferencedRecordNotFound — нарушение внешнего ключа при записи.
	ErrReferencedRecordNotFound = errors.New("referenced record not found")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// ErrorKind классифицирует ошибки сервиса заказов для транспорта.
type ErrorKind string

const (
	// KindValidation — некорректная форма запроса, хранилище не трогали.
	KindValidation ErrorKind = "validation"
	// KindInvalidRequest — запрос противоречит текущему состоянию данных.
	KindInvalidRequest ErrorKind = "invalid_request"
	// KindUnauthorized — заказ есть, но вызывающему он недоступен.
	KindUnauthorized ErrorKind = "unauthorized"
	// KindNotFound — сущность не существует.
	KindNotFound ErrorKind = "not_found"
	// KindInternal — непредвиденный сбой инфраструктуры.
	KindInternal ErrorKind = "internal"
)

// Error — типизированная ошибка сервиса. Message безопасно отдавать клиенту,
// Err хранит первопричину для логов и errors.Is/As.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError создаёт ошибку заданного вида.
func NewError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     cause,
	}
}

// KindOf возвращает вид ошибки; неклассифицированные ошибки считаются внутренними.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindInternal
}

// InsufficientStockError описывает позицию, для которой не хватает остатка.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf(
		"Insufficient stock for product: %s (ID %d). Available: %d, Requested: %d",
		e.ProductName, e.ProductID, e.Available, e.Requested,
	)
}

// Is позволяет сравнивать ошибку с ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
