package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/shopdesk/internal/domain"
)

const (
	opTimeout = 5 * time.Second

	pgForeignKeyViolation = "23503"
)

// queryer — общее подмножество *sql.DB и *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type orderRepository struct {
	db     *sql.DB
	outbox bool
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
// При withOutbox события заказа пишутся в outbox_messages в той же транзакции.
func NewOrderRepository(store *Store, withOutbox bool) domain.OrderRepository {
	return &orderRepository{db: store.DB(), outbox: withOutbox}
}

func (r *orderRepository) Create(ctx context.Context, draft domain.OrderDraft) (order domain.Order, err error) {
	if len(draft.Items) == 0 {
		return domain.Order{}, domain.ErrItemsRequired
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var orderID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		RETURNING id
	`, draft.OwnerID, string(draft.Status), draft.CreatedAt).Scan(&orderID)
	if err != nil {
		return domain.Order{}, mapWriteError("insert order", err)
	}

	for _, line := range draft.Items {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity)
			VALUES ($1, $2, $3)
		`, orderID, line.ProductID, line.Quantity); err != nil {
			return domain.Order{}, mapWriteError("insert order item", err)
		}
	}

	if draft.ReserveStock {
		if err = reserveStock(ctx, tx, draft.Items); err != nil {
			return domain.Order{}, err
		}
	}

	order, err = loadOrder(ctx, tx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	if r.outbox {
		if err = enqueueOrderEvent(ctx, tx, order, domain.NewOrderCreatedMessage); err != nil {
			return domain.Order{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit create order: %w", err)
	}

	return order, nil
}

func (r *orderRepository) Get(ctx context.Context, id int64) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return loadOrder(ctx, r.db, id)
}

func (r *orderRepository) List(ctx context.Context, scope domain.Scope) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		SELECT o.id, o.user_id, o.status, o.created_at, o.updated_at, u.name, u.email
		FROM orders o
		JOIN users u ON u.id = o.user_id
	`
	args := []any{}
	if ownerID, restricted := scope.OwnerID(); restricted {
		query += " WHERE o.user_id = $1"
		args = append(args, ownerID)
	}
	query += " ORDER BY o.created_at DESC, o.id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, 0, len(orders))
	for _, order := range orders {
		ids = append(ids, order.ID)
	}
	items, err := loadItems(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}

	return orders, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus, at time.Time) (order domain.Order, err error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	order, err = loadOrder(ctx, tx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if err = order.ApplyStatus(status, at); err != nil {
		return domain.Order{}, err
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2,
		    updated_at = $3
		WHERE id = $1
	`, order.ID, string(order.Status), order.UpdatedAt); err != nil {
		return domain.Order{}, fmt.Errorf("update order status: %w", err)
	}

	if r.outbox {
		if err = enqueueOrderEvent(ctx, tx, order, domain.NewOrderStatusChangedMessage); err != nil {
			return domain.Order{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit update order status: %w", err)
	}

	return order, nil
}

// reserveStock списывает остатки условным UPDATE; нулевой результат означает нехватку.
func reserveStock(ctx context.Context, tx *sql.Tx, items []domain.LineItem) error {
	need := make(map[int64]int, len(items))
	order := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := need[item.ProductID]; !ok {
			order = append(order, item.ProductID)
		}
		need[item.ProductID] += item.Quantity
	}

	for _, productID := range order {
		qty := need[productID]
		res, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $2
			WHERE id = $1
			  AND stock >= $2
		`, productID, qty)
		if err != nil {
			return fmt.Errorf("reserve stock for product %d: %w", productID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected for stock reservation: %w", err)
		}
		if affected > 0 {
			continue
		}

		var (
			name  string
			stock int
		)
		err = tx.QueryRowContext(ctx, `SELECT name, stock FROM products WHERE id = $1`, productID).Scan(&name, &stock)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrReferencedRecordNotFound
		}
		if err != nil {
			return fmt.Errorf("load product %d after failed reservation: %w", productID, err)
		}
		return &domain.InsufficientStockError{
			ProductID:   productID,
			ProductName: name,
			Available:   stock,
			Requested:   qty,
		}
	}

	return nil
}

func enqueueOrderEvent(ctx context.Context, q queryer, order domain.Order, build func(domain.Order) (domain.OutboxMessage, error)) error {
	msg, err := build(order)
	if err != nil {
		return err
	}
	_, err = insertOutboxMessage(ctx, q, msg)
	return err
}

func loadOrder(ctx context.Context, q queryer, id int64) (domain.Order, error) {
	row := q.QueryRowContext(ctx, `
		SELECT o.id, o.user_id, o.status, o.created_at, o.updated_at, u.name, u.email
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE o.id = $1
	`, id)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, err
	}

	items, err := loadItems(ctx, q, []int64{order.ID})
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items[order.ID]

	return order, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order  domain.Order
		status string
	)
	if err := row.Scan(
		&order.ID, &order.OwnerID, &status, &order.CreatedAt, &order.UpdatedAt,
		&order.Owner.Name, &order.Owner.Email,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, err
		}
		return domain.Order{}, fmt.Errorf("scan order row: %w", err)
	}
	order.Status = domain.OrderStatus(status)
	order.Owner.ID = order.OwnerID
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return order, nil
}

// loadItems возвращает позиции с текущими данными товаров, сгруппированные по заказу.
func loadItems(ctx context.Context, q queryer, orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity,
		       p.name, p.description, p.price, p.stock
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.id
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	result := make(map[int64][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.Quantity,
			&item.Product.Name, &item.Product.Description, &item.Product.Price, &item.Product.Stock,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.Product.ID = item.ProductID
		result[item.OrderID] = append(result[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return result, nil
}

// mapWriteError переводит нарушение внешнего ключа в доменную ошибку.
func mapWriteError(op string, err error) error {
	if pgErrorCode(err) == pgForeignKeyViolation {
		return fmt.Errorf("%s: %w", op, domain.ErrReferencedRecordNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

var _ domain.OrderRepository = (*orderRepository)(nil)
