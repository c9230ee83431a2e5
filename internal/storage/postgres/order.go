package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (session_id, status, subtotal, tax, shipping, total, idempotency_key)
	VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
	RETURNING id, created_at, updated_at`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, quantity, price)
	VALUES ($1, $2, $3, $4)
	RETURNING id`

	reserveStockSQL = `UPDATE products SET stock = stock - $2, updated_at = now()
	WHERE id = $1 AND stock >= $2
	RETURNING stock`

	currentStockSQL = `SELECT stock FROM products WHERE id = $1`

	getOrderSQL = `SELECT id, session_id, status, subtotal, tax, shipping, total,
		COALESCE(idempotency_key, ''), created_at, updated_at
	FROM orders WHERE id = $1`

	listOrderItemsSQL = `SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price,
		` + productColumns + `
	FROM order_items oi
	JOIN products p ON p.id = oi.product_id
	WHERE oi.order_id = $1
	ORDER BY oi.id`

	findOrderByKeySQL = `SELECT id FROM orders WHERE idempotency_key = $1`

	listIdempotencyKeysSQL = `SELECT idempotency_key FROM orders WHERE idempotency_key IS NOT NULL`

	idempotencyKeyConstraint = "orders_idempotency_key_key"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CreateFromCart persists o and its items, reserves stock, and empties the
// cart, all in one transaction. On success o carries the assigned ids and
// timestamps.
func (r *OrderRepository) CreateFromCart(ctx context.Context, o *order.Order, cartID int64) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, insertOrderSQL,
			o.SessionID, string(o.Status), o.Subtotal, o.Tax, o.Shipping, o.Total, o.IdempotencyKey,
		).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err, idempotencyKeyConstraint) {
				return order.ErrDuplicateIdempotencyKey
			}
			return errors.Wrap(err, "insert order")
		}

		for i := range o.Items {
			it := &o.Items[i]
			if err := reserveStock(ctx, tx, it.ProductID, it.Quantity); err != nil {
				return err
			}
			it.OrderID = o.ID
			if err := tx.QueryRow(ctx, insertOrderItemSQL,
				o.ID, it.ProductID, it.Quantity, it.Price,
			).Scan(&it.ID); err != nil {
				return errors.Wrap(err, "insert order item")
			}
		}

		if _, err := tx.Exec(ctx, clearCartSQL, cartID); err != nil {
			return errors.Wrap(err, "clear cart")
		}
		return touch(ctx, tx, cartID)
	})
}

// GetByID returns an order with its items and products.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := r.pool.QueryRow(ctx, getOrderSQL, id).Scan(
		&o.ID, &o.SessionID, &status, &o.Subtotal, &o.Tax, &o.Shipping, &o.Total,
		&o.IdempotencyKey, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %d", id)
	}
	o.Status = order.Status(status)

	rows, err := r.pool.Query(ctx, listOrderItemsSQL, id)
	if err != nil {
		return nil, errors.Wrap(err, "list order items")
	}
	o.Items, err = pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return nil, errors.Wrap(err, "scan order items")
	}
	return &o, nil
}

// FindByIdempotencyKey returns the order created with key.
func (r *OrderRepository) FindByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	var id int64
	if err := r.pool.QueryRow(ctx, findOrderByKeySQL, key).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrap(err, "find order by idempotency key")
	}
	return r.GetByID(ctx, id)
}

// IdempotencyKeys returns every stored idempotency key.
func (r *OrderRepository) IdempotencyKeys(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listIdempotencyKeysSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list idempotency keys")
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func reserveStock(ctx context.Context, tx pgx.Tx, productID int64, quantity int) error {
	var left int
	err := tx.QueryRow(ctx, reserveStockSQL, productID, quantity).Scan(&left)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return errors.Wrapf(err, "reserve stock for product %d", productID)
	}

	var available int
	if err := tx.QueryRow(ctx, currentStockSQL, productID).Scan(&available); err != nil {
		return errors.Wrapf(err, "read stock for product %d", productID)
	}
	return &cart.InsufficientStockError{ProductID: productID, Requested: quantity, Available: available}
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var it order.Item
	p := &it.Product
	err := row.Scan(
		&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price,
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Stock, &p.Images,
		&p.Thumbnail, &p.Rating, &p.DiscountPercentage, &p.CreatedAt, &p.UpdatedAt,
	)
	return it, err
}
