package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

const (
	getCartBySessionSQL = `SELECT id, session_id, created_at, updated_at FROM carts WHERE session_id = $1`

	listCartItemsSQL = `SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at,
		` + productColumns + `
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id
	WHERE ci.cart_id = $1
	ORDER BY ci.id`

	ensureCartSQL = `INSERT INTO carts (session_id) VALUES ($1)
	ON CONFLICT (session_id) DO UPDATE SET updated_at = now()
	RETURNING id`

	addCartItemSQL = `INSERT INTO cart_items (cart_id, product_id, quantity) VALUES ($1, $2, $3)
	ON CONFLICT (cart_id, product_id) DO UPDATE SET
		quantity = cart_items.quantity + EXCLUDED.quantity,
		updated_at = now()`

	setCartItemQuantitySQL = `UPDATE cart_items SET quantity = $3, updated_at = now()
	WHERE cart_id = $1 AND id = $2`

	removeCartItemSQL = `DELETE FROM cart_items WHERE cart_id = $1 AND id = $2`

	clearCartSQL = `DELETE FROM cart_items WHERE cart_id = $1`

	touchCartSQL = `UPDATE carts SET updated_at = now() WHERE id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// GetBySession returns the session's cart with products joined.
func (r *CartRepository) GetBySession(ctx context.Context, sessionID string) (*cart.Cart, error) {
	return getCart(ctx, r.pool, sessionID)
}

// Ensure returns the id of the session's cart, creating it if needed.
func (r *CartRepository) Ensure(ctx context.Context, sessionID string) (int64, error) {
	var id int64
	if err := r.pool.QueryRow(ctx, ensureCartSQL, sessionID).Scan(&id); err != nil {
		return 0, errors.Wrap(err, "ensure cart")
	}
	return id, nil
}

// AddItem inserts a line or increments the existing line for the product.
func (r *CartRepository) AddItem(ctx context.Context, cartID, productID int64, quantity int) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, addCartItemSQL, cartID, productID, quantity); err != nil {
			return errors.Wrap(err, "add cart item")
		}
		return touch(ctx, tx, cartID)
	})
}

// SetQuantity replaces the quantity of a line.
func (r *CartRepository) SetQuantity(ctx context.Context, cartID, itemID int64, quantity int) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, setCartItemQuantitySQL, cartID, itemID, quantity)
		if err != nil {
			return errors.Wrap(err, "set cart item quantity")
		}
		if tag.RowsAffected() == 0 {
			return cart.ErrItemNotFound
		}
		return touch(ctx, tx, cartID)
	})
}

// RemoveItem deletes a line.
func (r *CartRepository) RemoveItem(ctx context.Context, cartID, itemID int64) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, removeCartItemSQL, cartID, itemID)
		if err != nil {
			return errors.Wrap(err, "remove cart item")
		}
		if tag.RowsAffected() == 0 {
			return cart.ErrItemNotFound
		}
		return touch(ctx, tx, cartID)
	})
}

// Clear deletes every line of the cart. The cart itself is kept.
func (r *CartRepository) Clear(ctx context.Context, cartID int64) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, clearCartSQL, cartID); err != nil {
			return errors.Wrap(err, "clear cart")
		}
		return touch(ctx, tx, cartID)
	})
}

func getCart(ctx context.Context, q querier, sessionID string) (*cart.Cart, error) {
	var c cart.Cart
	err := q.QueryRow(ctx, getCartBySessionSQL, sessionID).Scan(&c.ID, &c.SessionID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get cart for session %q", sessionID)
	}

	rows, err := q.Query(ctx, listCartItemsSQL, c.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart items")
	}
	c.Items, err = pgx.CollectRows(rows, scanCartItem)
	if err != nil {
		return nil, errors.Wrap(err, "scan cart items")
	}
	return &c, nil
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var it cart.Item
	p := &it.Product
	err := row.Scan(
		&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &it.CreatedAt, &it.UpdatedAt,
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Stock, &p.Images,
		&p.Thumbnail, &p.Rating, &p.DiscountPercentage, &p.CreatedAt, &p.UpdatedAt,
	)
	return it, err
}

func touch(ctx context.Context, q querier, cartID int64) error {
	if _, err := q.Exec(ctx, touchCartSQL, cartID); err != nil {
		return errors.Wrap(err, "touch cart")
	}
	return nil
}
