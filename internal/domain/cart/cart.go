package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-storefront/internal/domain/pricing"
	"github.com/xenking/kart-storefront/internal/domain/product"
)

var (
	// ErrNotFound is returned when no cart exists for a session yet.
	ErrNotFound = errors.New("cart not found")
	// ErrItemNotFound is returned when a line item is not part of the cart.
	ErrItemNotFound = errors.New("cart item not found")
)

// InvalidQuantityError indicates a non-positive quantity for a new line.
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be a positive integer, got %d", e.Quantity)
}

// InsufficientStockError indicates the requested quantity exceeds stock.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("product %d: requested %d, only %d in stock", e.ProductID, e.Requested, e.Available)
}

// Cart is the set of line items owned by one session. There is at most one
// cart per session identifier.
type Cart struct {
	ID        int64
	SessionID string
	Items     []Item
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is a product and quantity within a cart. Quantity is always >= 1.
type Item struct {
	ID        int64
	CartID    int64
	ProductID int64
	Quantity  int
	Product   product.Product
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Empty returns an unsaved cart with no items for sessionID.
func Empty(sessionID string) *Cart {
	return &Cart{SessionID: sessionID, Items: []Item{}}
}

// IsEmpty reports whether c is nil or has no items.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Lines converts the cart items into pricing lines.
func (c *Cart) Lines() []pricing.Line {
	if c == nil {
		return nil
	}
	lines := make([]pricing.Line, len(c.Items))
	for i, it := range c.Items {
		lines[i] = pricing.Line{Price: it.Product.Price, Quantity: it.Quantity}
	}
	return lines
}

// Item returns the line with the given id.
func (c *Cart) Item(id int64) (Item, bool) {
	if c == nil {
		return Item{}, false
	}
	for _, it := range c.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// ItemForProduct returns the line holding productID.
func (c *Cart) ItemForProduct(productID int64) (Item, bool) {
	if c == nil {
		return Item{}, false
	}
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return Item{}, false
}

// Repository defines persistence operations for carts.
type Repository interface {
	// GetBySession returns the cart with items and products joined, or
	// ErrNotFound.
	GetBySession(ctx context.Context, sessionID string) (*Cart, error)
	// Ensure returns the id of the session's cart, creating it if needed.
	Ensure(ctx context.Context, sessionID string) (int64, error)
	// AddItem inserts a line for productID or increments the existing one.
	AddItem(ctx context.Context, cartID, productID int64, quantity int) error
	// SetQuantity overwrites the quantity of an existing line.
	SetQuantity(ctx context.Context, cartID, itemID int64, quantity int) error
	// RemoveItem deletes a line. Returns ErrItemNotFound if absent.
	RemoveItem(ctx context.Context, cartID, itemID int64) error
	// Clear deletes every line but keeps the cart.
	Clear(ctx context.Context, cartID int64) error
}
