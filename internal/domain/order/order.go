package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/domain/product"
)

var (
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyCart is returned when checking out a session without items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrDuplicateIdempotencyKey is returned by Repository.CreateFromCart when
	// another order already holds the key.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
	// ErrIdempotencyKeyConflict is returned by Service.Place when the key
	// already belongs to an order of another session.
	ErrIdempotencyKeyConflict = errors.New("idempotency key belongs to another session")
)

// Status is the fulfillment state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPlaced    Status = "placed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPlaced, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether fulfillment may move an order from s to next.
// Orders only move forward, and can be cancelled until they ship.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusPlaced || next == StatusCancelled
	case StatusPlaced:
		return next == StatusShipped || next == StatusCancelled
	case StatusShipped:
		return next == StatusDelivered
	}
	return false
}

// Order is an immutable snapshot of a cart at checkout time.
type Order struct {
	ID             int64
	SessionID      string
	Status         Status
	Items          []Item
	Subtotal       decimal.Decimal
	Tax            decimal.Decimal
	Shipping       decimal.Decimal
	Total          decimal.Decimal
	IdempotencyKey string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Item is an order line with the unit price captured at purchase.
type Item struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int
	Price     decimal.Decimal
	Product   product.Product
}

// Repository defines persistence operations for orders.
type Repository interface {
	// CreateFromCart persists o, assigning ids, and clears the cart in the
	// same transaction.
	CreateFromCart(ctx context.Context, o *Order, cartID int64) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*Order, error)
	IdempotencyKeys(ctx context.Context) ([]string, error)
}
