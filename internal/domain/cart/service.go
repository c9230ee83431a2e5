package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-storefront/internal/domain/product"
)

// Service implements the server-side cart rules: lazy cart creation,
// increment on re-add, stock checks and removal on non-positive updates.
type Service struct {
	carts    Repository
	products product.Repository
}

// NewService creates a cart Service.
func NewService(carts Repository, products product.Repository) *Service {
	return &Service{carts: carts, products: products}
}

// Get returns the session's cart or ErrNotFound.
func (s *Service) Get(ctx context.Context, sessionID string) (*Cart, error) {
	return s.carts.GetBySession(ctx, sessionID)
}

// AddItem adds quantity of productID to the session's cart, creating the
// cart on first use and incrementing an existing line for the same product.
func (s *Service) AddItem(ctx context.Context, sessionID string, productID int64, quantity int) (*Cart, error) {
	if quantity < 1 {
		return nil, &InvalidQuantityError{Quantity: quantity}
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}

	current, err := s.carts.GetBySession(ctx, sessionID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrap(err, "get cart")
	}

	want := quantity
	if it, ok := current.ItemForProduct(productID); ok {
		want += it.Quantity
	}
	if want > p.Stock {
		return nil, &InsufficientStockError{ProductID: productID, Requested: want, Available: p.Stock}
	}

	cartID, err := s.carts.Ensure(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "ensure cart")
	}
	if err := s.carts.AddItem(ctx, cartID, productID, quantity); err != nil {
		return nil, errors.Wrap(err, "add item")
	}

	return s.carts.GetBySession(ctx, sessionID)
}

// UpdateItem sets the quantity of a line. A quantity <= 0 removes the line.
func (s *Service) UpdateItem(ctx context.Context, sessionID string, itemID int64, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, sessionID, itemID)
	}

	c, err := s.carts.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	it, ok := c.Item(itemID)
	if !ok {
		return nil, ErrItemNotFound
	}
	if quantity > it.Product.Stock {
		return nil, &InsufficientStockError{ProductID: it.ProductID, Requested: quantity, Available: it.Product.Stock}
	}

	if err := s.carts.SetQuantity(ctx, c.ID, itemID, quantity); err != nil {
		return nil, errors.Wrap(err, "set quantity")
	}
	return s.carts.GetBySession(ctx, sessionID)
}

// RemoveItem deletes a line from the session's cart.
func (s *Service) RemoveItem(ctx context.Context, sessionID string, itemID int64) (*Cart, error) {
	c, err := s.carts.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.carts.RemoveItem(ctx, c.ID, itemID); err != nil {
		return nil, err
	}
	return s.carts.GetBySession(ctx, sessionID)
}

// Clear removes every line from the session's cart. Clearing a session
// without a cart is not an error and returns an empty cart.
func (s *Service) Clear(ctx context.Context, sessionID string) (*Cart, error) {
	c, err := s.carts.GetBySession(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return Empty(sessionID), nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.carts.Clear(ctx, c.ID); err != nil {
		return nil, errors.Wrap(err, "clear cart")
	}
	return s.carts.GetBySession(ctx, sessionID)
}
