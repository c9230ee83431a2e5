package order

import (
	"context"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/pricing"
)

// Default sizing of the idempotency key filter.
const (
	DefaultKeyFilterCapacity = 1_000_000
	DefaultKeyFilterFPR      = 0.001
)

// PlaceResult holds the order created for a checkout. Replayed is true when
// the idempotency key matched an earlier order and nothing new was created.
type PlaceResult struct {
	Order    *Order
	Replayed bool
}

// Service converts session carts into orders.
type Service struct {
	carts  cart.Repository
	orders Repository
	rules  pricing.Rules

	// seen is a probabilistic set of idempotency keys already used. A negative
	// answer skips the repository lookup.
	seenMu sync.Mutex
	seen   *bloom.BloomFilter

	placed metric.Int64Counter
}

// Option configures a Service.
type Option func(*Service)

// WithMeterProvider records placed orders on a counter from mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) {
		counter, err := mp.Meter("storefront/order").Int64Counter("orders.placed",
			metric.WithDescription("Orders created from carts"),
		)
		if err == nil {
			s.placed = counter
		}
	}
}

// WithKeyFilter sizes the idempotency key filter for capacity keys at the
// given false positive rate. Non-positive values keep the defaults.
func WithKeyFilter(capacity uint, fpr float64) Option {
	return func(s *Service) {
		if capacity == 0 || fpr <= 0 || fpr >= 1 {
			return
		}
		s.seen = bloom.NewWithEstimates(capacity, fpr)
	}
}

// NewService creates an order Service pricing orders with rules.
func NewService(carts cart.Repository, orders Repository, rules pricing.Rules, opts ...Option) *Service {
	counter, _ := noop.NewMeterProvider().Meter("").Int64Counter("")
	s := &Service{
		carts:  carts,
		orders: orders,
		rules:  rules,
		seen:   bloom.NewWithEstimates(DefaultKeyFilterCapacity, DefaultKeyFilterFPR),
		placed: counter,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Warm loads every stored idempotency key into the in-memory filter.
func (s *Service) Warm(ctx context.Context) error {
	keys, err := s.orders.IdempotencyKeys(ctx)
	if err != nil {
		return errors.Wrap(err, "load idempotency keys")
	}
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	for _, k := range keys {
		s.seen.AddString(k)
	}
	return nil
}

// Place creates an order from the session's current cart and clears the
// cart. When idempotencyKey is non-empty and already used, the earlier order
// is returned instead.
func (s *Service) Place(ctx context.Context, sessionID, idempotencyKey string) (*PlaceResult, error) {
	if idempotencyKey != "" && s.maybeSeen(idempotencyKey) {
		prev, err := s.orders.FindByIdempotencyKey(ctx, idempotencyKey)
		switch {
		case err == nil:
			return replay(prev, sessionID)
		case !errors.Is(err, ErrNotFound):
			return nil, errors.Wrap(err, "find by idempotency key")
		}
	}

	c, err := s.carts.GetBySession(ctx, sessionID)
	if errors.Is(err, cart.ErrNotFound) || (err == nil && c.IsEmpty()) {
		return nil, ErrEmptyCart
	}
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}

	items := make([]Item, len(c.Items))
	for i, it := range c.Items {
		if it.Quantity > it.Product.Stock {
			return nil, &cart.InsufficientStockError{
				ProductID: it.ProductID,
				Requested: it.Quantity,
				Available: it.Product.Stock,
			}
		}
		items[i] = Item{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Product.Price,
			Product:   it.Product,
		}
	}

	totals := s.rules.Calculate(c.Lines())
	o := &Order{
		SessionID:      sessionID,
		Status:         StatusPlaced,
		Items:          items,
		Subtotal:       totals.Subtotal,
		Tax:            totals.Tax,
		Shipping:       totals.Shipping,
		Total:          totals.Total,
		IdempotencyKey: idempotencyKey,
	}

	if err := s.orders.CreateFromCart(ctx, o, c.ID); err != nil {
		if errors.Is(err, ErrDuplicateIdempotencyKey) {
			// Lost a race with a concurrent checkout using the same key.
			prev, ferr := s.orders.FindByIdempotencyKey(ctx, idempotencyKey)
			if ferr != nil {
				return nil, errors.Wrap(ferr, "find by idempotency key")
			}
			return replay(prev, sessionID)
		}
		return nil, errors.Wrap(err, "create order")
	}

	if idempotencyKey != "" {
		s.seenMu.Lock()
		s.seen.AddString(idempotencyKey)
		s.seenMu.Unlock()
	}
	s.placed.Add(ctx, 1)

	return &PlaceResult{Order: o}, nil
}

// replay returns the order previously created under a key, provided it was
// created for the same session.
func replay(prev *Order, sessionID string) (*PlaceResult, error) {
	if prev.SessionID != sessionID {
		return nil, ErrIdempotencyKeyConflict
	}
	return &PlaceResult{Order: prev, Replayed: true}, nil
}

// Get returns an order by id.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *Service) maybeSeen(key string) bool {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	return s.seen.TestString(key)
}
