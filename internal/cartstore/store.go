// Package cartstore holds the client-side view of the shopper's cart. It
// mirrors the server cart, tracks request state for rendering, and persists
// the last known cart locally so it survives restarts.
package cartstore

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/client"
	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/pricing"
	"github.com/xenking/kart-storefront/internal/kv"
)

// ErrInvalidQuantity is returned by AddItem for quantities below one.
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// CartAPI is the subset of the remote API used by the store.
type CartAPI interface {
	GetCart(ctx context.Context, sessionID string) (*cart.Cart, error)
	AddCartItem(ctx context.Context, sessionID string, productID int64, quantity int) (*cart.Cart, error)
	UpdateCartItem(ctx context.Context, sessionID string, itemID int64, quantity int) (*cart.Cart, error)
	RemoveCartItem(ctx context.Context, sessionID string, itemID int64) (*cart.Cart, error)
	ClearCart(ctx context.Context, sessionID string) (*cart.Cart, error)
}

var _ CartAPI = (*client.Client)(nil)

// Snapshot is the observable state of the store.
type Snapshot struct {
	// Cart is the last cart confirmed by the server, or nil.
	Cart *cart.Cart
	// Loading is true while any request is in flight.
	Loading bool
	// Err is the failure of the most recent request, cleared when the next
	// one starts.
	Err error
}

// Store is safe for concurrent use. Overlapping mutations are not
// coordinated: the last response to arrive wins.
type Store struct {
	api       CartAPI
	kv        kv.Store
	sessionID string
	rules     pricing.Rules
	notifier  Notifier
	lg        *zap.Logger

	mu       sync.Mutex
	cart     *cart.Cart
	inflight int
	err      error
	hydrated bool
	subs     map[int]func(Snapshot)
	nextSub  int
}

// Option configures a Store.
type Option func(*Store)

// WithNotifier sets the Notifier receiving operation outcomes.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithRules sets the pricing rules used by Totals.
func WithRules(r pricing.Rules) Option {
	return func(s *Store) { s.rules = r }
}

// WithLogger sets the logger.
func WithLogger(lg *zap.Logger) Option {
	return func(s *Store) { s.lg = lg }
}

// New creates a Store for sessionID.
func New(api CartAPI, store kv.Store, sessionID string, opts ...Option) *Store {
	s := &Store{
		api:       api,
		kv:        store,
		sessionID: sessionID,
		rules:     pricing.DefaultRules,
		notifier:  nopNotifier{},
		lg:        zap.NewNop(),
		subs:      make(map[int]func(Snapshot)),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SessionID returns the session the store belongs to.
func (s *Store) SessionID() string { return s.sessionID }

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Cart returns the current cart, or nil.
func (s *Store) Cart() *cart.Cart {
	return s.Snapshot().Cart
}

// Hydrated reports whether Hydrate has completed.
func (s *Store) Hydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrated
}

// Totals prices the current cart. An empty or absent cart totals zero.
func (s *Store) Totals() pricing.Totals {
	return s.rules.Calculate(s.Cart().Lines())
}

// ItemCount returns the number of units in the cart.
func (s *Store) ItemCount() int {
	return pricing.ItemCount(s.Cart().Lines())
}

// IsEmpty reports whether the cart has no lines.
func (s *Store) IsEmpty() bool {
	return s.Cart().IsEmpty()
}

// Subscribe registers fn to receive every state change. The returned
// function removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Hydrate restores the persisted cart. A snapshot saved for another session
// or one that cannot be decoded is discarded.
func (s *Store) Hydrate(ctx context.Context) error {
	raw, err := s.kv.Get(ctx, StorageKey)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		s.setHydrated(nil)
		return nil
	case err != nil:
		return errors.Wrap(err, "read cart snapshot")
	}

	c, err := decodeState(raw)
	if err != nil {
		s.lg.Warn("Discarding unreadable cart snapshot", zap.Error(err))
		c = nil
	}
	if c != nil && c.SessionID != "" && c.SessionID != s.sessionID {
		s.lg.Debug("Discarding cart snapshot of another session",
			zap.String("snapshot_session", c.SessionID),
		)
		c = nil
	}
	s.setHydrated(c)
	return nil
}

// Fetch loads the cart from the server. A session without a server cart
// gets an empty cart rather than an error.
func (s *Store) Fetch(ctx context.Context) error {
	return s.mutate(ctx, "", func(ctx context.Context) (*cart.Cart, error) {
		c, err := s.api.GetCart(ctx, s.sessionID)
		if client.IsNotFound(err) {
			return cart.Empty(s.sessionID), nil
		}
		return c, err
	})
}

// AddItem adds quantity units of productID.
func (s *Store) AddItem(ctx context.Context, productID int64, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	return s.mutate(ctx, "Item added to cart!", func(ctx context.Context) (*cart.Cart, error) {
		return s.api.AddCartItem(ctx, s.sessionID, productID, quantity)
	})
}

// UpdateItem sets the quantity of a line. A quantity of zero or less
// removes the line.
func (s *Store) UpdateItem(ctx context.Context, itemID int64, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, itemID)
	}
	return s.mutate(ctx, "Cart updated!", func(ctx context.Context) (*cart.Cart, error) {
		return s.api.UpdateCartItem(ctx, s.sessionID, itemID, quantity)
	})
}

// RemoveItem deletes a line.
func (s *Store) RemoveItem(ctx context.Context, itemID int64) error {
	return s.mutate(ctx, "Item removed from cart!", func(ctx context.Context) (*cart.Cart, error) {
		return s.api.RemoveCartItem(ctx, s.sessionID, itemID)
	})
}

// Clear empties the cart on the server and forgets it locally.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, "Cart cleared!", func(ctx context.Context) (*cart.Cart, error) {
		if _, err := s.api.ClearCart(ctx, s.sessionID); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

// Reset forgets the cart locally without contacting the server. Used after
// the server has consumed the cart, e.g. on checkout.
func (s *Store) Reset(ctx context.Context) {
	s.mu.Lock()
	s.cart = nil
	s.err = nil
	s.persistLocked(ctx)
	snap, subs := s.snapshotLocked(), s.subscribersLocked()
	s.mu.Unlock()

	publish(subs, snap)
}

// mutate runs call with the loading flag raised. On success the returned
// cart replaces the local one; on failure the previous cart is kept.
func (s *Store) mutate(ctx context.Context, successMessage string, call func(ctx context.Context) (*cart.Cart, error)) error {
	s.begin()

	c, err := call(ctx)
	if err != nil {
		s.finish(ctx, nil, err)
		s.notifier.Error(client.Message(err), err)
		return err
	}

	s.finish(ctx, c, nil)
	if successMessage != "" {
		s.notifier.Success(successMessage)
	}
	return nil
}

func (s *Store) begin() {
	s.mu.Lock()
	s.inflight++
	s.err = nil
	snap, subs := s.snapshotLocked(), s.subscribersLocked()
	s.mu.Unlock()

	publish(subs, snap)
}

func (s *Store) finish(ctx context.Context, c *cart.Cart, err error) {
	s.mu.Lock()
	s.inflight--
	if err != nil {
		s.err = err
	} else {
		s.cart = c
		s.persistLocked(ctx)
	}
	snap, subs := s.snapshotLocked(), s.subscribersLocked()
	s.mu.Unlock()

	publish(subs, snap)
}

func (s *Store) setHydrated(c *cart.Cart) {
	s.mu.Lock()
	s.hydrated = true
	if s.cart == nil {
		s.cart = c
	}
	snap, subs := s.snapshotLocked(), s.subscribersLocked()
	s.mu.Unlock()

	publish(subs, snap)
}

// persistLocked saves the current cart. Failures only cost the local cache
// and are logged. Caller holds mu.
func (s *Store) persistLocked(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	var err error
	if s.cart == nil {
		err = s.kv.Delete(ctx, StorageKey)
	} else {
		err = s.kv.Set(ctx, StorageKey, encodeState(s.cart))
	}
	if err != nil {
		s.lg.Warn("Failed to persist cart snapshot", zap.Error(err))
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Cart: s.cart, Loading: s.inflight > 0, Err: s.err}
}

func (s *Store) subscribersLocked() []func(Snapshot) {
	if len(s.subs) == 0 {
		return nil
	}
	out := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

func publish(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}
