// Package checkout places orders from the shopper's cart and keeps the list
// of orders placed from this client.
package checkout

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-storefront/internal/cartstore"
	"github.com/xenking/kart-storefront/internal/client"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/kv"
	"github.com/xenking/kart-storefront/internal/wire"
)

// OrderIDsKey is the kv key holding the JSON array of placed order ids.
const OrderIDsKey = "order_ids"

const lookupConcurrency = 8

// OrderAPI is the subset of the remote API used for orders.
type OrderAPI interface {
	CreateOrder(ctx context.Context, sessionID, idempotencyKey string) (*order.Order, error)
	GetOrder(ctx context.Context, id int64) (*order.Order, error)
}

var _ OrderAPI = (*client.Client)(nil)

// Service places orders for one session.
type Service struct {
	api       OrderAPI
	carts     *cartstore.Store
	kv        kv.Store
	sessionID string
	notifier  cartstore.Notifier
	lg        *zap.Logger

	// idsMu serializes the read-modify-write of OrderIDsKey.
	idsMu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the Notifier receiving checkout outcomes.
func WithNotifier(n cartstore.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(lg *zap.Logger) Option {
	return func(s *Service) { s.lg = lg }
}

// New creates a checkout Service.
func New(api OrderAPI, carts *cartstore.Store, store kv.Store, sessionID string, opts ...Option) *Service {
	s := &Service{
		api:       api,
		carts:     carts,
		kv:        store,
		sessionID: sessionID,
		notifier:  cartstore.NewLogNotifier(zap.NewNop()),
		lg:        zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewIdempotencyKey returns a fresh key for one checkout attempt. Retries of
// the same attempt must reuse it.
func NewIdempotencyKey() string {
	return uuid.NewString()
}

// PlaceOrder creates an order from the server-side cart. On success the
// local cart is reset and the order id remembered. On failure the cart is
// left untouched.
func (s *Service) PlaceOrder(ctx context.Context, idempotencyKey string) (*order.Order, error) {
	o, err := s.api.CreateOrder(ctx, s.sessionID, idempotencyKey)
	if err != nil {
		s.notifier.Error(client.Message(err), err)
		return nil, errors.Wrap(err, "create order")
	}

	s.carts.Reset(ctx)
	if err := s.remember(ctx, o.ID); err != nil {
		s.lg.Warn("Failed to remember order", zap.Int64("order_id", o.ID), zap.Error(err))
	}
	s.notifier.Success("Order placed successfully!")
	return o, nil
}

// Order returns a single order.
func (s *Service) Order(ctx context.Context, id int64) (*order.Order, error) {
	return s.api.GetOrder(ctx, id)
}

// Orders fetches every remembered order. Orders that cannot be fetched are
// skipped; the result keeps the order in which they were placed.
func (s *Service) Orders(ctx context.Context) ([]*order.Order, error) {
	ids, err := s.OrderIDs(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*order.Order, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			o, err := s.api.GetOrder(gctx, id)
			if err != nil {
				s.lg.Debug("Skipping order", zap.Int64("order_id", id), zap.Error(err))
				return nil
			}
			results[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*order.Order, 0, len(results))
	for _, o := range results {
		if o != nil {
			out = append(out, o)
		}
	}
	return out, nil
}

// OrderIDs returns the remembered order ids in placement order.
func (s *Service) OrderIDs(ctx context.Context) ([]int64, error) {
	raw, err := s.kv.Get(ctx, OrderIDsKey)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read order ids")
	}

	var ids []int64
	if err := jx.DecodeStr(raw).Arr(func(d *jx.Decoder) error {
		id, err := d.Int64()
		if err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode order ids")
	}
	return ids, nil
}

func (s *Service) remember(ctx context.Context, id int64) error {
	s.idsMu.Lock()
	defer s.idsMu.Unlock()

	ids, err := s.OrderIDs(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(ids, id) {
		return nil
	}
	ids = append(ids, id)

	raw := wire.Encode(func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, id := range ids {
				e.Int64(id)
			}
		})
	})
	if err := s.kv.Set(ctx, OrderIDsKey, string(raw)); err != nil {
		return errors.Wrap(err, "write order ids")
	}
	return nil
}
