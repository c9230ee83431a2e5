package checkout

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-storefront/internal/cartstore"
	"github.com/xenking/kart-storefront/internal/client"
	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/kv"
)

// --- Mock implementations ---

type mockOrderAPI struct {
	mu        sync.Mutex
	created   *order.Order
	createErr error
	keys      []string
	orders    map[int64]*order.Order
}

func (m *mockOrderAPI) CreateOrder(_ context.Context, _ string, key string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.created, nil
}

func (m *mockOrderAPI) GetOrder(_ context.Context, id int64) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, &client.StatusError{StatusCode: http.StatusNotFound, Message: "order not found"}
	}
	return o, nil
}

type stubCartAPI struct {
	cart *cart.Cart
}

func (s *stubCartAPI) GetCart(context.Context, string) (*cart.Cart, error) { return s.cart, nil }

func (s *stubCartAPI) AddCartItem(context.Context, string, int64, int) (*cart.Cart, error) {
	return s.cart, nil
}

func (s *stubCartAPI) UpdateCartItem(context.Context, string, int64, int) (*cart.Cart, error) {
	return s.cart, nil
}

func (s *stubCartAPI) RemoveCartItem(context.Context, string, int64) (*cart.Cart, error) {
	return s.cart, nil
}

func (s *stubCartAPI) ClearCart(context.Context, string) (*cart.Cart, error) { return s.cart, nil }

type recordingNotifier struct {
	successes []string
	errors    []string
}

func (n *recordingNotifier) Success(message string) { n.successes = append(n.successes, message) }
func (n *recordingNotifier) Error(message string, _ error) { n.errors = append(n.errors, message) }

// --- Helpers ---

type fixture struct {
	svc      *Service
	api      *mockOrderAPI
	carts    *cartstore.Store
	kv       kv.Store
	notifier *recordingNotifier
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mem := kv.NewMemory()
	carts := cartstore.New(&stubCartAPI{cart: &cart.Cart{
		ID:        1,
		SessionID: "s1",
		Items:     []cart.Item{{ID: 10, ProductID: 5, Quantity: 1}},
	}}, mem, "s1")
	require.NoError(t, carts.Fetch(context.Background()))
	require.False(t, carts.IsEmpty())

	api := &mockOrderAPI{
		created: &order.Order{ID: 7, SessionID: "s1", Status: order.StatusPlaced},
		orders:  make(map[int64]*order.Order),
	}
	n := &recordingNotifier{}
	return fixture{
		svc:      New(api, carts, mem, "s1", WithNotifier(n)),
		api:      api,
		carts:    carts,
		kv:       mem,
		notifier: n,
	}
}

// --- Tests ---

func TestPlaceOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.svc.PlaceOrder(ctx, "key-1")
	require.NoError(t, err)

	assert.Equal(t, int64(7), o.ID)
	assert.Equal(t, []string{"key-1"}, f.api.keys)
	assert.Nil(t, f.carts.Cart(), "cart is reset after checkout")
	assert.Equal(t, []string{"Order placed successfully!"}, f.notifier.successes)

	ids, err := f.svc.OrderIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, ids)
}

func TestPlaceOrder_RemembersOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PlaceOrder(ctx, "key-1")
	require.NoError(t, err)
	_, err = f.svc.PlaceOrder(ctx, "key-1")
	require.NoError(t, err)

	f.api.created = &order.Order{ID: 8}
	_, err = f.svc.PlaceOrder(ctx, "key-2")
	require.NoError(t, err)

	raw, err := f.kv.Get(ctx, OrderIDsKey)
	require.NoError(t, err)
	assert.Equal(t, `[7,8]`, raw)
}

func TestRemember_Concurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for id := int64(1); id <= 20; id++ {
		wg.Go(func() {
			assert.NoError(t, f.svc.remember(ctx, id))
		})
	}
	wg.Wait()

	ids, err := f.svc.OrderIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 20)
	for id := int64(1); id <= 20; id++ {
		assert.Contains(t, ids, id)
	}
}

func TestPlaceOrder_FailureKeepsCart(t *testing.T) {
	f := newFixture(t)
	f.api.createErr = &client.StatusError{StatusCode: http.StatusBadRequest, Message: "Cart is empty"}

	_, err := f.svc.PlaceOrder(context.Background(), "key-1")

	var sErr *client.StatusError
	require.ErrorAs(t, err, &sErr)
	assert.False(t, f.carts.IsEmpty())
	assert.Equal(t, []string{"Cart is empty"}, f.notifier.errors)

	ids, err := f.svc.OrderIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestOrders_DropsFailuresAndKeepsOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.kv.Set(ctx, OrderIDsKey, `[3,1,99,2]`))
	for _, id := range []int64{1, 2, 3} {
		f.api.orders[id] = &order.Order{ID: id}
	}

	orders, err := f.svc.Orders(ctx)
	require.NoError(t, err)

	got := make([]int64, len(orders))
	for i, o := range orders {
		got[i] = o.ID
	}
	assert.Equal(t, []int64{3, 1, 2}, got)
}

func TestOrders_Empty(t *testing.T) {
	f := newFixture(t)

	orders, err := f.svc.Orders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestOrderIDs_Corrupt(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.kv.Set(context.Background(), OrderIDsKey, `not json`))

	_, err := f.svc.OrderIDs(context.Background())
	require.Error(t, err)
}

func TestNewIdempotencyKey(t *testing.T) {
	a, b := NewIdempotencyKey(), NewIdempotencyKey()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	require.NoError(t, err)
}

func TestDetails_Validate(t *testing.T) {
	valid := Details{
		Email:      "ada@example.com",
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Address:    "12 Analytical Row",
		City:       "London",
		State:      "LDN",
		ZipCode:    "N1 9GU",
		CardNumber: "4242424242424242",
		ExpiryDate: "12/29",
		CVV:        "123",
		NameOnCard: "A Lovelace",
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(d *Details)
		fields []string
	}{
		{name: "bad email", mutate: func(d *Details) { d.Email = "ada@" }, fields: []string{"email"}},
		{name: "display-name email", mutate: func(d *Details) { d.Email = "Ada <ada@example.com>" }, fields: []string{"email"}},
		{name: "short names", mutate: func(d *Details) { d.FirstName, d.LastName = "A", "" }, fields: []string{"firstName", "lastName"}},
		{name: "expiry format", mutate: func(d *Details) { d.ExpiryDate = "1229" }, fields: []string{"expiryDate"}},
		{name: "cvv letters", mutate: func(d *Details) { d.CVV = "12a" }, fields: []string{"cvv"}},
		{name: "four digit cvv", mutate: func(d *Details) { d.CVV = "1234" }},
		{name: "short card", mutate: func(d *Details) { d.CardNumber = "4242" }, fields: []string{"cardNumber"}},
		{name: "everything empty", mutate: func(d *Details) { *d = Details{} }, fields: []string{
			"email", "firstName", "lastName", "address", "city", "state", "zipCode",
			"cardNumber", "expiryDate", "cvv", "nameOnCard",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			tt.mutate(&d)

			err := d.Validate()
			if len(tt.fields) == 0 {
				require.NoError(t, err)
				return
			}

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			got := make([]string, len(vErr.Fields))
			for i, f := range vErr.Fields {
				got[i] = f.Field
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}
