//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/domain/pricing"
	"github.com/xenking/kart-storefront/internal/domain/product"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "kart",
				"POSTGRES_PASSWORD": "kart",
				"POSTGRES_DB":       "kart",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	pool, err := NewPool(ctx, fmt.Sprintf("postgres://kart:kart@%s:%s/kart?sslmode=disable", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// Migrations are idempotent.
	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func seedCatalog(t *testing.T, pool *pgxpool.Pool) *ProductRepository {
	t.Helper()
	products := NewProductRepository(pool)
	require.NoError(t, products.Upsert(context.Background(), []product.Product{
		{ID: 1, Name: "Desk Lamp", Description: "Warm light", Price: decimal.RequireFromString("25.00"), Category: "home", Stock: 10, Images: []string{"/img/lamp.jpg"}},
		{ID: 2, Name: "Office Chair", Price: decimal.RequireFromString("60.00"), Category: "home", Stock: 2},
		{ID: 3, Name: "Notebook", Price: decimal.RequireFromString("4.50"), Category: "stationery", Stock: 100},
	}))
	return products
}

func TestStorage(t *testing.T) {
	pool := startPostgres(t)
	products := seedCatalog(t, pool)
	carts := NewCartRepository(pool)
	orders := NewOrderRepository(pool)
	ctx := context.Background()

	t.Run("products", func(t *testing.T) {
		minPrice := decimal.RequireFromString("5")
		page, err := products.List(ctx, product.Filter{Category: "home", MinPrice: &minPrice, Limit: 1})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "Desk Lamp", page.Items[0].Name)
		assert.Equal(t, product.Pagination{Page: 1, Limit: 1, Total: 2, TotalPages: 2}, page.Pagination)

		page, err = products.List(ctx, product.Filter{Search: "note"})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, int64(3), page.Items[0].ID)

		_, err = products.GetByID(ctx, 404)
		require.ErrorIs(t, err, product.ErrNotFound)

		n, err := products.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		cats, err := products.Categories(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"home", "stationery"}, cats)
	})

	t.Run("cart lifecycle", func(t *testing.T) {
		svc := cart.NewService(carts, products)

		_, err := svc.Get(ctx, "s-cart")
		require.ErrorIs(t, err, cart.ErrNotFound)

		c, err := svc.AddItem(ctx, "s-cart", 1, 2)
		require.NoError(t, err)
		c, err = svc.AddItem(ctx, "s-cart", 1, 1)
		require.NoError(t, err)
		require.Len(t, c.Items, 1)
		assert.Equal(t, 3, c.Items[0].Quantity)
		assert.Equal(t, "Desk Lamp", c.Items[0].Product.Name)

		c, err = svc.UpdateItem(ctx, "s-cart", c.Items[0].ID, 0)
		require.NoError(t, err)
		assert.Empty(t, c.Items)

		require.ErrorIs(t, carts.SetQuantity(ctx, c.ID, 999999, 1), cart.ErrItemNotFound)
	})

	t.Run("order placement", func(t *testing.T) {
		cartSvc := cart.NewService(carts, products)
		orderSvc := order.NewService(carts, orders, pricing.DefaultRules)

		_, err := cartSvc.AddItem(ctx, "s-order", 1, 2)
		require.NoError(t, err)
		_, err = cartSvc.AddItem(ctx, "s-order", 2, 1)
		require.NoError(t, err)

		res, err := orderSvc.Place(ctx, "s-order", "key-1")
		require.NoError(t, err)
		o := res.Order
		assert.True(t, decimal.RequireFromString("121").Equal(o.Total))
		require.Len(t, o.Items, 2)
		assert.NotZero(t, o.Items[0].ID)

		c, err := carts.GetBySession(ctx, "s-order")
		require.NoError(t, err)
		assert.Empty(t, c.Items, "cart is emptied by checkout")

		chair, err := products.GetByID(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, 1, chair.Stock)

		stored, err := orders.GetByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, order.StatusPlaced, stored.Status)
		assert.Equal(t, "key-1", stored.IdempotencyKey)
		require.Len(t, stored.Items, 2)
		assert.True(t, decimal.RequireFromString("25").Equal(stored.Items[0].Price))

		replay, err := orderSvc.Place(ctx, "s-order", "key-1")
		require.NoError(t, err)
		assert.True(t, replay.Replayed)
		assert.Equal(t, o.ID, replay.Order.ID)

		_, err = orderSvc.Place(ctx, "s-order", "key-2")
		require.ErrorIs(t, err, order.ErrEmptyCart)

		keys, err := orders.IdempotencyKeys(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, "key-1")
	})

	t.Run("duplicate idempotency key", func(t *testing.T) {
		cartID, err := carts.Ensure(ctx, "s-dup")
		require.NoError(t, err)

		err = orders.CreateFromCart(ctx, &order.Order{
			SessionID:      "s-dup",
			Status:         order.StatusPlaced,
			IdempotencyKey: "key-1",
		}, cartID)
		require.ErrorIs(t, err, order.ErrDuplicateIdempotencyKey)
	})

	t.Run("stock is reserved atomically", func(t *testing.T) {
		cartID, err := carts.Ensure(ctx, "s-stock")
		require.NoError(t, err)
		require.NoError(t, carts.AddItem(ctx, cartID, 3, 1))

		err = orders.CreateFromCart(ctx, &order.Order{
			SessionID: "s-stock",
			Status:    order.StatusPlaced,
			Items:     []order.Item{{ProductID: 2, Quantity: 5, Price: decimal.RequireFromString("60")}},
		}, cartID)

		var sErr *cart.InsufficientStockError
		require.ErrorAs(t, err, &sErr)
		assert.Equal(t, 1, sErr.Available)

		c, err := carts.GetBySession(ctx, "s-stock")
		require.NoError(t, err)
		assert.Len(t, c.Items, 1, "failed checkout leaves the cart intact")
	})
}
