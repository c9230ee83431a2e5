package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-storefront/internal/domain/product"
)

type recorded struct {
	method  string
	path    string
	query   string
	session string
	idemKey string
	body    string
}

// newTestServer answers every request with status and body, recording the
// last request it saw.
func newTestServer(t *testing.T, status int, body string) (*Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		*rec = recorded{
			method:  r.Method,
			path:    r.URL.Path,
			query:   r.URL.RawQuery,
			session: r.Header.Get(HeaderSessionID),
			idemKey: r.Header.Get(HeaderIdempotencyKey),
			body:    string(b),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/api/", WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, rec
}

const cartBody = `{"success":true,"data":{"id":1,"sessionId":"s1","items":[` +
	`{"id":10,"cartId":1,"productId":5,"quantity":2,"product":{"id":5,"name":"Lamp","price":25,"stock":9}}]}}`

func TestNew_InvalidURL(t *testing.T) {
	_, err := New("ftp://example.com")
	require.Error(t, err)

	_, err = New("://bad")
	require.Error(t, err)
}

func TestClient_CartRequests(t *testing.T) {
	tests := []struct {
		name       string
		call       func(c *Client) error
		wantMethod string
		wantPath   string
		wantBody   string
	}{
		{
			name: "get",
			call: func(c *Client) error {
				_, err := c.GetCart(context.Background(), "s1")
				return err
			},
			wantMethod: http.MethodGet,
			wantPath:   "/api/cart/s1",
		},
		{
			name: "add",
			call: func(c *Client) error {
				_, err := c.AddCartItem(context.Background(), "s1", 5, 2)
				return err
			},
			wantMethod: http.MethodPost,
			wantPath:   "/api/cart/s1",
			wantBody:   `{"productId":5,"quantity":2}`,
		},
		{
			name: "update",
			call: func(c *Client) error {
				_, err := c.UpdateCartItem(context.Background(), "s1", 10, 4)
				return err
			},
			wantMethod: http.MethodPut,
			wantPath:   "/api/cart/s1/items/10",
			wantBody:   `{"quantity":4}`,
		},
		{
			name: "remove",
			call: func(c *Client) error {
				_, err := c.RemoveCartItem(context.Background(), "s1", 10)
				return err
			},
			wantMethod: http.MethodDelete,
			wantPath:   "/api/cart/s1/items/10",
		},
		{
			name: "clear",
			call: func(c *Client) error {
				_, err := c.ClearCart(context.Background(), "s1")
				return err
			},
			wantMethod: http.MethodDelete,
			wantPath:   "/api/cart/s1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newTestServer(t, http.StatusOK, cartBody)

			require.NoError(t, tt.call(c))
			assert.Equal(t, tt.wantMethod, rec.method)
			assert.Equal(t, tt.wantPath, rec.path)
			assert.Equal(t, "s1", rec.session)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.body)
			}
		})
	}
}

func TestClient_GetCart_Decodes(t *testing.T) {
	c, _ := newTestServer(t, http.StatusOK, cartBody)

	got, err := c.GetCart(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(25).Equal(got.Items[0].Product.Price))
}

func TestClient_GetCart_NullDataIsEmpty(t *testing.T) {
	c, _ := newTestServer(t, http.StatusOK, `{"success":true,"data":null}`)

	got, err := c.GetCart(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
	assert.True(t, got.IsEmpty())
}

func TestClient_CartMutation_NoDataIsEmpty(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"success":true,"message":"Cart cleared successfully"}`)
	ctx := context.Background()

	got, err := c.ClearCart(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, rec.method)
	assert.Equal(t, "s1", got.SessionID)
	assert.True(t, got.IsEmpty())

	got, err = c.RemoveCartItem(ctx, "s1", 4)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

func TestClient_ListProducts_Query(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK,
		`{"success":true,"data":[{"id":1,"name":"A","price":"9.99"}],"pagination":{"page":2,"limit":1,"total":5,"totalPages":5}}`)

	minPrice := decimal.RequireFromString("5")
	page, err := c.ListProducts(context.Background(), product.Filter{
		Search:   "lamp",
		Category: "home",
		MinPrice: &minPrice,
		Page:     2,
		Limit:    1,
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/products", rec.path)
	assert.Equal(t, "category=home&limit=1&minPrice=5&page=2&search=lamp", rec.query)
	assert.Empty(t, rec.session)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 5, page.Pagination.Total)
}

func TestClient_Categories_BareArray(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `["home","toys"]`)

	cats, err := c.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/api/products/categories", rec.path)
	assert.Equal(t, []string{"home", "toys"}, cats)
}

func TestClient_CreateOrder(t *testing.T) {
	c, rec := newTestServer(t, http.StatusCreated,
		`{"success":true,"data":{"id":77,"sessionId":"s1","status":"placed","subtotal":110,"tax":11,"shipping":0,"total":121,"items":[]}}`)

	o, err := c.CreateOrder(context.Background(), "s1", "key-1")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/api/orders", rec.path)
	assert.Equal(t, "key-1", rec.idemKey)
	assert.JSONEq(t, `{"sessionId":"s1"}`, rec.body)
	assert.Equal(t, int64(77), o.ID)
	assert.True(t, decimal.NewFromInt(121).Equal(o.Total))
}

func TestClient_StatusErrors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantMessage  string
		wantFriendly string
	}{
		{
			name:         "message field",
			status:       http.StatusBadRequest,
			body:         `{"success":false,"error":"Bad Request","message":"quantity must be positive"}`,
			wantMessage:  "quantity must be positive",
			wantFriendly: "quantity must be positive",
		},
		{
			name:         "error field",
			status:       http.StatusConflict,
			body:         `{"success":false,"error":"only 2 in stock"}`,
			wantMessage:  "only 2 in stock",
			wantFriendly: "only 2 in stock",
		},
		{
			name:         "not json",
			status:       http.StatusBadGateway,
			body:         `<html>bad gateway</html>`,
			wantMessage:  "Bad Gateway",
			wantFriendly: "Server Error, try again later!",
		},
		{
			name:         "not found",
			status:       http.StatusNotFound,
			body:         `{"success":false,"error":"Not Found","message":"cart not found"}`,
			wantMessage:  "cart not found",
			wantFriendly: "Resource not found.",
		},
		{
			name:         "unsuccessful envelope",
			status:       http.StatusOK,
			body:         `{"success":false,"message":"nope"}`,
			wantMessage:  "nope",
			wantFriendly: "nope",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestServer(t, tt.status, tt.body)

			_, err := c.GetCart(context.Background(), "s1")

			var sErr *StatusError
			require.ErrorAs(t, err, &sErr)
			assert.Equal(t, tt.status, sErr.StatusCode)
			assert.Equal(t, tt.wantMessage, sErr.Message)
			assert.Equal(t, tt.wantFriendly, Message(err))
			assert.Equal(t, tt.status == http.StatusNotFound, IsNotFound(err))
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	c, err := New(srv.URL, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = c.GetOrder(context.Background(), 1)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, "Request timed out. Please try again.", Message(err))
}

func TestWithTimeout_NonPositiveKeepsDefault(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		c, err := New("http://localhost:8080/api/", WithTimeout(d))
		require.NoError(t, err)
		assert.Equal(t, DefaultTimeout, c.timeout)
	}
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)

	_, err = c.GetProduct(context.Background(), 1)

	var nErr *NetworkError
	require.ErrorAs(t, err, &nErr)
	assert.False(t, IsNotFound(err))
	assert.True(t, strings.HasPrefix(err.Error(), "network error"))
}
