// Package client is the remote storefront API façade: products, carts and
// orders over HTTP with the JSON envelope used by the API.
package client

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/wire"
)

const (
	// DefaultTimeout bounds every request.
	DefaultTimeout = 30 * time.Second

	// HeaderSessionID carries the shopper session on every request.
	HeaderSessionID = "X-Session-ID"
	// HeaderIdempotencyKey deduplicates order creation.
	HeaderIdempotencyKey = "Idempotency-Key"

	maxResponseSize = 16 << 20
)

// Client calls the storefront API. It is safe for concurrent use.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	lg      *zap.Logger

	httpSet bool
	tp      trace.TracerProvider
	mp      metric.MeterProvider
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. Its transport is still
// wrapped with tracing.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
		c.httpSet = true
	}
}

// WithTimeout sets the per-request timeout. Non-positive values keep
// DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTracerProvider sets the tracer provider for outgoing requests.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tp = tp }
}

// WithMeterProvider sets the meter provider for outgoing requests.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Client) { c.mp = mp }
}

// WithLogger sets the logger used for request tracing at debug level.
func WithLogger(lg *zap.Logger) Option {
	return func(c *Client) { c.lg = lg }
}

// New creates a Client for the API rooted at baseURL, e.g.
// "http://localhost:8080/api/".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("unsupported base url scheme %q", u.Scheme)
	}

	c := &Client{
		base:    u,
		timeout: DefaultTimeout,
		lg:      zap.NewNop(),
		tp:      otel.GetTracerProvider(),
		mp:      otel.GetMeterProvider(),
	}
	for _, o := range opts {
		o(c)
	}

	base := http.DefaultTransport
	if c.httpSet && c.http.Transport != nil {
		base = c.http.Transport
	}
	h := &http.Client{}
	if c.httpSet {
		*h = *c.http
	}
	h.Transport = otelhttp.NewTransport(base,
		otelhttp.WithTracerProvider(c.tp),
		otelhttp.WithMeterProvider(c.mp),
	)
	c.http = h

	return c, nil
}

// ListProducts returns a page of the catalog matching f.
func (c *Client) ListProducts(ctx context.Context, f product.Filter) (*product.Page, error) {
	q := url.Values{}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.MinPrice != nil {
		q.Set("minPrice", f.MinPrice.String())
	}
	if f.MaxPrice != nil {
		q.Set("maxPrice", f.MaxPrice.String())
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}

	resp, err := c.do(ctx, request{method: http.MethodGet, path: []string{"products"}, query: q})
	if err != nil {
		return nil, err
	}
	items, err := wire.DecodeProducts(resp.DataDecoder())
	if err != nil {
		return nil, errors.Wrap(err, "decode products")
	}

	page := &product.Page{Items: items}
	if resp.Pagination != nil {
		page.Pagination = *resp.Pagination
	} else {
		page.Pagination = product.NewPagination(1, len(items), len(items))
	}
	return page, nil
}

// GetProduct returns a single product.
func (c *Client) GetProduct(ctx context.Context, id int64) (*product.Product, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: []string{"products", formatID(id)}})
	if err != nil {
		return nil, err
	}
	p, err := wire.DecodeProduct(resp.DataDecoder())
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Categories returns the distinct product categories.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: []string{"products", "categories"}})
	if err != nil {
		return nil, err
	}
	cats, err := wire.DecodeStrings(resp.DataDecoder())
	if err != nil {
		return nil, errors.Wrap(err, "decode categories")
	}
	return cats, nil
}

// GetCart returns the session's cart. A session without a cart yields a
// *StatusError with status 404.
func (c *Client) GetCart(ctx context.Context, sessionID string) (*cart.Cart, error) {
	return c.cartCall(ctx, request{
		method:  http.MethodGet,
		path:    []string{"cart", sessionID},
		session: sessionID,
	})
}

// AddCartItem adds quantity units of productID to the session's cart.
func (c *Client) AddCartItem(ctx context.Context, sessionID string, productID int64, quantity int) (*cart.Cart, error) {
	return c.cartCall(ctx, request{
		method:  http.MethodPost,
		path:    []string{"cart", sessionID},
		session: sessionID,
		body:    wire.AddItemRequest{ProductID: productID, Quantity: quantity}.Encode,
	})
}

// UpdateCartItem sets the quantity of a cart line.
func (c *Client) UpdateCartItem(ctx context.Context, sessionID string, itemID int64, quantity int) (*cart.Cart, error) {
	return c.cartCall(ctx, request{
		method:  http.MethodPut,
		path:    []string{"cart", sessionID, "items", formatID(itemID)},
		session: sessionID,
		body:    wire.UpdateItemRequest{Quantity: quantity}.Encode,
	})
}

// RemoveCartItem deletes a cart line.
func (c *Client) RemoveCartItem(ctx context.Context, sessionID string, itemID int64) (*cart.Cart, error) {
	return c.cartCall(ctx, request{
		method:  http.MethodDelete,
		path:    []string{"cart", sessionID, "items", formatID(itemID)},
		session: sessionID,
	})
}

// ClearCart removes every line from the session's cart.
func (c *Client) ClearCart(ctx context.Context, sessionID string) (*cart.Cart, error) {
	return c.cartCall(ctx, request{
		method:  http.MethodDelete,
		path:    []string{"cart", sessionID},
		session: sessionID,
	})
}

// CreateOrder places an order from the session's cart. A non-empty
// idempotencyKey makes retries of the same checkout attempt safe.
func (c *Client) CreateOrder(ctx context.Context, sessionID, idempotencyKey string) (*order.Order, error) {
	req := request{
		method:  http.MethodPost,
		path:    []string{"orders"},
		session: sessionID,
		body:    wire.CreateOrderRequest{SessionID: sessionID}.Encode,
	}
	if idempotencyKey != "" {
		req.header = http.Header{HeaderIdempotencyKey: []string{idempotencyKey}}
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	return wire.DecodeOrder(resp.DataDecoder())
}

// GetOrder returns an order by id.
func (c *Client) GetOrder(ctx context.Context, id int64) (*order.Order, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: []string{"orders", formatID(id)}})
	if err != nil {
		return nil, err
	}
	return wire.DecodeOrder(resp.DataDecoder())
}

func (c *Client) cartCall(ctx context.Context, req request) (*cart.Cart, error) {
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.HasData() {
		return cart.Empty(req.session), nil
	}
	crt, err := wire.DecodeCart(resp.DataDecoder())
	if err != nil {
		return nil, err
	}
	if crt == nil {
		crt = cart.Empty(req.session)
	}
	return crt, nil
}

type request struct {
	method  string
	path    []string
	query   url.Values
	session string
	header  http.Header
	body    func(e *jx.Encoder)
}

func (c *Client) do(ctx context.Context, r request) (wire.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	segments := make([]string, len(r.path))
	for i, s := range r.path {
		segments[i] = url.PathEscape(s)
	}
	u := c.base.JoinPath(segments...)
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(wire.Encode(r.body))
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return wire.Response{}, errors.Wrap(err, "create request")
	}
	for k, v := range r.header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if r.session != "" {
		req.Header.Set(HeaderSessionID, r.session)
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		c.lg.Debug("Request failed",
			zap.String("method", r.method),
			zap.String("url", u.Redacted()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return wire.Response{}, classify(ctx, err)
	}
	defer func() { _ = res.Body.Close() }()

	buf, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return wire.Response{}, classify(ctx, err)
	}

	c.lg.Debug("Request",
		zap.String("method", r.method),
		zap.String("url", u.Redacted()),
		zap.Int("status", res.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	envelope, decodeErr := wire.DecodeResponse(buf)
	if res.StatusCode >= http.StatusBadRequest {
		return wire.Response{}, &StatusError{
			StatusCode: res.StatusCode,
			Message:    errorMessage(envelope, res.StatusCode),
		}
	}
	if decodeErr != nil {
		return wire.Response{}, errors.Wrap(decodeErr, "decode response")
	}
	if !envelope.Success {
		return wire.Response{}, &StatusError{
			StatusCode: res.StatusCode,
			Message:    errorMessage(envelope, res.StatusCode),
		}
	}
	return envelope, nil
}

func errorMessage(r wire.Response, status int) string {
	switch {
	case r.Message != "":
		return r.Message
	case r.Error != "":
		return r.Error
	default:
		return http.StatusText(status)
	}
}

// classify maps a transport failure to ErrTimeout or *NetworkError.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrap(ErrTimeout, err.Error())
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Wrap(ErrTimeout, err.Error())
	}
	return &NetworkError{Err: err}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
