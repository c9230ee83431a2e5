package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type rlRequest struct {
	remote string
	header map[string]string
	want   int
}

func TestRateLimit(t *testing.T) {
	tests := []struct {
		name     string
		cfg      RateLimitConfig
		requests []rlRequest
	}{
		{
			name: "burst within limit",
			cfg:  RateLimitConfig{Max: 3, Window: time.Minute},
			requests: []rlRequest{
				{remote: "192.168.1.1:1", want: http.StatusOK},
				{remote: "192.168.1.1:2", want: http.StatusOK},
				{remote: "192.168.1.1:3", want: http.StatusOK},
			},
		},
		{
			name: "burst exhausted",
			cfg:  RateLimitConfig{Max: 2, Window: time.Minute},
			requests: []rlRequest{
				{remote: "10.0.0.1:9999", want: http.StatusOK},
				{remote: "10.0.0.1:9999", want: http.StatusOK},
				{remote: "10.0.0.1:9999", want: http.StatusTooManyRequests},
			},
		},
		{
			name: "separate buckets per ip",
			cfg:  RateLimitConfig{Max: 1, Window: time.Minute},
			requests: []rlRequest{
				{remote: "10.0.0.1:1", want: http.StatusOK},
				{remote: "10.0.0.2:1", want: http.StatusOK},
				{remote: "10.0.0.1:2", want: http.StatusTooManyRequests},
			},
		},
		{
			name: "forwarded for first hop",
			cfg:  RateLimitConfig{Max: 1, Window: time.Minute},
			requests: []rlRequest{
				{remote: "127.0.0.1:1", header: map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, want: http.StatusOK},
				{remote: "127.0.0.1:1", header: map[string]string{"X-Forwarded-For": "203.0.113.6"}, want: http.StatusOK},
				{remote: "127.0.0.1:2", header: map[string]string{"X-Forwarded-For": "203.0.113.5"}, want: http.StatusTooManyRequests},
			},
		},
		{
			name: "custom key",
			cfg: RateLimitConfig{Max: 1, Window: time.Minute, KeyFunc: func(r *http.Request) string {
				return r.Header.Get("X-Tenant")
			}},
			requests: []rlRequest{
				{remote: "10.0.0.1:1", header: map[string]string{"X-Tenant": "a"}, want: http.StatusOK},
				{remote: "10.0.0.2:1", header: map[string]string{"X-Tenant": "a"}, want: http.StatusTooManyRequests},
				{remote: "10.0.0.1:1", header: map[string]string{"X-Tenant": "b"}, want: http.StatusOK},
			},
		},
		{
			name: "zero max allows one",
			cfg:  RateLimitConfig{},
			requests: []rlRequest{
				{remote: "10.0.0.1:1", want: http.StatusOK},
				{remote: "10.0.0.1:1", want: http.StatusTooManyRequests},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RateLimit(tt.cfg)(okHandler())
			for i, r := range tt.requests {
				req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
				req.RemoteAddr = r.remote
				for k, v := range r.header {
					req.Header.Set(k, v)
				}
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, req)
				assert.Equal(t, r.want, w.Code, "request %d", i+1)
			}
		})
	}
}

func TestRateLimit_Rejection(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())
	serve := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:9999"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	first := serve()
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	reset, err := strconv.ParseInt(first.Header().Get("X-RateLimit-Reset"), 10, 64)
	require.NoError(t, err)
	assert.Greater(t, reset, time.Now().Add(-time.Second).Unix())

	require.Equal(t, http.StatusOK, serve().Code)

	w := serve()
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.InDelta(t, 30, retry, 1)

	var (
		success = true
		message string
	)
	require.NoError(t, jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "success":
			success, err = d.Bool()
		case "message":
			message, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	}))
	assert.False(t, success)
	assert.Equal(t, "rate limit exceeded", message)
}

func TestLimiter_Refill(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 2, Window: time.Minute})
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	remaining, _, ok := l.take("k", start)
	require.True(t, ok)
	assert.Equal(t, 1, remaining)
	remaining, _, ok = l.take("k", start)
	require.True(t, ok)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, start.Add(time.Minute), l.resetAt(remaining, start))

	_, retry, ok := l.take("k", start)
	require.False(t, ok)
	assert.Equal(t, 30*time.Second, retry)

	// A rejected request does not spend a token.
	_, _, ok = l.take("k", start.Add(30*time.Second))
	assert.True(t, ok)
	_, _, ok = l.take("k", start.Add(30*time.Second))
	assert.False(t, ok)
}

func TestLimiter_Evict(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	l.take("idle", start)
	l.take("busy", start.Add(50*time.Second))
	l.evict(start.Add(time.Minute))

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.buckets, "idle")
	assert.Contains(t, l.buckets, "busy")
}


func TestRateLimit_SessionKey(t *testing.T) {
	handler := RateLimit(RateLimitConfig{
		Max:     1,
		Window:  time.Minute,
		KeyFunc: SessionKey,
	})(okHandler())

	serve := func(path, session string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "10.0.0.1:1234"
		if session != "" {
			req.Header.Set(HeaderSessionID, session)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	// Sessions behind one IP are limited independently.
	assert.Equal(t, http.StatusOK, serve("/api/products", "session_a"))
	assert.Equal(t, http.StatusOK, serve("/api/products", "session_b"))
	assert.Equal(t, http.StatusTooManyRequests, serve("/api/products", "session_a"))

	// The cart path carries the session when the header is absent.
	assert.Equal(t, http.StatusTooManyRequests, serve("/api/cart/session_b/items/1", ""))
	assert.Equal(t, http.StatusOK, serve("/api/cart/session_c", ""))

	// Anything else falls back to the client IP.
	assert.Equal(t, http.StatusOK, serve("/api/orders/1", ""))
	assert.Equal(t, http.StatusTooManyRequests, serve("/api/orders/2", ""))
}

func TestSessionKey(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		header string
		want   string
	}{
		{name: "header wins", path: "/api/cart/s1", header: "s2", want: "session:s2"},
		{name: "cart path", path: "/api/cart/s1/items/4", want: "session:s1"},
		{name: "empty cart segment", path: "/api/cart/", want: "ip:192.0.2.1"},
		{name: "other path", path: "/api/products", want: "ip:192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(HeaderSessionID, tt.header)
			}
			assert.Equal(t, tt.want, SessionKey(req))
		})
	}
}
