package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/jx"
	"golang.org/x/time/rate"
)

// HeaderSessionID identifies the storefront session a request acts for.
const HeaderSessionID = "X-Session-ID"

// RateLimitConfig configures the per-key token bucket limiter.
type RateLimitConfig struct {
	// Max is the bucket size: the burst a key may send at once. The bucket
	// refills at Max tokens per Window.
	Max int
	// Window is the time to refill an empty bucket.
	Window time.Duration
	// KeyFunc extracts the rate limit key from a request. Defaults to the
	// client IP.
	KeyFunc func(*http.Request) string
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type limiter struct {
	cfg      RateLimitConfig
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.Max < 1 {
		cfg.Max = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = defaultKeyFunc
	}
	return &limiter{
		cfg:      cfg,
		interval: cfg.Window / time.Duration(cfg.Max),
		now:      time.Now,
		buckets:  make(map[string]*bucket),
	}
}

func (l *limiter) lookup(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Every(l.interval), l.cfg.Max)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim
}

// take spends one token of key. When none is left it reports how long until
// one is.
func (l *limiter) take(key string, now time.Time) (remaining int, retryAfter time.Duration, ok bool) {
	lim := l.lookup(key, now)
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return 0, l.cfg.Window, false
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return 0, d, false
	}
	return int(lim.TokensAt(now)), 0, true
}

// resetAt is when the bucket of key is full again.
func (l *limiter) resetAt(remaining int, now time.Time) time.Time {
	return now.Add(time.Duration(l.cfg.Max-remaining) * l.interval)
}

// evict drops buckets idle for a full window; they would be full anyway.
func (l *limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.cfg.Window {
			delete(l.buckets, key)
		}
	}
}

func (l *limiter) evictEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.evict(now)
		}
	}
}

// RateLimit returns a middleware enforcing a token bucket per key. Rejected
// requests get 429 with a JSON error envelope and Retry-After. Every response
// carries X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset.
//
// Idle buckets are never evicted; long-running servers use
// RateLimitWithCleanup.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newLimiter(cfg).middleware()
}

// RateLimitWithCleanup is RateLimit plus a goroutine evicting idle buckets
// once per window until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	go l.evictEvery(ctx, l.cfg.Window)
	return l.middleware()
}

func (l *limiter) middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := l.now()
			remaining, retryAfter, ok := l.take(l.cfg.KeyFunc(r), now)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(l.resetAt(remaining, now).Unix(), 10))
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			h.Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)

			e := jx.GetEncoder()
			defer jx.PutEncoder(e)
			e.Obj(func(e *jx.Encoder) {
				e.Field("success", func(e *jx.Encoder) { e.Bool(false) })
				e.Field("error", func(e *jx.Encoder) { e.Str(http.StatusText(http.StatusTooManyRequests)) })
				e.Field("message", func(e *jx.Encoder) { e.Str("rate limit exceeded") })
			})
			_, _ = w.Write(e.Bytes())
		})
	}
}

// defaultKeyFunc returns the client IP: the first X-Forwarded-For hop, then
// X-Real-IP, then the connection address.
func defaultKeyFunc(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SessionKey keys the rate limit by storefront session: the X-Session-ID
// header, then the session segment of /api/cart/{sessionId} paths, then the
// client IP.
func SessionKey(r *http.Request) string {
	if sid := sessionFromRequest(r); sid != "" {
		return "session:" + sid
	}
	return "ip:" + defaultKeyFunc(r)
}
