package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestHealth(t *testing.T) (*Health, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	h := New(zap.New(core))
	h.now = func() time.Time { return fixedNow }
	return h, logs
}

func pass(context.Context) error { return nil }

func fail(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

// toggle fails while the flag is set.
type toggle struct {
	mu      sync.Mutex
	failing bool
}

func (c *toggle) set(failing bool) {
	c.mu.Lock()
	c.failing = failing
	c.mu.Unlock()
}

func (c *toggle) check(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.New("connection refused")
	}
	return nil
}

func serve(t *testing.T, handler http.HandlerFunc) (int, report) {
	t.Helper()
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var rep report
	require.NoError(t, rep.Decode(jx.DecodeBytes(w.Body.Bytes())))
	return w.Code, rep
}

// observeAll runs every probe n times.
func observeAll(h *Health, n int) {
	for range n {
		for _, p := range h.probes {
			h.observe(context.Background(), p)
		}
	}
}

func TestLivez(t *testing.T) {
	tests := []struct {
		name       string
		probes     []Probe
		runs       int
		wantCode   int
		wantStatus string
		wantFailed []string
	}{
		{
			name:       "no probes",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name: "all passing",
			probes: []Probe{
				{Name: "goroutines", Kind: Liveness, Check: pass},
				{Name: "gc", Kind: Liveness, Check: pass},
			},
			runs:       1,
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "failing below threshold",
			probes:     []Probe{{Name: "gc", Kind: Liveness, Check: fail("pause")}},
			runs:       2,
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "failing at threshold",
			probes:     []Probe{{Name: "gc", Kind: Liveness, Check: fail("pause")}},
			runs:       3,
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
			wantFailed: []string{"gc"},
		},
		{
			name:       "custom threshold",
			probes:     []Probe{{Name: "gc", Kind: Liveness, Check: fail("pause"), FailureThreshold: 1}},
			runs:       1,
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
			wantFailed: []string{"gc"},
		},
		{
			name:       "readiness probes are not reported",
			probes:     []Probe{{Name: "postgres", Kind: Readiness, Check: fail("down"), FailureThreshold: 1}},
			runs:       1,
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHealth(t)
			for _, p := range tt.probes {
				h.Register(p)
			}
			observeAll(h, tt.runs)

			code, rep := serve(t, h.Livez)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, rep.Status)

			var failed []string
			for _, r := range rep.Checks {
				if !r.Passing {
					failed = append(failed, r.Name)
				}
			}
			assert.Equal(t, tt.wantFailed, failed)
		})
	}
}

func TestReadyz(t *testing.T) {
	h, _ := newTestHealth(t)
	db := &toggle{}
	h.Register(Probe{Name: "postgres", Kind: Readiness, Check: db.check, FailureThreshold: 1})
	h.Register(Probe{Name: "catalog", Kind: Readiness, Check: pass})
	observeAll(h, 1)

	code, rep := serve(t, h.Readyz)
	assert.Equal(t, http.StatusServiceUnavailable, code, "not marked ready yet")
	assert.Equal(t, "unavailable", rep.Status)
	assert.False(t, rep.Ready)
	assert.False(t, h.IsReady())

	h.SetReady(true)
	code, rep = serve(t, h.Readyz)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, rep.Ready)
	require.Len(t, rep.Checks, 2)
	assert.Equal(t, "catalog", rep.Checks[0].Name, "checks are sorted")
	assert.True(t, fixedNow.Equal(rep.Checks[1].CheckedAt))
	assert.True(t, h.IsReady())

	db.set(true)
	observeAll(h, 1)
	code, rep = serve(t, h.Readyz)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", rep.Status)
	assert.Equal(t, "connection refused", rep.Checks[1].Error)
	assert.False(t, h.IsReady())

	h.SetReady(false)
	db.set(false)
	observeAll(h, 1)
	code, _ = serve(t, h.Readyz)
	assert.Equal(t, http.StatusServiceUnavailable, code, "shutting down")
}

func TestObserve_LogsTransitions(t *testing.T) {
	h, logs := newTestHealth(t)
	db := &toggle{failing: true}
	h.Register(Probe{Name: "postgres", Kind: Readiness, Check: db.check, FailureThreshold: 2, SuccessThreshold: 2})

	observeAll(h, 1)
	assert.Zero(t, logs.Len(), "one failure is tolerated")

	observeAll(h, 2)
	require.Equal(t, 1, logs.FilterMessage("Health probe failing").Len())
	entry := logs.FilterMessage("Health probe failing").All()[0]
	assert.Equal(t, "postgres", entry.ContextMap()["probe"])
	assert.Equal(t, "readiness", entry.ContextMap()["kind"])

	db.set(false)
	observeAll(h, 1)
	assert.Zero(t, logs.FilterMessage("Health probe recovered").Len())
	observeAll(h, 1)
	assert.Equal(t, 1, logs.FilterMessage("Health probe recovered").Len())
}

func TestStartStop(t *testing.T) {
	h, _ := newTestHealth(t)
	h.Register(Probe{Name: "gc", Kind: Liveness, Check: fail("pause"), FailureThreshold: 1})
	h.Start(context.Background(), 5*time.Millisecond)
	defer h.Stop()

	require.Eventually(t, func() bool {
		return !h.results(Liveness)[0].Passing
	}, time.Second, 5*time.Millisecond)

	code, rep := serve(t, h.Livez)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "pause", rep.Checks[0].Error)

	h.Stop()
	h.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	h, _ := newTestHealth(t)
	h.Register(Probe{Name: "gc", Kind: Liveness, Check: fail("err")})
	h.Register(Probe{Name: "postgres", Kind: Readiness, Check: pass})
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, time.Millisecond)
	defer h.Stop()

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			for range 50 {
				h.IsReady()
				h.Livez(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
				h.Readyz(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		})
	}
	wg.Wait()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}

func TestGCMaxPauseCheck(t *testing.T) {
	assert.NoError(t, GCMaxPauseCheck(time.Hour)(context.Background()))
}
