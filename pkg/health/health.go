// Package health runs background probes and serves them as Kubernetes-style
// /livez and /readyz endpoints.
//
// A probe flips to failing only after FailureThreshold consecutive errors and
// back to passing after SuccessThreshold consecutive successes, so a single
// slow query does not take the storefront out of rotation.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"
)

// CheckFunc returns nil while the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Kind selects the endpoint a probe reports to.
type Kind int

const (
	// Liveness probes report whether the process should be restarted.
	Liveness Kind = iota
	// Readiness probes report whether the process should receive traffic.
	Readiness
)

func (k Kind) String() string {
	if k == Liveness {
		return "liveness"
	}
	return "readiness"
}

// Probe describes one registered check.
type Probe struct {
	Name    string
	Kind    Kind
	Timeout time.Duration
	Check   CheckFunc

	// Zero thresholds default to 3 failures and 1 success.
	FailureThreshold int
	SuccessThreshold int
}

// probeState is written by the probe's own goroutine and read by handlers.
type probeState struct {
	Probe

	mu        sync.Mutex
	passing   bool
	lastErr   error
	checkedAt time.Time
	fails     int
	oks       int
}

// result is a point-in-time view of a probe.
type result struct {
	Name      string
	Passing   bool
	Error     string
	CheckedAt time.Time
}

func (p *probeState) observe(ctx context.Context, now func() time.Time) (changed bool) {
	checkCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	err := p.Check(checkCtx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = err
	p.checkedAt = now()
	wasPassing := p.passing
	if err != nil {
		p.oks = 0
		p.fails++
		if p.fails >= p.FailureThreshold {
			p.passing = false
		}
	} else {
		p.fails = 0
		p.oks++
		if p.oks >= p.SuccessThreshold {
			p.passing = true
		}
	}
	return wasPassing != p.passing
}

func (p *probeState) result() result {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := result{Name: p.Name, Passing: p.passing, CheckedAt: p.checkedAt}
	switch {
	case p.passing:
	case p.lastErr != nil:
		r.Error = p.lastErr.Error()
	default:
		r.Error = "check is failing"
	}
	return r
}

// Health owns the registered probes.
type Health struct {
	lg    *zap.Logger
	now   func() time.Time
	ready atomic.Bool

	mu     sync.RWMutex
	probes []*probeState
	cancel context.CancelFunc
}

// New creates a Health that is not ready until SetReady(true).
func New(lg *zap.Logger) *Health {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Health{lg: lg, now: time.Now}
}

// Register adds a probe. Probes start passing.
func (h *Health) Register(p Probe) {
	if p.FailureThreshold < 1 {
		p.FailureThreshold = 3
	}
	if p.SuccessThreshold < 1 {
		p.SuccessThreshold = 1
	}
	if p.Timeout <= 0 {
		p.Timeout = time.Second
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes = append(h.probes, &probeState{Probe: p, passing: true})
}

// Start runs every probe immediately and then every interval until Stop or
// ctx is done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	probes := slices.Clone(h.probes)
	h.mu.Unlock()

	for _, p := range probes {
		go h.loop(ctx, p, interval)
	}
}

func (h *Health) loop(ctx context.Context, p *probeState, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		h.observe(ctx, p)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Health) observe(ctx context.Context, p *probeState) {
	if !p.observe(ctx, h.now) {
		return
	}
	r := p.result()
	lg := h.lg.With(zap.String("probe", r.Name), zap.Stringer("kind", p.Kind))
	if r.Passing {
		lg.Info("Health probe recovered")
	} else {
		lg.Warn("Health probe failing", zap.String("error", r.Error))
	}
}

// Stop ends the probe goroutines. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady marks the service as accepting traffic. Set it to false at the
// start of a graceful shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// probe passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	for _, r := range h.results(Readiness) {
		if !r.Passing {
			return false
		}
	}
	return true
}

func (h *Health) results(kind Kind) []result {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []result
	for _, p := range h.probes {
		if p.Kind == kind {
			out = append(out, p.result())
		}
	}
	return out
}

// Livez serves the liveness probes.
func (h *Health) Livez(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, newReport(h.results(Liveness), true))
}

// Readyz serves the readiness probes and the manual ready flag.
func (h *Health) Readyz(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, newReport(h.results(Readiness), h.ready.Load()))
}

// report is the body of both endpoints:
//
//	{"status":"ok","ready":true,"checks":{"postgres":{"status":"pass","checkedAt":"..."}}}
type report struct {
	Status string
	Ready  bool
	Checks []result
}

func newReport(results []result, ready bool) report {
	slices.SortFunc(results, func(a, b result) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	rep := report{Status: "ok", Ready: ready, Checks: results}
	if !ready {
		rep.Status = "unavailable"
	}
	for _, r := range results {
		if !r.Passing {
			rep.Status = "unhealthy"
			break
		}
	}
	return rep
}

func (rep report) healthy() bool { return rep.Status == "ok" }

func (rep report) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(rep.Status) })
		e.Field("ready", func(e *jx.Encoder) { e.Bool(rep.Ready) })
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, r := range rep.Checks {
					e.Field(r.Name, func(e *jx.Encoder) { r.encode(e) })
				}
			})
		})
	})
}

func (r result) encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		status := "pass"
		if !r.Passing {
			status = "fail"
		}
		e.Field("status", func(e *jx.Encoder) { e.Str(status) })
		if r.Error != "" {
			e.Field("error", func(e *jx.Encoder) { e.Str(r.Error) })
		}
		if !r.CheckedAt.IsZero() {
			e.Field("checkedAt", func(e *jx.Encoder) { e.Str(r.CheckedAt.UTC().Format(time.RFC3339)) })
		}
	})
}

func (rep *report) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "status":
			rep.Status, err = d.Str()
		case "ready":
			rep.Ready, err = d.Bool()
		case "checks":
			err = d.Obj(func(d *jx.Decoder, name string) error {
				r := result{Name: name}
				if err := r.decode(d); err != nil {
					return errors.Wrapf(err, "check %q", name)
				}
				rep.Checks = append(rep.Checks, r)
				return nil
			})
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
}

func (r *result) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			s, err := d.Str()
			r.Passing = s == "pass"
			return err
		case "error":
			s, err := d.Str()
			r.Error = s
			return err
		case "checkedAt":
			s, err := d.Str()
			if err != nil {
				return err
			}
			r.CheckedAt, err = time.Parse(time.RFC3339, s)
			return err
		default:
			return d.Skip()
		}
	})
}

func writeReport(w http.ResponseWriter, rep report) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	rep.Encode(e)

	status := http.StatusOK
	if !rep.healthy() {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
