// Package health runs named background checks against the pool on an
// interval and tracks which of them are degraded.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	CheckTimeout  time.Duration
	FailThreshold int
}

// CheckFunc is one probe. A nil error counts as a pass.
type CheckFunc func(ctx context.Context) error

// TransitionFunc is called when a check crosses into or out of the degraded
// state.
type TransitionFunc func(name, status string, err error)

// CheckStatus is the last known state of a single check.
type CheckStatus struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Failures  int       `json:"consecutive_failures"`
	LastError string    `json:"last_error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

type check struct {
	name string
	fn   CheckFunc
}

// Checker runs registered checks on a ticker.
type Checker struct {
	checks       []check
	mu           sync.Mutex
	state        map[string]*CheckStatus
	cfg          Config
	onTransition TransitionFunc
	logger       *zap.Logger
}

// New creates a new Checker.
func New(cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.CheckTimeout == 0 {
		cfg.CheckTimeout = 10 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 1
	}
	return &Checker{
		state:  make(map[string]*CheckStatus),
		cfg:    cfg,
		logger: logger,
	}
}

// Add registers a named check. Not safe to call once Start is running.
func (h *Checker) Add(name string, fn CheckFunc) {
	h.checks = append(h.checks, check{name: name, fn: fn})
}

// SetTransition configures the degraded/recovered callback.
func (h *Checker) SetTransition(fn TransitionFunc) {
	h.onTransition = fn
}

// Start runs the check loop until ctx is cancelled.
func (h *Checker) Start(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.CheckAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// CheckAll runs every check once, sequentially, each under CheckTimeout.
func (h *Checker) CheckAll(ctx context.Context) {
	for _, c := range h.checks {
		cctx, cancel := context.WithTimeout(ctx, h.cfg.CheckTimeout)
		err := c.fn(cctx)
		cancel()
		h.record(c.name, err)
	}
}

func (h *Checker) record(name string, err error) {
	h.mu.Lock()
	st, ok := h.state[name]
	if !ok {
		st = &CheckStatus{Name: name, Status: StatusHealthy}
		h.state[name] = st
	}
	prev := st.Status
	st.CheckedAt = time.Now().UTC()
	if err == nil {
		st.Failures = 0
		st.LastError = ""
		st.Status = StatusHealthy
	} else {
		st.Failures++
		st.LastError = err.Error()
		if st.Failures >= h.cfg.FailThreshold {
			st.Status = StatusDegraded
		}
	}
	status, failures := st.Status, st.Failures
	h.mu.Unlock()

	if status == prev {
		return
	}
	if status == StatusDegraded {
		h.logger.Warn("health: degraded",
			zap.String("check", name),
			zap.Int("fail_count", failures),
			zap.Error(err),
		)
	} else {
		h.logger.Info("health: recovered", zap.String("check", name))
	}
	if h.onTransition != nil {
		h.onTransition(name, status, err)
	}
}

// Status returns a snapshot of every check that has run, sorted by name,
// and whether none of them is degraded.
func (h *Checker) Status() ([]CheckStatus, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]CheckStatus, 0, len(h.state))
	healthy := true
	for _, st := range h.state {
		out = append(out, *st)
		if st.Status == StatusDegraded {
			healthy = false
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, healthy
}
