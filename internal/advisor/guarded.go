package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"creditflow/internal/evaluation/models"
	"creditflow/internal/evaluation/ports"
	"creditflow/pkg/platform/circuit"
	"creditflow/pkg/platform/sentinel"
)

const defaultProbeInterval = 30 * time.Second

// Guarded wraps a primary advisor with a circuit breaker. A failed primary
// call is reported as unavailable. While the breaker is open the fallback
// answers, with one probe of the primary per probe interval; its responses
// are marked Fallback and never stand in for a primary verdict.
type Guarded struct {
	primary       ports.Advisor
	fallback      ports.Advisor
	breaker       *circuit.Breaker
	logger        *slog.Logger
	now           func() time.Time
	probeInterval time.Duration

	mu        sync.Mutex
	lastProbe time.Time
}

// GuardOption configures a Guarded advisor.
type GuardOption func(*Guarded)

// WithFallback sets the advisor that answers while the breaker is open.
func WithFallback(a ports.Advisor) GuardOption {
	return func(g *Guarded) { g.fallback = a }
}

// WithBreaker replaces the default breaker.
func WithBreaker(b *circuit.Breaker) GuardOption {
	return func(g *Guarded) {
		if b != nil {
			g.breaker = b
		}
	}
}

// WithProbeInterval sets how often the primary is retried while open.
func WithProbeInterval(d time.Duration) GuardOption {
	return func(g *Guarded) {
		if d > 0 {
			g.probeInterval = d
		}
	}
}

func WithGuardLogger(logger *slog.Logger) GuardOption {
	return func(g *Guarded) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithGuardClock(now func() time.Time) GuardOption {
	return func(g *Guarded) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGuarded wraps primary.
func NewGuarded(primary ports.Advisor, opts ...GuardOption) (*Guarded, error) {
	if primary == nil {
		return nil, fmt.Errorf("primary advisor is required")
	}
	g := &Guarded{
		primary:       primary,
		breaker:       circuit.New("advisor"),
		logger:        slog.Default(),
		now:           time.Now,
		probeInterval: defaultProbeInterval,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Consult calls the primary unless the breaker is open and no probe is due.
func (g *Guarded) Consult(ctx context.Context, view models.View) (*ports.AdvisorResponse, error) {
	if g.breaker.IsOpen() && !g.probeDue() {
		return g.useFallback(ctx, view, fmt.Errorf("circuit %s open", g.breaker.Name()))
	}

	resp, err := g.primary.Consult(ctx, view)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		_, change := g.breaker.RecordFailure()
		if change.Opened {
			g.mu.Lock()
			g.lastProbe = g.now()
			g.mu.Unlock()
			g.logger.WarnContext(ctx, "advisor circuit opened", "breaker", g.breaker.Name(), "error", err)
		}
		return nil, fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}

	_, change := g.breaker.RecordSuccess()
	if change.Closed {
		g.logger.InfoContext(ctx, "advisor circuit closed", "breaker", g.breaker.Name())
	}
	return resp, nil
}

func (g *Guarded) probeDue() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if now.Sub(g.lastProbe) < g.probeInterval {
		return false
	}
	g.lastProbe = now
	return true
}

func (g *Guarded) useFallback(ctx context.Context, view models.View, cause error) (*ports.AdvisorResponse, error) {
	if g.fallback == nil {
		return nil, fmt.Errorf("%w: %v", sentinel.ErrUnavailable, cause)
	}
	g.logger.DebugContext(ctx, "advisor using fallback", "application_id", view.ApplicationID, "cause", cause)
	resp, err := g.fallback.Consult(ctx, view)
	if err != nil {
		return nil, fmt.Errorf("%w: %v: fallback: %w", sentinel.ErrUnavailable, cause, err)
	}
	if resp != nil {
		resp.Fallback = true
	}
	return resp, nil
}
