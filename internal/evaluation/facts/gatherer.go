// Package facts loads the external applicant facts of a record in parallel.
package facts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"creditflow/internal/evaluation/metrics"
	"creditflow/internal/evaluation/models"
	"creditflow/internal/evaluation/ports"
	"creditflow/pkg/platform/sentinel"
)

const defaultTimeout = 5 * time.Second

// Gatherer runs every fact provider concurrently. A provider that fails,
// times out or returns a payload of the wrong category contributes an
// unavailable fact instead of failing the evaluation.
type Gatherer struct {
	providers []ports.FactProvider
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Gatherer)

func WithTimeout(d time.Duration) Option {
	return func(g *Gatherer) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gatherer) { g.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gatherer) { g.metrics = m }
}

func NewGatherer(providers []ports.FactProvider, opts ...Option) (*Gatherer, error) {
	seen := make(map[models.FactCategory]bool, len(providers))
	for _, p := range providers {
		if p == nil {
			return nil, fmt.Errorf("fact provider is nil")
		}
		if seen[p.Category()] {
			return nil, fmt.Errorf("duplicate fact provider for %s", p.Category())
		}
		seen[p.Category()] = true
	}

	g := &Gatherer{
		providers: providers,
		timeout:   defaultTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Gather loads all facts for the record's applicant and sets them on the
// record once every provider has finished. Only cancellation of ctx is
// returned as an error; the record is left untouched in that case.
func (g *Gatherer) Gather(ctx context.Context, rec *models.Record) error {
	loadCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	results := make([]models.Fact, len(g.providers))
	eg, egCtx := errgroup.WithContext(loadCtx)
	for i, p := range g.providers {
		eg.Go(func() error {
			results[i] = g.load(egCtx, p, rec)
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	for _, f := range results {
		rec.SetFact(f)
	}
	return nil
}

func (g *Gatherer) load(ctx context.Context, p ports.FactProvider, rec *models.Record) models.Fact {
	category := p.Category()
	start := time.Now()
	fact, err := p.Load(ctx, rec.ApplicantID())
	g.metrics.ObserveFactLatency(string(category), time.Since(start))

	if err == nil && (fact == nil || fact.Category() != category) {
		err = fmt.Errorf("provider returned %T for %s", fact, category)
	}
	if err == nil {
		return fact
	}

	reason := "provider error"
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		reason = "not found"
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timeout"
	}
	g.metrics.IncrementFactDegraded(string(category))
	g.logger.WarnContext(ctx, "fact provider degraded to unavailable",
		"category", category,
		"applicant_id", rec.ApplicantID(),
		"application_id", rec.ID(),
		"error", err,
	)
	unavailable, _ := models.UnavailableFact(category, reason)
	return unavailable
}
