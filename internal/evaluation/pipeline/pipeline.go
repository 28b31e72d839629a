// Package pipeline runs a working record through the mandatory, dynamic
// and advisor stages and resolves its terminal status.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"creditflow/internal/evaluation/metrics"
	"creditflow/internal/evaluation/models"
	"creditflow/internal/evaluation/ports"
	rulesmodels "creditflow/internal/rules/models"
	dErrors "creditflow/pkg/domain-errors"
)

const (
	defaultMinimumAge      = 18
	defaultMinimumScore    = 500
	defaultRuleLoadTimeout = 2 * time.Second
	defaultAdvisorTimeout  = 10 * time.Second
)

// StageReport summarizes one stage run.
type StageReport struct {
	Stage    StageName
	State    StageState
	Skipped  bool
	Duration time.Duration
}

// Result is the resolved record plus what each stage did.
type Result struct {
	Record    *models.Record
	Status    models.Status
	Stages    []StageReport
	Proposals []rulesmodels.Definition
}

// Pipeline sequences the stages in fixed order. It holds no per-run state
// and is safe for concurrent use across records.
type Pipeline struct {
	rules   ports.RuleStore
	advisor ports.Advisor

	predicates      []models.Predicate
	minimumAge      int
	minimumScore    int
	ruleLoadTimeout time.Duration
	advisorTimeout  time.Duration
	minConfidence   float64

	stages  []Stage
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// WithThresholds sets the minimum age and score of the mandatory stage.
func WithThresholds(minimumAge, minimumScore int) Option {
	return func(p *Pipeline) {
		p.minimumAge = minimumAge
		p.minimumScore = minimumScore
	}
}

// WithPredicates replaces the default mandatory predicates.
func WithPredicates(predicates ...models.Predicate) Option {
	return func(p *Pipeline) { p.predicates = predicates }
}

func WithRuleLoadTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.ruleLoadTimeout = d }
}

func WithAdvisorTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.advisorTimeout = d }
}

// WithMinAdvisorConfidence escalates advisor verdicts below c to manual review.
func WithMinAdvisorConfidence(c float64) Option {
	return func(p *Pipeline) { p.minConfidence = c }
}

func New(rules ports.RuleStore, advisor ports.Advisor, opts ...Option) (*Pipeline, error) {
	if rules == nil {
		return nil, fmt.Errorf("rule store is required")
	}
	if advisor == nil {
		return nil, fmt.Errorf("advisor is required")
	}

	p := &Pipeline{
		rules:           rules,
		advisor:         advisor,
		minimumAge:      defaultMinimumAge,
		minimumScore:    defaultMinimumScore,
		ruleLoadTimeout: defaultRuleLoadTimeout,
		advisorTimeout:  defaultAdvisorTimeout,
		now:             time.Now,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer("creditflow/internal/evaluation/pipeline")
	}
	if p.predicates == nil {
		p.predicates = DefaultPredicates(p.minimumAge, p.minimumScore)
	}

	advisorStage := NewAdvisorStage(advisor, p.advisorTimeout, p.now, p.logger, p.metrics)
	advisorStage.minConfidence = p.minConfidence
	p.stages = []Stage{
		NewMandatoryStage(p.now, p.predicates...),
		NewDynamicStage(rules, p.ruleLoadTimeout, p.now, p.logger),
		advisorStage,
	}
	return p, nil
}

// Run evaluates rec in place and resolves its status. A cancelled context
// stops the run without assigning a status. Configuration errors from the
// rule factory are returned; collaborator failures never are.
func (p *Pipeline) Run(ctx context.Context, rec *models.Record) (*Result, error) {
	if rec == nil {
		p.logger.ErrorContext(ctx, "invariant_violation: nil record reached the pipeline")
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "record is required")
	}
	if _, resolved := rec.Status(); resolved {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "record already resolved")
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("application_id", rec.ID().String()),
	))
	defer span.End()

	result := &Result{Record: rec, Stages: make([]StageReport, 0, len(p.stages))}
	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err)
		}
		p.ensureContract(ctx, rec)

		report, proposals, err := p.runStage(ctx, stage, rec)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "stage failed")
			if ctx.Err() != nil {
				return nil, cancelled(ctx.Err())
			}
			return nil, err
		}
		result.Stages = append(result.Stages, report)
		result.Proposals = append(result.Proposals, proposals...)
	}

	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}
	status := Resolve(rec)
	if err := rec.Resolve(status, p.now()); err != nil {
		return nil, err
	}
	result.Status = status
	span.SetAttributes(attribute.String("status", string(status)))
	return result, nil
}

func (p *Pipeline) runStage(ctx context.Context, stage Stage, rec *models.Record) (StageReport, []rulesmodels.Definition, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.stage."+string(stage.Name()))
	defer span.End()

	start := time.Now()
	before := rec.TrailLen()
	out, err := stage.Run(ctx, rec)
	d := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return StageReport{}, nil, err
	}
	if rec.TrailLen() < before {
		p.logger.ErrorContext(ctx, "invariant_violation: trail shrank during stage",
			"stage", stage.Name(),
			"application_id", rec.ID(),
		)
		return StageReport{}, nil, dErrors.New(dErrors.CodeInvariantViolation, "evaluation trail shrank")
	}

	span.SetAttributes(
		attribute.String("state", string(out.State)),
		attribute.Bool("skipped", out.Skipped),
		attribute.Int("trail_entries", rec.TrailLen()-before),
	)
	p.metrics.ObserveStage(string(stage.Name()), string(out.State), d)
	return StageReport{Stage: stage.Name(), State: out.State, Skipped: out.Skipped, Duration: d}, out.Proposals, nil
}

// ensureContract re-validates the record before each stage. A record that
// fails is a bug upstream; it is logged and repaired with empty defaults.
func (p *Pipeline) ensureContract(ctx context.Context, rec *models.Record) {
	if err := rec.CheckContract(); err != nil {
		p.logger.ErrorContext(ctx, "invariant_violation: record failed contract check",
			"application_id", rec.ID(),
			"error", err,
		)
		rec.RepairContract()
	}
}

func cancelled(err error) error {
	return dErrors.Wrap(err, dErrors.CodeTimeout, "evaluation cancelled before completion")
}
