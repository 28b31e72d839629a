package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"creditflow/internal/evaluation/metrics"
	"creditflow/internal/evaluation/models"
	"creditflow/internal/evaluation/ports"
	dErrors "creditflow/pkg/domain-errors"
)

const advisorEntry = "ADVISOR"

var errMalformedAdvice = errors.New("malformed advisor response")

// AdvisorStage consults the advisor for records that did not pass cleanly.
// Advisor failures never leave the stage; they escalate to manual review.
type AdvisorStage struct {
	advisor       ports.Advisor
	timeout       time.Duration
	minConfidence float64
	now           func() time.Time
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

func NewAdvisorStage(advisor ports.Advisor, timeout time.Duration, now func() time.Time, logger *slog.Logger, m *metrics.Metrics) *AdvisorStage {
	return &AdvisorStage{advisor: advisor, timeout: timeout, now: now, logger: logger, metrics: m}
}

func (s *AdvisorStage) Name() StageName { return StageAdvisor }

// ShouldConsult reports whether the record needs a second opinion: only
// records with a hard failure or a pending manual review are sent.
func ShouldConsult(rec *models.Record) bool {
	return rec.HardFailure() || rec.NeedsManualReview()
}

func (s *AdvisorStage) Run(ctx context.Context, rec *models.Record) (Outcome, error) {
	if !ShouldConsult(rec) {
		return skipped(), nil
	}

	resp, err := s.consult(ctx, rec.View())
	if err == nil {
		err = validateAdvice(resp)
	}
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		s.metrics.IncrementAdvisorCall("error")
		s.logger.WarnContext(ctx, "advisor unavailable, escalating to manual review",
			"application_id", rec.ID(),
			"error", err,
		)
		rec.RequireManualReview(models.ReasonAdvisorUnavailable)
		rec.AppendEntry(models.TrailEntry{
			RuleName:    advisorEntry,
			Passed:      false,
			Description: "advisor unavailable: " + describeFailure(err),
			EvaluatedAt: s.now(),
		})
		return Outcome{State: StateEscalated}, nil
	}

	outcome := resp.Outcome
	outcome.Decision, _ = models.ParseAdvisorDecision(string(outcome.Decision))
	rec.SetAdvisorOutcome(outcome)

	if resp.Fallback {
		s.metrics.IncrementAdvisorCall("fallback")
		s.logger.WarnContext(ctx, "advisor answered by fallback, escalating to manual review",
			"application_id", rec.ID(),
			"source", outcome.Source,
			"decision", outcome.Decision,
		)
		rec.RequireManualReview(models.ReasonAdvisorUnavailable)
		rec.AppendEntry(models.TrailEntry{
			RuleName:    advisorEntry,
			Passed:      false,
			Description: fmt.Sprintf("advisor unavailable: fallback suggested %s: %s", outcome.Decision, outcome.Justification),
			EvaluatedAt: s.now(),
		})
		return Outcome{State: StateEscalated}, nil
	}

	s.metrics.IncrementAdvisorCall(string(outcome.Decision))

	result := Outcome{Proposals: resp.ProposedRules}
	entry := models.TrailEntry{RuleName: advisorEntry, EvaluatedAt: s.now()}

	switch {
	case s.minConfidence > 0 && outcome.Confidence < s.minConfidence:
		rec.RequireManualReview(models.ReasonAdvisorLowConfidence)
		entry.Description = fmt.Sprintf("advisor confidence %.2f below %.2f: %s", outcome.Confidence, s.minConfidence, outcome.Justification)
		result.State = StateEscalated
	case outcome.Decision == models.AdvisorManualReview:
		rec.RequireManualReview(models.ReasonAdvisorManualReview)
		entry.Description = "advisor recommended manual review: " + outcome.Justification
		result.State = StateEscalated
	case outcome.Decision == models.AdvisorReject:
		entry.Description = "advisor recommended rejection: " + outcome.Justification
		result.State = StateFailed
	default:
		entry.Passed = true
		entry.Description = "advisor recommended approval: " + outcome.Justification
		result.State = StatePassed
	}
	rec.AppendEntry(entry)

	s.logger.InfoContext(ctx, "advisor consulted",
		"application_id", rec.ID(),
		"decision", outcome.Decision,
		"confidence", outcome.Confidence,
		"proposals", len(resp.ProposedRules),
	)
	return result, nil
}

// consult enforces the hard timeout even when the advisor ignores its
// context, and turns advisor panics into errors.
func (s *AdvisorStage) consult(ctx context.Context, view models.View) (*ports.AdvisorResponse, error) {
	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	type result struct {
		resp *ports.AdvisorResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("advisor panicked: %v", r)}
			}
		}()
		resp, err := s.advisor.Consult(callCtx, view)
		done <- result{resp: resp, err: err}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-callCtx.Done():
		return nil, callCtx.Err()
	}
}

func validateAdvice(resp *ports.AdvisorResponse) error {
	if resp == nil {
		return errMalformedAdvice
	}
	if !resp.Outcome.Valid() {
		return fmt.Errorf("%w: decision %q confidence %v", errMalformedAdvice, resp.Outcome.Decision, resp.Outcome.Confidence)
	}
	return nil
}

func describeFailure(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, errMalformedAdvice):
		return "malformed response"
	case dErrors.HasCode(err, dErrors.CodeTimeout):
		return "timeout"
	default:
		return "transport error"
	}
}
