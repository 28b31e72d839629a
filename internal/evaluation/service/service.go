// Package service runs credit evaluations end to end: it creates the working
// record, gathers facts, runs the pipeline, persists the resolved record and
// publishes the decision.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"creditflow/internal/evaluation/metrics"
	"creditflow/internal/evaluation/models"
	"creditflow/internal/evaluation/pipeline"
	"creditflow/internal/evaluation/ports"
	rulesmodels "creditflow/internal/rules/models"
	id "creditflow/pkg/domain"
	dErrors "creditflow/pkg/domain-errors"
	"creditflow/pkg/platform/audit"
	"creditflow/pkg/platform/sentinel"
	"creditflow/pkg/requestcontext"
)

// Type aliases for shared interfaces.
type (
	RecordStore    = ports.RecordStore
	RuleProposer   = ports.RuleProposer
	AuditPublisher = ports.AuditPublisher
)

// Gatherer sets the applicant facts on a new record.
type Gatherer interface {
	Gather(ctx context.Context, rec *models.Record) error
}

// Evaluator runs the rule pipeline over a record and resolves it.
type Evaluator interface {
	Run(ctx context.Context, rec *models.Record) (*pipeline.Result, error)
}

type Service struct {
	records        RecordStore
	gatherer       Gatherer
	evaluator      Evaluator
	proposer       RuleProposer
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRuleProposer forwards advisor rule proposals to the rule store.
// Without one, proposals are logged and dropped.
func WithRuleProposer(p RuleProposer) Option {
	return func(s *Service) {
		s.proposer = p
	}
}

func New(records RecordStore, gatherer Gatherer, evaluator Evaluator, opts ...Option) (*Service, error) {
	if records == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if gatherer == nil {
		return nil, fmt.Errorf("fact gatherer is required")
	}
	if evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}

	svc := &Service{
		records:   records,
		gatherer:  gatherer,
		evaluator: evaluator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// EvaluateCommand is a credit application as submitted by the caller.
type EvaluateCommand struct {
	ApplicantID     id.ApplicantID
	RequestedAmount float64
	Parameters      models.Parameters
}

// Evaluate runs one application through the pipeline and stores the result.
// A cancelled context returns a timeout error and nothing is persisted.
func (s *Service) Evaluate(ctx context.Context, cmd EvaluateCommand) (*pipeline.Result, error) {
	start := time.Now()
	rec, err := models.NewRecord(id.NewApplicationID(), cmd.ApplicantID, cmd.RequestedAmount, cmd.Parameters, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.gatherer.Gather(ctx, rec); err != nil {
		return nil, cancelledOr(ctx, err, "failed to gather applicant facts")
	}

	result, err := s.evaluator.Run(ctx, rec)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConfiguration) {
			s.logger.ErrorContext(ctx, "rule configuration error",
				"application_id", rec.ID(),
				"error", err,
			)
		}
		return nil, cancelledOr(ctx, err, "evaluation failed")
	}
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "evaluation cancelled before completion")
	}

	if err := s.records.Save(ctx, rec); err != nil {
		return nil, cancelledOr(ctx, err, "failed to store evaluation")
	}

	s.forwardProposals(ctx, rec, result.Proposals)
	s.metrics.IncrementOutcome(string(result.Status))
	s.metrics.ObserveEvaluateLatency(time.Since(start))
	s.emitDecision(ctx, rec, result.Status)

	s.logger.InfoContext(ctx, "credit evaluation completed",
		"application_id", rec.ID(),
		"applicant_id", rec.ApplicantID(),
		"status", result.Status,
		"hard_failure", rec.HardFailure(),
		"needs_manual_review", rec.NeedsManualReview(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return result, nil
}

func (s *Service) Get(ctx context.Context, applicationID id.ApplicationID) (*models.Record, error) {
	rec, err := s.records.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "evaluation not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load evaluation")
	}
	return rec, nil
}

// ListByApplicant returns the applicant's evaluations, newest first.
func (s *Service) ListByApplicant(ctx context.Context, applicantID id.ApplicantID) ([]*models.Record, error) {
	recs, err := s.records.ListByApplicant(ctx, applicantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list evaluations")
	}
	return recs, nil
}

func (s *Service) forwardProposals(ctx context.Context, rec *models.Record, proposals []rulesmodels.Definition) {
	for _, p := range proposals {
		if s.proposer == nil {
			s.logger.InfoContext(ctx, "advisor rule proposal dropped, no rule proposer configured",
				"application_id", rec.ID(),
				"rule_name", p.Name,
			)
			continue
		}
		if _, err := s.proposer.Propose(ctx, p); err != nil {
			s.logger.WarnContext(ctx, "advisor rule proposal skipped",
				"application_id", rec.ID(),
				"rule_name", p.Name,
				"error", err,
			)
		}
	}
}

func (s *Service) emitDecision(ctx context.Context, rec *models.Record, status models.Status) {
	if s.auditPublisher == nil {
		return
	}
	event := audit.EventCreditDecisionMade
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Category:      event.Category(),
		Timestamp:     rec.CompletedAt(),
		Action:        string(event),
		Subject:       rec.ApplicantID().String(),
		ApplicationID: rec.ID().String(),
		Decision:      string(status),
		Reason:        decisionReason(rec, status),
		RequestID:     requestcontext.RequestID(ctx),
		ActorID:       requestcontext.ActorID(ctx),
		ClientIP:      requestcontext.ClientIP(ctx),
		ClientAgent:   requestcontext.ClientAgent(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit credit decision audit event",
			"application_id", rec.ID(),
			"error", err,
		)
	}
}

func decisionReason(rec *models.Record, status models.Status) string {
	switch status {
	case models.StatusManualReview:
		return rec.ManualReviewReason()
	case models.StatusRejected:
		return strings.Join(rec.FailedDescriptions(), "; ")
	default:
		return ""
	}
}

func cancelledOr(ctx context.Context, err error, msg string) error {
	if ctx.Err() != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "evaluation cancelled before completion")
	}
	if _, ok := dErrors.Is(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
