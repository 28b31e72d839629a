// Package service administers rule definitions for reviewers and accepts
// rule proposals from the advisor.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"creditflow/internal/rules/models"
	"creditflow/internal/rules/ports"
	id "creditflow/pkg/domain"
	dErrors "creditflow/pkg/domain-errors"
	"creditflow/pkg/platform/audit"
	"creditflow/pkg/platform/sentinel"
	"creditflow/pkg/requestcontext"
)

// Type aliases for shared interfaces.
type (
	Store          = ports.Store
	AuditPublisher = ports.AuditPublisher
)

type Service struct {
	store          Store
	auditPublisher AuditPublisher
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

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("rule store is required")
	}

	svc := &Service{
		store:  store,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// CreateCommand carries the fields a reviewer supplies for a new rule.
type CreateCommand struct {
	Name        string
	Description string
	Kind        models.Kind
	Params      models.Params
	Approved    bool
	Active      *bool
	Origin      models.Origin
}

// UpdateCommand replaces the editable fields of an existing rule.
type UpdateCommand struct {
	Name        string
	Description string
	Kind        models.Kind
	Params      models.Params
}

func (s *Service) List(ctx context.Context, filter models.Filter) ([]*models.Definition, error) {
	defs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list rules")
	}
	return defs, nil
}

// ListActive returns every active definition. The evaluation pipeline reads
// rules through this method.
func (s *Service) ListActive(ctx context.Context) ([]*models.Definition, error) {
	defs, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	return defs, nil
}

func (s *Service) Get(ctx context.Context, ruleID id.RuleID) (*models.Definition, error) {
	def, err := s.store.FindByID(ctx, ruleID)
	if err != nil {
		return nil, translate(err, "failed to load rule")
	}
	return def, nil
}

// Create stores a new rule. Origin defaults to HUMAN and Active to true.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*models.Definition, error) {
	now := requestcontext.Now(ctx)
	def := &models.Definition{
		ID:          id.NewRuleID(),
		Name:        cmd.Name,
		Description: cmd.Description,
		Kind:        cmd.Kind,
		Params:      cmd.Params,
		Approved:    cmd.Approved,
		Active:      true,
		Origin:      cmd.Origin,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if cmd.Active != nil {
		def.Active = *cmd.Active
	}
	if def.Origin == "" {
		def.Origin = models.OriginHuman
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, def); err != nil {
		return nil, translate(err, "failed to create rule")
	}

	s.emit(ctx, audit.EventRuleCreated, def, fmt.Sprintf("kind=%s approved=%t active=%t", def.Kind, def.Approved, def.Active))
	return def, nil
}

// Update replaces a rule's name, description, type and parameters.
// Approval and activation are changed through their own operations.
func (s *Service) Update(ctx context.Context, ruleID id.RuleID, cmd UpdateCommand) (*models.Definition, error) {
	def, err := s.Get(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	def.Name = cmd.Name
	def.Description = cmd.Description
	def.Kind = cmd.Kind
	def.Params = cmd.Params
	def.UpdatedAt = requestcontext.Now(ctx)
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, def); err != nil {
		return nil, translate(err, "failed to update rule")
	}

	s.emit(ctx, audit.EventRuleUpdated, def, "kind="+string(def.Kind))
	return def, nil
}

// SetApproval marks a rule as approved or not for automatic use.
func (s *Service) SetApproval(ctx context.Context, ruleID id.RuleID, approved bool) (*models.Definition, error) {
	return s.toggle(ctx, ruleID, audit.EventRuleApprovalChanged, func(def *models.Definition) (bool, string) {
		changed := def.Approved != approved
		def.Approved = approved
		return changed, fmt.Sprintf("approved=%t", approved)
	})
}

// SetActivation activates or deactivates a rule.
func (s *Service) SetActivation(ctx context.Context, ruleID id.RuleID, active bool) (*models.Definition, error) {
	return s.toggle(ctx, ruleID, audit.EventRuleActivationChanged, func(def *models.Definition) (bool, string) {
		changed := def.Active != active
		def.Active = active
		return changed, fmt.Sprintf("active=%t", active)
	})
}

func (s *Service) toggle(ctx context.Context, ruleID id.RuleID, event audit.AuditEvent, apply func(*models.Definition) (bool, string)) (*models.Definition, error) {
	def, err := s.Get(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	changed, reason := apply(def)
	if !changed {
		return def, nil
	}
	def.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, def); err != nil {
		return nil, translate(err, "failed to update rule")
	}
	s.emit(ctx, event, def, reason)
	return def, nil
}

// Propose stores a rule suggested by the advisor. Proposals are never
// approved for automatic use until a reviewer approves them.
func (s *Service) Propose(ctx context.Context, proposal models.Definition) (*models.Definition, error) {
	now := requestcontext.Now(ctx)
	def := &models.Definition{
		ID:          id.NewRuleID(),
		Name:        proposal.Name,
		Description: proposal.Description,
		Kind:        proposal.Kind,
		Params:      proposal.Params,
		Approved:    false,
		Active:      true,
		Origin:      models.OriginAdvisor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, def); err != nil {
		return nil, translate(err, "failed to store proposed rule")
	}

	s.logger.InfoContext(ctx, "advisor rule proposal stored",
		"rule_id", def.ID,
		"rule_name", def.Name,
		"kind", def.Kind,
	)
	s.emit(ctx, audit.EventRuleProposed, def, "kind="+string(def.Kind))
	return def, nil
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, def *models.Definition, reason string) {
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Category:    event.Category(),
		Action:      string(event),
		Subject:     def.ID.String(),
		Decision:    def.Name,
		Reason:      reason,
		RequestID:   requestcontext.RequestID(ctx),
		ActorID:     requestcontext.ActorID(ctx),
		ClientIP:    requestcontext.ClientIP(ctx),
		ClientAgent: requestcontext.ClientAgent(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit rule audit event",
			"action", event,
			"rule_id", def.ID,
			"error", err,
		)
	}
}

func translate(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "rule not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "a rule with this name already exists")
	}
	if _, ok := dErrors.Is(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
