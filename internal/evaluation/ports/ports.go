// Package ports declares the collaborators the evaluation core consumes.
// Adapters implement these without the core depending on transports,
// databases or model providers.
package ports

import (
	"context"

	"creditflow/internal/evaluation/models"
	rulesmodels "creditflow/internal/rules/models"
	id "creditflow/pkg/domain"
	"creditflow/pkg/platform/audit"
)

//go:generate mockgen -source=ports.go -destination=../mocks/mocks.go -package=mocks

// RuleStore returns the active rule definitions. Order is not guaranteed.
type RuleStore interface {
	ListActive(ctx context.Context) ([]*rulesmodels.Definition, error)
}

// AdvisorResponse is the structured verdict of the advisor. Fallback is set
// when the verdict came from a stand-in while the real advisor was
// unreachable; such a verdict is advisory only.
type AdvisorResponse struct {
	Outcome       models.AdvisorOutcome
	ProposedRules []rulesmodels.Definition
	Fallback      bool
}

// Advisor consults an external decision service. It receives a detached
// view of the record, never the record itself.
type Advisor interface {
	Consult(ctx context.Context, view models.View) (*AdvisorResponse, error)
}

// FactProvider loads one category of applicant facts.
type FactProvider interface {
	Category() models.FactCategory
	Load(ctx context.Context, applicantID id.ApplicantID) (models.Fact, error)
}

// RecordStore persists finished records. FindByID returns sentinel.ErrNotFound
// for unknown IDs.
type RecordStore interface {
	Save(ctx context.Context, rec *models.Record) error
	FindByID(ctx context.Context, applicationID id.ApplicationID) (*models.Record, error)
	ListByApplicant(ctx context.Context, applicantID id.ApplicantID) ([]*models.Record, error)
}

// RuleProposer stores advisor-proposed rules as unapproved definitions.
type RuleProposer interface {
	Propose(ctx context.Context, proposal rulesmodels.Definition) (*rulesmodels.Definition, error)
}

// AuditPublisher records credit decisions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
