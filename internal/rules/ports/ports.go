// Package ports declares the collaborators the rule service depends on.
package ports

import (
	"context"

	"creditflow/internal/rules/models"
	id "creditflow/pkg/domain"
	"creditflow/pkg/platform/audit"
)

//go:generate mockgen -source=ports.go -destination=../mocks/mocks.go -package=mocks

// Store persists rule definitions. Implementations return sentinel.ErrNotFound
// and sentinel.ErrConflict for missing rules and duplicate names.
type Store interface {
	Create(ctx context.Context, def *models.Definition) error
	Update(ctx context.Context, def *models.Definition) error
	FindByID(ctx context.Context, ruleID id.RuleID) (*models.Definition, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Definition, error)
	ListActive(ctx context.Context) ([]*models.Definition, error)
	Count(ctx context.Context) (int, error)
}

// AuditPublisher records reviewer and advisor changes to rules.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
