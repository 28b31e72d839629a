package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers credit decisions, which carry regulatory retention.
	CategoryCompliance EventCategory = "compliance"
	// CategoryOperations covers rule administration and other routine changes.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        uuid.UUID
	Category  EventCategory
	Timestamp time.Time
	Action    string
	// Subject is the entity acted on: an applicant ID for decisions, a rule ID
	// for rule administration.
	Subject       string
	ApplicationID string
	Decision      string
	Reason        string
	RequestID     string
	// ActorID is the reviewer who performed the action, empty for automated ones.
	ActorID     string
	ClientIP    string
	ClientAgent string
}

type AuditEvent string

const (
	EventCreditDecisionMade    AuditEvent = "credit_decision_made"
	EventRuleCreated           AuditEvent = "rule_created"
	EventRuleUpdated           AuditEvent = "rule_updated"
	EventRuleApprovalChanged   AuditEvent = "rule_approval_changed"
	EventRuleActivationChanged AuditEvent = "rule_activation_changed"
	EventRuleProposed          AuditEvent = "rule_proposed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventCreditDecisionMade:    CategoryCompliance,
	EventRuleApprovalChanged:   CategoryCompliance,
	EventRuleCreated:           CategoryOperations,
	EventRuleUpdated:           CategoryOperations,
	EventRuleActivationChanged: CategoryOperations,
	EventRuleProposed:          CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events and answers lookups by subject.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
