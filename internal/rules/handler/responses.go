package handler

import (
	"time"

	"creditflow/internal/rules/models"
)

// RuleResponse is the wire shape of a rule definition.
type RuleResponse struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Type        string        `json:"type"`
	Parameters  models.Params `json:"parameters"`
	Approved    bool          `json:"approved"`
	Active      bool          `json:"active"`
	Origin      string        `json:"origin"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// RuleListResponse wraps rule listings.
type RuleListResponse struct {
	Rules []RuleResponse `json:"rules"`
	Total int            `json:"total"`
}

func toRuleResponse(def *models.Definition) RuleResponse {
	return RuleResponse{
		ID:          def.ID.String(),
		Name:        def.Name,
		Description: def.Description,
		Type:        string(def.Kind),
		Parameters:  def.Params,
		Approved:    def.Approved,
		Active:      def.Active,
		Origin:      string(def.Origin),
		CreatedAt:   def.CreatedAt,
		UpdatedAt:   def.UpdatedAt,
	}
}

func toRuleList(defs []*models.Definition) RuleListResponse {
	out := RuleListResponse{Rules: make([]RuleResponse, 0, len(defs)), Total: len(defs)}
	for _, def := range defs {
		out.Rules = append(out.Rules, toRuleResponse(def))
	}
	return out
}
