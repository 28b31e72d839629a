package advisor

import (
	"context"
	"fmt"
	"strings"

	"creditflow/internal/evaluation/models"
	"creditflow/internal/evaluation/ports"
)

const sourceHeuristic = "heuristic"

// Heuristic defaults.
const (
	DefaultHeuristicMinAge       = 21
	DefaultHeuristicMinScore     = 700
	DefaultHeuristicIncomeFactor = 10.0
)

// Heuristic is a deterministic advisor used when no model endpoint is
// configured and as the fallback while the model circuit is open.
type Heuristic struct {
	MinAge       int
	MinScore     int
	IncomeFactor float64
}

// NewHeuristic returns a heuristic advisor with the default thresholds.
func NewHeuristic() *Heuristic {
	return &Heuristic{
		MinAge:       DefaultHeuristicMinAge,
		MinScore:     DefaultHeuristicMinScore,
		IncomeFactor: DefaultHeuristicIncomeFactor,
	}
}

// Consult approves applicants who are old enough, score well and ask for at
// most IncomeFactor times their monthly income. Missing data is sent to
// manual review with low confidence.
func (h *Heuristic) Consult(ctx context.Context, view models.View) (*ports.AdvisorResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	profile, bureau := view.Profile, view.Bureau
	var missing []string
	if profile == nil || !profile.IsAvailable || profile.Age == nil || profile.MonthlyIncome == nil {
		missing = append(missing, "applicant profile")
	}
	if bureau == nil || !bureau.IsAvailable || bureau.Score == nil {
		missing = append(missing, "credit bureau")
	}
	if len(missing) > 0 {
		return h.respond(models.AdvisorManualReview, 0.45,
			"insufficient data: "+strings.Join(missing, ", ")+" unavailable"), nil
	}

	age, score, income := *profile.Age, *bureau.Score, *profile.MonthlyIncome
	limit := income * h.IncomeFactor

	var failures []string
	if age < h.MinAge {
		failures = append(failures, fmt.Sprintf("age %d below %d", age, h.MinAge))
	}
	if score < h.MinScore {
		failures = append(failures, fmt.Sprintf("score %d below %d", score, h.MinScore))
	}
	if view.RequestedAmount > limit {
		failures = append(failures, fmt.Sprintf("amount %.2f above %.2f", view.RequestedAmount, limit))
	}
	if len(failures) == 0 {
		return h.respond(models.AdvisorApprove, 0.85, "profile within acceptable parameters"), nil
	}
	return h.respond(models.AdvisorReject, 0.85,
		"profile does not meet minimum credit requirements: "+strings.Join(failures, "; ")), nil
}

func (h *Heuristic) respond(d models.AdvisorDecision, confidence float64, justification string) *ports.AdvisorResponse {
	return &ports.AdvisorResponse{
		Outcome: models.AdvisorOutcome{
			Decision:      d,
			Confidence:    confidence,
			Justification: justification,
			Source:        sourceHeuristic,
		},
	}
}
