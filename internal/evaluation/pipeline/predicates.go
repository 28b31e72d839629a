package pipeline

import (
	"fmt"

	"creditflow/internal/evaluation/models"
)

// MinimumAge fails when the applicant's age is unknown or below Threshold.
type MinimumAge struct {
	Threshold int
}

func (p MinimumAge) Name() string { return "minimum_age" }

func (p MinimumAge) Description() string {
	return fmt.Sprintf("applicant must be at least %d years old", p.Threshold)
}

func (p MinimumAge) Evaluate(r models.Reader) bool {
	profile := r.Profile()
	if !profile.Available() || profile.Age == nil {
		return false
	}
	return *profile.Age >= p.Threshold
}

// MinimumScore fails when the bureau score is unknown or below Threshold.
type MinimumScore struct {
	Threshold int
}

func (p MinimumScore) Name() string { return "minimum_score" }

func (p MinimumScore) Description() string {
	return fmt.Sprintf("credit score must be at least %d", p.Threshold)
}

func (p MinimumScore) Evaluate(r models.Reader) bool {
	bureau := r.Bureau()
	if !bureau.Available() || bureau.Score == nil {
		return false
	}
	return *bureau.Score >= p.Threshold
}

// DefaultPredicates returns the mandatory checks in evaluation order.
func DefaultPredicates(minimumAge, minimumScore int) []models.Predicate {
	return []models.Predicate{
		MinimumAge{Threshold: minimumAge},
		MinimumScore{Threshold: minimumScore},
	}
}
