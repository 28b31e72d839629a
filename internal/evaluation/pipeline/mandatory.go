package pipeline

import (
	"context"
	"time"

	"creditflow/internal/evaluation/models"
)

// MandatoryStage evaluates the eligibility predicates in order and stops
// at the first failure.
type MandatoryStage struct {
	predicates []models.Predicate
	now        func() time.Time
}

func NewMandatoryStage(now func() time.Time, predicates ...models.Predicate) *MandatoryStage {
	return &MandatoryStage{predicates: predicates, now: now}
}

func (s *MandatoryStage) Name() StageName { return StageMandatory }

func (s *MandatoryStage) Run(_ context.Context, rec *models.Record) (Outcome, error) {
	for _, p := range s.predicates {
		entry := models.TrailEntry{
			RuleName:    p.Name(),
			Passed:      p.Evaluate(rec),
			Description: p.Description(),
			EvaluatedAt: s.now(),
		}
		if !entry.Passed {
			rec.FailHard(entry)
			return Outcome{State: StateFailed}, nil
		}
		rec.AppendEntry(entry)
	}
	return Outcome{State: StatePassed}, nil
}
