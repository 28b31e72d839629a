package pipeline

import (
	"context"

	"creditflow/internal/evaluation/models"
	rulesmodels "creditflow/internal/rules/models"
)

// StageName identifies a pipeline stage.
type StageName string

const (
	StageMandatory StageName = "mandatory_rules"
	StageDynamic   StageName = "dynamic_rules"
	StageAdvisor   StageName = "advisor_consultation"
)

// StageState is the progression of a stage: it starts PENDING and ends
// PASSED, FAILED or ESCALATED. A skipped stage stays PENDING.
type StageState string

const (
	StatePending   StageState = "PENDING"
	StatePassed    StageState = "PASSED"
	StateFailed    StageState = "FAILED"
	StateEscalated StageState = "ESCALATED"
)

// Outcome is what a stage reports after running.
type Outcome struct {
	State     StageState
	Skipped   bool
	Proposals []rulesmodels.Definition
}

// Stage reads and writes the record it is handed. Stages never copy the
// record; the orchestrator passes the same pointer to each in turn.
type Stage interface {
	Name() StageName
	Run(ctx context.Context, rec *models.Record) (Outcome, error)
}

func skipped() Outcome {
	return Outcome{State: StatePending, Skipped: true}
}
