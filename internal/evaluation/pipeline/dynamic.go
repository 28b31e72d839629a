package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"creditflow/internal/evaluation/models"
	"creditflow/internal/evaluation/ports"
	"creditflow/internal/rules/dynamic"
	rulesmodels "creditflow/internal/rules/models"
	dErrors "creditflow/pkg/domain-errors"
)

const ruleLoadEntry = "DYNAMIC_RULES"

// DynamicStage evaluates approved configurable rules loaded at stage entry.
// Unapproved rules escalate the record to manual review without being run.
type DynamicStage struct {
	rules   ports.RuleStore
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

func NewDynamicStage(rules ports.RuleStore, timeout time.Duration, now func() time.Time, logger *slog.Logger) *DynamicStage {
	return &DynamicStage{rules: rules, timeout: timeout, now: now, logger: logger}
}

func (s *DynamicStage) Name() StageName { return StageDynamic }

func (s *DynamicStage) Run(ctx context.Context, rec *models.Record) (Outcome, error) {
	if rec.HardFailure() {
		return skipped(), nil
	}

	defs, err := s.load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		s.logger.WarnContext(ctx, "dynamic rules unavailable, escalating to manual review",
			"application_id", rec.ID(),
			"error", err,
		)
		rec.RequireManualReview(models.ReasonDynamicRulesDown)
		rec.AppendEntry(models.TrailEntry{
			RuleName:    ruleLoadEntry,
			Passed:      false,
			Description: "dynamic rules could not be loaded",
			EvaluatedAt: s.now(),
		})
		return Outcome{State: StateEscalated}, nil
	}

	var (
		executable []dynamic.Rule
		pending    []string
	)
	// Every loaded definition must build, approved or not.
	for _, def := range defs {
		rule, err := dynamic.Build(def)
		if err != nil {
			return Outcome{}, err
		}
		if !def.Approved {
			pending = append(pending, def.Name)
			continue
		}
		executable = append(executable, rule)
	}

	if len(pending) > 0 {
		s.logger.InfoContext(ctx, "dynamic rules pending approval",
			"application_id", rec.ID(),
			"rules", pending,
		)
		rec.RequireManualReview(models.ReasonDynamicRulePending)
	}

	for _, rule := range executable {
		entry := models.TrailEntry{
			RuleName:    rule.Name(),
			Passed:      rule.Evaluate(rec),
			Description: rule.Description(),
			EvaluatedAt: s.now(),
		}
		if !entry.Passed {
			rec.FailHard(entry)
			return Outcome{State: StateFailed}, nil
		}
		rec.AppendEntry(entry)
	}

	if len(pending) > 0 {
		return Outcome{State: StateEscalated}, nil
	}
	return Outcome{State: StatePassed}, nil
}

// load returns a private, sorted snapshot of the active definitions so
// concurrent rule changes never affect a running evaluation.
func (s *DynamicStage) load(ctx context.Context) ([]*rulesmodels.Definition, error) {
	loadCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	loaded, err := s.rules.ListActive(loadCtx)
	if err != nil {
		return nil, err
	}

	snapshot := make([]*rulesmodels.Definition, 0, len(loaded))
	for _, def := range loaded {
		if def == nil {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "rule store returned a nil definition")
		}
		if !def.Active {
			continue
		}
		d := *def
		snapshot = append(snapshot, &d)
	}
	sort.SliceStable(snapshot, func(i, j int) bool {
		if snapshot[i].Name != snapshot[j].Name {
			return snapshot[i].Name < snapshot[j].Name
		}
		return snapshot[i].ID.String() < snapshot[j].ID.String()
	})
	return snapshot, nil
}
