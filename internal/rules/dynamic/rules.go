// Package dynamic builds executable configurable rules from persisted
// rule definitions.
package dynamic

import (
	"fmt"
	"math"

	evmodels "creditflow/internal/evaluation/models"
	"creditflow/internal/rules/models"
)

// DefaultTerm is the loan term assumed when the application carries none.
const DefaultTerm = 12

// Rule is an executable configurable rule. Evaluate never mutates the
// record and treats missing facts as failing evidence.
type Rule interface {
	evmodels.Predicate
	Kind() models.Kind
	ApprovedForAutomaticUse() bool
}

// base carries the definition fields every kind shares. It is copied by
// value into each rule so built rules share no mutable state.
type base struct {
	name        string
	description string
	approved    bool
}

func (b base) Name() string                  { return b.name }
func (b base) ApprovedForAutomaticUse() bool { return b.approved }

func (b base) describe(fallback string) string {
	if b.description != "" {
		return b.description
	}
	return fallback
}

// IncomeCommitment fails when the installment exceeds MaxPercentage of
// monthly income.
type IncomeCommitment struct {
	base
	params models.IncomeCommitmentParams
}

func (r IncomeCommitment) Kind() models.Kind { return models.KindIncomeCommitment }

func (r IncomeCommitment) Description() string {
	return r.describe(fmt.Sprintf("installment must not exceed %.2f%% of monthly income", r.params.MaxPercentage))
}

func (r IncomeCommitment) Evaluate(rec evmodels.Reader) bool {
	profile := rec.Profile()
	if !profile.Available() || profile.MonthlyIncome == nil || *profile.MonthlyIncome <= 0 {
		return false
	}
	term, ok := rec.Parameters().Term()
	if !ok {
		term = DefaultTerm
	}
	installment := Installment(rec.RequestedAmount(), r.params.Rate(), term)
	commitment := installment / *profile.MonthlyIncome * 100
	return commitment <= r.params.MaxPercentage
}

// Installment computes a fixed monthly payment with the Price formula.
func Installment(principal, monthlyRate float64, term int) float64 {
	if term <= 0 {
		term = DefaultTerm
	}
	n := float64(term)
	if monthlyRate == 0 {
		return principal / n
	}
	return principal * monthlyRate / (1 - math.Pow(1+monthlyRate, -n))
}

// MaxAmount caps the requested amount, optionally only for applicants
// without a prior banking relationship.
type MaxAmount struct {
	base
	params models.MaxAmountParams
}

func (r MaxAmount) Kind() models.Kind { return models.KindMaxAmount }

func (r MaxAmount) Description() string {
	if r.params.FirstRelationshipOnly {
		return r.describe(fmt.Sprintf("first-relationship applicants may request at most %.2f", r.params.MaxAmount))
	}
	return r.describe(fmt.Sprintf("requested amount must not exceed %.2f", r.params.MaxAmount))
}

func (r MaxAmount) Evaluate(rec evmodels.Reader) bool {
	if r.params.FirstRelationshipOnly && rec.Banking().HasPriorRelationship() {
		return true
	}
	return rec.RequestedAmount() <= r.params.MaxAmount
}

// ConditionalScore applies a score floor while its condition holds.
type ConditionalScore struct {
	base
	params models.ConditionalScoreParams
}

func (r ConditionalScore) Kind() models.Kind { return models.KindConditionalScore }

func (r ConditionalScore) Description() string {
	switch r.params.Condition {
	case models.ConditionHighIncome:
		return r.describe(fmt.Sprintf("applicants earning at least %.2f need a score of %d", r.params.Threshold(), r.params.MinimumScore))
	default:
		return r.describe(fmt.Sprintf("delinquent applicants need a score of %d", r.params.MinimumScore))
	}
}

func (r ConditionalScore) Evaluate(rec evmodels.Reader) bool {
	if !r.conditionHolds(rec) {
		return true
	}
	bureau := rec.Bureau()
	if !bureau.Available() || bureau.Score == nil {
		return false
	}
	return *bureau.Score >= r.params.MinimumScore
}

func (r ConditionalScore) conditionHolds(rec evmodels.Reader) bool {
	switch r.params.Condition {
	case models.ConditionDelinquent:
		return rec.Bureau().Delinquent()
	case models.ConditionHighIncome:
		p := rec.Profile()
		return p.Available() && p.MonthlyIncome != nil && *p.MonthlyIncome >= r.params.Threshold()
	default:
		return false
	}
}

// MinTerm requires a minimum term once the amount exceeds a threshold.
type MinTerm struct {
	base
	params models.MinTermParams
}

func (r MinTerm) Kind() models.Kind { return models.KindMinTerm }

func (r MinTerm) Description() string {
	return r.describe(fmt.Sprintf("amounts above %.2f need a term of at least %d months", r.params.AmountThreshold, r.params.MinimumTerm))
}

func (r MinTerm) Evaluate(rec evmodels.Reader) bool {
	if rec.RequestedAmount() <= r.params.AmountThreshold {
		return true
	}
	term, ok := rec.Parameters().Term()
	return ok && term >= r.params.MinimumTerm
}
