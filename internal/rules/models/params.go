package models

import (
	"bytes"
	"encoding/json"
	"math"

	dErrors "creditflow/pkg/domain-errors"
)

// Params is the sealed set of per-kind rule parameters. Each variant
// belongs to exactly one Kind.
type Params interface {
	Kind() Kind
	Validate() error
	sealed()
}

// Condition names the trigger of a conditional-score rule.
type Condition string

const (
	ConditionDelinquent Condition = "DELINQUENT"
	ConditionHighIncome Condition = "HIGH_INCOME"
)

func (c Condition) IsValid() bool {
	return c == ConditionDelinquent || c == ConditionHighIncome
}

const (
	DefaultMonthlyRate     = 0.02
	DefaultIncomeThreshold = 8000.0
)

// IncomeCommitmentParams caps the installment as a share of monthly income.
type IncomeCommitmentParams struct {
	MaxPercentage float64  `json:"max_percentage" yaml:"max_percentage"`
	MonthlyRate   *float64 `json:"monthly_rate,omitempty" yaml:"monthly_rate,omitempty"`
}

func (IncomeCommitmentParams) Kind() Kind { return KindIncomeCommitment }
func (IncomeCommitmentParams) sealed()    {}

// Rate returns the monthly interest rate, defaulting to DefaultMonthlyRate.
func (p IncomeCommitmentParams) Rate() float64 {
	if p.MonthlyRate == nil {
		return DefaultMonthlyRate
	}
	return *p.MonthlyRate
}

func (p IncomeCommitmentParams) Validate() error {
	if !finite(p.MaxPercentage) || p.MaxPercentage <= 0 || p.MaxPercentage > 100 {
		return dErrors.New(dErrors.CodeValidation, "max_percentage must be within (0, 100]")
	}
	if p.MonthlyRate != nil && (!finite(*p.MonthlyRate) || *p.MonthlyRate < 0 || *p.MonthlyRate >= 1) {
		return dErrors.New(dErrors.CodeValidation, "monthly_rate must be within [0, 1)")
	}
	return nil
}

// MaxAmountParams caps the requested amount.
type MaxAmountParams struct {
	MaxAmount             float64 `json:"max_amount" yaml:"max_amount"`
	FirstRelationshipOnly bool    `json:"first_relationship_only" yaml:"first_relationship_only"`
}

func (MaxAmountParams) Kind() Kind { return KindMaxAmount }
func (MaxAmountParams) sealed()    {}

func (p MaxAmountParams) Validate() error {
	if !finite(p.MaxAmount) || p.MaxAmount <= 0 {
		return dErrors.New(dErrors.CodeValidation, "max_amount must be positive")
	}
	return nil
}

// ConditionalScoreParams applies a score floor only while Condition holds.
type ConditionalScoreParams struct {
	MinimumScore    int       `json:"minimum_score" yaml:"minimum_score"`
	Condition       Condition `json:"condition" yaml:"condition"`
	IncomeThreshold *float64  `json:"income_threshold,omitempty" yaml:"income_threshold,omitempty"`
}

func (ConditionalScoreParams) Kind() Kind { return KindConditionalScore }
func (ConditionalScoreParams) sealed()    {}

// Threshold returns the HIGH_INCOME threshold, defaulting to DefaultIncomeThreshold.
func (p ConditionalScoreParams) Threshold() float64 {
	if p.IncomeThreshold == nil {
		return DefaultIncomeThreshold
	}
	return *p.IncomeThreshold
}

func (p ConditionalScoreParams) Validate() error {
	if p.MinimumScore < 0 || p.MinimumScore > 1000 {
		return dErrors.New(dErrors.CodeValidation, "minimum_score must be within [0, 1000]")
	}
	if !p.Condition.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "condition must be DELINQUENT or HIGH_INCOME")
	}
	if p.IncomeThreshold != nil && (!finite(*p.IncomeThreshold) || *p.IncomeThreshold <= 0) {
		return dErrors.New(dErrors.CodeValidation, "income_threshold must be positive")
	}
	return nil
}

// MinTermParams requires a minimum term above an amount threshold.
type MinTermParams struct {
	AmountThreshold float64 `json:"amount_threshold" yaml:"amount_threshold"`
	MinimumTerm     int     `json:"minimum_term" yaml:"minimum_term"`
}

func (MinTermParams) Kind() Kind { return KindMinTerm }
func (MinTermParams) sealed()    {}

func (p MinTermParams) Validate() error {
	if !finite(p.AmountThreshold) || p.AmountThreshold < 0 {
		return dErrors.New(dErrors.CodeValidation, "amount_threshold must not be negative")
	}
	if p.MinimumTerm <= 0 {
		return dErrors.New(dErrors.CodeValidation, "minimum_term must be positive")
	}
	return nil
}

// DecodeParams parses raw JSON parameters for kind. Unknown fields are rejected.
func DecodeParams(kind Kind, raw json.RawMessage) (Params, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "parameters are required")
	}
	var p Params
	switch kind {
	case KindIncomeCommitment:
		var v IncomeCommitmentParams
		if err := decodeStrict(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case KindMaxAmount:
		var v MaxAmountParams
		if err := decodeStrict(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case KindConditionalScore:
		var v ConditionalScoreParams
		if err := decodeStrict(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case KindMinTerm:
		var v MinTermParams
		if err := decodeStrict(raw, &v); err != nil {
			return nil, err
		}
		p = v
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "unsupported rule type: "+string(kind))
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// EncodeParams renders params as JSON for storage.
func EncodeParams(p Params) (json.RawMessage, error) {
	if p == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "parameters are required")
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode rule parameters")
	}
	return b, nil
}

func decodeStrict(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid rule parameters")
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
