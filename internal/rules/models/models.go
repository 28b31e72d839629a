// Package models defines persisted rule definitions and their per-kind
// parameters.
package models

import (
	"strings"
	"time"

	id "creditflow/pkg/domain"
	dErrors "creditflow/pkg/domain-errors"
)

// Kind is the closed set of configurable rule kinds.
type Kind string

const (
	KindIncomeCommitment Kind = "INCOME_COMMITMENT"
	KindMaxAmount        Kind = "MAX_AMOUNT"
	KindConditionalScore Kind = "CONDITIONAL_SCORE"
	KindMinTerm          Kind = "MIN_TERM"
)

// Kinds lists every supported kind in a stable order.
var Kinds = []Kind{KindIncomeCommitment, KindMaxAmount, KindConditionalScore, KindMinTerm}

func (k Kind) IsValid() bool {
	switch k {
	case KindIncomeCommitment, KindMaxAmount, KindConditionalScore, KindMinTerm:
		return true
	}
	return false
}

func (k Kind) String() string { return string(k) }

// ParseKind normalizes and validates a kind string.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unsupported rule type: "+s)
	}
	return k, nil
}

// Origin records who authored a rule definition.
type Origin string

const (
	OriginSystem  Origin = "SYSTEM"
	OriginAdvisor Origin = "ADVISOR"
	OriginHuman   Origin = "HUMAN"
)

func (o Origin) IsValid() bool {
	switch o {
	case OriginSystem, OriginAdvisor, OriginHuman:
		return true
	}
	return false
}

func (o Origin) String() string { return string(o) }

// ParseOrigin normalizes and validates an origin string.
func ParseOrigin(s string) (Origin, error) {
	o := Origin(strings.ToUpper(strings.TrimSpace(s)))
	if !o.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid origin: "+s)
	}
	return o, nil
}

const (
	maxNameLength        = 100
	maxDescriptionLength = 500
)

// Definition is a persisted configurable rule. The pipeline only reads
// definitions; reviewers and the advisor create and change them.
type Definition struct {
	ID          id.RuleID
	Name        string
	Description string
	Kind        Kind
	Params      Params
	Approved    bool
	Active      bool
	Origin      Origin
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks the fields a definition needs before it can be stored.
// Params must match Kind.
func (d *Definition) Validate() error {
	if d == nil {
		return dErrors.New(dErrors.CodeBadRequest, "rule definition is required")
	}
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(d.Name) > maxNameLength {
		return dErrors.New(dErrors.CodeValidation, "name must be at most 100 characters")
	}
	if len(d.Description) > maxDescriptionLength {
		return dErrors.New(dErrors.CodeValidation, "description must be at most 500 characters")
	}
	if !d.Kind.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unsupported rule type: "+string(d.Kind))
	}
	if !d.Origin.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid origin: "+string(d.Origin))
	}
	if d.Params == nil {
		return dErrors.New(dErrors.CodeValidation, "parameters are required")
	}
	if d.Params.Kind() != d.Kind {
		return dErrors.New(dErrors.CodeValidation, "parameters do not match rule type "+string(d.Kind))
	}
	return d.Params.Validate()
}

// Filter narrows rule listings. Nil fields match everything.
type Filter struct {
	Active   *bool
	Approved *bool
	Origin   *Origin
}

// Matches reports whether d satisfies the filter.
func (f Filter) Matches(d *Definition) bool {
	if f.Active != nil && d.Active != *f.Active {
		return false
	}
	if f.Approved != nil && d.Approved != *f.Approved {
		return false
	}
	if f.Origin != nil && d.Origin != *f.Origin {
		return false
	}
	return true
}
