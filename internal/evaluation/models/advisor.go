package models

import "strings"

// AdvisorDecision is the advisor's recommendation.
type AdvisorDecision string

const (
	AdvisorApprove      AdvisorDecision = "APPROVE"
	AdvisorReject       AdvisorDecision = "REJECT"
	AdvisorManualReview AdvisorDecision = "MANUAL_REVIEW"
)

// ParseAdvisorDecision accepts the decision case-insensitively.
func ParseAdvisorDecision(s string) (AdvisorDecision, bool) {
	d := AdvisorDecision(strings.ToUpper(strings.TrimSpace(s)))
	switch d {
	case AdvisorApprove, AdvisorReject, AdvisorManualReview:
		return d, true
	}
	return "", false
}

// AdvisorOutcome is the advisor verdict folded into the record.
type AdvisorOutcome struct {
	Decision      AdvisorDecision `json:"decision"`
	Confidence    float64         `json:"confidence"`
	Justification string          `json:"justification"`
	Source        string          `json:"source,omitempty"`
}

// Valid reports whether the outcome is well-formed.
func (o AdvisorOutcome) Valid() bool {
	if _, ok := ParseAdvisorDecision(string(o.Decision)); !ok {
		return false
	}
	return o.Confidence >= 0 && o.Confidence <= 1
}

func (o *AdvisorOutcome) clone() *AdvisorOutcome {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}
