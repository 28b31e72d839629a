// Package models holds the working record that carries one credit
// application through the evaluation pipeline.
package models

import (
	"math"
	"time"

	id "creditflow/pkg/domain"
	dErrors "creditflow/pkg/domain-errors"
)

// Status is the terminal outcome of an evaluation.
type Status string

const (
	StatusApproved     Status = "APPROVED"
	StatusRejected     Status = "REJECTED"
	StatusManualReview Status = "MANUAL_REVIEW"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusManualReview:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// Manual review reasons set by the pipeline.
const (
	ReasonDynamicRulePending   = "dynamic rule pending approval"
	ReasonDynamicRulesDown     = "dynamic rules unavailable"
	ReasonAdvisorManualReview  = "advisor recommended manual review"
	ReasonAdvisorUnavailable   = "advisor unavailable"
	ReasonAdvisorLowConfidence = "advisor confidence below threshold"
)

// TrailEntry is one rule outcome. Order in the trail is significant: the
// first failed entry is the root cause.
type TrailEntry struct {
	RuleName    string    `json:"rule_name"`
	Passed      bool      `json:"passed"`
	Description string    `json:"description"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Record is the working record of a single evaluation. It has exactly one
// owner while the pipeline runs; stages receive the same pointer in turn.
type Record struct {
	id              id.ApplicationID
	applicantID     id.ApplicantID
	requestedAmount float64
	parameters      Parameters
	createdAt       time.Time

	facts              map[FactCategory]Fact
	trail              []TrailEntry
	hardFailure        bool
	needsManualReview  bool
	manualReviewReason string
	advisorOutcome     *AdvisorOutcome
	status             Status
	completedAt        time.Time
}

// NewRecord validates the application inputs and returns a fresh record.
func NewRecord(appID id.ApplicationID, applicantID id.ApplicantID, requestedAmount float64, params Parameters, createdAt time.Time) (*Record, error) {
	if appID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "application id is required")
	}
	if applicantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "applicant_id is required")
	}
	if math.IsNaN(requestedAmount) || math.IsInf(requestedAmount, 0) || requestedAmount <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "requested_amount must be a positive number")
	}
	if createdAt.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "created_at is required")
	}
	if params == nil {
		params = Parameters{}
	}
	return &Record{
		id:              appID,
		applicantID:     applicantID,
		requestedAmount: requestedAmount,
		parameters:      params.Clone(),
		createdAt:       createdAt,
		facts:           make(map[FactCategory]Fact, 3),
	}, nil
}

func (r *Record) ID() id.ApplicationID          { return r.id }
func (r *Record) ApplicantID() id.ApplicantID   { return r.applicantID }
func (r *Record) RequestedAmount() float64      { return r.requestedAmount }
func (r *Record) Parameters() Parameters        { return r.parameters.Clone() }
func (r *Record) CreatedAt() time.Time          { return r.createdAt }
func (r *Record) HardFailure() bool             { return r.hardFailure }
func (r *Record) NeedsManualReview() bool       { return r.needsManualReview }
func (r *Record) ManualReviewReason() string    { return r.manualReviewReason }
func (r *Record) CompletedAt() time.Time        { return r.completedAt }
func (r *Record) TrailLen() int                 { return len(r.trail) }
func (r *Record) AdvisorOutcome() *AdvisorOutcome { return r.advisorOutcome.clone() }

// Status returns the terminal status and whether it has been resolved.
func (r *Record) Status() (Status, bool) {
	return r.status, r.status != ""
}

// Trail returns a copy of the evaluation trail.
func (r *Record) Trail() []TrailEntry {
	return append([]TrailEntry(nil), r.trail...)
}

// Fact returns the payload for category, if loaded.
func (r *Record) Fact(category FactCategory) (Fact, bool) {
	f, ok := r.facts[category]
	return f, ok
}

// Profile returns the applicant profile fact. A missing fact reads as unavailable.
func (r *Record) Profile() ApplicantProfile {
	p, _ := r.facts[FactApplicantProfile].(ApplicantProfile)
	return p
}

// Bureau returns the credit bureau fact. A missing fact reads as unavailable.
func (r *Record) Bureau() CreditBureau {
	b, _ := r.facts[FactCreditBureau].(CreditBureau)
	return b
}

// Banking returns the banking history fact. A missing fact reads as unavailable.
func (r *Record) Banking() BankingHistory {
	h, _ := r.facts[FactBankingHistory].(BankingHistory)
	return h
}

// SetFact stores f under its category, replacing any previous payload.
func (r *Record) SetFact(f Fact) {
	if f == nil {
		return
	}
	r.facts[f.Category()] = f
}

// AppendEntry adds an outcome to the trail.
func (r *Record) AppendEntry(e TrailEntry) {
	r.trail = append(r.trail, e)
}

// FailHard appends e as a failed entry and sets the hard-failure flag, so
// the flag is never set without a failed entry behind it.
func (r *Record) FailHard(e TrailEntry) {
	e.Passed = false
	r.trail = append(r.trail, e)
	r.hardFailure = true
}

// RequireManualReview flags the record for a human. The first reason wins.
func (r *Record) RequireManualReview(reason string) {
	if !r.needsManualReview {
		r.manualReviewReason = reason
	}
	r.needsManualReview = true
}

// SetAdvisorOutcome records the advisor's verdict.
func (r *Record) SetAdvisorOutcome(o AdvisorOutcome) {
	r.advisorOutcome = &o
}

// Resolve assigns the terminal status. It may be called once.
func (r *Record) Resolve(status Status, at time.Time) error {
	if !status.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "invalid terminal status "+string(status))
	}
	if r.status != "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "status already resolved")
	}
	r.status = status
	r.completedAt = at
	return nil
}

// FailedDescriptions lists descriptions of failed trail entries in order.
func (r *Record) FailedDescriptions() []string {
	var out []string
	for _, e := range r.trail {
		if !e.Passed {
			out = append(out, e.Description)
		}
	}
	return out
}

// CheckContract reports whether the record was fully constructed. Records
// built by NewRecord or FromSnapshot always pass.
func (r *Record) CheckContract() error {
	if r == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "record is nil")
	}
	switch {
	case r.id.IsNil():
		return dErrors.New(dErrors.CodeInvariantViolation, "record has no id")
	case r.applicantID.IsNil():
		return dErrors.New(dErrors.CodeInvariantViolation, "record has no applicant")
	case r.facts == nil:
		return dErrors.New(dErrors.CodeInvariantViolation, "record facts not initialized")
	case r.parameters == nil:
		return dErrors.New(dErrors.CodeInvariantViolation, "record parameters not initialized")
	}
	return nil
}

// RepairContract fills uninitialized collections with safe empty defaults.
// Identity fields cannot be repaired.
func (r *Record) RepairContract() {
	if r.facts == nil {
		r.facts = make(map[FactCategory]Fact, 3)
	}
	if r.parameters == nil {
		r.parameters = Parameters{}
	}
}
