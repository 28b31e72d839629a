package models

import (
	"time"

	id "creditflow/pkg/domain"
)

// Snapshot is the storage shape of a finished record.
type Snapshot struct {
	ID                 id.ApplicationID
	ApplicantID        id.ApplicantID
	RequestedAmount    float64
	Parameters         Parameters
	CreatedAt          time.Time
	Facts              map[FactCategory]Fact
	Trail              []TrailEntry
	HardFailure        bool
	NeedsManualReview  bool
	ManualReviewReason string
	AdvisorOutcome     *AdvisorOutcome
	Status             Status
	CompletedAt        time.Time
}

// Snapshot copies the record into its storage shape.
func (r *Record) Snapshot() Snapshot {
	facts := make(map[FactCategory]Fact, len(r.facts))
	for k, v := range r.facts {
		facts[k] = v
	}
	return Snapshot{
		ID:                 r.id,
		ApplicantID:        r.applicantID,
		RequestedAmount:    r.requestedAmount,
		Parameters:         r.parameters.Clone(),
		CreatedAt:          r.createdAt,
		Facts:              facts,
		Trail:              r.Trail(),
		HardFailure:        r.hardFailure,
		NeedsManualReview:  r.needsManualReview,
		ManualReviewReason: r.manualReviewReason,
		AdvisorOutcome:     r.advisorOutcome.clone(),
		Status:             r.status,
		CompletedAt:        r.completedAt,
	}
}

// FromSnapshot rebuilds a record loaded from storage.
func FromSnapshot(s Snapshot) *Record {
	r := &Record{
		id:                 s.ID,
		applicantID:        s.ApplicantID,
		requestedAmount:    s.RequestedAmount,
		parameters:         s.Parameters,
		createdAt:          s.CreatedAt,
		facts:              s.Facts,
		trail:              append([]TrailEntry(nil), s.Trail...),
		hardFailure:        s.HardFailure,
		needsManualReview:  s.NeedsManualReview,
		manualReviewReason: s.ManualReviewReason,
		advisorOutcome:     s.AdvisorOutcome.clone(),
		status:             s.Status,
		completedAt:        s.CompletedAt,
	}
	r.RepairContract()
	return r
}
