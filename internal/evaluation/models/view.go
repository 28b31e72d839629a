package models

import "time"

// View is a read-only projection of a record handed to the advisor. It is
// a deep copy; changes to it never reach the record.
type View struct {
	ApplicationID      string            `json:"application_id"`
	ApplicantID        string            `json:"applicant_id"`
	RequestedAmount    float64           `json:"requested_amount"`
	Parameters         Parameters        `json:"parameters"`
	CreatedAt          time.Time         `json:"created_at"`
	Profile            *ApplicantProfile `json:"applicant_profile,omitempty"`
	Bureau             *CreditBureau     `json:"credit_bureau,omitempty"`
	Banking            *BankingHistory   `json:"banking_history,omitempty"`
	Trail              []TrailEntry      `json:"trail"`
	HardFailure        bool              `json:"hard_failure"`
	NeedsManualReview  bool              `json:"needs_manual_review"`
	ManualReviewReason string            `json:"manual_review_reason,omitempty"`
}

// View builds the advisor projection of the record's current state.
func (r *Record) View() View {
	fs := factSetFrom(r.facts)
	return View{
		ApplicationID:      r.id.String(),
		ApplicantID:        r.applicantID.String(),
		RequestedAmount:    r.requestedAmount,
		Parameters:         r.parameters.Clone(),
		CreatedAt:          r.createdAt,
		Profile:            cloneProfile(fs.Profile),
		Bureau:             cloneBureau(fs.Bureau),
		Banking:            fs.Banking,
		Trail:              r.Trail(),
		HardFailure:        r.hardFailure,
		NeedsManualReview:  r.needsManualReview,
		ManualReviewReason: r.manualReviewReason,
	}
}

func cloneProfile(p *ApplicantProfile) *ApplicantProfile {
	if p == nil {
		return nil
	}
	c := *p
	if p.Age != nil {
		age := *p.Age
		c.Age = &age
	}
	if p.MonthlyIncome != nil {
		inc := *p.MonthlyIncome
		c.MonthlyIncome = &inc
	}
	return &c
}

func cloneBureau(b *CreditBureau) *CreditBureau {
	if b == nil {
		return nil
	}
	c := *b
	if b.Score != nil {
		score := *b.Score
		c.Score = &score
	}
	return &c
}
