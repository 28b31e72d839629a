package models

import (
	"encoding/json"
	"fmt"
)

// FactCategory names one externally sourced block of applicant data.
type FactCategory string

const (
	FactApplicantProfile FactCategory = "APPLICANT_PROFILE"
	FactCreditBureau     FactCategory = "CREDIT_BUREAU"
	FactBankingHistory   FactCategory = "BANKING_HISTORY"
)

// Fact is a payload loaded by a fact provider. Unavailable facts still occupy
// their category so rules can fail closed on them.
type Fact interface {
	Category() FactCategory
	Available() bool
}

// BureauStatus is the standing reported by the credit bureau.
type BureauStatus string

const (
	BureauRegular   BureauStatus = "REGULAR"
	BureauIrregular BureauStatus = "IRREGULAR"
	BureauPending   BureauStatus = "PENDING"
	BureauBlocked   BureauStatus = "BLOCKED"
)

// ApplicantProfile carries the customer registry data.
type ApplicantProfile struct {
	IsAvailable   bool     `json:"available"`
	Reason        string   `json:"reason,omitempty"`
	Name          string   `json:"name,omitempty"`
	Age           *int     `json:"age,omitempty"`
	MonthlyIncome *float64 `json:"monthly_income,omitempty"`
}

func (ApplicantProfile) Category() FactCategory { return FactApplicantProfile }
func (p ApplicantProfile) Available() bool      { return p.IsAvailable }

// CreditBureau carries the bureau score and debt standing.
type CreditBureau struct {
	IsAvailable bool         `json:"available"`
	Reason      string       `json:"reason,omitempty"`
	Score       *int         `json:"score,omitempty"`
	Status      BureauStatus `json:"status,omitempty"`
	TotalDebts  float64      `json:"total_debts"`
}

func (CreditBureau) Category() FactCategory { return FactCreditBureau }
func (b CreditBureau) Available() bool      { return b.IsAvailable }

// Delinquent reports whether the bureau flags the applicant as delinquent.
// Unavailable data is never delinquent.
func (b CreditBureau) Delinquent() bool {
	if !b.IsAvailable {
		return false
	}
	return b.Status == BureauIrregular || b.TotalDebts > 0
}

// BankingHistory carries the applicant's relationship with the bank.
type BankingHistory struct {
	IsAvailable        bool    `json:"available"`
	Reason             string  `json:"reason,omitempty"`
	HasAccount         bool    `json:"has_account"`
	AverageBalance     float64 `json:"average_balance"`
	RelationshipMonths int     `json:"relationship_months"`
}

func (BankingHistory) Category() FactCategory { return FactBankingHistory }
func (h BankingHistory) Available() bool      { return h.IsAvailable }

// HasPriorRelationship is false when banking data is unavailable or the
// relationship has no history yet.
func (h BankingHistory) HasPriorRelationship() bool {
	return h.IsAvailable && h.RelationshipMonths > 0
}

// UnavailableFact returns the neutral payload for a category whose provider failed.
func UnavailableFact(category FactCategory, reason string) (Fact, error) {
	switch category {
	case FactApplicantProfile:
		return ApplicantProfile{Reason: reason}, nil
	case FactCreditBureau:
		return CreditBureau{Reason: reason}, nil
	case FactBankingHistory:
		return BankingHistory{Reason: reason}, nil
	default:
		return nil, fmt.Errorf("unknown fact category %q", category)
	}
}

// FactSet is the persisted shape of a record's facts.
type FactSet struct {
	Profile *ApplicantProfile `json:"applicant_profile,omitempty"`
	Bureau  *CreditBureau     `json:"credit_bureau,omitempty"`
	Banking *BankingHistory   `json:"banking_history,omitempty"`
}

func factSetFrom(facts map[FactCategory]Fact) FactSet {
	var fs FactSet
	for _, f := range facts {
		switch v := f.(type) {
		case ApplicantProfile:
			fs.Profile = &v
		case CreditBureau:
			fs.Bureau = &v
		case BankingHistory:
			fs.Banking = &v
		}
	}
	return fs
}

func (fs FactSet) toMap() map[FactCategory]Fact {
	m := make(map[FactCategory]Fact, 3)
	if fs.Profile != nil {
		m[FactApplicantProfile] = *fs.Profile
	}
	if fs.Bureau != nil {
		m[FactCreditBureau] = *fs.Bureau
	}
	if fs.Banking != nil {
		m[FactBankingHistory] = *fs.Banking
	}
	return m
}

// MarshalFacts encodes facts for storage.
func MarshalFacts(facts map[FactCategory]Fact) ([]byte, error) {
	return json.Marshal(factSetFrom(facts))
}

// UnmarshalFacts decodes stored facts.
func UnmarshalFacts(data []byte) (map[FactCategory]Fact, error) {
	var fs FactSet
	if len(data) == 0 {
		return fs.toMap(), nil
	}
	if err := json.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("decode facts: %w", err)
	}
	return fs.toMap(), nil
}
