// Package models defines the customer registry records that back applicant
// facts: the customer itself, its bureau standing and its banking history.
package models

import (
	"time"

	evmodels "creditflow/internal/evaluation/models"
	id "creditflow/pkg/domain"
	dErrors "creditflow/pkg/domain-errors"
)

// Customer is a registered applicant.
type Customer struct {
	ID            id.ApplicantID
	Name          string
	Age           *int
	MonthlyIncome *float64
	CreatedAt     time.Time
}

// BureauRecord is the latest credit bureau report for a customer.
type BureauRecord struct {
	Score      *int
	Status     evmodels.BureauStatus
	TotalDebts float64
	UpdatedAt  time.Time
}

// BankingRecord summarizes the customer's relationship with the bank.
type BankingRecord struct {
	HasAccount         bool
	AverageBalance     float64
	RelationshipMonths int
	UpdatedAt          time.Time
}

// Profile is a customer with whatever bureau and banking records exist.
type Profile struct {
	Customer Customer
	Bureau   *BureauRecord
	Banking  *BankingRecord
}

// Validate checks a profile before it is stored.
func (p *Profile) Validate() error {
	if p == nil {
		return dErrors.New(dErrors.CodeBadRequest, "customer profile is required")
	}
	if p.Customer.ID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "customer id is required")
	}
	if p.Customer.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "customer name is required")
	}
	if p.Customer.Age != nil && *p.Customer.Age < 0 {
		return dErrors.New(dErrors.CodeValidation, "age must not be negative")
	}
	if p.Customer.MonthlyIncome != nil && *p.Customer.MonthlyIncome < 0 {
		return dErrors.New(dErrors.CodeValidation, "monthly income must not be negative")
	}
	if p.Bureau != nil {
		switch p.Bureau.Status {
		case evmodels.BureauRegular, evmodels.BureauIrregular, evmodels.BureauPending, evmodels.BureauBlocked:
		default:
			return dErrors.New(dErrors.CodeValidation, "invalid bureau status: "+string(p.Bureau.Status))
		}
		if p.Bureau.TotalDebts < 0 {
			return dErrors.New(dErrors.CodeValidation, "total debts must not be negative")
		}
	}
	if p.Banking != nil && p.Banking.RelationshipMonths < 0 {
		return dErrors.New(dErrors.CodeValidation, "relationship months must not be negative")
	}
	return nil
}

// ProfileFact projects the customer into the applicant profile fact.
func (c Customer) ProfileFact() evmodels.ApplicantProfile {
	return evmodels.ApplicantProfile{
		IsAvailable:   true,
		Name:          c.Name,
		Age:           c.Age,
		MonthlyIncome: c.MonthlyIncome,
	}
}

// BureauFact projects the bureau record into the credit bureau fact.
func (b BureauRecord) BureauFact() evmodels.CreditBureau {
	return evmodels.CreditBureau{
		IsAvailable: true,
		Score:       b.Score,
		Status:      b.Status,
		TotalDebts:  b.TotalDebts,
	}
}

// BankingFact projects the banking record into the banking history fact.
func (b BankingRecord) BankingFact() evmodels.BankingHistory {
	return evmodels.BankingHistory{
		IsAvailable:        true,
		HasAccount:         b.HasAccount,
		AverageBalance:     b.AverageBalance,
		RelationshipMonths: b.RelationshipMonths,
	}
}
