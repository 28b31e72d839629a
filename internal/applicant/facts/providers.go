// Package facts adapts the customer registry to the evaluation fact
// providers, with an optional Redis read-through cache.
package facts

import (
	"context"

	"creditflow/internal/applicant/models"
	evmodels "creditflow/internal/evaluation/models"
	id "creditflow/pkg/domain"
)

// Store is the customer registry read by the providers.
type Store interface {
	FindCustomer(ctx context.Context, applicantID id.ApplicantID) (*models.Customer, error)
	FindBureau(ctx context.Context, applicantID id.ApplicantID) (*models.BureauRecord, error)
	FindBanking(ctx context.Context, applicantID id.ApplicantID) (*models.BankingRecord, error)
}

// ProfileProvider loads the applicant profile fact.
type ProfileProvider struct{ store Store }

func NewProfileProvider(store Store) *ProfileProvider { return &ProfileProvider{store: store} }

func (p *ProfileProvider) Category() evmodels.FactCategory { return evmodels.FactApplicantProfile }

func (p *ProfileProvider) Load(ctx context.Context, applicantID id.ApplicantID) (evmodels.Fact, error) {
	c, err := p.store.FindCustomer(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	return c.ProfileFact(), nil
}

// BureauProvider loads the credit bureau fact.
type BureauProvider struct{ store Store }

func NewBureauProvider(store Store) *BureauProvider { return &BureauProvider{store: store} }

func (p *BureauProvider) Category() evmodels.FactCategory { return evmodels.FactCreditBureau }

func (p *BureauProvider) Load(ctx context.Context, applicantID id.ApplicantID) (evmodels.Fact, error) {
	b, err := p.store.FindBureau(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	return b.BureauFact(), nil
}

// BankingProvider loads the banking history fact.
type BankingProvider struct{ store Store }

func NewBankingProvider(store Store) *BankingProvider { return &BankingProvider{store: store} }

func (p *BankingProvider) Category() evmodels.FactCategory { return evmodels.FactBankingHistory }

func (p *BankingProvider) Load(ctx context.Context, applicantID id.ApplicantID) (evmodels.Fact, error) {
	b, err := p.store.FindBanking(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	return b.BankingFact(), nil
}
