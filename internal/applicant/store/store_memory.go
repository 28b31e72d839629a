// Package store persists customer profiles.
package store

import (
	"context"
	"sort"
	"sync"

	"creditflow/internal/applicant/models"
	id "creditflow/pkg/domain"
	"creditflow/pkg/platform/sentinel"
)

// InMemoryStore keeps customer profiles in process.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[id.ApplicantID]models.Profile
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[id.ApplicantID]models.Profile)}
}

// Save inserts or replaces a profile.
func (s *InMemoryStore) Save(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.Customer.ID] = cloneProfile(*p)
	return nil
}

func (s *InMemoryStore) FindProfile(_ context.Context, applicantID id.ApplicantID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[applicantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := cloneProfile(p)
	return &c, nil
}

func (s *InMemoryStore) FindCustomer(ctx context.Context, applicantID id.ApplicantID) (*models.Customer, error) {
	p, err := s.FindProfile(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	return &p.Customer, nil
}

func (s *InMemoryStore) FindBureau(ctx context.Context, applicantID id.ApplicantID) (*models.BureauRecord, error) {
	p, err := s.FindProfile(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	if p.Bureau == nil {
		return nil, sentinel.ErrNotFound
	}
	return p.Bureau, nil
}

func (s *InMemoryStore) FindBanking(ctx context.Context, applicantID id.ApplicantID) (*models.BankingRecord, error) {
	p, err := s.FindProfile(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	if p.Banking == nil {
		return nil, sentinel.ErrNotFound
	}
	return p.Banking, nil
}

// List returns the profiles for ids, or every profile when ids is empty,
// ordered by customer ID. Unknown IDs are skipped.
func (s *InMemoryStore) List(_ context.Context, ids []id.ApplicantID) ([]*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Profile, 0, len(s.profiles))
	if len(ids) == 0 {
		for _, p := range s.profiles {
			c := cloneProfile(p)
			out = append(out, &c)
		}
	} else {
		seen := make(map[id.ApplicantID]bool, len(ids))
		for _, applicantID := range ids {
			p, ok := s.profiles[applicantID]
			if !ok || seen[applicantID] {
				continue
			}
			seen[applicantID] = true
			c := cloneProfile(p)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Customer.ID < out[j].Customer.ID })
	return out, nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles), nil
}

func cloneProfile(p models.Profile) models.Profile {
	c := p
	if p.Customer.Age != nil {
		age := *p.Customer.Age
		c.Customer.Age = &age
	}
	if p.Customer.MonthlyIncome != nil {
		income := *p.Customer.MonthlyIncome
		c.Customer.MonthlyIncome = &income
	}
	if p.Bureau != nil {
		b := *p.Bureau
		if p.Bureau.Score != nil {
			score := *p.Bureau.Score
			b.Score = &score
		}
		c.Bureau = &b
	}
	if p.Banking != nil {
		b := *p.Banking
		c.Banking = &b
	}
	return c
}
