// Package store persists resolved evaluation records.
package store

import (
	"context"
	"sort"
	"sync"

	"creditflow/internal/evaluation/models"
	id "creditflow/pkg/domain"
	dErrors "creditflow/pkg/domain-errors"
	"creditflow/pkg/platform/sentinel"
)

// InMemoryStore keeps record snapshots in process.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.ApplicationID]models.Snapshot
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.ApplicationID]models.Snapshot)}
}

// Save stores a resolved record. Records are written once.
func (s *InMemoryStore) Save(_ context.Context, rec *models.Record) error {
	if _, resolved := rec.Status(); !resolved {
		return dErrors.New(dErrors.CodeInvariantViolation, "only resolved records can be stored")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID()]; ok {
		return sentinel.ErrConflict
	}
	s.records[rec.ID()] = rec.Snapshot()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, applicationID id.ApplicationID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.records[applicationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return models.FromSnapshot(snap), nil
}

// ListByApplicant returns the applicant's records, newest first.
func (s *InMemoryStore) ListByApplicant(_ context.Context, applicantID id.ApplicantID) ([]*models.Record, error) {
	s.mu.RLock()
	var snaps []models.Snapshot
	for _, snap := range s.records {
		if snap.ApplicantID == applicantID {
			snaps = append(snaps, snap)
		}
	}
	s.mu.RUnlock()

	sort.Slice(snaps, func(i, j int) bool {
		if !snaps[i].CreatedAt.Equal(snaps[j].CreatedAt) {
			return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
		}
		return snaps[i].ID.String() < snaps[j].ID.String()
	})
	out := make([]*models.Record, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, models.FromSnapshot(snap))
	}
	return out, nil
}

// CountByApplicant returns how many evaluations the applicant has.
func (s *InMemoryStore) CountByApplicant(_ context.Context, applicantID id.ApplicantID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, snap := range s.records {
		if snap.ApplicantID == applicantID {
			n++
		}
	}
	return n, nil
}
