// Package store persists rule definitions.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"creditflow/internal/rules/models"
	id "creditflow/pkg/domain"
	"creditflow/pkg/platform/sentinel"
)

// InMemoryStore keeps rule definitions in process. Definitions are copied
// on the way in and out so callers never share a value with the store.
type InMemoryStore struct {
	mu    sync.RWMutex
	rules map[id.RuleID]models.Definition
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rules: make(map[id.RuleID]models.Definition)}
}

func (s *InMemoryStore) Create(_ context.Context, def *models.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameTaken(def.Name, def.ID) {
		return sentinel.ErrConflict
	}
	if _, ok := s.rules[def.ID]; ok {
		return sentinel.ErrConflict
	}
	s.rules[def.ID] = *def
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, def *models.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[def.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if s.nameTaken(def.Name, def.ID) {
		return sentinel.ErrConflict
	}
	s.rules[def.ID] = *def
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, ruleID id.RuleID) (*models.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.rules[ruleID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &def, nil
}

func (s *InMemoryStore) List(_ context.Context, filter models.Filter) ([]*models.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Definition, 0, len(s.rules))
	for _, def := range s.rules {
		if filter.Matches(&def) {
			d := def
			out = append(out, &d)
		}
	}
	sortByName(out)
	return out, nil
}

// ListActive returns only definitions with Active set.
func (s *InMemoryStore) ListActive(ctx context.Context) ([]*models.Definition, error) {
	active := true
	return s.List(ctx, models.Filter{Active: &active})
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules), nil
}

func (s *InMemoryStore) nameTaken(name string, except id.RuleID) bool {
	for ruleID, existing := range s.rules {
		if ruleID != except && strings.EqualFold(existing.Name, name) {
			return true
		}
	}
	return false
}

func sortByName(defs []*models.Definition) {
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Name != defs[j].Name {
			return defs[i].Name < defs[j].Name
		}
		return defs[i].ID.String() < defs[j].ID.String()
	})
}
