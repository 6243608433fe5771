package store

import (
	"fmt"
	"sync"

	"firewall-policy-resolver/internal/model"
)

// MemoryStore is an in-memory FilterStore. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	filters []*model.RuleCollection
}

func NewMemoryStore(seed ...model.RuleCollection) *MemoryStore {
	s := &MemoryStore{}
	for i := range seed {
		f := seed[i]
		s.filters = append(s.filters, &f)
	}
	return s
}

func (s *MemoryStore) ListFilters(scope model.Scope) ([]model.RuleCollection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.RuleCollection
	for _, f := range s.filters {
		if f.Scope() == scope {
			out = append(out, cloneFilter(f))
		}
	}
	return out, nil
}

// All returns every stored collection, regardless of scope.
func (s *MemoryStore) All() []model.RuleCollection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RuleCollection, 0, len(s.filters))
	for _, f := range s.filters {
		out = append(out, cloneFilter(f))
	}
	return out
}

func (s *MemoryStore) CreateFilter(filter *model.RuleCollection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.filters {
		if f.ID == filter.ID {
			return fmt.Errorf("filter id %s: already exists", filter.ID)
		}
		if f.Scope() == filter.Scope() && f.Name == filter.Name {
			return fmt.Errorf("%w: %s in %s", ErrDuplicateFilter, filter.Name, filter.Scope())
		}
	}
	f := cloneFilter(filter)
	s.filters = append(s.filters, &f)
	return nil
}

func (s *MemoryStore) DeleteFilter(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, f := range s.filters {
		if f.ID == id {
			s.filters = append(s.filters[:i], s.filters[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrFilterNotFound, id)
}

func (s *MemoryStore) DeleteRule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.filters {
		for i, r := range f.Rules {
			if r.ID == id {
				f.Rules = append(f.Rules[:i:i], f.Rules[i+1:]...)
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
}

func cloneFilter(f *model.RuleCollection) model.RuleCollection {
	c := *f
	c.Rules = append([]model.Rule(nil), f.Rules...)
	return c
}
