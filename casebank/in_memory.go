package casebank

import (
	"fmt"
	"sync"

	"github.com/oscesim/oscesim/core"
)

// InMemoryStore is a process-local core.CaseStore. Cases are immutable after
// Add, so lookups hand out the stored pointer directly.
type InMemoryStore struct {
	mu    sync.RWMutex
	cases map[string]*core.Case
}

var _ core.CaseStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty case store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{cases: make(map[string]*core.Case)}
}

// Add registers a case, replacing any previous definition with the same id.
func (s *InMemoryStore) Add(c *core.Case) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases[c.ID] = c
}

// GetCase implements core.CaseStore.
func (s *InMemoryStore) GetCase(id string) (*core.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrCaseNotFound, id)
	}
	return c, nil
}
