// Package memory provides a process-local ProjectionStore used as a test
// double and for demos.
package memory

import (
	"context"
	"sync"

	"github.com/terraskye/cqrs"
)

var _ cqrs.ProjectionStore = (*Store)(nil)

type entry struct {
	state    []byte
	sequence uint64
}

type Store struct {
	mu      sync.RWMutex
	queries map[string]map[string]entry
}

func NewStore() *Store {
	return &Store{
		queries: make(map[string]map[string]entry),
	}
}

// Get implements ProjectionStore. Returns (nil, 0, nil) when no state exists.
func (s *Store) Get(ctx context.Context, queryName, aggregateID string) ([]byte, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.queries[queryName][aggregateID]
	if !ok {
		return nil, 0, nil
	}
	return e.state, e.sequence, nil
}

// Put implements ProjectionStore.
func (s *Store) Put(ctx context.Context, queryName, aggregateID string, sequence uint64, state []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queries[queryName] == nil {
		s.queries[queryName] = make(map[string]entry)
	}
	s.queries[queryName][aggregateID] = entry{state: state, sequence: sequence}
	return nil
}
