// Package memory provides a process-local EventStore used as a test double
// and for demos. It enforces the same ordering and concurrency invariants as
// the durable backends, differing only in persistence guarantees.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/terraskye/cqrs"
)

var now = time.Now

var _ cqrs.EventStore = (*Store)(nil)

type Store struct {
	mu      sync.RWMutex
	streams map[string][]*cqrs.Envelope
}

func NewStore() *Store {
	return &Store{
		streams: make(map[string][]*cqrs.Envelope),
	}
}

// Load returns an iterator over a snapshot of the stream. An unknown
// aggregate ID yields an empty iterator, not an error.
func (s *Store) Load(ctx context.Context, aggregateID string) (*cqrs.Iterator[*cqrs.Envelope], error) {
	s.mu.RLock()
	envelopes := s.streams[aggregateID]
	s.mu.RUnlock()

	return cqrs.NewSliceIterator(envelopes), nil
}

// Append implements the optimistic compare-and-append contract: the batch is
// committed as a whole at sequences expectedVersion+1.. only when the stored
// event count still equals expectedVersion.
func (s *Store) Append(ctx context.Context, aggregateID, aggregateType string, expectedVersion uint64, events []cqrs.Event, metadata map[string]string) ([]cqrs.Envelope, error) {
	if len(events) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	currentVersion := uint64(len(s.streams[aggregateID]))
	if currentVersion != expectedVersion {
		return nil, &cqrs.ConcurrencyError{
			AggregateID: aggregateID,
			Expected:    expectedVersion,
			Actual:      currentVersion,
		}
	}

	envelopes := make([]cqrs.Envelope, len(events))
	for i, event := range events {
		envelopes[i] = cqrs.Envelope{
			EventID:       uuid.New(),
			AggregateID:   aggregateID,
			AggregateType: aggregateType,
			Sequence:      expectedVersion + uint64(i) + 1,
			Event:         event,
			Metadata:      maps.Clone(metadata),
			OccurredAt:    now(),
		}
		s.streams[aggregateID] = append(s.streams[aggregateID], &envelopes[i])
	}

	return envelopes, nil
}

// Close drops all stored streams. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams = make(map[string][]*cqrs.Envelope)
	return nil
}
