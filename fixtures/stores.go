// Package fixtures provides configurable test doubles for the cqrs
// interfaces: spies for the event store and query processors, and helpers
// for building envelopes.
package fixtures

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/terraskye/cqrs"
)

// StoreSpy is a configurable mock EventStore for testing.
// It tracks calls and allows injecting custom behavior or failures.
type StoreSpy struct {
	mu sync.Mutex

	// Function overrides for custom behavior
	LoadFn   func(ctx context.Context, aggregateID string) (*cqrs.Iterator[*cqrs.Envelope], error)
	AppendFn func(ctx context.Context, aggregateID, aggregateType string, expectedVersion uint64, events []cqrs.Event, metadata map[string]string) ([]cqrs.Envelope, error)
	CloseFn  func() error

	// Call tracking
	LoadCalls   int
	AppendCalls int
	CloseCalls  int

	// Captured arguments from last call
	LastAppendEvents   []cqrs.Event
	LastAppendVersion  uint64
	LastAppendMetadata map[string]string
	LastLoadID         string

	// Pre-configured data
	streams map[string][]*cqrs.Envelope

	// Error injection
	loadErr   error
	appendErr error
}

// NewStoreSpy creates a new StoreSpy with default behavior.
func NewStoreSpy() *StoreSpy {
	return &StoreSpy{
		streams: make(map[string][]*cqrs.Envelope),
	}
}

// WithEnvelopes pre-populates the store with envelopes for an aggregate.
func (s *StoreSpy) WithEnvelopes(aggregateID string, envelopes ...*cqrs.Envelope) *StoreSpy {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[aggregateID] = envelopes
	return s
}

// WithEvents pre-populates the store by wrapping raw events in sequenced
// envelopes for the given aggregate.
func (s *StoreSpy) WithEvents(aggregateID, aggregateType string, events ...cqrs.Event) *StoreSpy {
	return s.WithEnvelopes(aggregateID, EnvelopesFromEvents(aggregateID, aggregateType, events...)...)
}

// FailOnLoad configures the store to return an error on Load.
func (s *StoreSpy) FailOnLoad(err error) *StoreSpy {
	s.loadErr = err
	return s
}

// FailOnAppend configures the store to return an error on Append.
func (s *StoreSpy) FailOnAppend(err error) *StoreSpy {
	s.appendErr = err
	return s
}

// Load implements EventStore.Load.
func (s *StoreSpy) Load(ctx context.Context, aggregateID string) (*cqrs.Iterator[*cqrs.Envelope], error) {
	s.mu.Lock()
	s.LoadCalls++
	s.LastLoadID = aggregateID
	s.mu.Unlock()

	if s.LoadFn != nil {
		return s.LoadFn(ctx, aggregateID)
	}

	if s.loadErr != nil {
		return nil, s.loadErr
	}

	s.mu.Lock()
	envelopes := s.streams[aggregateID]
	s.mu.Unlock()

	return SliceIterator(envelopes), nil
}

// Append implements EventStore.Append.
func (s *StoreSpy) Append(ctx context.Context, aggregateID, aggregateType string, expectedVersion uint64, events []cqrs.Event, metadata map[string]string) ([]cqrs.Envelope, error) {
	s.mu.Lock()
	s.AppendCalls++
	s.LastAppendEvents = events
	s.LastAppendVersion = expectedVersion
	s.LastAppendMetadata = metadata
	s.mu.Unlock()

	if s.AppendFn != nil {
		return s.AppendFn(ctx, aggregateID, aggregateType, expectedVersion, events, metadata)
	}

	if s.appendErr != nil {
		return nil, s.appendErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if actual := uint64(len(s.streams[aggregateID])); actual != expectedVersion {
		return nil, &cqrs.ConcurrencyError{
			AggregateID: aggregateID,
			Expected:    expectedVersion,
			Actual:      actual,
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
			Metadata:      metadata,
			OccurredAt:    time.Now().UTC(),
		}
		s.streams[aggregateID] = append(s.streams[aggregateID], &envelopes[i])
	}

	return envelopes, nil
}

// Close implements EventStore.Close.
func (s *StoreSpy) Close() error {
	s.mu.Lock()
	s.CloseCalls++
	s.mu.Unlock()

	if s.CloseFn != nil {
		return s.CloseFn()
	}
	return nil
}

// Reset clears all call counts and stored data.
func (s *StoreSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LoadCalls = 0
	s.AppendCalls = 0
	s.CloseCalls = 0
	s.LastAppendEvents = nil
	s.LastAppendVersion = 0
	s.LastAppendMetadata = nil
	s.LastLoadID = ""
	s.streams = make(map[string][]*cqrs.Envelope)
	s.loadErr = nil
	s.appendErr = nil
}

// EventCount returns how many envelopes are stored for the aggregate.
func (s *StoreSpy) EventCount(aggregateID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams[aggregateID])
}

// Pre-built store scenarios.

// EmptyStore returns a StoreSpy with no events.
func EmptyStore() *StoreSpy {
	return NewStoreSpy()
}

// FailingStore returns a StoreSpy that fails on all operations.
func FailingStore(err error) *StoreSpy {
	return NewStoreSpy().FailOnLoad(err).FailOnAppend(err)
}

// ConflictingStore returns a StoreSpy that returns a concurrency conflict
// on every append.
func ConflictingStore(aggregateID string, expected, actual uint64) *StoreSpy {
	store := NewStoreSpy()
	store.AppendFn = func(ctx context.Context, id, aggregateType string, expectedVersion uint64, events []cqrs.Event, metadata map[string]string) ([]cqrs.Envelope, error) {
		return nil, &cqrs.ConcurrencyError{
			AggregateID: aggregateID,
			Expected:    expected,
			Actual:      actual,
		}
	}
	return store
}

// SliceIterator creates an iterator from a slice of envelope pointers.
func SliceIterator(envelopes []*cqrs.Envelope) *cqrs.Iterator[*cqrs.Envelope] {
	idx := 0
	return cqrs.NewIteratorFunc(func(ctx context.Context) (*cqrs.Envelope, error) {
		if idx >= len(envelopes) {
			return nil, io.EOF
		}
		env := envelopes[idx]
		idx++
		return env, nil
	})
}
