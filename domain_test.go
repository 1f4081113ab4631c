package cqrs

// Shared test domain: a counter aggregate with deposit-style events carrying
// post-condition totals, plus in-file store and processor stubs.

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

type counter struct {
	Total int `json:"total"`
}

func (counter) AggregateType() string { return "counter" }

type incremented struct {
	Delta int `json:"delta"`
	Total int `json:"total"`
}

func (*incremented) EventType() string { return "incremented" }

func (e *incremented) Apply(c *counter) { c.Total = e.Total }

type increment struct {
	Delta int
}

func (c increment) Handle(state counter) ([]DomainEvent[counter], error) {
	return []DomainEvent[counter]{
		&incremented{Delta: c.Delta, Total: state.Total + c.Delta},
	}, nil
}

type decrement struct {
	Delta int
}

func (c decrement) Handle(state counter) ([]DomainEvent[counter], error) {
	if state.Total-c.Delta < 0 {
		return nil, Reject("counter cannot go negative")
	}
	return []DomainEvent[counter]{
		&incremented{Delta: -c.Delta, Total: state.Total - c.Delta},
	}, nil
}

type noopCommand struct{}

func (noopCommand) Handle(state counter) ([]DomainEvent[counter], error) {
	return nil, nil
}

// ---- Stubs ----

// stubStore is a minimal in-file EventStore.
type stubStore struct {
	mu      sync.Mutex
	streams map[string][]*Envelope

	loadErr   error
	appendErr error
}

func newStubStore() *stubStore {
	return &stubStore{streams: make(map[string][]*Envelope)}
}

func (s *stubStore) Load(ctx context.Context, aggregateID string) (*Iterator[*Envelope], error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	s.mu.Lock()
	envelopes := append([]*Envelope(nil), s.streams[aggregateID]...)
	s.mu.Unlock()
	return NewSliceIterator(envelopes), nil
}

func (s *stubStore) Append(ctx context.Context, aggregateID, aggregateType string, expectedVersion uint64, events []Event, metadata map[string]string) ([]Envelope, error) {
	if s.appendErr != nil {
		return nil, s.appendErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if actual := uint64(len(s.streams[aggregateID])); actual != expectedVersion {
		return nil, &ConcurrencyError{AggregateID: aggregateID, Expected: expectedVersion, Actual: actual}
	}

	out := make([]Envelope, len(events))
	for i, event := range events {
		out[i] = Envelope{
			EventID:       uuid.New(),
			AggregateID:   aggregateID,
			AggregateType: aggregateType,
			Sequence:      expectedVersion + uint64(i) + 1,
			Event:         event,
			Metadata:      maps.Clone(metadata),
			OccurredAt:    time.Now().UTC(),
		}
		s.streams[aggregateID] = append(s.streams[aggregateID], &out[i])
	}
	return out, nil
}

func (s *stubStore) Close() error { return nil }

func (s *stubStore) count(aggregateID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams[aggregateID])
}

// stubProcessor records dispatched batches and optionally fails or panics.
type stubProcessor struct {
	mu      sync.Mutex
	name    string
	batches [][]Envelope

	err      error
	panicMsg string
}

func (p *stubProcessor) ProcessorName() string { return p.name }

func (p *stubProcessor) Dispatch(ctx context.Context, aggregateID string, events []Envelope) error {
	p.mu.Lock()
	p.batches = append(p.batches, events)
	p.mu.Unlock()

	if p.panicMsg != "" {
		panic(p.panicMsg)
	}
	return p.err
}

func (p *stubProcessor) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.batches)
}

func (p *stubProcessor) events() []Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()

	var all []Envelope
	for _, b := range p.batches {
		all = append(all, b...)
	}
	return all
}
