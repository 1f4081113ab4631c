package cqrs

import (
	"context"
	"encoding/json"
	"fmt"
)

// Projection is a read-model value updated incrementally by folding committed
// envelopes into the existing state. The zero value of the implementing type
// is the default projection state.
//
// Update must be a pure fold: new_state = fold(old_state, envelope), applied
// once per envelope in sequence order.
type Projection interface {
	Update(envelope *Envelope)
}

// ProjectionStore persists serialized projection state per (query name,
// aggregate ID), together with the sequence of the last envelope folded in.
type ProjectionStore interface {
	// Get returns the stored state and last applied sequence, or (nil, 0,
	// nil) when no state exists yet.
	Get(ctx context.Context, queryName, aggregateID string) ([]byte, uint64, error)

	// Put stores the state and last applied sequence, replacing any previous
	// value.
	Put(ctx context.Context, queryName, aggregateID string, sequence uint64, state []byte) error
}

// QueryRepository is a generic persisted read-model processor. As a
// QueryProcessor it folds every committed envelope into the stored projection
// of type Q; independently of the write path it serves reads through Load.
//
// Dispatch is idempotent under at-least-once delivery: envelopes at or below
// the stored last-applied sequence are skipped, so redelivered batches do not
// double-fold.
type QueryRepository[Q any, PQ interface {
	*Q
	Projection
}] struct {
	queryName    string
	store        ProjectionStore
	errorHandler func(error)
}

// NewQueryRepository creates a repository for projection type Q, persisted
// under the given query name.
func NewQueryRepository[Q any, PQ interface {
	*Q
	Projection
}](queryName string, store ProjectionStore) *QueryRepository[Q, PQ] {
	return &QueryRepository[Q, PQ]{
		queryName: queryName,
		store:     store,
	}
}

// WithErrorHandler installs a hook invoked with every dispatch error before
// it is returned, e.g. for projection-specific alerting.
func (r *QueryRepository[Q, PQ]) WithErrorHandler(fn func(error)) *QueryRepository[Q, PQ] {
	r.errorHandler = fn
	return r
}

// ProcessorName implements QueryProcessor.
func (r *QueryRepository[Q, PQ]) ProcessorName() string {
	return r.queryName
}

// Dispatch implements QueryProcessor.
func (r *QueryRepository[Q, PQ]) Dispatch(ctx context.Context, aggregateID string, events []Envelope) error {
	data, sequence, err := r.store.Get(ctx, r.queryName, aggregateID)
	if err != nil {
		return r.fail(fmt.Errorf("load projection %q for aggregate %q: %w", r.queryName, aggregateID, err))
	}

	var state Q
	if data != nil {
		if err := json.Unmarshal(data, &state); err != nil {
			return r.fail(fmt.Errorf("decode projection %q for aggregate %q: %w", r.queryName, aggregateID, err))
		}
	}

	updated := false
	for i := range events {
		envelope := &events[i]
		if envelope.Sequence <= sequence {
			continue
		}
		PQ(&state).Update(envelope)
		sequence = envelope.Sequence
		updated = true
	}

	if !updated {
		return nil
	}

	out, err := json.Marshal(&state)
	if err != nil {
		return r.fail(fmt.Errorf("encode projection %q for aggregate %q: %w", r.queryName, aggregateID, err))
	}

	if err := r.store.Put(ctx, r.queryName, aggregateID, sequence, out); err != nil {
		return r.fail(fmt.Errorf("store projection %q for aggregate %q: %w", r.queryName, aggregateID, err))
	}

	return nil
}

// Load returns the current projection for the given aggregate ID, or nil if
// no state has been projected yet.
func (r *QueryRepository[Q, PQ]) Load(ctx context.Context, aggregateID string) (*Q, error) {
	data, _, err := r.store.Get(ctx, r.queryName, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("load projection %q for aggregate %q: %w", r.queryName, aggregateID, err)
	}
	if data == nil {
		return nil, nil
	}

	var state Q
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode projection %q for aggregate %q: %w", r.queryName, aggregateID, err)
	}
	return &state, nil
}

func (r *QueryRepository[Q, PQ]) fail(err error) error {
	if r.errorHandler != nil {
		r.errorHandler(err)
	}
	return err
}
