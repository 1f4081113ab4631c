package cqrs

import (
	"context"
)

// EventStore defines the contract for an append-only event store. An
// EventStore persists events associated with a given aggregate ID in
// sequential order, allowing for full reconstruction of aggregate state.
//
// Implementations must guarantee:
//   - Events for a given aggregate are stored in order; sequence numbers are
//     contiguous starting at 1 and are assigned by the store.
//   - Append is atomic: either the whole batch is committed or none of it.
//   - Optimistic concurrency based on the caller's expected version. The
//     store is the sole arbiter of serialization for a given aggregate ID.
//
// The returned Iterator values are lazy; they should be consumed immediately
// and no assumptions should be made about reusability after iteration.
type EventStore interface {
	// Load returns all envelopes for the given aggregate ID in ascending
	// sequence order. An unknown aggregate ID is not an error: the iterator
	// is simply empty.
	Load(ctx context.Context, aggregateID string) (*Iterator[*Envelope], error)

	// Append atomically persists the given events at sequences
	// expectedVersion+1 .. expectedVersion+len(events) and returns the
	// committed envelopes.
	//
	// expectedVersion must equal the number of events currently stored for
	// aggregateID (the version the caller replayed from). If it does not, a
	// concurrent writer committed first: Append fails with *ConcurrencyError
	// and nothing is written.
	//
	// An empty batch is a no-op.
	Append(ctx context.Context, aggregateID, aggregateType string, expectedVersion uint64, events []Event, metadata map[string]string) ([]Envelope, error)

	// Close releases any resources held by the store, such as file handles
	// or database connections. Implementations should make Close idempotent.
	Close() error
}
