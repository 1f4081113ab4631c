package cqrs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEventBatch is returned when an append batch is malformed,
	// e.g. events targeting different aggregates.
	ErrInvalidEventBatch = errors.New("invalid event batch")

	// ErrHandlerNotFound is returned when no handler is registered for a
	// command or query type.
	ErrHandlerNotFound = errors.New("handler not found")

	// ErrDuplicateHandler is returned when a handler is registered twice for
	// the same type.
	ErrDuplicateHandler = errors.New("duplicate handler")
)

// CommandRejectedError is a business error: the command's validation failed
// against the current aggregate state. The reason is surfaced verbatim to the
// caller and is never retried automatically.
type CommandRejectedError struct {
	Reason string
}

func (e *CommandRejectedError) Error() string {
	return e.Reason
}

// Reject builds a CommandRejectedError with the given reason.
func Reject(reason string) error {
	return &CommandRejectedError{Reason: reason}
}

// ConcurrencyError is returned by EventStore.Append when the expected version
// does not match the stored event count, meaning a concurrent writer
// committed first. The caller may reload and resubmit; the engine never
// retries on its own.
type ConcurrencyError struct {
	AggregateID string
	Expected    uint64
	Actual      uint64
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("concurrency conflict on aggregate %q: expected version %d, found %d",
		e.AggregateID, e.Expected, e.Actual)
}

// DeserializationError wraps a failure to parse an inbound payload into the
// expected command type.
type DeserializationError struct {
	Err error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("deserialize payload: %v", e.Err)
}

func (e *DeserializationError) Unwrap() error {
	return e.Err
}

// ErrSkippedEvent is returned when a handler cannot handle the event type.
type ErrSkippedEvent struct {
	Event Event
}

func (e *ErrSkippedEvent) Error() string {
	return fmt.Sprintf("skipped event of type %T", e.Event)
}

// EventStoreError wraps a storage failure. The append atomicity guarantee
// holds even on transient failures: either the whole batch landed or none of
// it did.
type EventStoreError struct {
	Err error
}

func (e *EventStoreError) Error() string {
	return fmt.Sprintf("eventstore error: %v", e.Err)
}

func (e *EventStoreError) Unwrap() error {
	return e.Err
}

func WrapEventStoreError(err error) error {
	if err == nil {
		return nil
	}
	return &EventStoreError{Err: err}
}
