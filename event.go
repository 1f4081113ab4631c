package cqrs

import (
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Event is a domain event describing a change that has happened to an aggregate.
type Event interface {
	EventType() string
}

// DomainEvent is an Event that knows how to mutate the in-memory state of the
// aggregate type it belongs to.
//
// Apply must never fail: an event that has been accepted for persistence is
// always valid to replay. Events carry their post-conditions (for example the
// resulting balance) so that Apply needs no external lookups.
type DomainEvent[A any] interface {
	Event

	// Apply mutates the aggregate state with the effect of this event.
	Apply(aggregate *A)
}

// Envelope is the persisted unit of the event log. The store assigns the
// sequence number; for a fixed aggregate the sequences are contiguous
// starting at 1, with no gaps and no duplicates.
type Envelope struct {
	EventID       uuid.UUID
	AggregateID   string
	AggregateType string
	Sequence      uint64
	Event         Event
	Metadata      map[string]string
	OccurredAt    time.Time
}

// TypeName returns the bare type name of v, without package qualifier or
// pointer marker. Used to key handlers and registries by event type.
func TypeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
