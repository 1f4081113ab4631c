package cqrs

// Aggregate is the replayable state container of an event stream.
//
// An aggregate is pure state: its zero value is the state before any event
// exists, and it is mutated only by applying events in sequence order. The
// engine derives the aggregate version from the number of envelopes loaded;
// the state itself carries no bookkeeping.
//
// Replay is deterministic and order dependent: the state after replaying
// [e1..en] equals the state after applying e1, then e2, and so on.
type Aggregate interface {

	// AggregateType returns the static name of the schema family this
	// aggregate belongs to, e.g. "account". It is stored on every envelope.
	AggregateType() string
}
