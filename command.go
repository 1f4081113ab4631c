package cqrs

// Command is an intent to change an aggregate of type A.
//
// Handle is a pure function of (command, current state): it reads only the
// passed-in snapshot, performs validation, and yields the events that should
// occur. It must not mutate the aggregate; only a subsequently applied event
// may. Returning an empty slice means the command had no effect.
//
// Business rule violations are reported as *CommandRejectedError; any other
// error is treated as technical.
type Command[A Aggregate] interface {
	Handle(aggregate A) ([]DomainEvent[A], error)
}
