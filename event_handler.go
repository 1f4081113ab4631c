package cqrs

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// EventHandler processes a single committed envelope.
type EventHandler interface {
	Handle(ctx context.Context, envelope *Envelope) error
}

// NewEventHandlerFunc creates an EventHandler from a plain function.
//
// There is no type checking or filtering: the handler receives every envelope
// it is invoked with. If you need type safety, use OnEvent instead.
func NewEventHandlerFunc(fn func(ctx context.Context, envelope *Envelope) error) EventHandler {
	return eventHandlerFunc(fn)
}

type eventHandlerFunc func(ctx context.Context, envelope *Envelope) error

func (h eventHandlerFunc) Handle(ctx context.Context, envelope *Envelope) error {
	return h(ctx, envelope)
}

// typedEventHandler is a strongly typed event handler for a specific Event type T.
type typedEventHandler[T Event] func(ctx context.Context, event T) error

// EventName returns the name of the event type T. It is used internally by
// GroupProcessor for routing.
func (h typedEventHandler[T]) EventName() string {
	var zero T
	return TypeName(zero)
}

// Handle processes the envelope if its payload matches the type T. Returns
// ErrSkippedEvent if the payload is of the wrong type.
func (h typedEventHandler[T]) Handle(ctx context.Context, envelope *Envelope) error {
	event, ok := envelope.Event.(T)
	if !ok {
		return &ErrSkippedEvent{Event: envelope.Event}
	}
	return h(ctx, event)
}

// OnEvent creates a strongly-typed EventHandler for a specific event type.
//
// When called via GroupProcessor.Dispatch, the handler only receives events
// of type T; the surrounding envelope is available through the context
// accessors (SequenceFromContext, MetadataFromContext and friends).
//
// Example:
//
//	group := NewGroupProcessor("account_view",
//	    OnEvent(func(ctx context.Context, ev *AccountOpened) error { ... }),
//	    OnEvent(func(ctx context.Context, ev *CustomerDepositedMoney) error { ... }),
//	)
func OnEvent[T Event](fn func(ctx context.Context, event T) error) EventHandler {
	return typedEventHandler[T](fn)
}

// GroupProcessor is a collection of typed event handlers acting as one
// QueryProcessor. Each committed envelope is routed to the handler registered
// for its event type; envelopes with no matching handler are skipped.
type GroupProcessor struct {
	name     string
	handlers map[string]EventHandler
}

// NewGroupProcessor creates a named group of typed event handlers, typically
// built with OnEvent. Panics on handlers without an EventName and on
// duplicate registrations for the same event type.
func NewGroupProcessor(name string, handlers ...EventHandler) *GroupProcessor {
	m := make(map[string]EventHandler, len(handlers))
	for _, h := range handlers {
		u, ok := h.(interface{ EventName() string })
		if !ok {
			panic(fmt.Errorf("handler %T does not have a function `EventName()`", h))
		}

		eventName := u.EventName()
		if _, exists := m[eventName]; exists {
			panic(fmt.Errorf("duplicate handler for event %s: %w", eventName, ErrDuplicateHandler))
		}
		m[eventName] = h
	}

	return &GroupProcessor{
		name:     name,
		handlers: m,
	}
}

// ProcessorName implements QueryProcessor.
func (p *GroupProcessor) ProcessorName() string {
	return p.name
}

// Dispatch implements QueryProcessor. Envelopes are handled in sequence
// order; event types with no registered handler are ignored.
//
// Routing uses the Go type name, the same key the typed handlers register
// under, so events whose EventType() differs from their struct name still
// reach their handler.
func (p *GroupProcessor) Dispatch(ctx context.Context, aggregateID string, events []Envelope) error {
	for i := range events {
		envelope := &events[i]

		handler, ok := p.handlers[TypeName(envelope.Event)]
		if !ok {
			continue
		}

		if err := handler.Handle(WithEnvelope(ctx, envelope), envelope); err != nil {
			var skipped *ErrSkippedEvent
			if errors.As(err, &skipped) {
				continue
			}
			return err
		}
	}
	return nil
}

// HandledEvents returns a sorted list of all event names handled by this
// group. Useful for listing registered handlers.
func (p *GroupProcessor) HandledEvents() []string {
	out := make([]string, 0, len(p.handlers))
	for name := range p.handlers {
		out = append(out, name)
	}
	sort.Strings(out) // deterministic order
	return out
}
