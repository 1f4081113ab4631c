package cqrs

import (
	"fmt"
	"sync"
)

var (
	// eventRegistry maps event names to their factory functions. Each factory
	// must return a new pointer instance of a concrete Event type, so that
	// durable stores can unmarshal persisted payloads into it.
	eventRegistry = map[string]func() Event{}

	// commandRegistry maps transport-level command names to factories. The
	// transport unmarshals the inbound payload into the fresh instance and
	// asserts it to the Command type of the target aggregate.
	commandRegistry = map[string]func() any{}

	// mu protects both registries for concurrent access.
	mu sync.RWMutex
)

// RegisterEvent registers a new Event type under its default type name.
//
// The factory must return a new instance of the event each time it is
// called; registration calls it once to derive the name via EventType().
//
// Panics if the factory is nil, returns nil, or the name is already taken.
// Intended to be called from init() of the domain package:
//
//	func init() {
//	    cqrs.RegisterEvent(func() cqrs.Event { return &AccountOpened{} })
//	}
func RegisterEvent(fn func() Event) {
	if fn == nil {
		panic("cqrs: cannot register nil event factory")
	}
	RegisterEventName(fn().EventType(), fn)
}

// RegisterEventName registers a new Event type under a custom name,
// independent of EventType(). Panics on nil factories and duplicate names.
func RegisterEventName(name string, fn func() Event) {
	if fn == nil {
		panic("cqrs: cannot register nil event factory")
	}

	mu.Lock()
	defer mu.Unlock()

	if _, exists := eventRegistry[name]; exists {
		panic(fmt.Sprintf("cqrs: event already registered: %s", name))
	}

	if fn() == nil {
		panic(fmt.Sprintf("cqrs: event factory returned nil for: %s", name))
	}

	eventRegistry[name] = fn
}

// NewEventByName creates a new instance of a registered Event by its name.
// Durable stores use this to rehydrate persisted payloads.
func NewEventByName(name string) (Event, error) {
	mu.RLock()
	factory, ok := eventRegistry[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("event not registered: %s: %w", name, ErrHandlerNotFound)
	}

	event := factory()
	if event == nil {
		return nil, fmt.Errorf("event factory returned nil for: %s", name)
	}
	return event, nil
}

// RegisterCommand registers a command factory under the transport-level name
// used to select the concrete command type, e.g. "openAccount". Panics on
// nil factories and duplicate names.
func RegisterCommand(name string, fn func() any) {
	if fn == nil {
		panic("cqrs: cannot register nil command factory")
	}

	mu.Lock()
	defer mu.Unlock()

	if _, exists := commandRegistry[name]; exists {
		panic(fmt.Sprintf("cqrs: command already registered: %s", name))
	}

	if fn() == nil {
		panic(fmt.Sprintf("cqrs: command factory returned nil for: %s", name))
	}

	commandRegistry[name] = fn
}

// NewCommandByName creates a new instance of a registered command by its
// transport-level name. The caller unmarshals the payload into the returned
// value and asserts it to Command[A] for the target aggregate.
func NewCommandByName(name string) (any, error) {
	mu.RLock()
	factory, ok := commandRegistry[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("command not registered: %s: %w", name, ErrHandlerNotFound)
	}

	command := factory()
	if command == nil {
		return nil, fmt.Errorf("command factory returned nil for: %s", name)
	}
	return command, nil
}
