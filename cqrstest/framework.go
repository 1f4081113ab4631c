// Package cqrstest provides a Given/When/Then harness for testing command
// handling against an aggregate in isolation, without a store or engine.
//
//	cqrstest.Given[account.BankAccount](
//	    &account.AccountOpened{AccountID: "abc"},
//	).
//	    When(account.DepositMoney{Amount: 200}).
//	    ThenExpectEvents(t, &account.CustomerDepositedMoney{Amount: 200, Balance: 200})
package cqrstest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/terraskye/cqrs"
)

// Framework holds the prior events that establish aggregate state before
// the command under test runs.
type Framework[A cqrs.Aggregate] struct {
	previous []cqrs.DomainEvent[A]
}

// Given starts a test with prior events.
func Given[A cqrs.Aggregate](events ...cqrs.DomainEvent[A]) *Framework[A] {
	return &Framework[A]{previous: events}
}

// GivenNoPreviousEvents starts a test against a fresh aggregate.
func GivenNoPreviousEvents[A cqrs.Aggregate]() *Framework[A] {
	return &Framework[A]{}
}

// When replays the prior events and handles the command, capturing the
// resulting events or error for the Then assertions.
func (f *Framework[A]) When(command cqrs.Command[A]) *Execution[A] {
	var aggregate A
	for _, event := range f.previous {
		event.Apply(&aggregate)
	}

	events, err := command.Handle(aggregate)
	return &Execution[A]{events: events, err: err}
}

// Execution is the captured outcome of handling a command.
type Execution[A cqrs.Aggregate] struct {
	events []cqrs.DomainEvent[A]
	err    error
}

// ThenExpectEvents asserts the command succeeded and produced exactly the
// expected events, in order.
func (e *Execution[A]) ThenExpectEvents(t *testing.T, expected ...cqrs.DomainEvent[A]) {
	t.Helper()

	require.NoError(t, e.err)
	require.Len(t, e.events, len(expected))
	for i := range expected {
		require.Equal(t, expected[i], e.events[i], "event %d", i)
	}
}

// ThenExpectNoEvents asserts the command succeeded without producing events.
func (e *Execution[A]) ThenExpectNoEvents(t *testing.T) {
	t.Helper()

	require.NoError(t, e.err)
	require.Empty(t, e.events)
}

// ThenExpectError asserts the command was rejected with the given reason.
func (e *Execution[A]) ThenExpectError(t *testing.T, reason string) {
	t.Helper()

	var rejected *cqrs.CommandRejectedError
	require.Error(t, e.err)
	require.True(t, errors.As(e.err, &rejected), "expected CommandRejectedError, got %T: %v", e.err, e.err)
	require.Equal(t, reason, rejected.Reason)
}

// Events exposes the produced events for custom assertions.
func (e *Execution[A]) Events() []cqrs.DomainEvent[A] {
	return e.events
}

// Err exposes the handling error for custom assertions.
func (e *Execution[A]) Err() error {
	return e.err
}
