package cqrs

import (
	"context"
)

// Query is the interface that must be implemented by any type to be
// considered a read query.
type Query interface {
	ID() []byte
}

// QueryHandler represents a handler for a specific query type T producing a
// result of type R. This interface allows generic, type-safe registration
// and execution of read-side logic, independent of the write path.
type QueryHandler[T Query, R any] interface {
	HandleQuery(ctx context.Context, qry T) (R, error)
}

// queryHandlerFunc allows ordinary functions to implement QueryHandler[T,R].
type queryHandlerFunc[T Query, R any] func(ctx context.Context, qry T) (R, error)

// HandleQuery calls the underlying function.
func (f queryHandlerFunc[T, R]) HandleQuery(ctx context.Context, qry T) (R, error) {
	return f(ctx, qry)
}

// NewQueryHandlerFunc creates a QueryHandler from a function.
//
// Example:
//
//	handler := NewQueryHandlerFunc(func(ctx context.Context, q AccountQuery) (*AccountView, error) {
//	    return repo.Load(ctx, string(q.ID()))
//	})
func NewQueryHandlerFunc[T Query, R any](fn func(ctx context.Context, qry T) (R, error)) QueryHandler[T, R] {
	return queryHandlerFunc[T, R](fn)
}
