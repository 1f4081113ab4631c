package cqrs

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"
)

// retryingExecutor retries concurrency conflicts with a backoff strategy.
type retryingExecutor[A Aggregate] struct {
	next     Executor[A]
	strategy func() backoff.BackOff
}

// WithRetry wraps an Executor so that executions failing with a
// *ConcurrencyError are retried according to the given strategy, reloading
// and re-deriving the command each attempt. Every other error is permanent.
//
// The engine itself never retries; retrying changes command semantics (the
// command is re-validated against fresher state), which is why it is an
// explicit caller decision. The strategy factory is invoked per execution so
// that backoff state is not shared between calls.
//
// Example:
//
//	executor := cqrs.WithRetry[Account](engine, func() backoff.BackOff {
//	    return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
//	})
func WithRetry[A Aggregate](next Executor[A], strategy func() backoff.BackOff) Executor[A] {
	return &retryingExecutor[A]{next: next, strategy: strategy}
}

// Execute implements Executor.
func (r *retryingExecutor[A]) Execute(ctx context.Context, aggregateID string, command Command[A]) error {
	return r.ExecuteWithMetadata(ctx, aggregateID, command, nil)
}

// ExecuteWithMetadata implements Executor.
func (r *retryingExecutor[A]) ExecuteWithMetadata(ctx context.Context, aggregateID string, command Command[A], metadata map[string]string) error {
	operation := func() error {
		err := r.next.ExecuteWithMetadata(ctx, aggregateID, command, metadata)
		if err == nil {
			return nil
		}

		var conflict *ConcurrencyError
		if errors.As(err, &conflict) {
			return err
		}
		return backoff.Permanent(err)
	}

	return backoff.Retry(operation, backoff.WithContext(r.strategy(), ctx))
}
