package cqrs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Executor executes commands against aggregates of type A. It is implemented
// by Engine and by the decorators layered on top of it (logging, retry, the
// command bus), so the layers compose freely.
type Executor[A Aggregate] interface {
	// Execute runs one command end-to-end without extra metadata.
	Execute(ctx context.Context, aggregateID string, command Command[A]) error

	// ExecuteWithMetadata runs one command end-to-end, attaching the given
	// metadata to every committed envelope.
	ExecuteWithMetadata(ctx context.Context, aggregateID string, command Command[A], metadata map[string]string) error
}

// Option configures an Engine.
type Option func(cfg *engineOptions)

type engineOptions struct {
	logger        *slog.Logger
	metadataFuncs []func(ctx context.Context) map[string]string
}

// WithLogger sets the logger used for isolated dispatch failures. Defaults
// to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *engineOptions) { cfg.logger = logger }
}

// WithMetadataExtractor adds a metadata function to the engine.
//
// Each function is called once per execution and can inject additional
// key-value pairs into the committed envelopes, e.g. a tenant or request ID
// taken from the context. Explicit per-call metadata wins on key collisions.
func WithMetadataExtractor(fn func(ctx context.Context) map[string]string) Option {
	return func(cfg *engineOptions) {
		cfg.metadataFuncs = append(cfg.metadataFuncs, fn)
	}
}

// Engine orchestrates one command execution end-to-end: load history, replay
// to current state, invoke the command, persist the resulting events, and
// dispatch them to every registered query processor.
//
// The engine takes no locks. Concurrent executions for different aggregate
// IDs run in parallel without coordination; concurrent executions for the
// same aggregate ID race on the store's expected-version check, and the
// store's atomic append is the sole arbiter.
type Engine[A Aggregate] struct {
	store      EventStore
	processors []QueryProcessor
	logger     *slog.Logger
	metadata   []func(ctx context.Context) map[string]string
}

// New creates an Engine for aggregate type A backed by the given store.
//
// The processor set is fixed for the lifetime of the engine; processors are
// dispatched synchronously in registration order.
func New[A Aggregate](store EventStore, processors []QueryProcessor, opts ...Option) *Engine[A] {
	cfg := &engineOptions{
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(cfg)
	}

	_ = Init()

	return &Engine[A]{
		store:      store,
		processors: processors,
		logger:     cfg.logger,
		metadata:   cfg.metadataFuncs,
	}
}

// Execute implements Executor.
func (e *Engine[A]) Execute(ctx context.Context, aggregateID string, command Command[A]) error {
	return e.ExecuteWithMetadata(ctx, aggregateID, command, nil)
}

// ExecuteWithMetadata implements Executor.
//
// Errors from Command.Handle and EventStore.Append propagate unchanged; the
// engine adds no retry logic. Query processor failures are isolated: they are
// logged and metered but never fail the execution and never roll back the
// committed append. The log is the source of truth; projections are
// rebuildable.
func (e *Engine[A]) ExecuteWithMetadata(ctx context.Context, aggregateID string, command Command[A], metadata map[string]string) (err error) {
	var aggregate A

	ctx, span := tracer.Start(ctx, "Engine.Execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			AttrCommandType.String(TypeName(command)),
			AttrAggregateType.String(aggregate.AggregateType()),
			AttrAggregateID.String(aggregateID),
		),
	)
	defer span.End()

	attrs := metric.WithAttributes(
		AttrCommandType.String(TypeName(command)),
		AttrAggregateType.String(aggregate.AggregateType()),
	)

	CommandsInFlight.Add(ctx, 1, attrs)
	defer CommandsInFlight.Add(ctx, -1, attrs)

	start := time.Now()
	defer func() {
		CommandsDuration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	// --- Load history and replay ---
	iter, err := e.store.Load(ctx, aggregateID)
	if err != nil {
		return WrapEventStoreError(err)
	}

	var version uint64
	for iter.Next(ctx) {
		envelope := iter.Value()
		event, ok := envelope.Event.(DomainEvent[A])
		if !ok {
			return fmt.Errorf("replay aggregate %q: event %q at sequence %d does not apply to %s",
				aggregateID, envelope.Event.EventType(), envelope.Sequence, aggregate.AggregateType())
		}
		event.Apply(&aggregate)
		version++
	}
	if err := iter.Err(); err != nil {
		return WrapEventStoreError(err)
	}
	EventsLoaded.Add(ctx, int64(version), attrs)

	// --- Handle command ---
	events, err := command.Handle(aggregate)
	if err != nil {
		var rejected *CommandRejectedError
		if errors.As(err, &rejected) {
			CommandsRejected.Add(ctx, 1, attrs)
		}
		return err
	}

	// A command is only meaningful if it produces events, but zero events is
	// a legal, successful no-op: no append, no dispatch.
	if len(events) == 0 {
		CommandsHandled.Add(ctx, 1, attrs)
		return nil
	}

	// --- Append ---
	md := make(map[string]string)
	for _, fn := range e.metadata {
		maps.Copy(md, fn(ctx))
	}
	maps.Copy(md, metadata)

	payloads := make([]Event, len(events))
	for i, event := range events {
		payloads[i] = event
	}

	envelopes, err := e.store.Append(ctx, aggregateID, aggregate.AggregateType(), version, payloads, md)
	if err != nil {
		var conflict *ConcurrencyError
		if errors.As(err, &conflict) {
			ConcurrencyConflicts.Add(ctx, 1, attrs)
		}
		return err
	}
	EventsAppended.Add(ctx, int64(len(envelopes)), attrs)
	CommandsHandled.Add(ctx, 1, attrs)

	// --- Dispatch ---
	e.dispatch(ctx, aggregateID, envelopes)

	return nil
}

// dispatch invokes every registered processor with the committed batch, in
// registration order. One processor's failure or panic must not prevent the
// others from running.
func (e *Engine[A]) dispatch(ctx context.Context, aggregateID string, envelopes []Envelope) {
	for _, processor := range e.processors {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.ErrorContext(ctx, "query processor panicked",
						"processor", processor.ProcessorName(),
						"aggregate_id", aggregateID,
						"panic", r,
					)
					ProjectionFailures.Add(ctx, 1, metric.WithAttributes(
						AttrProcessor.String(processor.ProcessorName()),
					))
				}
			}()

			if err := processor.Dispatch(ctx, aggregateID, envelopes); err != nil {
				e.logger.ErrorContext(ctx, "query processor failed",
					"processor", processor.ProcessorName(),
					"aggregate_id", aggregateID,
					"error", err,
				)
				ProjectionFailures.Add(ctx, 1, metric.WithAttributes(
					AttrProcessor.String(processor.ProcessorName()),
				))
			}
		}()
	}
}
