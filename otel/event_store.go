package otel

import (
	"context"
	"io"
	"maps"
	"time"

	"github.com/terraskye/cqrs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var _ cqrs.EventStore = (*TelemetryStore)(nil)

// TelemetryStore decorates an EventStore with spans and metrics. On append
// it also injects the active trace context into the envelope metadata, so
// downstream processors can correlate projections with the originating
// command.
type TelemetryStore struct {
	next cqrs.EventStore
}

func NewTelemetryStore(next cqrs.EventStore) *TelemetryStore {
	return &TelemetryStore{next: next}
}

// Append with metrics and a client span.
func (t *TelemetryStore) Append(ctx context.Context, aggregateID, aggregateType string, expectedVersion uint64, events []cqrs.Event, metadata map[string]string) ([]cqrs.Envelope, error) {
	ctx, span := tracer.Start(ctx, "EventStore.Append",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrOperation.String("append"),
			AttrAggregateID.String(aggregateID),
			AttrEventCount.Int(len(events)),
		),
	)
	defer span.End()

	md := maps.Clone(metadata)
	if md == nil {
		md = map[string]string{}
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	maps.Copy(md, carrier)

	if span.SpanContext().HasTraceID() {
		md["correlationId"] = span.SpanContext().TraceID().String()
	}

	start := time.Now()
	envelopes, err := t.next.Append(ctx, aggregateID, aggregateType, expectedVersion, events, md)

	EventStoreDuration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(AttrOperation.String("append")),
	)
	EventStoreAppends.Add(ctx, 1)
	EventsAppended.Add(ctx, int64(len(envelopes)))

	if err != nil {
		EventStoreErrors.Add(ctx, 1, metric.WithAttributes(AttrOperation.String("append")))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return envelopes, err
}

// Load with inline tracing middleware: the span covers the whole lazy
// iteration, not just the initial call.
func (t *TelemetryStore) Load(ctx context.Context, aggregateID string) (*cqrs.Iterator[*cqrs.Envelope], error) {
	iter, err := t.next.Load(ctx, aggregateID)
	if err != nil {
		EventStoreErrors.Add(ctx, 1, metric.WithAttributes(AttrOperation.String("load")))
		return iter, err
	}

	var (
		spanCtx    context.Context
		replaySpan trace.Span
		startedAt  time.Time
		eventCount int64
		ended      bool
	)

	// finish ends the replay span exactly once, on whichever call turns out
	// to be the terminal one.
	finish := func(err error) {
		if ended {
			return
		}
		ended = true

		replaySpan.SetAttributes(AttrEventCount.Int64(eventCount))
		if err != nil {
			EventStoreErrors.Add(spanCtx, 1, metric.WithAttributes(AttrOperation.String("load")))
			replaySpan.RecordError(err)
			replaySpan.SetStatus(codes.Error, err.Error())
		} else {
			EventStoreDuration.Record(spanCtx, float64(time.Since(startedAt).Milliseconds()),
				metric.WithAttributes(AttrOperation.String("load")),
			)
		}
		replaySpan.End()
	}

	return cqrs.NewIteratorFunc(func(ctx context.Context) (*cqrs.Envelope, error) {
		if spanCtx == nil {
			startedAt = time.Now()
			spanCtx, replaySpan = tracer.Start(ctx, "EventStore.Load",
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithAttributes(
					AttrOperation.String("load"),
					AttrAggregateID.String(aggregateID),
				),
			)
		}

		// The span context from the first call carries the replay span
		// through every subsequent fetch.
		if !iter.Next(spanCtx) {
			err := iter.Err()
			finish(err)
			if err == nil {
				return nil, io.EOF
			}
			return nil, err
		}

		eventCount++
		EventsLoaded.Add(spanCtx, 1)
		return iter.Value(), nil
	}), nil
}

// Close passes through.
func (t *TelemetryStore) Close() error {
	return t.next.Close()
}
