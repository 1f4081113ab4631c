package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/terraskye/cqrs"
	"github.com/terraskye/cqrs/eventstore/memory"
	"github.com/terraskye/cqrs/fixtures"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// recordSpans routes the global tracer to an in-memory recorder for the
// duration of the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func endedSpan(recorder *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	for _, span := range recorder.Ended() {
		if span.Name() == name {
			return span
		}
	}
	return nil
}

type pinged struct{}

func (*pinged) EventType() string { return "pinged" }

func TestTelemetryStore_AppendPassesThrough(t *testing.T) {
	store := NewTelemetryStore(memory.NewStore())
	ctx := context.Background()

	envelopes, err := store.Append(ctx, "agg-1", "test", 0, []cqrs.Event{&pinged{}}, nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(envelopes) != 1 || envelopes[0].Sequence != 1 {
		t.Fatalf("unexpected envelopes: %+v", envelopes)
	}
}

func TestTelemetryStore_AppendDoesNotMutateCallerMetadata(t *testing.T) {
	spy := fixtures.NewStoreSpy()
	store := NewTelemetryStore(spy)

	metadata := map[string]string{"time": "now"}
	if _, err := store.Append(context.Background(), "agg-1", "test", 0, []cqrs.Event{&pinged{}}, metadata); err != nil {
		t.Fatalf("append: %v", err)
	}

	if len(metadata) != 1 {
		t.Fatalf("caller metadata mutated: %v", metadata)
	}
	if spy.LastAppendMetadata["time"] != "now" {
		t.Fatalf("metadata not forwarded: %v", spy.LastAppendMetadata)
	}
}

func TestTelemetryStore_LoadIteratesWrappedStream(t *testing.T) {
	inner := memory.NewStore()
	ctx := context.Background()
	if _, err := inner.Append(ctx, "agg-1", "test", 0, []cqrs.Event{&pinged{}, &pinged{}}, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := NewTelemetryStore(inner)
	iter, err := store.Load(ctx, "agg-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	envelopes, err := iter.All(ctx)
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(envelopes) != 2 {
		t.Fatalf("expected 2 envelopes, got %d", len(envelopes))
	}
}

func TestTelemetryStore_LoadEndsReplaySpanOnExhaustion(t *testing.T) {
	recorder := recordSpans(t)

	inner := memory.NewStore()
	ctx := context.Background()
	if _, err := inner.Append(ctx, "agg-1", "test", 0, []cqrs.Event{&pinged{}, &pinged{}}, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := NewTelemetryStore(inner)
	iter, err := store.Load(ctx, "agg-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := iter.All(ctx); err != nil {
		t.Fatalf("iterate: %v", err)
	}

	replay := endedSpan(recorder, "EventStore.Load")
	if replay == nil {
		t.Fatalf("replay span was not ended")
	}
	for _, attr := range replay.Attributes() {
		if attr.Key == AttrEventCount {
			if got := attr.Value.AsInt64(); got != 2 {
				t.Fatalf("expected event count 2 on replay span, got %d", got)
			}
			return
		}
	}
	t.Fatalf("event count attribute missing from replay span")
}

func TestTelemetryStore_LoadEndsReplaySpanOnIterationError(t *testing.T) {
	recorder := recordSpans(t)

	want := errors.New("stream corrupted")
	spy := fixtures.NewStoreSpy()
	spy.LoadFn = func(ctx context.Context, aggregateID string) (*cqrs.Iterator[*cqrs.Envelope], error) {
		return cqrs.NewIteratorFunc(func(ctx context.Context) (*cqrs.Envelope, error) {
			return nil, want
		}), nil
	}

	store := NewTelemetryStore(spy)
	iter, err := store.Load(context.Background(), "agg-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := iter.All(context.Background()); !errors.Is(err, want) {
		t.Fatalf("expected iteration error, got %v", err)
	}

	replay := endedSpan(recorder, "EventStore.Load")
	if replay == nil {
		t.Fatalf("replay span was not ended")
	}
	if replay.Status().Code != codes.Error {
		t.Fatalf("expected error status on replay span, got %v", replay.Status())
	}
}

func TestTelemetryStore_LoadErrorPassesThrough(t *testing.T) {
	want := errors.New("load failed")
	store := NewTelemetryStore(fixtures.NewStoreSpy().FailOnLoad(want))

	_, err := store.Load(context.Background(), "agg-1")
	if !errors.Is(err, want) {
		t.Fatalf("expected load error, got %v", err)
	}
}
