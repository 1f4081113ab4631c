package cqrs

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/terraskye/cqrs"
)

// Attribute keys shared by the engine and query bus instrumentation.
var (
	AttrCommandType   = attribute.Key("cqrs.command.type")
	AttrAggregateType = attribute.Key("cqrs.aggregate.type")
	AttrAggregateID   = attribute.Key("cqrs.aggregate.id")
	AttrQueryType     = attribute.Key("cqrs.query.type")
	AttrProcessor     = attribute.Key("cqrs.processor.name")
	AttrErrorType     = attribute.Key("cqrs.error.type")
)

var (
	tracer = otel.Tracer(instrumentationName)
	meter  metric.Meter

	// Command metrics
	CommandsHandled  metric.Int64Counter
	CommandsRejected metric.Int64Counter
	CommandsDuration metric.Float64Histogram
	CommandsInFlight metric.Int64UpDownCounter

	// Event metrics
	EventsAppended metric.Int64Counter
	EventsLoaded   metric.Int64Counter

	// Dispatch metrics
	ProjectionFailures metric.Int64Counter

	// Query metrics
	QueriesHandled  metric.Int64Counter
	QueriesFailed   metric.Int64Counter
	QueriesDuration metric.Float64Histogram
	QueriesInFlight metric.Int64UpDownCounter

	// System metrics
	ConcurrencyConflicts metric.Int64Counter

	once    sync.Once
	initErr error
)

// Init initializes the global metrics. It is idempotent; the engine and
// query bus call it on construction, but applications wiring their own meter
// provider should call it once at startup after the provider is installed.
func Init() error {
	once.Do(func() {
		meter = otel.Meter(instrumentationName)
		initErr = initializeMetrics()
	})
	return initErr
}

func initializeMetrics() error {
	var err error

	CommandsHandled, err = meter.Int64Counter(
		"cqrs.commands.handled",
		metric.WithDescription("Number of commands handled"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return err
	}

	CommandsRejected, err = meter.Int64Counter(
		"cqrs.commands.rejected",
		metric.WithDescription("Number of commands rejected by business rules"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return err
	}

	CommandsDuration, err = meter.Float64Histogram(
		"cqrs.commands.duration",
		metric.WithDescription("Command execution duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)
	if err != nil {
		return err
	}

	CommandsInFlight, err = meter.Int64UpDownCounter(
		"cqrs.commands.in_flight",
		metric.WithDescription("Number of commands currently being executed"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return err
	}

	EventsAppended, err = meter.Int64Counter(
		"cqrs.events.appended",
		metric.WithDescription("Number of events appended to streams"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return err
	}

	EventsLoaded, err = meter.Int64Counter(
		"cqrs.events.loaded",
		metric.WithDescription("Number of events loaded during replay"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return err
	}

	ProjectionFailures, err = meter.Int64Counter(
		"cqrs.projections.failures",
		metric.WithDescription("Number of isolated query processor failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return err
	}

	QueriesHandled, err = meter.Int64Counter(
		"cqrs.queries.handled",
		metric.WithDescription("Number of queries handled"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return err
	}

	QueriesFailed, err = meter.Int64Counter(
		"cqrs.queries.failed",
		metric.WithDescription("Number of failed queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return err
	}

	QueriesDuration, err = meter.Float64Histogram(
		"cqrs.queries.duration",
		metric.WithDescription("Query handling duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)
	if err != nil {
		return err
	}

	QueriesInFlight, err = meter.Int64UpDownCounter(
		"cqrs.queries.in_flight",
		metric.WithDescription("Number of queries currently being handled"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return err
	}

	ConcurrencyConflicts, err = meter.Int64Counter(
		"cqrs.concurrency.conflicts",
		metric.WithDescription("Number of optimistic concurrency conflicts"),
		metric.WithUnit("{conflict}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// StartQuerySpan starts a span for a query execution.
func StartQuerySpan(ctx context.Context, qry any) (context.Context, trace.Span) {
	return tracer.Start(ctx, "QueryBus.HandleQuery",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(AttrQueryType.String(TypeName(qry))),
	)
}

// EndQuerySpan records the outcome on the span and ends it.
func EndQuerySpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
