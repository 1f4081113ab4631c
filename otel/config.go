// Package otel provides OpenTelemetry decorators for the cqrs building
// blocks, most notably a traced EventStore.
package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/terraskye/cqrs/otel"

var (
	AttrOperation   = attribute.Key("eventstore.operation")
	AttrAggregateID = attribute.Key("eventstore.aggregate.id")
	AttrEventCount  = attribute.Key("eventstore.event.count")
)

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)

	EventStoreAppends  = mustInt64Counter("eventstore.appends", "Number of append operations", "{append}")
	EventStoreErrors   = mustInt64Counter("eventstore.errors", "Number of failed event store operations", "{error}")
	EventsAppended     = mustInt64Counter("eventstore.events.appended", "Number of events appended", "{event}")
	EventsLoaded       = mustInt64Counter("eventstore.events.loaded", "Number of events loaded", "{event}")
	EventStoreDuration = mustFloat64Histogram("eventstore.duration", "Event store operation duration", "ms")
)

func mustInt64Counter(name, description, unit string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
	)
	if err != nil {
		panic(err)
	}
	return counter
}

func mustFloat64Histogram(name, description, unit string) metric.Float64Histogram {
	histogram, err := meter.Float64Histogram(name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)
	if err != nil {
		panic(err)
	}
	return histogram
}
