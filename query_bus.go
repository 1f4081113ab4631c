package cqrs

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// QueryBus is a central registry for query handlers, keyed by query and
// result type, so multiple query types can be registered in a single bus and
// executed via a typed GenericQueryGateway.
//
// Example:
//
//	bus := NewQueryBus()
//	RegisterQueryHandler(bus, NewQueryHandlerFunc(func(ctx context.Context, q AccountQuery) (*AccountView, error) {
//	    return repo.Load(ctx, string(q.ID()))
//	}))
type QueryBus struct {
	handlers map[string]any
}

// NewQueryBus creates a new, empty bus ready for handler registration.
func NewQueryBus() *QueryBus {
	_ = Init()
	return &QueryBus{
		handlers: make(map[string]any),
	}
}

// HandlerOption is an optional configuration function for a registered
// handler. Currently reserved for future extensions such as timeouts or rate
// limiting.
type HandlerOption func(*handlerSettings)

type handlerSettings struct {
}

// RegisterQueryHandler registers a QueryHandler for a specific query and
// result type on the provided QueryBus. The handler is wrapped with tracing
// and metrics; the storage key is derived from the two types.
func RegisterQueryHandler[T Query, R any](bus *QueryBus, handler QueryHandler[T, R], opts ...HandlerOption) {
	key := fmt.Sprintf("%T|%T", *new(T), *new(R))

	wrapped := queryHandlerFunc[T, R](func(ctx context.Context, qry T) (R, error) {
		startTime := time.Now()

		ctx, span := StartQuerySpan(ctx, qry)

		attrs := metric.WithAttributes(
			AttrQueryType.String(TypeName(qry)),
		)

		QueriesInFlight.Add(ctx, 1, attrs)
		defer QueriesInFlight.Add(ctx, -1, attrs)

		result, err := handler.HandleQuery(ctx, qry)

		QueriesDuration.Record(ctx, float64(time.Since(startTime).Milliseconds()), attrs)

		if err != nil {
			QueriesFailed.Add(ctx, 1, metric.WithAttributes(
				AttrQueryType.String(TypeName(qry)),
				AttrErrorType.String("handler_error"),
			))
			EndQuerySpan(span, err)
			return result, err
		}

		QueriesHandled.Add(ctx, 1, attrs)
		EndQuerySpan(span, nil)
		return result, nil
	})

	settings := &handlerSettings{}
	for _, opt := range opts {
		opt(settings)
	}

	bus.handlers[key] = wrapped
}
