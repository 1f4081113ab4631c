package logging

import (
	"context"
	"log/slog"

	"github.com/terraskye/cqrs"
)

func WithLoggingMiddleware(logger *slog.Logger, next cqrs.EventHandler) cqrs.EventHandler {
	return cqrs.NewEventHandlerFunc(func(ctx context.Context, envelope *cqrs.Envelope) error {
		l := logger.With(
			"event-id", cqrs.EventIDFromContext(ctx),
			"sequence", cqrs.SequenceFromContext(ctx),
			"aggregateId", cqrs.AggregateIDFromContext(ctx),
			"aggregateType", cqrs.AggregateTypeFromContext(ctx),
		)

		l.DebugContext(ctx, "event processing started")

		err := next.Handle(ctx, envelope)

		if err != nil {
			l.ErrorContext(ctx, "error processing event", "error", err)
		} else {
			l.DebugContext(ctx, "event processed successfully")
		}

		return err

	})
}
