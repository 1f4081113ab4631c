package cqrs

import (
	"context"
	"encoding/json"
	"log/slog"
)

// QueryProcessor is a consumer of an aggregate's committed event stream: a
// side-effecting subscriber or a projection builder. Processors are
// registered at engine construction time and invoked with every batch of
// newly committed envelopes for an aggregate instance, in sequence order.
//
// A returned error is isolated by the engine: it is logged and metered but
// does not fail the execution and does not roll back the append.
type QueryProcessor interface {
	// ProcessorName identifies the processor in logs and metrics.
	ProcessorName() string

	// Dispatch processes one committed batch for a single aggregate.
	Dispatch(ctx context.Context, aggregateID string, events []Envelope) error
}

// LoggingQueryProcessor is a stateless processor that logs every committed
// event with its pretty-printed payload.
type LoggingQueryProcessor struct {
	logger *slog.Logger
}

// NewLoggingQueryProcessor creates a LoggingQueryProcessor. A nil logger
// falls back to slog.Default().
func NewLoggingQueryProcessor(logger *slog.Logger) *LoggingQueryProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingQueryProcessor{logger: logger}
}

// ProcessorName implements QueryProcessor.
func (p *LoggingQueryProcessor) ProcessorName() string {
	return "logging"
}

// Dispatch implements QueryProcessor.
func (p *LoggingQueryProcessor) Dispatch(ctx context.Context, aggregateID string, events []Envelope) error {
	for i := range events {
		envelope := &events[i]

		payload, err := json.MarshalIndent(envelope.Event, "", "  ")
		if err != nil {
			return err
		}

		p.logger.InfoContext(ctx, "committed event",
			"aggregate_id", aggregateID,
			"sequence", envelope.Sequence,
			"event_type", envelope.Event.EventType(),
			"payload", string(payload),
		)
	}
	return nil
}
