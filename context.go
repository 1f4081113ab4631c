package cqrs

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ctxKey string

const (
	aggregateIDKey   ctxKey = "aggregateID"
	aggregateTypeKey ctxKey = "aggregateType"
	eventIDKey       ctxKey = "eventID"
	sequenceKey      ctxKey = "sequence"
	occurredAtKey    ctxKey = "occurredAt"
	metadataKey      ctxKey = "metadata"
)

// WithEnvelope annotates the context with the identity of the envelope being
// processed, for consumption by logging and tracing middleware.
func WithEnvelope(ctx context.Context, env *Envelope) context.Context {
	ctx = context.WithValue(ctx, aggregateIDKey, env.AggregateID)
	ctx = context.WithValue(ctx, aggregateTypeKey, env.AggregateType)
	ctx = context.WithValue(ctx, eventIDKey, env.EventID)
	ctx = context.WithValue(ctx, sequenceKey, env.Sequence)
	ctx = context.WithValue(ctx, occurredAtKey, env.OccurredAt)
	ctx = context.WithValue(ctx, metadataKey, env.Metadata)
	return ctx
}

// AggregateIDFromContext returns the aggregate ID or "" if not present.
func AggregateIDFromContext(ctx context.Context) string {
	if v := ctx.Value(aggregateIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// AggregateTypeFromContext returns the aggregate type or "" if not present.
func AggregateTypeFromContext(ctx context.Context) string {
	if v := ctx.Value(aggregateTypeKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// EventIDFromContext returns the event ID or uuid.Nil if not present.
func EventIDFromContext(ctx context.Context) uuid.UUID {
	if v := ctx.Value(eventIDKey); v != nil {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

// SequenceFromContext returns the envelope sequence or 0 if not present.
func SequenceFromContext(ctx context.Context) uint64 {
	if v := ctx.Value(sequenceKey); v != nil {
		if seq, ok := v.(uint64); ok {
			return seq
		}
	}
	return 0
}

// OccurredAtFromContext returns OccurredAt or the zero time if not present.
func OccurredAtFromContext(ctx context.Context) time.Time {
	if v := ctx.Value(occurredAtKey); v != nil {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}

// MetadataFromContext returns the envelope metadata or nil if not present.
func MetadataFromContext(ctx context.Context) map[string]string {
	if v := ctx.Value(metadataKey); v != nil {
		if md, ok := v.(map[string]string); ok {
			return md
		}
	}
	return nil
}
