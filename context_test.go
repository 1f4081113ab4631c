package cqrs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestWithEnvelope_Accessors(t *testing.T) {
	occurred := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	env := &Envelope{
		EventID:       uuid.New(),
		AggregateID:   "acc-1",
		AggregateType: "account",
		Sequence:      7,
		Metadata:      map[string]string{"time": "2024-05-01T12:00:00Z"},
		OccurredAt:    occurred,
	}

	ctx := WithEnvelope(context.Background(), env)

	if got := AggregateIDFromContext(ctx); got != "acc-1" {
		t.Fatalf("aggregate ID: got %q", got)
	}
	if got := AggregateTypeFromContext(ctx); got != "account" {
		t.Fatalf("aggregate type: got %q", got)
	}
	if got := EventIDFromContext(ctx); got != env.EventID {
		t.Fatalf("event ID: got %v", got)
	}
	if got := SequenceFromContext(ctx); got != 7 {
		t.Fatalf("sequence: got %d", got)
	}
	if got := OccurredAtFromContext(ctx); !got.Equal(occurred) {
		t.Fatalf("occurred at: got %v", got)
	}
	if got := MetadataFromContext(ctx); got["time"] != "2024-05-01T12:00:00Z" {
		t.Fatalf("metadata: got %v", got)
	}
}

func TestAccessors_EmptyContext(t *testing.T) {
	ctx := context.Background()

	if got := AggregateIDFromContext(ctx); got != "" {
		t.Fatalf("expected empty aggregate ID, got %q", got)
	}
	if got := EventIDFromContext(ctx); got != uuid.Nil {
		t.Fatalf("expected uuid.Nil, got %v", got)
	}
	if got := SequenceFromContext(ctx); got != 0 {
		t.Fatalf("expected sequence 0, got %d", got)
	}
	if got := OccurredAtFromContext(ctx); !got.IsZero() {
		t.Fatalf("expected zero time, got %v", got)
	}
	if got := MetadataFromContext(ctx); got != nil {
		t.Fatalf("expected nil metadata, got %v", got)
	}
}
