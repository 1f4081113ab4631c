package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/terraskye/cqrs"
)

type credited struct {
	Amount  float64 `json:"amount"`
	Balance float64 `json:"balance"`
}

func (*credited) EventType() string { return "credited" }

func init() {
	cqrs.RegisterEvent(func() cqrs.Event { return &credited{} })
}

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "events.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestStore_RoundTrip(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	envelopes, err := store.Append(ctx, "acc-1", "account", 0,
		[]cqrs.Event{
			&credited{Amount: 200, Balance: 200},
			&credited{Amount: 100, Balance: 300},
		},
		map[string]string{"time": "2024-05-01T12:00:00Z"},
	)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(envelopes) != 2 {
		t.Fatalf("expected 2 envelopes, got %d", len(envelopes))
	}

	iter, err := store.Load(ctx, "acc-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	loaded, err := iter.All(ctx)
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 envelopes, got %d", len(loaded))
	}

	event, ok := loaded[1].Event.(*credited)
	if !ok {
		t.Fatalf("expected *credited, got %T", loaded[1].Event)
	}
	if event.Amount != 100 || event.Balance != 300 {
		t.Fatalf("payload not rehydrated: %+v", event)
	}
	if loaded[0].Sequence != 1 || loaded[1].Sequence != 2 {
		t.Fatalf("unexpected sequences: %d, %d", loaded[0].Sequence, loaded[1].Sequence)
	}
	if loaded[0].Metadata["time"] != "2024-05-01T12:00:00Z" {
		t.Fatalf("metadata lost: %v", loaded[0].Metadata)
	}
	if loaded[0].EventID != envelopes[0].EventID {
		t.Fatalf("event ID changed across reload")
	}
	if loaded[0].AggregateType != "account" {
		t.Fatalf("aggregate type lost: %q", loaded[0].AggregateType)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	store, path := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Append(ctx, "acc-1", "account", 0, []cqrs.Event{&credited{Balance: 1}}, nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	iter, err := reopened.Load(ctx, "acc-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	loaded, _ := iter.All(ctx)
	if len(loaded) != 1 {
		t.Fatalf("expected 1 envelope after reopen, got %d", len(loaded))
	}
}

func TestStore_LoadUnknownAggregateIsEmpty(t *testing.T) {
	store, _ := openTestStore(t)

	iter, err := store.Load(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unknown aggregate must not error, got %v", err)
	}
	if iter.Next(context.Background()) {
		t.Fatalf("expected empty iterator")
	}
}

func TestStore_VersionMismatch(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Append(ctx, "acc-1", "account", 0, []cqrs.Event{&credited{}}, nil); err != nil {
		t.Fatalf("append: %v", err)
	}

	_, err := store.Append(ctx, "acc-1", "account", 0, []cqrs.Event{&credited{}}, nil)

	var conflict *cqrs.ConcurrencyError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConcurrencyError, got %v", err)
	}
	if conflict.Expected != 0 || conflict.Actual != 1 {
		t.Fatalf("unexpected conflict: %+v", conflict)
	}

	// The failed batch must not have landed.
	iter, _ := store.Load(ctx, "acc-1")
	loaded, _ := iter.All(ctx)
	if len(loaded) != 1 {
		t.Fatalf("conflicting batch leaked into the log: %d envelopes", len(loaded))
	}
}

func TestStore_EmptyBatchIsNoop(t *testing.T) {
	store, _ := openTestStore(t)

	envelopes, err := store.Append(context.Background(), "acc-1", "account", 0, nil, nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if envelopes != nil {
		t.Fatalf("expected no envelopes")
	}
}
