package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "queries.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestStore_GetMissingReturnsNil(t *testing.T) {
	store, _ := openTestStore(t)

	state, sequence, err := store.Get(context.Background(), "account_query", "missing")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if state != nil || sequence != 0 {
		t.Fatalf("expected empty result, got %v seq %d", state, sequence)
	}
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "account_query", "acc-1", 3, []byte(`{"balance":400}`)); err != nil {
		t.Fatalf("put: %v", err)
	}

	state, sequence, err := store.Get(ctx, "account_query", "acc-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(state) != `{"balance":400}` || sequence != 3 {
		t.Fatalf("unexpected result: %s seq %d", state, sequence)
	}
}

func TestStore_UpsertReplacesState(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	store.Put(ctx, "account_query", "acc-1", 1, []byte(`{"balance":200}`))
	if err := store.Put(ctx, "account_query", "acc-1", 2, []byte(`{"balance":400}`)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	state, sequence, _ := store.Get(ctx, "account_query", "acc-1")
	if string(state) != `{"balance":400}` || sequence != 2 {
		t.Fatalf("old state survived: %s seq %d", state, sequence)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	store, path := openTestStore(t)
	ctx := context.Background()

	store.Put(ctx, "account_query", "acc-1", 7, []byte(`{"balance":100}`))
	store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	state, sequence, err := reopened.Get(ctx, "account_query", "acc-1")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if string(state) != `{"balance":100}` || sequence != 7 {
		t.Fatalf("state lost across reopen: %s seq %d", state, sequence)
	}
}
