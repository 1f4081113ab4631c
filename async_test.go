package cqrs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// orderedProcessor records per-aggregate sequences to verify ordering.
type orderedProcessor struct {
	mu        sync.Mutex
	sequences map[string][]uint64
	err       error
}

func newOrderedProcessor() *orderedProcessor {
	return &orderedProcessor{sequences: make(map[string][]uint64)}
}

func (p *orderedProcessor) ProcessorName() string { return "ordered" }

func (p *orderedProcessor) Dispatch(ctx context.Context, aggregateID string, events []Envelope) error {
	p.mu.Lock()
	for i := range events {
		p.sequences[aggregateID] = append(p.sequences[aggregateID], events[i].Sequence)
	}
	p.mu.Unlock()
	return p.err
}

func TestAsyncQueryProcessor_DeliversBatches(t *testing.T) {
	inner := newOrderedProcessor()
	async := NewAsyncQueryProcessor(inner, 4, 16)

	if err := async.Dispatch(context.Background(), "c1", batchOf("c1", 1,
		&incremented{Delta: 1, Total: 1},
	)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	async.Close()

	if got := inner.sequences["c1"]; len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected [1], got %v", got)
	}
}

func TestAsyncQueryProcessor_OrderingWithinAggregate(t *testing.T) {
	inner := newOrderedProcessor()
	async := NewAsyncQueryProcessor(inner, 4, 64)
	ctx := context.Background()

	for i := uint64(1); i <= 50; i++ {
		if err := async.Dispatch(ctx, "c1", batchOf("c1", i, &incremented{})); err != nil {
			t.Fatalf("dispatch %d: %v", i, err)
		}
	}

	async.Close()

	got := inner.sequences["c1"]
	if len(got) != 50 {
		t.Fatalf("expected 50 envelopes, got %d", len(got))
	}
	for i, seq := range got {
		if seq != uint64(i)+1 {
			t.Fatalf("out-of-order delivery at %d: %v", i, got)
		}
	}
}

func TestAsyncQueryProcessor_ErrorsSurfaceOnChannel(t *testing.T) {
	inner := newOrderedProcessor()
	inner.err = errors.New("projection failed")
	async := NewAsyncQueryProcessor(inner, 1, 1)

	if err := async.Dispatch(context.Background(), "c1", batchOf("c1", 1, &incremented{})); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	select {
	case err := <-async.Errors():
		if !errors.Is(err, inner.err) {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for async error")
	}

	async.Close()
}

func TestAsyncQueryProcessor_DispatchAfterCloseFails(t *testing.T) {
	async := NewAsyncQueryProcessor(newOrderedProcessor(), 1, 1)
	async.Close()

	if err := async.Dispatch(context.Background(), "c1", nil); err == nil {
		t.Fatalf("expected error dispatching on a closed processor")
	}
}

func TestAsyncQueryProcessor_ConcurrentDispatchAndClose(t *testing.T) {
	// Closing while dispatchers are racing the liveness check must never
	// send on a closed shard queue. Dispatches either enqueue or report the
	// closed processor.
	async := NewAsyncQueryProcessor(newOrderedProcessor(), 4, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			async.Dispatch(context.Background(), "c1", batchOf("c1", uint64(i)+1, &incremented{}))
		}(i)
	}
	async.Close()
	wg.Wait()
}

func TestAsyncQueryProcessor_ProcessorName(t *testing.T) {
	async := NewAsyncQueryProcessor(newOrderedProcessor(), 1, 1)
	defer async.Close()

	if async.ProcessorName() != "ordered" {
		t.Fatalf("unexpected name: %q", async.ProcessorName())
	}
}
