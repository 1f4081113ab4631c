package cqrs

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
)

type queuedBatch struct {
	aggregateID string
	events      []Envelope
}

// AsyncQueryProcessor decorates a QueryProcessor so that dispatch happens on
// background workers instead of the appending goroutine. Batches are routed
// to a worker shard by an FNV hash of the aggregate ID, which preserves the
// ordering contract: within one aggregate, all dispatches for envelope N
// happen after all dispatches for envelope N-1 complete. No ordering is
// guaranteed across aggregates.
//
// Failures of the wrapped processor are reported on the Errors channel.
type AsyncQueryProcessor struct {
	next        QueryProcessor
	queues      []chan queuedBatch
	errs        chan error
	closeMu     sync.RWMutex
	closed      bool
	once        sync.Once
	wg          sync.WaitGroup
	dispatchers sync.WaitGroup
}

// NewAsyncQueryProcessor wraps next with sharded asynchronous delivery.
// bufferSize is the queue capacity per shard.
func NewAsyncQueryProcessor(next QueryProcessor, shardCount, bufferSize int) *AsyncQueryProcessor {
	if shardCount <= 0 {
		shardCount = 1
	}
	if bufferSize < 0 {
		bufferSize = 0
	}

	p := &AsyncQueryProcessor{
		next:   next,
		queues: make([]chan queuedBatch, shardCount),
		errs:   make(chan error, 64),
	}

	for i := 0; i < shardCount; i++ {
		p.queues[i] = make(chan queuedBatch, bufferSize)
		p.wg.Add(1)
		go p.run(p.queues[i])
	}

	return p
}

// ProcessorName implements QueryProcessor.
func (p *AsyncQueryProcessor) ProcessorName() string {
	return p.next.ProcessorName()
}

// Dispatch implements QueryProcessor. It enqueues the batch for its
// aggregate's shard and returns without waiting for delivery.
func (p *AsyncQueryProcessor) Dispatch(ctx context.Context, aggregateID string, events []Envelope) error {
	// Liveness check and wait-group registration under one lock: Close cannot
	// observe the wait group between the check and the Add, so the queues are
	// never closed under a pending enqueue.
	p.closeMu.RLock()
	if p.closed {
		p.closeMu.RUnlock()
		return errors.New("async processor is closed")
	}
	p.dispatchers.Add(1)
	p.closeMu.RUnlock()
	defer p.dispatchers.Done()

	select {
	case p.queues[p.getShard(aggregateID)] <- queuedBatch{aggregateID: aggregateID, events: events}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Errors returns the channel where asynchronous dispatch failures are sent.
// The channel is buffered; when full, further errors are dropped.
func (p *AsyncQueryProcessor) Errors() <-chan error {
	return p.errs
}

// Close stops accepting batches, drains the queues and waits for the workers
// to finish.
func (p *AsyncQueryProcessor) Close() error {
	p.once.Do(func() {
		p.closeMu.Lock()
		p.closed = true
		p.closeMu.Unlock()

		p.dispatchers.Wait()
		for _, q := range p.queues {
			close(q)
		}
		p.wg.Wait()
		close(p.errs)
	})
	return nil
}

func (p *AsyncQueryProcessor) run(queue chan queuedBatch) {
	defer p.wg.Done()

	for batch := range queue {
		if err := p.next.Dispatch(context.Background(), batch.aggregateID, batch.events); err != nil {
			select {
			case p.errs <- err:
			default:
				// Drop error if channel full
			}
		}
	}
}

func (p *AsyncQueryProcessor) getShard(aggregateID string) int {
	hash := fnv.New32a()
	hash.Write([]byte(aggregateID))
	return int(hash.Sum32()) % len(p.queues)
}
