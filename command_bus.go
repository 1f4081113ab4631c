package cqrs

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
)

// queuedCommand represents a command enqueued in the command bus for
// processing, together with the context for cancellation and a response
// channel to return the execution result.
type queuedCommand[A Aggregate] struct {
	Ctx         context.Context
	AggregateID string
	Command     Command[A]
	Metadata    map[string]string
	ResponseCh  chan<- error
}

// CommandBus is an in-memory dispatcher that serializes command execution
// per aggregate: commands are routed to a worker shard by an FNV hash of the
// aggregate ID, so two commands for the same aggregate never race on the
// store's expected-version check, while different aggregates proceed in
// parallel.
//
// The bus supports:
//   - Enqueuing commands for processing with a bounded queue per shard
//   - Safe shutdown that waits for in-flight commands to complete
//   - Panic recovery so a misbehaving command cannot crash the bus
type CommandBus[A Aggregate] struct {
	executor   Executor[A]
	queues     []chan queuedCommand[A]
	stopMu     sync.RWMutex
	stopped    bool
	stopOnce   sync.Once
	wg         sync.WaitGroup
	shardCount int
}

// NewCommandBus creates a CommandBus delegating to the given executor,
// typically an Engine wrapped in its decorators.
//
// bufferSize is the queue capacity per shard; shardCount the number of
// worker goroutines. The workers are started immediately.
func NewCommandBus[A Aggregate](executor Executor[A], bufferSize, shardCount int) *CommandBus[A] {
	if shardCount <= 0 {
		shardCount = 1
	}
	if bufferSize < 0 {
		bufferSize = 0
	}

	bus := &CommandBus[A]{
		executor:   executor,
		queues:     make([]chan queuedCommand[A], shardCount),
		shardCount: shardCount,
	}

	for i := 0; i < shardCount; i++ {
		bus.queues[i] = make(chan queuedCommand[A], bufferSize)
		go bus.worker(bus.queues[i])
	}

	return bus
}

// Dispatch enqueues a command for its aggregate's shard and waits for the
// result. It is safe to call concurrently.
func (b *CommandBus[A]) Dispatch(ctx context.Context, aggregateID string, command Command[A]) error {
	return b.DispatchWithMetadata(ctx, aggregateID, command, nil)
}

// DispatchWithMetadata enqueues a command with envelope metadata and waits
// for the result. Returns an error immediately if the bus has been stopped,
// and the context error if the caller gives up before the command ran.
func (b *CommandBus[A]) DispatchWithMetadata(ctx context.Context, aggregateID string, command Command[A], metadata map[string]string) error {
	// The liveness check and the wait-group registration happen under one
	// lock, so Stop cannot slip between them and close the queues while this
	// dispatch is still about to enqueue.
	b.stopMu.RLock()
	if b.stopped {
		b.stopMu.RUnlock()
		return fmt.Errorf("command bus is stopped")
	}
	b.wg.Add(1)
	b.stopMu.RUnlock()
	defer b.wg.Done()

	responseCh := make(chan error, 1)

	shard := b.getShard(aggregateID)

	select {
	case b.queues[shard] <- queuedCommand[A]{Ctx: ctx, AggregateID: aggregateID, Command: command, Metadata: metadata, ResponseCh: responseCh}:
		select {
		case err := <-responseCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// worker processes commands from a single shard queue.
func (b *CommandBus[A]) worker(queue chan queuedCommand[A]) {
	for cmd := range queue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					cmd.ResponseCh <- fmt.Errorf("panic executing command %T: %v", cmd.Command, r)
				}
			}()

			cmd.ResponseCh <- b.executor.ExecuteWithMetadata(cmd.Ctx, cmd.AggregateID, cmd.Command, cmd.Metadata)
		}()
	}
}

func (b *CommandBus[A]) getShard(aggregateID string) int {
	hash := fnv.New32a()
	hash.Write([]byte(aggregateID))
	return int(hash.Sum32()) % b.shardCount
}

// Stop shuts down the bus: it stops accepting new commands, waits for all
// in-flight commands to finish and closes the shard queues.
func (b *CommandBus[A]) Stop() {
	b.stopOnce.Do(func() {
		b.stopMu.Lock()
		b.stopped = true
		b.stopMu.Unlock()

		b.wg.Wait()
		for _, q := range b.queues {
			close(q)
		}
	})
}
