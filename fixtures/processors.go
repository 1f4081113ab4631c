package fixtures

import (
	"context"
	"sync"

	"github.com/terraskye/cqrs"
)

// ProcessorSpy is a configurable mock QueryProcessor for testing.
// It records every dispatched batch and allows injecting failures.
type ProcessorSpy struct {
	mu sync.Mutex

	// Function override
	DispatchFn func(ctx context.Context, aggregateID string, events []cqrs.Envelope) error

	// Call tracking
	DispatchCalls int

	// Captured batches in dispatch order
	Batches [][]cqrs.Envelope

	name        string
	dispatchErr error
}

// NewProcessorSpy creates a ProcessorSpy with the given name.
func NewProcessorSpy(name string) *ProcessorSpy {
	return &ProcessorSpy{name: name}
}

// FailOnDispatch configures the processor to return an error on Dispatch.
func (p *ProcessorSpy) FailOnDispatch(err error) *ProcessorSpy {
	p.dispatchErr = err
	return p
}

// ProcessorName implements QueryProcessor.
func (p *ProcessorSpy) ProcessorName() string {
	return p.name
}

// Dispatch implements QueryProcessor.
func (p *ProcessorSpy) Dispatch(ctx context.Context, aggregateID string, events []cqrs.Envelope) error {
	p.mu.Lock()
	p.DispatchCalls++
	p.Batches = append(p.Batches, events)
	p.mu.Unlock()

	if p.DispatchFn != nil {
		return p.DispatchFn(ctx, aggregateID, events)
	}
	return p.dispatchErr
}

// Events returns all dispatched envelopes flattened in order.
func (p *ProcessorSpy) Events() []cqrs.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()

	var all []cqrs.Envelope
	for _, batch := range p.Batches {
		all = append(all, batch...)
	}
	return all
}

// Reset clears all call counts and captured batches.
func (p *ProcessorSpy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.DispatchCalls = 0
	p.Batches = nil
	p.dispatchErr = nil
}

// PanickingProcessor returns a ProcessorSpy that panics on every dispatch.
func PanickingProcessor(name string) *ProcessorSpy {
	p := NewProcessorSpy(name)
	p.DispatchFn = func(ctx context.Context, aggregateID string, events []cqrs.Envelope) error {
		panic("processor panic: " + name)
	}
	return p
}
