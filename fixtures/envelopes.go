package fixtures

import (
	"time"

	"github.com/google/uuid"
	"github.com/terraskye/cqrs"
)

// EnvelopesFromEvents wraps events in envelopes with sequences starting at 1,
// the way a store would have recorded them.
func EnvelopesFromEvents(aggregateID, aggregateType string, events ...cqrs.Event) []*cqrs.Envelope {
	envelopes := make([]*cqrs.Envelope, len(events))
	for i, event := range events {
		envelopes[i] = &cqrs.Envelope{
			EventID:       uuid.New(),
			AggregateID:   aggregateID,
			AggregateType: aggregateType,
			Sequence:      uint64(i) + 1,
			Event:         event,
			Metadata:      map[string]string{},
			OccurredAt:    time.Now().UTC(),
		}
	}
	return envelopes
}
