// Package disk provides a file-per-event EventStore for demos and local
// tooling. Every aggregate gets its own directory; each event is one JSON
// file named after its zero-padded sequence, so a directory listing is the
// stream in order and the file count is the current version.
//
// The store guards against concurrent writers via the expected-version check
// under a process-local lock; it does not claim crash atomicity across a
// multi-event batch.
package disk

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/terraskye/cqrs"
)

var now = time.Now

var _ cqrs.EventStore = (*Store)(nil)

type storedEvent struct {
	EventID       uuid.UUID         `json:"event_id"`
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	Sequence      uint64            `json:"sequence"`
	EventType     string            `json:"event_type"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

type Store struct {
	baseDir string
	mu      sync.Mutex
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create event store dir: %w", err)
	}
	return &Store{baseDir: dir}, nil
}

func (s *Store) streamDir(aggregateID string) string {
	return filepath.Join(s.baseDir, aggregateID)
}

// Load reads and decodes every event file of the stream in name order.
// A missing stream directory yields an empty iterator.
func (s *Store) Load(ctx context.Context, aggregateID string) (*cqrs.Iterator[*cqrs.Envelope], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.streamDir(aggregateID))
	if err != nil {
		if os.IsNotExist(err) {
			return cqrs.NewSliceIterator[*cqrs.Envelope](nil), nil
		}
		return nil, cqrs.WrapEventStoreError(fmt.Errorf("load stream %q: %w", aggregateID, err))
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	// Zero-padded sequences sort lexically in stream order.
	sort.Strings(names)

	envelopes := make([]*cqrs.Envelope, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.streamDir(aggregateID), name))
		if err != nil {
			return nil, cqrs.WrapEventStoreError(fmt.Errorf("load stream %q: read %s: %w", aggregateID, name, err))
		}

		var stored storedEvent
		if err := json.Unmarshal(data, &stored); err != nil {
			return nil, cqrs.WrapEventStoreError(fmt.Errorf("load stream %q: decode %s: %w", aggregateID, name, err))
		}

		event, err := cqrs.NewEventByName(stored.EventType)
		if err != nil {
			return nil, cqrs.WrapEventStoreError(fmt.Errorf("load stream %q: %w", aggregateID, err))
		}
		if err := json.Unmarshal(stored.Data, event); err != nil {
			return nil, cqrs.WrapEventStoreError(fmt.Errorf("load stream %q: decode event %q: %w", aggregateID, stored.EventType, err))
		}

		envelopes = append(envelopes, &cqrs.Envelope{
			EventID:       stored.EventID,
			AggregateID:   stored.AggregateID,
			AggregateType: stored.AggregateType,
			Sequence:      stored.Sequence,
			Event:         event,
			Metadata:      stored.Metadata,
			OccurredAt:    stored.OccurredAt,
		})
	}

	return cqrs.NewSliceIterator(envelopes), nil
}

// Append checks the expected version against the stream's file count and
// writes one file per event. If a write fails midway, the already written
// files of the batch are removed before returning.
func (s *Store) Append(ctx context.Context, aggregateID, aggregateType string, expectedVersion uint64, events []cqrs.Event, metadata map[string]string) ([]cqrs.Envelope, error) {
	if len(events) == 0 {
		return nil, nil
	}
	if metadata == nil {
		metadata = map[string]string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sdir := s.streamDir(aggregateID)
	if err := os.MkdirAll(sdir, 0o755); err != nil {
		return nil, cqrs.WrapEventStoreError(fmt.Errorf("append to stream %q: %w", aggregateID, err))
	}

	entries, err := os.ReadDir(sdir)
	if err != nil {
		return nil, cqrs.WrapEventStoreError(fmt.Errorf("append to stream %q: %w", aggregateID, err))
	}

	currentVersion := uint64(len(entries))
	if currentVersion != expectedVersion {
		return nil, &cqrs.ConcurrencyError{
			AggregateID: aggregateID,
			Expected:    expectedVersion,
			Actual:      currentVersion,
		}
	}

	envelopes := make([]cqrs.Envelope, len(events))
	var written []string

	cleanup := func() {
		for _, path := range written {
			os.Remove(path)
		}
	}

	for i, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			cleanup()
			return nil, cqrs.WrapEventStoreError(fmt.Errorf("append to stream %q: encode event %q: %w", aggregateID, event.EventType(), err))
		}

		envelopes[i] = cqrs.Envelope{
			EventID:       uuid.New(),
			AggregateID:   aggregateID,
			AggregateType: aggregateType,
			Sequence:      expectedVersion + uint64(i) + 1,
			Event:         event,
			Metadata:      metadata,
			OccurredAt:    now().UTC(),
		}

		stored := storedEvent{
			EventID:       envelopes[i].EventID,
			AggregateID:   aggregateID,
			AggregateType: aggregateType,
			Sequence:      envelopes[i].Sequence,
			EventType:     event.EventType(),
			Data:          data,
			Metadata:      metadata,
			OccurredAt:    envelopes[i].OccurredAt,
		}

		serialized, err := json.Marshal(stored)
		if err != nil {
			cleanup()
			return nil, cqrs.WrapEventStoreError(fmt.Errorf("append to stream %q: encode envelope %d: %w", aggregateID, stored.Sequence, err))
		}

		path := filepath.Join(sdir, fmt.Sprintf("%010d-%s.json", stored.Sequence, stored.EventType))
		if err := os.WriteFile(path, serialized, 0o644); err != nil {
			cleanup()
			return nil, cqrs.WrapEventStoreError(fmt.Errorf("append to stream %q: write sequence %d: %w", aggregateID, stored.Sequence, err))
		}
		written = append(written, path)
	}

	return envelopes, nil
}

// Close is a no-op; the store holds no open handles between calls.
func (s *Store) Close() error {
	return nil
}
