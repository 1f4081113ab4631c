// Package sqlite provides a durable EventStore backed by SQLite.
//
// The log lives in a single events table keyed by (aggregate_id, sequence);
// the primary key doubles as a backstop for the optimistic concurrency
// check, and appends run in one transaction so a batch lands as a whole or
// not at all.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/terraskye/cqrs"
)

//go:embed schema.sql
var schemaSQL string

var now = time.Now

var _ cqrs.EventStore = (*Store)(nil)

type Store struct {
	db *sql.DB
}

// Open creates or opens the event log database at the given path.
//
// The database is configured with WAL mode for concurrent reads during
// writes, NORMAL synchronous mode, a 5-second busy timeout, and a
// single-writer connection pool. Safe to call multiple times on the same
// path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect event store: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY errors under contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply event store schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Load reads the whole stream in ascending sequence order and rehydrates
// each payload through the event registry. Unknown aggregate IDs yield an
// empty iterator.
func (s *Store) Load(ctx context.Context, aggregateID string) (*cqrs.Iterator[*cqrs.Envelope], error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT aggregate_id, aggregate_type, sequence, event_id, event_type, payload, metadata, occurred_at
		FROM events
		WHERE aggregate_id = ?
		ORDER BY sequence
	`, aggregateID)
	if err != nil {
		return nil, cqrs.WrapEventStoreError(fmt.Errorf("load stream %q: %w", aggregateID, err))
	}
	defer rows.Close()

	var envelopes []*cqrs.Envelope
	for rows.Next() {
		envelope, err := scanEnvelope(rows)
		if err != nil {
			return nil, cqrs.WrapEventStoreError(fmt.Errorf("load stream %q: %w", aggregateID, err))
		}
		envelopes = append(envelopes, envelope)
	}
	if err := rows.Err(); err != nil {
		return nil, cqrs.WrapEventStoreError(fmt.Errorf("load stream %q: %w", aggregateID, err))
	}

	return cqrs.NewSliceIterator(envelopes), nil
}

// Append runs the expected-version check and the multi-row insert in a
// single transaction.
func (s *Store) Append(ctx context.Context, aggregateID, aggregateType string, expectedVersion uint64, events []cqrs.Event, metadata map[string]string) ([]cqrs.Envelope, error) {
	if len(events) == 0 {
		return nil, nil
	}
	if metadata == nil {
		metadata = map[string]string{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, cqrs.WrapEventStoreError(fmt.Errorf("append to stream %q: begin tx: %w", aggregateID, err))
	}
	defer tx.Rollback() // No-op if committed

	var currentVersion uint64
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE aggregate_id = ?`, aggregateID,
	).Scan(&currentVersion); err != nil {
		return nil, cqrs.WrapEventStoreError(fmt.Errorf("append to stream %q: count: %w", aggregateID, err))
	}

	if currentVersion != expectedVersion {
		return nil, &cqrs.ConcurrencyError{
			AggregateID: aggregateID,
			Expected:    expectedVersion,
			Actual:      currentVersion,
		}
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, cqrs.WrapEventStoreError(fmt.Errorf("append to stream %q: encode metadata: %w", aggregateID, err))
	}

	envelopes := make([]cqrs.Envelope, len(events))
	for i, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
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

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO events
			(aggregate_id, aggregate_type, sequence, event_id, event_type, payload, metadata, occurred_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			aggregateID,
			aggregateType,
			envelopes[i].Sequence,
			envelopes[i].EventID.String(),
			event.EventType(),
			string(payload),
			string(metadataJSON),
			envelopes[i].OccurredAt.Format(time.RFC3339Nano),
		); err != nil {
			return nil, cqrs.WrapEventStoreError(fmt.Errorf("append to stream %q: insert sequence %d: %w", aggregateID, envelopes[i].Sequence, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, cqrs.WrapEventStoreError(fmt.Errorf("append to stream %q: commit: %w", aggregateID, err))
	}

	return envelopes, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanEnvelope(rows *sql.Rows) (*cqrs.Envelope, error) {
	var (
		envelope     cqrs.Envelope
		eventID      string
		eventType    string
		payload      string
		metadataJSON string
		occurredAt   string
	)

	if err := rows.Scan(
		&envelope.AggregateID,
		&envelope.AggregateType,
		&envelope.Sequence,
		&eventID,
		&eventType,
		&payload,
		&metadataJSON,
		&occurredAt,
	); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(eventID)
	if err != nil {
		return nil, fmt.Errorf("parse event id %q: %w", eventID, err)
	}
	envelope.EventID = id

	event, err := cqrs.NewEventByName(eventType)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), event); err != nil {
		return nil, fmt.Errorf("decode event %q: %w", eventType, err)
	}
	envelope.Event = event

	if err := json.Unmarshal([]byte(metadataJSON), &envelope.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, occurredAt)
	if err != nil {
		return nil, fmt.Errorf("parse occurred_at %q: %w", occurredAt, err)
	}
	envelope.OccurredAt = ts

	return &envelope, nil
}
