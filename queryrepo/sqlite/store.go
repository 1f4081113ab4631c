// Package sqlite provides a durable ProjectionStore backed by SQLite.
// Projections are rebuildable, so the table is simply the latest serialized
// state per (query_name, aggregate_id) with the last applied sequence.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/terraskye/cqrs"
)

//go:embed schema.sql
var schemaSQL string

var _ cqrs.ProjectionStore = (*Store)(nil)

type Store struct {
	db *sql.DB
}

// Open creates or opens the projection database at the given path, applying
// the same pragmas as the event store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open projection store: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect projection store: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply projection schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Get implements ProjectionStore.
func (s *Store) Get(ctx context.Context, queryName, aggregateID string) ([]byte, uint64, error) {
	var (
		state    []byte
		sequence uint64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT state, sequence FROM projections
		WHERE query_name = ? AND aggregate_id = ?
	`, queryName, aggregateID).Scan(&state, &sequence)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("get projection %q/%q: %w", queryName, aggregateID, err)
	}
	return state, sequence, nil
}

// Put implements ProjectionStore.
func (s *Store) Put(ctx context.Context, queryName, aggregateID string, sequence uint64, state []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projections (query_name, aggregate_id, sequence, state)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (query_name, aggregate_id)
		DO UPDATE SET sequence = excluded.sequence, state = excluded.state
	`, queryName, aggregateID, sequence, state)
	if err != nil {
		return fmt.Errorf("put projection %q/%q: %w", queryName, aggregateID, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
