package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/nextgen/internal/foundation/errors"
)

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens or creates the event database at dbPath.
// Use ":memory:" for a throwaway store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, storeError("could not create event store directory", err).WithContext("path", dbPath).Build()
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, storeError("could not open event store database", err).WithContext("path", dbPath).Build()
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, storeError("failed to initialize event store schema", err).Build()
	}
	return s, nil
}

func storeError(msg string, cause error) *errors.ErrorBuilder {
	return errors.EventStoreError(msg).WithCause(cause)
}

func (s *SQLiteStore) initialize() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS build_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		ts_ms INTEGER NOT NULL,
		payload BLOB NOT NULL,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_build_events_build ON build_events(build_id);
	CREATE INDEX IF NOT EXISTS idx_build_events_ts ON build_events(ts_ms);
	`)
	return err
}

// Append records one event stamped with the current time.
func (s *SQLiteStore) Append(ctx context.Context, buildID, eventType string, payload []byte, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var meta []byte
	if len(metadata) > 0 {
		var err error
		if meta, err = json.Marshal(metadata); err != nil {
			return storeError("failed to marshal event metadata", err).Build()
		}
	}
	if payload == nil {
		payload = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO build_events (build_id, event_type, ts_ms, payload, metadata) VALUES (?, ?, ?, ?, ?)",
		buildID, eventType, time.Now().UnixMilli(), payload, meta,
	)
	if err != nil {
		return storeError("failed to append event to store", err).
			WithContext("build_id", buildID).
			WithContext("event_type", eventType).
			Build()
	}
	return nil
}

// GetByBuildID returns a build's events in append order.
func (s *SQLiteStore) GetByBuildID(ctx context.Context, buildID string) ([]Event, error) {
	return s.query(ctx,
		"SELECT id, build_id, event_type, ts_ms, payload, metadata FROM build_events WHERE build_id = ? ORDER BY id",
		buildID)
}

// GetRange returns events with start <= timestamp <= end in append order.
func (s *SQLiteStore) GetRange(ctx context.Context, start, end time.Time) ([]Event, error) {
	return s.query(ctx,
		"SELECT id, build_id, event_type, ts_ms, payload, metadata FROM build_events WHERE ts_ms >= ? AND ts_ms <= ? ORDER BY id",
		start.UnixMilli(), end.UnixMilli())
}

// DeleteBefore removes events older than cutoff and returns how many went.
func (s *SQLiteStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, "DELETE FROM build_events WHERE ts_ms < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, storeError("failed to delete events", err).Build()
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storeError("failed to query events from store", err).Build()
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var (
			e    BaseEvent
			ts   int64
			meta []byte
		)
		if err := rows.Scan(&e.EventID, &e.EventBuildID, &e.EventType, &ts, &e.EventPayload, &meta); err != nil {
			return nil, storeError("failed to scan event rows", err).Build()
		}
		e.EventTimestamp = time.UnixMilli(ts)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.EventMetadata); err != nil {
				return nil, storeError("failed to unmarshal event metadata", err).Build()
			}
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("failed to iterate event rows", err).Build()
	}
	return events, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
