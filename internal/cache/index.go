package cache

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one row of the cache index.
type Entry struct {
	Key      string
	OutDir   string
	Files    int
	Bytes    int64
	Created  time.Time
	LastUsed time.Time
}

// Index is an advisory SQLite listing of cached keys. Manifests stay
// authoritative; the index only serves listing and pruning.
type Index struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenIndex opens or creates the index. Use ":memory:" in tests.
func OpenIndex(dbPath string) (*Index, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	idx := &Index{db: db}
	if err := idx.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return idx, nil
}

func (i *Index) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		cache_key TEXT PRIMARY KEY,
		out_dir TEXT NOT NULL,
		files INTEGER NOT NULL DEFAULT 0,
		bytes INTEGER NOT NULL DEFAULT 0,
		created INTEGER NOT NULL,
		last_used INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_last_used ON entries(last_used);
	`
	_, err := i.db.Exec(schema)
	return err
}

// Record upserts a manifest's row.
func (i *Index) Record(ctx context.Context, m *Manifest) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	now := time.Now().UnixMilli()
	_, err := i.db.ExecContext(ctx, `
		INSERT INTO entries (cache_key, out_dir, files, created, last_used) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET out_dir = excluded.out_dir, files = excluded.files,
			created = excluded.created, last_used = excluded.last_used`,
		m.Key, m.OutDir, len(m.Files), m.Created, now,
	)
	if err != nil {
		return fmt.Errorf("record entry: %w", err)
	}
	return nil
}

// AddBytes accumulates stored artifact size for key.
func (i *Index) AddBytes(ctx context.Context, key string, n int64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, err := i.db.ExecContext(ctx, "UPDATE entries SET bytes = bytes + ? WHERE cache_key = ?", n, key); err != nil {
		return fmt.Errorf("update size: %w", err)
	}
	return nil
}

// Touch marks key as used now.
func (i *Index) Touch(ctx context.Context, key string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, err := i.db.ExecContext(ctx, "UPDATE entries SET last_used = ? WHERE cache_key = ?", time.Now().UnixMilli(), key); err != nil {
		return fmt.Errorf("touch entry: %w", err)
	}
	return nil
}

// List returns every entry, most recently used first.
func (i *Index) List(ctx context.Context) ([]Entry, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	rows, err := i.db.QueryContext(ctx,
		"SELECT cache_key, out_dir, files, bytes, created, last_used FROM entries ORDER BY last_used DESC, cache_key")
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created, lastUsed int64
		if err := rows.Scan(&e.Key, &e.OutDir, &e.Files, &e.Bytes, &created, &lastUsed); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Created = time.UnixMilli(created)
		e.LastUsed = time.UnixMilli(lastUsed)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return entries, nil
}

// Stale returns keys whose last use is before cutoff.
func (i *Index) Stale(ctx context.Context, cutoff time.Time) ([]string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	rows, err := i.db.QueryContext(ctx, "SELECT cache_key FROM entries WHERE last_used < ? ORDER BY cache_key", cutoff.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query stale entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Delete removes key from the index.
func (i *Index) Delete(ctx context.Context, key string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, err := i.db.ExecContext(ctx, "DELETE FROM entries WHERE cache_key = ?", key); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.db.Close()
}
