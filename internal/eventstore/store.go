// Package eventstore records build events in SQLite and folds them into a
// build history.
package eventstore

import (
	"context"
	"time"
)

// Store persists and retrieves build events.
type Store interface {
	Append(ctx context.Context, buildID, eventType string, payload []byte, metadata map[string]string) error
	GetByBuildID(ctx context.Context, buildID string) ([]Event, error)
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)
	Close() error
}
