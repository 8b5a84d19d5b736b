package cache

import (
	"fmt"
	"regexp"
	"time"
)

// Manifest is the authoritative record of one key's artifacts.
type Manifest struct {
	Key     string   `json:"key"`
	OutDir  string   `json:"outDir"`
	Files   []string `json:"files"`
	Created int64    `json:"created"` // epoch milliseconds
}

// NewManifest stamps a manifest with the current time.
func NewManifest(key, outDir string, files []string) *Manifest {
	return &Manifest{Key: key, OutDir: outDir, Files: files, Created: time.Now().UnixMilli()}
}

// CreatedAt returns Created as a time.
func (m *Manifest) CreatedAt() time.Time {
	return time.UnixMilli(m.Created)
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateKey rejects keys that cannot be used as a single path segment.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("invalid cache key %q", key)
	}
	return nil
}
