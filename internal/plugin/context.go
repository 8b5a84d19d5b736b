package plugin

import (
	"log/slog"
	"time"
)

// BuildInfo is the read-only view of a build handed to lifecycle hooks.
type BuildInfo struct {
	BuildID   string
	Mode      string
	Root      string
	OutDir    string
	StartedAt time.Time
	Files     []string
	CacheHit  bool
	Logger    *slog.Logger
}

// Fields renders the info as a plain map for sandboxed hooks.
func (b BuildInfo) Fields() map[string]any {
	files := b.Files
	if files == nil {
		files = []string{}
	}
	return map[string]any{
		"buildId":   b.BuildID,
		"mode":      b.Mode,
		"root":      b.Root,
		"outDir":    b.OutDir,
		"startedAt": b.StartedAt.UnixMilli(),
		"files":     files,
		"cacheHit":  b.CacheHit,
	}
}
