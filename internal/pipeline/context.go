package pipeline

import (
	"log/slog"
	"time"

	"git.home.luguber.info/inful/nextgen/internal/bundler"
	"git.home.luguber.info/inful/nextgen/internal/cache"
	"git.home.luguber.info/inful/nextgen/internal/config"
	"git.home.luguber.info/inful/nextgen/internal/metrics"
	"git.home.luguber.info/inful/nextgen/internal/plugin"
)

// Context is the mutable state of one build. It is owned by a single
// Execute call and must not be reused.
type Context struct {
	Config  *config.Config
	Plugins *plugin.Manager
	// Cache is nil when caching is disabled.
	Cache    *cache.DiskCache
	Backend  bundler.Backend
	Logger   *slog.Logger
	Recorder metrics.Recorder

	BuildID     string
	StartedAt   time.Time
	EntryPoints map[string]string
	Files       []string
	Artifacts   []string
	CacheKey    string
	CacheHit    bool
	CacheTier   cache.Tier
	Optimized   int
}

// BuildInfo returns the view handed to plugin lifecycle hooks.
func (c *Context) BuildInfo() plugin.BuildInfo {
	return plugin.BuildInfo{
		BuildID:   c.BuildID,
		Mode:      string(c.Config.Mode),
		Root:      c.Config.Root,
		OutDir:    c.Config.OutPath(),
		StartedAt: c.StartedAt,
		Files:     c.Files,
		CacheHit:  c.CacheHit,
		Logger:    c.Logger,
	}
}

func (c *Context) recorder() metrics.Recorder {
	if c.Recorder == nil {
		return metrics.NoopRecorder{}
	}
	return c.Recorder
}
