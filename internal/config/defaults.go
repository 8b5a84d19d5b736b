package config

import (
	"path/filepath"
	"time"
)

// Default values applied to unset fields.
const (
	DefaultEntry          = "src/main.tsx"
	DefaultOutDir         = "build_output"
	DefaultCacheDir       = ".nextgen_cache"
	DefaultPluginDir      = "src/plugins"
	DefaultSubject        = "nextgen.builds"
	DefaultSandboxTimeout = 30 * time.Second
	DefaultRemoteTimeout  = 10 * time.Second
	DefaultRemoteRetries  = 1
	DefaultDebounce       = 300 * time.Millisecond
	DefaultPruneInterval  = time.Hour
	DefaultPruneOlderThan = 7 * 24 * time.Hour
	DefaultCommits        = 5
)

// Default returns a configuration rooted at root with every default applied.
func Default(root string) *Config {
	cfg := &Config{Root: root}
	applyDefaults(cfg, "")
	return cfg
}

// applyDefaults fills unset fields. baseDir anchors a relative Root.
func applyDefaults(cfg *Config, baseDir string) {
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if !filepath.IsAbs(cfg.Root) && baseDir != "" {
		cfg.Root = filepath.Join(baseDir, cfg.Root)
	}
	if abs, err := filepath.Abs(cfg.Root); err == nil {
		cfg.Root = abs
	}
	if len(cfg.Entry) == 0 {
		cfg.Entry = []string{DefaultEntry}
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeDevelopment
	}
	if cfg.OutDir == "" {
		cfg.OutDir = DefaultOutDir
	}

	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = DefaultCacheDir
	}
	if cfg.Cache.PluginDir == "" {
		cfg.Cache.PluginDir = DefaultPluginDir
	}
	if cfg.Cache.Remote.Timeout == 0 {
		cfg.Cache.Remote.Timeout = DefaultRemoteTimeout
	}
	if cfg.Cache.Remote.Retries == nil {
		n := DefaultRemoteRetries
		cfg.Cache.Remote.Retries = &n
	}

	if cfg.Sandbox.Timeout == 0 {
		cfg.Sandbox.Timeout = DefaultSandboxTimeout
	}
	if cfg.Report.Commits == 0 {
		cfg.Report.Commits = DefaultCommits
	}
	if cfg.Events.Subject == "" {
		cfg.Events.Subject = DefaultSubject
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = DefaultDebounce
	}
	if cfg.Watch.PruneInterval == 0 {
		cfg.Watch.PruneInterval = DefaultPruneInterval
	}
	if cfg.Watch.PruneOlderThan == 0 {
		cfg.Watch.PruneOlderThan = DefaultPruneOlderThan
	}
}
