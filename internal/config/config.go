// Package config loads the build configuration file.
package config

import (
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/nextgen/internal/permissions"
	"git.home.luguber.info/inful/nextgen/internal/retry"
)

// Mode selects build behaviour.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
	ModeTest        Mode = "test"
)

// IsValid returns true if the mode is recognized.
func (m Mode) IsValid() bool {
	switch m {
	case ModeDevelopment, ModeProduction, ModeTest:
		return true
	default:
		return false
	}
}

// Config is the root configuration document.
type Config struct {
	Root    string         `yaml:"root"`
	Entry   []string       `yaml:"entry"`
	Mode    Mode           `yaml:"mode"`
	OutDir  string         `yaml:"outDir"`
	Plugins []PluginConfig `yaml:"plugins"`
	Cache   CacheConfig    `yaml:"cache"`
	Sandbox SandboxConfig  `yaml:"sandbox"`
	Report  ReportConfig   `yaml:"report"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Events  EventsConfig   `yaml:"events"`
	Watch   WatchConfig    `yaml:"watch"`

	// File is the path the configuration was read from; empty for defaults.
	File string `yaml:"-"`
}

// PluginConfig enables a builtin by Name or loads sandboxed JavaScript from Source.
type PluginConfig struct {
	Name        string          `yaml:"name"`
	Source      string          `yaml:"source"`
	Options     map[string]any  `yaml:"options"`
	Permissions permissions.Set `yaml:"permissions"`
}

// CacheConfig configures the build cache.
type CacheConfig struct {
	Enabled   *bool             `yaml:"enabled"`
	Dir       string            `yaml:"dir"`
	PluginDir string            `yaml:"pluginDir"`
	Remote    RemoteCacheConfig `yaml:"remote"`
}

// RemoteCacheConfig configures the HTTP cache tier.
type RemoteCacheConfig struct {
	URL       string        `yaml:"url"`
	Token     string        `yaml:"token"`
	Timeout   time.Duration `yaml:"timeout"`
	Retries   *int          `yaml:"retries"`
	RetryMode string        `yaml:"retryMode"`
}

// SandboxConfig bounds sandboxed plugin execution.
type SandboxConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	StrictPaths bool          `yaml:"strictPaths"`
}

// ReportConfig controls build-report.json and changelog generation.
type ReportConfig struct {
	Enabled   *bool `yaml:"enabled"`
	Changelog *bool `yaml:"changelog"`
	HTML      bool  `yaml:"html"`
	Commits   int   `yaml:"commits"`
}

// MetricsConfig configures the Prometheus listener used in watch mode.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// EventsConfig configures build event publishing and history.
type EventsConfig struct {
	NATSURL   string `yaml:"natsUrl"`
	Subject   string `yaml:"subject"`
	HistoryDB string `yaml:"historyDb"`
}

// WatchConfig configures the rebuild loop.
type WatchConfig struct {
	Debounce       time.Duration `yaml:"debounce"`
	PruneInterval  time.Duration `yaml:"pruneInterval"`
	PruneOlderThan time.Duration `yaml:"pruneOlderThan"`
}

func enabled(b *bool) bool { return b == nil || *b }

// CacheEnabled reports whether the build cache is on (default true).
func (c *Config) CacheEnabled() bool { return enabled(c.Cache.Enabled) }

// ReportEnabled reports whether build-report.json is written (default true).
func (c *Config) ReportEnabled() bool { return enabled(c.Report.Enabled) }

// ChangelogEnabled reports whether changelog.md is written (default true).
func (c *Config) ChangelogEnabled() bool { return c.ReportEnabled() && enabled(c.Report.Changelog) }

// Resolve joins a config-relative path onto Root.
func (c *Config) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Root, p)
}

// OutPath returns the absolute output directory.
func (c *Config) OutPath() string { return c.Resolve(c.OutDir) }

// CachePath returns the absolute cache directory.
func (c *Config) CachePath() string { return c.Resolve(c.Cache.Dir) }

// HistoryPath returns the absolute build history database path.
func (c *Config) HistoryPath() string {
	if c.Events.HistoryDB == "" {
		return ""
	}
	return c.Resolve(c.Events.HistoryDB)
}

// Containment maps StrictPaths onto the permission matching mode.
func (c *Config) Containment() permissions.Containment {
	if c.Sandbox.StrictPaths {
		return permissions.ContainmentSegment
	}
	return permissions.ContainmentPrefix
}

// RetryPolicy builds the remote cache retry policy.
func (c *Config) RetryPolicy() retry.Policy {
	retries := DefaultRemoteRetries
	if c.Cache.Remote.Retries != nil {
		retries = *c.Cache.Remote.Retries
	}
	return retry.NewPolicy(retry.NormalizeMode(c.Cache.Remote.RetryMode), 0, 0, retries)
}
