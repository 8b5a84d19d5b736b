package config

import (
	"fmt"
	"net/url"

	ferrors "git.home.luguber.info/inful/nextgen/internal/foundation/errors"
	"git.home.luguber.info/inful/nextgen/internal/retry"
)

// Validate checks a defaulted configuration.
func Validate(cfg *Config) error {
	if !cfg.Mode.IsValid() {
		return invalid("mode", fmt.Sprintf("unsupported mode %q (expected development, production or test)", cfg.Mode))
	}
	for i, p := range cfg.Plugins {
		field := fmt.Sprintf("plugins[%d]", i)
		switch {
		case p.Name == "" && p.Source == "":
			return invalid(field, "either name or source is required")
		case p.Name != "" && p.Source != "":
			return invalid(field, "name and source are mutually exclusive")
		}
	}
	if u := cfg.Cache.Remote.URL; u != "" {
		parsed, err := url.Parse(u)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return invalid("cache.remote.url", fmt.Sprintf("invalid URL %q", u))
		}
	}
	if cfg.Cache.Remote.Retries != nil && *cfg.Cache.Remote.Retries < 0 {
		return invalid("cache.remote.retries", "must not be negative")
	}
	if m := cfg.Cache.Remote.RetryMode; m != "" && retry.NormalizeMode(m) == "" {
		return invalid("cache.remote.retryMode", fmt.Sprintf("unknown mode %q", m))
	}
	for field, d := range map[string]int64{
		"sandbox.timeout":      int64(cfg.Sandbox.Timeout),
		"cache.remote.timeout": int64(cfg.Cache.Remote.Timeout),
		"watch.debounce":       int64(cfg.Watch.Debounce),
		"watch.pruneInterval":  int64(cfg.Watch.PruneInterval),
	} {
		if d < 0 {
			return invalid(field, "must not be negative")
		}
	}
	if cfg.Report.Commits < 0 {
		return invalid("report.commits", "must not be negative")
	}
	return nil
}

func invalid(field, msg string) error {
	return ferrors.ConfigError("invalid configuration: " + field + ": " + msg).
		WithContext("field", field).Build()
}
