package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStep       = "step"
	KeyPlugin     = "plugin"
	KeyCacheKey   = "cache_key"
	KeyTier       = "tier"
	KeyPath       = "path"
	KeyHost       = "host"
	KeyURL        = "url"
	KeyMode       = "mode"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
	KeyEventType  = "event_type"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr    { return slog.String(KeyBuildID, id) }
func Step(name string) slog.Attr     { return slog.String(KeyStep, name) }
func Plugin(name string) slog.Attr   { return slog.String(KeyPlugin, name) }
func CacheKey(key string) slog.Attr  { return slog.String(KeyCacheKey, shortKey(key)) }
func Tier(t string) slog.Attr        { return slog.String(KeyTier, t) }
func Path(p string) slog.Attr        { return slog.String(KeyPath, p) }
func Host(h string) slog.Attr        { return slog.String(KeyHost, h) }
func URL(u string) slog.Attr         { return slog.String(KeyURL, u) }
func Mode(m string) slog.Attr        { return slog.String(KeyMode, m) }
func Count(n int) slog.Attr          { return slog.Int(KeyCount, n) }
func EventType(t string) slog.Attr    { return slog.String(KeyEventType, t) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }

// Duration converts d to the canonical millisecond field.
func Duration(d time.Duration) slog.Attr {
	return DurationMS(float64(d.Microseconds()) / 1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// shortKey trims a hex digest to 12 characters for readable logs.
func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
