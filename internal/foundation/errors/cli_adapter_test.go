package errors

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

type customError struct{ msg string }

func (e *customError) Error() string { return e.msg }

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "config error", err: ConfigError("no entry points found").Build(), expected: 7},
		{name: "build error", err: BuildError("bundle failed").Build(), expected: 11},
		{name: "self-categorized permission error", err: fmt.Errorf("transform: %w", deniedStub{}), expected: 5},
		{name: "plugin error", err: PluginError("bad export").Build(), expected: 9},
		{name: "event store error", err: EventStoreError("append failed").Build(), expected: 12},
		{name: "unclassified error", err: &customError{msg: "unknown error"}, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var out bytes.Buffer
	var code int
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	adapter.out = &out
	adapter.exit = func(c int) { code = c }

	adapter.HandleError(ConfigError("no entry points found").Build())

	if code != 7 {
		t.Errorf("exit code = %d, want 7", code)
	}
	if !strings.Contains(out.String(), "no entry points found") {
		t.Errorf("expected descriptive message, got %q", out.String())
	}
}

func TestCLIErrorAdapter_FormatInternal(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, nil)
	msg := adapter.FormatError(InternalError("boom").Build())
	if !strings.Contains(msg, "use -v") {
		t.Errorf("expected terse internal message, got %q", msg)
	}

	verbose := NewCLIErrorAdapter(true, nil)
	if msg := verbose.FormatError(InternalError("boom").Build()); !strings.Contains(msg, "boom") {
		t.Errorf("expected verbose message to include details, got %q", msg)
	}
}

func TestCLIErrorAdapter_CacheErrorsLogAsWarnings(t *testing.T) {
	var logs bytes.Buffer
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logs, nil)))
	adapter.out = &bytes.Buffer{}
	adapter.exit = func(int) {}

	adapter.HandleError(CacheError("prune failed").WithContext("key", "abc").Build())

	if !strings.Contains(logs.String(), "level=WARN") || !strings.Contains(logs.String(), "key=abc") {
		t.Errorf("expected a warning with fields, got %q", logs.String())
	}
}
