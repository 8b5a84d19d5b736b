package errors

import "maps"

// ErrorCategory groups errors by the subsystem that raised them.
type ErrorCategory string

const (
	// User input.
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryPermission ErrorCategory = "permission"

	// Plugin code and the sandbox that runs it.
	CategoryPlugin  ErrorCategory = "plugin"
	CategorySandbox ErrorCategory = "sandbox"

	// Collaborators outside the process.
	CategoryNetwork ErrorCategory = "network"
	CategoryCache   ErrorCategory = "cache"

	CategoryBuild      ErrorCategory = "build"
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryEventStore ErrorCategory = "eventstore"

	CategoryRuntime  ErrorCategory = "runtime"
	CategoryInternal ErrorCategory = "internal"
)

// exitCodes maps categories onto process exit codes. Unknown categories exit 1.
var exitCodes = map[ErrorCategory]int{
	CategoryValidation: 2,
	CategoryPermission: 5,
	CategoryConfig:     7,
	CategoryNetwork:    8,
	CategoryPlugin:     9,
	CategorySandbox:    9,
	CategoryInternal:   10,
	CategoryBuild:      11,
	CategoryFileSystem: 11,
	CategoryCache:      11,
	CategoryRuntime:    12,
	CategoryEventStore: 12,
}

// ExitCode returns the process exit code for c.
func (c ErrorCategory) ExitCode() int {
	if code, ok := exitCodes[c]; ok {
		return code
	}
	return 1
}

// degraded reports whether errors of c leave the build usable.
func (c ErrorCategory) degraded() bool {
	return c == CategoryCache || c == CategoryEventStore
}

// Fields is the structured context attached to an error.
type Fields map[string]any

func (f Fields) with(key string, value any) Fields {
	out := make(Fields, len(f)+1)
	maps.Copy(out, f)
	out[key] = value
	return out
}

// String returns the value under key when it is a string.
func (f Fields) String(key string) (string, bool) {
	s, ok := f[key].(string)
	return s, ok
}
