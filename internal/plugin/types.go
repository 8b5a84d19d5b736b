package plugin

import (
	stderrors "errors"
	"fmt"

	"git.home.luguber.info/inful/nextgen/internal/foundation/errors"
)

// PluginType identifies where a plugin executes.
type PluginType string

const (
	// PluginTypeBuiltin runs trusted Go code in-process.
	PluginTypeBuiltin PluginType = "builtin"

	// PluginTypeSandboxed runs untrusted JavaScript inside a sandbox.
	PluginTypeSandboxed PluginType = "sandboxed"
)

// IsValid returns true if the plugin type is recognized.
func (t PluginType) IsValid() bool {
	switch t {
	case PluginTypeBuiltin, PluginTypeSandboxed:
		return true
	default:
		return false
	}
}

func (t PluginType) String() string {
	return string(t)
}

// Hook names a plugin extension point.
type Hook string

const (
	HookBuildStart Hook = "buildStart"
	HookTransform  Hook = "transform"
	HookBuildEnd   Hook = "buildEnd"
)

// PluginError represents an error that occurred within a plugin.
type PluginError struct {
	// PluginName identifies which plugin failed.
	PluginName string

	// Operation describes what the plugin was doing when it failed.
	Operation string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin %s failed during %s: %v", e.PluginName, e.Operation, e.Err)
}

// Unwrap returns the underlying error for error inspection.
func (e *PluginError) Unwrap() error {
	return e.Err
}

// ErrorCategory reports the category of the underlying error when it has
// one, so a permission denial inside a plugin still maps to a denial.
func (e *PluginError) ErrorCategory() errors.ErrorCategory {
	var inner errors.Categorizer
	if stderrors.As(e.Err, &inner) {
		return inner.ErrorCategory()
	}
	if classified, ok := errors.AsClassified(e.Err); ok {
		return classified.Category()
	}
	return errors.CategoryPlugin
}
