// Package plugin provides the plugin model for the build pipeline.
// Plugins are either trusted in-process Go values or untrusted JavaScript
// loaded into a sandbox; both are driven through the same Manager.
package plugin

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/nextgen/internal/permissions"
)

// Plugin represents a build plugin with metadata and optional hooks.
type Plugin interface {
	// Metadata returns the plugin's identity and declared permissions.
	Metadata() Metadata
}

// Transformer rewrites module source as it is loaded by the bundler.
// Returning an empty string leaves the code unchanged.
type Transformer interface {
	Transform(ctx context.Context, code, id string) (string, error)
}

// BuildStarter is notified before bundling begins.
type BuildStarter interface {
	BuildStart(ctx context.Context, info BuildInfo) error
}

// BuildEnder is notified after the build produced its outputs.
type BuildEnder interface {
	BuildEnd(ctx context.Context, info BuildInfo) error
}

// Metadata describes a plugin's identity.
type Metadata struct {
	// Name is the unique plugin identifier (e.g., "console-debug").
	Name string

	// Version is informational; sandboxed plugins may omit it.
	Version string

	// Type identifies where the plugin code runs.
	Type PluginType

	// Description provides a human-readable summary of the plugin's purpose.
	Description string

	// Permissions is the capability set granted to sandboxed plugins.
	// Builtin plugins run trusted and leave it nil.
	Permissions *permissions.Set
}

// String returns a human-readable representation of the plugin metadata.
func (m Metadata) String() string {
	if m.Version == "" {
		return fmt.Sprintf("%s (%s)", m.Name, m.Type)
	}
	return fmt.Sprintf("%s@%s (%s)", m.Name, m.Version, m.Type)
}

// Validate checks if the plugin metadata is valid.
func (m Metadata) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("plugin name is required")
	}
	if !m.Type.IsValid() {
		return fmt.Errorf("invalid plugin type: %s", m.Type)
	}
	return nil
}

// Hooks lists the hook names p implements.
func Hooks(p Plugin) []Hook {
	var hooks []Hook
	if _, ok := p.(BuildStarter); ok {
		hooks = append(hooks, HookBuildStart)
	}
	if _, ok := p.(Transformer); ok {
		hooks = append(hooks, HookTransform)
	}
	if _, ok := p.(BuildEnder); ok {
		hooks = append(hooks, HookBuildEnd)
	}
	return hooks
}

// TransformFunc adapts a plain function into a builtin transform plugin.
type TransformFunc struct {
	Meta Metadata
	Fn   func(ctx context.Context, code, id string) (string, error)
}

func (f TransformFunc) Metadata() Metadata { return f.Meta }

func (f TransformFunc) Transform(ctx context.Context, code, id string) (string, error) {
	return f.Fn(ctx, code, id)
}
