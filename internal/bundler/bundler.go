// Package bundler defines the boundary to the module bundler backend and
// ships a minimal passthrough implementation.
package bundler

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
)

// Request describes one bundling run.
type Request struct {
	// EntryPoints maps output names to absolute source paths.
	EntryPoints map[string]string
	OutDir      string
	Mode        string
	Hooks       []Hook
}

// Result lists files written by the backend.
type Result struct {
	Files []string
}

// Backend produces output files from entry points.
type Backend interface {
	Name() string
	Bundle(ctx context.Context, req Request) (*Result, error)
}

// Hook is an extension handed to the backend.
type Hook interface {
	Name() string
}

// LoadHook may replace a module's source as the backend loads it.
type LoadHook interface {
	Hook
	// OnLoad returns the new source, or "" to leave it untouched.
	OnLoad(ctx context.Context, path, source string) (string, error)
}

// Transformer is the subset of the plugin manager the transform hook needs.
type Transformer interface {
	Transform(ctx context.Context, code, id string) (string, error)
}

var transformExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs"}

// TransformHook routes script sources through a Transformer.
type TransformHook struct {
	Transformer Transformer
}

func (h TransformHook) Name() string { return "plugin-transform" }

// Applies reports whether path is a script outside node_modules.
func (h TransformHook) Applies(path string) bool {
	if !slices.Contains(transformExtensions, strings.ToLower(filepath.Ext(path))) {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == "node_modules" {
			return false
		}
	}
	return true
}

func (h TransformHook) OnLoad(ctx context.Context, path, source string) (string, error) {
	if !h.Applies(path) {
		return "", nil
	}
	out, err := h.Transformer.Transform(ctx, source, path)
	if err != nil {
		return "", err
	}
	if out == source {
		return "", nil
	}
	return out, nil
}
