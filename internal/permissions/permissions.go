// Package permissions answers capability queries for sandboxed plugins.
//
// A Set declares which paths a plugin may read or write, which hosts it may
// contact and which environment variables it may observe. A nil list denies the
// whole resource class; a list containing "*" allows all of it.
package permissions

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Wildcard grants every resource in a class.
const Wildcard = "*"

// Set is the declarative allowlist attached to a plugin.
type Set struct {
	Read    []string `json:"read,omitempty" yaml:"read,omitempty"`
	Write   []string `json:"write,omitempty" yaml:"write,omitempty"`
	Network []string `json:"network,omitempty" yaml:"network,omitempty"`
	Env     []string `json:"env,omitempty" yaml:"env,omitempty"`
}

// Containment selects how path allow-list entries are matched.
type Containment int

const (
	// ContainmentPrefix matches when the resolved path string begins with the
	// resolved allowed entry. "/allowed-2" therefore matches "/allowed".
	ContainmentPrefix Containment = iota
	// ContainmentSegment matches only the entry itself or paths below it,
	// comparing whole path segments.
	ContainmentSegment
)

// Manager evaluates queries against one Set rooted at one directory.
// It holds no mutable state and is safe for concurrent use.
type Manager struct {
	set         Set
	root        string
	containment Containment
}

// Option configures a Manager.
type Option func(*Manager)

// WithRoot sets the directory relative paths are resolved against.
func WithRoot(root string) Option {
	return func(m *Manager) { m.root = root }
}

// WithContainment selects the path matching mode.
func WithContainment(c Containment) Option {
	return func(m *Manager) { m.containment = c }
}

// NewManager builds a Manager. The root defaults to the process working
// directory and is made absolute with symlinks evaluated.
func NewManager(set Set, opts ...Option) *Manager {
	m := &Manager{set: set}
	for _, opt := range opts {
		opt(m)
	}
	m.root = canonicalRoot(m.root)
	return m
}

func canonicalRoot(root string) string {
	if root == "" {
		if wd, err := os.Getwd(); err == nil {
			root = wd
		} else {
			root = "."
		}
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	if canonical, err := filepath.EvalSymlinks(root); err == nil {
		root = canonical
	}
	return filepath.Clean(root)
}

// Root returns the canonical root directory.
func (m *Manager) Root() string { return m.root }

// Set returns the permission set the manager was built from.
func (m *Manager) Set() Set { return m.set }

// CanRead reports whether path may be read.
func (m *Manager) CanRead(path string) bool {
	return m.pathAllowed(m.set.Read, path)
}

// CanWrite reports whether path may be written.
func (m *Manager) CanWrite(path string) bool {
	return m.pathAllowed(m.set.Write, path)
}

// CanAccessNetwork reports whether host may be contacted.
func (m *Manager) CanAccessNetwork(host string) bool {
	return memberAllowed(m.set.Network, host)
}

// CanAccessEnv reports whether the environment variable may be read.
func (m *Manager) CanAccessEnv(name string) bool {
	return memberAllowed(m.set.Env, name)
}

// Check returns a *DeniedError when the query is refused and nil otherwise.
func (m *Manager) Check(kind Kind, target string) error {
	var ok bool
	switch kind {
	case KindRead:
		ok = m.CanRead(target)
	case KindWrite:
		ok = m.CanWrite(target)
	case KindNetwork:
		ok = m.CanAccessNetwork(target)
	case KindEnv:
		ok = m.CanAccessEnv(target)
	}
	if ok {
		return nil
	}
	return &DeniedError{Kind: kind, Target: target}
}

// Resolve resolves path against the manager root.
func (m *Manager) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(m.root, path)
}

func (m *Manager) pathAllowed(allowed []string, path string) bool {
	if allowed == nil {
		return false
	}
	if slices.Contains(allowed, Wildcard) {
		return true
	}
	resolved := m.Resolve(path)
	for _, entry := range allowed {
		if m.contains(m.Resolve(entry), resolved) {
			return true
		}
	}
	return false
}

func (m *Manager) contains(allowed, resolved string) bool {
	if m.containment == ContainmentPrefix {
		return strings.HasPrefix(resolved, allowed)
	}
	if resolved == allowed {
		return true
	}
	if !strings.HasSuffix(allowed, string(filepath.Separator)) {
		allowed += string(filepath.Separator)
	}
	return strings.HasPrefix(resolved, allowed)
}

func memberAllowed(allowed []string, value string) bool {
	if allowed == nil {
		return false
	}
	return slices.Contains(allowed, Wildcard) || slices.Contains(allowed, value)
}
