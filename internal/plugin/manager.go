package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/nextgen/internal/logfields"
)

// ErrSealed is returned when registering into a manager whose pipeline has started.
var ErrSealed = errors.New("plugin manager is sealed")

// Manager holds the ordered plugin list for one pipeline.
type Manager struct {
	mu      sync.RWMutex
	plugins []Plugin
	sealed  bool
	logger  *slog.Logger
}

// NewManager creates an empty manager. A nil logger uses slog.Default.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// Register appends p; later registrations run later.
func (m *Manager) Register(p Plugin) error {
	if p == nil {
		return fmt.Errorf("cannot register nil plugin")
	}
	if err := p.Metadata().Validate(); err != nil {
		return fmt.Errorf("invalid plugin metadata: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sealed {
		return fmt.Errorf("register %s: %w", p.Metadata().Name, ErrSealed)
	}
	m.plugins = append(m.plugins, p)
	m.logger.Debug("Registered plugin", logfields.Plugin(p.Metadata().Name),
		slog.String("type", p.Metadata().Type.String()))
	return nil
}

// Seal freezes the plugin list. Sealing twice is a no-op.
func (m *Manager) Seal() {
	m.mu.Lock()
	m.sealed = true
	m.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (m *Manager) Sealed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sealed
}

// Plugins returns a copy of the registered plugins in order.
func (m *Manager) Plugins() []Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Plugin, len(m.plugins))
	copy(out, m.plugins)
	return out
}

// Transform folds every plugin's transform over code, left to right.
// A non-empty result replaces the code; the first error aborts the fold.
func (m *Manager) Transform(ctx context.Context, code, id string) (string, error) {
	result := code
	for _, p := range m.Plugins() {
		t, ok := p.(Transformer)
		if !ok {
			continue
		}
		out, err := t.Transform(ctx, result, id)
		if err != nil {
			return "", &PluginError{PluginName: p.Metadata().Name, Operation: string(HookTransform), Err: err}
		}
		if out != "" {
			result = out
		}
	}
	return result, nil
}

// BuildStart runs every BuildStarter hook in registration order.
func (m *Manager) BuildStart(ctx context.Context, info BuildInfo) error {
	for _, p := range m.Plugins() {
		if h, ok := p.(BuildStarter); ok {
			if err := h.BuildStart(ctx, info); err != nil {
				return &PluginError{PluginName: p.Metadata().Name, Operation: string(HookBuildStart), Err: err}
			}
		}
	}
	return nil
}

// BuildEnd runs every BuildEnder hook. Failures are logged and do not fail the build.
func (m *Manager) BuildEnd(ctx context.Context, info BuildInfo) {
	for _, p := range m.Plugins() {
		if h, ok := p.(BuildEnder); ok {
			if err := h.BuildEnd(ctx, info); err != nil {
				m.logger.Warn("buildEnd hook failed", logfields.Plugin(p.Metadata().Name), logfields.Error(err))
			}
		}
	}
}
