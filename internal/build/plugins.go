package build

import (
	"context"
	"log/slog"
	"maps"
	"net/http"
	"os"

	"git.home.luguber.info/inful/nextgen/internal/config"
	"git.home.luguber.info/inful/nextgen/internal/foundation/errors"
	"git.home.luguber.info/inful/nextgen/internal/logfields"
	"git.home.luguber.info/inful/nextgen/internal/plugin"
)

// LoadPlugins registers the configured plugins, in order, on a new manager.
// Builtins are looked up by name in reg; sandboxed plugins are read from
// their source file and evaluated under their declared permissions.
func LoadPlugins(ctx context.Context, cfg *config.Config, reg *plugin.Registry, client *http.Client, logger *slog.Logger) (*plugin.Manager, error) {
	m := plugin.NewManager(logger)
	for i, pc := range cfg.Plugins {
		p, err := loadPlugin(ctx, cfg, pc, reg, client, logger)
		if err != nil {
			return nil, errors.PluginError("failed to load plugin").
				WithCause(err).
				WithContext("index", i).
				WithContext("plugin", describe(pc)).
				Build()
		}
		if err := m.Register(p); err != nil {
			return nil, err
		}
		logger.Debug("Plugin registered", logfields.Plugin(p.Metadata().Name), slog.String("type", string(p.Metadata().Type)))
	}
	return m, nil
}

func loadPlugin(ctx context.Context, cfg *config.Config, pc config.PluginConfig, reg *plugin.Registry, client *http.Client, logger *slog.Logger) (plugin.Plugin, error) {
	if pc.Name != "" {
		opts := maps.Clone(pc.Options)
		if opts == nil {
			opts = make(map[string]any, 1)
		}
		opts[plugin.OptionBuildMode] = string(cfg.Mode)
		return reg.New(pc.Name, opts)
	}
	path := cfg.Resolve(pc.Source)
	// #nosec G304 - plugin sources are listed in the build config
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return plugin.LoadSandboxedPlugin(ctx, string(src), pc.Permissions, plugin.LoadOptions{
		Filename:    path,
		Root:        cfg.Root,
		Containment: cfg.Containment(),
		Timeout:     cfg.Sandbox.Timeout,
		Logger:      logger,
		HTTPClient:  client,
	})
}

func describe(pc config.PluginConfig) string {
	if pc.Name != "" {
		return pc.Name
	}
	return pc.Source
}
