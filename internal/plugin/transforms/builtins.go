// Package transforms ships the builtin in-process transform plugins that
// config can enable by name.
package transforms

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/nextgen/internal/plugin"
)

const (
	ConsoleDebugName = "console-debug"
	BannerName       = "banner"
	DefineEnvName    = "define-env"
)

// Register adds every builtin factory to reg.
func Register(reg *plugin.Registry) error {
	for name, factory := range map[string]plugin.Factory{
		ConsoleDebugName: newConsoleDebug,
		BannerName:       newBanner,
		DefineEnvName:    newDefineEnv,
	} {
		if err := reg.Register(name, factory); err != nil {
			return err
		}
	}
	return nil
}

// Builtins returns a registry holding every builtin.
func Builtins() *plugin.Registry {
	reg := plugin.NewRegistry()
	if err := Register(reg); err != nil {
		panic(err) // names are constants and cannot collide
	}
	return reg
}

func builtin(name, description string, fn func(ctx context.Context, code, id string) (string, error)) plugin.TransformFunc {
	return plugin.TransformFunc{
		Meta: plugin.Metadata{
			Name:        name,
			Version:     "1.0.0",
			Type:        plugin.PluginTypeBuiltin,
			Description: description,
		},
		Fn: fn,
	}
}

func newConsoleDebug(map[string]any) (plugin.Plugin, error) {
	return builtin(ConsoleDebugName, "rewrites console.log calls to console.debug",
		func(_ context.Context, code, _ string) (string, error) {
			if !strings.Contains(code, "console.log(") {
				return "", nil
			}
			return strings.ReplaceAll(code, "console.log(", "console.debug("), nil
		}), nil
}

func newBanner(options map[string]any) (plugin.Plugin, error) {
	text, err := stringOption(options, "text")
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, fmt.Errorf("option text is required")
	}
	if strings.Contains(text, "*/") {
		return nil, fmt.Errorf("option text must not contain */")
	}
	banner := "/* " + text + " */\n"
	return builtin(BannerName, "prepends a comment banner",
		func(_ context.Context, code, _ string) (string, error) {
			if strings.HasPrefix(code, banner) {
				return "", nil
			}
			return banner + code, nil
		}), nil
}

func newDefineEnv(options map[string]any) (plugin.Plugin, error) {
	mode, err := stringOption(options, "mode")
	if err != nil {
		return nil, err
	}
	if mode == "" {
		mode, err = stringOption(options, plugin.OptionBuildMode)
		if err != nil {
			return nil, err
		}
	}
	if mode == "" {
		mode = "development"
	}
	literal := strconv.Quote(mode)
	return builtin(DefineEnvName, "inlines process.env.NODE_ENV as the build mode",
		func(_ context.Context, code, _ string) (string, error) {
			if !strings.Contains(code, "process.env.NODE_ENV") {
				return "", nil
			}
			return strings.ReplaceAll(code, "process.env.NODE_ENV", literal), nil
		}), nil
}

func stringOption(options map[string]any, key string) (string, error) {
	v, ok := options[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("option %s must be a string, got %T", key, v)
	}
	return s, nil
}
