package commands

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/nextgen/internal/build"
	"git.home.luguber.info/inful/nextgen/internal/config"
	"git.home.luguber.info/inful/nextgen/internal/eventbus"
	"git.home.luguber.info/inful/nextgen/internal/eventstore"
	"git.home.luguber.info/inful/nextgen/internal/foundation/errors"
	"git.home.luguber.info/inful/nextgen/internal/logfields"
	"git.home.luguber.info/inful/nextgen/internal/metrics"
)

// EnvLogLevel overrides the log level chosen by -v.
const EnvLogLevel = "NEXTGEN_LOG_LEVEL"

// Global carries state shared by every command.
type Global struct {
	Ctx    context.Context
	Logger *slog.Logger
}

// CLI is the root command.
type CLI struct {
	Dir     string           `short:"c" name:"dir" help:"Project directory containing nextgen.build.{json,yaml,yml}" default:"." type:"existingdir"`
	Verbose bool             `short:"v" help:"Enable debug logging"`
	Ver     kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Run the build pipeline once"`
	Watch   WatchCmd   `cmd:"" help:"Rebuild on source changes"`
	Cache   CacheCmd   `cmd:"" help:"Inspect and manage the build cache"`
	History HistoryCmd `cmd:"" help:"Show recorded builds"`
	Plugin  PluginCmd  `cmd:"" help:"Work with sandboxed plugins"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// AfterApply configures logging once flags are parsed.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: ParseLogLevel(c.Verbose)}))
	slog.SetDefault(logger)
	return nil
}

// ParseLogLevel maps -v and NEXTGEN_LOG_LEVEL to a level; the variable wins.
func ParseLogLevel(verbose bool) slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(EnvLogLevel))) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func loadConfig(root *CLI) (*config.Config, error) {
	return config.Load(root.Dir)
}

// newService builds the build service with the event sinks cfg asks for.
// The returned cleanup closes them.
func newService(ctx context.Context, cfg *config.Config, g *Global, rec metrics.Recorder) (*build.DefaultBuildService, func()) {
	svc := build.NewBuildService().WithLogger(g.Logger)
	if rec != nil {
		svc = svc.WithRecorder(rec)
	}
	var closers []func()

	if path := cfg.HistoryPath(); path != "" {
		store, err := eventstore.NewSQLiteStore(path)
		if err != nil {
			g.Logger.Warn("Build history disabled", logfields.Path(path), logfields.Error(err))
		} else {
			svc = svc.WithEventSinks(store)
			closers = append(closers, func() { _ = store.Close() })
		}
	}
	if cfg.Events.NATSURL != "" {
		pub, err := eventbus.Connect(ctx, eventbus.Options{
			URL:     cfg.Events.NATSURL,
			Subject: cfg.Events.Subject,
			Logger:  g.Logger,
		})
		if err != nil {
			g.Logger.Warn("Build event publishing disabled", logfields.URL(cfg.Events.NATSURL), logfields.Error(err))
		} else {
			svc = svc.WithEventSinks(pub)
			closers = append(closers, func() { _ = pub.Close() })
		}
	}
	return svc, func() {
		for _, c := range closers {
			c()
		}
	}
}

func slogAddr(addr string) slog.Attr { return slog.String("addr", addr) }

// parseMode validates a --mode flag; "" keeps the configured mode.
func parseMode(s string) (config.Mode, error) {
	if s == "" {
		return "", nil
	}
	m := config.Mode(strings.ToLower(s))
	if !m.IsValid() {
		return "", errors.ValidationError("invalid --mode").WithContext("mode", s).Build()
	}
	return m, nil
}
