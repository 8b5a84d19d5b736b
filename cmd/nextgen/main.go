package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/nextgen/cmd/nextgen/commands"
	"git.home.luguber.info/inful/nextgen/internal/foundation/errors"
	"git.home.luguber.info/inful/nextgen/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli commands.CLI
	global := &commands.Global{Ctx: ctx}
	kctx := kong.Parse(&cli,
		kong.Name("nextgen"),
		kong.Description("Plugin-driven build orchestrator with sandboxed plugins and a two-tier build cache."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(global),
	)
	global.Logger = slog.Default()

	if err := kctx.Run(global, &cli); err != nil {
		stop()
		errors.NewCLIErrorAdapter(cli.Verbose, global.Logger).HandleError(err)
	}
}
