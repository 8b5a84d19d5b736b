package watch

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/nextgen/internal/logfields"
)

// LoopOptions configures Loop.
type LoopOptions struct {
	Watch Options
	// Build runs once at start and after every debounced batch of changes.
	Build func(ctx context.Context) error
	// Prune, when set, runs every PruneInterval.
	Prune         func(ctx context.Context) error
	PruneInterval time.Duration
}

// Loop builds once, then rebuilds on change until ctx is cancelled. Build
// failures are logged and the loop keeps watching.
func Loop(ctx context.Context, opts LoopOptions) error {
	logger := opts.Watch.Logger
	if logger == nil {
		logger = slog.Default()
		opts.Watch.Logger = logger
	}

	rebuild := func(ctx context.Context) {
		if err := opts.Build(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Build failed, waiting for changes", logfields.Error(err))
		}
	}

	if opts.Prune != nil && opts.PruneInterval > 0 {
		sched, err := NewScheduler(logger)
		if err != nil {
			return err
		}
		if _, err := sched.Every(ctx, "cache-prune", opts.PruneInterval, opts.Prune); err != nil {
			return err
		}
		sched.Start()
		defer func() {
			if err := sched.Stop(); err != nil {
				logger.Warn("Scheduler shutdown failed", logfields.Error(err))
			}
		}()
	}

	opts.Watch.OnChange = func(ctx context.Context, changed []string) {
		logger.Info("Rebuilding", logfields.Count(len(changed)))
		rebuild(ctx)
	}
	w, err := New(opts.Watch)
	if err != nil {
		return err
	}
	rebuild(ctx)
	return w.Run(ctx)
}
