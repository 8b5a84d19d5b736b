package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/nextgen/internal/build"
	"git.home.luguber.info/inful/nextgen/internal/logfields"
	"git.home.luguber.info/inful/nextgen/internal/metrics"
	"git.home.luguber.info/inful/nextgen/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Mode    string `help:"Override the build mode (development|production|test)"`
	NoCache bool   `name:"no-cache" help:"Skip both cache tiers"`
	Metrics string `name:"metrics-addr" help:"Serve Prometheus metrics on this address (overrides metrics.addr)"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	mode, err := parseMode(w.Mode)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	addr := cfg.Metrics.Addr
	if w.Metrics != "" {
		addr = w.Metrics
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewPrometheusRecorder(reg)
	if addr != "" {
		srv := &http.Server{Addr: addr, Handler: metrics.HTTPHandler(reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				g.Logger.Error("Metrics server failed", logfields.Error(err))
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
		g.Logger.Info("Serving metrics", slogAddr(addr))
	}

	svc, cleanup := newService(g.Ctx, cfg, g, rec)
	defer cleanup()

	opts := build.BuildOptions{Mode: mode, NoCache: w.NoCache}
	var prune func(ctx context.Context) error
	if cfg.CacheEnabled() && !w.NoCache {
		prune = func(ctx context.Context) error {
			dc, err := build.OpenCache(cfg, nil, g.Logger)
			if err != nil {
				return err
			}
			defer func() { _ = dc.Close() }()
			n, err := dc.Prune(ctx, cfg.Watch.PruneOlderThan)
			if n > 0 {
				g.Logger.Info("Pruned cache entries", logfields.Count(n))
			}
			return err
		}
	}

	ignore := []string{cfg.OutPath(), cfg.CachePath()}
	if p := cfg.HistoryPath(); p != "" {
		ignore = append(ignore, p)
	}
	return watch.Loop(g.Ctx, watch.LoopOptions{
		Watch: watch.Options{
			Root:     cfg.Root,
			Ignore:   ignore,
			Debounce: cfg.Watch.Debounce,
			Logger:   g.Logger,
		},
		Build: func(ctx context.Context) error {
			res, err := svc.Run(ctx, build.BuildRequest{Config: cfg, Options: opts})
			if err != nil {
				return err
			}
			g.Logger.Info(summary(res))
			return nil
		},
		Prune:         prune,
		PruneInterval: cfg.Watch.PruneInterval,
	})
}
