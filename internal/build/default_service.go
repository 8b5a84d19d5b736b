package build

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/nextgen/internal/bundler"
	"git.home.luguber.info/inful/nextgen/internal/cache"
	"git.home.luguber.info/inful/nextgen/internal/config"
	"git.home.luguber.info/inful/nextgen/internal/foundation/errors"
	"git.home.luguber.info/inful/nextgen/internal/logfields"
	"git.home.luguber.info/inful/nextgen/internal/metrics"
	"git.home.luguber.info/inful/nextgen/internal/pipeline"
	"git.home.luguber.info/inful/nextgen/internal/plugin"
	"git.home.luguber.info/inful/nextgen/internal/plugin/transforms"
	"git.home.luguber.info/inful/nextgen/internal/version"
)

// DefaultBuildService wires configuration into a pipeline run.
type DefaultBuildService struct {
	registry   *plugin.Registry
	backend    bundler.Backend
	recorder   metrics.Recorder
	sinks      []pipeline.EventSink
	httpClient *http.Client
	logger     *slog.Logger
}

// NewBuildService creates a service with the builtin plugins and the
// passthrough backend.
func NewBuildService() *DefaultBuildService {
	return &DefaultBuildService{
		registry: transforms.Builtins(),
		backend:  bundler.Passthrough{},
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
}

// WithRegistry replaces the builtin plugin registry.
func (s *DefaultBuildService) WithRegistry(reg *plugin.Registry) *DefaultBuildService {
	s.registry = reg
	return s
}

// WithBackend sets the bundler backend.
func (s *DefaultBuildService) WithBackend(b bundler.Backend) *DefaultBuildService {
	s.backend = b
	return s
}

// WithRecorder sets the metrics recorder.
func (s *DefaultBuildService) WithRecorder(r metrics.Recorder) *DefaultBuildService {
	s.recorder = r
	return s
}

// WithEventSinks adds destinations for build events.
func (s *DefaultBuildService) WithEventSinks(sinks ...pipeline.EventSink) *DefaultBuildService {
	s.sinks = append(s.sinks, sinks...)
	return s
}

// WithHTTPClient sets the client used by the remote cache and sandbox fetch.
func (s *DefaultBuildService) WithHTTPClient(c *http.Client) *DefaultBuildService {
	s.httpClient = c
	return s
}

// WithLogger sets the service logger.
func (s *DefaultBuildService) WithLogger(l *slog.Logger) *DefaultBuildService {
	s.logger = l
	return s
}

// Run executes the complete build pipeline.
func (s *DefaultBuildService) Run(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	start := time.Now()
	result := &BuildResult{StartTime: start}
	finish := func(status BuildStatus) {
		result.Status = status
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(start)
	}

	if req.Config == nil {
		finish(BuildStatusFailed)
		s.recorder.IncBuildOutcome(metrics.OutcomeFailed)
		return result, errors.ConfigError("config required").Build()
	}
	cfg := applyOptions(req.Config, req.Options)
	result.OutputPath = cfg.OutPath()

	plugins, err := LoadPlugins(ctx, cfg, s.registry, s.httpClient, s.logger)
	if err != nil {
		finish(BuildStatusFailed)
		s.recorder.IncBuildOutcome(metrics.OutcomeFailed)
		return result, err
	}

	var dc *cache.DiskCache
	if cfg.CacheEnabled() && !req.Options.NoCache {
		dc, err = OpenCache(cfg, s.httpClient, s.logger)
		if err != nil {
			s.logger.Warn("Cache unavailable, building without it", logfields.Error(err))
			dc = nil
		} else {
			defer func() { _ = dc.Close() }()
		}
	}

	bc := &pipeline.Context{
		Config:    cfg,
		Plugins:   plugins,
		Cache:     dc,
		Backend:   s.backend,
		Logger:    s.logger,
		Recorder:  s.recorder,
		StartedAt: start,
	}
	observers := pipeline.MultiObserver{pipeline.RecorderObserver{Recorder: s.recorder}}
	p := pipeline.NewDefault(pipeline.WithLogger(s.logger), pipeline.WithObserver(observers))
	if len(s.sinks) > 0 {
		observers = append(observers, pipeline.EventObserver{Sinks: s.sinks, Steps: p.Steps()})
		p = pipeline.NewDefault(pipeline.WithLogger(s.logger), pipeline.WithObserver(observers))
	}

	err = p.Execute(ctx, bc)
	result.BuildID = bc.BuildID
	result.Files = bc.Files
	result.Artifacts = bc.Artifacts
	result.CacheKey = bc.CacheKey
	result.CacheHit = bc.CacheHit
	result.CacheTier = string(bc.CacheTier)

	switch {
	case err == nil && bc.CacheHit:
		finish(BuildStatusCached)
	case err == nil:
		finish(BuildStatusSuccess)
	case stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded):
		finish(BuildStatusCancelled)
	default:
		finish(BuildStatusFailed)
	}
	return result, err
}

// OpenCache opens the disk cache described by cfg.
func OpenCache(cfg *config.Config, client *http.Client, logger *slog.Logger) (*cache.DiskCache, error) {
	inputs := cache.DefaultKeyInputs(cfg.Root)
	if cfg.File != "" {
		inputs.ConfigFile = cfg.File
	}
	if cfg.Cache.PluginDir != "" {
		inputs.PluginDir = cfg.Cache.PluginDir
	}
	if inputs.ToolVersion == "" {
		inputs.ToolVersion = version.Version
	}
	inputs.Mode = string(cfg.Mode)
	return cache.New(cache.Options{
		Dir:       cfg.CachePath(),
		KeyInputs: inputs,
		Logger:    logger,
		Remote: cache.RemoteConfig{
			URL:     cfg.Cache.Remote.URL,
			Token:   cfg.Cache.Remote.Token,
			Timeout: cfg.Cache.Remote.Timeout,
			Policy:  cfg.RetryPolicy(),
			Client:  client,
		},
	})
}

func applyOptions(base *config.Config, opts BuildOptions) *config.Config {
	cfg := *base
	if opts.Mode != "" {
		cfg.Mode = opts.Mode
	}
	if opts.OutDir != "" {
		cfg.OutDir = opts.OutDir
	}
	return &cfg
}
