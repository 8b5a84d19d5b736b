package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"git.home.luguber.info/inful/nextgen/internal/bundler"
	"git.home.luguber.info/inful/nextgen/internal/cache"
	"git.home.luguber.info/inful/nextgen/internal/config"
	"git.home.luguber.info/inful/nextgen/internal/foundation/errors"
	"git.home.luguber.info/inful/nextgen/internal/logfields"
	"git.home.luguber.info/inful/nextgen/internal/optimize"
	"git.home.luguber.info/inful/nextgen/internal/report"
)

// Step names.
const (
	StepResolver    = "Resolver"
	StepTransformer = "Transformer"
	StepBundler     = "Bundler"
	StepOptimizer   = "Optimizer"
	StepReporter    = "Reporter"
	StepOutputter   = "Outputter"
)

// DefaultSteps returns the standard build sequence.
func DefaultSteps() []Step {
	return []Step{
		ResolverStep{},
		TransformerStep{},
		BundlerStep{},
		OptimizerStep{},
		ReporterStep{},
		OutputterStep{},
	}
}

// NewDefault builds a pipeline with DefaultSteps.
func NewDefault(opts ...Option) *Pipeline {
	p := New(opts...)
	for _, s := range DefaultSteps() {
		p.AddStep(s)
	}
	return p
}

// ResolverStep maps each configured entry to "entry<i>" and an absolute path.
type ResolverStep struct{}

func (ResolverStep) Name() string { return StepResolver }

func (ResolverStep) Run(_ context.Context, bc *Context) error {
	if len(bc.Config.Entry) == 0 {
		return errors.ConfigError("No entry points found").
			WithContext("field", "entry").
			Build()
	}
	bc.EntryPoints = make(map[string]string, len(bc.Config.Entry))
	for i, e := range bc.Config.Entry {
		bc.EntryPoints["entry"+strconv.Itoa(i)] = bc.Config.Resolve(e)
	}
	bc.Logger.Debug("Resolved entry points", logfields.Count(len(bc.EntryPoints)))
	return nil
}

// TransformerStep runs plugin buildStart hooks.
type TransformerStep struct{}

func (TransformerStep) Name() string { return StepTransformer }

func (TransformerStep) Run(ctx context.Context, bc *Context) error {
	return bc.Plugins.BuildStart(ctx, bc.BuildInfo())
}

// BundlerStep restores outputs from the cache when possible and otherwise
// invokes the bundler backend with the plugin transform hook installed.
type BundlerStep struct{}

func (BundlerStep) Name() string { return StepBundler }

func (BundlerStep) Run(ctx context.Context, bc *Context) error {
	outDir := bc.Config.OutPath()
	if bc.Cache != nil {
		key, err := bc.Cache.KeyFromFiles(ctx, entryPaths(bc.EntryPoints))
		if err != nil {
			return err
		}
		bc.CacheKey = key
		res := bc.Cache.Lookup(ctx, key)
		bc.recorder().IncCacheLookup(string(res.Tier), res.Status.String())
		if res.Status == cache.StatusHit {
			if bc.Cache.RestoreFiles(ctx, key, outDir) {
				bc.CacheHit = true
				bc.CacheTier = res.Tier
				bc.Files = restoredFiles(outDir, res.Manifest)
				bc.Logger.Info("Using cached build", logfields.CacheKey(key), logfields.Tier(string(res.Tier)))
				return nil
			}
			bc.Logger.Warn("Cached build could not be restored, rebuilding", logfields.CacheKey(key))
		}
	}

	backend := bc.Backend
	if backend == nil {
		backend = bundler.Passthrough{}
	}
	out, err := backend.Bundle(ctx, bundler.Request{
		EntryPoints: bc.EntryPoints,
		OutDir:      outDir,
		Mode:        string(bc.Config.Mode),
		Hooks:       []bundler.Hook{bundler.TransformHook{Transformer: bc.Plugins}},
	})
	if err != nil {
		return fmt.Errorf("%s bundle: %w", backend.Name(), err)
	}
	bc.Files = out.Files
	return nil
}

// OptimizerStep strips comments from emitted HTML in production builds.
type OptimizerStep struct{}

func (OptimizerStep) Name() string { return StepOptimizer }

func (OptimizerStep) Run(ctx context.Context, bc *Context) error {
	if bc.Config.Mode != config.ModeProduction || bc.CacheHit {
		return nil
	}
	n, err := optimize.Dir(ctx, bc.Config.OutPath())
	if err != nil {
		return err
	}
	bc.Optimized = n
	if n > 0 {
		bc.Logger.Debug("Optimized HTML outputs", logfields.Count(n))
	}
	return nil
}

// ReporterStep writes the build report and changelog into the output
// directory. Failures are logged and do not fail the build.
type ReporterStep struct{}

func (ReporterStep) Name() string { return StepReporter }

func (ReporterStep) Run(ctx context.Context, bc *Context) error {
	if !bc.Config.ReportEnabled() {
		return nil
	}
	written, err := report.Write(ctx, report.Input{
		BuildID:   bc.BuildID,
		Mode:      string(bc.Config.Mode),
		Root:      bc.Config.Root,
		OutDir:    bc.Config.OutPath(),
		StartedAt: bc.StartedAt,
		Duration:  time.Since(bc.StartedAt),
		Files:     bc.Files,
		CacheHit:  bc.CacheHit,
		Changelog: bc.Config.ChangelogEnabled(),
		HTML:      bc.Config.Report.HTML,
		Commits:   bc.Config.Report.Commits,
	}, bc.Logger)
	bc.Artifacts = append(bc.Artifacts, written...)
	if err != nil {
		bc.Logger.Warn("Build report failed", logfields.Error(err))
	}
	return nil
}

// OutputterStep stores a fresh build in the cache and runs buildEnd hooks.
type OutputterStep struct{}

func (OutputterStep) Name() string { return StepOutputter }

func (OutputterStep) Run(ctx context.Context, bc *Context) error {
	defer bc.Plugins.BuildEnd(ctx, bc.BuildInfo())

	if bc.Cache == nil || bc.CacheKey == "" {
		return nil
	}
	if bc.CacheHit {
		bc.Logger.Debug("Outputs restored from cache, skipping store", logfields.CacheKey(bc.CacheKey))
		return nil
	}
	outDir := bc.Config.OutPath()
	files, err := listFiles(outDir)
	if err != nil {
		bc.Logger.Warn("Failed to list build outputs", logfields.Path(outDir), logfields.Error(err))
		return nil
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = filepath.Base(f)
	}
	if err := bc.Cache.Put(ctx, cache.NewManifest(bc.CacheKey, outDir, names)); err != nil {
		bc.Logger.Warn("Failed to write cache manifest", logfields.CacheKey(bc.CacheKey), logfields.Error(err))
		return nil
	}
	stored := bc.Cache.PutFiles(ctx, bc.CacheKey, files)
	bc.Logger.Info("Cached build outputs", logfields.CacheKey(bc.CacheKey), logfields.Count(stored))
	return nil
}

func entryPaths(eps map[string]string) []string {
	paths := make([]string, 0, len(eps))
	for _, p := range eps {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func restoredFiles(outDir string, m *cache.Manifest) []string {
	if m == nil {
		return nil
	}
	files := make([]string, len(m.Files))
	for i, name := range m.Files {
		files[i] = filepath.Join(outDir, name)
	}
	return files
}

// listFiles returns the regular files directly inside dir, sorted.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Type()&fs.ModeType != 0 {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}
