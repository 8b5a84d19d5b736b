package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/nextgen/internal/foundation/errors"
	"git.home.luguber.info/inful/nextgen/internal/logfields"
	"git.home.luguber.info/inful/nextgen/internal/plugin"
)

// Step is one unit of build work. Steps hold no state between builds.
type Step interface {
	Name() string
	Run(ctx context.Context, bc *Context) error
}

// StepError reports the step that aborted a build.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ErrorCategory reports the wrapped error's category, defaulting to build.
func (e *StepError) ErrorCategory() errors.ErrorCategory {
	var c errors.Categorizer
	if stderrors.As(e.Err, &c) {
		return c.ErrorCategory()
	}
	if classified, ok := errors.AsClassified(e.Err); ok {
		return classified.Category()
	}
	if stderrors.Is(e.Err, context.Canceled) || stderrors.Is(e.Err, context.DeadlineExceeded) {
		return errors.CategoryRuntime
	}
	return errors.CategoryBuild
}

// Pipeline executes steps strictly in order.
type Pipeline struct {
	steps    []Step
	observer Observer
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithObserver sets the observer notified around steps.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates an empty pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{observer: NoopObserver{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddStep appends s and returns p for chaining.
func (p *Pipeline) AddStep(s Step) *Pipeline {
	p.steps = append(p.steps, s)
	return p
}

// Steps returns the step names in order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Execute runs every step over bc. The plugin manager is sealed first.
// The first error, or a cancelled ctx, stops the run and is returned as *StepError.
func (p *Pipeline) Execute(ctx context.Context, bc *Context) error {
	p.prepare(bc)
	logger := bc.Logger.With(logfields.BuildID(bc.BuildID))
	logger.Info("Build started", logfields.Mode(string(bc.Config.Mode)), logfields.Count(len(p.steps)))
	p.observer.OnBuildStart(bc)

	for _, st := range p.steps {
		name := st.Name()
		if err := ctx.Err(); err != nil {
			return p.fail(logger, bc, name, 0, err)
		}

		p.observer.OnStepStart(bc, name)
		t0 := time.Now()
		err := st.Run(ctx, bc)
		dur := time.Since(t0)
		p.observer.OnStepComplete(bc, name, dur, err)

		if err != nil {
			return p.fail(logger, bc, name, dur, err)
		}
		logger.Debug("Step completed", logfields.Step(name), logfields.Duration(dur))
	}

	total := time.Since(bc.StartedAt)
	logger.Info("Build finished", logfields.Duration(total), slog.Bool("cache_hit", bc.CacheHit), logfields.Count(len(bc.Files)))
	p.observer.OnBuildComplete(bc, total, nil)
	return nil
}

func (p *Pipeline) prepare(bc *Context) {
	if bc.BuildID == "" {
		bc.BuildID = uuid.NewString()
	}
	if bc.StartedAt.IsZero() {
		bc.StartedAt = time.Now()
	}
	if bc.Logger == nil {
		bc.Logger = p.logger
	}
	if bc.Plugins == nil {
		bc.Plugins = plugin.NewManager(bc.Logger)
	}
	bc.Plugins.Seal()
}

func (p *Pipeline) fail(logger *slog.Logger, bc *Context, step string, dur time.Duration, err error) error {
	se := &StepError{Step: step, Err: err}
	logger.Error("Step failed", logfields.Step(step), logfields.Duration(dur), logfields.Error(err))
	var perr *plugin.PluginError
	if stderrors.As(err, &perr) {
		bc.recorder().IncPluginError(perr.PluginName)
	}
	p.observer.OnBuildComplete(bc, time.Since(bc.StartedAt), se)
	return se
}
