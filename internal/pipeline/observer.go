package pipeline

import (
	"context"
	stderrors "errors"
	"time"

	"git.home.luguber.info/inful/nextgen/internal/metrics"
)

// Observer is notified as a build progresses. Implementations must not block.
type Observer interface {
	OnBuildStart(bc *Context)
	OnStepStart(bc *Context, step string)
	OnStepComplete(bc *Context, step string, d time.Duration, err error)
	OnBuildComplete(bc *Context, d time.Duration, err error)
}

// NoopObserver ignores every notification.
type NoopObserver struct{}

func (NoopObserver) OnBuildStart(*Context)                                  {}
func (NoopObserver) OnStepStart(*Context, string)                           {}
func (NoopObserver) OnStepComplete(*Context, string, time.Duration, error) {}
func (NoopObserver) OnBuildComplete(*Context, time.Duration, error)        {}

// MultiObserver fans notifications out in order.
type MultiObserver []Observer

func (m MultiObserver) OnBuildStart(bc *Context) {
	for _, o := range m {
		o.OnBuildStart(bc)
	}
}

func (m MultiObserver) OnStepStart(bc *Context, step string) {
	for _, o := range m {
		o.OnStepStart(bc, step)
	}
}

func (m MultiObserver) OnStepComplete(bc *Context, step string, d time.Duration, err error) {
	for _, o := range m {
		o.OnStepComplete(bc, step, d, err)
	}
}

func (m MultiObserver) OnBuildComplete(bc *Context, d time.Duration, err error) {
	for _, o := range m {
		o.OnBuildComplete(bc, d, err)
	}
}

// RecorderObserver feeds step and build timings into a metrics.Recorder.
type RecorderObserver struct {
	Recorder metrics.Recorder
}

func (RecorderObserver) OnBuildStart(*Context)        {}
func (RecorderObserver) OnStepStart(*Context, string) {}

func (r RecorderObserver) OnStepComplete(_ *Context, step string, d time.Duration, err error) {
	if r.Recorder == nil {
		return
	}
	r.Recorder.ObserveStepDuration(step, d)
	r.Recorder.IncStepResult(step, resultLabel(err))
}

func (r RecorderObserver) OnBuildComplete(bc *Context, d time.Duration, err error) {
	if r.Recorder == nil {
		return
	}
	r.Recorder.ObserveBuildDuration(d)
	switch {
	case err == nil && bc.CacheHit:
		r.Recorder.IncBuildOutcome(metrics.OutcomeCached)
	case err == nil:
		r.Recorder.IncBuildOutcome(metrics.OutcomeBuilt)
	case isCanceled(err):
		r.Recorder.IncBuildOutcome(metrics.OutcomeCanceled)
	default:
		r.Recorder.IncBuildOutcome(metrics.OutcomeFailed)
	}
}

func resultLabel(err error) metrics.ResultLabel {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case isCanceled(err):
		return metrics.ResultCanceled
	default:
		return metrics.ResultFailed
	}
}

func isCanceled(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}
