package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/nextgen/internal/config"
	ferrors "git.home.luguber.info/inful/nextgen/internal/foundation/errors"
	"git.home.luguber.info/inful/nextgen/internal/permissions"
	"git.home.luguber.info/inful/nextgen/internal/plugin"
)

type funcStep struct {
	name string
	fn   func(ctx context.Context, bc *Context) error
}

func (s funcStep) Name() string { return s.name }

func (s funcStep) Run(ctx context.Context, bc *Context) error { return s.fn(ctx, bc) }

func recordingStep(name string, ran *[]string, err error) funcStep {
	return funcStep{name: name, fn: func(context.Context, *Context) error {
		*ran = append(*ran, name)
		return err
	}}
}

type recordingObserver struct {
	NoopObserver
	completed []string
	failed    []string
	buildErr  error
	finished  bool
}

func (o *recordingObserver) OnStepComplete(_ *Context, step string, _ time.Duration, err error) {
	if err != nil {
		o.failed = append(o.failed, step)
		return
	}
	o.completed = append(o.completed, step)
}

func (o *recordingObserver) OnBuildComplete(_ *Context, _ time.Duration, err error) {
	o.finished = true
	o.buildErr = err
}

func newContext(t *testing.T) *Context {
	t.Helper()
	return &Context{Config: config.Default(t.TempDir())}
}

func TestExecuteRunsStepsInOrder(t *testing.T) {
	var ran []string
	obs := &recordingObserver{}
	p := New(WithObserver(obs)).
		AddStep(recordingStep("a", &ran, nil)).
		AddStep(recordingStep("b", &ran, nil)).
		AddStep(recordingStep("c", &ran, nil))

	bc := newContext(t)
	require.NoError(t, p.Execute(context.Background(), bc))
	assert.Equal(t, []string{"a", "b", "c"}, ran)
	assert.Equal(t, []string{"a", "b", "c"}, p.Steps())
	assert.Equal(t, ran, obs.completed)
	assert.True(t, obs.finished)
	assert.NoError(t, obs.buildErr)
	assert.NotEmpty(t, bc.BuildID)
	assert.False(t, bc.StartedAt.IsZero())
}

func TestExecuteAbortsOnFirstFailure(t *testing.T) {
	boom := errors.New("boom")
	var ran []string
	obs := &recordingObserver{}
	p := New(WithObserver(obs)).
		AddStep(recordingStep("first", &ran, nil)).
		AddStep(recordingStep("second", &ran, boom)).
		AddStep(recordingStep("third", &ran, nil))

	err := p.Execute(context.Background(), newContext(t))
	require.Error(t, err)

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "second", se.Step)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first", "second"}, ran)
	assert.Equal(t, []string{"second"}, obs.failed)
	assert.Equal(t, err, obs.buildErr)
}

func TestExecuteChecksContextBeforeEachStep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var ran []string
	p := New().
		AddStep(funcStep{name: "cancel", fn: func(context.Context, *Context) error {
			ran = append(ran, "cancel")
			cancel()
			return nil
		}}).
		AddStep(recordingStep("never", &ran, nil))

	err := p.Execute(ctx, newContext(t))
	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "never", se.Step)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"cancel"}, ran)
	assert.Equal(t, ferrors.CategoryRuntime, se.ErrorCategory())
}

func TestExecuteSealsPluginManager(t *testing.T) {
	bc := newContext(t)
	bc.Plugins = plugin.NewManager(nil)
	require.NoError(t, New().Execute(context.Background(), bc))
	assert.True(t, bc.Plugins.Sealed())
	assert.ErrorIs(t, bc.Plugins.Register(plugin.TransformFunc{
		Meta: plugin.Metadata{Name: "late", Type: plugin.PluginTypeBuiltin},
	}), plugin.ErrSealed)
}

func TestStepErrorCategory(t *testing.T) {
	denied := &plugin.PluginError{
		PluginName: "strip",
		Operation:  "transform",
		Err:        &permissions.DeniedError{Kind: permissions.KindRead, Target: "/etc/passwd"},
	}
	se := &StepError{Step: StepBundler, Err: denied}
	assert.Equal(t, ferrors.CategoryPermission, se.ErrorCategory())
	assert.Contains(t, se.Error(), "step Bundler failed")

	cfgErr := ferrors.ConfigError("bad").Build()
	assert.Equal(t, ferrors.CategoryConfig, (&StepError{Step: "x", Err: cfgErr}).ErrorCategory())
	assert.Equal(t, ferrors.CategoryBuild, (&StepError{Step: "x", Err: errors.New("x")}).ErrorCategory())
}
