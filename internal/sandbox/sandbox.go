package sandbox

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/dop251/goja"

	"git.home.luguber.info/inful/nextgen/internal/logfields"
	"git.home.luguber.info/inful/nextgen/internal/permissions"
)

// DefaultTimeout bounds a single Run or Call when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Options configures a Sandbox.
type Options struct {
	Timeout    time.Duration
	Logger     *slog.Logger
	HTTPClient *http.Client
	// Environ supplies the host environment; defaults to os.Environ.
	Environ func() []string
}

// Sandbox owns one goja runtime bound to one permission manager.
// Calls are serialised; a Sandbox must not be shared between plugins.
type Sandbox struct {
	mu       sync.Mutex
	vm       *goja.Runtime
	perms    *permissions.Manager
	opts     Options
	logger   *slog.Logger
	module   *goja.Object
	filename string
	runCtx   context.Context
	// afterFunc schedules the timeout callback; time.AfterFunc outside tests.
	afterFunc func(time.Duration, func()) *time.Timer
}

// New creates a sandbox and installs its globals.
func New(perms *permissions.Manager, opts Options) *Sandbox {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Environ == nil {
		opts.Environ = os.Environ
	}
	s := &Sandbox{
		vm:     goja.New(),
		perms:  perms,
		opts:   opts,
		logger: opts.Logger,
		runCtx: context.Background(),

		afterFunc: time.AfterFunc,
	}
	s.install()
	return s
}

// Permissions returns the manager consulted by the sandbox bindings.
func (s *Sandbox) Permissions() *permissions.Manager { return s.perms }

// Runtime exposes the underlying runtime for value inspection. Callers must
// not execute code on it directly; use Call.
func (s *Sandbox) Runtime() *goja.Runtime { return s.vm }

func (s *Sandbox) install() {
	s.module = s.vm.NewObject()
	exports := s.vm.NewObject()
	mustSet(s.module, "exports", exports)

	mustSet(s.vm, "console", s.consoleObject())
	mustSet(s.vm, "process", s.processObject())
	mustSet(s.vm, "require", s.require)
	mustSet(s.vm, "fetch", s.fetch)
	mustSet(s.vm, "module", s.module)
	mustSet(s.vm, "exports", exports)
}

type setter interface {
	Set(name string, value any) error
}

// mustSet only fails on frozen targets, which never occurs for fresh objects.
func mustSet(target setter, name string, value any) {
	if err := target.Set(name, value); err != nil {
		panic(err)
	}
}

// Run executes source as a script named filename and returns module.exports.
func (s *Sandbox) Run(ctx context.Context, source, filename string) (goja.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filename = filename
	_, err := s.guard(ctx, func() (goja.Value, error) {
		return s.vm.RunScript(filename, source)
	})
	if err != nil {
		return nil, err
	}
	return s.module.Get("exports"), nil
}

// Call invokes fn inside the sandbox under the same timeout and cancellation
// rules as Run. Go arguments are converted with the runtime's ToValue.
func (s *Sandbox) Call(ctx context.Context, fn goja.Callable, this goja.Value, args ...any) (goja.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := make([]goja.Value, len(args))
	for i, a := range args {
		values[i] = s.vm.ToValue(a)
	}
	if this == nil {
		this = goja.Undefined()
	}
	return s.guard(ctx, func() (goja.Value, error) {
		return fn(this, values...)
	})
}

type timeoutSignal struct{}

func (s *Sandbox) guard(ctx context.Context, fn func() (goja.Value, error)) (goja.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.runCtx = ctx
	defer func() { s.runCtx = context.Background() }()

	// A callback that starts after fn has returned must not interrupt the
	// next call, so interrupts are only delivered while this call is live.
	var (
		imu  sync.Mutex
		done bool
	)
	interrupt := func(v any) {
		imu.Lock()
		defer imu.Unlock()
		if !done {
			s.vm.Interrupt(v)
		}
	}
	timer := s.afterFunc(s.opts.Timeout, func() { interrupt(timeoutSignal{}) })
	stop := context.AfterFunc(ctx, func() { interrupt(ctx.Err()) })

	v, err := fn()

	imu.Lock()
	done = true
	imu.Unlock()
	timer.Stop()
	stop()
	s.vm.ClearInterrupt()

	if err == nil {
		return v, nil
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		switch reason := interrupted.Value().(type) {
		case timeoutSignal:
			s.logger.Warn("Sandbox execution timed out",
				logfields.Plugin(s.filename), logfields.Duration(s.opts.Timeout))
			return nil, &TimeoutError{Filename: s.filename, Timeout: s.opts.Timeout}
		case error:
			return nil, reason
		}
	}
	return nil, err
}

// throw raises err as a JavaScript exception that unwraps back to err in Go.
func (s *Sandbox) throw(err error) {
	panic(s.vm.NewGoError(err))
}

func (s *Sandbox) currentContext() context.Context {
	if s.runCtx == nil {
		return context.Background()
	}
	return s.runCtx
}
