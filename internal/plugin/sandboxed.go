package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dop251/goja"

	"git.home.luguber.info/inful/nextgen/internal/permissions"
	"git.home.luguber.info/inful/nextgen/internal/sandbox"
)

// ErrMissingName is returned when sandboxed source exports no name.
var ErrMissingName = errors.New("Sandboxed plugin must export a 'name' property.") //nolint:staticcheck // message is shown verbatim to plugin authors

// LoadOptions configures LoadSandboxedPlugin.
type LoadOptions struct {
	Filename    string
	Root        string
	Containment permissions.Containment
	Timeout     time.Duration
	Logger      *slog.Logger
	HTTPClient  *http.Client
	Environ     func() []string
}

// SandboxedPlugin drives hooks exported by untrusted JavaScript.
type SandboxedPlugin struct {
	meta       Metadata
	sb         *sandbox.Sandbox
	this       goja.Value
	transform  goja.Callable
	buildStart goja.Callable
	buildEnd   goja.Callable
}

// LoadSandboxedPlugin evaluates source in a fresh sandbox built from set and
// returns the plugin it exports. The plugin object is taken from
// exports.default, then exports.plugin, then exports itself. The result is
// not registered anywhere.
func LoadSandboxedPlugin(ctx context.Context, source string, set permissions.Set, opts LoadOptions) (*SandboxedPlugin, error) {
	if opts.Filename == "" {
		opts.Filename = "plugin.js"
	}
	mgr := permissions.NewManager(set,
		permissions.WithRoot(opts.Root),
		permissions.WithContainment(opts.Containment))
	sb := sandbox.New(mgr, sandbox.Options{
		Timeout:    opts.Timeout,
		Logger:     opts.Logger,
		HTTPClient: opts.HTTPClient,
		Environ:    opts.Environ,
	})

	exports, err := sb.Run(ctx, source, opts.Filename)
	if err != nil {
		return nil, err
	}

	vm := sb.Runtime()
	obj := pluginObject(vm, exports)
	if obj == nil {
		return nil, ErrMissingName
	}
	name := obj.Get("name")
	if isAbsent(name) || name.String() == "" {
		return nil, ErrMissingName
	}

	granted := set
	p := &SandboxedPlugin{
		meta: Metadata{
			Name:        name.String(),
			Type:        PluginTypeSandboxed,
			Permissions: &granted,
		},
		sb:   sb,
		this: obj,
	}
	if v := obj.Get("version"); !isAbsent(v) {
		p.meta.Version = v.String()
	}
	if v := obj.Get("description"); !isAbsent(v) {
		p.meta.Description = v.String()
	}
	p.transform, _ = goja.AssertFunction(obj.Get("transform"))
	p.buildStart, _ = goja.AssertFunction(obj.Get("buildStart"))
	p.buildEnd, _ = goja.AssertFunction(obj.Get("buildEnd"))
	return p, nil
}

func pluginObject(vm *goja.Runtime, exports goja.Value) *goja.Object {
	if isAbsent(exports) {
		return nil
	}
	obj := exports.ToObject(vm)
	for _, key := range []string{"default", "plugin"} {
		if v := obj.Get(key); !isAbsent(v) {
			if o, ok := v.(*goja.Object); ok {
				return o
			}
		}
	}
	return obj
}

func isAbsent(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

func (p *SandboxedPlugin) Metadata() Metadata { return p.meta }

// Hooks lists the hooks the script exported.
func (p *SandboxedPlugin) Hooks() []Hook {
	var hooks []Hook
	if p.buildStart != nil {
		hooks = append(hooks, HookBuildStart)
	}
	if p.transform != nil {
		hooks = append(hooks, HookTransform)
	}
	if p.buildEnd != nil {
		hooks = append(hooks, HookBuildEnd)
	}
	return hooks
}

// Transform calls the exported transform. Strings replace the code;
// undefined, null and "" leave it unchanged. A settled promise is unwrapped.
func (p *SandboxedPlugin) Transform(ctx context.Context, code, id string) (string, error) {
	if p.transform == nil {
		return "", nil
	}
	v, err := p.sb.Call(ctx, p.transform, p.this, code, id)
	if err != nil {
		return "", err
	}
	v, err = settle(v)
	if err != nil {
		return "", err
	}
	if isAbsent(v) {
		return "", nil
	}
	s, ok := v.Export().(string)
	if !ok {
		return "", fmt.Errorf("transform returned %s, expected a string", v.ExportType())
	}
	return s, nil
}

func (p *SandboxedPlugin) BuildStart(ctx context.Context, info BuildInfo) error {
	return p.callLifecycle(ctx, p.buildStart, info)
}

func (p *SandboxedPlugin) BuildEnd(ctx context.Context, info BuildInfo) error {
	return p.callLifecycle(ctx, p.buildEnd, info)
}

func (p *SandboxedPlugin) callLifecycle(ctx context.Context, fn goja.Callable, info BuildInfo) error {
	if fn == nil {
		return nil
	}
	v, err := p.sb.Call(ctx, fn, p.this, info.Fields())
	if err != nil {
		return err
	}
	_, err = settle(v)
	return err
}

func settle(v goja.Value) (goja.Value, error) {
	if isAbsent(v) {
		return v, nil
	}
	promise, ok := v.Export().(*goja.Promise)
	if !ok {
		return v, nil
	}
	switch promise.State() {
	case goja.PromiseStateFulfilled:
		return promise.Result(), nil
	case goja.PromiseStateRejected:
		if err, ok := promise.Result().Export().(error); ok {
			return nil, err
		}
		return nil, fmt.Errorf("promise rejected: %s", promise.Result().String())
	default:
		return nil, fmt.Errorf("hook returned a promise that never settled")
	}
}
