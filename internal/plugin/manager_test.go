package plugin

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/nextgen/internal/foundation/errors"
	"git.home.luguber.info/inful/nextgen/internal/permissions"
)

func fn(name string, f func(code string) (string, error)) TransformFunc {
	return TransformFunc{
		Meta: Metadata{Name: name, Type: PluginTypeBuiltin},
		Fn: func(_ context.Context, code, _ string) (string, error) {
			return f(code)
		},
	}
}

type lifecycle struct {
	TransformFunc
	started, ended *[]string
	startErr       error
}

func (l lifecycle) BuildStart(_ context.Context, info BuildInfo) error {
	*l.started = append(*l.started, l.Meta.Name+":"+info.BuildID)
	return l.startErr
}

func (l lifecycle) BuildEnd(_ context.Context, _ BuildInfo) error {
	*l.ended = append(*l.ended, l.Meta.Name)
	return errors.New("ignored")
}

func TestTransformFoldsInRegistrationOrder(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.Register(fn("a", func(c string) (string, error) { return c + "A", nil })))
	require.NoError(t, m.Register(fn("b", func(c string) (string, error) { return c + "B", nil })))

	out, err := m.Transform(context.Background(), "x", "x.js")
	require.NoError(t, err)
	assert.Equal(t, "xAB", out)
}

func TestTransformEmptyResultKeepsCode(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.Register(fn("noop", func(string) (string, error) { return "", nil })))
	require.NoError(t, m.Register(fn("upper", func(c string) (string, error) { return strings.ToUpper(c), nil })))

	out, err := m.Transform(context.Background(), "abc", "a.js")
	require.NoError(t, err)
	assert.Equal(t, "ABC", out)
}

func TestTransformErrorAbortsFold(t *testing.T) {
	denied := &permissions.DeniedError{Kind: permissions.KindRead, Target: "/etc/passwd"}
	calls := 0
	m := NewManager(nil)
	require.NoError(t, m.Register(fn("boom", func(string) (string, error) { return "", denied })))
	require.NoError(t, m.Register(fn("after", func(c string) (string, error) { calls++; return c, nil })))

	_, err := m.Transform(context.Background(), "code", "a.js")
	require.Error(t, err)
	assert.Zero(t, calls)

	var perr *PluginError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "boom", perr.PluginName)
	assert.Equal(t, "transform", perr.Operation)
	assert.ErrorIs(t, err, denied)
	assert.Equal(t, ferrors.CategoryPermission, perr.ErrorCategory())

	plain := &PluginError{PluginName: "x", Operation: "transform", Err: errors.New("bad")}
	assert.Equal(t, ferrors.CategoryPlugin, plain.ErrorCategory())
}

func TestRegisterAfterSealFails(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.Register(fn("a", func(c string) (string, error) { return c, nil })))
	m.Seal()

	err := m.Register(fn("late", func(c string) (string, error) { return c, nil }))
	require.ErrorIs(t, err, ErrSealed)
	assert.Len(t, m.Plugins(), 1)
	assert.True(t, m.Sealed())
}

func TestRegisterRejectsInvalid(t *testing.T) {
	m := NewManager(nil)
	require.Error(t, m.Register(nil))
	require.Error(t, m.Register(TransformFunc{Meta: Metadata{Type: PluginTypeBuiltin}}))
	require.Error(t, m.Register(TransformFunc{Meta: Metadata{Name: "x", Type: "remote"}}))
}

func TestLifecycleHooks(t *testing.T) {
	var started, ended []string
	m := NewManager(nil)
	require.NoError(t, m.Register(lifecycle{TransformFunc: fn("one", nil), started: &started, ended: &ended}))
	require.NoError(t, m.Register(lifecycle{TransformFunc: fn("two", nil), started: &started, ended: &ended, startErr: errors.New("nope")}))

	err := m.BuildStart(context.Background(), BuildInfo{BuildID: "b1"})
	var perr *PluginError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "two", perr.PluginName)
	assert.Equal(t, []string{"one:b1", "two:b1"}, started)

	m.BuildEnd(context.Background(), BuildInfo{})
	assert.Equal(t, []string{"one", "two"}, ended)

	assert.Equal(t, []Hook{HookBuildStart, HookTransform, HookBuildEnd}, Hooks(m.Plugins()[0]))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	factory := func(map[string]any) (Plugin, error) {
		return fn("f", func(c string) (string, error) { return c, nil }), nil
	}
	require.NoError(t, reg.Register("f", factory))
	require.Error(t, reg.Register("f", factory))
	require.Error(t, reg.Register("", factory))
	require.Error(t, reg.Register("g", nil))

	assert.True(t, reg.Has("f"))
	assert.Equal(t, []string{"f"}, reg.Names())

	p, err := reg.New("f", nil)
	require.NoError(t, err)
	assert.Equal(t, "f", p.Metadata().Name)

	_, err = reg.New("missing", nil)
	require.Error(t, err)
}
