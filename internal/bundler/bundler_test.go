package bundler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upper struct{ calls []string }

func (u *upper) Transform(_ context.Context, code, id string) (string, error) {
	u.calls = append(u.calls, filepath.Base(id))
	return strings.ToUpper(code), nil
}

type failing struct{}

func (failing) Transform(context.Context, string, string) (string, error) {
	return "", errors.New("transform exploded")
}

func TestTransformHookFilters(t *testing.T) {
	h := TransformHook{}
	for path, want := range map[string]bool{
		"src/main.ts":                 true,
		"src/App.tsx":                 true,
		"src/a.js":                    true,
		"src/b.jsx":                   true,
		"src/c.mjs":                   true,
		"src/style.css":               false,
		"README.md":                   false,
		"node_modules/react/index.js": false,
		"/abs/node_modules/x/y.ts":    false,
		"src/my_node_modules/x.ts":    true,
	} {
		assert.Equal(t, want, h.Applies(path), path)
	}
}

func TestPassthroughRunsHooks(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "main.ts"), []byte("console.log(1)"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(src, "styles.css"), []byte("body{}"), 0o600))
	out := filepath.Join(t.TempDir(), "dist")

	tr := &upper{}
	res, err := Passthrough{}.Bundle(context.Background(), Request{
		EntryPoints: map[string]string{
			"entry0": filepath.Join(src, "main.ts"),
			"entry1": filepath.Join(src, "styles.css"),
		},
		OutDir: out,
		Hooks:  []Hook{TransformHook{Transformer: tr}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(out, "entry0.js"), filepath.Join(out, "entry1.js")}, res.Files)
	assert.Equal(t, []string{"main.ts"}, tr.calls)

	data, err := os.ReadFile(filepath.Join(out, "entry0.js"))
	require.NoError(t, err)
	assert.Equal(t, "CONSOLE.LOG(1)", string(data))
	data, err = os.ReadFile(filepath.Join(out, "entry1.js"))
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(data))
}

func TestPassthroughPropagatesHookErrors(t *testing.T) {
	src := filepath.Join(t.TempDir(), "main.js")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o600))

	_, err := Passthrough{}.Bundle(context.Background(), Request{
		EntryPoints: map[string]string{"entry0": src},
		OutDir:      t.TempDir(),
		Hooks:       []Hook{TransformHook{Transformer: failing{}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transform exploded")
}

func TestPassthroughMissingEntry(t *testing.T) {
	_, err := Passthrough{}.Bundle(context.Background(), Request{
		EntryPoints: map[string]string{"entry0": "/no/such/file.ts"},
		OutDir:      t.TempDir(),
	})
	require.Error(t, err)
}
