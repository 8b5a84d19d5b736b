package optimize

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripComments(t *testing.T) {
	in := "<!doctype html><html><!-- build info --><body><p>hi</p><!--x--></body></html>"
	out, err := StripComments(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, "<!doctype html><html><body><p>hi</p></body></html>", string(out))
}

func TestStripCommentsKeepsScriptText(t *testing.T) {
	in := `<script>const s = "<!-- not a comment -->";</script>`
	out, err := StripComments(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, in, string(out))
}

func TestDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>a</p><!-- c -->"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clean.html"), []byte("<p>b</p>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "entry0.js"), []byte("/* <!-- keep --> */"), 0o600))

	n, err := Dir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<p>a</p>", string(data))

	js, err := os.ReadFile(filepath.Join(dir, "entry0.js"))
	require.NoError(t, err)
	assert.Contains(t, string(js), "<!-- keep -->")
}

func TestDirMissing(t *testing.T) {
	n, err := Dir(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Zero(t, n)
}
