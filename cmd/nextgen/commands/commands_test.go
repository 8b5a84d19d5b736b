package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/nextgen/internal/build"
	"git.home.luguber.info/inful/nextgen/internal/config"
	"git.home.luguber.info/inful/nextgen/internal/eventstore"
	"git.home.luguber.info/inful/nextgen/internal/foundation/errors"
)

func TestParseLogLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	assert.Equal(t, slog.LevelInfo, ParseLogLevel(false))
	assert.Equal(t, slog.LevelDebug, ParseLogLevel(true))

	t.Setenv(EnvLogLevel, "WARN")
	assert.Equal(t, slog.LevelWarn, ParseLogLevel(true))
}

func TestParseMode(t *testing.T) {
	m, err := parseMode("")
	require.NoError(t, err)
	assert.Empty(t, m)

	m, err = parseMode("Production")
	require.NoError(t, err)
	assert.Equal(t, config.ModeProduction, m)

	_, err = parseMode("staging")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestSummary(t *testing.T) {
	res := &build.BuildResult{
		Status:     build.BuildStatusCached,
		BuildID:    "b1",
		OutputPath: "/out",
		Files:      []string{"entry0.js"},
		CacheKey:   "abc",
		CacheHit:   true,
		CacheTier:  "remote",
		Duration:   1500 * time.Microsecond,
	}
	assert.Equal(t, "Build cached in 2ms: 1 file(s) in /out, cache hit (remote) [b1]", summary(res))

	res.CacheKey = ""
	assert.Contains(t, summary(res), "cache off")
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	var cli CLI
	g := &Global{Ctx: context.Background(), Logger: slog.Default()}
	parser, err := kong.New(&cli, kong.Vars{"version": "test"}, kong.Bind(g))
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	return kctx.Run(g, &cli)
}

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "main.tsx"), []byte(`console.log("hi")`), 0o600))
	cfg := `entry: [src/main.tsx]
plugins:
  - name: console-debug
report:
  changelog: false
events:
  historyDb: .nextgen_cache/history.db
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nextgen.build.yaml"), []byte(cfg), 0o600))
	return dir
}

func TestBuildCommandRecordsHistory(t *testing.T) {
	dir := writeProject(t)

	require.NoError(t, run(t, "-c", dir, "build"))
	require.NoError(t, run(t, "-c", dir, "build"))

	out, err := os.ReadFile(filepath.Join(dir, config.DefaultOutDir, "entry0.js"))
	require.NoError(t, err)
	assert.Equal(t, `console.debug("hi")`, string(out))

	store, err := eventstore.NewSQLiteStore(filepath.Join(dir, ".nextgen_cache", "history.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	proj := eventstore.NewBuildHistoryProjection(store, 10)
	require.NoError(t, proj.Rebuild(context.Background()))
	history := proj.GetHistory()
	require.Len(t, history, 2)

	var statuses []string
	for _, b := range history {
		statuses = append(statuses, b.Status)
	}
	assert.ElementsMatch(t, []string{eventstore.StatusCompleted, eventstore.StatusCached}, statuses)

	require.NoError(t, run(t, "-c", dir, "history"))
	require.NoError(t, run(t, "-c", dir, "history", history[0].BuildID))
}

func TestCacheCommands(t *testing.T) {
	dir := writeProject(t)
	require.NoError(t, run(t, "-c", dir, "build"))

	require.NoError(t, run(t, "-c", dir, "cache", "key"))
	require.NoError(t, run(t, "-c", dir, "cache", "ls"))

	err := run(t, "-c", dir, "cache", "restore", "not-a-key!")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))

	require.NoError(t, run(t, "-c", dir, "cache", "prune", "--older-than", "1h"))
}

func TestHistoryRequiresDatabase(t *testing.T) {
	dir := t.TempDir()
	err := run(t, "-c", dir, "history")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestPluginCheck(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "p.js")
	src := `module.exports = { name: "shout", version: "1.0.0", transform(code) { return code.toUpperCase(); } };`
	require.NoError(t, os.WriteFile(file, []byte(src), 0o600))

	require.NoError(t, run(t, "-c", dir, "plugin", "check", file))

	bad := filepath.Join(dir, "bad.js")
	require.NoError(t, os.WriteFile(bad, []byte(`module.exports = {}`), 0o600))
	require.Error(t, run(t, "-c", dir, "plugin", "check", bad))
}
