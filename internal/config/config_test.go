package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/nextgen/internal/foundation/errors"
	"git.home.luguber.info/inful/nextgen/internal/permissions"
	"git.home.luguber.info/inful/nextgen/internal/retry"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvRemoteURL, "")
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, abs, cfg.Root)
	assert.Equal(t, []string{"src/main.tsx"}, cfg.Entry)
	assert.Equal(t, ModeDevelopment, cfg.Mode)
	assert.Equal(t, "build_output", cfg.OutDir)
	assert.Equal(t, filepath.Join(abs, "build_output"), cfg.OutPath())
	assert.Equal(t, filepath.Join(abs, ".nextgen_cache"), cfg.CachePath())
	assert.True(t, cfg.CacheEnabled())
	assert.True(t, cfg.ChangelogEnabled())
	assert.Equal(t, 30*time.Second, cfg.Sandbox.Timeout)
	assert.Equal(t, 300*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, "nextgen.builds", cfg.Events.Subject)
	assert.Empty(t, cfg.File)
}

func TestDiscoveryOrder(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, Discover(dir))

	write(t, dir, "nextgen.build.yml", "mode: test\n")
	assert.Equal(t, filepath.Join(dir, "nextgen.build.yml"), Discover(dir))

	write(t, dir, "nextgen.build.yaml", "mode: production\n")
	assert.Equal(t, filepath.Join(dir, "nextgen.build.yaml"), Discover(dir))

	write(t, dir, "nextgen.build.json", `{"mode": "development"}`)
	assert.Equal(t, filepath.Join(dir, "nextgen.build.json"), Discover(dir))
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "nextgen.build.json", `{
		"entry": ["src/index.ts", "src/worker.ts"],
		"mode": "production",
		"outDir": "dist",
		"plugins": [
			{"name": "console-debug"},
			{"source": "plugins/strip.js", "permissions": {"read": ["src"], "env": ["NODE_ENV"]}}
		],
		"cache": {"enabled": false, "remote": {"url": "https://cache.example.com", "timeout": "2s", "retries": 3}},
		"sandbox": {"timeout": "5s", "strictPaths": true}
	}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/index.ts", "src/worker.ts"}, cfg.Entry)
	assert.Equal(t, ModeProduction, cfg.Mode)
	assert.Equal(t, "dist", cfg.OutDir)
	require.Len(t, cfg.Plugins, 2)
	assert.Equal(t, "console-debug", cfg.Plugins[0].Name)
	assert.Equal(t, permissions.Set{Read: []string{"src"}, Env: []string{"NODE_ENV"}}, cfg.Plugins[1].Permissions)
	assert.False(t, cfg.CacheEnabled())
	assert.Equal(t, 2*time.Second, cfg.Cache.Remote.Timeout)
	assert.Equal(t, 3, cfg.RetryPolicy().MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Sandbox.Timeout)
	assert.Equal(t, permissions.ContainmentSegment, cfg.Containment())
	assert.Equal(t, filepath.Join(dir, "nextgen.build.json"), cfg.File)
}

func TestLoadYAMLExpandsEnvironment(t *testing.T) {
	t.Setenv("NEXTGEN_TEST_CACHE", "https://remote.example.com/cache")
	dir := t.TempDir()
	write(t, dir, "nextgen.build.yaml", `
mode: test
cache:
  remote:
    url: ${NEXTGEN_TEST_CACHE}
    retryMode: exponential
report:
  changelog: false
watch:
  debounce: 1s
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "https://remote.example.com/cache", cfg.Cache.Remote.URL)
	assert.Equal(t, retry.ModeExponential, cfg.RetryPolicy().Mode)
	assert.Equal(t, 1, cfg.RetryPolicy().MaxRetries)
	assert.True(t, cfg.ReportEnabled())
	assert.False(t, cfg.ChangelogEnabled())
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
}

func TestRemoteFallsBackToEnvironment(t *testing.T) {
	t.Setenv(EnvRemoteURL, "http://cache.internal:8080")
	t.Setenv(EnvRemoteToken, "tok")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "http://cache.internal:8080", cfg.Cache.Remote.URL)
	assert.Equal(t, "tok", cfg.Cache.Remote.Token)
}

func TestEnvFilesDoNotOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NEXTGEN_FROM_PROCESS", "process")
	t.Setenv("NEXTGEN_FROM_FILE", "")
	require.NoError(t, os.Unsetenv("NEXTGEN_FROM_FILE"))
	t.Setenv("NEXTGEN_LOCAL", "")
	require.NoError(t, os.Unsetenv("NEXTGEN_LOCAL"))

	write(t, dir, ".env", "NEXTGEN_FROM_PROCESS=file\nNEXTGEN_FROM_FILE=file\nNEXTGEN_LOCAL=shared\n")
	write(t, dir, ".env.local", "NEXTGEN_LOCAL=local\n")

	loaded := LoadEnvFiles(dir)
	assert.Len(t, loaded, 2)
	assert.Equal(t, "process", os.Getenv("NEXTGEN_FROM_PROCESS"))
	assert.Equal(t, "file", os.Getenv("NEXTGEN_FROM_FILE"))
	assert.Equal(t, "local", os.Getenv("NEXTGEN_LOCAL"))
}

func TestRelativeRootResolvesAgainstConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "app"), 0o750))
	path := write(t, dir, "nextgen.build.yml", "root: app\n")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "app"), cfg.Root)
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad mode", "mode: staging\n"},
		{"plugin without name or source", "plugins:\n  - options: {}\n"},
		{"plugin with both", "plugins:\n  - name: banner\n    source: x.js\n"},
		{"bad remote url", "cache:\n  remote:\n    url: ftp://example.com\n"},
		{"negative retries", "cache:\n  remote:\n    retries: -1\n"},
		{"unknown retry mode", "cache:\n  remote:\n    retryMode: random\n"},
		{"negative timeout", "sandbox:\n  timeout: -1s\n"},
		{"malformed yaml", "mode: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			write(t, dir, "nextgen.build.yml", tt.content)
			_, err := Load(dir)
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig), "got %v", err)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Default(dir)
	cfg.Mode = ModeProduction
	path := filepath.Join(dir, "nextgen.build.yml")
	require.NoError(t, Write(cfg, path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ModeProduction, loaded.Mode)
	assert.Equal(t, cfg.Sandbox.Timeout, loaded.Sandbox.Timeout)
}
