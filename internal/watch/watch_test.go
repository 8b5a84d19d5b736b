package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batches struct {
	mu  sync.Mutex
	got [][]string
}

func (b *batches) add(_ context.Context, changed []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, changed)
}

func (b *batches) snapshot() [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]string(nil), b.got...)
}

func TestWatcherDebouncesChanges(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(src, 0o750))

	var b batches
	w, err := New(Options{Root: root, Debounce: 100 * time.Millisecond, OnChange: b.add})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := range 3 {
		require.NoError(t, os.WriteFile(filepath.Join(src, "main.tsx"), []byte{byte('a' + i)}, 0o600))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return len(b.snapshot()) > 0 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(250 * time.Millisecond)
	got := b.snapshot()
	assert.Len(t, got, 1)
	assert.Contains(t, got[0], filepath.Join(src, "main.tsx"))

	cancel()
	require.NoError(t, <-done)
}

func TestWatcherSkipsIgnoredTrees(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "build_output")
	require.NoError(t, os.MkdirAll(out, 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "x"), 0o750))

	var b batches
	w, err := New(Options{Root: root, Ignore: []string{out}, Debounce: 50 * time.Millisecond, OnChange: b.add})
	require.NoError(t, err)
	assert.True(t, w.ignored(out))
	assert.True(t, w.ignored(filepath.Join(out, "nested")))
	assert.True(t, w.ignored(filepath.Join(root, "node_modules")))
	assert.False(t, w.ignored(filepath.Join(root, "src")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(out, "entry0.js"), []byte("x"), 0o600))
	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, b.snapshot())

	cancel()
	require.NoError(t, <-done)
}

func TestLoopBuildsOnStartAndChange(t *testing.T) {
	root := t.TempDir()
	var builds atomic.Int32
	var prunes atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Loop(ctx, LoopOptions{
			Watch: Options{Root: root, Debounce: 50 * time.Millisecond},
			Build: func(context.Context) error {
				builds.Add(1)
				return nil
			},
			Prune: func(context.Context) error {
				prunes.Add(1)
				return nil
			},
			PruneInterval: 50 * time.Millisecond,
		})
	}()

	require.Eventually(t, func() bool { return builds.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.tsx"), []byte("x"), 0o600))
	require.Eventually(t, func() bool { return builds.Load() >= 2 }, 3*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool { return prunes.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestSchedulerRegistersNamedJobs(t *testing.T) {
	s, err := NewScheduler(nil)
	require.NoError(t, err)
	id, err := s.Every(context.Background(), "cache-prune", time.Hour, func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, []string{"cache-prune"}, s.Jobs())
	s.Start()
	require.NoError(t, s.Stop())
}
