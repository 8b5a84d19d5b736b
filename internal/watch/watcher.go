// Package watch rebuilds a project when its sources change and runs periodic
// housekeeping while it does.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/nextgen/internal/logfields"
)

// DefaultIgnore lists directory names never watched.
var DefaultIgnore = []string{".git", "node_modules"}

// Options configures a Watcher.
type Options struct {
	Root string
	// Ignore holds absolute directories whose subtrees are skipped, in
	// addition to any directory named in DefaultIgnore.
	Ignore   []string
	Debounce time.Duration
	// OnChange runs after the debounce window closes. Calls never overlap.
	OnChange func(ctx context.Context, changed []string)
	Logger   *slog.Logger
}

// Watcher observes a directory tree and reports debounced batches of changes.
type Watcher struct {
	opts    Options
	fsw     *fsnotify.Watcher
	trigger chan struct{}

	mu      sync.Mutex
	pending map[string]struct{}
}

// New creates a watcher over opts.Root and every subdirectory not ignored.
func New(opts Options) (*Watcher, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch root: %w", err)
	}
	opts.Root = root

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		opts:    opts,
		fsw:     fsw,
		trigger: make(chan struct{}, 1),
		pending: make(map[string]struct{}),
	}
	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) ignored(dir string) bool {
	if slices.Contains(DefaultIgnore, filepath.Base(dir)) {
		return true
	}
	for _, ig := range w.opts.Ignore {
		if dir == ig || strings.HasPrefix(dir, ig+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// Run processes events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsw.Close() }()
	w.opts.Logger.Info("Watching for changes", logfields.Path(w.opts.Root), logfields.Duration(w.opts.Debounce))

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.opts.Logger.Error("File watcher error", logfields.Error(err))
		case <-w.trigger:
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.opts.Debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			if changed := w.drain(); len(changed) > 0 && w.opts.OnChange != nil {
				w.opts.OnChange(ctx, changed)
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if w.ignored(filepath.Dir(path)) || w.ignored(path) {
		return
	}
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
		return
	}
	if ev.Has(fsnotify.Create) {
		// New directories need their own watch.
		if err := w.addTree(path); err != nil {
			w.opts.Logger.Debug("Not watching new path", logfields.Path(path), logfields.Error(err))
		}
	}
	w.opts.Logger.Debug("Change detected", logfields.Path(path), slog.String("op", ev.Op.String()))

	w.mu.Lock()
	w.pending[path] = struct{}{}
	w.mu.Unlock()
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *Watcher) drain() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.pending))
	for p := range w.pending {
		out = append(out, p)
	}
	clear(w.pending)
	slices.Sort(out)
	return out
}
