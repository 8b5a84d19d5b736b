package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	"git.home.luguber.info/inful/nextgen/internal/logfields"
)

// DefaultDirName is the cache directory created under the project root.
const DefaultDirName = ".nextgen_cache"

// Options configures a DiskCache.
type Options struct {
	// Dir is the cache directory; defaults to <KeyInputs.Root>/.nextgen_cache.
	Dir       string
	Remote    RemoteConfig
	KeyInputs KeyInputs
	// IndexPath defaults to <Dir>/index.db. Set NoIndex to skip it.
	IndexPath string
	NoIndex   bool
	Logger    *slog.Logger
}

// DiskCache is the two-tier build cache.
type DiskCache struct {
	local  *LocalTier
	remote *RemoteTier
	index  *Index
	inputs KeyInputs
	logger *slog.Logger
	group  singleflight.Group
}

// New opens the cache directory, the optional remote tier and the index.
// An index that cannot be opened is logged and skipped.
func New(opts Options) (*DiskCache, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dir := opts.Dir
	if dir == "" {
		dir = filepath.Join(opts.KeyInputs.Root, DefaultDirName)
	}
	local, err := NewLocalTier(dir)
	if err != nil {
		return nil, err
	}
	c := &DiskCache{
		local:  local,
		remote: NewRemoteTier(opts.Remote, logger),
		inputs: opts.KeyInputs,
		logger: logger,
	}
	if !opts.NoIndex {
		path := opts.IndexPath
		if path == "" {
			path = filepath.Join(dir, "index.db")
		}
		idx, err := OpenIndex(path)
		if err != nil {
			logger.Warn("Cache index unavailable", logfields.Path(path), logfields.Error(err))
		} else {
			c.index = idx
		}
	}
	return c, nil
}

// Close releases the index.
func (c *DiskCache) Close() error {
	if c.index == nil {
		return nil
	}
	return c.index.Close()
}

// Dir returns the local cache directory.
func (c *DiskCache) Dir() string { return c.local.Dir() }

// Local exposes the local tier.
func (c *DiskCache) Local() *LocalTier { return c.local }

// Remote exposes the remote tier; nil when not configured.
func (c *DiskCache) Remote() *RemoteTier { return c.remote }

// KeyFromFiles computes the cache key for the given entry files.
func (c *DiskCache) KeyFromFiles(ctx context.Context, paths []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return ComputeKey(paths, c.inputs), nil
}

// Lookup checks the local tier, then the remote tier.
func (c *DiskCache) Lookup(ctx context.Context, key string) Result {
	m, err := c.local.ReadManifest(key)
	switch {
	case err == nil:
		return Result{Status: StatusHit, Tier: TierLocal, Manifest: m}
	case !errors.Is(err, ErrNotFound):
		c.logger.Debug("Local manifest unreadable", logfields.CacheKey(key), logfields.Error(err))
	}
	if c.remote == nil {
		return Result{Status: StatusMiss, Tier: TierLocal}
	}
	m, err = c.remote.Manifest(ctx, key)
	switch {
	case err == nil:
		return Result{Status: StatusHit, Tier: TierRemote, Manifest: m}
	case errors.Is(err, ErrNotFound):
		return Result{Status: StatusMiss, Tier: TierRemote}
	default:
		c.logger.Warn("Remote cache lookup failed", logfields.CacheKey(key), logfields.Error(err))
		return Result{Status: StatusFailed, Tier: TierRemote, Err: err}
	}
}

// Has reports whether either tier holds a manifest for key.
func (c *DiskCache) Has(ctx context.Context, key string) bool {
	return c.Lookup(ctx, key).Status == StatusHit
}

// Get returns the manifest for key, pulling it and its artifacts from the
// remote tier into the local tier when needed. Failures yield nil.
func (c *DiskCache) Get(ctx context.Context, key string) *Manifest {
	if m, err := c.local.ReadManifest(key); err == nil {
		c.touch(ctx, key)
		return m
	}
	if c.remote == nil {
		return nil
	}
	m, err := c.pull(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("Remote cache fetch failed", logfields.CacheKey(key), logfields.Error(err))
		}
		return nil
	}
	return m
}

// pull downloads the remote manifest and artifacts into a staging directory,
// moves them into place once all have arrived, then writes the manifest
// locally. Concurrent pulls of one key share a single download.
func (c *DiskCache) pull(ctx context.Context, key string) (*Manifest, error) {
	v, err, _ := c.group.Do("pull:"+key, func() (any, error) {
		m, err := c.remote.Manifest(ctx, key)
		if err != nil {
			return nil, err
		}
		m.Key = key
		stage, err := c.local.Stage(key)
		if err != nil {
			return nil, err
		}
		defer stage.Discard()
		var total int64
		for _, f := range m.Files {
			name := filepath.Base(f)
			err := c.remote.FetchFile(ctx, key, name, func(r io.Reader) error {
				n, err := stage.WriteFile(name, r)
				total += n
				return err
			})
			if err != nil {
				return nil, err
			}
		}
		if err := stage.Commit(); err != nil {
			return nil, err
		}
		if err := c.Put(ctx, m); err != nil {
			return nil, err
		}
		c.addBytes(ctx, key, total)
		c.logger.Debug("Pulled cache entry from remote", logfields.CacheKey(key), logfields.Count(len(m.Files)))
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Manifest), nil
}

// Put writes the manifest locally, replacing any previous one.
func (c *DiskCache) Put(ctx context.Context, m *Manifest) error {
	if err := c.local.WriteManifest(m); err != nil {
		return err
	}
	if c.index != nil {
		if err := c.index.Record(ctx, m); err != nil {
			c.logger.Debug("Cache index record failed", logfields.CacheKey(m.Key), logfields.Error(err))
		}
	}
	return nil
}

// PutFiles copies files into the local tier and, best effort, uploads them.
// It returns the number stored locally; per-file failures are logged.
func (c *DiskCache) PutFiles(ctx context.Context, key string, files []string) int {
	v, _, _ := c.group.Do("put:"+key, func() (any, error) {
		stored := 0
		var total int64
		for _, f := range files {
			n, err := c.local.StoreFile(key, f)
			if err != nil {
				c.logger.Debug("Cache file store failed", logfields.CacheKey(key), logfields.Path(f), logfields.Error(err))
				continue
			}
			stored++
			total += n
			if c.remote != nil {
				_ = c.remote.UploadFile(ctx, key, filepath.Base(f), f)
			}
		}
		c.addBytes(ctx, key, total)
		return stored, nil
	})
	n, _ := v.(int)
	return n
}

// RestoreFiles copies the artifacts for key into dir, fetching them from the
// remote tier when they are not present locally.
func (c *DiskCache) RestoreFiles(ctx context.Context, key, dir string) bool {
	n, err := c.local.Restore(key, dir)
	if err == nil {
		c.touch(ctx, key)
		c.logger.Debug("Restored from local cache", logfields.CacheKey(key), logfields.Count(n))
		return true
	}
	switch {
	case errors.Is(err, ErrIncomplete):
		c.logger.Warn("Local cache entry incomplete", logfields.CacheKey(key), logfields.Error(err))
	case !errors.Is(err, ErrNotFound):
		c.logger.Warn("Local cache restore failed", logfields.CacheKey(key), logfields.Error(err))
		return false
	}
	if c.remote == nil {
		return false
	}
	if _, err := c.pull(ctx, key); err != nil {
		c.logger.Warn("Remote cache restore failed", logfields.CacheKey(key), logfields.Error(err))
		return false
	}
	if n, err = c.local.Restore(key, dir); err != nil {
		c.logger.Warn("Cache restore failed after remote pull", logfields.CacheKey(key), logfields.Error(err))
		return false
	}
	c.logger.Debug("Restored from remote cache", logfields.CacheKey(key), logfields.Count(n))
	return true
}

// List returns index entries, or entries derived from manifests when the
// index is unavailable.
func (c *DiskCache) List(ctx context.Context) ([]Entry, error) {
	if c.index != nil {
		return c.index.List(ctx)
	}
	keys, err := c.local.Keys()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		m, err := c.local.ReadManifest(k)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Key: k, OutDir: m.OutDir, Files: len(m.Files), Created: m.CreatedAt(), LastUsed: m.CreatedAt()})
	}
	return entries, nil
}

// Prune removes local entries not used within olderThan and returns how many were removed.
func (c *DiskCache) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	var keys []string
	if c.index != nil {
		stale, err := c.index.Stale(ctx, cutoff)
		if err != nil {
			return 0, err
		}
		keys = stale
	} else {
		entries, err := c.List(ctx)
		if err != nil {
			return 0, err
		}
		for _, e := range entries {
			if e.LastUsed.Before(cutoff) {
				keys = append(keys, e.Key)
			}
		}
	}

	removed := 0
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := c.local.Remove(k); err != nil {
			c.logger.Warn("Cache prune failed", logfields.CacheKey(k), logfields.Error(err))
			continue
		}
		if c.index != nil {
			_ = c.index.Delete(ctx, k)
		}
		removed++
	}
	return removed, nil
}

func (c *DiskCache) touch(ctx context.Context, key string) {
	if c.index == nil {
		return
	}
	if err := c.index.Touch(ctx, key); err != nil {
		c.logger.Debug("Cache index touch failed", logfields.CacheKey(key), logfields.Error(err))
	}
}

func (c *DiskCache) addBytes(ctx context.Context, key string, n int64) {
	if c.index == nil || n == 0 {
		return
	}
	if err := c.index.AddBytes(ctx, key, n); err != nil {
		c.logger.Debug("Cache index size update failed", logfields.CacheKey(key), logfields.Error(err))
	}
}

// Remove deletes key from the local tier and the index.
func (c *DiskCache) Remove(ctx context.Context, key string) error {
	if err := c.local.Remove(key); err != nil {
		return err
	}
	if c.index != nil {
		return c.index.Delete(ctx, key)
	}
	return nil
}
