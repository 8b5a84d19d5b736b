package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	// ErrNotFound is returned when a tier holds nothing for a key.
	ErrNotFound = errors.New("cache entry not found")
	// ErrIncomplete is returned when a manifest names artifacts that are not stored.
	ErrIncomplete = errors.New("cache entry incomplete")
)

// LocalTier stores manifests and artifacts on the local filesystem.
type LocalTier struct {
	dir string
	mu  sync.RWMutex
}

// NewLocalTier creates the cache directory if needed.
func NewLocalTier(dir string) (*LocalTier, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
	}
	return &LocalTier{dir: dir}, nil
}

// Dir returns the cache directory.
func (l *LocalTier) Dir() string { return l.dir }

func (l *LocalTier) manifestPath(key string) string {
	return filepath.Join(l.dir, key+".json")
}

// FilesDir returns the artifact directory for key.
func (l *LocalTier) FilesDir(key string) string {
	return filepath.Join(l.dir, key, "files")
}

// HasManifest reports whether a manifest file exists for key.
func (l *LocalTier) HasManifest(key string) bool {
	if ValidateKey(key) != nil {
		return false
	}
	_, err := os.Stat(l.manifestPath(key))
	return err == nil
}

// ReadManifest loads the manifest for key.
func (l *LocalTier) ReadManifest(key string) (*Manifest, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	// #nosec G304 - path built from a validated key
	data, err := os.ReadFile(l.manifestPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", key, err)
	}
	return &m, nil
}

// WriteManifest replaces the manifest for m.Key atomically.
func (l *LocalTier) WriteManifest(m *Manifest) error {
	if err := ValidateKey(m.Key); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return writeAtomic(l.manifestPath(m.Key), data)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// StoreFile copies src into the key's artifact directory under its basename.
func (l *LocalTier) StoreFile(key, src string) (int64, error) {
	// #nosec G304 - src is a build output path
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open artifact: %w", err)
	}
	defer func() { _ = in.Close() }()
	return l.WriteFile(key, filepath.Base(src), in)
}

// WriteFile streams r into the key's artifact directory as name.
func (l *LocalTier) WriteFile(key, name string, r io.Reader) (int64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	if err := validateName(name); err != nil {
		return 0, err
	}
	dir := l.FilesDir(key)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("create files directory: %w", err)
	}
	return copyToFile(filepath.Join(dir, name), r)
}

func copyToFile(dst string, r io.Reader) (int64, error) {
	// #nosec G304 - destination inside a cache or output directory
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}
	n, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("copy to %s: %w", dst, err)
	}
	return n, nil
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid artifact name %q", name)
	}
	return nil
}

// FileNames lists the stored artifact names for key.
func (l *LocalTier) FileNames(key string) ([]string, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(l.FilesDir(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Restore copies the artifacts listed in the key's manifest into dir. Every
// listed artifact must be present; otherwise nothing is copied and the error
// wraps ErrIncomplete.
func (l *LocalTier) Restore(key, dir string) (int, error) {
	m, err := l.ReadManifest(key)
	if err != nil {
		return 0, err
	}
	if len(m.Files) == 0 {
		return 0, ErrNotFound
	}
	names := make([]string, len(m.Files))
	for i, f := range m.Files {
		names[i] = filepath.Base(f)
		st, err := os.Stat(filepath.Join(l.FilesDir(key), names[i]))
		if err != nil || !st.Mode().IsRegular() {
			return 0, fmt.Errorf("%w: %s missing", ErrIncomplete, names[i])
		}
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("create restore directory: %w", err)
	}
	for i, name := range names {
		if err := copyFile(filepath.Join(l.FilesDir(key), name), filepath.Join(dir, name)); err != nil {
			return i, err
		}
	}
	return len(names), nil
}

// Staging collects artifacts for one key in a temporary directory. The
// key's artifact directory is replaced only by Commit.
type Staging struct {
	l   *LocalTier
	key string
	dir string
}

// Stage starts a staging directory for key inside the cache directory.
func (l *LocalTier) Stage(key string) (*Staging, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(l.dir, "."+key+".stage-*")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	return &Staging{l: l, key: key, dir: dir}, nil
}

// WriteFile streams r into the staging directory as name.
func (s *Staging) WriteFile(name string, r io.Reader) (int64, error) {
	if err := validateName(name); err != nil {
		return 0, err
	}
	return copyToFile(filepath.Join(s.dir, name), r)
}

// Commit moves the staged artifacts into place, replacing earlier ones.
func (s *Staging) Commit() error {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	target := s.l.FilesDir(s.key)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("clear artifacts: %w", err)
	}
	if err := os.Rename(s.dir, target); err != nil {
		return fmt.Errorf("move staged artifacts: %w", err)
	}
	return nil
}

// Discard removes the staging directory. It is a no-op after Commit.
func (s *Staging) Discard() {
	_ = os.RemoveAll(s.dir)
}

func copyFile(src, dst string) error {
	// #nosec G304 - src lives in the cache directory
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()
	_, err = copyToFile(dst, in)
	return err
}

// Remove deletes the manifest and artifacts for key.
func (l *LocalTier) Remove(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.Remove(l.manifestPath(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove manifest: %w", err)
	}
	if err := os.RemoveAll(filepath.Join(l.dir, key)); err != nil {
		return fmt.Errorf("remove artifacts: %w", err)
	}
	return nil
}

// Keys lists every key with a manifest.
func (l *LocalTier) Keys() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("list cache directory: %w", err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		key := strings.TrimSuffix(name, ".json")
		if ValidateKey(key) == nil {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
