package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"slices"
)

// KeyInputs lists everything besides the entry files that feeds a cache key.
// Relative paths resolve against Root.
type KeyInputs struct {
	Root            string
	ConfigFile      string
	PackageManifest string
	PluginDir       string
	NodeEnv         string
	ToolVersion     string
	// Mode is the effective build mode. Builds in different modes never share a key.
	Mode string
}

// DefaultKeyInputs returns the conventional file names rooted at root with
// environment selectors read from NODE_ENV and TOOL_VERSION.
func DefaultKeyInputs(root string) KeyInputs {
	return KeyInputs{
		Root:            root,
		ConfigFile:      "nextgen.build.json",
		PackageManifest: "package.json",
		PluginDir:       filepath.Join("src", "plugins"),
		NodeEnv:         os.Getenv("NODE_ENV"),
		ToolVersion:     os.Getenv("TOOL_VERSION"),
	}
}

// ComputeKey hashes entry files and the surrounding inputs into a hex
// SHA-256 digest. The order of paths does not matter and the slice is not
// modified. Unreadable entries contribute their path string.
func ComputeKey(paths []string, in KeyInputs) string {
	h := sha256.New()

	sorted := slices.Clone(paths)
	slices.Sort(sorted)
	for _, p := range sorted {
		data, err := os.ReadFile(in.resolve(p)) // #nosec G304 -- build inputs named by config
		if err != nil {
			h.Write([]byte(p))
			continue
		}
		h.Write(data)
	}

	for _, f := range []string{in.ConfigFile, in.PackageManifest} {
		if f == "" {
			continue
		}
		if data, err := os.ReadFile(in.resolve(f)); err == nil { // #nosec G304 -- fixed project files
			h.Write(data)
		}
	}

	if in.PluginDir != "" {
		dir := in.resolve(in.PluginDir)
		if entries, err := os.ReadDir(dir); err == nil {
			// ReadDir returns entries sorted by filename.
			for _, e := range entries {
				if data, err := os.ReadFile(filepath.Join(dir, e.Name())); err == nil { // #nosec G304 -- plugin sources
					h.Write(data)
				}
			}
		}
	}

	selector := in.NodeEnv + "|" + in.ToolVersion
	if in.Mode != "" {
		selector += "|" + in.Mode
	}
	h.Write([]byte(selector))
	return hex.EncodeToString(h.Sum(nil))
}

func (in KeyInputs) resolve(p string) string {
	if filepath.IsAbs(p) || in.Root == "" {
		return p
	}
	return filepath.Join(in.Root, p)
}
