package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/nextgen/internal/foundation/errors"
	"git.home.luguber.info/inful/nextgen/internal/logfields"
)

// FileNames lists the configuration file names in discovery order.
var FileNames = []string{"nextgen.build.json", "nextgen.build.yaml", "nextgen.build.yml"}

// Environment variables consulted when the file leaves the remote cache unset.
const (
	EnvRemoteURL   = "REMOTE_CACHE_URL"
	EnvRemoteToken = "REMOTE_CACHE_TOKEN"
)

// Discover returns the first configuration file present in dir, or "".
func Discover(dir string) string {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}
	return ""
}

// LoadEnvFiles loads .env.local and .env from dir without overriding variables
// that are already set, so .env.local wins over .env and the process wins over both.
func LoadEnvFiles(dir string) []string {
	var loaded []string
	for _, name := range []string{".env.local", ".env"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			slog.Warn("Failed to load env file", logfields.Path(p), logfields.Error(err))
			continue
		}
		loaded = append(loaded, p)
	}
	return loaded
}

// Load discovers and loads the configuration in dir. Without a config file the
// defaults rooted at dir are returned.
func Load(dir string) (*Config, error) {
	for _, p := range LoadEnvFiles(dir) {
		slog.Debug("Loaded environment file", logfields.Path(p))
	}
	path := Discover(dir)
	if path == "" {
		cfg := &Config{Root: dir}
		return finish(cfg, dir)
	}
	return LoadFile(path)
}

// LoadFile reads one configuration file. JSON files are parsed with the YAML
// decoder, so both formats share field names and duration syntax.
func LoadFile(path string) (*Config, error) {
	// #nosec G304 - path is the user-selected config file
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ferrors.ConfigError("configuration file not found").
				WithContext("path", path).WithCause(err).Build()
		}
		return nil, ferrors.ConfigError("failed to read config file").WithCause(err).Build()
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, ferrors.ConfigError("failed to parse config file").
			WithContext("path", path).WithCause(err).Build()
	}
	cfg.File = path
	return finish(&cfg, filepath.Dir(path))
}

func finish(cfg *Config, baseDir string) (*Config, error) {
	applyDefaults(cfg, baseDir)
	if cfg.Cache.Remote.URL == "" {
		cfg.Cache.Remote.URL = os.Getenv(EnvRemoteURL)
	}
	if cfg.Cache.Remote.Token == "" {
		cfg.Cache.Remote.Token = os.Getenv(EnvRemoteToken)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Write saves cfg as YAML to path.
func Write(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
