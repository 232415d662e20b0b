package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"refsync/internal/logging"
	"refsync/pkg/fileops"
)

const APP_NAME = "refsync" // application name used for config directory

// Supported version-control backends.
const (
	BackendGoGit = "go-git"
	BackendGit   = "git"
)

// DefaultJobs is the worker pool size when nothing else is configured.
const DefaultJobs = 4

// Environment variables that override the config file.
const (
	EnvConfigPath = "REFSYNC_CONFIG_PATH"
	EnvWorkDir    = "REFSYNC_WORK_DIR"
	EnvJobs       = "REFSYNC_JOBS"
	EnvBackend    = "REFSYNC_BACKEND"
)

// Config holds user settings for refsync.
type Config struct {
	// WorkDir is where clones are created. Empty means the current directory.
	WorkDir  string `yaml:"work_dir"`
	Jobs     int    `yaml:"jobs"`
	Backend  string `yaml:"backend"`
	Progress bool   `yaml:"progress"`
	Version  string `yaml:"version"`   // Track config version
	InitTime int64  `yaml:"init_time"` // Unix timestamp of first save
}

// ConfigPath returns the config file path for the current platform.
// REFSYNC_CONFIG_PATH takes precedence over the XDG location.
func ConfigPath() (string, error) {
	if override := strings.TrimSpace(os.Getenv(EnvConfigPath)); override != "" {
		return fileops.ExpandPath(override), nil
	}
	configPath := filepath.Join(xdg.ConfigHome, APP_NAME, "config.yaml")

	logging.Debug("Determined config path", "path", configPath)
	return configPath, nil
}

// FindConfigFile returns the path to the config file, and whether it exists.
func FindConfigFile() (string, bool) {
	path, err := ConfigPath()
	if err != nil {
		logging.Error("Failed to get config path", "error", err)
		return "", false
	}
	if _, err := os.Stat(path); err == nil {
		logging.Debug("Config found", "path", path)
		return path, true
	}
	return path, false
}

// DefaultConfig returns a Config with defaults.
func DefaultConfig() Config {
	return Config{
		Jobs:    DefaultJobs,
		Backend: BackendGoGit,
		Version: "1.0",
	}
}

// Load loads the config from the standard location. A missing file is not
// an error: defaults are returned. Environment overrides are applied in
// both cases.
func Load() (*Config, error) {
	path, exists := FindConfigFile()
	if !exists {
		logging.Debug("No config file, using defaults", "path", path)
		cfg := DefaultConfig()
		if err := cfg.applyEnv(); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	return LoadFrom(path)
}

// LoadFrom loads config from a specific path. Fields missing from the file
// keep their defaults.
func LoadFrom(path string) (*Config, error) {
	logging.Debug("Reading config file", "path", path)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvWorkDir)); v != "" {
		c.WorkDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackend)); v != "" {
		c.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvJobs)); v != "" {
		jobs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not a number", EnvJobs, v)
		}
		c.Jobs = jobs
	}
	return nil
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", c.Jobs)
	}
	switch c.Backend {
	case BackendGoGit, BackendGit:
	default:
		return fmt.Errorf("unknown backend %q (want %q or %q)", c.Backend, BackendGoGit, BackendGit)
	}
	if c.WorkDir != "" {
		if err := fileops.ValidatePathSecurity(fileops.ExpandPath(c.WorkDir)); err != nil {
			return fmt.Errorf("invalid work_dir: %w", err)
		}
	}
	return nil
}

// ResolvedWorkDir returns the absolute work directory, falling back to the
// current directory.
func (c *Config) ResolvedWorkDir() (string, error) {
	dir := c.WorkDir
	if dir == "" {
		return os.Getwd()
	}
	return filepath.Abs(fileops.ExpandPath(dir))
}

// Save writes the config to the standard location.
func (c *Config) Save() error {
	configPath, _ := FindConfigFile()
	return c.SaveTo(configPath)
}

// SaveTo writes the config to a specific path.
func (c *Config) SaveTo(path string) error {
	if c.InitTime == 0 {
		c.InitTime = time.Now().Unix()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	defer enc.Close()

	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	logging.Debug("Configuration saved", "path", path)
	return nil
}
