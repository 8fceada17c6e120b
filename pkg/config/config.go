// Package config loads the .taggrove/config.yaml that selects the storage
// backend and owner for a tree.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Dir is the per-project directory holding config and UI state.
const Dir = ".taggrove"

// FileName is the config file inside Dir.
const FileName = "config.yaml"

// EnvDir overrides discovery when set.
const EnvDir = "TAGGROVE_DIR"

// Backend names accepted in config.
const (
	BackendMemory  = "memory"
	BackendSQLite  = "sqlite"
	BackendSurreal = "surreal"
)

// Config selects the owner and storage backend for a tree.
type Config struct {
	// Owner scopes every storage call. Required.
	Owner string `yaml:"owner"`

	// Backend is one of memory, sqlite, surreal.
	Backend string `yaml:"backend"`

	// SQLite configures the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite,omitempty"`

	// Surreal configures the surreal backend.
	Surreal SurrealConfig `yaml:"surreal,omitempty"`

	// TimeoutSeconds bounds each persistence round trip (default 5).
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`

	// LogFile enables structured logging when set.
	LogFile string `yaml:"log_file,omitempty"`
}

// SQLiteConfig locates the database file.
type SQLiteConfig struct {
	// Path to the database file (default: <Dir>/taggrove.db next to the
	// config file).
	Path string `yaml:"path,omitempty"`
}

// SurrealConfig holds the connection parameters for a SurrealDB endpoint.
type SurrealConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Namespace string `yaml:"namespace,omitempty"`
	Database  string `yaml:"database,omitempty"`
	Username  string `yaml:"username,omitempty"`
	Password  string `yaml:"password,omitempty"`
}

// Default returns a usable local-first configuration.
func Default() Config {
	return Config{
		Owner:   "default",
		Backend: BackendSQLite,
	}
}

// Timeout returns the configured persistence timeout.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Owner == "" {
		return fmt.Errorf("config: owner is required")
	}
	switch c.Backend {
	case BackendMemory, BackendSQLite:
	case BackendSurreal:
		if c.Surreal.Endpoint == "" {
			return fmt.Errorf("config: surreal backend requires an endpoint")
		}
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	return nil
}

// SQLitePath resolves the database file path relative to the config dir.
func (c Config) SQLitePath(configDir string) string {
	if c.SQLite.Path != "" {
		if filepath.IsAbs(c.SQLite.Path) {
			return c.SQLite.Path
		}
		return filepath.Join(configDir, c.SQLite.Path)
	}
	return filepath.Join(configDir, "taggrove.db")
}

// Load reads and validates a config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendSQLite
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes the config, creating the directory if needed.
func (c Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Discover walks up from startDir looking for a .taggrove/ directory, the
// same way project roots are usually found. TAGGROVE_DIR short-circuits the
// walk. Returns the .taggrove directory path and whether one was found.
func Discover(startDir string) (string, bool) {
	if env := os.Getenv(EnvDir); env != "" {
		return env, true
	}

	home, _ := os.UserHomeDir()
	dir := startDir
	for {
		candidate := filepath.Join(dir, Dir)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		// Don't go above the home directory
		if home != "" && dir == home {
			break
		}
		dir = parent
	}
	return "", false
}
