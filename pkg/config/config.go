// Package config handles loading and saving mt configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/modeltree/config.yaml
//   - State:   ~/.local/state/modeltree/ (tree expansion state)
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const appName = "modeltree"

// ErrInvalid reports a configuration value outside its allowed set.
var ErrInvalid = errors.New("invalid config")

// Expansion state backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// TreeConfig controls how documents are mirrored.
type TreeConfig struct {
	ExpandDepth  int    `yaml:"expand_depth"`            // Levels expanded on load
	PersistState bool   `yaml:"persist_state"`           // Remember expand/collapse per document
	StateBackend string `yaml:"state_backend,omitempty"` // json or sqlite
	StateDir     string `yaml:"state_dir,omitempty"`     // Overrides the XDG state dir
}

// SearchConfig holds search defaults.
type SearchConfig struct {
	CaseSensitive bool `yaml:"case_sensitive,omitempty"`
	Reveal        bool `yaml:"reveal"` // Expand and select the active match
}

// WatchConfig controls reloading the document when its file changes.
type WatchConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Debounce     time.Duration `yaml:"debounce,omitempty"`
	Poll         bool          `yaml:"poll,omitempty"` // Force polling (network filesystems)
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
}

// RemoteConfig points at a websocket op feed.
type RemoteConfig struct {
	URL          string        `yaml:"url,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`
}

// UIConfig holds UI preference settings.
type UIConfig struct {
	DefaultMode string `yaml:"default_mode,omitempty"` // view or edit
}

// Config is the top-level configuration for mt.
type Config struct {
	Tree   TreeConfig   `yaml:"tree"`
	Search SearchConfig `yaml:"search"`
	Watch  WatchConfig  `yaml:"watch"`
	Remote RemoteConfig `yaml:"remote,omitempty"`
	UI     UIConfig     `yaml:"ui,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Tree: TreeConfig{
			ExpandDepth:  1,
			PersistState: true,
			StateBackend: BackendJSON,
		},
		Search: SearchConfig{
			Reveal: true,
		},
		Watch: WatchConfig{
			Enabled:      true,
			Debounce:     200 * time.Millisecond,
			PollInterval: 2 * time.Second,
		},
		Remote: RemoteConfig{
			WriteTimeout: 10 * time.Second,
		},
		UI: UIConfig{
			DefaultMode: "view",
		},
	}
}

// ConfigDir returns the XDG config directory for mt.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// StateDir returns the XDG state directory for mt.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Tree.StateDir = expandHome(cfg.Tree.StateDir)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks enumerated and numeric settings.
func (c Config) Validate() error {
	switch c.Tree.StateBackend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("tree.state_backend %q (want json or sqlite): %w", c.Tree.StateBackend, ErrInvalid)
	}
	if c.Tree.ExpandDepth < 0 {
		return fmt.Errorf("tree.expand_depth %d: %w", c.Tree.ExpandDepth, ErrInvalid)
	}
	switch c.UI.DefaultMode {
	case "", "view", "edit":
	default:
		return fmt.Errorf("ui.default_mode %q (want view or edit): %w", c.UI.DefaultMode, ErrInvalid)
	}
	if c.Watch.Debounce < 0 || c.Watch.PollInterval < 0 {
		return fmt.Errorf("watch durations must not be negative: %w", ErrInvalid)
	}
	return nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// ResolvedStateDir returns the directory for expansion state.
func (c Config) ResolvedStateDir() string {
	if c.Tree.StateDir != "" {
		return c.Tree.StateDir
	}
	return StateDir()
}

// StatePath returns where the configured backend keeps its data: a
// directory of JSON files or a SQLite database file.
func (c Config) StatePath() string {
	dir := c.ResolvedStateDir()
	if dir == "" {
		return ""
	}
	if c.Tree.StateBackend == BackendSQLite {
		return filepath.Join(dir, "tree-state.db")
	}
	return filepath.Join(dir, "tree-state")
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
