// Package config handles unibox configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration structure for unibox.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Database settings
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// API settings for the inbox backend
	API APIConfig `yaml:"api" mapstructure:"api"`

	// LiveSync settings for the escalation socket
	LiveSync LiveSyncConfig `yaml:"livesync" mapstructure:"livesync"`

	// Drafts settings
	Drafts DraftsConfig `yaml:"drafts" mapstructure:"drafts"`

	// TUI settings
	TUI TUIConfig `yaml:"tui" mapstructure:"tui"`
}

// GlobalConfig contains global unibox settings.
type GlobalConfig struct {
	// DataDir is where unibox stores its data (default: ~/.local/share/unibox).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/unibox).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path" mapstructure:"path"`

	// BusyTimeoutMs is how long to wait for a locked database (milliseconds).
	BusyTimeoutMs int `yaml:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// APIConfig contains settings for the inbox backend API.
type APIConfig struct {
	// BaseURL is the backend API root.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// TokenEnv names the environment variable holding the bearer token.
	TokenEnv string `yaml:"token_env" mapstructure:"token_env"`

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// MaxRetries is the maximum fetch retry count for transient failures.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`

	// UserAgent is sent on every request.
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
}

// LiveSyncConfig contains settings for the escalation socket client.
type LiveSyncConfig struct {
	// URI is the websocket endpoint for escalation events.
	URI string `yaml:"uri" mapstructure:"uri"`

	// HeartbeatInterval is the keep-alive cadence while connected.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval"`

	// RetryInterval is the fixed delay between reconnect attempts.
	RetryInterval time.Duration `yaml:"retry_interval" mapstructure:"retry_interval"`

	// MaxAttempts is the reconnect attempt ceiling before giving up.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// DraftsConfig contains draft persistence settings.
type DraftsConfig struct {
	// Debounce is the idle window before a draft write commits.
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`

	// MaxEntries caps how many drafts are kept; oldest are evicted.
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
}

// TUIConfig contains TUI settings.
type TUIConfig struct {
	// RefreshInterval is how often to refresh the thread list.
	RefreshInterval time.Duration `yaml:"refresh_interval" mapstructure:"refresh_interval"`

	// Theme is the color theme (default, dark, light).
	Theme string `yaml:"theme" mapstructure:"theme"`

	// ShowTimestamps shows thread activity timestamps in the list.
	ShowTimestamps bool `yaml:"show_timestamps" mapstructure:"show_timestamps"`

	// CompactMode uses a more compact layout.
	CompactMode bool `yaml:"compact_mode" mapstructure:"compact_mode"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "unibox"),
			ConfigDir: filepath.Join(homeDir, ".config", "unibox"),
		},
		Database: DatabaseConfig{
			Path:          "", // Will be set to DataDir/unibox.db
			BusyTimeoutMs: 5000,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
		API: APIConfig{
			TokenEnv:   "UNIBOX_API_TOKEN",
			Timeout:    20 * time.Second,
			MaxRetries: 3,
			UserAgent:  "unibox",
		},
		LiveSync: LiveSyncConfig{
			HeartbeatInterval: 30 * time.Second,
			RetryInterval:     3 * time.Second,
			MaxAttempts:       5,
		},
		Drafts: DraftsConfig{
			Debounce:   3 * time.Second,
			MaxEntries: 200,
		},
		TUI: TUIConfig{
			RefreshInterval: 30 * time.Second,
			Theme:           "default",
			ShowTimestamps:  true,
			CompactMode:     false,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.BusyTimeoutMs < 0 {
		return fmt.Errorf("database.busy_timeout_ms must not be negative")
	}

	if c.API.MaxRetries < 0 {
		return fmt.Errorf("api.max_retries must not be negative")
	}
	if c.API.Timeout < time.Second {
		return fmt.Errorf("api.timeout must be at least 1s")
	}

	if c.LiveSync.HeartbeatInterval < time.Second {
		return fmt.Errorf("livesync.heartbeat_interval must be at least 1s")
	}
	if c.LiveSync.RetryInterval < 100*time.Millisecond {
		return fmt.Errorf("livesync.retry_interval must be at least 100ms")
	}
	if c.LiveSync.MaxAttempts < 1 {
		return fmt.Errorf("livesync.max_attempts must be at least 1")
	}

	if c.Drafts.Debounce < 100*time.Millisecond {
		return fmt.Errorf("drafts.debounce must be at least 100ms")
	}
	if c.Drafts.MaxEntries < 1 {
		return fmt.Errorf("drafts.max_entries must be at least 1")
	}

	if c.TUI.RefreshInterval < 100*time.Millisecond {
		return fmt.Errorf("tui.refresh_interval must be at least 100ms")
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		c.Global.ConfigDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// DatabasePath returns the full database path.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Global.DataDir, "unibox.db")
}

// APIToken resolves the bearer token from the configured environment
// variable, or empty when unset.
func (c *Config) APIToken() string {
	if c.API.TokenEnv == "" {
		return ""
	}
	return os.Getenv(c.API.TokenEnv)
}
