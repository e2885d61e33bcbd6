package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.LiveSync.HeartbeatInterval != 30*time.Second {
		t.Errorf("heartbeat_interval = %v, want 30s", cfg.LiveSync.HeartbeatInterval)
	}
	if cfg.LiveSync.RetryInterval != 3*time.Second {
		t.Errorf("retry_interval = %v, want 3s", cfg.LiveSync.RetryInterval)
	}
	if cfg.LiveSync.MaxAttempts != 5 {
		t.Errorf("max_attempts = %d, want 5", cfg.LiveSync.MaxAttempts)
	}
	if cfg.Drafts.Debounce != 3*time.Second {
		t.Errorf("drafts.debounce = %v, want 3s", cfg.Drafts.Debounce)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero retry attempts", func(c *Config) { c.LiveSync.MaxAttempts = 0 }},
		{"tiny retry interval", func(c *Config) { c.LiveSync.RetryInterval = time.Millisecond }},
		{"tiny heartbeat", func(c *Config) { c.LiveSync.HeartbeatInterval = time.Millisecond }},
		{"tiny debounce", func(c *Config) { c.Drafts.Debounce = time.Millisecond }},
		{"zero draft entries", func(c *Config) { c.Drafts.MaxEntries = 0 }},
		{"negative retries", func(c *Config) { c.API.MaxRetries = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
api:
  base_url: https://api.example.test
livesync:
  uri: wss://sync.example.test/escalations
  max_attempts: 8
drafts:
  debounce: 5s
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.API.BaseURL != "https://api.example.test" {
		t.Errorf("base_url = %q", cfg.API.BaseURL)
	}
	if cfg.LiveSync.URI != "wss://sync.example.test/escalations" {
		t.Errorf("livesync.uri = %q", cfg.LiveSync.URI)
	}
	if cfg.LiveSync.MaxAttempts != 8 {
		t.Errorf("max_attempts = %d, want 8", cfg.LiveSync.MaxAttempts)
	}
	if cfg.Drafts.Debounce != 5*time.Second {
		t.Errorf("debounce = %v, want 5s", cfg.Drafts.Debounce)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q, want debug", cfg.Logging.Level)
	}
	// Unset keys keep defaults.
	if cfg.LiveSync.RetryInterval != 3*time.Second {
		t.Errorf("retry_interval = %v, want default 3s", cfg.LiveSync.RetryInterval)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("UNIBOX_API_BASE_URL", "https://env.example.test")
	t.Setenv("UNIBOX_LOGGING_LEVEL", "warn")

	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault failed: %v", err)
	}
	if cfg.API.BaseURL != "https://env.example.test" {
		t.Errorf("base_url = %q, want env override", cfg.API.BaseURL)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("level = %q, want warn", cfg.Logging.Level)
	}
}

func TestDatabasePathFallsBackToDataDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Global.DataDir = "/tmp/unibox-test"
	cfg.Database.Path = ""
	if got := cfg.DatabasePath(); got != "/tmp/unibox-test/unibox.db" {
		t.Errorf("DatabasePath() = %q", got)
	}

	cfg.Database.Path = "/explicit/path.db"
	if got := cfg.DatabasePath(); got != "/explicit/path.db" {
		t.Errorf("DatabasePath() = %q", got)
	}
}

func TestExpandTilde(t *testing.T) {
	home, _ := os.UserHomeDir()
	if got := expandTilde("~/data"); got != filepath.Join(home, "data") {
		t.Errorf("expandTilde(~/data) = %q", got)
	}
	if got := expandTilde("/abs/path"); got != "/abs/path" {
		t.Errorf("expandTilde(/abs/path) = %q", got)
	}
	if got := expandTilde(""); got != "" {
		t.Errorf("expandTilde(empty) = %q", got)
	}
}
