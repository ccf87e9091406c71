package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Valid(t *testing.T) {
	yaml := `
server:
  host: "127.0.0.1"
  port: 9090
  poll_interval: 25ms
rate_limit:
  max_requests: 50
  window: 30s
  block_duration: 2m
log:
  level: debug
  format: json
`
	cfg := loadFromString(t, yaml)

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("server.host: got %q", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server.port: got %d", cfg.Server.Port)
	}
	if cfg.Server.PollInterval != 25*time.Millisecond {
		t.Errorf("server.poll_interval: got %v", cfg.Server.PollInterval)
	}
	if cfg.RateLimit.MaxRequests != 50 {
		t.Errorf("rate_limit.max_requests: got %d", cfg.RateLimit.MaxRequests)
	}
	if cfg.RateLimit.Window != 30*time.Second {
		t.Errorf("rate_limit.window: got %v", cfg.RateLimit.Window)
	}
	if cfg.RateLimit.BlockDuration != 2*time.Minute {
		t.Errorf("rate_limit.block_duration: got %v", cfg.RateLimit.BlockDuration)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level: got %q", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("log.format: got %q", cfg.Log.Format)
	}
}

func TestLoad_Defaults(t *testing.T) {
	yaml := `
server:
  host: "0.0.0.0"
`
	cfg := loadFromString(t, yaml)

	if cfg.Server.Port != DefaultPort {
		t.Errorf("default port: got %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Server.PollInterval != DefaultPollInterval {
		t.Errorf("default poll_interval: got %v, want %v", cfg.Server.PollInterval, DefaultPollInterval)
	}
	if cfg.RateLimit.MaxRequests != DefaultMaxRequests {
		t.Errorf("default max_requests: got %d, want %d", cfg.RateLimit.MaxRequests, DefaultMaxRequests)
	}
	if cfg.RateLimit.BlockDuration != DefaultBlockDuration {
		t.Errorf("default block_duration: got %v, want %v", cfg.RateLimit.BlockDuration, DefaultBlockDuration)
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("default log.level: got %q, want %q", cfg.Log.Level, DefaultLogLevel)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := loadStringErr(t, "server: [not a mapping")
	if err == nil {
		t.Fatal("expected error for invalid yaml, got nil")
	}
}

func TestLoad_PortOutOfRange(t *testing.T) {
	_, err := loadStringErr(t, "server:\n  port: 70000\n")
	if err == nil {
		t.Fatal("expected error for out-of-range port, got nil")
	}
}

func TestLoad_NonPositiveWindow(t *testing.T) {
	_, err := loadStringErr(t, "rate_limit:\n  window: -5s\n")
	if err == nil {
		t.Fatal("expected error for negative window, got nil")
	}
}

func TestLoad_UnknownLogLevel(t *testing.T) {
	_, err := loadStringErr(t, "log:\n  level: loud\n")
	if err == nil {
		t.Fatal("expected error for unknown log level, got nil")
	}
}

func TestLoad_UnknownLogFormat(t *testing.T) {
	_, err := loadStringErr(t, "log:\n  format: xml\n")
	if err == nil {
		t.Fatal("expected error for unknown log format, got nil")
	}
}

func TestDefault_Validates(t *testing.T) {
	if err := validate(Default()); err != nil {
		t.Fatalf("Default() does not validate: %v", err)
	}
}

// loadFromString writes yaml to a temp file and calls Load, failing on error.
func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	return cfg
}

// loadStringErr writes yaml to a temp file and calls Load, returning any error.
func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return Load(path)
}
