// Package config loads and watches the daemon's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultPort             = 8080
	DefaultPollInterval     = 50 * time.Millisecond
	DefaultHandshakeTimeout = 3 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultMaxRequests      = 100
	DefaultWindow           = 60 * time.Second
	DefaultBlockDuration    = 5 * time.Minute
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

// Config is the top-level daemon configuration. Fields map 1:1 to
// config.example.yaml.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds the listener and event-loop settings.
type ServerConfig struct {
	// Host is the bind address; empty binds every interface.
	Host string `yaml:"host"`

	// Port is the listening port. Zero asks the OS for an ephemeral one.
	Port int `yaml:"port"`

	// PollInterval bounds each readiness wait of the event loop.
	PollInterval time.Duration `yaml:"poll_interval"`

	// HandshakeTimeout bounds the upgrade-request read after accept.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// WriteTimeout bounds each outbound frame write.
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RateLimitConfig holds the per-connection governor thresholds.
type RateLimitConfig struct {
	// MaxRequests is the number of messages admitted per window.
	MaxRequests int `yaml:"max_requests"`

	// Window is the fixed admission window.
	Window time.Duration `yaml:"window"`

	// BlockDuration is the cooldown imposed once the window fills.
	BlockDuration time.Duration `yaml:"block_duration"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`

	// Format is one of: text | json.
	Format string `yaml:"format"`
}

// Load reads and parses the YAML config file at path. Missing optional
// fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config pre-populated with default values. It validates.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:             DefaultPort,
			PollInterval:     DefaultPollInterval,
			HandshakeTimeout: DefaultHandshakeTimeout,
			WriteTimeout:     DefaultWriteTimeout,
		},
		RateLimit: RateLimitConfig{
			MaxRequests:   DefaultMaxRequests,
			Window:        DefaultWindow,
			BlockDuration: DefaultBlockDuration,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", cfg.Server.Port)
	}
	if cfg.Server.PollInterval <= 0 {
		return fmt.Errorf("server.poll_interval must be positive")
	}
	if cfg.Server.HandshakeTimeout <= 0 {
		return fmt.Errorf("server.handshake_timeout must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}
	if cfg.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("rate_limit.max_requests must be positive")
	}
	if cfg.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive")
	}
	if cfg.RateLimit.BlockDuration <= 0 {
		return fmt.Errorf("rate_limit.block_duration must be positive")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", cfg.Log.Format)
	}
	return nil
}
