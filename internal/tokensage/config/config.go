// Package config loads the engine configuration from defaults, an optional
// YAML file, and TOKENSAGE_* environment overrides, in that order.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level tokensage configuration, corresponding to
// tokensage.yml.
type Config struct {
	API    APIConfig    `yaml:"api" koanf:"api"`
	Retry  RetryConfig  `yaml:"retry" koanf:"retry"`
	Memory MemoryConfig `yaml:"memory" koanf:"memory"`
	Server ServerConfig `yaml:"server" koanf:"server"`
	Rules  string       `yaml:"rules" koanf:"rules"`
	Log    LogConfig    `yaml:"log" koanf:"log"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `yaml:"level" koanf:"level"`
}

// APIConfig configures the upstream market-data API.
type APIConfig struct {
	Key     string        `yaml:"key" koanf:"key"`
	BaseURL string        `yaml:"base_url" koanf:"base_url"`
	Timeout time.Duration `yaml:"timeout" koanf:"timeout"`
}

// RetryConfig tunes operation dispatch.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" koanf:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" koanf:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" koanf:"max_delay"`
	Timeout     time.Duration `yaml:"timeout" koanf:"timeout"`
}

// MemoryConfig tunes conversation-context housekeeping.
type MemoryConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval" koanf:"sweep_interval"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Addr           string   `yaml:"addr" koanf:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins" koanf:"allowed_origins"`
}

// DefaultConfig returns the configuration used when no file or overrides are
// present.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{Timeout: 30 * time.Second},
		Retry: RetryConfig{
			MaxAttempts: 2,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
			Timeout:     2 * time.Minute,
		},
		Memory: MemoryConfig{SweepInterval: 10 * time.Minute},
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (TOKENSAGE_*). A missing file is not an
// error; defaults plus the environment apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	// TOKENSAGE_API_KEY -> api.key, TOKENSAGE_SERVER_ADDR -> server.addr.
	if err := k.Load(env.Provider("TOKENSAGE_", ".", func(s string) string {
		return strings.Replace(
			strings.ToLower(strings.TrimPrefix(s, "TOKENSAGE_")), "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// validLogLevels is the set of recognized log.level values.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return fmt.Errorf("retry delays must be non-negative")
	}
	if c.Memory.SweepInterval <= 0 {
		return fmt.Errorf("memory.sweep_interval must be positive")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Log.Level != "" && !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log.level %q: must be one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}

// SlogLevel maps log.level to its slog equivalent.
func (c *Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
