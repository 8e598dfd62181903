// Package config loads shell core configuration from the environment or
// from a TOML file. Both fall back to the defaults in the struct tags.
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Identity  IdentityConfig
	Storage   StorageConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" toml:"port" default:"8000"`
	Host string `envconfig:"HOST" toml:"host" default:"0.0.0.0"`
}

// IdentityConfig holds identity-provider configuration. When URL is empty
// the core runs against the in-process email provider.
type IdentityConfig struct {
	URL          string `envconfig:"IDENTITY_URL" toml:"url" default:""`
	APIKey       string `envconfig:"IDENTITY_API_KEY" toml:"api_key" default:""`
	PollInterval int    `envconfig:"IDENTITY_POLL_SECONDS" toml:"poll_seconds" default:"30"`
}

// StorageConfig holds durable key-value storage configuration.
type StorageConfig struct {
	Path string `envconfig:"STORAGE_PATH" toml:"path" default:"/tmp/iconic-shell"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" toml:"level" default:"info"`
	Development bool   `envconfig:"LOG_DEV" toml:"development" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" toml:"rps" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" toml:"burst" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" toml:"enabled" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadFile loads configuration from a TOML file on top of the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Identity: IdentityConfig{
			PollInterval: 30,
		},
		Storage: StorageConfig{
			Path: "/tmp/iconic-shell",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
