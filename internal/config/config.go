package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	Eviction  EvictionConfig  `yaml:"eviction"`
}

type TransportConfig struct {
	Mode string `yaml:"mode"` // "http", "mcp-stdio" or "mcp-http"
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StoreConfig selects the lease store backend: "memory", or a SQLite
// database path for the persistent backend.
type StoreConfig struct {
	Backend string `yaml:"backend"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"` // empty disables auth
}

// EvictionConfig controls the background sweep of expired leases.
type EvictionConfig struct {
	IntervalMs int64 `yaml:"interval_ms"` // 0 disables the sweeper
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Config{
		Transport: TransportConfig{
			Mode: "http",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Store: StoreConfig{
			Backend: "memory",
		},
		Log: LogConfig{
			Level: "info",
		},
		Eviction: EvictionConfig{
			IntervalMs: 5000,
		},
	}

	if path := os.Getenv("KLOCK_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if mode := os.Getenv("KLOCK_TRANSPORT"); mode != "" {
		cfg.Transport.Mode = mode
	}
	if host := os.Getenv("KLOCK_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("KLOCK_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid KLOCK_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if backend := os.Getenv("KLOCK_STORE"); backend != "" {
		cfg.Store.Backend = backend
	}
	if level := os.Getenv("KLOCK_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if key := os.Getenv("KLOCK_API_KEY"); key != "" {
		cfg.Auth.APIKey = key
	}
	if intervalStr := os.Getenv("KLOCK_EVICT_INTERVAL_MS"); intervalStr != "" {
		interval, err := strconv.ParseInt(intervalStr, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid KLOCK_EVICT_INTERVAL_MS: %w", err)
		}
		cfg.Eviction.IntervalMs = interval
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
