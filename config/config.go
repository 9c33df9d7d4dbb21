// Package config loads storekit daemon configuration from JSON.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tailored-agentic-units/storekit/persistence"
)

const (
	defaultName            = "default"
	defaultObserver        = "slog"
	defaultAddr            = ":8080"
	defaultMetricsPath     = "/metrics"
	defaultShutdownTimeout = 10 * time.Second
)

// Config holds initialization parameters for the daemon. Each section
// delegates to its own Merge.
type Config struct {
	Name                   string             `json:"name,omitempty"`
	Observer               string             `json:"observer,omitempty"`
	Plugins                []string           `json:"plugins,omitempty"`
	MaxConcurrentResolvers int64              `json:"max_concurrent_resolvers,omitempty"`
	Persistence            persistence.Config `json:"persistence"`
	Server                 ServerConfig       `json:"server"`
}

// ServerConfig configures the transport listener.
type ServerConfig struct {
	Addr            string   `json:"addr,omitempty"`
	MetricsPath     string   `json:"metrics_path,omitempty"`
	ShutdownTimeout Duration `json:"shutdown_timeout,omitempty"`
}

// DefaultConfig returns a Config with defaults for all sections.
func DefaultConfig() Config {
	return Config{
		Name:        defaultName,
		Observer:    defaultObserver,
		Persistence: persistence.DefaultConfig(),
		Server:      DefaultServerConfig(),
	}
}

// DefaultServerConfig returns the default listener settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            defaultAddr,
		MetricsPath:     defaultMetricsPath,
		ShutdownTimeout: Duration(defaultShutdownTimeout),
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	c.Persistence.Merge(&source.Persistence)
	c.Server.Merge(&source.Server)

	if source.Name != "" {
		c.Name = source.Name
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
	if len(source.Plugins) > 0 {
		c.Plugins = source.Plugins
	}
	if source.MaxConcurrentResolvers > 0 {
		c.MaxConcurrentResolvers = source.MaxConcurrentResolvers
	}
}

func (c *ServerConfig) Merge(source *ServerConfig) {
	if source.Addr != "" {
		c.Addr = source.Addr
	}
	if source.MetricsPath != "" {
		c.MetricsPath = source.MetricsPath
	}
	if source.ShutdownTimeout > 0 {
		c.ShutdownTimeout = source.ShutdownTimeout
	}
}

// LoadConfig reads a JSON config file, merges it with defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
