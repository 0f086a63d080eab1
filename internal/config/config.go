// Package config provides configuration management for the weathervis server.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration values for the server.
type Config struct {
	// Server configuration
	Port        string        `env:"PORT"         envDefault:"4000"`
	Env         string        `env:"ENV"          envDefault:"development"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"60s"`

	// Database configuration
	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:./dev.db"`

	// Export and grid artifacts
	DataDir       string `env:"DATA_DIR"        envDefault:"./data"`
	GridCacheDir  string `env:"GRID_CACHE_DIR"  envDefault:"./.grid-cache"`
	GridParamFile string `env:"GRID_PARAM_FILE"`

	// Session cookie signing key for the active campaign
	SessionSecret string `env:"SESSION_SECRET" envDefault:"dev-secret-change-me"`

	// CORS configuration
	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"http://localhost:3000"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load loads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.IsProduction() && c.SessionSecret == "dev-secret-change-me" {
		return errors.New("SESSION_SECRET must be set in production")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// StationsDir is where stations.yaml and releases.csv are written.
func (c *Config) StationsDir() string { return filepath.Join(c.DataDir, "stations") }

// DomainsDir is where domains.yaml is written.
func (c *Config) DomainsDir() string { return filepath.Join(c.DataDir, "domains") }

// PlotsDir is where plots.yaml is written.
func (c *Config) PlotsDir() string { return filepath.Join(c.DataDir, "plots") }

// ModelGridsDir is where traced grid borders are written as GeoJSON.
func (c *Config) ModelGridsDir() string { return filepath.Join(c.DataDir, "model_grids") }
