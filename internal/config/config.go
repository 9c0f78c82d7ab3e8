// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration. Every field has a development
// default except the JWT secret, which must be overridden in production.
type Config struct {
	// Addr is the listen address for the HTTP server.
	Addr string `env:"ADDR" envDefault:":8080"`

	// DataDir holds the admin database and the per-session ledger files.
	DataDir string `env:"DATA_DIR" envDefault:"./data"`

	// JWTSecret signs access tokens. Set a strong random value in
	// production.
	JWTSecret string `env:"JWT_SECRET" envDefault:"dev-secret-key-change-in-production"`

	// AdminPasswordHash is a bcrypt hash guarding the admin endpoints.
	// Empty disables the check (admin surface behind an authenticating
	// proxy).
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// AdminDBPath is the admin database file under DataDir.
func (c *Config) AdminDBPath() string {
	return filepath.Join(c.DataDir, "admin.db")
}

// SessionsDir holds one ledger database file per session.
func (c *Config) SessionsDir() string {
	return filepath.Join(c.DataDir, "sessions")
}
