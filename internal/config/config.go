// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CimaMovies Contributors

// Package config loads and validates the process configuration from a YAML
// file, command-line flags, and the environment.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/proalaayahia/CimaMoviesApi/internal/xdg"
)

// SessionConfig configures the session issuer.
type SessionConfig struct {
	SigningKey       string `koanf:"signing_key" json:"signing_key,omitempty"`
	Issuer           string `koanf:"issuer" json:"issuer,omitempty"`
	TTLMinutes       int    `koanf:"ttl_minutes" json:"ttl_minutes,omitempty"`
	RememberTTLHours int    `koanf:"remember_ttl_hours" json:"remember_ttl_hours,omitempty"`
}

// TokenConfig configures the confirmation/reset token provider.
type TokenConfig struct {
	Secret          string `koanf:"secret" json:"secret,omitempty"`
	ResetTTLMinutes int    `koanf:"reset_ttl_minutes" json:"reset_ttl_minutes,omitempty"`
}

// LockoutConfig configures the login lockout policy.
type LockoutConfig struct {
	Threshold       int `koanf:"threshold" json:"threshold,omitempty"`
	DurationMinutes int `koanf:"duration_minutes" json:"duration_minutes,omitempty"`
}

// BootstrapConfig configures first-run initialization.
type BootstrapConfig struct {
	AdminEmail    string `koanf:"admin_email" json:"admin_email,omitempty"`
	AdminPassword string `koanf:"admin_password" json:"admin_password,omitempty"`
}

// LinkConfig configures the base URLs embedded in notification links.
type LinkConfig struct {
	ConfirmBase string `koanf:"confirm_base" json:"confirm_base,omitempty"`
	ResetBase   string `koanf:"reset_base" json:"reset_base,omitempty"`
}

// Config is the full process configuration.
type Config struct {
	DatabaseURL string `koanf:"database_url" json:"database_url,omitempty"`
	LogFormat   string `koanf:"log_format" json:"log_format,omitempty"`
	MetricsAddr string `koanf:"metrics_addr" json:"metrics_addr,omitempty"`

	Session   SessionConfig   `koanf:"session" json:"session,omitempty"`
	Tokens    TokenConfig     `koanf:"tokens" json:"tokens,omitempty"`
	Lockout   LockoutConfig   `koanf:"lockout" json:"lockout,omitempty"`
	Bootstrap BootstrapConfig `koanf:"bootstrap" json:"bootstrap,omitempty"`
	Links     LinkConfig      `koanf:"links" json:"links,omitempty"`
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		LogFormat:   "json",
		MetricsAddr: "127.0.0.1:9100",
		Session: SessionConfig{
			Issuer:           "cimamovies",
			TTLMinutes:       30,
			RememberTTLHours: 240,
		},
		Tokens: TokenConfig{
			ResetTTLMinutes: 60,
		},
		Lockout: LockoutConfig{
			Threshold:       5,
			DurationMinutes: 5,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (schema-validated first; empty path falls back to the XDG config file when
// one exists), then flag overrides, then the DATABASE_URL environment
// variable as a fallback.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()
	k := koanf.New(".")

	// Without an explicit path, fall back to the XDG config location when a
	// file exists there.
	if path == "" {
		if candidate := xdg.ConfigFile(); fileExists(candidate) {
			path = candidate
		}
	}

	if path != "" {
		raw, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
		if err := ValidateSchema(raw); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// fileExists reports whether path names an existing regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Validate checks cross-field requirements the schema cannot express.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database_url is required (flag, file, or DATABASE_URL)")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if c.Lockout.Threshold < 0 || c.Lockout.DurationMinutes < 0 {
		return oops.Code("CONFIG_INVALID").Errorf("lockout values must be non-negative")
	}
	return nil
}

// SessionTTL returns the session lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}

// RememberTTL returns the remember-me session lifetime.
func (c *Config) RememberTTL() time.Duration {
	return time.Duration(c.Session.RememberTTLHours) * time.Hour
}

// ResetTokenTTL returns the reset token lifetime.
func (c *Config) ResetTokenTTL() time.Duration {
	return time.Duration(c.Tokens.ResetTTLMinutes) * time.Minute
}

// LockoutDuration returns the lockout window length.
func (c *Config) LockoutDuration() time.Duration {
	return time.Duration(c.Lockout.DurationMinutes) * time.Minute
}
