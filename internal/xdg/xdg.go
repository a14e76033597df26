// Package xdg provides XDG Base Directory paths for CimaMovies.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "cimamovies"

// ConfigDir returns the XDG config directory for cimamovies.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the default configuration file path, used when no
// --config flag is given.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
