package coord

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds coordination domain configuration. Durations are expressed
// in milliseconds so the TOML stays plain integers. Zero values fall back
// to defaults.
type Config struct {
	// HistoryCapacity bounds the bus message history.
	HistoryCapacity int `toml:"history_capacity"`

	// LockTimeoutMS is the default shared-memory lock expiry.
	LockTimeoutMS int `toml:"lock_timeout_ms"`

	// SweepIntervalMS is how often expired entries and locks are reaped.
	SweepIntervalMS int `toml:"sweep_interval_ms"`

	// StaleAfterMS marks agents offline when their registration ages past
	// this. Zero disables staleness handling.
	StaleAfterMS int `toml:"stale_after_ms"`

	// Strategy is the initial load-balancing strategy.
	Strategy string `toml:"strategy"`

	// EnableSearch builds the capability discovery index.
	EnableSearch bool `toml:"enable_search"`

	// LogLevel is the minimum log level (DEBUG, INFO, WARN, ERROR).
	LogLevel string `toml:"log_level"`
}

// DefaultConfig returns configuration with the substrate defaults.
func DefaultConfig() Config {
	return Config{
		HistoryCapacity: 1000,
		LockTimeoutMS:   30000,
		SweepIntervalMS: 1000,
		Strategy:        "least-load",
		EnableSearch:    true,
		LogLevel:        "INFO",
	}
}

// LoadConfig reads configuration from a TOML file, layered over defaults.
// With an empty path, well-known locations are tried in order:
//
//  1. ./coordkit.toml
//  2. ~/.config/coordkit/config.toml
//
// Missing files are not an error; defaults are returned.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	var paths []string
	if path != "" {
		paths = []string{path}
	} else {
		paths = append(paths, "coordkit.toml")
		if home, err := os.UserHomeDir(); err == nil {
			paths = append(paths, filepath.Join(home, ".config", "coordkit", "config.toml"))
		}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if path != "" {
				return cfg, err
			}
			continue
		}
		if _, err := toml.DecodeFile(p, &cfg); err != nil {
			return cfg, err
		}
		break
	}

	return cfg, nil
}

// lockTimeout returns the configured lock timeout as a duration.
func (c Config) lockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMS) * time.Millisecond
}

// sweepInterval returns the configured sweep interval as a duration.
func (c Config) sweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMS) * time.Millisecond
}

// staleAfter returns the configured staleness window as a duration.
func (c Config) staleAfter() time.Duration {
	return time.Duration(c.StaleAfterMS) * time.Millisecond
}
