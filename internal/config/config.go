// Package config loads the orbitrak daemon's YAML configuration, following
// the teacher's TLEStoreConfig pattern: a struct with yaml tags, a
// Default...Config constructor, and a Validate method that clamps
// out-of-range values back to their defaults instead of failing.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Default values, mirroring the teacher's DefaultTLEUpdateInterval /
// DefaultTLECacheDir constants.
const (
	// DefaultListenAddr is the TCP address the server binds by default.
	DefaultListenAddr = ":5799"

	// DefaultTleCacheDir is the directory persisted TLE cache files live
	// under, per spec.md §6.3.
	DefaultTleCacheDir = "tle"

	// DefaultHorizonSec is the default prediction horizon, one day.
	DefaultHorizonSec = 86400.0

	// DefaultStepSec is the default prediction cadence.
	DefaultStepSec = 1.0

	// DefaultCelestrakRateLimit is the minimum interval between Celestrak
	// requests, mirroring tlesource.DefaultRateLimit.
	DefaultCelestrakRateLimit = 2 * time.Second

	// DefaultCelestrakTimeout is the HTTP timeout for Celestrak requests.
	DefaultCelestrakTimeout = 30 * time.Second
)

// Config holds the settings the cmd/orbitrakd entry point loads: listen
// address, TLE cache directory, prediction defaults (loaded but not passed
// on to the Registry or Server), and the Celestrak HTTP client's tuning.
type Config struct {
	// ListenAddr is the TCP address the server binds (e.g. ":5799").
	ListenAddr string `yaml:"listen_addr"`

	// TleCacheDir is where cached TLE files are stored (spec.md §6.3).
	TleCacheDir string `yaml:"tle_cache_dir"`

	// DefaultHorizonSec is a prediction horizon default that is loaded and
	// validated only: nothing passes it on, and predict_comm falls back to
	// registry.DefaultHorizonSec when time_prediction is omitted.
	DefaultHorizonSec float64 `yaml:"default_horizon_sec"`

	// DefaultStepSec is a prediction step default that is loaded and
	// validated only: nothing passes it on, and predict_comm falls back to
	// registry.DefaultStepSec when step_prediction is omitted.
	DefaultStepSec float64 `yaml:"default_step_sec"`

	// CelestrakRateLimit throttles requests to the TLE catalog service.
	CelestrakRateLimit time.Duration `yaml:"celestrak_rate_limit"`

	// CelestrakTimeout bounds each Celestrak HTTP request.
	CelestrakTimeout time.Duration `yaml:"celestrak_timeout"`

	// LengthPrefixedFraming opts into the alternative wire framing named
	// in spec.md §9 instead of the byte-compatible trailing-digit default.
	LengthPrefixedFraming bool `yaml:"length_prefixed_framing"`
}

// DefaultConfig returns a Config populated with every default above.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:         DefaultListenAddr,
		TleCacheDir:        DefaultTleCacheDir,
		DefaultHorizonSec:  DefaultHorizonSec,
		DefaultStepSec:     DefaultStepSec,
		CelestrakRateLimit: DefaultCelestrakRateLimit,
		CelestrakTimeout:   DefaultCelestrakTimeout,
	}
}

// Validate clamps every out-of-range field back to its default, matching
// the teacher's TLEStoreConfig.Validate (which never fails outright on a
// bad numeric value, only on a semantically invalid group name that has no
// analogue here).
func (c *Config) Validate() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.TleCacheDir == "" {
		c.TleCacheDir = DefaultTleCacheDir
	}
	if c.DefaultHorizonSec <= 0 {
		c.DefaultHorizonSec = DefaultHorizonSec
	}
	if c.DefaultStepSec <= 0 {
		c.DefaultStepSec = DefaultStepSec
	}
	if c.CelestrakRateLimit <= 0 {
		c.CelestrakRateLimit = DefaultCelestrakRateLimit
	}
	if c.CelestrakTimeout <= 0 {
		c.CelestrakTimeout = DefaultCelestrakTimeout
	}
}

// Load reads and parses a YAML config file at path, applying Validate to
// the result. A missing file is not an error: DefaultConfig() is returned
// instead, matching "no persistence across restarts" (spec.md §1) — the
// config file itself is an operator convenience, not required state.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.Validate()
	return cfg, nil
}
