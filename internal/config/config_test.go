package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	before := *cfg
	cfg.Validate()
	if *cfg != before {
		t.Errorf("Validate() changed an already-default config: %+v != %+v", *cfg, before)
	}
}

func TestValidateClampsOutOfRangeValues(t *testing.T) {
	cfg := &Config{
		ListenAddr:         "",
		TleCacheDir:        "",
		DefaultHorizonSec:  -1,
		DefaultStepSec:     0,
		CelestrakRateLimit: -1,
		CelestrakTimeout:   0,
	}
	cfg.Validate()

	want := DefaultConfig()
	if *cfg != *want {
		t.Errorf("Validate() = %+v, want defaults %+v", *cfg, *want)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("Load(missing) = %+v, want defaults", *cfg)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orbitrak.yaml")
	yamlBody := "listen_addr: \":7000\"\ntle_cache_dir: /var/tle\ncelestrak_rate_limit: 5s\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":7000" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":7000")
	}
	if cfg.TleCacheDir != "/var/tle" {
		t.Errorf("TleCacheDir = %q, want %q", cfg.TleCacheDir, "/var/tle")
	}
	if cfg.CelestrakRateLimit != 5*time.Second {
		t.Errorf("CelestrakRateLimit = %v, want 5s", cfg.CelestrakRateLimit)
	}
	// Fields absent from the file keep their defaults after Validate.
	if cfg.DefaultStepSec != DefaultStepSec {
		t.Errorf("DefaultStepSec = %v, want default %v", cfg.DefaultStepSec, DefaultStepSec)
	}
}
