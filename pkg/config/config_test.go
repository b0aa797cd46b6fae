package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	clearDGVMEnv(t)

	cfg := LoadFromEnv()

	if cfg.Heap.InitialCapacityHint != 0 {
		t.Errorf("expected default initial capacity hint 0, got %d", cfg.Heap.InitialCapacityHint)
	}
	if cfg.Collapse.OnIdleEnabled {
		t.Errorf("expected collapse-on-idle disabled by default")
	}
	if cfg.Persistence.Enabled {
		t.Errorf("expected persistence disabled by default")
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("expected default log level INFO, got %q", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	clearDGVMEnv(t)
	t.Setenv("DGVM_PERSIST_ENABLED", "true")
	t.Setenv("DGVM_PERSIST_DATA_DIR", "/var/lib/dgvm")
	t.Setenv("DGVM_COLLAPSE_ON_IDLE", "true")
	t.Setenv("DGVM_COLLAPSE_IDLE_INTERVAL", "10s")
	t.Setenv("DGVM_LOG_LEVEL", "DEBUG")

	cfg := LoadFromEnv()

	if !cfg.Persistence.Enabled {
		t.Errorf("expected persistence enabled")
	}
	if cfg.Persistence.DataDir != "/var/lib/dgvm" {
		t.Errorf("unexpected data dir: %q", cfg.Persistence.DataDir)
	}
	if !cfg.Collapse.OnIdleEnabled {
		t.Errorf("expected collapse-on-idle enabled")
	}
	if cfg.Collapse.IdleInterval != 10*time.Second {
		t.Errorf("unexpected idle interval: %v", cfg.Collapse.IdleInterval)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("unexpected log level: %q", cfg.Logging.Level)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*Config)
	}{
		{"negative capacity hint", func(c *Config) { c.Heap.InitialCapacityHint = -1 }},
		{"negative checkpoint limit", func(c *Config) { c.Heap.CheckpointLimit = -1 }},
		{"idle collapse without interval", func(c *Config) {
			c.Collapse.OnIdleEnabled = true
			c.Collapse.IdleInterval = 0
		}},
		{"persistence without data dir", func(c *Config) {
			c.Persistence.Enabled = true
			c.Persistence.DataDir = ""
		}},
		{"bad log level", func(c *Config) { c.Logging.Level = "VERBOSE" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := LoadFromEnv()
			tc.mod(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestLoadOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/dgvm.yaml"
	contents := "persistence:\n  enabled: true\n  data_dir: /tmp/dgvm-data\ncollapse:\n  on_idle: true\n  idle_interval: 1m\nlogging:\n  level: WARN\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing override file: %v", err)
	}

	cfg := &Config{Logging: LoggingConfig{Level: "INFO"}}
	if err := cfg.LoadOverrideFile(path); err != nil {
		t.Fatalf("LoadOverrideFile: %v", err)
	}

	if !cfg.Persistence.Enabled || cfg.Persistence.DataDir != "/tmp/dgvm-data" {
		t.Errorf("persistence override not applied: %+v", cfg.Persistence)
	}
	if !cfg.Collapse.OnIdleEnabled || cfg.Collapse.IdleInterval != time.Minute {
		t.Errorf("collapse override not applied: %+v", cfg.Collapse)
	}
	if cfg.Logging.Level != "WARN" {
		t.Errorf("logging override not applied: %+v", cfg.Logging)
	}
}

func TestLoadOverrideFileMissing(t *testing.T) {
	cfg := &Config{}
	if err := cfg.LoadOverrideFile("/nonexistent/dgvm.yaml"); err == nil {
		t.Errorf("expected error for missing override file")
	}
}

func clearDGVMEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DGVM_HEAP_INITIAL_CAPACITY", "DGVM_HEAP_CHECKPOINT_LIMIT",
		"DGVM_COLLAPSE_ON_IDLE", "DGVM_COLLAPSE_IDLE_INTERVAL",
		"DGVM_PERSIST_ENABLED", "DGVM_PERSIST_DATA_DIR", "DGVM_PERSIST_SYNC_WRITES",
		"DGVM_LOG_LEVEL", "DGVM_LOG_FORMAT", "DGVM_LOG_OUTPUT", "DGVM_CONFIG_FILE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}
