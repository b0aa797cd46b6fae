// Package config handles DGVM configuration via environment variables.
//
// DGVM reads its configuration from environment variables, all prefixed
// DGVM_, plus an optional YAML override file for settings that are awkward
// to express as a single env var (persistence options, logging).
//
// Configuration is loaded from environment variables using LoadFromEnv() and
// can be validated with Validate() before use.
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//
//	fmt.Printf("heap capacity hint %d, persistence=%v\n",
//		cfg.Heap.InitialCapacityHint, cfg.Persistence.Enabled)
//
// Environment Variables:
//
//   - DGVM_HEAP_INITIAL_CAPACITY=0
//   - DGVM_HEAP_CHECKPOINT_LIMIT=0
//   - DGVM_COLLAPSE_ON_IDLE=false
//   - DGVM_COLLAPSE_IDLE_INTERVAL=5m
//   - DGVM_PERSIST_ENABLED=false
//   - DGVM_PERSIST_DATA_DIR=./data
//   - DGVM_PERSIST_SYNC_WRITES=true
//   - DGVM_LOG_LEVEL=INFO
//   - DGVM_LOG_FORMAT=json
//   - DGVM_LOG_OUTPUT=stdout
//   - DGVM_CONFIG_FILE="" (path to an optional YAML override)
//
// For a complete list, see the Config struct field documentation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all DGVM configuration.
//
// Configuration is organized into logical sections:
//   - Heap: versioned heap sizing and checkpoint limits
//   - Collapse: idle-collapse scheduling
//   - Persistence: optional Badger-backed durability for the heap and commit log
//   - Logging: logging configuration
//
// Use LoadFromEnv() to create a Config from environment variables, then
// optionally call LoadOverrideFile() to apply a YAML override on top.
type Config struct {
	// Heap sizing and checkpoint behavior.
	Heap HeapConfig

	// Collapse controls idle-time heap collapsing.
	Collapse CollapseConfig

	// Persistence controls optional Badger-backed durability.
	Persistence PersistenceConfig

	// Logging configuration.
	Logging LoggingConfig
}

// HeapConfig holds versioned-heap sizing settings.
type HeapConfig struct {
	// InitialCapacityHint is loaded and validated (it must be >= 0), but
	// no package in this module reads it: heap trees are always created
	// with Go's default map sizing, and the heap's PercentUsed size hint
	// comes from the sizeHint argument to vm.New.
	InitialCapacityHint int
	// CheckpointLimit caps how many checkpoint layers may be open at
	// once. Zero means unlimited.
	CheckpointLimit int
}

// CollapseConfig holds idle-collapse scheduling settings.
type CollapseConfig struct {
	// OnIdleEnabled records whether idle-time collapsing is wanted.
	// Validate requires a positive IdleInterval when it is set; no
	// package in this module reads it, and no automatic collapse runs.
	OnIdleEnabled bool
	// IdleInterval is the idle period paired with OnIdleEnabled. It is
	// loaded and validated only; nothing in this module schedules on it.
	IdleInterval time.Duration
}

// PersistenceConfig holds optional Badger-backed durability settings.
type PersistenceConfig struct {
	// Enabled turns on the Badger-backed heap and commit log. When
	// false, the heap and commit log are in-memory only.
	Enabled bool
	// DataDir is the directory Badger stores its files under.
	DataDir string
	// SyncWrites forces an fsync on every Badger write. Slower, but
	// survives a hard crash without losing the last commit.
	SyncWrites bool
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR.
	Level string
	// Format is "json" or "text".
	Format string
	// Output is "stdout", "stderr", or a file path.
	Output string
}

// LoadFromEnv reads configuration from DGVM_* environment variables,
// falling back to defaults that are safe for local development and
// testing: no persistence, no idle collapse, an unbounded heap.
//
// Call Validate() after LoadFromEnv() and before constructing a VM.
func LoadFromEnv() *Config {
	cfg := &Config{}

	cfg.Heap.InitialCapacityHint = getEnvInt("DGVM_HEAP_INITIAL_CAPACITY", 0)
	cfg.Heap.CheckpointLimit = getEnvInt("DGVM_HEAP_CHECKPOINT_LIMIT", 0)

	cfg.Collapse.OnIdleEnabled = getEnvBool("DGVM_COLLAPSE_ON_IDLE", false)
	cfg.Collapse.IdleInterval = getEnvDuration("DGVM_COLLAPSE_IDLE_INTERVAL", 5*time.Minute)

	cfg.Persistence.Enabled = getEnvBool("DGVM_PERSIST_ENABLED", false)
	cfg.Persistence.DataDir = getEnv("DGVM_PERSIST_DATA_DIR", "./data")
	cfg.Persistence.SyncWrites = getEnvBool("DGVM_PERSIST_SYNC_WRITES", true)

	cfg.Logging.Level = getEnv("DGVM_LOG_LEVEL", "INFO")
	cfg.Logging.Format = getEnv("DGVM_LOG_FORMAT", "json")
	cfg.Logging.Output = getEnv("DGVM_LOG_OUTPUT", "stdout")

	if path := getEnv("DGVM_CONFIG_FILE", ""); path != "" {
		if err := cfg.LoadOverrideFile(path); err != nil {
			// Missing or malformed override file falls back to the
			// env-derived config rather than failing LoadFromEnv, which
			// has no error return. Validate() will still catch a
			// resulting invalid config.
		}
	}

	return cfg
}

// LoadOverrideFile reads a YAML file and merges any fields it sets on top
// of the receiver. Fields absent from the file are left untouched.
//
// The YAML shape mirrors the Config struct, e.g.:
//
//	persistence:
//	  enabled: true
//	  data_dir: /var/lib/dgvm
//	collapse:
//	  on_idle: true
func (c *Config) LoadOverrideFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading override file: %w", err)
	}

	var override configFile
	if err := yaml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("config: parsing override file: %w", err)
	}
	override.applyTo(c)
	return nil
}

// configFile mirrors Config with pointer fields so yaml.Unmarshal can
// distinguish "not set in the file" from "set to the zero value".
type configFile struct {
	Heap *struct {
		InitialCapacityHint *int `yaml:"initial_capacity"`
		CheckpointLimit     *int `yaml:"checkpoint_limit"`
	} `yaml:"heap"`
	Collapse *struct {
		OnIdleEnabled *bool   `yaml:"on_idle"`
		IdleInterval  *string `yaml:"idle_interval"`
	} `yaml:"collapse"`
	Persistence *struct {
		Enabled    *bool   `yaml:"enabled"`
		DataDir    *string `yaml:"data_dir"`
		SyncWrites *bool   `yaml:"sync_writes"`
	} `yaml:"persistence"`
	Logging *struct {
		Level  *string `yaml:"level"`
		Format *string `yaml:"format"`
		Output *string `yaml:"output"`
	} `yaml:"logging"`
}

func (f *configFile) applyTo(c *Config) {
	if f.Heap != nil {
		if f.Heap.InitialCapacityHint != nil {
			c.Heap.InitialCapacityHint = *f.Heap.InitialCapacityHint
		}
		if f.Heap.CheckpointLimit != nil {
			c.Heap.CheckpointLimit = *f.Heap.CheckpointLimit
		}
	}
	if f.Collapse != nil {
		if f.Collapse.OnIdleEnabled != nil {
			c.Collapse.OnIdleEnabled = *f.Collapse.OnIdleEnabled
		}
		if f.Collapse.IdleInterval != nil {
			if d, err := time.ParseDuration(*f.Collapse.IdleInterval); err == nil {
				c.Collapse.IdleInterval = d
			}
		}
	}
	if f.Persistence != nil {
		if f.Persistence.Enabled != nil {
			c.Persistence.Enabled = *f.Persistence.Enabled
		}
		if f.Persistence.DataDir != nil {
			c.Persistence.DataDir = *f.Persistence.DataDir
		}
		if f.Persistence.SyncWrites != nil {
			c.Persistence.SyncWrites = *f.Persistence.SyncWrites
		}
	}
	if f.Logging != nil {
		if f.Logging.Level != nil {
			c.Logging.Level = *f.Logging.Level
		}
		if f.Logging.Format != nil {
			c.Logging.Format = *f.Logging.Format
		}
		if f.Logging.Output != nil {
			c.Logging.Output = *f.Logging.Output
		}
	}
}

// Validate checks the configuration for logical errors and invalid values.
//
// Returns nil if configuration is valid, or an error describing the problem.
func (c *Config) Validate() error {
	if c.Heap.InitialCapacityHint < 0 {
		return fmt.Errorf("heap initial capacity hint must be >= 0, got %d", c.Heap.InitialCapacityHint)
	}
	if c.Heap.CheckpointLimit < 0 {
		return fmt.Errorf("heap checkpoint limit must be >= 0, got %d", c.Heap.CheckpointLimit)
	}
	if c.Collapse.OnIdleEnabled && c.Collapse.IdleInterval <= 0 {
		return fmt.Errorf("collapse idle interval must be > 0 when on-idle collapse is enabled")
	}
	if c.Persistence.Enabled && c.Persistence.DataDir == "" {
		return fmt.Errorf("persistence enabled but no data directory provided")
	}
	switch strings.ToUpper(c.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	return nil
}

// String returns a string representation of the Config suitable for
// logging and debugging.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Persist: %v, DataDir: %s, CollapseOnIdle: %v, LogLevel: %s}",
		c.Persistence.Enabled,
		c.Persistence.DataDir,
		c.Collapse.OnIdleEnabled,
		c.Logging.Level,
	)
}

// Helper functions for environment variable parsing.

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}
