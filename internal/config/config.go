// Package config loads the tracker's run configuration from a YAML file.
package config

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// SupportedSchema is the range of config schema versions this build accepts.
const SupportedSchema = ">= 1.0.0, < 2.0.0"

// Config is the top-level run configuration.
type Config struct {
	SchemaVersion string          `yaml:"schema_version"`
	Allocator     AllocatorConfig `yaml:"allocator"`
	Report        ReportConfig    `yaml:"report"`
	Warn          WarnConfig      `yaml:"warn"`
	Watch         WatchConfig     `yaml:"watch"`
}

// AllocatorConfig selects the underlying allocator backend.
type AllocatorConfig struct {
	Backend   string `yaml:"backend"` // system, mmap, arena
	ArenaSize uint64 `yaml:"arena_size"`
}

// ReportConfig controls shutdown-report delivery.
type ReportConfig struct {
	Path string `yaml:"path"` // empty means standard output
	JSON bool   `yaml:"json"`
}

// WarnConfig routes per-call diagnostics.
type WarnConfig struct {
	Path string `yaml:"path"` // empty means standard error
}

// WatchConfig enables the live-dump control file.
type WatchConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ControlFile string `yaml:"control_file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		SchemaVersion: "1.0.0",
		Allocator: AllocatorConfig{
			Backend:   "system",
			ArenaSize: 1 << 20,
		},
	}
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the schema version and backend selection.
func (c *Config) Validate() error {
	ver, err := semver.NewVersion(c.SchemaVersion)
	if err != nil {
		return fmt.Errorf("invalid schema_version %q: %w", c.SchemaVersion, err)
	}

	constraint, err := semver.NewConstraint(SupportedSchema)
	if err != nil {
		return fmt.Errorf("invalid schema constraint: %w", err)
	}

	if !constraint.Check(ver) {
		return fmt.Errorf("schema_version %s outside supported range %s", ver, SupportedSchema)
	}

	switch c.Allocator.Backend {
	case "system", "mmap", "arena":
	default:
		return fmt.Errorf("unknown allocator backend %q", c.Allocator.Backend)
	}

	if c.Allocator.Backend == "arena" && c.Allocator.ArenaSize == 0 {
		return fmt.Errorf("arena backend requires a non-zero arena_size")
	}

	if c.Watch.Enabled && c.Watch.ControlFile == "" {
		return fmt.Errorf("watch enabled without a control_file")
	}

	return nil
}
