package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds configuration for the qcald server.
type ServerConfig struct {
	Addr      string `yaml:"addr"`       // Listen address (default ":8080")
	LogLevel  string `yaml:"log_level"`  // Log level: debug, info, warn, error
	LogFormat string `yaml:"log_format"` // Log format: text, json
	DBPath    string `yaml:"db_path"`    // SQLite database path (default ~/.qcal/qcal.db, ":memory:" for testing)

	Engine EngineConfig `yaml:"engine"`
}

// EngineConfig holds the tunable bounds of the scheduling and lifecycle
// engines. Quality-gate thresholds and retry/timeout bounds are deployment
// configuration, not fixed by the core logic.
type EngineConfig struct {
	// MaxParallelOps caps how many coupling operations one stage may carry.
	// Zero means unlimited.
	MaxParallelOps int `yaml:"max_parallel_ops"`

	// Workers sizes the fan-out pool for parallel schedule-tree nodes and
	// stage drivers.
	Workers int `yaml:"workers"`

	// R2Threshold rejects fit results whose quality score falls under it.
	R2Threshold float64 `yaml:"r2_threshold"`

	// FidelityThreshold rejects calibration results under it.
	FidelityThreshold float64 `yaml:"fidelity_threshold"`

	// MaxRetries bounds re-execution of a failed backend call per target.
	MaxRetries int `yaml:"max_retries"`

	// TaskTimeout bounds a single backend call.
	TaskTimeout Duration `yaml:"task_timeout"`
}

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

// UnmarshalYAML decodes either a duration string ("10m") or a bare number of
// seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs float64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("invalid duration at line %d", value.Line)
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String formats the duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
		Engine:    DefaultEngineConfig(),
	}
}

// DefaultEngineConfig returns the default engine bounds.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxParallelOps:    8,
		Workers:           4,
		R2Threshold:       0.7,
		FidelityThreshold: 0.9,
		MaxRetries:        2,
		TaskTimeout:       Duration(10 * time.Minute),
	}
}

// Load reads a ServerConfig from a YAML file, layered over defaults.
func Load(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Engine.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects bounds that the engines cannot run with.
func (c EngineConfig) Validate() error {
	if c.MaxParallelOps < 0 {
		return fmt.Errorf("max_parallel_ops must be >= 0, got %d", c.MaxParallelOps)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if c.R2Threshold < 0 || c.R2Threshold > 1 {
		return fmt.Errorf("r2_threshold must be in [0,1], got %g", c.R2Threshold)
	}
	if c.FidelityThreshold < 0 || c.FidelityThreshold > 1 {
		return fmt.Errorf("fidelity_threshold must be in [0,1], got %g", c.FidelityThreshold)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.TaskTimeout <= 0 {
		return fmt.Errorf("task_timeout must be positive, got %s", c.TaskTimeout)
	}
	return nil
}
