package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qcal.yaml")
	src := `
addr: ":9090"
engine:
  max_parallel_ops: 4
  r2_threshold: 0.95
  task_timeout: 30s
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q, want :9090", cfg.Addr)
	}
	if cfg.Engine.MaxParallelOps != 4 {
		t.Errorf("MaxParallelOps = %d, want 4", cfg.Engine.MaxParallelOps)
	}
	if cfg.Engine.R2Threshold != 0.95 {
		t.Errorf("R2Threshold = %g, want 0.95", cfg.Engine.R2Threshold)
	}
	if cfg.Engine.TaskTimeout.Std() != 30*time.Second {
		t.Errorf("TaskTimeout = %s, want 30s", cfg.Engine.TaskTimeout)
	}
	// Untouched fields keep defaults.
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want default info", cfg.LogLevel)
	}
	if cfg.Engine.FidelityThreshold != 0.9 {
		t.Errorf("FidelityThreshold = %g, want default 0.9", cfg.Engine.FidelityThreshold)
	}
}

func TestLoadRejectsInvalidBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qcal.yaml")
	src := "engine:\n  r2_threshold: 1.5\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected validation error for r2_threshold out of range")
	}
}

func TestEngineConfigValidate(t *testing.T) {
	cfg := DefaultEngineConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	bad := cfg
	bad.Workers = 0
	if err := bad.Validate(); err == nil {
		t.Error("workers=0 should fail validation")
	}

	bad = cfg
	bad.TaskTimeout = 0
	if err := bad.Validate(); err == nil {
		t.Error("task_timeout=0 should fail validation")
	}
}
