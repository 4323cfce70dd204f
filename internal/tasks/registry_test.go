package tasks

import (
	"errors"
	"testing"

	"github.com/me/qcal/internal/logging"
	"github.com/me/qcal/pkg/model"
)

func TestResolveReturnsFreshDefs(t *testing.T) {
	reg := NewRegistry(logging.Discard())
	RegisterDefaults(reg, "sim")

	first, err := reg.Resolve("sim", "RabiOscillation")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if first.Name != "RabiOscillation" || first.Backend != "sim" {
		t.Errorf("def = %+v", first)
	}
	if first.Type != model.TaskTypeQubit {
		t.Errorf("Type = %s, want qubit", first.Type)
	}

	// Mutating one resolution must not leak into the next.
	first.Params["shots"] = 9999
	second, err := reg.Resolve("sim", "RabiOscillation")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if second.Params["shots"] != 1024 {
		t.Errorf("default params leaked between resolutions: %v", second.Params)
	}
}

func TestResolveUnknownTask(t *testing.T) {
	reg := NewRegistry(logging.Discard())
	RegisterDefaults(reg, "sim")

	var cfgErr *model.ConfigurationError

	_, err := reg.Resolve("sim", "NoSuchTask")
	if !errors.As(err, &cfgErr) {
		t.Errorf("unknown task: expected ConfigurationError, got %v", err)
	}

	_, err = reg.Resolve("qube", "RabiOscillation")
	if !errors.As(err, &cfgErr) {
		t.Errorf("unknown backend: expected ConfigurationError, got %v", err)
	}
}

func TestNames(t *testing.T) {
	reg := NewRegistry(logging.Discard())
	reg.Register("sim", "B", func() *model.TaskDef { return &model.TaskDef{} })
	reg.Register("sim", "A", func() *model.TaskDef { return &model.TaskDef{} })
	reg.Register("qube", "C", func() *model.TaskDef { return &model.TaskDef{} })

	names := reg.Names("sim")
	if len(names) != 2 || names[0] != "A" || names[1] != "B" {
		t.Errorf("Names(sim) = %v, want [A B]", names)
	}
}
