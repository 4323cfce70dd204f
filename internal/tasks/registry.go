// Package tasks holds the calibration task registry: an explicit mapping
// from (backend, task name) to task definitions, populated by deliberate
// registration calls at process start.
package tasks

import (
	"log/slog"
	"sort"

	"github.com/me/qcal/pkg/model"
)

// Factory builds a fresh TaskDef. Returning a new value per call keeps
// default parameter maps unshared between executions.
type Factory func() *model.TaskDef

// Registry maps (backend, task name) to task factories.
type Registry struct {
	factories map[string]Factory
	logger    *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		logger:    logger.With("component", "task-registry"),
	}
}

func key(backend, name string) string {
	return backend + "/" + name
}

// Register adds a task factory for the given backend, replacing any previous
// registration under the same name.
func (r *Registry) Register(backend, name string, factory Factory) {
	r.factories[key(backend, name)] = factory
	r.logger.Debug("task registered", "backend", backend, "task", name)
}

// Resolve returns a fresh TaskDef for the named task. An unknown (backend,
// name) combination is a ConfigurationError: fatal for the enclosing stage.
func (r *Registry) Resolve(backend, name string) (*model.TaskDef, error) {
	factory, ok := r.factories[key(backend, name)]
	if !ok {
		return nil, &model.ConfigurationError{Msg: "task " + name + " is not registered for backend " + backend}
	}
	def := factory()
	def.Backend = backend
	def.Name = name
	return def, nil
}

// Names returns the task names registered for a backend, sorted.
func (r *Registry) Names(backend string) []string {
	prefix := backend + "/"
	var names []string
	for k := range r.factories {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			names = append(names, k[len(prefix):])
		}
	}
	sort.Strings(names)
	return names
}

// def is a convenience Factory for a static definition.
func def(taskType model.TaskType, params map[string]any) Factory {
	return func() *model.TaskDef {
		copied := make(map[string]any, len(params))
		for k, v := range params {
			copied[k] = v
		}
		return &model.TaskDef{Type: taskType, Params: copied}
	}
}

// RegisterDefaults registers the standard calibration task set for the given
// backend. The names mirror the usual single-qubit, coupling, and
// system-level calibration routines; their physics lives entirely behind the
// backend boundary.
func RegisterDefaults(r *Registry, backend string) {
	// System and global preconditions.
	r.Register(backend, "CheckStatus", def(model.TaskTypeSystem, nil))
	r.Register(backend, "DumpBox", def(model.TaskTypeSystem, nil))
	r.Register(backend, "CheckNoise", def(model.TaskTypeGlobal, nil))

	// Single-qubit routines.
	r.Register(backend, "CheckQubitFrequency", def(model.TaskTypeQubit, map[string]any{"detuning_range_ghz": 0.05}))
	r.Register(backend, "RabiOscillation", def(model.TaskTypeQubit, map[string]any{"shots": 1024}))
	r.Register(backend, "RamseyFringe", def(model.TaskTypeQubit, map[string]any{"shots": 1024}))
	r.Register(backend, "CheckT1", def(model.TaskTypeQubit, nil))
	r.Register(backend, "CheckT2Echo", def(model.TaskTypeQubit, nil))
	r.Register(backend, "ReadoutClassification", def(model.TaskTypeQubit, map[string]any{"shots": 4096}))
	r.Register(backend, "RandomizedBenchmarking", def(model.TaskTypeQubit, map[string]any{"sequence_lengths": []any{1, 4, 16, 64, 256}}))

	// Two-qubit (coupling) routines.
	r.Register(backend, "CheckCrossResonance", def(model.TaskTypeCoupling, nil))
	r.Register(backend, "ZX90Calibration", def(model.TaskTypeCoupling, map[string]any{"shots": 2048}))
	r.Register(backend, "InterleavedRandomizedBenchmarking", def(model.TaskTypeCoupling, map[string]any{"sequence_lengths": []any{1, 2, 4, 8, 16}}))
}
