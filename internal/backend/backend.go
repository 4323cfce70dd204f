// Package backend defines the capability boundary to the instrument-control
// system that physically performs calibration operations. The core consumes
// it opaquely: connect, run a named task against a target, report a version.
package backend

import (
	"context"
	"log/slog"
	"sort"

	"github.com/me/qcal/pkg/model"
)

// Backend is one instrument-control implementation. Implementations are
// selected by identifier through a Factories set, never by inheritance.
type Backend interface {
	// Name returns the backend identifier ("sim", "qube", ...).
	Name() string

	// Version reports the backend software version for history records.
	Version() string

	// Connect establishes the instrument link. Idempotent.
	Connect(ctx context.Context) error

	// RunTask performs the named calibration operation against the target
	// (a qubit id, a pair key, or a comma-joined qubit list for batch
	// operations) and returns the raw result parameters. RunTask may block
	// for the full hardware-operation duration; callers bound it with ctx.
	RunTask(ctx context.Context, name, target string, params map[string]any) (map[string]any, error)
}

// Factory builds a Backend instance.
type Factory func(logger *slog.Logger) (Backend, error)

// Factories is an explicit backend registry built by deliberate registration
// calls at process start. No import-time global state.
type Factories struct {
	factories map[string]Factory
	logger    *slog.Logger
}

// NewFactories creates an empty Factories set.
func NewFactories(logger *slog.Logger) *Factories {
	return &Factories{
		factories: make(map[string]Factory),
		logger:    logger.With("component", "backend-factories"),
	}
}

// Register adds a factory under the given backend identifier, replacing any
// previous registration.
func (f *Factories) Register(name string, factory Factory) {
	f.factories[name] = factory
	f.logger.Info("backend registered", "backend", name)
}

// New builds the backend with the given identifier. Unknown identifiers are
// a ConfigurationError: fatal for the enclosing stage or session.
func (f *Factories) New(name string) (Backend, error) {
	factory, ok := f.factories[name]
	if !ok {
		return nil, &model.ConfigurationError{Msg: "no backend registered for " + name}
	}
	return factory(f.logger)
}

// Names returns the registered backend identifiers, sorted.
func (f *Factories) Names() []string {
	names := make([]string, 0, len(f.factories))
	for name := range f.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
