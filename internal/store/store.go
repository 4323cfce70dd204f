package store

import (
	"context"

	"github.com/me/qcal/pkg/model"
)

// Store defines the persistence layer for qcal entities: session summaries,
// the append-only task-instance history, the per-project session lock, and
// the execution-id counters.
type Store interface {
	// Session CRUD
	CreateSession(ctx context.Context, s *model.ExecutionSession) error
	GetSession(ctx context.Context, executionID string) (*model.ExecutionSession, error)
	ListSessions(ctx context.Context, opts model.ListOptions) ([]*model.ExecutionSession, int, error)
	UpdateSession(ctx context.Context, s *model.ExecutionSession) error

	// History sink: append-only. Every task state transition appends a full
	// snapshot record; nothing is updated in place.
	AppendTaskInstance(ctx context.Context, t *model.TaskInstance) error
	ListTaskInstances(ctx context.Context, executionID string) ([]*model.TaskInstance, error)

	// Project lock: find-or-create semantics. AcquireLock fails fast with a
	// LockContentionError when the project is already held.
	AcquireLock(ctx context.Context, projectID, owner string) error
	ReleaseLock(ctx context.Context, projectID string) error
	IsLocked(ctx context.Context, projectID string) (bool, error)

	// NextIndex atomically increments the counter for the key, creating it
	// at 0 on first use, and returns the new value.
	NextIndex(ctx context.Context, key model.CounterKey) (int, error)

	// Topology snapshots, keyed by chip id. Save replaces any previous
	// snapshot for the chip.
	SaveTopology(ctx context.Context, topo *model.Topology) error
	GetTopology(ctx context.Context, chipID string) (*model.Topology, error)
	ListTopologies(ctx context.Context) ([]string, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
