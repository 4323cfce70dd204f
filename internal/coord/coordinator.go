// Package coord brackets calibration sessions: the per-project mutual
// exclusion lock and the execution-id counter.
package coord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/qcal/internal/store"
	"github.com/me/qcal/pkg/model"
)

// counterAttempts bounds the internal retry on a counter increment race.
// Collisions are rare and never surfaced to callers.
const counterAttempts = 3

// Coordinator owns session-level mutual exclusion and execution-id minting.
type Coordinator struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the wall clock. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// New creates a Coordinator backed by the given store.
func New(st store.Store, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:  st,
		logger: logger.With("component", "coordinator"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AcquireProject takes the per-project lock. Fails fast with a
// LockContentionError when another session holds it; never blocks.
func (c *Coordinator) AcquireProject(ctx context.Context, projectID, owner string) error {
	if err := c.store.AcquireLock(ctx, projectID, owner); err != nil {
		return err
	}
	c.logger.Info("project locked", "project_id", projectID, "owner", owner)
	return nil
}

// ReleaseProject releases the per-project lock. Callers defer this on every
// session exit path.
func (c *Coordinator) ReleaseProject(ctx context.Context, projectID string) error {
	if err := c.store.ReleaseLock(ctx, projectID); err != nil {
		return err
	}
	c.logger.Info("project unlocked", "project_id", projectID)
	return nil
}

// IsLocked reports whether the project is currently held.
func (c *Coordinator) IsLocked(ctx context.Context, projectID string) (bool, error) {
	return c.store.IsLocked(ctx, projectID)
}

// MintExecutionID atomically advances the per-(date, user, chip, project)
// counter and formats the execution id ("20260828-003"). Increment races are
// retried internally up to counterAttempts.
func (c *Coordinator) MintExecutionID(ctx context.Context, username, chipID, projectID string) (string, error) {
	date := c.now().UTC()
	key := model.CounterKeyFor(date, username, chipID, projectID)

	var lastErr error
	for attempt := 0; attempt < counterAttempts; attempt++ {
		index, err := c.store.NextIndex(ctx, key)
		if err == nil {
			id := model.FormatExecutionID(date, index)
			c.logger.Info("execution id minted", "execution_id", id, "username", username, "chip_id", chipID)
			return id, nil
		}
		lastErr = err
		c.logger.Warn("counter increment retry", "attempt", attempt+1, "error", err)
	}
	return "", fmt.Errorf("mint execution id after %d attempts: %w", counterAttempts, lastErr)
}
