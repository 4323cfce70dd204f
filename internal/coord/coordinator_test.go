package coord

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/me/qcal/internal/logging"
	"github.com/me/qcal/internal/store"
	"github.com/me/qcal/pkg/model"
)

func testStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:", logging.Discard())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func fixedClock() time.Time {
	return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
}

func TestMintExecutionID(t *testing.T) {
	c := New(testStore(t), logging.Discard(), WithClock(fixedClock))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id, err := c.MintExecutionID(ctx, "alice", "chip64", "proj-1")
		if err != nil {
			t.Fatalf("MintExecutionID: %v", err)
		}
		want := fmt.Sprintf("20260828-%03d", i)
		if id != want {
			t.Errorf("execution id = %q, want %q", id, want)
		}
	}

	// A different user keys a separate counter.
	id, err := c.MintExecutionID(ctx, "bob", "chip64", "proj-1")
	if err != nil {
		t.Fatalf("MintExecutionID(bob): %v", err)
	}
	if id != "20260828-000" {
		t.Errorf("bob's first id = %q, want 20260828-000", id)
	}
}

func TestLockRoundTrip(t *testing.T) {
	c := New(testStore(t), logging.Discard())
	ctx := context.Background()

	if err := c.AcquireProject(ctx, "proj-1", "alice"); err != nil {
		t.Fatalf("AcquireProject: %v", err)
	}
	locked, err := c.IsLocked(ctx, "proj-1")
	if err != nil || !locked {
		t.Fatalf("IsLocked after acquire = %v, %v", locked, err)
	}

	var contention *model.LockContentionError
	if err := c.AcquireProject(ctx, "proj-1", "bob"); !errors.As(err, &contention) {
		t.Fatalf("second acquire: expected LockContentionError, got %v", err)
	}

	if err := c.ReleaseProject(ctx, "proj-1"); err != nil {
		t.Fatalf("ReleaseProject: %v", err)
	}
	locked, err = c.IsLocked(ctx, "proj-1")
	if err != nil || locked {
		t.Fatalf("IsLocked after release = %v, %v", locked, err)
	}
}

// flakyCounterStore fails the first NextIndex calls to exercise the internal
// collision retry.
type flakyCounterStore struct {
	store.Store
	failures int
}

func (f *flakyCounterStore) NextIndex(ctx context.Context, key model.CounterKey) (int, error) {
	if f.failures > 0 {
		f.failures--
		return 0, errors.New("simulated counter collision")
	}
	return f.Store.NextIndex(ctx, key)
}

func TestMintRetriesCounterCollision(t *testing.T) {
	flaky := &flakyCounterStore{Store: testStore(t), failures: 2}
	c := New(flaky, logging.Discard(), WithClock(fixedClock))

	id, err := c.MintExecutionID(context.Background(), "alice", "chip64", "proj-1")
	if err != nil {
		t.Fatalf("MintExecutionID should survive transient collisions: %v", err)
	}
	if id != "20260828-000" {
		t.Errorf("id = %q, want 20260828-000", id)
	}

	exhausted := &flakyCounterStore{Store: testStore(t), failures: 10}
	c = New(exhausted, logging.Discard(), WithClock(fixedClock))
	if _, err := c.MintExecutionID(context.Background(), "alice", "chip64", "proj-1"); err == nil {
		t.Error("expected error after exhausting counter retries")
	}
}
