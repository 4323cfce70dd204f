package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/me/qcal/internal/backend"
	"github.com/me/qcal/internal/config"
	"github.com/me/qcal/internal/coord"
	"github.com/me/qcal/internal/lifecycle"
	"github.com/me/qcal/internal/logging"
	"github.com/me/qcal/internal/parser"
	"github.com/me/qcal/internal/store"
	"github.com/me/qcal/internal/tasks"
	"github.com/me/qcal/pkg/model"
)

// rigBackend is a scriptable instrument stand-in. By default every call
// succeeds with passing quality scores.
type rigBackend struct {
	mu    sync.Mutex
	calls []string
	fail  func(name, target string) (map[string]any, error)
}

func (b *rigBackend) Name() string                    { return "rig" }
func (b *rigBackend) Version() string                 { return "test" }
func (b *rigBackend) Connect(_ context.Context) error { return nil }
func (b *rigBackend) RunTask(_ context.Context, name, target string, _ map[string]any) (map[string]any, error) {
	b.mu.Lock()
	b.calls = append(b.calls, name+"@"+target)
	b.mu.Unlock()
	if b.fail != nil {
		if out, err := b.fail(name, target); out != nil || err != nil {
			return out, err
		}
	}
	return map[string]any{"r2": 0.99, "fidelity": 0.97}, nil
}

func (b *rigBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

type fixture struct {
	runner *Runner
	store  store.Store
	rig    *rigBackend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logging.Discard()

	st, err := store.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	rig := &rigBackend{}
	factories := backend.NewFactories(logger)
	factories.Register("rig", func(*slog.Logger) (backend.Backend, error) { return rig, nil })

	registry := tasks.NewRegistry(logger)
	tasks.RegisterDefaults(registry, "rig")

	cfg := config.DefaultEngineConfig()
	cfg.MaxRetries = 0
	cfg.TaskTimeout = config.Duration(time.Second)

	co := coord.New(st, logger)
	eng := lifecycle.NewEngine(cfg, st, logger)

	return &fixture{
		runner: NewRunner(cfg, st, co, eng, factories, registry, logger),
		store:  st,
		rig:    rig,
	}
}

func fourQubitTopology() *model.Topology {
	f := func(v float64) *float64 { return &v }
	return &model.Topology{
		ChipID: "chip64",
		Qubits: []model.QubitID{"Q00", "Q01", "Q02", "Q03"},
		Groups: map[model.QubitID]model.GroupID{"Q00": 0, "Q01": 0, "Q02": 1, "Q03": 1},
		Channels: []model.Channel{
			{ID: "boxA", Qubits: []model.QubitID{"Q00", "Q01"}},
			{ID: "boxB", Qubits: []model.QubitID{"Q02", "Q03"}},
		},
		Couplings: []string{"Q00:Q01", "Q02:Q03"},
		QubitMeta: map[model.QubitID]model.QubitMeta{
			"Q00": {Frequency: f(5.0)},
			"Q01": {Frequency: f(5.2)},
			"Q02": {Frequency: f(5.1)},
			"Q03": {Frequency: f(5.3)},
		},
	}
}

func baseRequest(flow *parser.Flow) Request {
	return Request{
		Username:  "alice",
		ProjectID: "proj-1",
		Topology:  fourQubitTopology(),
		Flow:      flow,
	}
}

func outcomesByState(sess *model.ExecutionSession, state model.TaskState) int {
	n := 0
	for _, o := range sess.Outcomes {
		if o.State == state {
			n++
		}
	}
	return n
}

func TestRunOneQubitFlowCompletes(t *testing.T) {
	fx := newFixture(t)
	flow := &parser.Flow{
		Name:    "nightly",
		Backend: "rig",
		Tasks: []model.TaskDef{
			{Name: "CheckStatus", Type: model.TaskTypeSystem},
			{Name: "CheckT1", Type: model.TaskTypeQubit},
		},
	}

	sess, err := fx.runner.Run(context.Background(), baseRequest(flow))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sess.State != model.SessionStateCompleted {
		t.Errorf("state = %s, want COMPLETED", sess.State)
	}
	wantPrefix := time.Now().UTC().Format("20060102") + "-"
	if !strings.HasPrefix(sess.ExecutionID, wantPrefix) {
		t.Errorf("execution id = %q, want prefix %q", sess.ExecutionID, wantPrefix)
	}

	// One system precondition plus one qubit task per target.
	if len(sess.Outcomes) != 5 {
		t.Fatalf("outcomes = %d, want 5: %+v", len(sess.Outcomes), sess.Outcomes)
	}
	if got := outcomesByState(sess, model.TaskStateSuccess); got != 5 {
		t.Errorf("successful outcomes = %d, want 5", got)
	}

	// The summary is persisted and the lock released.
	stored, err := fx.store.GetSession(context.Background(), sess.ExecutionID)
	if err != nil || stored == nil || stored.State != model.SessionStateCompleted {
		t.Errorf("stored session = %+v, err %v", stored, err)
	}
	locked, err := fx.store.IsLocked(context.Background(), "proj-1")
	if err != nil || locked {
		t.Errorf("lock held after session end: locked=%v err=%v", locked, err)
	}
}

func TestRunIsolatesSingleQubitValidationFailure(t *testing.T) {
	fx := newFixture(t)
	fx.rig.fail = func(name, target string) (map[string]any, error) {
		if target == "Q02" {
			return map[string]any{"r2": 0.99, "fidelity": 0.5}, nil
		}
		return nil, nil
	}
	flow := &parser.Flow{
		Name:    "nightly",
		Backend: "rig",
		Tasks:   []model.TaskDef{{Name: "CheckT1", Type: model.TaskTypeQubit}},
	}

	sess, err := fx.runner.Run(context.Background(), baseRequest(flow))
	if err != nil {
		t.Fatalf("partial success must not fail the session: %v", err)
	}
	if sess.State != model.SessionStateCompleted {
		t.Errorf("state = %s, want COMPLETED", sess.State)
	}
	if got := outcomesByState(sess, model.TaskStateSuccess); got != 3 {
		t.Errorf("successful outcomes = %d, want 3", got)
	}
	if got := outcomesByState(sess, model.TaskStateFailed); got != 1 {
		t.Errorf("failed outcomes = %d, want 1", got)
	}
	for _, o := range sess.Outcomes {
		if o.Target == "Q02" && o.ErrorKind != model.KindFidelityValidation {
			t.Errorf("Q02 error kind = %q", o.ErrorKind)
		}
	}
}

func TestRunGlobalTaskFailureIsFatal(t *testing.T) {
	fx := newFixture(t)
	fx.rig.fail = func(name, _ string) (map[string]any, error) {
		if name == "CheckNoise" {
			return nil, errors.New("noise floor unavailable")
		}
		return nil, nil
	}
	flow := &parser.Flow{
		Name:    "nightly",
		Backend: "rig",
		Tasks: []model.TaskDef{
			{Name: "CheckNoise", Type: model.TaskTypeGlobal},
			{Name: "CheckT1", Type: model.TaskTypeQubit},
		},
	}

	sess, err := fx.runner.Run(context.Background(), baseRequest(flow))
	if err == nil {
		t.Fatal("global precondition failure must fail the session")
	}
	if sess.State != model.SessionStateFailed {
		t.Errorf("state = %s, want FAILED", sess.State)
	}
	// No per-qubit task may have been dispatched.
	for _, call := range fx.rig.calls {
		if strings.HasPrefix(call, "CheckT1") {
			t.Errorf("qubit task dispatched after failed precondition: %v", fx.rig.calls)
		}
	}
}

func TestRunCouplingFlow(t *testing.T) {
	fx := newFixture(t)
	flow := &parser.Flow{
		Name:    "two-qubit",
		Backend: "rig",
		Tasks:   []model.TaskDef{{Name: "CheckCrossResonance", Type: model.TaskTypeCoupling}},
	}

	sess, err := fx.runner.Run(context.Background(), baseRequest(flow))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Both couplings are disjoint in qubits and channels, so the plan is a
	// single stage with two pairs.
	if len(sess.Outcomes) != 2 {
		t.Fatalf("outcomes = %+v, want one per pair", sess.Outcomes)
	}
	for _, o := range sess.Outcomes {
		if o.State != model.TaskStateSuccess {
			t.Errorf("outcome %+v, want SUCCESS", o)
		}
		// The directionality filter orients the lower-frequency qubit as
		// control.
		if o.Target != "Q00-Q01" && o.Target != "Q02-Q03" {
			t.Errorf("unexpected pair target %q", o.Target)
		}
	}
}

func TestRunScheduleTreeWithBatch(t *testing.T) {
	fx := newFixture(t)
	flow := &parser.Flow{
		Name:    "tree",
		Backend: "rig",
		Tasks:   []model.TaskDef{{Name: "ReadoutClassification", Type: model.TaskTypeQubit}},
		Schedule: model.Serial(
			model.Parallel(model.Leaf("Q00"), model.Leaf("Q01")),
			model.Batch("Q00", "Q01"),
		),
	}

	sess, err := fx.runner.Run(context.Background(), baseRequest(flow))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sess.Outcomes) != 3 {
		t.Fatalf("outcomes = %+v, want 3 (two leaves + one batch)", sess.Outcomes)
	}

	batch := 0
	for _, call := range fx.rig.calls {
		if call == "ReadoutClassification@Q00,Q01" {
			batch++
		}
	}
	if batch != 1 {
		t.Errorf("batch invocations = %d, want exactly 1 (calls: %v)", batch, fx.rig.calls)
	}
}

func TestRunFailsFastOnLockContention(t *testing.T) {
	fx := newFixture(t)
	if err := fx.store.AcquireLock(context.Background(), "proj-1", "bob"); err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	flow := &parser.Flow{
		Name:    "nightly",
		Backend: "rig",
		Tasks:   []model.TaskDef{{Name: "CheckT1", Type: model.TaskTypeQubit}},
	}

	_, err := fx.runner.Run(context.Background(), baseRequest(flow))
	var contention *model.LockContentionError
	if !errors.As(err, &contention) {
		t.Fatalf("Run = %v, want LockContentionError", err)
	}
	if contention.Owner != "bob" {
		t.Errorf("owner = %q, want bob", contention.Owner)
	}
	if fx.rig.callCount() != 0 {
		t.Errorf("backend dispatched despite lock contention")
	}
}

func TestRunUnknownTaskIsFatal(t *testing.T) {
	fx := newFixture(t)
	flow := &parser.Flow{
		Name:    "nightly",
		Backend: "rig",
		Tasks:   []model.TaskDef{{Name: "NoSuchRoutine", Type: model.TaskTypeQubit}},
	}

	sess, err := fx.runner.Run(context.Background(), baseRequest(flow))
	var cfgErr *model.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Run = %v, want ConfigurationError", err)
	}
	if sess.State != model.SessionStateFailed {
		t.Errorf("state = %s, want FAILED", sess.State)
	}
}
