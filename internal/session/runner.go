// Package session brackets a full calibration run: project lock, execution-id
// minting, plan generation, stage driving, and the persisted session summary.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/me/qcal/internal/backend"
	"github.com/me/qcal/internal/config"
	"github.com/me/qcal/internal/coord"
	"github.com/me/qcal/internal/lifecycle"
	"github.com/me/qcal/internal/parser"
	"github.com/me/qcal/internal/schedtree"
	"github.com/me/qcal/internal/store"
	"github.com/me/qcal/internal/tasks"
	"github.com/me/qcal/pkg/model"
)

// Runner executes calibration sessions end to end.
type Runner struct {
	cfg      config.EngineConfig
	store    store.Store
	coord    *coord.Coordinator
	engine   *lifecycle.Engine
	backends *backend.Factories
	tasks    *tasks.Registry
	logger   *slog.Logger
}

// NewRunner wires a session runner from its collaborators.
func NewRunner(cfg config.EngineConfig, st store.Store, co *coord.Coordinator, eng *lifecycle.Engine, backends *backend.Factories, reg *tasks.Registry, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		store:    st,
		coord:    co,
		engine:   eng,
		backends: backends,
		tasks:    reg,
		logger:   logger.With("component", "session"),
	}
}

// Request describes one calibration run to start.
type Request struct {
	Username  string
	ProjectID string
	Note      string
	Topology  *model.Topology
	Flow      *parser.Flow
}

// Run executes the flow against the topology and returns the persisted
// session summary. Partial success is a normal outcome: the returned error is
// non-nil only for fatal failures (lock contention, configuration,
// scheduling, or a failed global/system task).
func (r *Runner) Run(ctx context.Context, req Request) (*model.ExecutionSession, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	if err := r.coord.AcquireProject(ctx, req.ProjectID, req.Username); err != nil {
		return nil, err
	}
	defer func() {
		if err := r.coord.ReleaseProject(context.WithoutCancel(ctx), req.ProjectID); err != nil {
			r.logger.Error("lock release failed", "project_id", req.ProjectID, "error", err)
		}
	}()

	executionID, err := r.coord.MintExecutionID(ctx, req.Username, req.Topology.ChipID, req.ProjectID)
	if err != nil {
		return nil, err
	}

	sess := &model.ExecutionSession{
		ExecutionID: executionID,
		Username:    req.Username,
		ChipID:      req.Topology.ChipID,
		ProjectID:   req.ProjectID,
		State:       model.SessionStateRunning,
		Note:        req.Note,
		StartedAt:   time.Now().UTC(),
	}
	if err := r.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session %s: %w", executionID, err)
	}
	r.logger.Info("session started", "execution_id", executionID, "flow", req.Flow.Name, "project_id", req.ProjectID)

	fatal := r.execute(ctx, sess, req)

	completed := time.Now().UTC()
	sess.CompletedAt = &completed
	if fatal != nil {
		sess.State = model.SessionStateFailed
	} else {
		sess.State = model.SessionStateCompleted
	}
	if err := r.store.UpdateSession(context.WithoutCancel(ctx), sess); err != nil {
		r.logger.Error("session summary persist failed", "execution_id", executionID, "error", err)
	}
	r.logger.Info("session finished", "execution_id", executionID, "state", sess.State, "outcomes", len(sess.Outcomes))
	return sess, fatal
}

// execute drives the flow and fills sess.Outcomes. Returns the fatal error
// that aborted the run, or nil.
func (r *Runner) execute(ctx context.Context, sess *model.ExecutionSession, req Request) error {
	be, err := r.backends.New(req.Flow.Backend)
	if err != nil {
		return err
	}
	if err := be.Connect(ctx); err != nil {
		return &model.TaskExecutionError{TaskName: "connect", Target: req.Flow.Backend, Err: err}
	}

	defs, err := r.resolveTasks(req.Flow)
	if err != nil {
		return err
	}

	run := &flowRun{
		runner:  r,
		backend: be,
		session: sess,
	}

	// Global and system preconditions run first, in declared order. Any
	// failure aborts the whole run: downstream per-target tasks assume the
	// precondition holds.
	for _, def := range defs {
		if !def.Type.IsGlobalScope() {
			continue
		}
		if err := run.runTask(ctx, def, ""); err != nil {
			return fmt.Errorf("precondition %s: %w", def.Name, err)
		}
	}

	if couplingDefs := byType(defs, model.TaskTypeCoupling); len(couplingDefs) > 0 {
		if err := run.runCouplingStages(ctx, req, couplingDefs); err != nil {
			return err
		}
	}

	if qubitDefs := byType(defs, model.TaskTypeQubit); len(qubitDefs) > 0 {
		if err := run.runQubitFlow(ctx, req, qubitDefs); err != nil {
			return err
		}
	}
	return nil
}

// resolveTasks maps flow task declarations onto registered definitions,
// layering flow params and acceptance rules over the registry defaults.
func (r *Runner) resolveTasks(flow *parser.Flow) ([]*model.TaskDef, error) {
	defs := make([]*model.TaskDef, 0, len(flow.Tasks))
	for _, declared := range flow.Tasks {
		def, err := r.tasks.Resolve(flow.Backend, declared.Name)
		if err != nil {
			return nil, err
		}
		if len(declared.Params) > 0 {
			if def.Params == nil {
				def.Params = make(map[string]any, len(declared.Params))
			}
			for k, v := range declared.Params {
				def.Params[k] = v
			}
		}
		if declared.Accept != "" {
			def.Accept = declared.Accept
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func byType(defs []*model.TaskDef, t model.TaskType) []*model.TaskDef {
	var out []*model.TaskDef
	for _, def := range defs {
		if def.Type == t {
			out = append(out, def)
		}
	}
	return out
}

func validateRequest(req Request) error {
	switch {
	case req.Username == "":
		return &model.ConfigurationError{Msg: "username is required"}
	case req.ProjectID == "":
		return &model.ConfigurationError{Msg: "project id is required"}
	case req.Topology == nil:
		return &model.ConfigurationError{Msg: "topology is required"}
	case req.Flow == nil:
		return &model.ConfigurationError{Msg: "flow is required"}
	}
	return nil
}

// flowRun carries the per-run mutable state: the outcome list and the shared
// backend handle.
type flowRun struct {
	runner  *Runner
	backend backend.Backend
	session *model.ExecutionSession

	mu sync.Mutex
}

// runTask executes one task against one target and records the outcome.
// Returns nil for isolated failures so sibling targets keep going; fatal
// errors and global-scope failures come back wrapped for the stage driver.
func (fr *flowRun) runTask(ctx context.Context, def *model.TaskDef, target string) error {
	inst, err := fr.runner.engine.Execute(ctx, fr.session.ExecutionID, def, target, fr.backend)
	fr.record(inst)
	if err == nil {
		return nil
	}
	if def.Type.IsGlobalScope() {
		return fmt.Errorf("%w: %w", schedtree.ErrAbortStage, err)
	}
	if model.IsFatal(err) {
		return err
	}
	// Isolated: the target is terminal-failed but siblings continue.
	return nil
}

// runTaskList runs the given defs in order against one target. The first
// failure ends the list for that target: later tasks assume the earlier
// calibration steps held.
func (fr *flowRun) runTaskList(ctx context.Context, defs []*model.TaskDef, target string) error {
	for _, def := range defs {
		inst, err := fr.runner.engine.Execute(ctx, fr.session.ExecutionID, def, target, fr.backend)
		fr.record(inst)
		if err == nil {
			continue
		}
		if def.Type.IsGlobalScope() {
			return fmt.Errorf("%w: %w", schedtree.ErrAbortStage, err)
		}
		if model.IsFatal(err) {
			return err
		}
		return nil
	}
	return nil
}

func (fr *flowRun) record(inst *model.TaskInstance) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.session.Outcomes = append(fr.session.Outcomes, model.TaskOutcome{
		TaskName:  inst.TaskName,
		Target:    inst.Target,
		State:     inst.State,
		ErrorKind: inst.ErrorKind,
		Message:   inst.Message,
	})
}

// runCouplingStages builds the staged coupling plan and drives each stage
// with a fan-out over its pairs.
func (fr *flowRun) runCouplingStages(ctx context.Context, req Request, defs []*model.TaskDef) error {
	plan, err := BuildCouplingPlan(req.Topology, req.Flow.Targets, req.Flow.Strategy, fr.runner.cfg, fr.runner.logger)
	if err != nil {
		return err
	}
	fr.runner.logger.Info("coupling plan built",
		"execution_id", fr.session.ExecutionID, "strategy", plan.Strategy,
		"stages", len(plan.Stages), "pairs", plan.PairCount())

	for _, stage := range plan.Stages {
		targets := make([]string, len(stage.Pairs))
		for i, p := range stage.Pairs {
			targets[i] = p.Key()
		}
		if err := fr.fanOut(ctx, targets, defs); err != nil {
			return fmt.Errorf("coupling stage %d: %w", stage.Index, err)
		}
	}
	return nil
}

// runQubitFlow drives qubit-scoped tasks either through an explicit schedule
// tree or through the generated box-staged plan.
func (fr *flowRun) runQubitFlow(ctx context.Context, req Request, defs []*model.TaskDef) error {
	if req.Flow.Schedule != nil {
		interp := schedtree.New(fr.runner.cfg.Workers, fr.runner.logger)
		return interp.Execute(ctx, req.Flow.Schedule, &treeRunner{run: fr, defs: defs})
	}

	plan, err := BuildOneQubitPlan(req.Topology, req.Flow.Targets)
	if err != nil {
		return err
	}
	fr.runner.logger.Info("one-qubit plan built",
		"execution_id", fr.session.ExecutionID, "stages", len(plan.Stages))

	for _, stage := range plan.Stages {
		targets := make([]string, len(stage.Qubits))
		for i, q := range stage.Qubits {
			targets[i] = string(q)
		}
		if err := fr.fanOut(ctx, targets, defs); err != nil {
			return fmt.Errorf("one-qubit stage %d (%s): %w", stage.StageIndex, stage.ChannelClass, err)
		}
	}
	return nil
}

// fanOut runs the task list against every target of one stage concurrently,
// joining before the next stage starts. The first fatal failure cancels the
// stage's remaining targets.
func (fr *flowRun) fanOut(ctx context.Context, targets []string, defs []*model.TaskDef) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := fr.runner.cfg.Workers
	if workers > len(targets) {
		workers = len(targets)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	var fatalMu sync.Mutex
	var firstFatal error

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for target := range jobs {
				if runCtx.Err() != nil {
					continue
				}
				if err := fr.runTaskList(runCtx, defs, target); err != nil {
					fatalMu.Lock()
					if firstFatal == nil {
						firstFatal = err
					}
					fatalMu.Unlock()
					cancel()
				}
			}
		}()
	}

	for _, target := range targets {
		jobs <- target
	}
	close(jobs)
	wg.Wait()

	return firstFatal
}

// treeRunner adapts a flowRun to the schedule-tree interpreter.
type treeRunner struct {
	run  *flowRun
	defs []*model.TaskDef
}

func (t *treeRunner) RunTarget(ctx context.Context, q model.QubitID) error {
	return t.run.runTaskList(ctx, t.defs, string(q))
}

// RunBatch makes one backend invocation per task, handing the whole qubit
// group as a single comma-joined target.
func (t *treeRunner) RunBatch(ctx context.Context, qubits []model.QubitID) error {
	return t.run.runTaskList(ctx, t.defs, model.JoinQubits(qubits))
}
