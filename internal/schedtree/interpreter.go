// Package schedtree interprets recursive schedule trees for one-qubit
// calibration flows. Serial nodes run children in order, Parallel nodes fan
// children out over a bounded worker pool with a join barrier, Batch nodes
// hand a whole qubit group to the runner in one call.
package schedtree

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/me/qcal/pkg/model"
)

// ErrAbortStage marks a failure that must stop the remaining siblings in the
// enclosing composition. Runners wrap failures of global or system scoped
// tasks with it; per-target failures stay isolated without it.
var ErrAbortStage = errors.New("abort stage")

// Runner executes the flow's declared task list against schedule-tree
// targets.
type Runner interface {
	// RunTarget executes the task list against one qubit.
	RunTarget(ctx context.Context, qubit model.QubitID) error

	// RunBatch executes the task list once against the whole qubit group.
	// The runner makes a single backend invocation per task, not one per
	// qubit.
	RunBatch(ctx context.Context, qubits []model.QubitID) error
}

// Interpreter walks a schedule tree and drives a Runner.
type Interpreter struct {
	workers int
	logger  *slog.Logger
}

// New creates an interpreter whose Parallel nodes fan out over at most
// workers goroutines.
func New(workers int, logger *slog.Logger) *Interpreter {
	if workers < 1 {
		workers = 1
	}
	return &Interpreter{
		workers: workers,
		logger:  logger.With("component", "schedtree"),
	}
}

// Execute interprets the tree rooted at node. Isolated per-target failures
// are logged and swallowed; the runner is responsible for recording them. A
// fatal failure aborts the remaining tree and is returned.
func (in *Interpreter) Execute(ctx context.Context, node *model.ScheduleNode, r Runner) error {
	if node == nil {
		return &model.ConfigurationError{Msg: "schedule tree is empty"}
	}
	return in.exec(ctx, node, r)
}

func (in *Interpreter) exec(ctx context.Context, node *model.ScheduleNode, r Runner) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch node.Kind {
	case model.NodeLeaf:
		return in.isolate(r.RunTarget(ctx, node.Qubit), "qubit", string(node.Qubit))

	case model.NodeBatch:
		return in.isolate(r.RunBatch(ctx, node.Qubits), "batch", model.JoinQubits(node.Qubits))

	case model.NodeSerial:
		for _, child := range node.Children {
			if err := in.exec(ctx, child, r); err != nil {
				return err
			}
		}
		return nil

	case model.NodeParallel:
		return in.runParallel(ctx, node.Children, r)

	default:
		return &model.ConfigurationError{Msg: "unknown schedule node kind " + string(node.Kind)}
	}
}

// isolate swallows non-fatal runner errors so sibling targets keep going.
func (in *Interpreter) isolate(err error, kind, target string) error {
	if err == nil {
		return nil
	}
	if fatal(err) {
		return err
	}
	in.logger.Warn("target failed, siblings continue", kind, target, "error", err)
	return nil
}

// runParallel fans children out over the worker pool and joins before
// returning. The first fatal failure cancels the remaining children; isolated
// failures never do.
func (in *Interpreter) runParallel(ctx context.Context, children []*model.ScheduleNode, r Runner) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := in.workers
	if workers > len(children) {
		workers = len(children)
	}

	jobs := make(chan *model.ScheduleNode)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstFatal error

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for child := range jobs {
				if runCtx.Err() != nil {
					continue
				}
				if err := in.exec(runCtx, child, r); err != nil {
					mu.Lock()
					if firstFatal == nil {
						firstFatal = err
					}
					mu.Unlock()
					cancel()
				}
			}
		}()
	}

	for _, child := range children {
		jobs <- child
	}
	close(jobs)
	wg.Wait()

	return firstFatal
}

func fatal(err error) bool {
	return errors.Is(err, ErrAbortStage) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		model.IsFatal(err)
}
