// Package lifecycle drives single task executions through the
// pending → running → {success, failed} state machine, with bounded retry on
// backend errors and quality-gate validation of raw results.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/me/qcal/internal/backend"
	"github.com/me/qcal/internal/config"
	"github.com/me/qcal/internal/store"
	"github.com/me/qcal/pkg/model"
)

// Engine executes one task at a time. Stage drivers fan Engine calls out
// across targets; the Engine itself is stateless and safe for concurrent use.
type Engine struct {
	cfg    config.EngineConfig
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates a lifecycle engine. Every state transition is appended to
// the store's task-instance history.
func NewEngine(cfg config.EngineConfig, st store.Store, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		store:  st,
		logger: logger.With("component", "lifecycle"),
		now:    time.Now,
	}
}

// Execute runs def against target on the given backend and returns the
// terminal TaskInstance. Backend errors and timeouts are retried up to
// MaxRetries; validation failures (R2, fidelity, acceptance) are terminal for
// the target on the first occurrence. The returned error is nil exactly when
// the instance ends in SUCCESS.
func (e *Engine) Execute(ctx context.Context, executionID string, def *model.TaskDef, target string, be backend.Backend) (*model.TaskInstance, error) {
	inst := &model.TaskInstance{
		ID:          "ti_" + uuid.NewString(),
		ExecutionID: executionID,
		TaskName:    def.Name,
		TaskType:    def.Type,
		Backend:     def.Backend,
		State:       model.TaskStatePending,
		Target:      target,
		Input:       cloneParams(def.Params),
		MaxRetries:  e.cfg.MaxRetries,
		CreatedAt:   e.now().UTC(),
	}
	e.record(ctx, inst)

	for {
		started := e.now().UTC()
		inst.State = model.TaskStateRunning
		inst.StartedAt = &started
		inst.CompletedAt = nil
		inst.ErrorKind = ""
		inst.Message = ""
		e.record(ctx, inst)
		e.logger.Info("task dispatched", "task", def.Name, "target", target, "attempt", inst.RetryCount+1)

		output, err := e.runOnce(ctx, def, target, be)
		if err == nil {
			err = e.validate(def, output)
		}

		completed := e.now().UTC()
		inst.CompletedAt = &completed

		if err == nil {
			inst.State = model.TaskStateSuccess
			inst.Output = output
			e.record(ctx, inst)
			e.logger.Info("task succeeded", "task", def.Name, "target", target)
			return inst, nil
		}

		inst.State = model.TaskStateFailed
		inst.Output = output
		inst.ErrorKind = model.KindOf(err)
		inst.Message = err.Error()
		e.record(ctx, inst)

		if !retryable(err) || inst.RetryCount >= e.cfg.MaxRetries || ctx.Err() != nil {
			e.logger.Warn("task failed", "task", def.Name, "target", target, "kind", inst.ErrorKind, "error", err)
			return inst, err
		}

		inst.RetryCount++
		e.logger.Warn("task retrying", "task", def.Name, "target", target, "retry", inst.RetryCount, "error", err)
	}
}

// runOnce performs a single backend call under the configured timeout. Any
// backend error, including a timeout, is wrapped as a TaskExecutionError.
func (e *Engine) runOnce(ctx context.Context, def *model.TaskDef, target string, be backend.Backend) (map[string]any, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.TaskTimeout.Std())
	defer cancel()

	output, err := be.RunTask(callCtx, def.Name, target, def.Params)
	if err != nil {
		return nil, &model.TaskExecutionError{TaskName: def.Name, Target: target, Err: err}
	}
	return output, nil
}

// validate applies the quality gates to a raw backend result: the R2 fit
// gate, the fidelity gate, then the flow-declared acceptance expression.
func (e *Engine) validate(def *model.TaskDef, output map[string]any) error {
	if r2, ok := numeric(output["r2"]); ok && r2 < e.cfg.R2Threshold {
		return &model.R2ValidationError{Score: r2, Threshold: e.cfg.R2Threshold}
	}
	if fid, ok := numeric(output["fidelity"]); ok && fid < e.cfg.FidelityThreshold {
		return &model.FidelityValidationError{Fidelity: fid, Threshold: e.cfg.FidelityThreshold}
	}
	if def.Accept != "" {
		return evalAccept(def.Accept, output)
	}
	return nil
}

func (e *Engine) record(ctx context.Context, inst *model.TaskInstance) {
	if err := e.store.AppendTaskInstance(ctx, inst); err != nil {
		// History is an audit sink; a write failure must not change the
		// execution outcome.
		e.logger.Error("history append failed", "task", inst.TaskName, "target", inst.Target, "error", err)
	}
}

// retryable reports whether a failure may re-enter RUNNING. Only backend
// execution errors retry; validation rejections and configuration errors are
// terminal immediately.
func retryable(err error) bool {
	var exec *model.TaskExecutionError
	return errors.As(err, &exec)
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func cloneParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
