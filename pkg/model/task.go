package model

import (
	"time"
)

// TaskInstance is one (task name × target) execution record. Created at
// dispatch, terminal at SUCCESS or FAILED (after retries are exhausted).
type TaskInstance struct {
	ID          string    `json:"id"`
	ExecutionID string    `json:"execution_id"`
	TaskName    string    `json:"task_name"`
	TaskType    TaskType  `json:"task_type"`
	Backend     string    `json:"backend"`
	State       TaskState `json:"state"`

	// Target is the qubit ID for qubit tasks, the CRPair key for coupling
	// tasks, a comma-joined qubit list for batch invocations, and empty for
	// global/system tasks.
	Target string `json:"target,omitempty"`

	Input  map[string]any `json:"input,omitempty"`
	Output map[string]any `json:"output,omitempty"`

	// ErrorKind names the failure classification (see errors.go) when the
	// instance terminated FAILED.
	ErrorKind string `json:"error_kind,omitempty"`
	Message   string `json:"message,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TaskDef declares one calibration task in a flow: which backend operation to
// invoke, its scope, and default parameters merged under per-call overrides.
type TaskDef struct {
	Name    string         `json:"name" yaml:"name"`
	Type    TaskType       `json:"type" yaml:"type"`
	Backend string         `json:"backend" yaml:"backend"`
	Params  map[string]any `json:"params,omitempty" yaml:"params,omitempty"`

	// Accept is an optional JavaScript acceptance expression evaluated
	// against the raw result parameters after the built-in quality gates,
	// e.g. "result.r2 >= 0.98 && result.fidelity > 0.99".
	Accept string `json:"accept,omitempty" yaml:"accept,omitempty"`
}
