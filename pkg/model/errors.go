package model

import (
	"errors"
	"fmt"
)

// Error kind names recorded on failed TaskInstances and surfaced in session
// reports.
const (
	KindConfiguration      = "CONFIGURATION_ERROR"
	KindScheduling         = "SCHEDULING_ERROR"
	KindTaskExecution      = "TASK_EXECUTION_ERROR"
	KindR2Validation       = "R2_VALIDATION_ERROR"
	KindFidelityValidation = "FIDELITY_VALIDATION_ERROR"
	KindAcceptance         = "ACCEPTANCE_ERROR"
	KindLockContention     = "LOCK_CONTENTION_ERROR"
)

// ConfigurationError reports an unknown task name or unregistered backend.
// Fatal: aborts the stage or session immediately.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Msg
}

// SchedulingError reports that the filter pipeline yielded no schedulable
// pairs or the coloring could not satisfy its constraints. Fatal, reported
// before any execution starts.
type SchedulingError struct {
	Reason string
}

func (e *SchedulingError) Error() string {
	return "scheduling error: " + e.Reason
}

// TaskExecutionError reports a backend call that raised or timed out.
// Retryable up to the configured attempt bound, then terminal for the target.
type TaskExecutionError struct {
	TaskName string
	Target   string
	Err      error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("task %s on %s: %v", e.TaskName, e.Target, e.Err)
}

func (e *TaskExecutionError) Unwrap() error {
	return e.Err
}

// R2ValidationError reports a fit-quality score under threshold. Distinct
// from a backend error: the measurement ran but is not trustworthy.
type R2ValidationError struct {
	Score     float64
	Threshold float64
}

func (e *R2ValidationError) Error() string {
	return fmt.Sprintf("r2 validation: score %.4f below threshold %.4f", e.Score, e.Threshold)
}

// FidelityValidationError reports a calibrated fidelity under threshold.
type FidelityValidationError struct {
	Fidelity  float64
	Threshold float64
}

func (e *FidelityValidationError) Error() string {
	return fmt.Sprintf("fidelity validation: %.4f below threshold %.4f", e.Fidelity, e.Threshold)
}

// AcceptanceError reports a result rejected by a flow-declared acceptance
// expression. Terminal for the target, never retried.
type AcceptanceError struct {
	Expr string
}

func (e *AcceptanceError) Error() string {
	return fmt.Sprintf("acceptance rejected: %s", e.Expr)
}

// LockContentionError reports a session start while the project is already
// locked. Surfaced synchronously to the caller, never retried implicitly.
type LockContentionError struct {
	ProjectID string
	Owner     string
}

func (e *LockContentionError) Error() string {
	return fmt.Sprintf("project %s is locked by %s", e.ProjectID, e.Owner)
}

// KindOf classifies an error into one of the error kind names. Unrecognized
// errors classify as task-execution failures.
func KindOf(err error) string {
	var cfg *ConfigurationError
	var sched *SchedulingError
	var r2 *R2ValidationError
	var fid *FidelityValidationError
	var acc *AcceptanceError
	var lock *LockContentionError
	switch {
	case errors.As(err, &cfg):
		return KindConfiguration
	case errors.As(err, &sched):
		return KindScheduling
	case errors.As(err, &r2):
		return KindR2Validation
	case errors.As(err, &fid):
		return KindFidelityValidation
	case errors.As(err, &acc):
		return KindAcceptance
	case errors.As(err, &lock):
		return KindLockContention
	default:
		return KindTaskExecution
	}
}

// IsFatal returns true for errors that must abort the enclosing stage or
// session rather than being isolated to a single target.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindConfiguration, KindScheduling, KindLockContention:
		return true
	}
	return false
}

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrConflict   ErrorCode = "CONFLICT"
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the qcal API.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidationError creates an APIError with validation details.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrValidation, Message: msg, Details: details}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}
