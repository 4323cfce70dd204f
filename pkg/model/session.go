package model

import (
	"fmt"
	"time"
)

// ExecutionSession is one calibration run: a unique execution id, the
// identity that started it, and the aggregated per-task outcomes.
type ExecutionSession struct {
	ExecutionID string       `json:"execution_id"`
	Username    string       `json:"username"`
	ChipID      string       `json:"chip_id"`
	ProjectID   string       `json:"project_id"`
	State       SessionState `json:"state"`
	Note        string       `json:"note,omitempty"`

	Outcomes []TaskOutcome `json:"outcomes,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TaskOutcome is the per-(task, target) terminal status included in the
// session summary. Partial success is a normal, expected outcome.
type TaskOutcome struct {
	TaskName  string    `json:"task_name"`
	Target    string    `json:"target,omitempty"`
	State     TaskState `json:"state"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// FormatExecutionID builds the canonical execution id: 8-digit date, dash,
// zero-padded 3-digit counter ("20260828-003").
func FormatExecutionID(date time.Time, index int) string {
	return fmt.Sprintf("%s-%03d", date.Format("20060102"), index)
}

// CounterKey identifies one execution counter: the per-(date, user, chip,
// project) sequence that mints execution ids.
type CounterKey struct {
	Date      string `json:"date"` // YYYYMMDD
	Username  string `json:"username"`
	ChipID    string `json:"chip_id"`
	ProjectID string `json:"project_id"`
}

// CounterKeyFor builds a CounterKey for the given date.
func CounterKeyFor(date time.Time, username, chipID, projectID string) CounterKey {
	return CounterKey{
		Date:      date.Format("20060102"),
		Username:  username,
		ChipID:    chipID,
		ProjectID: projectID,
	}
}
