package model

// TaskState represents the lifecycle state of a TaskInstance.
type TaskState string

const (
	TaskStatePending TaskState = "PENDING"
	TaskStateRunning TaskState = "RUNNING"
	TaskStateSuccess TaskState = "SUCCESS"
	TaskStateFailed  TaskState = "FAILED"
)

// String returns the string representation of the task state.
func (s TaskState) String() string {
	return string(s)
}

// IsTerminal returns true if the task is in a final state. FAILED is only
// conditionally terminal: the lifecycle engine may re-enter RUNNING from
// FAILED while retry budget remains.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateSuccess, TaskStateFailed:
		return true
	}
	return false
}

// ValidTaskTransitions defines the allowed state transitions for TaskInstances.
// FAILED → RUNNING is the bounded retry path.
var ValidTaskTransitions = map[TaskState][]TaskState{
	TaskStatePending: {TaskStateRunning},
	TaskStateRunning: {TaskStateSuccess, TaskStateFailed},
	TaskStateFailed:  {TaskStateRunning},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s TaskState) CanTransitionTo(next TaskState) bool {
	for _, allowed := range ValidTaskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SessionState represents the lifecycle state of an ExecutionSession.
type SessionState string

const (
	SessionStatePending   SessionState = "PENDING"
	SessionStateRunning   SessionState = "RUNNING"
	SessionStateCompleted SessionState = "COMPLETED"
	SessionStateFailed    SessionState = "FAILED"
)

// String returns the string representation of the session state.
func (s SessionState) String() string {
	return string(s)
}

// IsTerminal returns true if the session is in a final state.
func (s SessionState) IsTerminal() bool {
	switch s {
	case SessionStateCompleted, SessionStateFailed:
		return true
	}
	return false
}

// TaskType describes the scope of a calibration task. Scope determines the
// failure-isolation contract: qubit and coupling tasks fail in isolation,
// global and system tasks abort the enclosing stage because downstream
// per-qubit tasks assume the precondition they establish.
type TaskType string

const (
	TaskTypeQubit    TaskType = "qubit"
	TaskTypeCoupling TaskType = "coupling"
	TaskTypeGlobal   TaskType = "global"
	TaskTypeSystem   TaskType = "system"
)

// IsGlobalScope returns true for task types whose failure aborts the stage.
func (t TaskType) IsGlobalScope() bool {
	return t == TaskTypeGlobal || t == TaskTypeSystem
}
