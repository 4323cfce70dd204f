package model

import "testing"

func TestTaskStateTransitions(t *testing.T) {
	cases := []struct {
		from, to TaskState
		want     bool
	}{
		{TaskStatePending, TaskStateRunning, true},
		{TaskStateRunning, TaskStateSuccess, true},
		{TaskStateRunning, TaskStateFailed, true},
		{TaskStateFailed, TaskStateRunning, true}, // retry path
		{TaskStatePending, TaskStateSuccess, false},
		{TaskStateSuccess, TaskStateRunning, false},
		{TaskStateSuccess, TaskStateFailed, false},
		{TaskStateFailed, TaskStateSuccess, false},
	}

	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.want {
			t.Errorf("CanTransitionTo(%s → %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestTaskStateIsTerminal(t *testing.T) {
	if TaskStatePending.IsTerminal() || TaskStateRunning.IsTerminal() {
		t.Error("PENDING and RUNNING must not be terminal")
	}
	if !TaskStateSuccess.IsTerminal() || !TaskStateFailed.IsTerminal() {
		t.Error("SUCCESS and FAILED must be terminal")
	}
}

func TestTaskTypeIsGlobalScope(t *testing.T) {
	if TaskTypeQubit.IsGlobalScope() || TaskTypeCoupling.IsGlobalScope() {
		t.Error("qubit and coupling tasks are isolated, not global scope")
	}
	if !TaskTypeGlobal.IsGlobalScope() || !TaskTypeSystem.IsGlobalScope() {
		t.Error("global and system tasks must be global scope")
	}
}

func TestSessionStateIsTerminal(t *testing.T) {
	if SessionStatePending.IsTerminal() || SessionStateRunning.IsTerminal() {
		t.Error("PENDING and RUNNING sessions must not be terminal")
	}
	if !SessionStateCompleted.IsTerminal() || !SessionStateFailed.IsTerminal() {
		t.Error("COMPLETED and FAILED sessions must be terminal")
	}
}
