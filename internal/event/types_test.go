package event

import (
	"testing"
	"time"
)

func TestEventTypes(t *testing.T) {
	tests := []struct {
		name     string
		event    Event
		expected string
	}{
		{"run started", NewRunStartedEvent("run-1", "deploy", 5, 2), "run.started"},
		{"run completed", NewRunCompletedEvent("run-1", "completed", 5, 0, 0, ""), "run.completed"},
		{"task started", NewTaskStartedEvent("run-1", "compile", 0, "shell", 1), "task.started"},
		{"task succeeded", NewTaskSucceededEvent("run-1", "compile", 0, time.Second), "task.succeeded"},
		{"task failed", NewTaskFailedEvent("run-1", "compile", 0, false, "exit 1", 2), "task.failed"},
		{"task skipped", NewTaskSkippedEvent("run-1", "test", 1, "compile"), "task.skipped"},
		{"phase completed", NewPhaseCompletedEvent("run-1", 0, 3, 1, 0), "phase.completed"},
		{"gate entered", NewGateEnteredEvent("run-1", "phase-0", 0, false), "gate.entered"},
		{"gate resolved", NewGateResolvedEvent("run-1", "phase-0", DecisionApproved, "user", "lgtm"), "gate.resolved"},
		{"artifact stored", NewArtifactStoredEvent("run-1", "compile", 0, "application/json", 42), "artifact.stored"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.event.EventType() != tc.expected {
				t.Errorf("EventType() = %q, expected %q", tc.event.EventType(), tc.expected)
			}
			if tc.event.Timestamp().IsZero() {
				t.Error("Timestamp() should not be zero")
			}
		})
	}
}

func TestTaskFailedEventFields(t *testing.T) {
	e := NewTaskFailedEvent("run-1", "deploy", 2, true, "connection refused", 3)

	if e.RunID != "run-1" {
		t.Errorf("RunID = %q, expected run-1", e.RunID)
	}
	if e.TaskID != "deploy" {
		t.Errorf("TaskID = %q, expected deploy", e.TaskID)
	}
	if e.Phase != 2 {
		t.Errorf("Phase = %d, expected 2", e.Phase)
	}
	if !e.Fatal {
		t.Error("Fatal should be true")
	}
	if e.Attempts != 3 {
		t.Errorf("Attempts = %d, expected 3", e.Attempts)
	}
}

func TestGateResolvedEventDecision(t *testing.T) {
	e := NewGateResolvedEvent("run-1", "review", DecisionRejected, "alice", "needs work")

	if e.Decision != DecisionRejected {
		t.Errorf("Decision = %q, expected %q", e.Decision, DecisionRejected)
	}
	if e.ResolvedBy != "alice" {
		t.Errorf("ResolvedBy = %q, expected alice", e.ResolvedBy)
	}
	if e.Comment != "needs work" {
		t.Errorf("Comment = %q, expected 'needs work'", e.Comment)
	}
}
