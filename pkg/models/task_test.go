package models

import (
	"testing"
	"time"
)

func TestTaskStatusValid(t *testing.T) {
	valid := []TaskStatus{
		TaskStatusPending, TaskStatusRunning, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusCancelled,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}

	if TaskStatus("bogus").Valid() {
		t.Error("expected bogus status to be invalid")
	}
	if TaskStatus("").Valid() {
		t.Error("expected empty status to be invalid")
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		terminal bool
	}{
		{TaskStatusPending, false},
		{TaskStatusRunning, false},
		{TaskStatusCompleted, true},
		{TaskStatusFailed, true},
		{TaskStatusCancelled, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestTaskPriorityOrdering(t *testing.T) {
	if !(PriorityCritical < PriorityHigh && PriorityHigh < PriorityMedium && PriorityMedium < PriorityLow) {
		t.Error("expected priority ordering critical < high < medium < low")
	}
}

func TestTaskPriorityString(t *testing.T) {
	tests := []struct {
		priority TaskPriority
		want     string
	}{
		{PriorityCritical, "critical"},
		{PriorityHigh, "high"},
		{PriorityMedium, "medium"},
		{PriorityLow, "low"},
		{TaskPriority(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.priority.String(); got != tt.want {
			t.Errorf("priority %d String() = %q, want %q", tt.priority, got, tt.want)
		}
	}
}

func TestTaskFields(t *testing.T) {
	now := time.Now()
	task := Task{
		ID:           "task-1",
		Name:         "index rebuild",
		Priority:     PriorityHigh,
		Status:       TaskStatusPending,
		FunctionName: "rebuild_index",
		Parameters:   map[string]any{"shard": 3},
		Timeout:      30 * time.Second,
		CreatedAt:    now,
	}

	if task.Status.Terminal() {
		t.Error("pending task should not be terminal")
	}
	if task.StartedAt != nil || task.CompletedAt != nil {
		t.Error("new task should have no start or completion time")
	}
}
