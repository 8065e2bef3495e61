package models

import "testing"

func TestAgentRoleValid(t *testing.T) {
	for _, r := range []AgentRole{AgentRoleBoss, AgentRoleSubAgent, AgentRoleHumanPaired, AgentRoleHumanShadow} {
		if !r.Valid() {
			t.Errorf("expected %q to be valid", r)
		}
	}
	if AgentRole("manager").Valid() {
		t.Error("expected unknown role to be invalid")
	}
}

func TestAgentRoleHumanInteractive(t *testing.T) {
	tests := []struct {
		role AgentRole
		want bool
	}{
		{AgentRoleBoss, false},
		{AgentRoleSubAgent, false},
		{AgentRoleHumanPaired, true},
		{AgentRoleHumanShadow, true},
	}

	for _, tt := range tests {
		if got := tt.role.HumanInteractive(); got != tt.want {
			t.Errorf("%s.HumanInteractive() = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestAgentStatusAvailable(t *testing.T) {
	tests := []struct {
		status AgentStatus
		want   bool
	}{
		{AgentStatusIdle, true},
		{AgentStatusActive, true},
		{AgentStatusBusy, false},
		{AgentStatusError, false},
		{AgentStatusOffline, false},
	}

	for _, tt := range tests {
		if got := tt.status.Available(); got != tt.want {
			t.Errorf("%s.Available() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestAgentHasCapacity(t *testing.T) {
	agent := &Agent{MaxConcurrentTasks: 2}

	if !agent.HasCapacity() {
		t.Error("empty agent should have capacity")
	}

	agent.CurrentTasks = []string{"t1", "t2"}
	if agent.HasCapacity() {
		t.Error("agent at cap should not have capacity")
	}
	if agent.Load() != 2 {
		t.Errorf("expected load 2, got %d", agent.Load())
	}
}

func TestAgentHasCapabilities(t *testing.T) {
	agent := &Agent{Capabilities: []string{"analysis", "data_processing"}}

	if !agent.HasCapabilities(nil) {
		t.Error("no requirements should always match")
	}
	if !agent.HasCapabilities([]string{"analysis"}) {
		t.Error("expected subset requirement to match")
	}
	if agent.HasCapabilities([]string{"analysis", "deployment"}) {
		t.Error("missing capability should not match")
	}
}
