package oracle

import (
	"context"
	"reflect"
	"testing"
)

func TestParseAssignments(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Assignment
	}{
		{
			name: "plain lines",
			text: "researcher: investigate the failing endpoint\ncoder: patch the parser",
			want: []Assignment{
				{AgentName: "researcher", TaskDescription: "investigate the failing endpoint"},
				{AgentName: "coder", TaskDescription: "patch the parser"},
			},
		},
		{
			name: "bulleted and numbered lines",
			text: "- researcher: dig into logs\n1. coder: fix the bug",
			want: []Assignment{
				{AgentName: "researcher", TaskDescription: "dig into logs"},
				{AgentName: "coder", TaskDescription: "fix the bug"},
			},
		},
		{
			name: "malformed lines skipped",
			text: "no colon here\n: task without agent\nagent without task:\nresearcher: good line",
			want: []Assignment{
				{AgentName: "researcher", TaskDescription: "good line"},
			},
		},
		{
			name: "prose with embedded colon skipped",
			text: "The plan is simple. We should do the following: nothing much",
			want: nil,
		},
		{
			name: "empty input",
			text: "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAssignments(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseAssignments() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParsePriorityList(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "numbered list",
			text: "1. fix the build\n2. review queue depth\n3) update docs",
			want: []string{"fix the build", "review queue depth", "update docs"},
		},
		{
			name: "bulleted list with blanks",
			text: "- first thing\n\n- second thing",
			want: []string{"first thing", "second thing"},
		},
		{
			name: "section header skipped",
			text: "PRIORITIES:\n1. the real task",
			want: []string{"the real task"},
		},
		{
			name: "empty",
			text: "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePriorityList(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParsePriorityList() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseDecisionSectioned(t *testing.T) {
	text := `DECISION: dispatch two research tasks
ASSIGNMENTS:
researcher: investigate API latency
scout: collect error samples
not an assignment line
PRIORITIES:
1. investigate API latency
2. collect error samples
RATIONALE:
Latency spikes correlate with the error cluster.`

	d := ParseDecision(text)
	if d.Summary != "dispatch two research tasks" {
		t.Errorf("Summary = %q", d.Summary)
	}
	if len(d.Assignments) != 2 {
		t.Fatalf("Assignments = %+v, want 2 entries", d.Assignments)
	}
	if d.Assignments[0].AgentName != "researcher" || d.Assignments[1].AgentName != "scout" {
		t.Errorf("Assignments = %+v", d.Assignments)
	}
	if len(d.PriorityTasks) != 2 || d.PriorityTasks[0] != "investigate API latency" {
		t.Errorf("PriorityTasks = %v", d.PriorityTasks)
	}
	if d.Rationale == "" {
		t.Error("Rationale empty")
	}
}

func TestParseDecisionUnstructuredFallback(t *testing.T) {
	text := `I think we should proceed carefully.
researcher: check the backlog
1. check the backlog first`

	d := ParseDecision(text)
	if len(d.Assignments) != 1 || d.Assignments[0].AgentName != "researcher" {
		t.Fatalf("Assignments = %+v, want researcher line", d.Assignments)
	}
	if len(d.PriorityTasks) != 1 || d.PriorityTasks[0] != "check the backlog first" {
		t.Fatalf("PriorityTasks = %v", d.PriorityTasks)
	}
	if d.Summary != "I think we should proceed carefully." {
		t.Errorf("Summary = %q", d.Summary)
	}
}

func TestParseDecisionGarbage(t *testing.T) {
	d := ParseDecision("%%% ???")
	if len(d.Assignments) != 0 {
		t.Errorf("Assignments from garbage = %+v", d.Assignments)
	}
	if len(d.PriorityTasks) != 0 {
		t.Errorf("PriorityTasks from garbage = %v", d.PriorityTasks)
	}
}

func TestStaticOracleScript(t *testing.T) {
	s := NewStatic(
		"DECISION: first\nASSIGNMENTS:\na: one",
		"DECISION: second\nASSIGNMENTS:\nb: two",
	)

	d1, err := s.Decide(context.Background(), DecisionRequest{CurrentState: "thinking"})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d1.Summary != "first" {
		t.Errorf("first decision = %q", d1.Summary)
	}

	d2, _ := s.Decide(context.Background(), DecisionRequest{CurrentState: "executing"})
	d3, _ := s.Decide(context.Background(), DecisionRequest{CurrentState: "executing"})
	if d2.Summary != "second" || d3.Summary != "second" {
		t.Errorf("script exhaustion: d2=%q d3=%q, want both second", d2.Summary, d3.Summary)
	}
	if s.Calls() != 3 {
		t.Errorf("Calls = %d, want 3", s.Calls())
	}
	if s.LastState() != "executing" {
		t.Errorf("LastState = %q", s.LastState())
	}
}
