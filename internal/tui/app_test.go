package tui

import (
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/overseer-dev/overseer/internal/engine"
	"github.com/overseer-dev/overseer/pkg/models"
)

func keyMsg(s string) tea.KeyMsg {
	if s == "tab" {
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTabNavigation(t *testing.T) {
	app := New(nil, nil)

	if app.currentTab != TabStatus {
		t.Fatalf("initial tab = %d, want %d", app.currentTab, TabStatus)
	}

	model, _ := app.Update(keyMsg("tab"))
	app = model.(*App)
	if app.currentTab != TabAgents {
		t.Errorf("after tab key, tab = %d, want %d", app.currentTab, TabAgents)
	}

	model, _ = app.Update(keyMsg("3"))
	app = model.(*App)
	if app.currentTab != TabEvents {
		t.Errorf("after '3', tab = %d, want %d", app.currentTab, TabEvents)
	}
}

func TestQuitKey(t *testing.T) {
	app := New(nil, nil)
	model, cmd := app.Update(keyMsg("q"))
	app = model.(*App)
	if !app.quitting {
		t.Error("q did not set quitting")
	}
	if cmd == nil {
		t.Error("q did not produce a quit command")
	}
	if got := app.View(); !strings.Contains(got, "Goodbye") {
		t.Errorf("quitting view = %q", got)
	}
}

func TestSnapshotRendered(t *testing.T) {
	app := New(nil, nil)
	model, _ := app.Update(SnapshotMsg{
		State:  "executing",
		Passes: 7,
		System: models.SystemSnapshot{Workload: 3, SuccessRate: 0.5},
		Agents: []*models.Agent{{
			Name:               "alice",
			Role:               models.AgentRoleSubAgent,
			Status:             models.AgentStatusActive,
			MaxConcurrentTasks: 2,
		}},
	})
	app = model.(*App)

	status := app.viewStatus()
	if !strings.Contains(status, "executing") {
		t.Errorf("status view missing state: %q", status)
	}
	if !strings.Contains(status, "7") {
		t.Errorf("status view missing pass count: %q", status)
	}

	agents := app.viewAgents()
	if !strings.Contains(agents, "alice") {
		t.Errorf("agents view missing agent: %q", agents)
	}
}

func TestEventLogBounded(t *testing.T) {
	app := New(nil, nil)
	for i := 0; i < maxEvents+25; i++ {
		app.appendEvent(engine.Event{
			Type:      engine.EventTaskFinished,
			Message:   fmt.Sprintf("task %d", i),
			Timestamp: time.Now(),
		})
	}
	if len(app.events) != maxEvents {
		t.Errorf("event log length = %d, want %d", len(app.events), maxEvents)
	}
	last := app.events[len(app.events)-1]
	if !strings.Contains(last.Message, fmt.Sprint(maxEvents+24)) {
		t.Errorf("newest event lost, got %q", last.Message)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"a longer string here", 10, "a longe..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
