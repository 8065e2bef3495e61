// Package tui provides the terminal watch dashboard for a running
// overseer engine.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/overseer-dev/overseer/internal/engine"
	"github.com/overseer-dev/overseer/internal/supervisor"
	"github.com/overseer-dev/overseer/internal/taskqueue"
	"github.com/overseer-dev/overseer/pkg/models"
)

// Tab constants for navigation.
const (
	TabStatus = iota
	TabAgents
	TabEvents
)

// maxEvents bounds the in-memory event log.
const maxEvents = 200

// Snapshot is the data the dashboard refreshes each poll.
type Snapshot struct {
	// State is the supervisor's current state name.
	State string
	// Summary is the supervisor's transition summary.
	Summary supervisor.Summary
	// System is the supervisor's workload snapshot.
	System models.SystemSnapshot
	// Queue is the task queue's counters.
	Queue taskqueue.Stats
	// Agents is the current roster.
	Agents []*models.Agent
	// Passes is how many iteration passes have completed.
	Passes int64
}

// SnapshotMsg delivers a fresh Snapshot to the model.
type SnapshotMsg Snapshot

// EngineEventMsg wraps an engine event for the dashboard.
type EngineEventMsg engine.Event

type pollTickMsg time.Time

// App is the bubbletea model for the watch dashboard.
type App struct {
	header  *Header
	spinner spinner.Model

	// currentTab is the currently selected tab.
	currentTab int
	// snap is the latest polled snapshot.
	snap Snapshot
	// events is the rolling engine event log, newest last.
	events []engine.Event

	width    int
	height   int
	quitting bool

	poll      func() Snapshot
	eventCh   <-chan engine.Event
	pollEvery time.Duration
}

// New creates an App. poll is called periodically for fresh state;
// events, when non-nil, streams engine events into the event log.
func New(poll func() Snapshot, events <-chan engine.Event) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#45B7D1"))

	return &App{
		header:    NewHeader(),
		spinner:   sp,
		poll:      poll,
		eventCh:   events,
		pollEvery: time.Second,
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.spinner.Tick, a.schedulePoll()}
	if a.eventCh != nil {
		cmds = append(cmds, a.waitForEvent())
	}
	return tea.Batch(cmds...)
}

func (a *App) schedulePoll() tea.Cmd {
	return tea.Tick(a.pollEvery, func(t time.Time) tea.Msg {
		return pollTickMsg(t)
	})
}

func (a *App) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-a.eventCh
		if !ok {
			return nil
		}
		return EngineEventMsg(event)
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = true
			return a, tea.Quit
		case "tab":
			a.currentTab = (a.currentTab + 1) % 3
		case "1":
			a.currentTab = TabStatus
		case "2":
			a.currentTab = TabAgents
		case "3":
			a.currentTab = TabEvents
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.header.SetWidth(msg.Width)

	case pollTickMsg:
		if a.poll != nil {
			a.snap = a.poll()
		}
		return a, a.schedulePoll()

	case SnapshotMsg:
		a.snap = Snapshot(msg)

	case EngineEventMsg:
		a.appendEvent(engine.Event(msg))
		return a, a.waitForEvent()

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

func (a *App) appendEvent(event engine.Event) {
	a.events = append(a.events, event)
	if len(a.events) > maxEvents {
		a.events = a.events[len(a.events)-maxEvents:]
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return "Goodbye!\n"
	}

	var content string
	switch a.currentTab {
	case TabStatus:
		content = a.viewStatus()
	case TabAgents:
		content = a.viewAgents()
	case TabEvents:
		content = a.viewEvents()
	}

	return fmt.Sprintf("%s\n%s\n\n%s\n%s", a.header.View(), a.viewTabs(), content, a.viewFooter())
}

func (a *App) viewTabs() string {
	tabs := []string{"Status", "Agents", "Events"}
	var line string
	for i, tab := range tabs {
		if i == a.currentTab {
			line += activeTabStyle.Render("["+tab+"]") + " "
		} else {
			line += inactiveTabStyle.Render(" "+tab+" ") + " "
		}
	}
	return line
}

func (a *App) viewStatus() string {
	snap := a.snap
	view := fmt.Sprintf("  State:      %s", stateStyle.Render(snap.State))
	if snap.Summary.Transitions > 0 {
		view += dimStyle.Render(fmt.Sprintf("  (for %s, %d transitions)",
			snap.Summary.Duration.Round(time.Second), snap.Summary.Transitions))
	}
	view += "\n"
	view += fmt.Sprintf("  Passes:     %d\n", snap.Passes)
	view += fmt.Sprintf("  Workload:   %d running, %d pending\n", snap.System.Workload, len(snap.System.PendingTasks))
	view += fmt.Sprintf("  Tasks:      %d completed, %d failed, %d cancelled\n",
		snap.Queue.Completed, snap.Queue.Failed, snap.Queue.Cancelled)
	if snap.Queue.Completed+snap.Queue.Failed > 0 {
		view += fmt.Sprintf("  Avg time:   %s\n", snap.Queue.AvgDuration.Round(time.Millisecond))
	}
	view += fmt.Sprintf("  Success:    %.0f%%\n", snap.System.SuccessRate*100)

	if n := len(snap.System.Errors); n > 0 {
		view += errorStyle.Render(fmt.Sprintf("  Errors:     %d", n)) + "\n"
		last := snap.System.Errors[n-1]
		view += errorStyle.Render("    last: "+truncate(last, 70)) + "\n"
	}
	for _, action := range snap.System.ImprovementActions {
		view += dimStyle.Render("  improve: "+truncate(action, 70)) + "\n"
	}
	return view
}

func (a *App) viewAgents() string {
	if len(a.snap.Agents) == 0 {
		return dimStyle.Render("  No agents registered")
	}

	var view string
	for _, agent := range a.snap.Agents {
		view += fmt.Sprintf("  %-20s %-13s %-9s %d/%d  score %.1f\n",
			truncate(agent.Name, 20), agent.Role, agent.Status,
			agent.Load(), agent.MaxConcurrentTasks, agent.Score)
	}
	return view
}

func (a *App) viewEvents() string {
	if len(a.events) == 0 {
		return dimStyle.Render("  No events yet")
	}

	visible := a.events
	limit := a.height - 8
	if limit > 0 && len(visible) > limit {
		visible = visible[len(visible)-limit:]
	}

	var view string
	for _, event := range visible {
		line := fmt.Sprintf("  %s %-20s %s",
			event.Timestamp.Format("15:04:05"), event.Type, truncate(event.Message, 60))
		if event.Type == engine.EventIterationError {
			line = errorStyle.Render(line)
		}
		view += line + "\n"
	}
	return view
}

func (a *App) viewFooter() string {
	return footerStyle.Render(fmt.Sprintf("%s watching   tab: switch   q: quit", a.spinner.View()))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
