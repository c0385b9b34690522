package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gantryhq/gantry/internal/graph"
	"github.com/gantryhq/gantry/internal/run"
)

// watchSnapshot builds a three-task snapshot spanning two phases.
func watchSnapshot(status run.Status) *run.Snapshot {
	return &run.Snapshot{
		ID:           "0f5c9a2e-1b7d-4c3a-9e8f-6a5b4c3d2e1f",
		Plan:         "nightly",
		Status:       status,
		CurrentPhase: 1,
		Specs: []graph.TaskSpec{
			{ID: "build", Phase: 0},
			{ID: "fetch", Phase: 0},
			{ID: "deploy", Phase: 1},
		},
		Tasks: map[string]run.TaskInstance{
			"fetch":  {TaskID: "fetch", Status: run.TaskSucceeded},
			"build":  {TaskID: "build", Status: run.TaskSucceeded},
			"deploy": {TaskID: "deploy", Status: run.TaskRunning, Attempts: 1},
		},
	}
}

func TestUpdate_QuitKeys(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
	}{
		{name: "q", key: tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}},
		{name: "esc", key: tea.KeyMsg{Type: tea.KeyEsc}},
		{name: "ctrl+c", key: tea.KeyMsg{Type: tea.KeyCtrlC}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Model{}
			updated, cmd := m.Update(tt.key)

			if !updated.(Model).quitting {
				t.Error("quitting = false, want true")
			}
			if cmd == nil {
				t.Fatal("expected a quit command, got nil")
			}
			if _, ok := cmd().(tea.QuitMsg); !ok {
				t.Errorf("cmd() = %T, want tea.QuitMsg", cmd())
			}
		})
	}
}

func TestUpdate_SnapshotTerminalQuits(t *testing.T) {
	m := Model{}
	updated, cmd := m.Update(snapshotMsg{snap: watchSnapshot(run.StatusCompleted)})

	if !updated.(Model).quitting {
		t.Error("quitting = false, want true after terminal snapshot")
	}
	if cmd == nil {
		t.Fatal("expected a quit command, got nil")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("cmd() = %T, want tea.QuitMsg", cmd())
	}
}

func TestUpdate_SnapshotRunningKeepsWatching(t *testing.T) {
	m := Model{}
	updated, cmd := m.Update(snapshotMsg{snap: watchSnapshot(run.StatusRunning)})

	got := updated.(Model)
	if got.quitting {
		t.Error("quitting = true, want false for a running snapshot")
	}
	if got.snap == nil {
		t.Fatal("snap not stored")
	}
	if cmd != nil {
		t.Errorf("cmd = %v, want nil", cmd)
	}
}

func TestUpdate_LoadErrorKeepsLastSnapshot(t *testing.T) {
	snap := watchSnapshot(run.StatusRunning)
	m := Model{snap: snap, specs: sortedSpecs(snap)}

	updated, _ := m.Update(snapshotMsg{err: errors.New("mid-replace")})

	got := updated.(Model)
	if got.snap != snap {
		t.Error("snap was dropped on load error")
	}
	if got.loadErr != nil {
		t.Errorf("loadErr = %v, want nil while a good snapshot is held", got.loadErr)
	}
}

func TestUpdate_LoadErrorBeforeFirstSnapshot(t *testing.T) {
	m := Model{}
	updated, _ := m.Update(snapshotMsg{err: errors.New("no such run")})

	if updated.(Model).loadErr == nil {
		t.Error("loadErr = nil, want the load error surfaced")
	}
}

func TestTaskRows(t *testing.T) {
	snap := watchSnapshot(run.StatusRunning)
	m := Model{snap: snap, specs: sortedSpecs(snap)}

	rows := m.taskRows()
	want := []struct {
		heading bool
		label   string
	}{
		{heading: true, label: "0"},
		{label: "build"},
		{label: "fetch"},
		{heading: true, label: "1"},
		{label: "deploy"},
	}

	if len(rows) != len(want) {
		t.Fatalf("len(rows) = %d, want %d", len(rows), len(want))
	}
	for i, w := range want {
		if rows[i].heading != w.heading {
			t.Errorf("rows[%d].heading = %v, want %v", i, rows[i].heading, w.heading)
		}
		if !w.heading && rows[i].spec.ID != w.label {
			t.Errorf("rows[%d].spec.ID = %q, want %q", i, rows[i].spec.ID, w.label)
		}
	}
}

func TestTaskRows_SkipsUnknownSpecs(t *testing.T) {
	snap := watchSnapshot(run.StatusRunning)
	snap.Specs = append(snap.Specs, graph.TaskSpec{ID: "ghost", Phase: 2})
	m := Model{snap: snap, specs: sortedSpecs(snap)}

	for _, row := range m.taskRows() {
		if !row.heading && row.spec.ID == "ghost" {
			t.Error("taskRows included a spec with no task instance")
		}
	}
}

func TestClampScroll(t *testing.T) {
	snap := watchSnapshot(run.StatusRunning)
	m := Model{snap: snap, specs: sortedSpecs(snap), height: 40}

	m.scrollOffset = 100
	m.clampScroll()
	if m.scrollOffset != 0 {
		t.Errorf("scrollOffset = %d, want 0 when everything fits", m.scrollOffset)
	}

	m.scrollOffset = -3
	m.clampScroll()
	if m.scrollOffset != 0 {
		t.Errorf("scrollOffset = %d, want 0 after negative clamp", m.scrollOffset)
	}

	// 5 rows, minimum visible window of 3: offset clamps to 2.
	m.height = 0
	m.scrollOffset = 100
	m.clampScroll()
	if m.scrollOffset != 2 {
		t.Errorf("scrollOffset = %d, want 2 with a cramped window", m.scrollOffset)
	}
}

func TestView_ShowsTasksAndCounts(t *testing.T) {
	snap := watchSnapshot(run.StatusRunning)
	m := Model{snap: snap, specs: sortedSpecs(snap), ready: true, width: 100, height: 40}
	m.spinner = newModel(nil, "").spinner

	view := m.View()
	for _, want := range []string{"nightly", "build", "fetch", "deploy", "3 tasks"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestView_GateBanner(t *testing.T) {
	snap := watchSnapshot(run.StatusAwaitingApproval)
	snap.AwaitingGate = "staging-signoff"
	m := Model{snap: snap, specs: sortedSpecs(snap), ready: true, width: 100, height: 40}
	m.spinner = newModel(nil, "").spinner

	view := m.View()
	if !strings.Contains(view, "staging-signoff") {
		t.Error("View() missing the awaiting gate ID")
	}
	if !strings.Contains(view, "gantry approve") {
		t.Error("View() missing the approve hint")
	}
}

func TestView_QuittingIsBlank(t *testing.T) {
	m := Model{quitting: true}
	if got := m.View(); got != "" {
		t.Errorf("View() = %q, want empty while quitting", got)
	}
}

func TestShortID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"0f5c9a2e-1b7d-4c3a-9e8f-6a5b4c3d2e1f", "0f5c9a2e"},
		{"abc", "abc"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := shortID(tt.id); got != tt.want {
			t.Errorf("shortID(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s    string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 5, "hell…"},
		{"hello", 1, "…"},
	}

	for _, tt := range tests {
		if got := truncate(tt.s, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.s, tt.n, got, tt.want)
		}
	}
}
