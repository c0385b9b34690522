package tui

import (
	"sort"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gantryhq/gantry/internal/graph"
	"github.com/gantryhq/gantry/internal/run"
	"github.com/gantryhq/gantry/internal/tui/styles"
)

// Model holds the watch view state.
type Model struct {
	store *run.Store
	runID string

	// Last successfully loaded snapshot. Stays nil until the first load;
	// later load failures keep the previous snapshot on screen.
	snap    *run.Snapshot
	loadErr error

	// Task specs sorted by (phase, ID), rebuilt on every snapshot.
	specs []graph.TaskSpec

	spinner      spinner.Model
	scrollOffset int
	width        int
	height       int
	ready        bool
	quitting     bool
}

func newModel(store *run.Store, runID string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(styles.SuccessColor)

	return Model{
		store:   store,
		runID:   runID,
		spinner: sp,
	}
}

// Init starts the spinner, the first snapshot load, and the poll tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadSnapshot(), tick())
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeypress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.clampScroll()
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.loadSnapshot(), tick())

	case refreshMsg:
		return m, m.loadSnapshot()

	case snapshotMsg:
		if msg.err != nil {
			// A load can fail mid-replace while the snapshot is being
			// rewritten; the next tick or event retries.
			if m.snap == nil {
				m.loadErr = msg.err
			}
			return m, nil
		}
		m.snap = msg.snap
		m.loadErr = nil
		m.specs = sortedSpecs(msg.snap)
		m.clampScroll()
		if msg.snap.Status.IsTerminal() {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKeypress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "j", "down":
		m.scrollOffset++
		m.clampScroll()
		return m, nil

	case "k", "up":
		if m.scrollOffset > 0 {
			m.scrollOffset--
		}
		return m, nil

	case "g":
		m.scrollOffset = 0
		return m, nil

	case "G":
		m.scrollOffset = m.maxScroll()
		return m, nil
	}

	return m, nil
}

// visibleRows returns how many task rows fit between the header block and
// the footer.
func (m Model) visibleRows() int {
	// header, status line, blank, footer counts, help bar, scroll hints
	reserved := 9
	if m.snap != nil && m.snap.AwaitingGate != "" {
		reserved += 2
	}
	rows := m.height - reserved
	if rows < 3 {
		rows = 3
	}
	return rows
}

func (m Model) maxScroll() int {
	n := len(m.taskRows()) - m.visibleRows()
	if n < 0 {
		return 0
	}
	return n
}

func (m *Model) clampScroll() {
	if limit := m.maxScroll(); m.scrollOffset > limit {
		m.scrollOffset = limit
	}
	if m.scrollOffset < 0 {
		m.scrollOffset = 0
	}
}

// taskRow is one renderable line: either a phase heading or a task.
type taskRow struct {
	heading bool
	phase   int
	spec    graph.TaskSpec
}

// taskRows flattens the snapshot into display rows, phase headings included,
// so scrolling works over a single list.
func (m Model) taskRows() []taskRow {
	if m.snap == nil {
		return nil
	}
	var rows []taskRow
	phase := -1
	for _, spec := range m.specs {
		if _, ok := m.snap.Tasks[spec.ID]; !ok {
			continue
		}
		if spec.Phase != phase {
			phase = spec.Phase
			rows = append(rows, taskRow{heading: true, phase: phase})
		}
		rows = append(rows, taskRow{spec: spec, phase: phase})
	}
	return rows
}

func sortedSpecs(snap *run.Snapshot) []graph.TaskSpec {
	specs := append([]graph.TaskSpec(nil), snap.Specs...)
	sort.Slice(specs, func(i, j int) bool {
		if specs[i].Phase != specs[j].Phase {
			return specs[i].Phase < specs[j].Phase
		}
		return specs[i].ID < specs[j].ID
	})
	return specs
}
