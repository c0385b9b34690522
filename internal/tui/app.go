// Package tui implements the live watch view for a run: a full-screen
// Bubbletea dashboard showing per-task state as the snapshot evolves.
package tui

import (
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/gantryhq/gantry/internal/run"
)

// Watch renders a live view of a run and blocks until the run reaches a
// terminal status or the user quits. The underlying run keeps executing
// either way; Watch only reads the snapshot.
func Watch(store *run.Store, runID string) error {
	p := tea.NewProgram(newModel(store, runID), tea.WithAltScreen())

	// Snapshot saves replace run.json, so the watcher covers the directory.
	// When the watcher cannot be set up the poll tick still refreshes the
	// view, just less promptly.
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if err := watcher.Add(store.RunDir(runID)); err == nil {
			go forwardSnapshotEvents(p, watcher)
		}
		defer watcher.Close()
	}

	_, err = p.Run()
	return err
}

// forwardSnapshotEvents turns filesystem events on run.json into refresh
// messages. It returns when the watcher is closed.
func forwardSnapshotEvents(p *tea.Program, watcher *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) == run.SnapshotFileName {
				p.Send(refreshMsg{})
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Messages

type tickMsg time.Time

// refreshMsg asks the model to reload the snapshot outside the tick cycle.
type refreshMsg struct{}

type snapshotMsg struct {
	snap *run.Snapshot
	err  error
}

// Commands

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) loadSnapshot() tea.Cmd {
	return func() tea.Msg {
		snap, err := m.store.Load(m.runID)
		return snapshotMsg{snap: snap, err: err}
	}
}
