package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/colonnade-fm/colonnade/internal/app"
)

// snapshotMsg carries a fresh controller snapshot into the update loop.
type snapshotMsg app.Snapshot

// waitForSnapshot blocks until the controller publishes a new snapshot.
func waitForSnapshot(snaps chan app.Snapshot) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(<-snaps)
	}
}
