// Package tui renders the column browser in the terminal and translates
// key presses into controller intents.
package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/colonnade-fm/colonnade/internal/app"
)

// pxPerCell converts the pixel widths the layout engine computes into
// terminal cells.
const pxPerCell = 8

// Model represents the application state
type Model struct {
	controller *app.Controller
	snap       app.Snapshot
	snaps      chan app.Snapshot

	mode     string // "browse", "search", "goto"
	focusCol int
	input    textinput.Model
	resultIx int

	width  int
	height int
}

// New builds the model and hooks the controller's snapshot stream.
func New(controller *app.Controller) Model {
	ti := textinput.New()
	ti.CharLimit = 512

	snaps := make(chan app.Snapshot, 1)
	controller.SetOnUpdate(func(s app.Snapshot) {
		// Keep only the latest snapshot; rendering stale ones wastes frames
		for {
			select {
			case snaps <- s:
				return
			default:
				select {
				case <-snaps:
				default:
				}
			}
		}
	})

	return Model{
		controller: controller,
		snap:       controller.Snapshot(),
		snaps:      snaps,
		mode:       "browse",
		input:      ti,
	}
}

// Init starts listening for controller snapshots
func (m Model) Init() tea.Cmd {
	return waitForSnapshot(m.snaps)
}
