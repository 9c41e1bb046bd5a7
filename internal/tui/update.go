package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/colonnade-fm/colonnade/internal/app"
	"github.com/colonnade-fm/colonnade/internal/layout"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.controller.SetAvailableWidth(msg.Width * pxPerCell)
		return m, nil

	case snapshotMsg:
		m.snap = app.Snapshot(msg)
		if m.focusCol >= len(m.snap.Columns) {
			m.focusCol = max(0, len(m.snap.Columns)-1)
		}
		if m.resultIx >= len(m.snap.Results) {
			m.resultIx = max(0, len(m.snap.Results)-1)
		}
		return m, waitForSnapshot(m.snaps)

	case tea.KeyMsg:
		switch m.mode {
		case "search":
			return m.updateSearch(msg)
		case "goto":
			return m.updateGoto(msg)
		default:
			return m.updateBrowse(msg)
		}
	}

	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		m.moveSelection(-1)
	case "down", "j":
		m.moveSelection(1)

	case "left", "h":
		if m.focusCol > 0 {
			m.focusCol--
		} else {
			m.controller.GoBack()
		}
	case "right", "l":
		if m.focusCol < len(m.snap.Columns)-1 {
			m.focusCol++
		}

	case "enter":
		m.openFocused()

	case "backspace":
		m.controller.GoBack()

	case "/":
		m.mode = "search"
		m.input.Placeholder = "search"
		// Remembered query (if the setting is on) prefills the input
		m.input.SetValue(m.snap.LastQuery)
		m.input.CursorEnd()
		m.input.Focus()
		return m, nil

	case "g":
		m.mode = "goto"
		m.input.Placeholder = "go to path"
		m.input.SetValue("")
		m.input.Focus()
		return m, nil

	case ".":
		m.controller.ToggleHidden()

	case "t":
		m.controller.OpenTerminal(m.snap.CurrentPath)

	case "f":
		m.controller.AddFavorite(m.snap.CurrentPath)

	case "<":
		m.nudgeWidth(-4 * pxPerCell)
	case ">":
		m.nudgeWidth(4 * pxPerCell)
	}

	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = "browse"
		m.input.Blur()
		m.controller.ClearSearch()
		return m, nil

	case "up":
		m.resultIx = max(0, m.resultIx-1)
		return m, nil
	case "down":
		m.resultIx = min(len(m.snap.Results)-1, m.resultIx+1)
		if m.resultIx < 0 {
			m.resultIx = 0
		}
		return m, nil

	case "enter":
		if m.resultIx < len(m.snap.Results) {
			m.mode = "browse"
			m.input.Blur()
			m.controller.PickSearchResult(m.snap.Results[m.resultIx].Path)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.resultIx = 0
	// Hold ctrl to also match file contents
	m.controller.Search(m.input.Value(), msg.String() == "ctrl+enter")
	return m, cmd
}

func (m Model) updateGoto(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = "browse"
		m.input.Blur()
		return m, nil

	case "enter":
		m.mode = "browse"
		m.input.Blur()
		m.controller.GoToPath(m.input.Value())
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// moveSelection moves the cursor inside the focused column, which
// truncates deeper columns and opens the child when a directory lands
// under the cursor.
func (m *Model) moveSelection(delta int) {
	if m.focusCol >= len(m.snap.Columns) {
		return
	}
	col := m.snap.Columns[m.focusCol]
	if len(col.Entries) == 0 {
		return
	}
	next := col.SelectedIndex + delta
	if col.SelectedIndex < 0 && delta > 0 {
		next = 0
	}
	if next < 0 || next >= len(col.Entries) {
		return
	}
	m.controller.SelectEntry(m.focusCol, next)
}

// openFocused hands the selected file to the OS, or descends into the
// selected directory by moving focus right.
func (m *Model) openFocused() {
	if m.focusCol >= len(m.snap.Columns) {
		return
	}
	col := m.snap.Columns[m.focusCol]
	if col.SelectedIndex < 0 || col.SelectedIndex >= len(col.Entries) {
		return
	}
	entry := col.Entries[col.SelectedIndex]
	if entry.IsDir {
		if m.focusCol < len(m.snap.Columns)-1 {
			m.focusCol++
		}
		return
	}
	m.controller.OpenEntry(entry.Path)
}

func (m *Model) nudgeWidth(deltaPx int) {
	if m.focusCol >= len(m.snap.Columns) {
		return
	}
	current := m.snap.Columns[m.focusCol].Width
	target := current + deltaPx
	if target < layout.MinColumnWidth {
		target = layout.MinColumnWidth
	}
	m.controller.SetColumnWidth(m.focusCol, target)
}
