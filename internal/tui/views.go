package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/colonnade-fm/colonnade/internal/search"
)

// View renders the UI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(m.renderPathBar())
	s.WriteString("\n")

	if m.mode == "search" {
		s.WriteString(m.renderSearch())
	} else {
		s.WriteString(m.renderColumns())
	}

	s.WriteString("\n")
	s.WriteString(m.renderStatus())
	return s.String()
}

func (m Model) renderPathBar() string {
	if len(m.snap.Crumbs) == 0 {
		return pathBarStyle.Render("colonnade")
	}
	parts := make([]string, len(m.snap.Crumbs))
	for i, c := range m.snap.Crumbs {
		parts[i] = c.Name
	}
	return pathBarStyle.Render(strings.Join(parts, " / "))
}

func (m Model) renderColumns() string {
	if len(m.snap.Columns) == 0 {
		return dimStyle.Render("  (no directory open)")
	}

	bodyHeight := max(4, m.height-6)
	rendered := make([]string, 0, len(m.snap.Columns))

	for i, col := range m.snap.Columns {
		cells := max(12, col.Width/pxPerCell)
		var b strings.Builder

		visible := col.Entries
		offset := 0
		// Keep the cursor on screen for long listings
		if col.SelectedIndex >= bodyHeight {
			offset = col.SelectedIndex - bodyHeight + 1
		}
		if offset < len(visible) {
			visible = visible[offset:]
		}
		if len(visible) > bodyHeight {
			visible = visible[:bodyHeight]
		}

		for row, entry := range visible {
			name := entry.Name
			if entry.IsDir {
				name += "/"
			}
			name = truncate(name, cells-2)

			line := " " + name
			switch {
			case offset+row == col.SelectedIndex:
				line = selectedStyle.Render(line)
			case entry.IsDir:
				line = dirStyle.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
		if len(col.Entries) == 0 {
			b.WriteString(dimStyle.Render(" (empty)"))
		}

		style := columnStyle
		if i == m.focusCol {
			style = focusedColumnStyle
		}
		rendered = append(rendered, style.Width(cells).Height(bodyHeight).Render(b.String()))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m Model) renderSearch() string {
	var s strings.Builder

	s.WriteString(m.input.View())
	s.WriteString("  ")
	s.WriteString(dimStyle.Render(m.snap.SearchState.String()))
	s.WriteString("\n\n")

	if len(m.snap.Results) == 0 {
		if m.snap.SearchState == search.StateCompleted {
			s.WriteString(dimStyle.Render("  no matches"))
		}
		return s.String()
	}

	bodyHeight := max(4, m.height-8)
	start := 0
	if m.resultIx >= bodyHeight {
		start = m.resultIx - bodyHeight + 1
	}
	end := min(len(m.snap.Results), start+bodyHeight)

	for i := start; i < end; i++ {
		r := m.snap.Results[i]
		badge := ""
		if r.MatchedByContent() {
			badge = matchStyle.Render(" [content]")
		}
		line := fmt.Sprintf("  %s%s", truncate(r.Path, m.width-14), badge)
		if i == m.resultIx {
			line = selectedStyle.Render(line)
		}
		s.WriteString(line)
		s.WriteString("\n")
	}
	s.WriteString(dimStyle.Render(fmt.Sprintf("\n  %d results", len(m.snap.Results))))
	return s.String()
}

func (m Model) renderStatus() string {
	var s strings.Builder

	if m.mode == "goto" {
		s.WriteString(m.input.View())
		s.WriteString("\n")
	}

	if p := m.snap.Preview; p != nil {
		s.WriteString(fmt.Sprintf("%s  %s  %s", p.Entry.Name, dimStyle.Render(p.Entry.Kind.String()), p.Detail))
		s.WriteString("\n")
	}

	if m.snap.Notice != "" {
		s.WriteString(noticeStyle.Render(m.snap.Notice))
		s.WriteString("\n")
	}

	s.WriteString(dimStyle.Render("↑↓ select  ←→ columns  enter open  / search  g go to  . hidden  t terminal  q quit"))
	return s.String()
}

// truncate shortens a string to fit the given cell budget.
func truncate(s string, cells int) string {
	if cells <= 1 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= cells {
		return s
	}
	return string(runes[:cells-1]) + "…"
}
