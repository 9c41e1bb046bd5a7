// Package layout computes column widths: equal distribution of the space
// left after manual overrides, with a minimum-width clamp and horizontal
// overflow instead of shrinking below it.
package layout

import (
	"github.com/colonnade-fm/colonnade/internal/debug"
	"github.com/colonnade-fm/colonnade/internal/stack"
)

// MinColumnWidth is the floor for any column width; a configured minimum
// may raise it but never lower it.
const MinColumnWidth = 100

// Engine assigns widths to the stack's columns.
type Engine struct {
	minWidth int
}

// NewEngine builds an engine with the given minimum column width.
// Values below MinColumnWidth (including zero) fall back to it.
func NewEngine(minWidth int) *Engine {
	if minWidth < MinColumnWidth {
		minWidth = MinColumnWidth
	}
	return &Engine{minWidth: minWidth}
}

// MinWidth returns the effective minimum column width.
func (e *Engine) MinWidth() int { return e.minWidth }

// Recompute assigns every column a width. Columns with a manual override
// keep it (clamped to [minWidth, availableWidth]); the rest share what
// remains equally. When the share would fall below the minimum, every
// auto column gets the minimum and the stack overflows horizontally.
func (e *Engine) Recompute(columns []*stack.Column, availableWidth int) {
	if len(columns) == 0 {
		return
	}

	autoCount := 0
	fixed := 0
	for _, col := range columns {
		if col.ManualWidth > 0 {
			w := clamp(col.ManualWidth, e.minWidth, availableWidth)
			col.Width = w
			fixed += w
		} else {
			autoCount++
		}
	}

	if autoCount == 0 {
		debug.Log(debug.LAYOUT, "Recompute: %d columns all manual, total=%d", len(columns), fixed)
		return
	}

	remaining := availableWidth - fixed
	share := remaining / autoCount
	leftover := remaining - share*autoCount
	if share < e.minWidth {
		// Overflow: clamp to minimum, container scrolls
		share, leftover = e.minWidth, 0
	}

	for _, col := range columns {
		if col.ManualWidth > 0 {
			continue
		}
		col.Width = share
		// Spread the integer remainder so widths sum to availableWidth
		if leftover > 0 {
			col.Width++
			leftover--
		}
	}

	debug.Log(debug.LAYOUT, "Recompute: %d columns, available=%d share=%d", len(columns), availableWidth, share)
}

// SetManualWidth records a user-driven override for one column. Other
// columns' overrides are untouched; Recompute applies the change.
func (e *Engine) SetManualWidth(columns []*stack.Column, columnIndex, pixels int) {
	if columnIndex < 0 || columnIndex >= len(columns) {
		return
	}
	if pixels < e.minWidth {
		pixels = e.minWidth
	}
	columns[columnIndex].ManualWidth = pixels
	debug.Log(debug.LAYOUT, "SetManualWidth: col=%d px=%d", columnIndex, pixels)
}

// ResetManualWidths drops every override. Called on structural changes so
// drilling into a new level always starts from an equal layout.
func (e *Engine) ResetManualWidths(columns []*stack.Column) {
	for _, col := range columns {
		col.ManualWidth = 0
	}
}

// TotalWidth is the sum of assigned widths; larger than the available
// width when the stack has overflowed.
func (e *Engine) TotalWidth(columns []*stack.Column) int {
	total := 0
	for _, col := range columns {
		total += col.Width
	}
	return total
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
