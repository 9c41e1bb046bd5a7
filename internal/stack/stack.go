// Package stack models the ordered sequence of open columns. Only the
// stack owns ordering; no column references its neighbours, so the
// parent/child relation is always derivable from adjacency:
// columns[i+1].Path == columns[i].Entries[columns[i].SelectedIndex].Path.
package stack

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/colonnade-fm/colonnade/internal/debug"
	"github.com/colonnade-fm/colonnade/internal/fs"
)

// Column is one level of the hierarchy being browsed. Entries is the
// visible (hidden-filtered) listing; raw keeps the unfiltered listing so
// toggling hidden files never re-reads the disk.
type Column struct {
	Path          string
	Entries       []fs.Entry
	SelectedIndex int // -1 = none
	Width         int
	ManualWidth   int // 0 = no override

	raw []fs.Entry
}

// SelectedEntry returns the selected entry, if any.
func (c *Column) SelectedEntry() (fs.Entry, bool) {
	if c.SelectedIndex < 0 || c.SelectedIndex >= len(c.Entries) {
		return fs.Entry{}, false
	}
	return c.Entries[c.SelectedIndex], true
}

// Stack is the ordered sequence of open columns. It is not safe for
// concurrent use; the controller serializes access.
type Stack struct {
	gw         *fs.Gateway
	columns    []*Column
	showHidden bool
}

func New(gw *fs.Gateway, showHidden bool) *Stack {
	return &Stack{gw: gw, showHidden: showHidden}
}

// Len returns the depth of navigation.
func (s *Stack) Len() int { return len(s.columns) }

// Columns returns the live columns. Callers other than the layout engine
// must treat them as read-only.
func (s *Stack) Columns() []*Column { return s.columns }

// Column returns the column at index i, or nil if out of range.
func (s *Stack) Column(i int) *Column {
	if i < 0 || i >= len(s.columns) {
		return nil
	}
	return s.columns[i]
}

// RootPath returns the path of column 0, or "" for an empty stack.
func (s *Stack) RootPath() string {
	if len(s.columns) == 0 {
		return ""
	}
	return s.columns[0].Path
}

// CurrentPath is the deepest open directory: the last column's path.
// A file selected in the last column does not change it, matching the
// "selecting a file browses its parent" behavior.
func (s *Stack) CurrentPath() string {
	if len(s.columns) == 0 {
		return ""
	}
	return s.columns[len(s.columns)-1].Path
}

// DeepestSelection returns the deepest selected entry across all columns.
func (s *Stack) DeepestSelection() (fs.Entry, bool) {
	for i := len(s.columns) - 1; i >= 0; i-- {
		if e, ok := s.columns[i].SelectedEntry(); ok {
			return e, true
		}
	}
	return fs.Entry{}, false
}

// Open resets the stack to a single column at rootPath.
func (s *Stack) Open(rootPath string) error {
	rootPath = filepath.Clean(rootPath)
	col, err := s.newColumn(rootPath)
	if err != nil {
		return err
	}
	debug.Log(debug.STACK, "Open: root=%q entries=%d", rootPath, len(col.Entries))
	s.columns = []*Column{col}
	return nil
}

// Select marks entries[entryIndex] selected in columns[columnIndex] and
// truncates every column to the right. If the entry is a directory a new
// column for it is appended; a listing failure leaves the stack truncated
// and returns the error as a non-fatal notice for the caller.
func (s *Stack) Select(columnIndex, entryIndex int) error {
	col := s.Column(columnIndex)
	if col == nil {
		return nil
	}
	if entryIndex < -1 || entryIndex >= len(col.Entries) {
		return nil
	}

	col.SelectedIndex = entryIndex
	s.columns = s.columns[:columnIndex+1]

	if entryIndex < 0 {
		debug.Log(debug.STACK, "Select: col=%d deselected, truncated to %d", columnIndex, s.Len())
		return nil
	}

	entry := col.Entries[entryIndex]
	if !entry.IsDir {
		debug.Log(debug.STACK, "Select: col=%d entry=%q (file)", columnIndex, entry.Name)
		return nil
	}

	child, err := s.newColumn(entry.Path)
	if err != nil {
		debug.Log(debug.STACK, "Select: child %q unlistable: %v", entry.Path, err)
		return err
	}
	s.columns = append(s.columns, child)
	debug.Log(debug.STACK, "Select: col=%d entry=%q appended child (%d entries)",
		columnIndex, entry.Name, len(child.Entries))
	return nil
}

// GoToParent pops the last column, or re-opens at the root's parent when
// only one column remains. At the filesystem root it is a no-op.
func (s *Stack) GoToParent() error {
	if len(s.columns) == 0 {
		return nil
	}
	if len(s.columns) > 1 {
		s.columns = s.columns[:len(s.columns)-1]
		s.columns[len(s.columns)-1].SelectedIndex = -1
		debug.Log(debug.STACK, "GoToParent: popped, depth=%d", s.Len())
		return nil
	}

	root := s.columns[0].Path
	parent := filepath.Dir(root)
	if parent == root {
		return nil // Already at filesystem root
	}
	debug.Log(debug.STACK, "GoToParent: reopening at %q", parent)
	return s.Open(parent)
}

// NavigateToPath rebuilds the stack along path's ancestor chain, reusing
// cached listings where the chain matches the existing columns. path must
// be an existing directory. A target inside the session root keeps column
// 0 anchored there; only a target outside it re-roots the session at the
// filesystem root.
func (s *Stack) NavigateToPath(path string) error {
	path = filepath.Clean(path)
	chain := Ancestors(path)
	if root := s.RootPath(); root != "" {
		for i, p := range chain {
			if p == root {
				chain = chain[i:]
				break
			}
		}
	}
	debug.Log(debug.STACK, "NavigateToPath: %q chain=%d", path, len(chain))

	cols := make([]*Column, 0, len(chain))
	for i, p := range chain {
		var col *Column
		if i < len(s.columns) && s.columns[i].Path == p {
			col = s.columns[i]
		} else {
			var err error
			col, err = s.newColumn(p)
			if err != nil {
				// Keep whatever prefix was valid so the session stays usable
				if len(cols) > 0 {
					cols[len(cols)-1].SelectedIndex = -1
					s.columns = cols
				}
				return err
			}
		}
		col.SelectedIndex = -1
		cols = append(cols, col)

		if i+1 < len(chain) {
			idx := col.reveal(chain[i+1])
			if idx < 0 {
				// Component vanished between stat and listing
				s.columns = cols
				return &fs.PathUnreadableError{Path: chain[i+1], Err: errNotFound}
			}
			col.SelectedIndex = idx
		}
	}

	s.columns = cols
	return nil
}

// SelectByPath selects the entry with the given path in the deepest
// column that lists it. Used by pickSearchResult after navigating to the
// parent directory.
func (s *Stack) SelectByPath(path string) bool {
	for i := len(s.columns) - 1; i >= 0; i-- {
		col := s.columns[i]
		if col.Path != filepath.Dir(path) {
			continue
		}
		if idx := col.reveal(path); idx >= 0 {
			return s.Select(i, idx) == nil
		}
	}
	return false
}

// Refresh re-lists the column at path in place, preserving the selection
// by name. If the selected entry disappeared, columns to the right are
// invalid and get truncated.
func (s *Stack) Refresh(path string) error {
	for i, col := range s.columns {
		if col.Path != path {
			continue
		}
		selected, hadSelection := col.SelectedEntry()

		fresh, err := s.newColumn(path)
		if err != nil {
			return err
		}
		fresh.Width = col.Width
		fresh.ManualWidth = col.ManualWidth
		s.columns[i] = fresh

		if !hadSelection {
			continue
		}
		idx := -1
		for j, e := range fresh.Entries {
			if e.Name == selected.Name {
				idx = j
				break
			}
		}
		if idx < 0 || fresh.Entries[idx].IsDir != selected.IsDir {
			debug.Log(debug.STACK, "Refresh: selection %q gone from %q, truncating", selected.Name, path)
			s.columns = s.columns[:i+1]
			return nil
		}
		fresh.SelectedIndex = idx
	}
	return nil
}

// SetShowHidden re-derives every column's visible entries. A selection
// that becomes hidden invalidates the columns to its right.
func (s *Stack) SetShowHidden(show bool) {
	s.showHidden = show
	for i, col := range s.columns {
		selected, hadSelection := col.SelectedEntry()
		col.Entries = filterEntries(col.raw, show)
		col.SelectedIndex = -1
		if !hadSelection {
			continue
		}
		idx := -1
		for j, e := range col.Entries {
			if e.Path == selected.Path {
				idx = j
				break
			}
		}
		if idx < 0 {
			s.columns = s.columns[:i+1]
			return
		}
		col.SelectedIndex = idx
	}
}

// ShowHidden reports the current hidden-entry visibility.
func (s *Stack) ShowHidden() bool { return s.showHidden }

func (s *Stack) newColumn(path string) (*Column, error) {
	raw, err := s.gw.ListDir(path)
	if err != nil {
		return nil, err
	}
	return &Column{
		Path:          path,
		Entries:       filterEntries(raw, s.showHidden),
		SelectedIndex: -1,
		raw:           raw,
	}, nil
}

// reveal returns the index of the entry with the given path, splicing it
// in from the unfiltered listing when the hidden filter concealed it, so
// explicit navigation always has a selectable target.
func (c *Column) reveal(path string) int {
	for i, e := range c.Entries {
		if e.Path == path {
			return i
		}
	}
	for _, e := range c.raw {
		if e.Path != path {
			continue
		}
		c.Entries = append(c.Entries, e)
		fs.SortEntries(c.Entries)
		for i, sorted := range c.Entries {
			if sorted.Path == path {
				return i
			}
		}
	}
	return -1
}

func filterEntries(entries []fs.Entry, showHidden bool) []fs.Entry {
	if showHidden {
		out := make([]fs.Entry, len(entries))
		copy(out, entries)
		return out
	}
	out := make([]fs.Entry, 0, len(entries))
	for _, e := range entries {
		if !strings.HasPrefix(e.Name, ".") {
			out = append(out, e)
		}
	}
	return out
}

// Ancestors returns the chain of directories from the filesystem root
// down to path itself: Ancestors("/a/b") == ["/", "/a", "/a/b"].
func Ancestors(path string) []string {
	path = filepath.Clean(path)
	var chain []string
	for {
		chain = append(chain, path)
		parent := filepath.Dir(path)
		if parent == path {
			break
		}
		path = parent
	}
	// Reverse into root-first order
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

var errNotFound = errors.New("entry not found in parent listing")
