// Package app wires the column stack, layout engine, search engine and
// persistence into a single controller that serializes user intents.
package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/colonnade-fm/colonnade/internal/config"
	"github.com/colonnade-fm/colonnade/internal/debug"
	"github.com/colonnade-fm/colonnade/internal/fs"
	"github.com/colonnade-fm/colonnade/internal/layout"
	"github.com/colonnade-fm/colonnade/internal/search"
	"github.com/colonnade-fm/colonnade/internal/stack"
	"github.com/colonnade-fm/colonnade/internal/store"
)

// ErrInvalidPath is returned when a typed path does not resolve to an
// existing file or directory.
var ErrInvalidPath = errors.New("path does not exist")

// SharedDeps holds references to shared dependencies that the controller
// and its collaborators need. All of them receive a pointer to this
// struct rather than copying fields.
type SharedDeps struct {
	Gateway  *fs.Gateway
	Store    *store.DB
	Config   *config.Manager
	HomePath string
}

// ColumnView is the immutable per-column slice of a Snapshot.
type ColumnView struct {
	Path          string
	Entries       []fs.Entry
	SelectedIndex int
	Width         int
}

// Crumb is one clickable segment of the path bar.
type Crumb struct {
	Name string
	Path string
}

// Preview describes the deepest selected entry for the detail pane.
type Preview struct {
	Entry  fs.Entry
	Detail string // Humanized size for files, item count for directories
}

// Snapshot is the read model handed to the presentation layer. It is a
// value copy; the controller never mutates a snapshot after publishing it.
type Snapshot struct {
	Columns     []ColumnView
	Crumbs      []Crumb
	CurrentPath string
	ShowHidden  bool
	Preview     *Preview
	Favorites   []string
	SearchState search.State
	SearchQuery string
	LastQuery   string
	Results     []search.Result
	Notice      string
}

// Controller owns all navigation state. Every public method takes the
// mutex, applies the intent, and publishes a fresh snapshot, so intents
// from any goroutine are applied one at a time.
type Controller struct {
	deps *SharedDeps

	mu        sync.Mutex
	stack     *stack.Stack
	layout    *layout.Engine
	engine    *search.Engine
	watcher   *DirectoryWatcher
	width     int
	favorites []string

	searchQuery string
	searchState search.State
	searchGen   int64
	results     []search.Result
	lastQuery   string
	notice      string

	onUpdate func(Snapshot)
	done     chan struct{}
}

// NewController builds the controller and starts its background
// consumers. Callers must invoke Close when done.
func NewController(deps *SharedDeps) *Controller {
	cfg := deps.Config.Get()

	c := &Controller{
		deps:   deps,
		stack:  stack.New(deps.Gateway, cfg.Browse.ShowHidden),
		layout: layout.NewEngine(cfg.Layout.MinColumnWidth),
		width:  cfg.Layout.WindowWidth,
		done:   make(chan struct{}),
	}

	c.engine = search.NewEngine(deps.Gateway)
	if cfg.Search.DebounceMs > 0 {
		c.engine.SetDebounce(time.Duration(cfg.Search.DebounceMs) * time.Millisecond)
	}
	if cfg.Search.MaxContentBytes > 0 {
		c.engine.SetMaxContentBytes(cfg.Search.MaxContentBytes)
	}
	c.engine.SetHandlers(c.onSearchResult, c.onSearchState)

	if w, err := NewDirectoryWatcher(0); err == nil {
		c.watcher = w
		go c.consumeWatcher()
	} else {
		debug.Log(debug.APP, "Watcher unavailable: %v", err)
	}

	if deps.Store != nil {
		go c.consumeStore()
		deps.Store.RequestChan <- store.Request{Op: store.FetchFavorites}
	}

	return c
}

// SetOnUpdate registers the snapshot callback. It is invoked outside the
// controller mutex, on whichever goroutine applied the intent.
func (c *Controller) SetOnUpdate(fn func(Snapshot)) {
	c.mu.Lock()
	c.onUpdate = fn
	c.mu.Unlock()
}

// OpenRoot opens a fresh single-column stack at the given directory.
func (c *Controller) OpenRoot(path string) error {
	c.mu.Lock()
	err := c.stack.Open(path)
	if err != nil {
		c.notice = fmt.Sprintf("Cannot open %s: %v", path, err)
	} else {
		c.notice = ""
	}
	c.afterStructureChangeLocked()
	snap, fn := c.snapshotLocked()
	c.mu.Unlock()

	emit(fn, snap)
	return err
}

// SelectEntry selects an entry in a column, truncating deeper columns
// and appending the child column when a directory was selected.
func (c *Controller) SelectEntry(columnIndex, entryIndex int) error {
	c.mu.Lock()
	err := c.stack.Select(columnIndex, entryIndex)
	if err != nil {
		c.notice = fmt.Sprintf("Cannot open directory: %v", err)
	} else {
		c.notice = ""
	}
	c.afterStructureChangeLocked()
	snap, fn := c.snapshotLocked()
	c.mu.Unlock()

	emit(fn, snap)
	return err
}

// GoBack pops the deepest column, or climbs to the parent directory
// when only one column remains.
func (c *Controller) GoBack() {
	c.mu.Lock()
	c.stack.GoToParent()
	c.notice = ""
	c.afterStructureChangeLocked()
	snap, fn := c.snapshotLocked()
	c.mu.Unlock()

	emit(fn, snap)
}

// GoToPath expands the typed input and rebuilds the stack to show it.
// Typing a file path opens its parent directory with the file selected.
func (c *Controller) GoToPath(input string) error {
	c.mu.Lock()
	path := c.expandPathLocked(input)

	info, statErr := os.Stat(path)
	var err error
	switch {
	case statErr != nil:
		err = fmt.Errorf("%w: %s", ErrInvalidPath, path)
	case info.IsDir():
		err = c.stack.NavigateToPath(path)
	default:
		if err = c.stack.NavigateToPath(filepath.Dir(path)); err == nil {
			if !c.stack.SelectByPath(path) {
				err = fmt.Errorf("%w: %s", ErrInvalidPath, path)
			}
		}
	}

	if err != nil {
		c.notice = err.Error()
	} else {
		c.notice = ""
	}
	c.afterStructureChangeLocked()
	snap, fn := c.snapshotLocked()
	c.mu.Unlock()

	emit(fn, snap)
	return err
}

// Search submits a query against the current deepest directory. Queries
// within the debounce window supersede each other; only the last runs.
func (c *Controller) Search(text string, matchContent bool) {
	c.mu.Lock()
	root := c.stack.CurrentPath()
	if root == "" {
		root = c.deps.HomePath
	}
	c.searchQuery = text
	c.results = nil

	if strings.TrimSpace(text) == "" {
		c.searchState = search.StateIdle
		snap, fn := c.snapshotLocked()
		c.mu.Unlock()
		// Engine calls happen outside the mutex: the engine invokes the
		// state handler synchronously and the handler re-locks
		c.engine.Cancel()
		c.engine.Reset()
		emit(fn, snap)
		return
	}
	c.mu.Unlock()

	gen := c.engine.Submit(search.Query{
		Text:          text,
		Root:          root,
		SearchContent: matchContent,
	})

	c.mu.Lock()
	c.searchGen = gen
	c.searchState = search.StateDebouncing
	snap, fn := c.snapshotLocked()
	c.mu.Unlock()

	emit(fn, snap)
}

// ClearSearch cancels any in-flight search and drops its results.
func (c *Controller) ClearSearch() {
	c.engine.Cancel()
	c.engine.Reset()

	c.mu.Lock()
	c.searchQuery = ""
	c.searchState = search.StateIdle
	c.results = nil
	snap, fn := c.snapshotLocked()
	c.mu.Unlock()

	emit(fn, snap)
}

// PickSearchResult leaves search mode and navigates the column stack to
// the chosen result, selecting it in its parent column.
func (c *Controller) PickSearchResult(path string) error {
	c.engine.Cancel()

	c.mu.Lock()
	c.searchQuery = ""
	c.searchState = search.StateIdle
	c.results = nil

	err := c.stack.NavigateToPath(filepath.Dir(path))
	if err == nil && !c.stack.SelectByPath(path) {
		err = fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}
	if err != nil {
		c.notice = fmt.Sprintf("Cannot reveal %s: %v", path, err)
	} else {
		c.notice = ""
	}
	c.afterStructureChangeLocked()
	snap, fn := c.snapshotLocked()
	c.mu.Unlock()

	emit(fn, snap)
	return err
}

// SetColumnWidth records a manual width for one column and reflows the
// rest. Values below the minimum are clamped.
func (c *Controller) SetColumnWidth(columnIndex, pixels int) {
	c.mu.Lock()
	c.layout.SetManualWidth(c.stack.Columns(), columnIndex, pixels)
	c.layout.Recompute(c.stack.Columns(), c.width)
	snap, fn := c.snapshotLocked()
	c.mu.Unlock()

	emit(fn, snap)
}

// SetAvailableWidth reflows all columns for a new window width.
func (c *Controller) SetAvailableWidth(pixels int) {
	c.mu.Lock()
	c.width = pixels
	c.layout.Recompute(c.stack.Columns(), c.width)
	snap, fn := c.snapshotLocked()
	c.mu.Unlock()

	c.deps.Config.SetWindowWidth(pixels)
	emit(fn, snap)
}

// ToggleHidden flips the hidden-entry filter and persists the choice.
func (c *Controller) ToggleHidden() {
	c.mu.Lock()
	show := !c.stack.ShowHidden()
	c.stack.SetShowHidden(show)
	c.afterStructureChangeLocked()
	snap, fn := c.snapshotLocked()
	c.mu.Unlock()

	c.deps.Config.SetShowHidden(show)
	emit(fn, snap)
}

// OpenEntry hands a path to the OS default handler.
func (c *Controller) OpenEntry(path string) error {
	debug.Log(debug.APP, "Opening with OS handler: %s", path)
	return openPath(path)
}

// OpenTerminal launches the first available terminal emulator in the
// given directory.
func (c *Controller) OpenTerminal(dir string) error {
	cfg := c.deps.Config.Get()
	return openTerminal(dir, cfg.Open.Terminals)
}

// AddFavorite persists a directory bookmark.
func (c *Controller) AddFavorite(path string) {
	if c.deps.Store != nil {
		c.deps.Store.RequestChan <- store.Request{Op: store.AddFavorite, Path: path}
	}
}

// RemoveFavorite drops a directory bookmark.
func (c *Controller) RemoveFavorite(path string) {
	if c.deps.Store != nil {
		c.deps.Store.RequestChan <- store.Request{Op: store.RemoveFavorite, Path: path}
	}
}

// Snapshot returns the current read model.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	snap, _ := c.snapshotLocked()
	c.mu.Unlock()
	return snap
}

// Close stops the search engine, watcher and background consumers.
func (c *Controller) Close() {
	c.engine.Cancel()
	if c.watcher != nil {
		c.watcher.Close()
	}
	close(c.done)
}

// afterStructureChangeLocked resets manual widths, reflows the layout
// and re-syncs the watcher whenever the column structure changed.
func (c *Controller) afterStructureChangeLocked() {
	c.layout.ResetManualWidths(c.stack.Columns())
	c.layout.Recompute(c.stack.Columns(), c.width)
	c.syncWatchesLocked()
}

func (c *Controller) syncWatchesLocked() {
	if c.watcher == nil {
		return
	}
	paths := make([]string, 0, c.stack.Len())
	for _, col := range c.stack.Columns() {
		paths = append(paths, col.Path)
	}
	c.watcher.Sync(paths)
}

// consumeWatcher refreshes columns whose directories changed on disk.
func (c *Controller) consumeWatcher() {
	for {
		select {
		case <-c.done:
			return
		case dir, ok := <-c.watcher.Notify():
			if !ok {
				return
			}
			c.mu.Lock()
			if err := c.stack.Refresh(dir); err != nil {
				debug.Log(debug.APP, "Refresh %s failed: %v", dir, err)
			}
			c.afterStructureChangeLocked()
			snap, fn := c.snapshotLocked()
			c.mu.Unlock()
			emit(fn, snap)
		}
	}
}

// consumeStore keeps the favorites slice in sync with the database.
func (c *Controller) consumeStore() {
	for {
		select {
		case <-c.done:
			return
		case resp, ok := <-c.deps.Store.ResponseChan:
			if !ok {
				return
			}
			if resp.Op != store.FetchFavorites || resp.Err != nil {
				continue
			}
			c.mu.Lock()
			c.favorites = resp.Favorites
			snap, fn := c.snapshotLocked()
			c.mu.Unlock()
			emit(fn, snap)
		}
	}
}

// onSearchResult is invoked by the engine for each match. Stale
// generations are already filtered by the engine; the comparison here
// guards against results racing a ClearSearch.
func (c *Controller) onSearchResult(gen int64, r search.Result) {
	c.mu.Lock()
	if gen != c.searchGen {
		c.mu.Unlock()
		return
	}
	c.results = append(c.results, r)
	snap, fn := c.snapshotLocked()
	c.mu.Unlock()

	emit(fn, snap)
}

func (c *Controller) onSearchState(gen int64, s search.State, err error) {
	c.mu.Lock()
	if gen != c.searchGen {
		c.mu.Unlock()
		return
	}
	c.searchState = s
	if s == search.StateFailed && err != nil {
		c.notice = fmt.Sprintf("Search failed: %v", err)
	}
	if s == search.StateCompleted && c.deps.Config.Get().Search.RememberLastQuery {
		c.lastQuery = c.searchQuery
	}
	query := c.searchQuery
	snap, fn := c.snapshotLocked()
	c.mu.Unlock()

	if s == search.StateCompleted && c.deps.Store != nil {
		c.deps.Store.RequestChan <- store.Request{Op: store.AddSearchHistory, Query: query}
	}
	emit(fn, snap)
}

// expandPathLocked normalizes typed input: ~ expansion, relative paths
// joined against the current directory, and Clean on the result.
func (c *Controller) expandPathLocked(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return c.currentOrHomeLocked()
	}

	if strings.HasPrefix(input, "~") {
		if input == "~" {
			return c.deps.HomePath
		}
		if strings.HasPrefix(input, "~/") || strings.HasPrefix(input, "~\\") {
			return filepath.Clean(filepath.Join(c.deps.HomePath, input[2:]))
		}
	}

	if filepath.IsAbs(input) {
		return filepath.Clean(input)
	}

	return filepath.Clean(filepath.Join(c.currentOrHomeLocked(), input))
}

func (c *Controller) currentOrHomeLocked() string {
	if p := c.stack.CurrentPath(); p != "" {
		return p
	}
	return c.deps.HomePath
}

func (c *Controller) snapshotLocked() (Snapshot, func(Snapshot)) {
	cols := c.stack.Columns()
	views := make([]ColumnView, len(cols))
	for i, col := range cols {
		entries := make([]fs.Entry, len(col.Entries))
		copy(entries, col.Entries)
		views[i] = ColumnView{
			Path:          col.Path,
			Entries:       entries,
			SelectedIndex: col.SelectedIndex,
			Width:         col.Width,
		}
	}

	results := make([]search.Result, len(c.results))
	copy(results, c.results)

	favs := make([]string, len(c.favorites))
	copy(favs, c.favorites)

	return Snapshot{
		Columns:     views,
		Crumbs:      crumbsFor(c.stack.CurrentPath()),
		CurrentPath: c.stack.CurrentPath(),
		ShowHidden:  c.stack.ShowHidden(),
		Preview:     c.previewLocked(),
		Favorites:   favs,
		SearchState: c.searchState,
		SearchQuery: c.searchQuery,
		LastQuery:   c.lastQuery,
		Results:     results,
		Notice:      c.notice,
	}, c.onUpdate
}

// previewLocked describes the deepest selection for the detail pane.
func (c *Controller) previewLocked() *Preview {
	entry, ok := c.stack.DeepestSelection()
	if !ok {
		return nil
	}
	detail := humanize.Bytes(uint64(entry.Size))
	if entry.IsDir {
		n := c.deps.Gateway.CountChildren(entry.Path)
		if n == 1 {
			detail = "1 item"
		} else {
			detail = fmt.Sprintf("%d items", n)
		}
	}
	return &Preview{Entry: entry, Detail: detail}
}

// crumbsFor splits an absolute path into path bar segments, root first.
func crumbsFor(path string) []Crumb {
	if path == "" {
		return nil
	}
	chain := stack.Ancestors(path)
	crumbs := make([]Crumb, len(chain))
	for i, p := range chain {
		name := filepath.Base(p)
		if p == string(filepath.Separator) {
			name = p
		}
		crumbs[i] = Crumb{Name: name, Path: p}
	}
	return crumbs
}

func emit(fn func(Snapshot), snap Snapshot) {
	if fn != nil {
		fn(snap)
	}
}
