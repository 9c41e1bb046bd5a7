// Package search implements the recursive, debounced, cancellable
// name+content search. One session is active at a time; submitting a new
// query supersedes the previous session entirely.
package search

import (
	"context"
	"fmt"
	iofs "io/fs"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"

	"github.com/colonnade-fm/colonnade/internal/debug"
	"github.com/colonnade-fm/colonnade/internal/fs"
)

// State is the search session state machine:
// Idle -> Debouncing -> Running -> (Completed | Cancelled | Failed).
type State int

const (
	StateIdle State = iota
	StateDebouncing
	StateRunning
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDebouncing:
		return "debouncing"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

const (
	// DefaultDebounce is the quiet period before a submitted query runs.
	DefaultDebounce = 300 * time.Millisecond

	// DefaultMaxContentBytes caps the size of files eligible for content
	// matching. Larger files report ContentNotChecked.
	DefaultMaxContentBytes = 10 * 1024 * 1024
)

// skipDirRoots contains top-level directories excluded from traversal
// (virtual filesystems and boot data produce noise, never documents).
var skipDirRoots = map[string]bool{
	"dev":        true,
	"proc":       true,
	"sys":        true,
	"run":        true,
	"snap":       true,
	"boot":       true,
	"lost+found": true,
}

// shouldSkipPath returns true if the path sits under a skipped root.
func shouldSkipPath(path string) bool {
	if len(path) < 2 || path[0] != '/' {
		return false
	}
	rest := path[1:]
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		rest = rest[:idx]
	}
	return skipDirRoots[rest]
}

// Engine runs search sessions. Results and state transitions stream
// through the handlers; both carry the session generation so consumers
// can drop anything stale. The handlers are invoked from the engine's
// timer and traversal goroutines.
type Engine struct {
	gw *fs.Gateway

	mu       sync.Mutex
	state    State
	timer    *time.Timer
	cancel   context.CancelFunc
	debounce time.Duration
	maxBytes int64

	gen atomic.Int64

	onResult func(gen int64, r Result)
	onState  func(gen int64, s State, err error)
}

func NewEngine(gw *fs.Gateway) *Engine {
	return &Engine{
		gw:       gw,
		state:    StateIdle,
		debounce: DefaultDebounce,
		maxBytes: DefaultMaxContentBytes,
	}
}

// SetHandlers installs the result and state callbacks. Must be called
// before the first Submit.
func (e *Engine) SetHandlers(onResult func(int64, Result), onState func(int64, State, error)) {
	e.onResult = onResult
	e.onState = onState
}

// SetDebounce overrides the debounce interval (tests use short ones).
func (e *Engine) SetDebounce(d time.Duration) {
	e.mu.Lock()
	e.debounce = d
	e.mu.Unlock()
}

// SetMaxContentBytes overrides the content-search size cap.
func (e *Engine) SetMaxContentBytes(n int64) {
	e.mu.Lock()
	e.maxBytes = n
	e.mu.Unlock()
}

// State returns the current session state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Gen returns the current session generation.
func (e *Engine) Gen() int64 { return e.gen.Load() }

// Submit supersedes any in-flight session and arms a fresh debounce
// timer: only the last query issued within the quiet period ever runs.
// Returns the new session generation.
func (e *Engine) Submit(q Query) int64 {
	e.mu.Lock()
	e.stopLocked()
	gen := e.gen.Add(1)
	e.state = StateDebouncing
	d := e.debounce
	e.timer = time.AfterFunc(d, func() { e.run(gen, q) })
	e.mu.Unlock()

	debug.Log(debug.SEARCH, "Submit: gen=%d text=%q root=%q content=%v", gen, q.Text, q.Root, q.SearchContent)
	e.notifyState(gen, StateDebouncing, nil)
	return gen
}

// Cancel stops the debounce timer or the running traversal. No further
// results from the cancelled session are delivered.
func (e *Engine) Cancel() {
	e.mu.Lock()
	wasActive := e.state == StateDebouncing || e.state == StateRunning
	e.stopLocked()
	gen := e.gen.Add(1) // invalidate anything still in flight
	if wasActive {
		e.state = StateCancelled
	}
	e.mu.Unlock()

	if wasActive {
		debug.Log(debug.SEARCH, "Cancel: gen=%d", gen)
		e.notifyState(gen, StateCancelled, nil)
	}
}

// Reset returns the engine to Idle (search cleared).
func (e *Engine) Reset() {
	e.mu.Lock()
	e.stopLocked()
	e.gen.Add(1)
	e.state = StateIdle
	e.mu.Unlock()
}

// stopLocked halts the pending timer and the in-flight traversal.
// Caller holds e.mu.
func (e *Engine) stopLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// run executes one traversal. It is entered from the debounce timer.
func (e *Engine) run(gen int64, q Query) {
	e.mu.Lock()
	if gen != e.gen.Load() {
		e.mu.Unlock()
		return // superseded while the timer was firing
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.state = StateRunning
	maxBytes := e.maxBytes
	e.mu.Unlock()

	defer cancel()
	e.notifyState(gen, StateRunning, nil)

	root, err := e.gw.Stat(q.Root)
	if err != nil || !root.IsDir {
		if err == nil {
			err = fmt.Errorf("not a directory: %s", q.Root)
		}
		debug.Log(debug.SEARCH, "run: gen=%d root unreadable: %v", gen, err)
		e.finish(gen, StateFailed, err)
		return
	}

	needle := strings.ToLower(q.Text)

	// Single worker and lexical ordering keep a run's emission order
	// deterministic for identical filesystem state.
	conf := &fastwalk.Config{
		Follow:     false,
		NumWorkers: 1,
		Sort:       fastwalk.SortLexical,
	}

	var rootErr error
	walkErr := fastwalk.Walk(conf, q.Root, func(path string, d iofs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if path == q.Root {
			if err != nil {
				rootErr = err
				return err
			}
			return nil
		}
		if err != nil {
			// Permission denied, broken symlink: exclude the subtree, keep going
			debug.Log(debug.FS_WALK, "run: skipping %q: %v", path, err)
			return nil
		}
		if shouldSkipPath(path) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		res := Result{
			Path:          path,
			MatchedByName: matchFold(d.Name(), needle),
			Content:       ContentNotChecked,
		}

		if q.SearchContent && d.Type().IsRegular() {
			res.Content = e.matchContent(path, d, needle, maxBytes)
		}

		if !res.MatchedByName && res.Content != ContentMatched {
			return nil
		}

		if entry, serr := e.gw.Stat(path); serr == nil {
			res.Entry = entry
		} else {
			res.Entry = fs.Entry{Name: d.Name(), Path: path, IsDir: d.IsDir()}
		}

		debug.Log(debug.FS_WALK, "run: MATCH %s name=%v content=%s", path, res.MatchedByName, res.Content)
		e.emit(gen, res)
		return nil
	})

	switch {
	case ctx.Err() != nil:
		e.finish(gen, StateCancelled, nil)
	case rootErr != nil:
		e.finish(gen, StateFailed, &fs.PathUnreadableError{Path: q.Root, Err: rootErr})
	case walkErr != nil:
		e.finish(gen, StateFailed, walkErr)
	default:
		e.finish(gen, StateCompleted, nil)
	}
}

// matchContent inspects one regular file. Files over the cap, binary
// files and unreadable files report ContentNotChecked.
func (e *Engine) matchContent(path string, d iofs.DirEntry, needle string, maxBytes int64) ContentMatch {
	info, err := d.Info()
	if err != nil {
		return ContentNotChecked
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return ContentNotChecked
	}
	data, err := e.gw.ReadFile(path, maxBytes)
	if err != nil {
		return ContentNotChecked
	}
	if fs.LooksBinary(data) {
		return ContentNotChecked
	}
	if matchFold(string(data), needle) {
		return ContentMatched
	}
	return ContentNoMatch
}

// emit delivers a result unless the session has been superseded.
func (e *Engine) emit(gen int64, r Result) {
	if gen != e.gen.Load() {
		return
	}
	if e.onResult != nil {
		e.onResult(gen, r)
	}
}

// finish records a terminal state unless the session has been superseded.
func (e *Engine) finish(gen int64, s State, err error) {
	e.mu.Lock()
	if gen != e.gen.Load() {
		e.mu.Unlock()
		return
	}
	e.state = s
	e.cancel = nil
	e.mu.Unlock()

	debug.Log(debug.SEARCH, "finish: gen=%d state=%s err=%v", gen, s, err)
	e.notifyState(gen, s, err)
}

func (e *Engine) notifyState(gen int64, s State, err error) {
	if gen != e.gen.Load() {
		return
	}
	if e.onState != nil {
		e.onState(gen, s, err)
	}
}
