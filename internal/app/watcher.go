package app

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/colonnade-fm/colonnade/internal/debug"
)

// DirectoryWatcher keeps fsnotify watches on the open column directories
// and emits a debounced notification per changed directory.
type DirectoryWatcher struct {
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	watching map[string]bool
	notify   chan string
	done     chan struct{}
	debounce time.Duration
}

// NewDirectoryWatcher creates a directory watcher. A non-positive
// debounce falls back to 200ms.
func NewDirectoryWatcher(debounce time.Duration) (*DirectoryWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	dw := &DirectoryWatcher{
		watcher:  w,
		watching: make(map[string]bool),
		notify:   make(chan string, 10),
		done:     make(chan struct{}),
		debounce: debounce,
	}

	go dw.run()
	return dw, nil
}

// run coalesces rapid event bursts into one notification per directory.
func (dw *DirectoryWatcher) run() {
	lastEvent := make(map[string]time.Time)
	pending := make(map[string]bool)
	ticker := time.NewTicker(dw.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-dw.done:
			return

		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Write) {
				continue
			}

			// Events carry the changed file's path; map it back to the
			// watched directory that contains it
			parent := filepath.Dir(event.Name)
			dw.mu.Lock()
			switch {
			case dw.watching[parent]:
				lastEvent[parent] = time.Now()
				pending[parent] = true
				debug.Log(debug.WATCH, "Event %s on %s (dir %s)", event.Op, event.Name, parent)
			case dw.watching[event.Name]:
				lastEvent[event.Name] = time.Now()
				pending[event.Name] = true
				debug.Log(debug.WATCH, "Event %s on watched dir %s", event.Op, event.Name)
			}
			dw.mu.Unlock()

		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			debug.Log(debug.WATCH, "Watcher error: %v", err)

		case <-ticker.C:
			now := time.Now()
			for dir := range pending {
				if now.Sub(lastEvent[dir]) < dw.debounce {
					continue
				}
				select {
				case dw.notify <- dir:
					debug.Log(debug.WATCH, "Change notification: %s", dir)
				default:
					// Consumer is behind, drop and retry next tick
					continue
				}
				delete(pending, dir)
				delete(lastEvent, dir)
			}
		}
	}
}

// Sync replaces the watch set with exactly the given directories.
func (dw *DirectoryWatcher) Sync(paths []string) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	want := make(map[string]bool, len(paths))
	for _, p := range paths {
		want[p] = true
	}

	for p := range dw.watching {
		if !want[p] {
			dw.watcher.Remove(p)
			delete(dw.watching, p)
			debug.Log(debug.WATCH, "Stopped watching %s", p)
		}
	}
	for p := range want {
		if dw.watching[p] {
			continue
		}
		if err := dw.watcher.Add(p); err != nil {
			debug.Log(debug.WATCH, "Cannot watch %s: %v", p, err)
			continue
		}
		dw.watching[p] = true
		debug.Log(debug.WATCH, "Watching %s", p)
	}
}

// Notify returns the channel carrying changed directory paths.
func (dw *DirectoryWatcher) Notify() <-chan string {
	return dw.notify
}

// Close shuts down the watcher.
func (dw *DirectoryWatcher) Close() error {
	close(dw.done)
	return dw.watcher.Close()
}
