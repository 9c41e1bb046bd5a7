// Package fs is the only point of filesystem I/O: directory listings,
// stats and bounded file reads used by the column stack and the search
// engine.
package fs

import (
	"bytes"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charlievieth/fastwalk"

	"github.com/colonnade-fm/colonnade/internal/debug"
)

// Kind classifies a directory entry.
type Kind int

const (
	KindFile Kind = iota
	KindDir
	KindSymlink
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindDir:
		return "directory"
	case KindSymlink:
		return "symlink"
	case KindOther:
		return "other"
	default:
		return "file"
	}
}

// Entry is one child of a listed directory. IsDir reflects the resolved
// target, so a symlink pointing at a directory is both KindSymlink and
// IsDir.
type Entry struct {
	Name    string
	Path    string
	Kind    Kind
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// PathUnreadableError reports a directory that could not be listed or a
// file that could not be opened. It is recoverable: callers surface it as
// a notice and keep the rest of their state consistent.
type PathUnreadableError struct {
	Path string
	Err  error
}

func (e *PathUnreadableError) Error() string {
	return fmt.Sprintf("path unreadable: %s: %v", e.Path, e.Err)
}

func (e *PathUnreadableError) Unwrap() error { return e.Err }

// Gateway performs filesystem access. It is stateless; one instance is
// shared by the column stack, the search engine and the controller.
type Gateway struct{}

func NewGateway() *Gateway { return &Gateway{} }

// ListDir returns the direct children of path, directories first, then
// case-insensitive lexicographic. Individual unreadable children are
// skipped; a root that cannot be listed yields *PathUnreadableError.
func (g *Gateway) ListDir(path string) ([]Entry, error) {
	debug.Log(debug.FS, "ListDir: reading %q", path)

	info, err := os.Stat(path)
	if err != nil {
		return nil, &PathUnreadableError{Path: path, Err: err}
	}
	if !info.IsDir() {
		return nil, &PathUnreadableError{Path: path, Err: fmt.Errorf("not a directory")}
	}

	var result []Entry
	var rootErr error

	conf := &fastwalk.Config{
		Follow: true, // Follow symlinks to get target info
	}

	pathLen := len(path)

	err = fastwalk.Walk(conf, path, func(fullPath string, d iofs.DirEntry, err error) error {
		if fullPath == path {
			if err != nil {
				rootErr = err
			}
			return nil
		}
		if err != nil {
			debug.Log(debug.FS_ENTRY, "ListDir: walk error at %q: %v", fullPath, err)
			return nil // Skip errors, continue walking
		}

		// Only process direct children (depth 1)
		relStart := pathLen
		if relStart < len(fullPath) && (fullPath[relStart] == '/' || fullPath[relStart] == '\\') {
			relStart++
		}
		rel := fullPath[relStart:]
		if strings.ContainsAny(rel, "/\\") {
			// Nested entry, skip it but don't recurse into directories
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		entry, ok := g.classify(fullPath, d)
		if !ok {
			return nil
		}

		debug.Log(debug.FS_ENTRY, "ListDir: %q kind=%s isDir=%v size=%d",
			entry.Name, entry.Kind, entry.IsDir, entry.Size)

		result = append(result, entry)

		// Single level only
		if d.IsDir() {
			return fastwalk.SkipDir
		}
		return nil
	})

	if err != nil {
		return nil, &PathUnreadableError{Path: path, Err: err}
	}
	if rootErr != nil {
		return nil, &PathUnreadableError{Path: path, Err: rootErr}
	}

	SortEntries(result)
	debug.Log(debug.FS, "ListDir: returning %d entries for %q", len(result), path)
	return result, nil
}

// classify builds an Entry for a walked path, resolving symlinks where
// possible and falling back to lstat for broken ones.
func (g *Gateway) classify(fullPath string, d iofs.DirEntry) (Entry, bool) {
	kind := KindFile
	if d.Type()&iofs.ModeSymlink != 0 {
		kind = KindSymlink
	}

	info, err := fastwalk.StatDirEntry(fullPath, d)
	if err != nil {
		// Broken symlink or racing delete: lstat still describes the link itself
		info, err = os.Lstat(fullPath)
		if err != nil {
			debug.Log(debug.FS_ENTRY, "classify: skipping %q: stat error: %v", d.Name(), err)
			return Entry{}, false
		}
	}

	isDir := info.IsDir()
	if kind != KindSymlink {
		switch {
		case isDir:
			kind = KindDir
		case info.Mode().IsRegular():
			kind = KindFile
		default:
			kind = KindOther
		}
	}

	return Entry{
		Name:    d.Name(),
		Path:    fullPath,
		Kind:    kind,
		IsDir:   isDir,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, true
}

// Stat returns an Entry for a single path.
func (g *Gateway) Stat(path string) (Entry, error) {
	linfo, err := os.Lstat(path)
	if err != nil {
		return Entry{}, &PathUnreadableError{Path: path, Err: err}
	}

	kind := KindFile
	if linfo.Mode()&os.ModeSymlink != 0 {
		kind = KindSymlink
	}

	info, err := os.Stat(path)
	if err != nil {
		info = linfo // broken symlink
	}

	isDir := info.IsDir()
	if kind != KindSymlink {
		switch {
		case isDir:
			kind = KindDir
		case info.Mode().IsRegular():
			kind = KindFile
		default:
			kind = KindOther
		}
	}

	return Entry{
		Name:    filepath.Base(path),
		Path:    path,
		Kind:    kind,
		IsDir:   isDir,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// CountChildren returns how many direct children a directory has, for
// preview info. Unreadable directories count as zero.
func (g *Gateway) CountChildren(path string) int {
	entries, err := os.ReadDir(path)
	if err != nil {
		return 0
	}
	return len(entries)
}

// ReadFile reads a regular file whole, refusing files larger than max
// bytes so content search never buffers unexpectedly large data.
func (g *Gateway) ReadFile(path string, max int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &PathUnreadableError{Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &PathUnreadableError{Path: path, Err: err}
	}
	if max > 0 && info.Size() > max {
		return nil, fmt.Errorf("file exceeds %d bytes: %s", max, path)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, &PathUnreadableError{Path: path, Err: err}
	}
	return data, nil
}

// sniffLen is how much of a file the binary sniff inspects.
const sniffLen = 512

// LooksBinary reports whether data appears to be binary (best-effort: a
// NUL byte in the first 512 bytes).
func LooksBinary(data []byte) bool {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return bytes.IndexByte(data, 0) >= 0
}

// SortEntries orders entries directories-first, then case-insensitive
// lexicographic by name.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		ni, nj := strings.ToLower(entries[i].Name), strings.ToLower(entries[j].Name)
		if ni == nj {
			return entries[i].Name < entries[j].Name
		}
		return ni < nj
	})
}
