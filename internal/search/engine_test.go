package search

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/colonnade-fm/colonnade/internal/fs"
)

// collector gathers engine callbacks and signals terminal states.
type collector struct {
	mu       sync.Mutex
	results  []Result
	states   []State
	terminal chan State
}

func newCollector() *collector {
	return &collector{terminal: make(chan State, 8)}
}

func (c *collector) onResult(gen int64, r Result) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
}

func (c *collector) onState(gen int64, s State, err error) {
	c.mu.Lock()
	c.states = append(c.states, s)
	c.mu.Unlock()

	switch s {
	case StateCompleted, StateCancelled, StateFailed:
		c.terminal <- s
	}
}

func (c *collector) waitTerminal(t *testing.T) State {
	t.Helper()
	select {
	case s := <-c.terminal:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for terminal search state")
		return StateIdle
	}
}

func (c *collector) paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.results))
	for i, r := range c.results {
		out[i] = r.Path
	}
	return out
}

func (c *collector) find(path string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.results {
		if r.Path == path {
			return r, true
		}
	}
	return Result{}, false
}

func buildSearchTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	if err := os.MkdirAll(filepath.Join(root, "inbox", "archive"), 0o755); err != nil {
		t.Fatal(err)
	}

	files := map[string]string{
		"report.txt":               "quarterly invoice total: 42",
		"inbox/invoice-march.pdf":  "binary-ish",
		"inbox/archive/old.txt":    "nothing of interest",
		"inbox/archive/totals.csv": "invoice,total\n1,2",
	}
	for f, content := range files {
		if err := os.WriteFile(filepath.Join(root, f), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func newTestEngine(c *collector) *Engine {
	e := NewEngine(fs.NewGateway())
	e.SetDebounce(10 * time.Millisecond)
	e.SetHandlers(c.onResult, c.onState)
	return e
}

func TestNameSearchRecursive(t *testing.T) {
	root := buildSearchTree(t)
	c := newCollector()
	e := newTestEngine(c)

	e.Submit(Query{Text: "invoice", Root: root})

	if s := c.waitTerminal(t); s != StateCompleted {
		t.Fatalf("terminal state = %s, want completed", s)
	}

	want := map[string]bool{
		filepath.Join(root, "inbox", "invoice-march.pdf"): true,
	}
	for _, p := range c.paths() {
		if !want[p] {
			t.Errorf("unexpected result %q", p)
		}
		delete(want, p)
	}
	for p := range want {
		t.Errorf("missing result %q", p)
	}

	r, ok := c.find(filepath.Join(root, "inbox", "invoice-march.pdf"))
	if !ok {
		t.Fatal("invoice-march.pdf not found")
	}
	if !r.MatchedByName {
		t.Error("expected a name match")
	}
	if r.Content != ContentNotChecked {
		t.Errorf("content = %s, want not-checked without content search", r.Content)
	}
}

func TestContentSearch(t *testing.T) {
	root := buildSearchTree(t)
	c := newCollector()
	e := newTestEngine(c)

	e.Submit(Query{Text: "invoice total", Root: root, SearchContent: true})

	if s := c.waitTerminal(t); s != StateCompleted {
		t.Fatalf("terminal state = %s, want completed", s)
	}

	// report.txt matches only by content, never by name
	r, ok := c.find(filepath.Join(root, "report.txt"))
	if !ok {
		t.Fatal("report.txt not in results")
	}
	if r.MatchedByName {
		t.Error("report.txt should not match by name")
	}
	if r.Content != ContentMatched {
		t.Errorf("content = %s, want matched", r.Content)
	}
	if !r.MatchedByContent() {
		t.Error("MatchedByContent should be true")
	}
}

func TestContentSearchSizeCap(t *testing.T) {
	root := t.TempDir()
	big := filepath.Join(root, "invoice-big.txt")
	if err := os.WriteFile(big, []byte("invoice invoice invoice"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := newCollector()
	e := newTestEngine(c)
	e.SetMaxContentBytes(4)

	e.Submit(Query{Text: "invoice", Root: root, SearchContent: true})

	if s := c.waitTerminal(t); s != StateCompleted {
		t.Fatalf("terminal state = %s, want completed", s)
	}

	// Still found by name; content skipped because the file is over the cap
	r, ok := c.find(big)
	if !ok {
		t.Fatal("invoice-big.txt not in results")
	}
	if !r.MatchedByName {
		t.Error("expected a name match")
	}
	if r.Content != ContentNotChecked {
		t.Errorf("content = %s, want not-checked for oversized file", r.Content)
	}
}

func TestContentSearchSkipsBinary(t *testing.T) {
	root := t.TempDir()
	bin := filepath.Join(root, "blob.dat")
	if err := os.WriteFile(bin, []byte("invoice\x00invoice"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := newCollector()
	e := newTestEngine(c)

	e.Submit(Query{Text: "invoice", Root: root, SearchContent: true})

	if s := c.waitTerminal(t); s != StateCompleted {
		t.Fatalf("terminal state = %s, want completed", s)
	}

	r, ok := c.find(bin)
	if !ok {
		t.Fatal("blob.dat should still match by name")
	}
	if r.Content != ContentNotChecked {
		t.Errorf("content = %s, want not-checked for binary file", r.Content)
	}
}

func TestDebounceSupersedes(t *testing.T) {
	root := buildSearchTree(t)
	c := newCollector()
	e := newTestEngine(c)
	e.SetDebounce(60 * time.Millisecond)

	// Three keystrokes inside one debounce window: only the last runs
	e.Submit(Query{Text: "i", Root: root})
	e.Submit(Query{Text: "in", Root: root})
	lastGen := e.Submit(Query{Text: "invoice", Root: root})

	if s := c.waitTerminal(t); s != StateCompleted {
		t.Fatalf("terminal state = %s, want completed", s)
	}

	if e.Gen() != lastGen {
		t.Errorf("generation advanced past the last submit: %d != %d", e.Gen(), lastGen)
	}

	// "i" and "in" would match old.txt and totals.csv too; only the
	// "invoice" result set may be delivered
	for _, p := range c.paths() {
		if filepath.Base(p) == "old.txt" {
			t.Errorf("superseded query leaked result %q", p)
		}
	}

	c.mu.Lock()
	sawRunning := 0
	for _, s := range c.states {
		if s == StateRunning {
			sawRunning++
		}
	}
	c.mu.Unlock()
	if sawRunning != 1 {
		t.Errorf("expected exactly 1 running session, saw %d", sawRunning)
	}
}

func TestCancelDuringDebounce(t *testing.T) {
	root := buildSearchTree(t)
	c := newCollector()
	e := newTestEngine(c)
	e.SetDebounce(time.Hour) // Never fires unless cancel is broken

	e.Submit(Query{Text: "invoice", Root: root})
	if s := e.State(); s != StateDebouncing {
		t.Fatalf("state = %s, want debouncing", s)
	}

	e.Cancel()

	if s := c.waitTerminal(t); s != StateCancelled {
		t.Fatalf("terminal state = %s, want cancelled", s)
	}
	if got := c.paths(); len(got) != 0 {
		t.Errorf("cancelled session delivered %d results", len(got))
	}
	if s := e.State(); s != StateCancelled {
		t.Errorf("state = %s, want cancelled", s)
	}
}

func TestCancelWhileRunning(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 20; i++ {
		name := filepath.Join(root, "invoice-"+string(rune('a'+i))+".txt")
		if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	// The first delivered result parks the traversal goroutine until
	// released, guaranteeing Cancel lands while the run is active.
	firstResult := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var delivered []string
	cancelled := false
	terminal := make(chan State, 8)

	e := NewEngine(fs.NewGateway())
	e.SetDebounce(5 * time.Millisecond)
	e.SetHandlers(
		func(gen int64, r Result) {
			mu.Lock()
			if cancelled {
				t.Errorf("result %q delivered after cancel", r.Path)
			}
			first := len(delivered) == 0
			delivered = append(delivered, r.Path)
			mu.Unlock()
			if first {
				close(firstResult)
				<-release
			}
		},
		func(gen int64, s State, err error) {
			switch s {
			case StateCompleted, StateCancelled, StateFailed:
				terminal <- s
			}
		},
	)

	e.Submit(Query{Text: "invoice", Root: root})

	select {
	case <-firstResult:
	case <-time.After(5 * time.Second):
		t.Fatal("traversal never delivered a first result")
	}
	if s := e.State(); s != StateRunning {
		t.Fatalf("state = %s, want running", s)
	}

	mu.Lock()
	cancelled = true
	mu.Unlock()
	e.Cancel()
	close(release)

	select {
	case s := <-terminal:
		if s != StateCancelled {
			t.Fatalf("terminal state = %s, want cancelled", s)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no terminal state after cancel")
	}

	// Give the walker time to misbehave before checking
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	n := len(delivered)
	mu.Unlock()
	if n != 1 {
		t.Errorf("delivered %d results, want only the pre-cancel one", n)
	}
}

func TestCancelIdleIsNoop(t *testing.T) {
	c := newCollector()
	e := newTestEngine(c)

	e.Cancel()

	c.mu.Lock()
	n := len(c.states)
	c.mu.Unlock()
	if n != 0 {
		t.Errorf("idle cancel produced %d state notifications", n)
	}
	if s := e.State(); s != StateIdle {
		t.Errorf("state = %s, want idle", s)
	}
}

func TestSearchMissingRootFails(t *testing.T) {
	c := newCollector()
	e := newTestEngine(c)

	e.Submit(Query{Text: "x", Root: filepath.Join(t.TempDir(), "gone")})

	if s := c.waitTerminal(t); s != StateFailed {
		t.Fatalf("terminal state = %s, want failed", s)
	}
}

func TestReset(t *testing.T) {
	root := buildSearchTree(t)
	c := newCollector()
	e := newTestEngine(c)

	e.Submit(Query{Text: "invoice", Root: root})
	c.waitTerminal(t)

	e.Reset()
	if s := e.State(); s != StateIdle {
		t.Errorf("state after reset = %s, want idle", s)
	}
}

func TestMatchFold(t *testing.T) {
	testCases := []struct {
		s, sub   string
		expected bool
	}{
		{"Invoice.pdf", "invoice", true},
		{"INVOICE.PDF", "invoice", true},
		{"report.txt", "invoice", false},
		{"anything", "", true},
		{"", "x", false},
	}

	for _, tc := range testCases {
		if got := matchFold(tc.s, tc.sub); got != tc.expected {
			t.Errorf("matchFold(%q, %q) = %v, want %v", tc.s, tc.sub, got, tc.expected)
		}
	}
}
