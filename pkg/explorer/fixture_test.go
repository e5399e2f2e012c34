package explorer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/NuranDp/vscode-solution-explorer/pkg/tree"
)

// stubFinder is a Finder over a fixed source list. It counts Sources
// calls so build dedup is observable, and can slow enumeration down so
// callers overlap an in-flight build.
type stubFinder struct {
	mu        sync.Mutex
	sources   []Source
	err       error
	delay     time.Duration
	calls     int
	solutions map[string]bool
}

func (f *stubFinder) Sources() ([]Source, error) {
	f.mu.Lock()
	f.calls++
	err := f.err
	sources := append([]Source(nil), f.sources...)
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return sources, nil
}

func (f *stubFinder) HasWorkspaceRoots() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sources) > 0
}

func (f *stubFinder) IsWorkspaceSolutionFile(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.solutions[path]
}

func (f *stubFinder) sourceCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// revealCall records one Host.Reveal invocation.
type revealCall struct {
	node *tree.Node
	opts RevealOptions
}

// recordHost records every host call. onReveal, when set, runs during
// Reveal so tests can exercise re-entrancy.
type recordHost struct {
	mu        sync.Mutex
	reveals   []revealCall
	notifies  []*tree.Node
	shown     int
	hidden    int
	revealErr error
	onReveal  func(n *tree.Node)
}

func (h *recordHost) Reveal(ctx context.Context, n *tree.Node, opts RevealOptions) error {
	h.mu.Lock()
	h.reveals = append(h.reveals, revealCall{node: n, opts: opts})
	cb := h.onReveal
	err := h.revealErr
	h.mu.Unlock()
	if cb != nil {
		cb(n)
	}
	return err
}

func (h *recordHost) NotifyChanged(n *tree.Node) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notifies = append(h.notifies, n)
}

func (h *recordHost) ShowWorking(string) func() {
	h.mu.Lock()
	h.shown++
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		h.hidden++
		h.mu.Unlock()
	}
}

func (h *recordHost) revealed() []revealCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]revealCall(nil), h.reveals...)
}

func (h *recordHost) notified() []*tree.Node {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*tree.Node(nil), h.notifies...)
}

func (h *recordHost) shownCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shown
}

func (h *recordHost) hiddenCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hidden
}

// fastSession shrinks every session delay to a millisecond. Must run
// before the restorer under test is constructed.
func fastSession(t *testing.T) {
	t.Setenv("SLNX_RESTORE_BATCH_PAUSE_MS", "1")
	t.Setenv("SLNX_RESTORE_REVEAL_DELAY_MS", "1")
	t.Setenv("SLNX_INDICATOR_MIN_MS", "1")
}

// buildCollection materializes roots for the given primary files so
// restorer tests start from a built tree.
func buildCollection(t *testing.T, factory tree.NodeFactory, primaryFiles ...string) *tree.Collection {
	t.Helper()
	c := tree.NewCollection(factory)
	c.BeginBuild()
	for _, file := range primaryFiles {
		if _, err := c.AddRoot(context.Background(), file, ""); err != nil {
			t.Fatalf("adding root %s: %v", file, err)
		}
	}
	return c
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

// findLoaded walks the loaded portion of root for id, failing the test
// on a miss.
func findLoaded(t *testing.T, c *tree.Collection, id string) *tree.Node {
	t.Helper()
	n := c.FindLoadedByID(id)
	if n == nil {
		t.Fatalf("node %s not materialized", id)
	}
	return n
}
