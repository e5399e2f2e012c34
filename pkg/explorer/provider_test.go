package explorer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NuranDp/vscode-solution-explorer/internal/statestore"
	"github.com/NuranDp/vscode-solution-explorer/pkg/testutil"
	"github.com/NuranDp/vscode-solution-explorer/pkg/tree"
)

func TestGetChildren_ConcurrentCallersShareOneBuild(t *testing.T) {
	loader := testutil.NewStaticLoader(testutil.Standard("app.sln"))
	factory := testutil.NewStaticFactory(loader)
	finder := &stubFinder{
		sources: []Source{{PrimaryFile: "app.sln", RootFolder: "."}},
		delay:   20 * time.Millisecond,
	}
	p := NewProvider(finder, factory, statestore.NewMemoryStore(), &recordHost{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			roots, err := p.GetChildren(context.Background(), nil)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if len(roots) != 1 {
				t.Errorf("expected 1 root, got %d", len(roots))
			}
		}()
	}
	wg.Wait()

	if got := factory.Calls(); got != 1 {
		t.Errorf("expected 1 root creation, got %d", got)
	}
	if got := finder.sourceCalls(); got != 1 {
		t.Errorf("expected 1 enumeration, got %d", got)
	}

	// Subsequent queries take the built fast path.
	if _, err := p.GetChildren(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := finder.sourceCalls(); got != 1 {
		t.Errorf("expected no re-enumeration after build, got %d", got)
	}
}

func TestGetChildren_BuildSchedulesRestore(t *testing.T) {
	fastSession(t)
	loader := testutil.NewStaticLoader(testutil.Standard("app.sln"))
	factory := testutil.NewStaticFactory(loader)
	finder := &stubFinder{sources: []Source{{PrimaryFile: "app.sln", RootFolder: "."}}}
	store := statestore.NewMemoryStore()
	if err := store.Set("tree.expandedIds", `["app.sln","app.sln/src"]`); err != nil {
		t.Fatal(err)
	}
	if err := store.Set("tree.lastFocusedId", "app.sln/src/app/main.cs"); err != nil {
		t.Fatal(err)
	}
	host := &recordHost{}
	p := NewProvider(finder, factory, store, host)

	roots, err := p.GetChildren(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roots) != 1 {
		t.Fatalf("expected 1 root, got %d", len(roots))
	}

	// Restoration runs behind the returned roots.
	waitFor(t, time.Second, func() bool { return loader.LoadCount("app.sln/src") == 1 }, "saved branch never expanded")
	waitFor(t, time.Second, func() bool { return len(host.revealed()) == 1 }, "focus never revealed")
	if got := host.revealed()[0].node.ID(); got != "app.sln/src/app/main.cs" {
		t.Errorf("expected focus reveal, got %s", got)
	}
}

func TestGetChildren_FinderFaultPropagatesAndRetries(t *testing.T) {
	finder := &stubFinder{err: errors.New("registry unavailable")}
	factory := testutil.NewStaticFactory(testutil.NewStaticLoader(nil))
	p := NewProvider(finder, factory, statestore.NewMemoryStore(), &recordHost{})

	_, err := p.GetChildren(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "enumerating solutions") {
		t.Errorf("expected enumeration error, got: %v", err)
	}
	if p.Collection().Built() {
		t.Error("expected collection to stay unbuilt after a failed build")
	}

	// A failed build is not cached; the next query tries again.
	if _, err := p.GetChildren(context.Background(), nil); err == nil {
		t.Fatal("expected error, got nil")
	}
	if got := finder.sourceCalls(); got != 2 {
		t.Errorf("expected 2 enumerations, got %d", got)
	}
}

func TestGetChildren_BadRootSkipped(t *testing.T) {
	loader := testutil.NewStaticLoader(testutil.Standard("b.sln"))
	factory := testutil.NewStaticFactory(loader)
	factory.SetFail("a.sln", errors.New("parse failure"))
	finder := &stubFinder{sources: []Source{
		{PrimaryFile: "a.sln", RootFolder: "."},
		{PrimaryFile: "b.sln", RootFolder: "."},
	}}
	p := NewProvider(finder, factory, statestore.NewMemoryStore(), &recordHost{})

	roots, err := p.GetChildren(context.Background(), nil)
	if err != nil {
		t.Fatalf("expected bad root to be skipped, got error: %v", err)
	}
	if len(roots) != 1 || roots[0].ID() != "b.sln" {
		t.Errorf("expected surviving root b.sln, got %v", roots)
	}
	if !p.Collection().Built() {
		t.Error("expected collection to be built")
	}
}

func TestGetChildren_NodeQueryDelegatesToNode(t *testing.T) {
	loader := testutil.NewStaticLoader(testutil.Standard("app.sln"))
	factory := testutil.NewStaticFactory(loader)
	finder := &stubFinder{sources: []Source{{PrimaryFile: "app.sln", RootFolder: "."}}}
	p := NewProvider(finder, factory, statestore.NewMemoryStore(), &recordHost{})

	roots, err := p.GetChildren(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	children, err := p.GetChildren(context.Background(), roots[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertIDs(t, children, "app.sln/src", "app.sln/tests", "app.sln/readme.md")
	if got := finder.sourceCalls(); got != 1 {
		t.Errorf("expected node query to bypass the finder, got %d calls", got)
	}
}

func TestParent(t *testing.T) {
	loader := testutil.NewStaticLoader(testutil.Standard("app.sln"))
	factory := testutil.NewStaticFactory(loader)
	finder := &stubFinder{sources: []Source{{PrimaryFile: "app.sln", RootFolder: "."}}}
	p := NewProvider(finder, factory, statestore.NewMemoryStore(), &recordHost{})

	roots, _ := p.GetChildren(context.Background(), nil)
	children, _ := p.GetChildren(context.Background(), roots[0])

	if got := p.Parent(children[0]); got != roots[0] {
		t.Errorf("expected root as parent, got %v", got)
	}
	if got := p.Parent(roots[0]); got != nil {
		t.Errorf("expected nil parent for root, got %v", got)
	}
	if got := p.Parent(nil); got != nil {
		t.Errorf("expected nil parent for nil node, got %v", got)
	}
}

func TestRefresh(t *testing.T) {
	loader := testutil.NewStaticLoader(testutil.Standard("app.sln"))
	factory := testutil.NewStaticFactory(loader)
	finder := &stubFinder{sources: []Source{{PrimaryFile: "app.sln", RootFolder: "."}}}
	host := &recordHost{}
	p := NewProvider(finder, factory, statestore.NewMemoryStore(), host)

	roots, _ := p.GetChildren(context.Background(), nil)

	// Node refresh renotifies without invalidating.
	p.Refresh(roots[0])
	if !p.Collection().Built() {
		t.Error("expected node refresh to keep the collection built")
	}

	// Full refresh invalidates.
	p.Refresh(nil)
	if p.Collection().Built() {
		t.Error("expected full refresh to reset the collection")
	}

	notifies := host.notified()
	if len(notifies) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(notifies))
	}
	if notifies[0] != roots[0] {
		t.Error("expected first notification for the refreshed node")
	}
	if notifies[1] != nil {
		t.Error("expected second notification for the whole tree")
	}
}

func TestSelectByPath(t *testing.T) {
	loader := testutil.NewStaticLoader(testutil.Standard("app.sln"))
	factory := testutil.NewStaticFactory(loader)
	finder := &stubFinder{sources: []Source{{PrimaryFile: "app.sln", RootFolder: "."}}}
	host := &recordHost{}
	p := NewProvider(finder, factory, statestore.NewMemoryStore(), host)

	// Never forces a build.
	p.SelectByPath(context.Background(), "app.sln/src/app/main.cs")
	if got := len(host.revealed()); got != 0 {
		t.Fatalf("expected no reveal before build, got %d", got)
	}
	if p.Collection().Built() {
		t.Fatal("expected selection not to build the tree")
	}

	if _, err := p.GetChildren(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	p.SelectByPath(context.Background(), "app.sln/src/app/main.cs")

	reveals := host.revealed()
	if len(reveals) != 1 {
		t.Fatalf("expected 1 reveal, got %d", len(reveals))
	}
	if got := reveals[0].node.Path(); got != "app.sln/src/app/main.cs" {
		t.Errorf("expected reveal by path, got %s", got)
	}
	if !reveals[0].opts.Select {
		t.Error("expected selection reveal to select")
	}
}

func TestOnSolutionChanged_ResetsTree(t *testing.T) {
	loader := testutil.NewStaticLoader(testutil.Standard("app.sln"))
	factory := testutil.NewStaticFactory(loader)
	finder := &stubFinder{sources: []Source{{PrimaryFile: "app.sln", RootFolder: "."}}}
	p := NewProvider(finder, factory, statestore.NewMemoryStore(), &recordHost{})

	if _, err := p.GetChildren(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	p.OnSolutionChanged()
	if p.Collection().Built() {
		t.Error("expected solution change to reset the collection")
	}
}

func TestOnFileChanged_OnlySolutionFilesReset(t *testing.T) {
	loader := testutil.NewStaticLoader(testutil.Standard("app.sln"))
	factory := testutil.NewStaticFactory(loader)
	finder := &stubFinder{
		sources:   []Source{{PrimaryFile: "app.sln", RootFolder: "."}},
		solutions: map[string]bool{"/ws/app.sln": true},
	}
	p := NewProvider(finder, factory, statestore.NewMemoryStore(), &recordHost{})

	if _, err := p.GetChildren(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	p.OnFileChanged("/ws/src/main.cs")
	if !p.Collection().Built() {
		t.Error("expected ordinary file change to leave the tree alone")
	}

	p.OnFileChanged("/ws/app.sln")
	if p.Collection().Built() {
		t.Error("expected solution file change to reset the tree")
	}
}

func TestOnActiveEditorChanged_FollowsVisibility(t *testing.T) {
	loader := testutil.NewStaticLoader(testutil.Standard("app.sln"))
	factory := testutil.NewStaticFactory(loader)
	finder := &stubFinder{sources: []Source{{PrimaryFile: "app.sln", RootFolder: "."}}}
	host := &recordHost{}
	p := NewProvider(finder, factory, statestore.NewMemoryStore(), host)

	if _, err := p.GetChildren(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	// Visible by default.
	p.OnActiveEditorChanged(context.Background(), "app.sln/src/app/main.cs")
	if got := len(host.revealed()); got != 1 {
		t.Fatalf("expected 1 reveal while visible, got %d", got)
	}

	p.HandleVisibilityChanged(false)
	p.OnActiveEditorChanged(context.Background(), "app.sln/src/app/main.cs")
	if got := len(host.revealed()); got != 1 {
		t.Errorf("expected no reveal while hidden, got %d", got)
	}

	p.HandleVisibilityChanged(true)
	p.OnActiveEditorChanged(context.Background(), "")
	if got := len(host.revealed()); got != 1 {
		t.Errorf("expected no reveal for empty path, got %d", got)
	}
}

func TestHandleExpandCollapse_PersistsState(t *testing.T) {
	loader := testutil.NewStaticLoader(testutil.Standard("app.sln"))
	factory := testutil.NewStaticFactory(loader)
	finder := &stubFinder{sources: []Source{{PrimaryFile: "app.sln", RootFolder: "."}}}
	store := statestore.NewMemoryStore()
	p := NewProvider(finder, factory, store, &recordHost{})

	roots, _ := p.GetChildren(context.Background(), nil)
	root := roots[0]

	p.HandleExpanded(root)
	if got := root.State(); got != tree.Expanded {
		t.Errorf("expected expanded state, got %s", got)
	}
	if got := store.Snapshot()["tree.expandedIds"]; got != `["app.sln"]` {
		t.Errorf("expected persisted expanded set, got %q", got)
	}

	p.HandleCollapsed(root)
	if got := root.State(); got != tree.Collapsed {
		t.Errorf("expected collapsed state, got %s", got)
	}
	if got := store.Snapshot()["tree.expandedIds"]; got != `[]` {
		t.Errorf("expected emptied expanded set, got %q", got)
	}
}

func TestHandleSelectionChanged_SkippedDuringRestoreReveal(t *testing.T) {
	fastSession(t)
	loader := testutil.NewStaticLoader(testutil.Standard("app.sln"))
	factory := testutil.NewStaticFactory(loader)
	finder := &stubFinder{sources: []Source{{PrimaryFile: "app.sln", RootFolder: "."}}}
	store := statestore.NewMemoryStore()
	if err := store.Set("tree.expandedIds", `["app.sln"]`); err != nil {
		t.Fatal(err)
	}
	if err := store.Set("tree.lastFocusedId", "app.sln/src"); err != nil {
		t.Fatal(err)
	}
	host := &recordHost{}
	p := NewProvider(finder, factory, store, host)

	// The host echoes a different selection while the reveal runs; the
	// in-flight restore must not let it clobber the saved focus.
	host.onReveal = func(n *tree.Node) {
		p.HandleSelectionChanged(n.Parent())
	}

	roots, err := p.GetChildren(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, time.Second, func() bool { return len(host.revealed()) == 1 }, "focus never revealed")
	waitFor(t, time.Second, func() bool { return p.Restorer().Phase() == PhaseIdle }, "restorer never settled")

	if got := store.Snapshot()["tree.lastFocusedId"]; got != "app.sln/src" {
		t.Errorf("expected saved focus preserved through reveal, got %q", got)
	}

	// Outside a reveal the selection is recorded normally.
	p.HandleSelectionChanged(roots[0])
	if got := store.Snapshot()["tree.lastFocusedId"]; got != "app.sln" {
		t.Errorf("expected selection recorded, got %q", got)
	}
}
