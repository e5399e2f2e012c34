package explorer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/NuranDp/vscode-solution-explorer/pkg/testutil"
	"github.com/NuranDp/vscode-solution-explorer/pkg/tree"
)

func TestRestore_NothingSavedIsNoSession(t *testing.T) {
	fastSession(t)
	loader := testutil.NewStaticLoader(testutil.Standard("app.sln"))
	c := buildCollection(t, testutil.NewStaticFactory(loader), "app.sln")
	state := tree.LoadExpansionState(nil)
	host := &recordHost{}
	r := NewRestorer(c, state, host)

	done := r.Restore(context.Background())
	select {
	case <-done:
	default:
		t.Fatal("expected an already-closed session channel")
	}

	if loader.TotalLoads() != 0 {
		t.Errorf("expected no loads, got %d", loader.TotalLoads())
	}
	if host.shownCount() != 0 {
		t.Errorf("expected no indicator, got %d shows", host.shownCount())
	}
	if r.Phase() != PhaseIdle {
		t.Errorf("expected idle phase, got %s", r.Phase())
	}
}

func TestRestore_ExpandsOnlySavedNodes(t *testing.T) {
	fastSession(t)
	loader := testutil.NewStaticLoader(testutil.Standard("app.sln"))
	c := buildCollection(t, testutil.NewStaticFactory(loader), "app.sln")
	state := tree.LoadExpansionState(nil)
	state.MarkExpanded("app.sln")
	state.MarkExpanded("app.sln/src")
	r := NewRestorer(c, state, &recordHost{})

	<-r.Restore(context.Background())

	if got := loader.LoadCount("app.sln"); got != 1 {
		t.Errorf("expected root loaded once, got %d", got)
	}
	if got := loader.LoadCount("app.sln/src"); got != 1 {
		t.Errorf("expected src loaded once, got %d", got)
	}
	// Collapsed siblings and grandchildren stay unloaded.
	for _, id := range []string{"app.sln/tests", "app.sln/src/app", "app.sln/src/lib"} {
		if got := loader.LoadCount(id); got != 0 {
			t.Errorf("expected %s untouched, got %d loads", id, got)
		}
	}

	if got := findLoaded(t, c, "app.sln").State(); got != tree.Expanded {
		t.Errorf("expected root expanded, got %s", got)
	}
	if got := findLoaded(t, c, "app.sln/tests").State(); got != tree.Collapsed {
		t.Errorf("expected tests collapsed, got %s", got)
	}
	if r.Phase() != PhaseIdle {
		t.Errorf("expected idle phase after session, got %s", r.Phase())
	}
}

func TestRestore_MidSessionCallJoinsThenRelaunches(t *testing.T) {
	fastSession(t)
	loader := testutil.NewStaticLoader(testutil.Deep("app.sln", 3))
	loader.Delay = 30 * time.Millisecond
	c := buildCollection(t, testutil.NewStaticFactory(loader), "app.sln")
	state := tree.LoadExpansionState(nil)
	for _, id := range []string{"app.sln", "app.sln/c0", "app.sln/c0/c1"} {
		state.MarkExpanded(id)
	}
	host := &recordHost{}
	r := NewRestorer(c, state, host)

	first := r.Restore(context.Background())
	waitFor(t, time.Second, func() bool { return r.Phase() != PhaseIdle }, "session never started")

	second := r.Restore(context.Background())
	if first != second {
		t.Fatal("expected mid-session call to join the active session channel")
	}

	<-first
	// The joined request relaunches a fresh session once the first ends.
	waitFor(t, time.Second, func() bool { return host.shownCount() == 2 }, "pending session never ran")
	waitFor(t, time.Second, func() bool { return r.Phase() == PhaseIdle }, "restorer never settled")
	waitFor(t, time.Second, func() bool { return host.hiddenCount() == 2 }, "indicator never hidden")
}

func TestRestore_FocusExactMatch(t *testing.T) {
	fastSession(t)
	loader := testutil.NewStaticLoader(testutil.Standard("app.sln"))
	c := buildCollection(t, testutil.NewStaticFactory(loader), "app.sln")
	state := tree.LoadExpansionState(nil)
	state.MarkExpanded("app.sln")
	state.SetLastFocused("app.sln/src/app/main.cs")
	host := &recordHost{}
	r := NewRestorer(c, state, host)

	<-r.Restore(context.Background())

	reveals := host.revealed()
	if len(reveals) != 1 {
		t.Fatalf("expected 1 reveal, got %d", len(reveals))
	}
	if got := reveals[0].node.ID(); got != "app.sln/src/app/main.cs" {
		t.Errorf("expected focus on saved id, got %s", got)
	}
	if reveals[0].opts.Select {
		t.Error("expected focus restore to reveal without selecting")
	}
	if !reveals[0].opts.Focus {
		t.Error("expected focus restore to ask for cursor focus")
	}
	// The focus walk materializes its own path even past the saved set.
	if got := loader.LoadCount("app.sln/src/app"); got != 1 {
		t.Errorf("expected focus path materialized, got %d loads", got)
	}
}

func TestRestore_FocusFallsBackToClosestAncestor(t *testing.T) {
	fastSession(t)
	loader := testutil.NewStaticLoader(testutil.Standard("app.sln"))
	c := buildCollection(t, testutil.NewStaticFactory(loader), "app.sln")
	state := tree.LoadExpansionState(nil)
	state.MarkExpanded("app.sln")
	state.SetLastFocused("app.sln/src/app/gone.cs")
	host := &recordHost{}
	r := NewRestorer(c, state, host)

	<-r.Restore(context.Background())

	reveals := host.revealed()
	if len(reveals) != 1 {
		t.Fatalf("expected 1 reveal, got %d", len(reveals))
	}
	if got := reveals[0].node.ID(); got != "app.sln/src/app" {
		t.Errorf("expected deepest surviving ancestor, got %s", got)
	}
}

func TestRestore_FocusWithNoAncestorRevealsNothing(t *testing.T) {
	fastSession(t)
	loader := testutil.NewStaticLoader(testutil.Standard("app.sln"))
	c := buildCollection(t, testutil.NewStaticFactory(loader), "app.sln")
	state := tree.LoadExpansionState(nil)
	state.MarkExpanded("app.sln")
	state.SetLastFocused("other.sln/src/main.cs")
	host := &recordHost{}
	r := NewRestorer(c, state, host)

	<-r.Restore(context.Background())

	if got := len(host.revealed()); got != 0 {
		t.Errorf("expected no reveal, got %d", got)
	}
}

func TestRestore_DepthCapStopsExpansion(t *testing.T) {
	fastSession(t)
	t.Setenv("SLNX_RESTORE_MAX_DEPTH", "2")
	loader := testutil.NewStaticLoader(testutil.Deep("app.sln", 6))
	c := buildCollection(t, testutil.NewStaticFactory(loader), "app.sln")
	state := tree.LoadExpansionState(nil)
	id := "app.sln"
	state.MarkExpanded(id)
	for i := 0; i < 6; i++ {
		id = fmt.Sprintf("%s/c%d", id, i)
		state.MarkExpanded(id)
	}
	r := NewRestorer(c, state, &recordHost{})

	<-r.Restore(context.Background())

	if got := loader.LoadCount("app.sln"); got != 1 {
		t.Errorf("expected level 0 loaded, got %d", got)
	}
	if got := loader.LoadCount("app.sln/c0"); got != 1 {
		t.Errorf("expected level 1 loaded, got %d", got)
	}
	if got := loader.LoadCount("app.sln/c0/c1"); got != 0 {
		t.Errorf("expected level 2 beyond the cap, got %d loads", got)
	}
}

func TestRestore_FailedBranchDoesNotAbortSession(t *testing.T) {
	fastSession(t)
	loader := testutil.NewStaticLoader(testutil.Standard("app.sln"))
	loader.SetFail("app.sln/src", errors.New("io error"))
	c := buildCollection(t, testutil.NewStaticFactory(loader), "app.sln")
	state := tree.LoadExpansionState(nil)
	state.MarkExpanded("app.sln")
	state.MarkExpanded("app.sln/src")
	state.MarkExpanded("app.sln/tests")
	r := NewRestorer(c, state, &recordHost{})

	<-r.Restore(context.Background())

	if got := loader.LoadCount("app.sln/tests"); got != 1 {
		t.Errorf("expected sibling branch restored, got %d loads", got)
	}
	src := findLoaded(t, c, "app.sln/src")
	if got := src.State(); got != tree.Expanded {
		t.Errorf("expected failed branch still marked expanded, got %s", got)
	}
	if src.Loaded() {
		t.Error("expected failed branch to stay unloaded")
	}
}

func TestRestore_ResetMidSessionStillCompletes(t *testing.T) {
	fastSession(t)
	loader := testutil.NewStaticLoader(testutil.Deep("app.sln", 3))
	loader.Delay = 30 * time.Millisecond
	c := buildCollection(t, testutil.NewStaticFactory(loader), "app.sln")
	state := tree.LoadExpansionState(nil)
	for _, id := range []string{"app.sln", "app.sln/c0", "app.sln/c0/c1"} {
		state.MarkExpanded(id)
	}
	r := NewRestorer(c, state, &recordHost{})

	done := r.Restore(context.Background())
	waitFor(t, time.Second, func() bool { return r.Phase() != PhaseIdle }, "session never started")
	c.Reset()
	<-done

	if c.Built() {
		t.Error("expected collection to stay reset")
	}
	// The session kept working its snapshot of the old roots.
	if got := loader.LoadCount("app.sln/c0/c1"); got != 1 {
		t.Errorf("expected snapshot branch fully expanded, got %d loads", got)
	}
	waitFor(t, time.Second, func() bool { return r.Phase() == PhaseIdle }, "restorer never settled")
}

func TestRestore_CancelledContextLoadsNothing(t *testing.T) {
	fastSession(t)
	loader := testutil.NewStaticLoader(testutil.Standard("app.sln"))
	c := buildCollection(t, testutil.NewStaticFactory(loader), "app.sln")
	state := tree.LoadExpansionState(nil)
	state.MarkExpanded("app.sln")
	r := NewRestorer(c, state, &recordHost{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	<-r.Restore(ctx)

	if got := loader.TotalLoads(); got != 0 {
		t.Errorf("expected no loads under a cancelled context, got %d", got)
	}
}

func TestRestore_IndicatorShownAndHidden(t *testing.T) {
	fastSession(t)
	loader := testutil.NewStaticLoader(testutil.Standard("app.sln"))
	c := buildCollection(t, testutil.NewStaticFactory(loader), "app.sln")
	state := tree.LoadExpansionState(nil)
	state.MarkExpanded("app.sln")
	host := &recordHost{}
	r := NewRestorer(c, state, host)

	<-r.Restore(context.Background())

	if got := host.shownCount(); got != 1 {
		t.Errorf("expected indicator shown once, got %d", got)
	}
	waitFor(t, time.Second, func() bool { return host.hiddenCount() == 1 }, "indicator never hidden")
}
