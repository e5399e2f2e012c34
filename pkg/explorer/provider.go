package explorer

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/NuranDp/vscode-solution-explorer/pkg/debug"
	"github.com/NuranDp/vscode-solution-explorer/pkg/metrics"
	"github.com/NuranDp/vscode-solution-explorer/pkg/tree"
)

// Provider owns the collection and the restorer and exposes the
// host-facing query surface: children-of, parent-of, select, refresh.
// It reacts to change events by invalidating the collection, and it
// funnels the host's expand/collapse/selection callbacks into the
// persisted expansion state.
type Provider struct {
	collection *tree.Collection
	state      *tree.ExpansionState
	restorer   *Restorer
	finder     Finder
	host       Host

	build   singleflight.Group
	visible atomic.Bool
}

// NewProvider wires a provider from its collaborators. A nil host runs
// headless (reveals and indicators are dropped).
func NewProvider(finder Finder, factory tree.NodeFactory, store tree.Store, host Host) *Provider {
	if host == nil {
		host = NopHost{}
	}
	collection := tree.NewCollection(factory)
	state := tree.LoadExpansionState(store)
	p := &Provider{
		collection: collection,
		state:      state,
		restorer:   NewRestorer(collection, state, host),
		finder:     finder,
		host:       host,
	}
	// The view counts as visible until the host says otherwise.
	p.visible.Store(true)
	return p
}

// Collection returns the provider's collection, for headless walks
// (export mode) and tests.
func (p *Provider) Collection() *tree.Collection {
	return p.collection
}

// Restorer returns the provider's restorer.
func (p *Provider) Restorer() *Restorer {
	return p.restorer
}

// GetChildren is the host's children query. With a node it delegates to
// the node's own lazy loader. With nil it returns the solution roots,
// building them first if the collection is unbuilt: concurrent callers
// share a single build pass, and a successful build schedules an
// asynchronous restore session before returning the fresh roots
// immediately, so initial children render without waiting on
// restoration.
func (p *Provider) GetChildren(ctx context.Context, n *tree.Node) ([]*tree.Node, error) {
	if n != nil {
		return n.GetChildren(ctx)
	}
	if p.collection.Built() {
		return p.collection.Roots(), nil
	}

	roots, err, shared := p.build.Do("build", func() (any, error) {
		if p.collection.Built() {
			// Lost the entry race to a flight that just finished.
			return p.collection.Roots(), nil
		}
		if err := p.buildRoots(ctx); err != nil {
			return nil, err
		}
		// Restoration outlives the request that triggered the build.
		p.restorer.Restore(context.WithoutCancel(ctx))
		return p.collection.Roots(), nil
	})
	if err != nil {
		return nil, err
	}
	debug.LogIf(shared, "children query joined an in-flight build")
	return roots.([]*tree.Node), nil
}

// buildRoots runs one build pass. A hard fault from the finder aborts
// and propagates; an individual solution failing to load is logged and
// skipped so one bad root never hides the rest.
func (p *Provider) buildRoots(ctx context.Context) error {
	defer metrics.Timer(metrics.TreeBuild)()

	sources, err := p.finder.Sources()
	if err != nil {
		return fmt.Errorf("enumerating solutions: %w", err)
	}

	p.collection.BeginBuild()
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := p.collection.AddRoot(ctx, src.PrimaryFile, src.RootFolder); err != nil {
			log.Printf("warning: skipping solution %s: %v", src.PrimaryFile, err)
		}
	}
	debug.Log("built %d roots from %d sources", len(p.collection.Roots()), len(sources))
	return nil
}

// Parent is the host's parent-of query.
func (p *Provider) Parent(n *tree.Node) *tree.Node {
	if n == nil {
		return nil
	}
	return n.Parent()
}

// Refresh invalidates and renotifies. With nil the whole collection
// resets, forcing a rebuild on the next children query; with a node
// only that subtree is reported changed.
func (p *Provider) Refresh(n *tree.Node) {
	if n == nil {
		p.collection.Reset()
	}
	p.host.NotifyChanged(n)
}

// SelectByPath reveals the first node whose path matches, with
// selection. A no-op while the collection is unbuilt or empty:
// selection follows the visible tree, it never forces a build.
func (p *Provider) SelectByPath(ctx context.Context, path string) {
	if !p.collection.Built() {
		return
	}
	for _, root := range p.collection.Roots() {
		if node := root.Search(ctx, path); node != nil {
			if err := p.host.Reveal(ctx, node, RevealOptions{Select: true}); err != nil {
				log.Printf("warning: revealing %s: %v", node.ID(), err)
			}
			return
		}
	}
}

// OnSolutionChanged reacts to a change of the workspace's solution set
// with an unconditional full refresh.
func (p *Provider) OnSolutionChanged() {
	debug.Log("solution set changed, resetting tree")
	p.Refresh(nil)
}

// OnFileChanged reacts to a file change on disk. Only changes to files
// that define a workspace solution invalidate the tree; everything else
// is ignored here (row-level updates are the host's business).
func (p *Provider) OnFileChanged(path string) {
	if !p.finder.IsWorkspaceSolutionFile(path) {
		return
	}
	debug.Log("solution file %s changed, resetting tree", path)
	p.Refresh(nil)
}

// OnActiveEditorChanged mirrors the host's active file into the tree
// selection, when the tree is visible.
func (p *Provider) OnActiveEditorChanged(ctx context.Context, path string) {
	if path == "" || !p.visible.Load() {
		return
	}
	p.SelectByPath(ctx, path)
}

// HandleExpanded records a host-side expand of n.
func (p *Provider) HandleExpanded(n *tree.Node) {
	if n == nil {
		return
	}
	n.SetState(tree.Expanded)
	p.state.MarkExpanded(n.ID())
}

// HandleCollapsed records a host-side collapse of n.
func (p *Provider) HandleCollapsed(n *tree.Node) {
	if n == nil {
		return
	}
	n.SetState(tree.Collapsed)
	p.state.MarkCollapsed(n.ID())
}

// HandleSelectionChanged records the focused node for the next restore
// session. Skipped while a restore-driven reveal is in flight, so a
// reveal never re-saves the id it is restoring.
func (p *Provider) HandleSelectionChanged(n *tree.Node) {
	if n == nil || p.restorer.Revealing() {
		return
	}
	p.state.SetLastFocused(n.ID())
}

// HandleVisibilityChanged tracks whether the tree view is on screen.
func (p *Provider) HandleVisibilityChanged(visible bool) {
	p.visible.Store(visible)
}
