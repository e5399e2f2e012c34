// Package tree implements the solution tree model: lazily loaded nodes,
// the collection of solution roots, and the expansion state that is
// persisted across rebuilds.
//
// Nodes are identified by stable string ids derived from logical
// position (parent id + "/" + label), never by instance identity. A
// rebuild produces fresh instances carrying the same ids, which is what
// lets saved expansion state be replayed onto the new tree.
package tree

import (
	"context"
	"log"
	"sync"

	"github.com/NuranDp/vscode-solution-explorer/pkg/metrics"
)

// Kind classifies a node in the solution tree.
type Kind string

const (
	KindSolution Kind = "solution"
	KindProject  Kind = "project"
	KindFolder   Kind = "folder"
	KindFile     Kind = "file"
)

// CollapseState describes how a node participates in expansion.
type CollapseState int

const (
	// Leaf nodes never have children and render without an expand indicator.
	Leaf CollapseState = iota
	// Collapsed nodes may have children but do not show them.
	Collapsed
	// Expanded nodes show their children.
	Expanded
)

// String returns the lowercase name of the state.
func (s CollapseState) String() string {
	switch s {
	case Leaf:
		return "leaf"
	case Collapsed:
		return "collapsed"
	case Expanded:
		return "expanded"
	default:
		return "unknown"
	}
}

// ChildLoader materializes the children of a node on first access.
// Implementations must be safe for concurrent use: restoration loads
// children of distinct nodes from multiple goroutines.
type ChildLoader interface {
	LoadChildren(ctx context.Context, n *Node) ([]*Node, error)
}

// ChildLoaderFunc adapts a plain function to the ChildLoader interface.
type ChildLoaderFunc func(ctx context.Context, n *Node) ([]*Node, error)

// LoadChildren calls f.
func (f ChildLoaderFunc) LoadChildren(ctx context.Context, n *Node) ([]*Node, error) {
	return f(ctx, n)
}

// Node is one entry in the solution tree. Identity (id, label, kind,
// path) is fixed at construction; collapse state and the child list are
// mutable behind a mutex. The parent pointer is a plain back-reference
// for upward walks and never implies ownership: the owning Collection
// drops whole trees on Reset, it does not detach nodes one by one.
type Node struct {
	id     string
	label  string
	kind   Kind
	path   string
	parent *Node
	loader ChildLoader

	// loadMu serializes loader execution so concurrent GetChildren
	// calls on one node run the loader exactly once. mu guards the
	// fields below and is never held across a load, so accessors stay
	// responsive (and usable from inside a loader) while a load runs.
	loadMu sync.Mutex

	mu       sync.Mutex
	state    CollapseState
	children []*Node
	loaded   bool
}

// NewRoot creates a parentless node with an explicit id. Solution roots
// use their cleaned primary-file path as the id so the id survives a
// rebuild of the same workspace.
func NewRoot(id, label string, kind Kind, path string, state CollapseState, loader ChildLoader) *Node {
	return &Node{
		id:     id,
		label:  label,
		kind:   kind,
		path:   path,
		state:  state,
		loader: loader,
	}
}

// NewChild creates a node under parent. The id is parent.ID() + "/" +
// label: deterministic from logical identity, so an ancestor's id is a
// string prefix of every descendant's id, and ids match across rebuilds
// even though instances never do. Parent must not be nil.
func NewChild(parent *Node, label string, kind Kind, path string, state CollapseState, loader ChildLoader) *Node {
	return &Node{
		id:     parent.id + "/" + label,
		label:  label,
		kind:   kind,
		path:   path,
		parent: parent,
		state:  state,
		loader: loader,
	}
}

// ID returns the stable identity of the node.
func (n *Node) ID() string { return n.id }

// Label returns the display label.
func (n *Node) Label() string { return n.label }

// Kind returns the node kind.
func (n *Node) Kind() Kind { return n.kind }

// Path returns the filesystem path the node represents.
func (n *Node) Path() string { return n.path }

// Parent returns the parent node, nil for roots.
func (n *Node) Parent() *Node { return n.parent }

// State returns the current collapse state.
func (n *Node) State() CollapseState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// SetState toggles between Collapsed and Expanded. Leaf nodes stay
// leaves, and no node becomes a leaf after construction.
func (n *Node) SetState(s CollapseState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == Leaf || s == Leaf {
		return
	}
	n.state = s
}

// GetChildren returns the node's children, running the loader on first
// call and caching the result. Repeated calls return the cache without
// recomputation. A load error is not cached, so a later call retries
// after transient failures. Leaf nodes return nil without consulting
// the loader. The returned slice is shared; callers must not mutate it.
func (n *Node) GetChildren(ctx context.Context) ([]*Node, error) {
	n.loadMu.Lock()
	defer n.loadMu.Unlock()

	n.mu.Lock()
	if n.state == Leaf || n.loader == nil {
		n.mu.Unlock()
		return nil, nil
	}
	if n.loaded {
		children := n.children
		n.mu.Unlock()
		metrics.ChildCache.Hit()
		return children, nil
	}
	n.mu.Unlock()
	metrics.ChildCache.Miss()

	done := metrics.Timer(metrics.ChildLoad)
	children, err := n.loader.LoadChildren(ctx, n)
	done()
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	n.children = children
	n.loaded = true
	n.mu.Unlock()
	return children, nil
}

// Loaded reports whether children have been materialized.
func (n *Node) Loaded() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.loaded
}

// LoadedChildren returns the materialized children, nil if GetChildren
// has never succeeded. Never triggers loading.
func (n *Node) LoadedChildren() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.children
}

// Search returns the first node in depth-first order whose path equals
// target, materializing children along the way. Earlier siblings win
// over later ones even when the match sits deep in their subtree. A
// branch whose children fail to load is logged and skipped. Returns nil
// on a miss or once ctx is cancelled.
func (n *Node) Search(ctx context.Context, target string) *Node {
	defer metrics.Timer(metrics.NodeSearch)()

	stack := []*Node{n}
	for len(stack) > 0 {
		if ctx.Err() != nil {
			return nil
		}
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if cur.path == target {
			return cur
		}
		children, err := cur.GetChildren(ctx)
		if err != nil {
			log.Printf("warning: search skipping children of %s: %v", cur.id, err)
			continue
		}
		// Push in reverse so the first child is popped next.
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return nil
}
