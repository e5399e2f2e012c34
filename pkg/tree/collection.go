package tree

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/NuranDp/vscode-solution-explorer/pkg/metrics"
)

// NodeFactory creates solution roots from source descriptors. The
// filesystem-backed implementation lives in pkg/loader.
type NodeFactory interface {
	CreateRoot(ctx context.Context, primaryFile, rootFolder string) (*Node, error)
}

// ErrNoFactory is returned by AddRoot when the collection was built
// without a node factory.
var ErrNoFactory = errors.New("tree: collection has no node factory")

// Collection owns the set of solution roots currently shown.
//
// "Unbuilt" and "built but empty" are distinct states: only an unbuilt
// collection triggers a rebuild; an empty built one simply renders
// empty. Reset returns to unbuilt and drops every node. Instances never
// survive a reset, ids do.
type Collection struct {
	factory NodeFactory

	mu    sync.RWMutex
	roots []*Node
	built bool
}

// NewCollection creates an unbuilt collection using factory for roots.
func NewCollection(factory NodeFactory) *Collection {
	return &Collection{factory: factory}
}

// Built reports whether a build pass has run since the last Reset.
func (c *Collection) Built() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.built
}

// Roots returns a copy of the current solution roots.
func (c *Collection) Roots() []*Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	roots := make([]*Node, len(c.roots))
	copy(roots, c.roots)
	return roots
}

// Reset drops all roots and returns the collection to unbuilt.
// Idempotent, never fails, O(1): dropped nodes are left for the GC.
func (c *Collection) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roots = nil
	c.built = false
}

// BeginBuild marks the collection built and clears any previous roots.
// Callers follow with one AddRoot call per source descriptor; marking
// built up front is what makes "built but empty" representable when
// every AddRoot fails or there are no sources at all.
func (c *Collection) BeginBuild() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roots = nil
	c.built = true
}

// AddRoot creates a solution root via the factory and appends it. A
// factory error leaves the collection unchanged and propagates to the
// caller, who decides whether to skip the root or abort the build.
func (c *Collection) AddRoot(ctx context.Context, primaryFile, rootFolder string) (*Node, error) {
	if c.factory == nil {
		return nil, ErrNoFactory
	}
	root, err := c.factory.CreateRoot(ctx, primaryFile, rootFolder)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.roots = append(c.roots, root)
	c.mu.Unlock()
	return root, nil
}

// FindLoadedByID searches already-materialized nodes only, in
// depth-first order. Never triggers lazy loading; a miss is expected
// and returns nil.
func (c *Collection) FindLoadedByID(id string) *Node {
	for _, root := range c.Roots() {
		stack := []*Node{root}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if cur.ID() == id {
				return cur
			}
			children := cur.LoadedChildren()
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i])
			}
		}
	}
	return nil
}

// FindAndExpandByID searches depth-first, materializing children as it
// descends so nodes the host has not realized yet can still be found.
// Every visited id is recorded in visitation order and returned for
// diagnostics alongside the match (nil on a miss). A branch whose
// children fail to load is logged and skipped. Worst case touches the
// whole tree, which is acceptable for its once-per-restore usage.
func (c *Collection) FindAndExpandByID(ctx context.Context, id string) (*Node, []string) {
	var visited []string
	for _, root := range c.Roots() {
		stack := []*Node{root}
		for len(stack) > 0 {
			if ctx.Err() != nil {
				return nil, visited
			}
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			visited = append(visited, cur.ID())
			if cur.ID() == id {
				return cur, visited
			}
			children, err := cur.GetChildren(ctx)
			if err != nil {
				log.Printf("warning: id lookup skipping children of %s: %v", cur.ID(), err)
				continue
			}
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i])
			}
		}
	}
	return nil, visited
}

// FindClosestAncestorByIDPrefix returns the node whose id is the
// longest prefix of id, considering every node in the tree and
// materializing children as it goes. Equal-length candidates resolve
// to the first encountered in depth-first order. Returns nil when no
// node id is a prefix of id. This is the fallback for a saved id whose
// node was deleted or renamed before the restore ran.
func (c *Collection) FindClosestAncestorByIDPrefix(ctx context.Context, id string) *Node {
	defer metrics.Timer(metrics.PrefixScan)()

	var best *Node
	bestLen := -1
	for _, root := range c.Roots() {
		stack := []*Node{root}
		for len(stack) > 0 {
			if ctx.Err() != nil {
				return best
			}
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if cid := cur.ID(); strings.HasPrefix(id, cid) && len(cid) > bestLen {
				best = cur
				bestLen = len(cid)
			}
			children, err := cur.GetChildren(ctx)
			if err != nil {
				log.Printf("warning: prefix scan skipping children of %s: %v", cur.ID(), err)
				continue
			}
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i])
			}
		}
	}
	return best
}
