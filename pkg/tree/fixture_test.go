package tree

import (
	"context"
	"sync"
	"time"
)

// kid describes one child in a fixture layout.
type kid struct {
	label string
	kind  Kind
	state CollapseState
	path  string // defaults to parent path + "/" + label
}

// fixture is a ChildLoader serving a static layout keyed by node id.
// It counts loads per id and can be told to fail for specific ids.
type fixture struct {
	mu    sync.Mutex
	kids  map[string][]kid
	fails map[string]error
	loads map[string]int
	delay time.Duration
}

func newFixture(kids map[string][]kid) *fixture {
	return &fixture{
		kids:  kids,
		fails: make(map[string]error),
		loads: make(map[string]int),
	}
}

func (f *fixture) LoadChildren(ctx context.Context, n *Node) ([]*Node, error) {
	f.mu.Lock()
	f.loads[n.ID()]++
	err := f.fails[n.ID()]
	specs := f.kids[n.ID()]
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}

	children := make([]*Node, 0, len(specs))
	for _, k := range specs {
		var loader ChildLoader
		if k.state != Leaf {
			loader = f
		}
		path := k.path
		if path == "" {
			path = n.Path() + "/" + k.label
		}
		children = append(children, NewChild(n, k.label, k.kind, path, k.state, loader))
	}
	return children, nil
}

func (f *fixture) setFail(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fails, id)
		return
	}
	f.fails[id] = err
}

func (f *fixture) loadCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads[id]
}

func solutionRoot(f *fixture) *Node {
	return NewRoot("app.sln", "app", KindSolution, "/ws/app.sln", Collapsed, f)
}
