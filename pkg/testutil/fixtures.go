// Package testutil provides test fixtures for solution trees: static
// in-memory child loaders with deterministic layouts, on-disk workspace
// builders, and assertion helpers. All fixtures produce deterministic
// output for reproducible tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NuranDp/vscode-solution-explorer/pkg/tree"
)

// ChildSpec describes one child in a static layout.
type ChildSpec struct {
	Label string
	Kind  tree.Kind
	State tree.CollapseState
	Path  string // defaults to parent path + "/" + Label
}

// Folder is shorthand for a collapsed folder child.
func Folder(label string) ChildSpec {
	return ChildSpec{Label: label, Kind: tree.KindFolder, State: tree.Collapsed}
}

// File is shorthand for a file leaf child.
func File(label string) ChildSpec {
	return ChildSpec{Label: label, Kind: tree.KindFile, State: tree.Leaf}
}

// Project is shorthand for a project leaf child.
func Project(label string) ChildSpec {
	return ChildSpec{Label: label, Kind: tree.KindProject, State: tree.Leaf}
}

// StaticLoader serves a fixed layout keyed by node id, for tests that
// need trees without touching a filesystem. It counts loads per id and
// can be told to fail for specific ids. Safe for concurrent use.
type StaticLoader struct {
	// Delay, when set, is slept on every load. Lets tests force
	// overlapping loads.
	Delay time.Duration

	mu    sync.Mutex
	kids  map[string][]ChildSpec
	fails map[string]error
	loads map[string]int
}

// NewStaticLoader creates a loader over the given layout.
func NewStaticLoader(kids map[string][]ChildSpec) *StaticLoader {
	return &StaticLoader{
		kids:  kids,
		fails: make(map[string]error),
		loads: make(map[string]int),
	}
}

// LoadChildren implements tree.ChildLoader.
func (l *StaticLoader) LoadChildren(ctx context.Context, n *tree.Node) ([]*tree.Node, error) {
	l.mu.Lock()
	l.loads[n.ID()]++
	err := l.fails[n.ID()]
	specs := l.kids[n.ID()]
	delay := l.Delay
	l.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}

	children := make([]*tree.Node, 0, len(specs))
	for _, spec := range specs {
		var loader tree.ChildLoader
		if spec.State != tree.Leaf {
			loader = l
		}
		path := spec.Path
		if path == "" {
			path = n.Path() + "/" + spec.Label
		}
		children = append(children, tree.NewChild(n, spec.Label, spec.Kind, path, spec.State, loader))
	}
	return children, nil
}

// SetFail makes loads for id fail with err; nil clears the failure.
func (l *StaticLoader) SetFail(id string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.fails, id)
		return
	}
	l.fails[id] = err
}

// LoadCount returns how many times id's children were loaded.
func (l *StaticLoader) LoadCount(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads[id]
}

// TotalLoads returns the number of loads across all ids.
func (l *StaticLoader) TotalLoads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0
	for _, n := range l.loads {
		total += n
	}
	return total
}

// Root creates a collapsed solution root with the given id served by l.
func (l *StaticLoader) Root(id string) *tree.Node {
	return tree.NewRoot(id, filepath.Base(id), tree.KindSolution, id, tree.Collapsed, l)
}

// StaticFactory is a tree.NodeFactory over a StaticLoader: the created
// root's id and path are the cleaned primary file. It counts CreateRoot
// calls, which is how tests observe single-flight builds.
type StaticFactory struct {
	Loader *StaticLoader

	mu    sync.Mutex
	fails map[string]error
	calls atomic.Int32
}

// NewStaticFactory creates a factory over loader.
func NewStaticFactory(loader *StaticLoader) *StaticFactory {
	return &StaticFactory{Loader: loader, fails: make(map[string]error)}
}

// CreateRoot implements tree.NodeFactory.
func (f *StaticFactory) CreateRoot(ctx context.Context, primaryFile, rootFolder string) (*tree.Node, error) {
	f.calls.Add(1)
	f.mu.Lock()
	err := f.fails[primaryFile]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Loader.Root(filepath.Clean(primaryFile)), nil
}

// SetFail makes CreateRoot for primaryFile fail with err.
func (f *StaticFactory) SetFail(primaryFile string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fails, primaryFile)
		return
	}
	f.fails[primaryFile] = err
}

// Calls returns how many roots the factory was asked to create.
func (f *StaticFactory) Calls() int {
	return int(f.calls.Load())
}

// Deep returns a layout forming a single chain under root id: root/c0,
// root/c0/c1, ... depth levels in total.
func Deep(root string, depth int) map[string][]ChildSpec {
	kids := make(map[string][]ChildSpec)
	id := root
	for i := 0; i < depth; i++ {
		label := fmt.Sprintf("c%d", i)
		kids[id] = []ChildSpec{Folder(label)}
		id = id + "/" + label
	}
	return kids
}

// Wide returns a layout with width folders under root id, each holding
// a single file.
func Wide(root string, width int) map[string][]ChildSpec {
	kids := make(map[string][]ChildSpec)
	for i := 0; i < width; i++ {
		label := fmt.Sprintf("d%d", i)
		kids[root] = append(kids[root], Folder(label))
		kids[root+"/"+label] = []ChildSpec{File(fmt.Sprintf("f%d.cs", i))}
	}
	return kids
}

// Standard returns a small realistic solution layout under root id.
func Standard(root string) map[string][]ChildSpec {
	return map[string][]ChildSpec{
		root: {
			Folder("src"),
			Folder("tests"),
			File("readme.md"),
		},
		root + "/src": {
			Folder("app"),
			Folder("lib"),
		},
		root + "/src/app": {
			Project("app.csproj"),
			File("main.cs"),
		},
		root + "/src/lib": {
			Project("lib.csproj"),
			File("util.cs"),
		},
		root + "/tests": {
			Project("tests.csproj"),
			File("app_test.cs"),
		},
	}
}
