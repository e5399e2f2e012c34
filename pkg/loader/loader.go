// Package loader builds solution trees from the filesystem. The
// factory anchors each root on its solution file; children materialize
// lazily from directory listings as nodes expand, so a root costs one
// stat until somebody opens it.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/NuranDp/vscode-solution-explorer/pkg/tree"
)

// projectExts are the file extensions shown as project leaves.
var projectExts = map[string]bool{
	".csproj": true,
	".fsproj": true,
	".vbproj": true,
}

// Options configure a Factory.
type Options struct {
	// IgnoreDirs lists directory names omitted from listings.
	IgnoreDirs []string
	// ShowHidden includes dot-prefixed entries.
	ShowHidden bool
}

// Factory creates filesystem-backed solution roots.
type Factory struct {
	ignore     map[string]struct{}
	showHidden bool
}

var _ tree.NodeFactory = (*Factory)(nil)

// New creates a factory with the given options.
func New(opts Options) *Factory {
	ignore := make(map[string]struct{}, len(opts.IgnoreDirs))
	for _, name := range opts.IgnoreDirs {
		ignore[name] = struct{}{}
	}
	return &Factory{ignore: ignore, showHidden: opts.ShowHidden}
}

// CreateRoot stats the primary file and returns a collapsed solution
// root for it. The root's id and path are the cleaned primary file
// path; its children are the contents of rootFolder, defaulting to the
// primary file's directory.
func (f *Factory) CreateRoot(ctx context.Context, primaryFile, rootFolder string) (*tree.Node, error) {
	primary := filepath.Clean(primaryFile)
	if _, err := os.Stat(primary); err != nil {
		return nil, fmt.Errorf("solution file: %w", err)
	}
	if rootFolder == "" {
		rootFolder = filepath.Dir(primary)
	}

	label := filepath.Base(primary)
	label = strings.TrimSuffix(label, filepath.Ext(label))
	dl := &dirLoader{
		factory: f,
		rootID:  primary,
		rootDir: filepath.Clean(rootFolder),
	}
	return tree.NewRoot(primary, label, tree.KindSolution, primary, tree.Collapsed, dl), nil
}

// dirLoader lists directories for one root's subtree. The root node's
// path is its solution file, so its listing is redirected to the root
// folder; every folder below lists its own path.
type dirLoader struct {
	factory *Factory
	rootID  string
	rootDir string
}

var _ tree.ChildLoader = (*dirLoader)(nil)

func (l *dirLoader) LoadChildren(ctx context.Context, n *tree.Node) ([]*tree.Node, error) {
	dir := n.Path()
	if n.ID() == l.rootID {
		dir = l.rootDir
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	// Folders before files, case-insensitive within each group.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	children := make([]*tree.Node, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if l.factory.skip(name, entry.IsDir()) {
			continue
		}
		path := filepath.Join(dir, name)
		// The anchor file does not repeat inside its own root.
		if path == l.rootID {
			continue
		}
		if entry.IsDir() {
			children = append(children, tree.NewChild(n, name, tree.KindFolder, path, tree.Collapsed, l))
			continue
		}
		kind := tree.KindFile
		if projectExts[strings.ToLower(filepath.Ext(name))] {
			kind = tree.KindProject
		}
		children = append(children, tree.NewChild(n, name, kind, path, tree.Leaf, nil))
	}
	return children, nil
}

// skip reports whether an entry is filtered out of listings. The
// ignore set applies to directories only; hidden filtering applies to
// everything.
func (f *Factory) skip(name string, isDir bool) bool {
	if !f.showHidden && strings.HasPrefix(name, ".") {
		return true
	}
	if isDir {
		if _, ok := f.ignore[name]; ok {
			return true
		}
	}
	return false
}
