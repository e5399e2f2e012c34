package explorer

import (
	"errors"
	"io/fs"
	"log"
	"path/filepath"
	"sort"
	"strings"

	"github.com/NuranDp/vscode-solution-explorer/pkg/config"
)

// Source describes one registered solution: the file that anchors it
// and the folder whose contents become its children.
type Source struct {
	PrimaryFile string
	RootFolder  string
}

// Finder enumerates the solutions of the active workspace.
type Finder interface {
	// Sources returns one descriptor per registered solution. An error
	// is a hard fault of the enumeration itself, not of any single
	// source, and aborts the build pass.
	Sources() ([]Source, error)
	// HasWorkspaceRoots reports whether any workspace folder is open
	// at all.
	HasWorkspaceRoots() bool
	// IsWorkspaceSolutionFile reports whether path refers to a file
	// that defines one of the workspace's solutions.
	IsWorkspaceSolutionFile(path string) bool
}

// ErrNoWorkspace is returned by WorkspaceFinder.Sources when no config
// was supplied at all.
var ErrNoWorkspace = errors.New("explorer: no workspace config")

// WorkspaceFinder is the config-backed Finder. Registered solutions are
// returned in registry order; when none are registered it falls back to
// scanning the configured discovery paths for solution files.
type WorkspaceFinder struct {
	cfg *config.Config
}

var _ Finder = (*WorkspaceFinder)(nil)

// NewWorkspaceFinder creates a finder over cfg.
func NewWorkspaceFinder(cfg *config.Config) *WorkspaceFinder {
	return &WorkspaceFinder{cfg: cfg}
}

// Sources maps registry entries to source descriptors. An entry with no
// explicit root folder defaults to its solution file's directory. With
// an empty registry, discovery scan paths are searched instead.
func (f *WorkspaceFinder) Sources() ([]Source, error) {
	if f.cfg == nil {
		return nil, ErrNoWorkspace
	}
	if len(f.cfg.Solutions) == 0 {
		return f.discover(), nil
	}
	sources := make([]Source, 0, len(f.cfg.Solutions))
	for _, s := range f.cfg.Solutions {
		sources = append(sources, Source{PrimaryFile: s.ResolvedFile(), RootFolder: s.ResolvedRoot()})
	}
	return sources, nil
}

// discover walks each scan path up to the configured depth and returns
// a source per solution file found. Scan failures are logged and skip
// only the affected path.
func (f *WorkspaceFinder) discover() []Source {
	maxDepth := f.cfg.Discovery.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 3
	}

	var sources []Source
	for _, scanPath := range f.cfg.Discovery.ScanPaths {
		base := filepath.Clean(scanPath)
		var found []string
		err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				log.Printf("warning: scanning %s: %v", path, err)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if path == base {
					return nil
				}
				if f.ignoredDir(d.Name()) {
					return fs.SkipDir
				}
				if pathDepth(base, path) >= maxDepth {
					return fs.SkipDir
				}
				return nil
			}
			if isSolutionExt(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			log.Printf("warning: scanning %s: %v", scanPath, err)
			continue
		}
		sort.Strings(found)
		for _, file := range found {
			sources = append(sources, Source{PrimaryFile: file, RootFolder: filepath.Dir(file)})
		}
	}
	return sources
}

func (f *WorkspaceFinder) ignoredDir(name string) bool {
	if !f.cfg.Tree.ShowHidden && strings.HasPrefix(name, ".") {
		return true
	}
	for _, ignored := range f.cfg.Tree.IgnoreDirs {
		if name == ignored {
			return true
		}
	}
	return false
}

// HasWorkspaceRoots reports whether any solution is registered or any
// discovery path is configured.
func (f *WorkspaceFinder) HasWorkspaceRoots() bool {
	if f.cfg == nil {
		return false
	}
	return len(f.cfg.Solutions) > 0 || len(f.cfg.Discovery.ScanPaths) > 0
}

// IsWorkspaceSolutionFile reports whether path is a registered solution
// file, or a solution-format file under a registered root or discovery
// path (which redefines the workspace even before it is registered).
func (f *WorkspaceFinder) IsWorkspaceSolutionFile(path string) bool {
	if f.cfg == nil || path == "" {
		return false
	}
	clean := filepath.Clean(path)
	for _, s := range f.cfg.Solutions {
		if filepath.Clean(s.ResolvedFile()) == clean {
			return true
		}
	}

	if !isSolutionExt(clean) {
		return false
	}
	for _, s := range f.cfg.Solutions {
		if underDir(clean, s.ResolvedRoot()) {
			return true
		}
	}
	for _, scanPath := range f.cfg.Discovery.ScanPaths {
		if underDir(clean, scanPath) {
			return true
		}
	}
	return false
}

func isSolutionExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".sln" || ext == ".slnf"
}

func underDir(path, dir string) bool {
	if dir == "" {
		return false
	}
	return strings.HasPrefix(path, filepath.Clean(dir)+string(filepath.Separator))
}

func pathDepth(base, path string) int {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
