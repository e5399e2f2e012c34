package testutil

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NuranDp/vscode-solution-explorer/pkg/tree"
)

// AssertIDs verifies the nodes' ids are exactly expected, in order.
func AssertIDs(t *testing.T, nodes []*tree.Node, expected ...string) {
	t.Helper()
	if len(nodes) != len(expected) {
		t.Errorf("expected %d nodes, got %d", len(expected), len(nodes))
		return
	}
	for i, n := range nodes {
		if n.ID() != expected[i] {
			t.Errorf("expected id %q at index %d, got %q", expected[i], i, n.ID())
		}
	}
}

// AssertNoDuplicateIDs verifies all node ids in the loaded portions of
// the given roots are unique.
func AssertNoDuplicateIDs(t *testing.T, roots []*tree.Node) {
	t.Helper()
	seen := make(map[string]bool)
	stack := append([]*tree.Node(nil), roots...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n.ID()] {
			t.Errorf("duplicate node id: %s", n.ID())
		}
		seen[n.ID()] = true
		stack = append(stack, n.LoadedChildren()...)
	}
}

// AssertState verifies a node's collapse state.
func AssertState(t *testing.T, n *tree.Node, expected tree.CollapseState) {
	t.Helper()
	if got := n.State(); got != expected {
		t.Errorf("expected node %s state %s, got %s", n.ID(), expected, got)
	}
}

// AssertJSONEqual compares two values after JSON round-tripping.
// Useful for comparing structs that may have different Go representations
// but equivalent JSON forms.
func AssertJSONEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()

	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("failed to marshal expected: %v", err)
	}

	actualJSON, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("failed to marshal actual: %v", err)
	}

	if string(expectedJSON) != string(actualJSON) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual:   %s", expectedJSON, actualJSON)
	}
}

// Traversal helpers

// MaterializeAll loads every reachable node under root and returns the
// ids in depth-first order, root included. Fails the test on any load
// error.
func MaterializeAll(t *testing.T, ctx context.Context, root *tree.Node) []string {
	t.Helper()
	var ids []string
	stack := []*tree.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ids = append(ids, n.ID())
		children, err := n.GetChildren(ctx)
		if err != nil {
			t.Fatalf("failed to load children of %s: %v", n.ID(), err)
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return ids
}

// LoadedIDs returns the ids of the already-loaded portion of root in
// depth-first order without triggering any loads.
func LoadedIDs(root *tree.Node) []string {
	var ids []string
	stack := []*tree.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ids = append(ids, n.ID())
		children := n.LoadedChildren()
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return ids
}

// Golden file helpers

// GoldenFile handles golden file comparisons.
type GoldenFile struct {
	t      *testing.T
	dir    string
	name   string
	update bool
}

// NewGoldenFile creates a golden file helper.
// If GENERATE_GOLDEN env var is set, golden files will be updated.
func NewGoldenFile(t *testing.T, dir, name string) *GoldenFile {
	t.Helper()
	return &GoldenFile{
		t:      t,
		dir:    dir,
		name:   name,
		update: os.Getenv("GENERATE_GOLDEN") != "",
	}
}

// Path returns the full path to the golden file.
func (g *GoldenFile) Path() string {
	return filepath.Join(g.dir, g.name)
}

// Assert compares actual content against the golden file.
// If GENERATE_GOLDEN is set, updates the golden file instead.
func (g *GoldenFile) Assert(actual string) {
	g.t.Helper()

	path := g.Path()

	if g.update {
		// Update golden file
		if err := os.MkdirAll(g.dir, 0755); err != nil {
			g.t.Fatalf("failed to create golden dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(actual), 0644); err != nil {
			g.t.Fatalf("failed to write golden file: %v", err)
		}
		g.t.Logf("updated golden file: %s", path)
		return
	}

	// Compare against golden file
	expected, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			g.t.Fatalf("golden file does not exist: %s\nRun with GENERATE_GOLDEN=1 to create it", path)
		}
		g.t.Fatalf("failed to read golden file: %v", err)
	}

	if string(expected) != actual {
		// Find first difference for helpful error message
		expectedLines := strings.Split(string(expected), "\n")
		actualLines := strings.Split(actual, "\n")

		for i := 0; i < len(expectedLines) || i < len(actualLines); i++ {
			var expLine, actLine string
			if i < len(expectedLines) {
				expLine = expectedLines[i]
			}
			if i < len(actualLines) {
				actLine = actualLines[i]
			}
			if expLine != actLine {
				g.t.Errorf("golden file mismatch at line %d:\nexpected: %s\nactual:   %s\n\nFull diff (expected vs actual):\n%s\nvs\n%s",
					i+1, expLine, actLine, string(expected), actual)
				return
			}
		}
		g.t.Errorf("golden file mismatch (length differs)")
	}
}

// AssertJSON compares actual value as JSON against the golden file.
func (g *GoldenFile) AssertJSON(actual interface{}) {
	g.t.Helper()

	data, err := json.MarshalIndent(actual, "", "  ")
	if err != nil {
		g.t.Fatalf("failed to marshal actual value: %v", err)
	}

	g.Assert(string(data))
}

// TempDir helpers

// WriteWorkspaceTree materializes files under dir. Keys are relative
// paths; a key ending in "/" creates an empty directory. Parent
// directories are created as needed.
func WriteWorkspaceTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if strings.HasSuffix(rel, "/") {
			if err := os.MkdirAll(path, 0755); err != nil {
				t.Fatalf("failed to create directory %s: %v", rel, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", rel, err)
		}
	}
}

// TempSolutionDir creates a temporary directory holding a small
// realistic solution layout and returns the directory and the solution
// file path. The directory is cleaned up after the test.
func TempSolutionDir(t *testing.T) (dir, slnPath string) {
	t.Helper()

	dir = t.TempDir()
	WriteWorkspaceTree(t, dir, map[string]string{
		"app.sln":                 "Microsoft Visual Studio Solution File, Format Version 12.00\n",
		"src/app/app.csproj":      "<Project Sdk=\"Microsoft.NET.Sdk\"></Project>\n",
		"src/app/main.cs":         "class Program { static void Main() {} }\n",
		"src/lib/lib.csproj":      "<Project Sdk=\"Microsoft.NET.Sdk\"></Project>\n",
		"src/lib/util.cs":         "static class Util {}\n",
		"tests/tests.csproj":      "<Project Sdk=\"Microsoft.NET.Sdk\"></Project>\n",
		"tests/app_test.cs":       "class AppTest {}\n",
		"bin/Debug/app.dll":       "",
		"obj/project.assets.json": "{}\n",
	})
	return dir, filepath.Join(dir, "app.sln")
}
