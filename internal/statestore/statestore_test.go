package statestore

import (
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
)

func TestSQLiteStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "slnx.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}

	if got := s.Get("tree.lastFocusedId", "fallback"); got != "fallback" {
		t.Errorf("expected default for missing key, got %q", got)
	}

	if err := s.Set("tree.lastFocusedId", "app.sln/src"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got := s.Get("tree.lastFocusedId", ""); got != "app.sln/src" {
		t.Errorf("expected stored value, got %q", got)
	}

	// Overwrite through the UPSERT path.
	if err := s.Set("tree.lastFocusedId", "app.sln/docs"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if got := s.Get("tree.lastFocusedId", ""); got != "app.sln/docs" {
		t.Errorf("expected overwritten value, got %q", got)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Values survive reopening.
	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()
	if got := s2.Get("tree.lastFocusedId", ""); got != "app.sln/docs" {
		t.Errorf("expected value to survive reopen, got %q", got)
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "state.json")
	s := NewFileStore(path)

	if got := s.Get("missing", "def"); got != "def" {
		t.Errorf("expected default, got %q", got)
	}

	if err := s.Set("tree.expandedIds", `["a","b"]`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set("tree.lastFocusedId", "a"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// No temp file should linger after a successful write.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("expected temp file to be renamed away")
	}

	// The file on disk is plain JSON.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading state file: %v", err)
	}
	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil {
		t.Fatalf("state file is not valid JSON: %v", err)
	}
	if values["tree.lastFocusedId"] != "a" {
		t.Errorf("expected persisted focus, got %q", values["tree.lastFocusedId"])
	}

	// A fresh store over the same file sees the values.
	s2 := NewFileStore(path)
	if got := s2.Get("tree.expandedIds", ""); got != `["a","b"]` {
		t.Errorf("expected persisted ids, got %q", got)
	}
}

func TestFileStore_CorruptFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewFileStore(path)
	if got := s.Get("anything", "def"); got != "def" {
		t.Errorf("expected default over corrupt file, got %q", got)
	}

	// Writing repairs the file.
	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("Set over corrupt file failed: %v", err)
	}
	if got := NewFileStore(path).Get("k", ""); got != "v" {
		t.Errorf("expected repaired file to hold value, got %q", got)
	}
}

func TestMemoryStore_Basics(t *testing.T) {
	s := NewMemoryStore()

	if got := s.Get("k", "def"); got != "def" {
		t.Errorf("expected default, got %q", got)
	}
	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got := s.Get("k", "def"); got != "v" {
		t.Errorf("expected stored value, got %q", got)
	}

	snap := s.Snapshot()
	if snap["k"] != "v" {
		t.Errorf("expected snapshot to carry value, got %v", snap)
	}
	snap["k"] = "mutated"
	if got := s.Get("k", ""); got != "v" {
		t.Error("snapshot must be a copy, not a view")
	}
}
