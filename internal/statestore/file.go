package statestore

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/NuranDp/vscode-solution-explorer/pkg/tree"
)

// FileStore persists key-value state as a JSON object in a single
// file. Writes go through a temp file and rename so a crash mid-write
// never corrupts existing state. The file is read lazily on first
// access; a missing file is a normal first run.
type FileStore struct {
	path string

	mu     sync.Mutex
	values map[string]string
	loaded bool
}

var _ tree.Store = (*FileStore)(nil)

// NewFileStore creates a store backed by the JSON file at path. The
// file is not touched until the first Get or Set.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Get returns the stored value for key, or def when absent.
func (s *FileStore) Get(key, def string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()
	if v, ok := s.values[key]; ok {
		return v
	}
	return def
}

// Set stores value under key and rewrites the file.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()
	s.values[key] = value
	return s.flushLocked()
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) loadLocked() {
	if s.loaded {
		return
	}
	s.loaded = true
	s.values = make(map[string]string)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("warning: reading state file %s: %v", s.path, err)
		}
		return
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		log.Printf("warning: ignoring corrupt state file %s: %v", s.path, err)
		s.values = make(map[string]string)
	}
}

func (s *FileStore) flushLocked() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating state directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}
