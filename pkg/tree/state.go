package tree

import (
	"log"
	"sort"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/NuranDp/vscode-solution-explorer/pkg/metrics"
)

// Storage keys for persisted tree state.
const (
	expandedIDsKey   = "tree.expandedIds"
	lastFocusedIDKey = "tree.lastFocusedId"
)

// Store is the key-value persistence surface the expansion state writes
// through. Implementations live in internal/statestore.
type Store interface {
	// Get returns the stored value for key, or def when absent.
	Get(key, def string) string
	// Set stores value under key.
	Set(key, value string) error
}

// ExpansionState tracks which node ids are expanded plus the last
// focused id. Keyed by node id, never instance identity, so the state
// read before a rebuild still applies to the tree built after it.
//
// Loaded once at construction; every mutation persists immediately.
// Persistence failures are logged and swallowed so the tree stays
// usable without a working store.
type ExpansionState struct {
	store Store

	mu          sync.Mutex
	expanded    map[string]struct{}
	lastFocused string
}

// LoadExpansionState reads persisted state from store. A missing entry
// yields the empty state of a first run; a corrupt expanded-id entry is
// logged and treated the same way.
func LoadExpansionState(store Store) *ExpansionState {
	s := &ExpansionState{
		store:    store,
		expanded: make(map[string]struct{}),
	}
	if store == nil {
		return s
	}
	if raw := store.Get(expandedIDsKey, ""); raw != "" {
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			log.Printf("warning: ignoring corrupt expansion state: %v", err)
		} else {
			for _, id := range ids {
				if id != "" {
					s.expanded[id] = struct{}{}
				}
			}
		}
	}
	s.lastFocused = store.Get(lastFocusedIDKey, "")
	return s
}

// MarkExpanded records id as expanded and persists the set.
func (s *ExpansionState) MarkExpanded(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expanded[id]; ok {
		return
	}
	s.expanded[id] = struct{}{}
	s.persistExpandedLocked()
}

// MarkCollapsed removes id from the expanded set and persists it.
func (s *ExpansionState) MarkCollapsed(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expanded[id]; !ok {
		return
	}
	delete(s.expanded, id)
	s.persistExpandedLocked()
}

// SetLastFocused records the focused id and persists it. An empty id
// clears the entry.
func (s *ExpansionState) SetLastFocused(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastFocused == id {
		return
	}
	s.lastFocused = id
	s.persistLocked(lastFocusedIDKey, id)
}

// IsExpanded reports whether id is in the expanded set.
func (s *ExpansionState) IsExpanded(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.expanded[id]
	return ok
}

// HasExpanded reports whether any id is recorded as expanded. The
// restorer uses this as its idle gate: nothing saved, nothing to do.
func (s *ExpansionState) HasExpanded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expanded) > 0
}

// ExpandedIDs returns the expanded ids sorted lexically.
func (s *ExpansionState) ExpandedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedIDsLocked()
}

// LastFocused returns the last focused id, empty if none was saved.
func (s *ExpansionState) LastFocused() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFocused
}

// persistExpandedLocked writes the expanded set as a sorted JSON array.
// Sorting keeps the stored value deterministic; order is irrelevant on
// load, where the array is treated as a set.
func (s *ExpansionState) persistExpandedLocked() {
	ids := s.sortedIDsLocked()
	data, err := json.Marshal(ids)
	if err != nil {
		log.Printf("warning: encoding expansion state: %v", err)
		return
	}
	s.persistLocked(expandedIDsKey, string(data))
}

func (s *ExpansionState) persistLocked(key, value string) {
	if s.store == nil {
		return
	}
	done := metrics.Timer(metrics.StatePersist)
	err := s.store.Set(key, value)
	done()
	if err != nil {
		log.Printf("warning: persisting %s: %v", key, err)
	}
}

func (s *ExpansionState) sortedIDsLocked() []string {
	ids := make([]string, 0, len(s.expanded))
	for id := range s.expanded {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
