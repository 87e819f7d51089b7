package eventlog

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// Store provides thread-safe storage of issue histories, partitioned by
// source (one source per hydrated query set).
type Store struct {
	mu     sync.RWMutex
	issues map[string]map[string]IssueHistory
	synced map[string]time.Time
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{
		issues: make(map[string]map[string]IssueHistory),
		synced: make(map[string]time.Time),
	}
}

// Append adds histories to a source. A history replaces any earlier one with
// the same key, so a re-fetched issue carries its latest changelog.
func (s *Store) Append(sourceID string, histories []IssueHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.issues[sourceID]
	if !ok {
		bucket = make(map[string]IssueHistory)
		s.issues[sourceID] = bucket
	}
	for _, h := range histories {
		bucket[h.Key] = h
	}
	s.synced[sourceID] = time.Now()
}

// Histories returns a source's histories ordered by project and issue number.
func (s *Store) Histories(sourceID string) []IssueHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket := s.issues[sourceID]
	out := make([]IssueHistory, 0, len(bucket))
	for _, h := range bucket {
		out = append(out, h)
	}
	slices.SortFunc(out, func(a, b IssueHistory) int { return compareKeys(a.Key, b.Key) })
	return out
}

// Get returns one issue of a source.
func (s *Store) Get(sourceID, key string) (IssueHistory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.issues[sourceID][key]
	return h, ok
}

// Count returns the number of issues in a source.
func (s *Store) Count(sourceID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.issues[sourceID])
}

// LastSync returns when the source was last appended to.
func (s *Store) LastSync(sourceID string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.synced[sourceID]
}

// Clear drops a source.
func (s *Store) Clear(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.issues, sourceID)
	delete(s.synced, sourceID)
}

// compareKeys orders PROJ-9 before PROJ-10.
func compareKeys(a, b string) int {
	pa, na := splitKey(a)
	pb, nb := splitKey(b)
	if c := strings.Compare(pa, pb); c != 0 {
		return c
	}
	if na != nb {
		if len(na) != len(nb) {
			return len(na) - len(nb)
		}
		return strings.Compare(na, nb)
	}
	return strings.Compare(a, b)
}

func splitKey(key string) (string, string) {
	if idx := strings.LastIndexByte(key, '-'); idx >= 0 {
		return key[:idx], strings.TrimLeft(key[idx+1:], "0")
	}
	return key, ""
}
