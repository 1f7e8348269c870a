package cache

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/colthorp/headlines-go/internal/core"
)

// MemoryStore is an in-memory snapshot store for testing.
// Snapshots are held as raw CSV text so Load exercises the same parser as the
// filesystem store.
type MemoryStore struct {
	mu      sync.RWMutex
	exists  bool
	entries map[string]memoryEntry
	loads   int
}

type memoryEntry struct {
	modifiedAt time.Time
	content    string
}

// NewMemoryStore creates an empty in-memory store whose root exists.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		exists:  true,
		entries: make(map[string]memoryEntry),
	}
}

// Root returns a dummy root.
func (s *MemoryStore) Root() string {
	return "memory"
}

// EnsureRoot marks the root as existing.
func (s *MemoryStore) EnsureRoot() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exists = true
	return nil
}

// RemoveRoot simulates a missing storage root (for testing).
func (s *MemoryStore) RemoveRoot() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exists = false
	s.entries = make(map[string]memoryEntry)
}

// List returns all snapshots whose names match the snapshot pattern.
func (s *MemoryStore) List() ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.exists {
		return nil, fmt.Errorf("%w: memory root removed", ErrStorageUnavailable)
	}

	list := make([]Snapshot, 0, len(s.entries))
	for name, entry := range s.entries {
		day, ok := parseSnapshotName(name, core.SnapshotPrefix, core.SnapshotSuffix)
		if !ok {
			continue
		}
		list = append(list, Snapshot{
			Date:       day,
			Name:       name,
			Path:       name,
			ModifiedAt: entry.modifiedAt,
		})
	}
	sortSnapshots(list)
	return list, nil
}

// Latest returns the newest snapshot, or nil.
func (s *MemoryStore) Latest() (*Snapshot, error) {
	list, err := s.List()
	if err != nil {
		return nil, err
	}
	return latestOf(list, nil), nil
}

// ForDate returns the snapshot for day, or nil.
func (s *MemoryStore) ForDate(day time.Time) (*Snapshot, error) {
	list, err := s.List()
	if err != nil {
		return nil, err
	}
	d := core.DateOnly(day)
	return latestOf(list, &d), nil
}

// Load parses the stored CSV text.
func (s *MemoryStore) Load(snap Snapshot) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.exists {
		return nil, fmt.Errorf("%w: memory root removed", ErrStorageUnavailable)
	}
	entry, ok := s.entries[snap.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s vanished", ErrStorageUnavailable, snap.Name)
	}
	s.loads++
	return parseRecords(strings.NewReader(entry.content), snap.Name)
}

// Loads returns how many times Load has been called (for testing).
func (s *MemoryStore) Loads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loads
}

// Seed adds a snapshot for day built from records (for testing).
func (s *MemoryStore) Seed(day time.Time, modifiedAt time.Time, records ...Record) {
	name := core.SnapshotPrefix + core.FormatDate(day) + core.SnapshotSuffix
	s.SeedRaw(name, modifiedAt, recordsToCSV(records))
}

// SeedRaw adds a snapshot under an arbitrary name with raw CSV content (for testing).
func (s *MemoryStore) SeedRaw(name string, modifiedAt time.Time, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exists = true
	s.entries[name] = memoryEntry{modifiedAt: modifiedAt, content: content}
}

// Reset clears all entries (for testing).
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]memoryEntry)
	s.loads = 0
}

func recordsToCSV(records []Record) string {
	columns := []string{"title", "description", "link", "pubDate"}
	seen := map[string]bool{"title": true, "description": true, "link": true, "pubDate": true}
	for _, rec := range records {
		for col := range rec {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
	}
	var buf bytes.Buffer
	if err := writeRecords(&buf, columns, records); err != nil {
		return ""
	}
	return buf.String()
}
