// Package session holds tab redirect records for the lifetime of the
// browser session. Records survive navigation but not a daemon restart.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/haukened/focusgate/internal/focus/domain"
)

// Record is the original destination of a tab diverted to the interstitial.
type Record struct {
	TabID    domain.TabID
	URL      string
	StoredAt time.Time
}

// Store is an in-memory implementation of tabs.RecordStore.
// At most one record exists per tab; Set overwrites.
type Store struct {
	mu      sync.RWMutex
	records map[domain.TabID]Record
	now     func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		records: make(map[domain.TabID]Record),
		now:     time.Now,
	}
}

// Get returns the stored original URL for tab.
func (s *Store) Get(tab domain.TabID) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[tab]
	return r.URL, ok
}

// Set stores url as the original destination of tab, replacing any prior value.
func (s *Store) Set(tab domain.TabID, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[tab] = Record{TabID: tab, URL: url, StoredAt: s.now()}
}

// Delete removes the record for tab. Deleting a missing record is a no-op.
func (s *Store) Delete(tab domain.TabID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, tab)
}

// Clear removes every record and returns how many were dropped.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.records)
	s.records = make(map[domain.TabID]Record)
	return n
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Records returns a snapshot ordered by tab id.
func (s *Store) Records() []Record {
	s.mu.RLock()
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].TabID < out[j].TabID })
	return out
}
