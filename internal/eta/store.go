package eta

import (
	"sort"
	"sync"

	"fleet-eta/internal/fleet"
)

// Store holds the latest ETA record per trip id.
type Store struct {
	mu      sync.RWMutex
	records map[string]fleet.ETARecord
}

func NewStore() *Store {
	return &Store{records: make(map[string]fleet.ETARecord)}
}

func (s *Store) Get(tripID string) (fleet.ETARecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[tripID]
	return r, ok
}

// Set inserts or replaces the record for tripID and returns what was stored.
// LastUpdated never moves backwards, and negative delay or distance is
// clamped to zero.
func (s *Store) Set(tripID string, r fleet.ETARecord) fleet.ETARecord {
	r.TripID = tripID
	if r.DelayMinutes < 0 {
		r.DelayMinutes = 0
	}
	if r.RemainingDistance < 0 {
		r.RemainingDistance = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.records[tripID]; ok && r.LastUpdated.Before(prev.LastUpdated) {
		r.LastUpdated = prev.LastUpdated
	}
	s.records[tripID] = r
	return r
}

func (s *Store) Remove(tripID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[tripID]
	delete(s.records, tripID)
	return ok
}

// Keys returns the tracked trip ids in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// All returns a copy of every record.
func (s *Store) All() map[string]fleet.ETARecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]fleet.ETARecord, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
