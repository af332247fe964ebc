package eta

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-eta/internal/fleet"
)

func TestStore_SetGetRemove(t *testing.T) {
	s := NewStore()
	_, ok := s.Get("a")
	assert.False(t, ok)

	now := time.Now()
	stored := s.Set("a", fleet.ETARecord{DelayMinutes: 3, RemainingDistance: 10, LastUpdated: now})
	assert.Equal(t, "a", stored.TripID)

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, stored, got)

	s.Set("a", fleet.ETARecord{DelayMinutes: 4, LastUpdated: now.Add(time.Second)})
	assert.Equal(t, 1, s.Len())
	got, _ = s.Get("a")
	assert.Equal(t, 4, got.DelayMinutes)

	assert.True(t, s.Remove("a"))
	assert.False(t, s.Remove("a"))
	assert.Equal(t, 0, s.Len())
}

func TestStore_Invariants(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.Set("a", fleet.ETARecord{LastUpdated: now})

	stored := s.Set("a", fleet.ETARecord{LastUpdated: now.Add(-time.Minute), DelayMinutes: -2, RemainingDistance: -1})
	assert.Equal(t, now, stored.LastUpdated)
	assert.Equal(t, 0, stored.DelayMinutes)
	assert.Equal(t, 0.0, stored.RemainingDistance)
}

func TestStore_KeysAndAll(t *testing.T) {
	s := NewStore()
	for _, id := range []string{"c", "a", "b"} {
		s.Set(id, fleet.ETARecord{})
	}
	assert.Equal(t, []string{"a", "b", "c"}, s.Keys())

	all := s.All()
	assert.Len(t, all, 3)
	delete(all, "a")
	assert.Equal(t, 3, s.Len())
}

func TestStore_ConcurrentWriters(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s.Set("shared", fleet.ETARecord{LastUpdated: time.Now()})
				s.Get("shared")
				s.Keys()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, s.Len())
}

func TestTripRegistry(t *testing.T) {
	r := NewTripRegistry()
	r.Put(fleet.Trip{ID: "t1", EndLocation: "Pier 39"})
	got, ok := r.Trip("t1")
	require.True(t, ok)
	assert.Equal(t, "Pier 39", got.EndLocation)
	assert.Equal(t, 1, r.Len())

	r.Remove("t1")
	_, ok = r.Trip("t1")
	assert.False(t, ok)
}
