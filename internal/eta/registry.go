package eta

import (
	"sync"

	"fleet-eta/internal/fleet"
)

// TripRegistry is the in-memory trip lookup consulted by ticks. It never
// blocks on I/O; the Refresher and ComputeETA keep it populated.
type TripRegistry struct {
	mu    sync.RWMutex
	trips map[string]fleet.Trip
}

func NewTripRegistry() *TripRegistry {
	return &TripRegistry{trips: make(map[string]fleet.Trip)}
}

func (r *TripRegistry) Trip(id string) (fleet.Trip, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.trips[id]
	return t, ok
}

func (r *TripRegistry) Put(t fleet.Trip) {
	r.mu.Lock()
	r.trips[t.ID] = t
	r.mu.Unlock()
}

func (r *TripRegistry) Remove(id string) {
	r.mu.Lock()
	delete(r.trips, id)
	r.mu.Unlock()
}

func (r *TripRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.trips)
}
