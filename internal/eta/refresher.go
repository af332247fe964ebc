package eta

import (
	"context"
	"log"
	"sync"
	"time"

	"fleet-eta/internal/fleet"
)

// TripSource returns the trips currently worth tracking.
type TripSource func(ctx context.Context, now time.Time) ([]fleet.Trip, error)

// Refresher keeps the trip registry in line with the fleet backend. Trips it
// loaded earlier that are no longer active are handed to onGone.
type Refresher struct {
	source   TripSource
	trips    *TripRegistry
	interval time.Duration
	onGone   func(tripID string)
	now      func() time.Time

	mu   sync.Mutex
	seen map[string]struct{}

	lifeMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRefresher(source TripSource, trips *TripRegistry, interval time.Duration, onGone func(tripID string)) *Refresher {
	return &Refresher{
		source:   source,
		trips:    trips,
		interval: interval,
		onGone:   onGone,
		now:      time.Now,
		seen:     make(map[string]struct{}),
	}
}

// Start launches a background loop that refreshes immediately and then
// every interval. Like Engine, it is stopped again once parent is done.
func (r *Refresher) Start(parent context.Context) {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()
	if r.interval <= 0 || r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	r.cancel, r.done = cancel, done
	go func() {
		defer close(done)
		defer r.loopExited(done)
		if err := r.Refresh(ctx); err != nil {
			log.Printf("refresh active trips error: %v", err)
		}
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.Refresh(ctx); err != nil {
					log.Printf("refresh active trips error: %v", err)
				}
			}
		}
	}()
}

func (r *Refresher) loopExited(done chan struct{}) {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()
	if r.done != done {
		return
	}
	r.cancel()
	r.cancel, r.done = nil, nil
}

func (r *Refresher) Stop() {
	r.lifeMu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.lifeMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *Refresher) Running() bool {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()
	return r.cancel != nil
}

// Refresh loads active trips into the registry once.
func (r *Refresher) Refresh(ctx context.Context) error {
	trips, err := r.source(ctx, r.now())
	if err != nil {
		return err
	}
	current := make(map[string]struct{}, len(trips))
	for _, t := range trips {
		r.trips.Put(t)
		current[t.ID] = struct{}{}
	}

	r.mu.Lock()
	var gone []string
	for id := range r.seen {
		if _, ok := current[id]; !ok {
			gone = append(gone, id)
		}
	}
	r.seen = current
	r.mu.Unlock()

	for _, id := range gone {
		log.Printf("trip %s no longer active", id)
		if r.onGone != nil {
			r.onGone(id)
		} else {
			r.trips.Remove(id)
		}
	}
	return nil
}
