package eta

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"fleet-eta/internal/fleet"
	"fleet-eta/internal/geocode"
	"fleet-eta/internal/traffic"
)

const DefaultInterval = 60 * time.Second

var (
	// ErrGeocode wraps destination lookup failures from ComputeETA.
	ErrGeocode = errors.New("geocode destination")
	// ErrUnknownTrip is returned by HandlePosition when the trip cannot be resolved.
	ErrUnknownTrip = errors.New("unknown trip")
	// ErrTripGone is returned by HandlePosition for trips dropped through Forget.
	ErrTripGone = fmt.Errorf("%w: trip no longer tracked", ErrUnknownTrip)
)

// Sink receives every batch of records written by the engine.
type Sink interface {
	PublishETAs(records []fleet.ETARecord)
}

type Observer interface {
	ObserveTick(d time.Duration, speedFactor float64, tracked int)
	ObserveCompute(d time.Duration, err error)
}

// TripResolver loads a trip the registry does not know yet.
type TripResolver func(ctx context.Context, tripID string) (fleet.Trip, error)

type Options struct {
	Interval time.Duration
	Rand     *rand.Rand
	Now      func() time.Time
	Sink     Sink
	Observer Observer
	Resolve  TripResolver
}

// Engine keeps per-trip ETAs fresh. Every mutation of the traffic model and
// the store goes through mu; geocoding happens before mu is taken.
type Engine struct {
	geocoder geocode.Gateway
	traffic  *traffic.Model
	trips    *TripRegistry
	store    *Store

	interval time.Duration
	rng      *rand.Rand
	now      func() time.Time
	sink     Sink
	obs      Observer
	resolve  TripResolver

	mu   sync.Mutex
	gone map[string]struct{} // forgotten trips, guarded by mu

	// pubMu is taken before mu is released so batches reach the sink in
	// the order they were written to the store.
	pubMu sync.Mutex

	lifeMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewEngine(g geocode.Gateway, tm *traffic.Model, trips *TripRegistry, store *Store, opts Options) *Engine {
	e := &Engine{
		geocoder: g,
		traffic:  tm,
		trips:    trips,
		store:    store,
		interval: opts.Interval,
		rng:      opts.Rand,
		now:      opts.Now,
		sink:     opts.Sink,
		obs:      opts.Observer,
		resolve:  opts.Resolve,
		gone:     make(map[string]struct{}),
	}
	if e.interval <= 0 {
		e.interval = DefaultInterval
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.trips == nil {
		e.trips = NewTripRegistry()
	}
	if e.store == nil {
		e.store = NewStore()
	}
	return e
}

// Start ticks once immediately and then every interval until Stop or ctx
// is done. Calling Start on a running engine does nothing; once the loop has
// exited the engine is stopped and can be started again.
func (e *Engine) Start(ctx context.Context) {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	if e.cancel != nil {
		return
	}
	e.Tick()
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancel, e.done = cancel, done
	go func() {
		defer close(done)
		defer e.loopExited(done)
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.Tick()
			}
		}
	}()
	log.Printf("eta engine started (interval %s)", e.interval)
}

// loopExited resets the lifecycle when a loop ends on its own, i.e. because
// the parent context was cancelled rather than through Stop.
func (e *Engine) loopExited(done chan struct{}) {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	if e.done != done {
		return
	}
	e.cancel()
	e.cancel, e.done = nil, nil
	log.Printf("eta engine stopped: context done")
}

// Stop cancels the schedule and waits for the tick loop to exit. In-flight
// ComputeETA calls are not interrupted.
func (e *Engine) Stop() {
	e.lifeMu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.lifeMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Printf("eta engine stopped")
}

func (e *Engine) Running() bool {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	return e.cancel != nil
}

// Tick advances the traffic model and perturbs every tracked ETA.
func (e *Engine) Tick() {
	start := time.Now()
	e.mu.Lock()
	factor := e.traffic.Tick()
	updated := e.recomputeLocked()
	e.unlockAndPublish(updated)

	if e.obs != nil {
		e.obs.ObserveTick(time.Since(start), factor, len(updated))
	}
}

// RecomputeAll perturbs every tracked ETA without touching the traffic model.
func (e *Engine) RecomputeAll() []fleet.ETARecord {
	e.mu.Lock()
	updated := e.recomputeLocked()
	e.unlockAndPublish(updated)
	return updated
}

// recomputeLocked simulates changing conditions on existing records: the
// arrival drifts by [-180s, +120s], the level is redrawn, and delay follows
// the drifted arrival when the trip schedule is known.
func (e *Engine) recomputeLocked() []fleet.ETARecord {
	now := e.now()
	keys := e.store.Keys()
	updated := make([]fleet.ETARecord, 0, len(keys))
	for _, id := range keys {
		rec, ok := e.store.Get(id)
		if !ok {
			continue
		}
		shift := -180 + e.rng.Float64()*300
		rec.ExpectedArrival = rec.ExpectedArrival.Add(time.Duration(shift * float64(time.Second)))
		rec.TrafficCondition = drawLevel(e.rng)
		if trip, ok := e.trips.Trip(id); ok && trip.HasScheduledEnd() {
			rec.DelayMinutes = DelayMinutes(rec.ExpectedArrival, trip.ScheduledEnd)
		}
		rec.LastUpdated = now
		updated = append(updated, e.store.Set(id, rec))
	}
	return updated
}

func drawLevel(rng *rand.Rand) fleet.TrafficLevel {
	p := rng.Float64()
	switch {
	case p < 0.2:
		return fleet.Light
	case p < 0.7:
		return fleet.Moderate
	default:
		return fleet.Heavy
	}
}

// ComputeETA derives a fresh ETA for trip from the vehicle's location. A
// geocoding failure leaves the store untouched and is returned wrapped in
// ErrGeocode; the caller owns any retry.
func (e *Engine) ComputeETA(ctx context.Context, trip fleet.Trip, vehicle fleet.Coordinate) (fleet.ETARecord, error) {
	return e.observeCompute(ctx, trip, vehicle, false)
}

func (e *Engine) observeCompute(ctx context.Context, trip fleet.Trip, vehicle fleet.Coordinate, fromPosition bool) (fleet.ETARecord, error) {
	start := time.Now()
	rec, err := e.computeETA(ctx, trip, vehicle, fromPosition)
	if e.obs != nil {
		e.obs.ObserveCompute(time.Since(start), err)
	}
	return rec, err
}

// computeETA publishes the new record before returning. Positions for a
// forgotten trip are rejected unless the trip has since been registered
// again.
func (e *Engine) computeETA(ctx context.Context, trip fleet.Trip, vehicle fleet.Coordinate, fromPosition bool) (fleet.ETARecord, error) {
	dest, err := e.geocoder.Geocode(ctx, trip.EndLocation)
	if err != nil {
		return fleet.ETARecord{}, fmt.Errorf("%w for trip %s: %w", ErrGeocode, trip.ID, err)
	}
	if err := ctx.Err(); err != nil {
		return fleet.ETARecord{}, err
	}
	distance := fleet.DistanceMeters(vehicle, dest)

	e.mu.Lock()
	if fromPosition && e.forgottenLocked(trip.ID) {
		e.mu.Unlock()
		return fleet.ETARecord{}, fmt.Errorf("%w: %s", ErrTripGone, trip.ID)
	}
	now := e.now()
	arrival := ArrivalAt(now, distance, e.traffic.SpeedFactor())
	rec := fleet.ETARecord{
		ExpectedArrival:   arrival,
		RemainingDistance: distance,
		TrafficCondition:  e.traffic.LevelAt(dest),
		DelayMinutes:      DelayMinutes(arrival, trip.ScheduledEnd),
		LastUpdated:       now,
	}
	delete(e.gone, trip.ID)
	e.trips.Put(trip)
	rec = e.store.Set(trip.ID, rec)
	e.unlockAndPublish([]fleet.ETARecord{rec})
	return rec, nil
}

func (e *Engine) forgottenLocked(tripID string) bool {
	if _, ok := e.gone[tripID]; !ok {
		return false
	}
	_, registered := e.trips.Trip(tripID)
	return !registered
}

// HandlePosition recomputes the ETA of the trip a vehicle reported for.
// Late positions for a trip dropped through Forget fail with ErrTripGone.
func (e *Engine) HandlePosition(ctx context.Context, pos fleet.Position) (fleet.ETARecord, error) {
	trip, ok := e.trips.Trip(pos.TripID)
	if !ok {
		e.mu.Lock()
		gone := e.forgottenLocked(pos.TripID)
		e.mu.Unlock()
		if gone {
			return fleet.ETARecord{}, fmt.Errorf("%w: %s", ErrTripGone, pos.TripID)
		}
		if e.resolve == nil {
			return fleet.ETARecord{}, fmt.Errorf("%w: %s", ErrUnknownTrip, pos.TripID)
		}
		var err error
		trip, err = e.resolve(ctx, pos.TripID)
		if err != nil {
			return fleet.ETARecord{}, fmt.Errorf("%w: %s: %w", ErrUnknownTrip, pos.TripID, err)
		}
	}
	return e.observeCompute(ctx, trip, pos.Location, true)
}

func (e *Engine) ETA(tripID string) (fleet.ETARecord, bool) { return e.store.Get(tripID) }

func (e *Engine) Snapshot() map[string]fleet.ETARecord { return e.store.All() }

func (e *Engine) SpeedFactor() float64 { return e.traffic.SpeedFactor() }

func (e *Engine) Traffic() *traffic.Model { return e.traffic }

// Forget drops a trip's record and schedule, e.g. once the trip completes.
// Later positions for the trip are ignored until it is registered again.
func (e *Engine) Forget(tripID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.Remove(tripID)
	e.trips.Remove(tripID)
	e.gone[tripID] = struct{}{}
}

// unlockAndPublish releases mu, which the caller holds, and hands recs to
// the sink.
func (e *Engine) unlockAndPublish(recs []fleet.ETARecord) {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()
	e.mu.Unlock()
	if e.sink == nil || len(recs) == 0 {
		return
	}
	e.sink.PublishETAs(recs)
}
