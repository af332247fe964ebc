package metrics

import (
	"errors"
	"time"

	"fleet-eta/internal/eta"
)

// ObserveTick implements eta.Observer.
func (c *Collector) ObserveTick(d time.Duration, speedFactor float64, tracked int) {
	c.Ticks.Inc()
	c.TickDuration.Observe(d.Seconds())
	c.SpeedFactor.Set(speedFactor)
	c.TrackedTrips.Set(float64(tracked))
}

// ObserveCompute implements eta.Observer.
func (c *Collector) ObserveCompute(d time.Duration, err error) {
	c.ComputeDuration.Observe(d.Seconds())
	c.Computations.WithLabelValues(computeResult(err)).Inc()
}

func computeResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, eta.ErrGeocode):
		return "geocode_error"
	case errors.Is(err, eta.ErrUnknownTrip):
		return "unknown_trip"
	default:
		return "error"
	}
}

func (c *Collector) PublishedInc(backend string)  { c.Published.WithLabelValues(backend).Inc() }
func (c *Collector) PublishErrInc(backend string) { c.PublishErrs.WithLabelValues(backend).Inc() }
func (c *Collector) PublishObserve(backend string, d time.Duration) {
	c.PublishDuration.WithLabelValues(backend).Observe(d.Seconds())
}

func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}
