package eta

import (
	"math"
	"time"
)

const (
	// BaseSpeedMps is the nominal free-flow speed (50 km/h).
	BaseSpeedMps = 13.89
	// MinSpeedFactor keeps the adjusted speed strictly positive.
	MinSpeedFactor = 0.05
)

// AdjustedSpeed applies the traffic factor to the nominal speed.
func AdjustedSpeed(factor float64) float64 {
	if math.IsNaN(factor) || factor < MinSpeedFactor {
		factor = MinSpeedFactor
	}
	return BaseSpeedMps * factor
}

// ArrivalAt is the expected arrival when distance meters remain at the
// given speed factor.
func ArrivalAt(now time.Time, distance, factor float64) time.Time {
	if distance < 0 {
		distance = 0
	}
	secs := distance / AdjustedSpeed(factor)
	return now.Add(time.Duration(secs * float64(time.Second)))
}

// DelayMinutes is the whole minutes arrival lies past scheduledEnd, never
// negative. A zero scheduledEnd means no schedule and yields 0.
func DelayMinutes(arrival, scheduledEnd time.Time) int {
	if scheduledEnd.IsZero() {
		return 0
	}
	d := math.Floor(arrival.Sub(scheduledEnd).Minutes())
	if d < 0 {
		return 0
	}
	return int(d)
}
