package fleet

import (
	"fmt"
	"time"
)

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Coordinate) String() string { return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon) }

type Trip struct {
	ID             string
	VehicleID      string
	StartLocation  string    // free-text address
	EndLocation    string    // free-text address
	ScheduledStart time.Time // zero if unknown
	ScheduledEnd   time.Time // zero if unknown
}

// HasScheduledEnd reports whether delay can be derived for the trip.
func (t Trip) HasScheduledEnd() bool { return !t.ScheduledEnd.IsZero() }

type TrafficLevel string

const (
	Light    TrafficLevel = "light"
	Moderate TrafficLevel = "moderate"
	Heavy    TrafficLevel = "heavy"
)

// Weight is the nominal speed multiplier for the level.
func (l TrafficLevel) Weight() float64 {
	switch l {
	case Heavy:
		return 0.5
	case Light:
		return 1.0
	default:
		return 0.8
	}
}

type ETARecord struct {
	TripID            string       `json:"tripId"`
	ExpectedArrival   time.Time    `json:"expectedArrival"`
	RemainingDistance float64      `json:"remainingDistanceMeters"`
	TrafficCondition  TrafficLevel `json:"trafficCondition"`
	DelayMinutes      int          `json:"delayMinutes"`
	LastUpdated       time.Time    `json:"lastUpdated"`
}

// Position is a vehicle location report.
type Position struct {
	TripID    string
	VehicleID string
	Location  Coordinate
	Timestamp time.Time
}
