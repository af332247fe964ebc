package publisher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fleet-eta/internal/fleet"
)

// ETAMessage is the wire form of an ETA update on NATS and Kafka.
type ETAMessage struct {
	EventID                 string    `json:"eventId"`
	TripID                  string    `json:"tripId"`
	ExpectedArrival         time.Time `json:"expectedArrival"`
	RemainingDistanceMeters float64   `json:"remainingDistanceMeters"`
	TrafficCondition        string    `json:"trafficCondition"`
	DelayMinutes            int       `json:"delayMinutes"`
	LastUpdated             time.Time `json:"lastUpdated"`
}

func newETAMessage(rec fleet.ETARecord) ETAMessage {
	return ETAMessage{
		EventID:                 uuid.NewString(),
		TripID:                  rec.TripID,
		ExpectedArrival:         rec.ExpectedArrival,
		RemainingDistanceMeters: rec.RemainingDistance,
		TrafficCondition:        string(rec.TrafficCondition),
		DelayMinutes:            rec.DelayMinutes,
		LastUpdated:             rec.LastUpdated,
	}
}

// PositionMessage is a vehicle position report, as published by the
// vehicle simulators and trackers.
type PositionMessage struct {
	TripID    string    `json:"tripId"`
	RouteID   string    `json:"routeId,omitempty"`
	VehicleID string    `json:"vehicleId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Bearing   float64   `json:"bearing,omitempty"`
	SpeedMps  float64   `json:"speedMps,omitempty"`
}

func decodePosition(data []byte) (fleet.Position, error) {
	var m PositionMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fleet.Position{}, fmt.Errorf("decode position: %w", err)
	}
	if strings.TrimSpace(m.TripID) == "" {
		return fleet.Position{}, fmt.Errorf("decode position: missing tripId")
	}
	if m.Lat < -90 || m.Lat > 90 || m.Lon < -180 || m.Lon > 180 {
		return fleet.Position{}, fmt.Errorf("decode position: coordinate out of range (%f, %f)", m.Lat, m.Lon)
	}
	return fleet.Position{
		TripID:    m.TripID,
		VehicleID: m.VehicleID,
		Location:  fleet.Coordinate{Lat: m.Lat, Lon: m.Lon},
		Timestamp: m.Timestamp,
	}, nil
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
