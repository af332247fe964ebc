package traffic

import (
	"math/rand"
	"sync"

	"fleet-eta/internal/fleet"
)

const (
	// changeProbability is the per-tick chance that a zone redraws its level.
	changeProbability = 0.3
	// emptyFactor is the pre-jitter speed factor when no zones are configured.
	emptyFactor = 0.9
	jitterMin   = 0.9
	jitterMax   = 1.1
)

var levels = []fleet.TrafficLevel{fleet.Light, fleet.Moderate, fleet.Heavy}

type Zone struct {
	Center       fleet.Coordinate   `json:"center"`
	RadiusMeters float64            `json:"radiusMeters"`
	Level        fleet.TrafficLevel `json:"level"`
}

// Model simulates congestion over a fixed set of zones and derives one
// global speed factor from them. Zones and factor change together under mu.
type Model struct {
	mu     sync.RWMutex
	zones  []Zone
	factor float64
	rng    *rand.Rand
}

// DefaultZones is the seed zone set used by the service.
func DefaultZones() []Zone {
	return []Zone{
		{Center: fleet.Coordinate{Lat: 37.7749, Lon: -122.4194}, RadiusMeters: 5000, Level: fleet.Heavy},    // San Francisco downtown
		{Center: fleet.Coordinate{Lat: 37.8044, Lon: -122.2712}, RadiusMeters: 4000, Level: fleet.Moderate}, // Oakland
		{Center: fleet.Coordinate{Lat: 37.6213, Lon: -122.3790}, RadiusMeters: 3000, Level: fleet.Moderate}, // SFO
		{Center: fleet.Coordinate{Lat: 37.4419, Lon: -122.1430}, RadiusMeters: 3500, Level: fleet.Light},    // Palo Alto
		{Center: fleet.Coordinate{Lat: 37.3382, Lon: -121.8863}, RadiusMeters: 6000, Level: fleet.Light},    // San Jose
	}
}

func NewModel(zones []Zone, rng *rand.Rand) *Model {
	m := &Model{
		zones:  append([]Zone(nil), zones...),
		factor: 1.0,
		rng:    rng,
	}
	return m
}

// Tick redraws zone levels and recomputes the speed factor.
func (m *Model) Tick() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.zones {
		if m.rng.Float64() < changeProbability {
			m.zones[i].Level = levels[m.rng.Intn(len(levels))]
		}
	}
	base := emptyFactor
	if len(m.zones) > 0 {
		sum := 0.0
		for _, z := range m.zones {
			sum += z.Level.Weight()
		}
		base = sum / float64(len(m.zones))
	}
	m.factor = base * (jitterMin + m.rng.Float64()*(jitterMax-jitterMin))
	return m.factor
}

// LevelAt returns the level of the first zone containing c, or Moderate.
func (m *Model) LevelAt(c fleet.Coordinate) fleet.TrafficLevel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, z := range m.zones {
		if fleet.DistanceMeters(z.Center, c) <= z.RadiusMeters {
			return z.Level
		}
	}
	return fleet.Moderate
}

func (m *Model) SpeedFactor() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.factor
}

// SetSpeedFactor pins the factor until the next Tick.
func (m *Model) SetSpeedFactor(f float64) {
	m.mu.Lock()
	m.factor = f
	m.mu.Unlock()
}

func (m *Model) Zones() []Zone {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Zone(nil), m.zones...)
}
