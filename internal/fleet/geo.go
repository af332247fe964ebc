package fleet

import "math"

const earthRadiusMeters = 6371000.0

// DistanceMeters is the great-circle (haversine) distance between a and b.
func DistanceMeters(a, b Coordinate) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// Offset returns the point reached by moving north/east by the given meters.
// Equirectangular approximation, fine for the few-km offsets used around zones.
func Offset(c Coordinate, northMeters, eastMeters float64) Coordinate {
	dLat := northMeters / earthRadiusMeters * 180 / math.Pi
	dLon := eastMeters / (earthRadiusMeters * math.Cos(c.Lat*math.Pi/180)) * 180 / math.Pi
	return Coordinate{Lat: c.Lat + dLat, Lon: c.Lon + dLon}
}
