package geo

import (
	"math"

	"github.com/example/ride-dispatch/internal/models"
)

// DefaultRadiusKm is the dispatch radius used when callers pass 0.
const DefaultRadiusKm = 3.0

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance in kilometers between two
// points given in degrees.
func Haversine(a, b models.Coord) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// ValidCoord rejects NaN and out-of-range coordinates. Malformed driver
// snapshots are skipped during matching instead of failing the whole pass.
func ValidCoord(c models.Coord) bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Nearby filters candidates down to available drivers with valid
// coordinates within radiusKm of origin. The radius boundary is
// inclusive. Result order is unspecified.
func Nearby(origin models.Coord, candidates []models.DriverLocationSnapshot, radiusKm float64) []models.DriverLocationSnapshot {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	out := make([]models.DriverLocationSnapshot, 0, len(candidates))
	for _, d := range candidates {
		if !d.IsAvailable {
			continue
		}
		loc := models.Coord{Lat: d.Lat, Lng: d.Lng}
		if !ValidCoord(loc) {
			continue
		}
		if Haversine(origin, loc) <= radiusKm {
			out = append(out, d)
		}
	}
	return out
}
