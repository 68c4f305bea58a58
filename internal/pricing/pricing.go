// Package pricing owns the fare schedule. The dispatch core calls Fare
// as a pure function and has no say in the rates.
package pricing

import "github.com/example/ride-dispatch/internal/models"

var baseFare = map[models.VehicleClass]float64{
	models.ClassEconomy: 50,
	models.ClassPremium: 100,
	models.ClassSUV:     120,
	models.ClassLuxury:  200,
}

var perKmRate = map[models.VehicleClass]float64{
	models.ClassEconomy: 10,
	models.ClassPremium: 15,
	models.ClassSUV:     18,
	models.ClassLuxury:  25,
}

// Fare returns base + distance * per-km rate for the class. Unknown
// classes price as economy, matching the upstream schedule's fallback.
func Fare(distanceKm float64, class models.VehicleClass) float64 {
	base, ok := baseFare[class]
	if !ok {
		base = baseFare[models.ClassEconomy]
	}
	rate, ok := perKmRate[class]
	if !ok {
		rate = perKmRate[models.ClassEconomy]
	}
	return base + distanceKm*rate
}
