// Package fare computes ride fares from distance and the per-vehicle rate
// table. Fares are whole rupees; rounding is half away from zero and applied
// uniformly, for estimates as well as live in-ride fares.
package fare

import (
	"math"

	"github.com/ecoride/ecoride/pkg/models"
)

// Rate holds the pricing knobs for one vehicle type
type Rate struct {
	BaseFare  float64 // rupees
	PerKmRate float64 // rupees per kilometre
}

// RateTable maps vehicle types to their rates
type RateTable map[models.VehicleType]Rate

// DefaultRates returns the launch-city rate card.
func DefaultRates() RateTable {
	return RateTable{
		models.VehicleTypeCar:  {BaseFare: 30, PerKmRate: 15},
		models.VehicleTypeBike: {BaseFare: 15, PerKmRate: 6},
	}
}

// Estimate returns the fare in whole rupees for a trip of the given distance.
// Deterministic and pure: same inputs always produce the same fare. Unknown
// vehicle types price as zero-rate; callers validate the type beforehand.
func Estimate(distanceKm float64, vt models.VehicleType, rates RateTable) int64 {
	rate := rates[vt]
	return int64(math.Round(rate.BaseFare + distanceKm*rate.PerKmRate))
}
