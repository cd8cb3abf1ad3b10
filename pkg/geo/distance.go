package geo

import (
	"math"

	"github.com/ecoride/ecoride/pkg/models"
)

const (
	earthRadiusKm   = 6371.0
	averageSpeedKmh = 40.0 // city traffic average
)

// DistanceKm calculates the great-circle distance in kilometres between two
// coordinates using the haversine formula. The result is unrounded; callers
// decide display precision. Non-finite input propagates NaN — coordinate
// validation happens before calls reach this layer.
func DistanceKm(a, b models.Coordinate) float64 {
	dLat := radians(b.Latitude - a.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Latitude))*math.Cos(radians(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// EstimateDurationMin returns the estimated travel time in minutes for a
// distance in kilometres, assuming an average city speed of 40 km/h.
func EstimateDurationMin(distanceKm float64) int {
	return int(math.Round(distanceKm / averageSpeedKmh * 60))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
