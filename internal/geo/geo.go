package geo

import (
	"math"

	"bike_train/internal/models"
)

const earthRadiusMiles = 3959

// HaversineMiles calculates the great-circle distance between two points.
func HaversineMiles(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMiles * c
}

// TrailDistanceMiles sums the leg distances of a recorded trail,
// rounded to one decimal place.
func TrailDistanceMiles(trail []models.LocationFix) float64 {
	total := 0.0
	for i := 1; i < len(trail); i++ {
		total += HaversineMiles(trail[i-1].Lat, trail[i-1].Lng, trail[i].Lat, trail[i].Lng)
	}
	return math.Round(total*10) / 10
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
