package trips

import (
	"math"

	"github.com/traillog/traillog/backend/go-services/internal/models"
	"github.com/traillog/traillog/backend/go-services/internal/persistence"
)

const earthRadiusKm = 6371.0

// Midpoint is the arithmetic mean of both ends. Good enough for routes of a
// few hundred kilometres that do not cross the antimeridian.
func Midpoint(a, b persistence.GeoPoint) persistence.GeoPoint {
	return persistence.NewGeoPoint((a.Lat()+b.Lat())/2, (a.Lng()+b.Lng())/2)
}

// RouteKm is the equirectangular distance between both ends.
func RouteKm(a, b persistence.GeoPoint) float64 {
	phiM := radians((a.Lat() + b.Lat()) / 2)
	x := radians(b.Lng()-a.Lng()) * math.Cos(phiM)
	y := radians(b.Lat() - a.Lat())
	return earthRadiusKm * math.Sqrt(x*x+y*y)
}

// Rate scores a route from its length and pace: km/10 + (km/h)/4.
func Rate(a, b persistence.GeoPoint, durationMinutes int) models.Difficulty {
	if durationMinutes <= 0 {
		return models.DifficultyUnrated
	}
	km := RouteKm(a, b)
	pace := km / (float64(durationMinutes) / 60)
	score := km/10 + pace/4
	switch {
	case score < 1:
		return models.DifficultyEasy
	case score < 2:
		return models.DifficultyModerate
	case score < 3.5:
		return models.DifficultyHard
	default:
		return models.DifficultyExtreme
	}
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
