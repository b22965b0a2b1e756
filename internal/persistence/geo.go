package persistence

import (
	"fmt"
	"math"
)

const earthRadiusKm = 6371.0

// GeoPoint is a GeoJSON point. Coordinates are stored as [longitude, latitude].
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

// NewGeoPoint builds a point from latitude and longitude.
func NewGeoPoint(lat, lng float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}}
}

func (p GeoPoint) Lat() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[1]
}

func (p GeoPoint) Lng() float64 {
	if len(p.Coordinates) < 1 {
		return 0
	}
	return p.Coordinates[0]
}

// Validate checks the point is a GeoJSON Point within coordinate bounds.
func (p GeoPoint) Validate() error {
	if p.Type != "Point" || len(p.Coordinates) != 2 {
		return fmt.Errorf("not a GeoJSON point")
	}
	if p.Lat() < -90 || p.Lat() > 90 {
		return fmt.Errorf("latitude %v out of range", p.Lat())
	}
	if p.Lng() < -180 || p.Lng() > 180 {
		return fmt.Errorf("longitude %v out of range", p.Lng())
	}
	return nil
}

// DistanceKm is the great-circle distance between two points.
func DistanceKm(a, b GeoPoint) float64 {
	lat1, lat2 := radians(a.Lat()), radians(b.Lat())
	dLat := lat2 - lat1
	dLng := radians(b.Lng() - a.Lng())
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
