package network

import "math"

// EarthRadius is the mean earth radius in km.
const EarthRadius = 6371.0

// Coordinates is a node location in degrees.
type Coordinates struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// Distance returns the great-circle distance between a and b in km.
func Distance(a, b Coordinates) float64 {
	lat1, lon1 := radians(a.Latitude), radians(a.Longitude)
	lat2, lon2 := radians(b.Latitude), radians(b.Longitude)
	dlat, dlon := lat2-lat1, lon2-lon1
	h := math.Pow(math.Sin(dlat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dlon/2), 2)
	h = math.Min(1, math.Max(0, h))
	return 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h)) * EarthRadius
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
