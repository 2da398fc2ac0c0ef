package geo

import (
	"math"
	"sort"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Located is anything with an optional position.
type Located interface {
	Location() (Point, bool)
}

// Distance returns the great-circle distance between a and b in kilometres.
func Distance(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// SortByDistance orders items nearest first relative to origin. Items without
// a location keep their relative order at the end.
func SortByDistance[T Located](items []T, origin Point) {
	sort.SliceStable(items, func(i, j int) bool {
		pi, okI := items[i].Location()
		pj, okJ := items[j].Location()
		switch {
		case okI && !okJ:
			return true
		case !okI:
			return false
		}
		return Distance(origin, pi) < Distance(origin, pj)
	})
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
