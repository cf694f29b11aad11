// Package geo provides geographic primitives for destination regions
// and distance annotation.
package geo

import "math"

// EarthRadiusMeters is the mean radius of Earth used for Haversine distance.
const EarthRadiusMeters = 6_371_000.0

// FallbackHalfWidthDeg is the half-width of the synthesized square region
// (roughly 11 km at the equator) used when a geocoder result carries no
// explicit viewport.
const FallbackHalfWidthDeg = 0.1

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Bounds is a rectangular region. Low is the southwest corner, High the
// northeast corner.
type Bounds struct {
	Low  Point `json:"low"`
	High Point `json:"high"`
}

// SquareAround returns a square region of the given half-width in degrees
// centered on c.
func SquareAround(c Point, halfWidthDeg float64) Bounds {
	return Bounds{
		Low:  Point{Lat: c.Lat - halfWidthDeg, Lng: c.Lng - halfWidthDeg},
		High: Point{Lat: c.Lat + halfWidthDeg, Lng: c.Lng + halfWidthDeg},
	}
}

// Contains reports whether p falls inside the region.
func (b Bounds) Contains(p Point) bool {
	return p.Lat >= b.Low.Lat && p.Lat <= b.High.Lat &&
		p.Lng >= b.Low.Lng && p.Lng <= b.High.Lng
}

// IsZero reports whether the region is unset.
func (b Bounds) IsZero() bool {
	return b.Low == (Point{}) && b.High == (Point{})
}

// Haversine returns the great-circle distance in meters between two points.
func Haversine(a, b Point) float64 {
	lat1r := a.Lat * math.Pi / 180
	lat2r := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}
