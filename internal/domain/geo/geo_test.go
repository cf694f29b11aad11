package geo

import (
	"math"
	"testing"
)

func TestSquareAround(t *testing.T) {
	b := SquareAround(Point{Lat: 40.70, Lng: -73.99}, FallbackHalfWidthDeg)

	if b.Low.Lat != 40.60 || b.Low.Lng != -74.09 {
		t.Errorf("unexpected low corner: %+v", b.Low)
	}
	if b.High.Lat != 40.80 || b.High.Lng != -73.89 {
		t.Errorf("unexpected high corner: %+v", b.High)
	}
}

func TestBoundsContains(t *testing.T) {
	b := SquareAround(Point{Lat: 40.70, Lng: -73.99}, 0.1)

	if !b.Contains(Point{Lat: 40.70, Lng: -73.99}) {
		t.Error("expected center inside bounds")
	}
	if !b.Contains(Point{Lat: 40.60, Lng: -74.09}) {
		t.Error("expected corner inside bounds")
	}
	if b.Contains(Point{Lat: 40.81, Lng: -73.99}) {
		t.Error("expected point north of bounds outside")
	}
}

func TestBoundsIsZero(t *testing.T) {
	if !(Bounds{}).IsZero() {
		t.Error("expected zero-value bounds to be zero")
	}
	if SquareAround(Point{Lat: 1}, 0.1).IsZero() {
		t.Error("expected non-empty bounds not to be zero")
	}
}

func TestHaversine(t *testing.T) {
	// One degree of latitude is about 111.2 km.
	d := Haversine(Point{Lat: 40, Lng: -74}, Point{Lat: 41, Lng: -74})
	if math.Abs(d-111_195) > 500 {
		t.Errorf("expected ~111195m, got %f", d)
	}

	if Haversine(Point{Lat: 40, Lng: -74}, Point{Lat: 40, Lng: -74}) != 0 {
		t.Error("expected zero distance for identical points")
	}
}
