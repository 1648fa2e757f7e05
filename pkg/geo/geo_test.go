package geo

import (
	"math"
	"testing"
)

func TestHaversineZeroDistance(t *testing.T) {
	points := [][2]float64{
		{0, 0},
		{6.2100, -75.5700},
		{51.1694, 71.4491},
		{-33.8688, 151.2093},
	}

	for _, p := range points {
		if d := Haversine(p[0], p[1], p[0], p[1]); d != 0 {
			t.Errorf("Haversine(%v, %v) to itself = %f, want 0", p[0], p[1], d)
		}
	}
}

func TestHaversineSymmetry(t *testing.T) {
	pairs := []struct {
		lat1, lon1, lat2, lon2 float64
	}{
		{6.2100, -75.5700, 6.2518, -75.5636},
		{51.1694, 71.4491, 43.2220, 76.8512},
		{-90, 0, 90, 0},
		{0, -179.9, 0, 179.9},
	}

	for _, p := range pairs {
		ab := Haversine(p.lat1, p.lon1, p.lat2, p.lon2)
		ba := Haversine(p.lat2, p.lon2, p.lat1, p.lon1)
		if math.Abs(ab-ba) > 1e-9 {
			t.Errorf("distance not symmetric: %f vs %f", ab, ba)
		}
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// Astana to Almaty, roughly 970 km by great circle.
	d := Haversine(51.1694, 71.4491, 43.2220, 76.8512)
	if d < 950 || d > 990 {
		t.Errorf("Astana-Almaty distance = %f km, want ~970", d)
	}
}

func TestBoxAroundContainsRadius(t *testing.T) {
	const (
		lat    = 6.2100
		lon    = -75.5700
		radius = 5.0
	)

	box, err := BoxAround(lat, lon, radius)
	if err != nil {
		t.Fatalf("BoxAround: %v", err)
	}

	// Points just inside the radius along each axis must fall inside the box.
	latDelta := radius / kmPerDegreeLat * 0.99
	lonDelta := radius / (kmPerDegreeLat * math.Cos(degreesToRadians(lat))) * 0.99

	inside := [][2]float64{
		{lat + latDelta, lon},
		{lat - latDelta, lon},
		{lat, lon + lonDelta},
		{lat, lon - lonDelta},
	}
	for _, p := range inside {
		if !box.Contains(p[0], p[1]) {
			t.Errorf("expected box to contain (%f, %f)", p[0], p[1])
		}
	}

	// A point well outside must be excluded.
	if box.Contains(lat+1, lon) {
		t.Error("expected box to exclude a point one degree north")
	}
}

func TestBoxAroundRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name             string
		lat, lon, radius float64
	}{
		{"nan latitude", math.NaN(), 0, 5},
		{"nan longitude", 0, math.NaN(), 5},
		{"latitude out of range", 91, 0, 5},
		{"longitude out of range", 0, -181, 5},
		{"zero radius", 10, 10, 0},
		{"negative radius", 10, 10, -1},
	}

	for _, tc := range cases {
		if _, err := BoxAround(tc.lat, tc.lon, tc.radius); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestValidateCoordinate(t *testing.T) {
	if err := ValidateCoordinate(6.21, -75.57); err != nil {
		t.Errorf("valid coordinate rejected: %v", err)
	}
	if err := ValidateCoordinate(-90, 180); err != nil {
		t.Errorf("boundary coordinate rejected: %v", err)
	}
	if err := ValidateCoordinate(90.0001, 0); err == nil {
		t.Error("expected out-of-range latitude to be rejected")
	}
}
