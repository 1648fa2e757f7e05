// Package geo provides the pure coordinate math used by matching and demand
// queries: haversine great-circle distance and bounding boxes for a coarse
// index pre-filter. No storage, no side effects.
package geo

import (
	"errors"
	"math"
)

const (
	// EarthRadiusKm is the mean Earth radius used by the haversine formula.
	EarthRadiusKm = 6371.0

	// kmPerDegreeLat is the approximate length of one degree of latitude.
	kmPerDegreeLat = 111.0
)

var ErrInvalidCoordinate = errors.New("invalid coordinate")

// BoundingBox is a latitude/longitude rectangle around a center point.
// It over-selects near the poles; callers re-check with Haversine.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Contains reports whether the point lies inside the box.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// ValidateCoordinate rejects NaN and out-of-range latitude/longitude pairs.
func ValidateCoordinate(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return ErrInvalidCoordinate
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinate
	}
	return nil
}

func degreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// Haversine calculates the great-circle distance in kilometers between two
// geographic points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := degreesToRadians(lat1)
	lat2Rad := degreesToRadians(lat2)

	deltaLat := degreesToRadians(lat2 - lat1)
	deltaLon := degreesToRadians(lon2 - lon1)

	a := math.Pow(math.Sin(deltaLat/2), 2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Pow(math.Sin(deltaLon/2), 2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// BoxAround computes a bounding box with the given radius around a center.
// Longitude degrees shrink by the cosine of the latitude, so the box widens
// toward the poles to keep covering the requested radius.
func BoxAround(lat, lon, radiusKm float64) (BoundingBox, error) {
	if err := ValidateCoordinate(lat, lon); err != nil {
		return BoundingBox{}, err
	}
	if math.IsNaN(radiusKm) || radiusKm <= 0 {
		return BoundingBox{}, ErrInvalidCoordinate
	}

	latDelta := radiusKm / kmPerDegreeLat

	cosLat := math.Cos(degreesToRadians(lat))
	// Close to a pole a longitude band covers the whole circle.
	lonDelta := 180.0
	if cosLat > 1e-6 {
		lonDelta = radiusKm / (kmPerDegreeLat * cosLat)
		if lonDelta > 180 {
			lonDelta = 180
		}
	}

	return BoundingBox{
		MinLat: math.Max(lat-latDelta, -90),
		MaxLat: math.Min(lat+latDelta, 90),
		MinLon: math.Max(lon-lonDelta, -180),
		MaxLon: math.Min(lon+lonDelta, 180),
	}, nil
}
