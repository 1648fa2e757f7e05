package matching

import "github.com/Temutjin2k/trip-dispatch/internal/domain/models"

// Ranking tie-break order: favorite, pair trust score, distance, request age.
// When trust signals are absent both collapse to zero and ranking degrades to
// distance plus recency.

func lessTripCandidate(a, b models.TripCandidate) bool {
	if a.Favorite != b.Favorite {
		return a.Favorite
	}
	if a.TrustScore != b.TrustScore {
		return a.TrustScore > b.TrustScore
	}
	if a.DistanceKm != b.DistanceKm {
		return a.DistanceKm < b.DistanceKm
	}
	return a.Trip.CreatedAt.Before(b.Trip.CreatedAt)
}

func lessDriverCandidate(a, b models.DriverCandidate) bool {
	if a.Favorite != b.Favorite {
		return a.Favorite
	}
	if a.TrustScore != b.TrustScore {
		return a.TrustScore > b.TrustScore
	}
	return a.DistanceKm < b.DistanceKm
}
