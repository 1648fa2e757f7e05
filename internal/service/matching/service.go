package matching

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
	"github.com/Temutjin2k/trip-dispatch/internal/domain/types"
	"github.com/Temutjin2k/trip-dispatch/pkg/geo"
	"github.com/Temutjin2k/trip-dispatch/pkg/logger"
	wrap "github.com/Temutjin2k/trip-dispatch/pkg/logger/wrapper"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
)

const (
	// DefaultRadiusKm bounds the search when the caller does not pass one.
	DefaultRadiusKm = 5.0

	// DefaultFreshness excludes pending trips older than this from matching.
	DefaultFreshness = 15 * time.Minute

	// MaxCandidates caps any candidate list sent to a mobile client.
	MaxCandidates = 10
)

type Config struct {
	RadiusKm  float64
	Freshness time.Duration
}

func (c Config) withDefaults() Config {
	if c.RadiusKm <= 0 {
		c.RadiusKm = DefaultRadiusKm
	}
	if c.Freshness <= 0 {
		c.Freshness = DefaultFreshness
	}
	return c
}

// Service answers "which open trips can this driver take" and the inverse.
// All reads are lock-free snapshots; slightly stale availability is fine.
type Service struct {
	trips      TripRepo
	drivers    DriverRepo
	rejections RejectionRepo
	locations  LocationIndex
	trust      TrustProvider
	cfg        Config
	logger     logger.Logger
}

func New(
	trips TripRepo,
	drivers DriverRepo,
	rejections RejectionRepo,
	locations LocationIndex,
	trust TrustProvider,
	cfg Config,
	logger logger.Logger,
) *Service {
	return &Service{
		trips:      trips,
		drivers:    drivers,
		rejections: rejections,
		locations:  locations,
		trust:      trust,
		cfg:        cfg.withDefaults(),
		logger:     logger,
	}
}

// NearbyPending returns up to MaxCandidates pending trips the driver can
// serve, ranked by favorite, pair trust, distance, then request age.
func (s *Service) NearbyPending(ctx context.Context, driverID uuid.UUID, lat, lon, radiusKm float64) ([]models.TripCandidate, error) {
	ctx = wrap.WithAction(ctx, "nearby_pending_trips")

	if radiusKm <= 0 {
		radiusKm = s.cfg.RadiusKm
	}

	driver, err := s.drivers.Get(ctx, driverID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	box, err := geo.BoxAround(lat, lon, radiusKm)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	since := time.Now().Add(-s.cfg.Freshness)
	trips, err := s.trips.FindPendingInBox(ctx, box, since)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("could not query pending trips: %w", err))
	}

	rejected, err := s.rejections.TripIDsForDriver(ctx, driverID)
	if err != nil {
		// A rejection lookup failure only risks re-offering declined trips.
		s.logger.Warn(ctx, "rejection lookup failed, continuing unfiltered", "error", err.Error())
		rejected = nil
	}

	candidates := make([]models.TripCandidate, 0, len(trips))
	for _, trip := range trips {
		if _, ok := rejected[trip.ID]; ok {
			continue
		}
		if !types.VehicleAllowed(trip.ServiceType, driver.VehicleType) {
			continue
		}

		dist := geo.Haversine(lat, lon, trip.Pickup.Latitude, trip.Pickup.Longitude)
		if dist > radiusKm {
			continue
		}

		c := models.TripCandidate{Trip: trip, DistanceKm: dist}
		if score, fav, err := s.trust.Signals(ctx, trip.RiderID, driverID); err == nil {
			c.TrustScore = score
			c.Favorite = fav
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return lessTripCandidate(candidates[i], candidates[j])
	})

	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}

	return candidates, nil
}

// CandidateDrivers is the inverse query: dispatchable drivers for a pending
// trip, closest-and-most-trusted first. The live location index supplies
// positions when reachable; otherwise last known Postgres positions serve.
func (s *Service) CandidateDrivers(ctx context.Context, tripID uuid.UUID, radiusKm float64) ([]models.DriverCandidate, error) {
	ctx = wrap.WithAction(ctx, "candidate_drivers")

	if radiusKm <= 0 {
		radiusKm = s.cfg.RadiusKm
	}

	trip, err := s.trips.Get(ctx, tripID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	lat, lon := trip.Pickup.Latitude, trip.Pickup.Longitude

	box, err := geo.BoxAround(lat, lon, radiusKm)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	drivers, err := s.availableDrivers(ctx, box, lat, lon, radiusKm)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	candidates := make([]models.DriverCandidate, 0, len(drivers))
	for _, d := range drivers {
		if !d.IsApproved() || !d.Available {
			continue
		}
		if !types.VehicleAllowed(trip.ServiceType, d.VehicleType) {
			continue
		}
		if d.LastLatitude == nil || d.LastLongitude == nil {
			continue
		}

		dist := geo.Haversine(lat, lon, *d.LastLatitude, *d.LastLongitude)
		if dist > radiusKm {
			continue
		}

		c := models.DriverCandidate{Driver: d, DistanceKm: dist}
		if score, fav, err := s.trust.Signals(ctx, trip.RiderID, d.ID); err == nil {
			c.TrustScore = score
			c.Favorite = fav
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return lessDriverCandidate(candidates[i], candidates[j])
	})

	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}

	return candidates, nil
}

// availableDrivers prefers the live index and falls back to the relational
// snapshot on any index failure.
func (s *Service) availableDrivers(ctx context.Context, box geo.BoundingBox, lat, lon, radiusKm float64) ([]*models.Driver, error) {
	if s.locations != nil {
		points, err := s.locations.Nearby(ctx, lat, lon, radiusKm, MaxCandidates*3)
		if err == nil {
			drivers := make([]*models.Driver, 0, len(points))
			for _, p := range points {
				d, err := s.drivers.Get(ctx, p.ID)
				if err != nil {
					continue
				}
				// Index position is fresher than the stored one.
				d.LastLatitude = &p.Latitude
				d.LastLongitude = &p.Longitude
				drivers = append(drivers, d)
			}
			return drivers, nil
		}
		s.logger.Warn(ctx, "location index unavailable, falling back to database", "error", err.Error())
	}

	since := time.Now().Add(-s.cfg.Freshness)
	drivers, err := s.drivers.FindAvailableInBox(ctx, box, since)
	if err != nil {
		return nil, fmt.Errorf("could not query available drivers: %w", err)
	}
	return drivers, nil
}
