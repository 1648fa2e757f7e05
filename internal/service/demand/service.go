package demand

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
	"github.com/Temutjin2k/trip-dispatch/pkg/geo"
	"github.com/Temutjin2k/trip-dispatch/pkg/logger"
	wrap "github.com/Temutjin2k/trip-dispatch/pkg/logger/wrapper"
)

const (
	// DefaultCellKm is the grid cell edge length.
	DefaultCellKm = 0.5

	// MaxCells caps the report at the highest-demand cells.
	MaxCells = 20

	kmPerDegreeLat = 111.0
)

type TripRepo interface {
	FindPendingInBox(ctx context.Context, box geo.BoundingBox, since time.Time) ([]*models.Trip, error)
}

type DriverRepo interface {
	FindAvailableInBox(ctx context.Context, box geo.BoundingBox, locationSince time.Time) ([]*models.Driver, error)
}

// LocationIndex supplies live driver positions for supply counts.
type LocationIndex interface {
	Nearby(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]models.DriverPoint, error)
}

// Service produces surge hints for driver UI. The grid is a pure computation
// over two point-in-time queries and is never persisted, so it cannot drift
// from live availability.
type Service struct {
	trips     TripRepo
	drivers   DriverRepo
	locations LocationIndex
	freshness time.Duration
	logger    logger.Logger
}

func New(trips TripRepo, drivers DriverRepo, locations LocationIndex, freshness time.Duration, logger logger.Logger) *Service {
	if freshness <= 0 {
		freshness = 15 * time.Minute
	}
	return &Service{
		trips:     trips,
		drivers:   drivers,
		locations: locations,
		freshness: freshness,
		logger:    logger,
	}
}

// Zones computes demand cells around the center. When no live pending trips
// exist, a synthetic sample is returned and flagged as such, never passed off
// as real demand.
func (s *Service) Zones(ctx context.Context, lat, lon, radiusKm, cellKm float64) (*models.DemandReport, error) {
	ctx = wrap.WithAction(ctx, "demand_zones")

	if cellKm <= 0 {
		cellKm = DefaultCellKm
	}
	if radiusKm <= 0 {
		radiusKm = 5.0
	}

	box, err := geo.BoxAround(lat, lon, radiusKm)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	since := time.Now().Add(-s.freshness)
	trips, err := s.trips.FindPendingInBox(ctx, box, since)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("could not query pending trips: %w", err))
	}

	if len(trips) == 0 {
		return &models.DemandReport{
			Cells:       syntheticCells(lat, lon, cellKm),
			Synthetic:   true,
			GeneratedAt: time.Now(),
		}, nil
	}

	supply := s.driverPositions(ctx, lat, lon, radiusKm, box, since)

	cells := buildGrid(lat, lon, cellKm, trips, supply)

	sort.SliceStable(cells, func(i, j int) bool {
		if cells[i].Level != cells[j].Level {
			return cells[i].Level > cells[j].Level
		}
		return cells[i].PendingCount > cells[j].PendingCount
	})
	if len(cells) > MaxCells {
		cells = cells[:MaxCells]
	}

	return &models.DemandReport{
		Cells:       cells,
		Synthetic:   false,
		GeneratedAt: time.Now(),
	}, nil
}

// driverPositions prefers the live index and falls back to stored positions.
func (s *Service) driverPositions(ctx context.Context, lat, lon, radiusKm float64, box geo.BoundingBox, since time.Time) []models.DriverPoint {
	if s.locations != nil {
		points, err := s.locations.Nearby(ctx, lat, lon, radiusKm, 500)
		if err == nil {
			return points
		}
		s.logger.Warn(ctx, "location index unavailable, falling back to database", "error", err.Error())
	}

	drivers, err := s.drivers.FindAvailableInBox(ctx, box, since)
	if err != nil {
		s.logger.Warn(ctx, "driver query failed, treating supply as zero", "error", err.Error())
		return nil
	}

	points := make([]models.DriverPoint, 0, len(drivers))
	for _, d := range drivers {
		if d.LastLatitude == nil || d.LastLongitude == nil {
			continue
		}
		points = append(points, models.DriverPoint{
			ID:        d.ID,
			Latitude:  *d.LastLatitude,
			Longitude: *d.LastLongitude,
		})
	}
	return points
}

type cellKey struct {
	row, col int
}

// buildGrid buckets trips and drivers into fixed cells anchored at the query
// center and classifies each occupied cell.
func buildGrid(centerLat, centerLon, cellKm float64, trips []*models.Trip, supply []models.DriverPoint) []models.DemandCell {
	latStep := cellKm / kmPerDegreeLat
	lonScale := math.Cos(centerLat * math.Pi / 180)
	if lonScale < 0.01 {
		lonScale = 0.01
	}
	lonStep := cellKm / (kmPerDegreeLat * lonScale)

	key := func(lat, lon float64) cellKey {
		return cellKey{
			row: int(math.Floor((lat - centerLat) / latStep)),
			col: int(math.Floor((lon - centerLon) / lonStep)),
		}
	}

	pending := make(map[cellKey]int)
	for _, t := range trips {
		pending[key(t.Pickup.Latitude, t.Pickup.Longitude)]++
	}

	available := make(map[cellKey]int)
	for _, p := range supply {
		available[key(p.Latitude, p.Longitude)]++
	}

	cells := make([]models.DemandCell, 0, len(pending))
	for k, requests := range pending {
		drivers := available[k]
		level := classify(requests, drivers)

		cells = append(cells, models.DemandCell{
			Center: models.Location{
				Latitude:  centerLat + (float64(k.row)+0.5)*latStep,
				Longitude: centerLon + (float64(k.col)+0.5)*lonStep,
			},
			EdgeKm:       cellKm,
			PendingCount: requests,
			DriverCount:  drivers,
			Level:        level,
			Multiplier:   multiplierFor(level),
		})
	}

	return cells
}

// classify maps the request:driver ratio to a demand level 1..5. A cell with
// no drivers is driven by absolute request count, capped at 5.
func classify(requests, drivers int) int {
	if drivers == 0 {
		if requests > 5 {
			return 5
		}
		return requests
	}

	ratio := float64(requests) / float64(drivers)
	switch {
	case ratio >= 3:
		return 5
	case ratio >= 2:
		return 4
	case ratio >= 1.5:
		return 3
	case ratio >= 1:
		return 2
	default:
		return 1
	}
}

// multiplierFor returns the surge multiplier for a demand level.
func multiplierFor(level int) float64 {
	switch level {
	case 5:
		return 2.5
	case 4:
		return 2.0
	case 3:
		return 1.5
	case 2:
		return 1.2
	default:
		return 1.0
	}
}

// syntheticCells fabricates a small sample around the center for UI
// continuity when there is no live demand. Callers must surface the
// Synthetic flag.
func syntheticCells(centerLat, centerLon, cellKm float64) []models.DemandCell {
	latStep := cellKm / kmPerDegreeLat
	lonScale := math.Cos(centerLat * math.Pi / 180)
	if lonScale < 0.01 {
		lonScale = 0.01
	}
	lonStep := cellKm / (kmPerDegreeLat * lonScale)

	offsets := []struct {
		row, col int
		level    int
	}{
		{0, 0, 2},
		{1, 0, 1},
		{0, 1, 1},
		{-1, -1, 1},
	}

	cells := make([]models.DemandCell, 0, len(offsets))
	for _, o := range offsets {
		cells = append(cells, models.DemandCell{
			Center: models.Location{
				Latitude:  centerLat + (float64(o.row)+0.5)*latStep,
				Longitude: centerLon + (float64(o.col)+0.5)*lonStep,
			},
			EdgeKm:     cellKm,
			Level:      o.level,
			Multiplier: multiplierFor(o.level),
		})
	}
	return cells
}
