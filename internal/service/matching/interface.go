package matching

import (
	"context"
	"time"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
	"github.com/Temutjin2k/trip-dispatch/pkg/geo"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
)

type TripRepo interface {
	Get(ctx context.Context, tripID uuid.UUID) (*models.Trip, error)
	FindPendingInBox(ctx context.Context, box geo.BoundingBox, since time.Time) ([]*models.Trip, error)
}

type DriverRepo interface {
	Get(ctx context.Context, driverID uuid.UUID) (*models.Driver, error)
	FindAvailableInBox(ctx context.Context, box geo.BoundingBox, locationSince time.Time) ([]*models.Driver, error)
}

type RejectionRepo interface {
	TripIDsForDriver(ctx context.Context, driverID uuid.UUID) (map[uuid.UUID]struct{}, error)
}

// LocationIndex is the live driver position cache. Nil results and errors
// both fall back to the relational store.
type LocationIndex interface {
	Nearby(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]models.DriverPoint, error)
}

// TrustProvider supplies optional ranking signals for a (rider, driver)
// pair. trust.Nop is used when no trust service is configured.
type TrustProvider interface {
	Signals(ctx context.Context, riderID, driverID uuid.UUID) (trustScore float64, favorite bool, err error)
}
