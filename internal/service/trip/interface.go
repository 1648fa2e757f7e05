package trip

import (
	"context"
	"time"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
	"github.com/Temutjin2k/trip-dispatch/internal/domain/types"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
)

type TripRepo interface {
	Create(ctx context.Context, trip *models.Trip) error
	Get(ctx context.Context, tripID uuid.UUID) (*models.Trip, error)
	AdvanceStatus(ctx context.Context, upd models.TripStatusUpdate) (bool, error)
	CountByDate(ctx context.Context, date time.Time) (int, error)
}

type DriverRepo interface {
	SetAvailability(ctx context.Context, driverID uuid.UUID, available bool) error
	IncrementTripCount(ctx context.Context, driverID uuid.UUID) error
}

type AssignmentRepo interface {
	GetActiveByTrip(ctx context.Context, tripID uuid.UUID) (*models.Assignment, error)
	UpdateStatus(ctx context.Context, tripID uuid.UUID, status types.AssignmentStatus) error
}

// Settler freezes the fare at completion. Runs inside the completion
// transaction.
type Settler interface {
	Settle(ctx context.Context, trip *models.Trip) (*models.Settlement, error)
	Estimate(ctx context.Context, vehicleType types.VehicleType, companyID *uuid.UUID, distanceKm float64, durationMin int) float64
}

type Notifier interface {
	PublishTripRequested(ctx context.Context, msg models.TripRequestedMessage) error
	PublishTripStatus(ctx context.Context, msg models.TripStatusMessage) error
}

// DriverPusher delivers a realtime message to a connected driver client.
type DriverPusher interface {
	SendTo(id uuid.UUID, msg map[string]any) error
}
