package assignment

import (
	"context"
	"time"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
)

type TripRepo interface {
	GetForUpdate(ctx context.Context, tripID uuid.UUID) (*models.Trip, error)
	MarkAccepted(ctx context.Context, tripID uuid.UUID, at time.Time) error
}

type DriverRepo interface {
	GetForUpdate(ctx context.Context, driverID uuid.UUID) (*models.Driver, error)
	SetAvailability(ctx context.Context, driverID uuid.UUID, available bool) error
}

type AssignmentRepo interface {
	Create(ctx context.Context, asg *models.Assignment) error
}

type RejectionRepo interface {
	Add(ctx context.Context, tripID, driverID uuid.UUID) error
}

type Notifier interface {
	PublishTripStatus(ctx context.Context, msg models.TripStatusMessage) error
}
