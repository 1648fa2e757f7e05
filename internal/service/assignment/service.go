package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
	"github.com/Temutjin2k/trip-dispatch/internal/domain/types"
	"github.com/Temutjin2k/trip-dispatch/pkg/logger"
	wrap "github.com/Temutjin2k/trip-dispatch/pkg/logger/wrapper"
	"github.com/Temutjin2k/trip-dispatch/pkg/metrics"
	"github.com/Temutjin2k/trip-dispatch/pkg/trm"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
)

// Service owns the pending to accepted transition. Two drivers racing for
// the same trip serialize on the trip row lock; exactly one wins.
type Service struct {
	trips      TripRepo
	drivers    DriverRepo
	ledger     AssignmentRepo
	rejections RejectionRepo
	notifier   Notifier
	trm        trm.TxManager
	logger     logger.Logger
}

func New(
	trips TripRepo,
	drivers DriverRepo,
	ledger AssignmentRepo,
	rejections RejectionRepo,
	notifier Notifier,
	trm trm.TxManager,
	logger logger.Logger,
) *Service {
	return &Service{
		trips:      trips,
		drivers:    drivers,
		ledger:     ledger,
		rejections: rejections,
		notifier:   notifier,
		trm:        trm,
		logger:     logger,
	}
}

// Accept commits the driver to the trip. The whole check-and-write sequence
// runs inside one transaction holding the trip row lock, so a losing
// concurrent caller deterministically sees ErrTripAlreadyAccepted.
func (s *Service) Accept(ctx context.Context, tripID, driverID uuid.UUID) (*models.Assignment, error) {
	ctx = wrap.WithAction(ctx, "accept_trip")
	ctx = wrap.WithTripID(ctx, tripID.String())

	var accepted *models.Assignment

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		trip, err := s.trips.GetForUpdate(ctx, tripID)
		if err != nil {
			return wrap.Error(ctx, err)
		}

		if trip.Status != types.StatusPending {
			return wrap.Error(ctx, types.ErrTripAlreadyAccepted)
		}

		driver, err := s.drivers.GetForUpdate(ctx, driverID)
		if err != nil {
			return wrap.Error(ctx, err)
		}

		if !driver.IsApproved() {
			return wrap.Error(ctx, types.ErrDriverNotVerified)
		}
		if !driver.Available {
			return wrap.Error(ctx, types.ErrDriverNotAvailable)
		}
		if !types.VehicleAllowed(trip.ServiceType, driver.VehicleType) {
			return wrap.Error(ctx, types.ErrVehicleIncompatible)
		}

		now := time.Now()
		if err := s.trips.MarkAccepted(ctx, tripID, now); err != nil {
			return wrap.Error(ctx, err)
		}

		asg := &models.Assignment{
			TripID:     tripID,
			DriverID:   driverID,
			Status:     types.AssignmentAssigned,
			AssignedAt: now,
		}
		if err := s.ledger.Create(ctx, asg); err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not create assignment: %w", err))
		}

		if err := s.drivers.SetAvailability(ctx, driverID, false); err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not flip driver availability: %w", err))
		}

		accepted = asg
		return nil
	})
	if err != nil {
		if errors.Is(err, types.ErrTripAlreadyAccepted) {
			metrics.AcceptConflictsTotal.WithLabelValues("dispatch").Inc()
		}
		return nil, err
	}

	metrics.TripsTotal.WithLabelValues("dispatch", types.StatusAccepted.String()).Inc()
	s.logger.Info(ctx, "trip accepted", "trip_id", tripID, "driver_id", driverID)

	// Notification failure never rolls back the committed acceptance.
	msg := models.TripStatusMessage{
		TripID:    tripID,
		Status:    types.StatusAccepted.String(),
		DriverID:  &driverID,
		Timestamp: accepted.AssignedAt,
	}
	if err := s.notifier.PublishTripStatus(ctx, msg); err != nil {
		s.logger.Warn(ctx, "failed to publish acceptance", "trip_id", tripID, "error", err.Error())
	}

	return accepted, nil
}

// Reject records that the driver declined the trip, so matching stops
// offering it to them. It is advisory: storage failure is logged and the
// caller still gets success.
func (s *Service) Reject(ctx context.Context, tripID, driverID uuid.UUID, reason string) {
	ctx = wrap.WithAction(ctx, "reject_trip")

	if err := s.rejections.Add(ctx, tripID, driverID); err != nil {
		s.logger.Warn(ctx, "failed to record rejection",
			"trip_id", tripID,
			"driver_id", driverID,
			"reason", reason,
			"error", err.Error(),
		)
		return
	}

	s.logger.Debug(ctx, "trip rejected", "trip_id", tripID, "driver_id", driverID, "reason", reason)
}
