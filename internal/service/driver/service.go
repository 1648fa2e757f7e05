package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
	"github.com/Temutjin2k/trip-dispatch/internal/domain/types"
	"github.com/Temutjin2k/trip-dispatch/pkg/geo"
	"github.com/Temutjin2k/trip-dispatch/pkg/logger"
	wrap "github.com/Temutjin2k/trip-dispatch/pkg/logger/wrapper"
	"github.com/Temutjin2k/trip-dispatch/pkg/metrics"
	"github.com/Temutjin2k/trip-dispatch/pkg/trm"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
)

type DriverRepo interface {
	Get(ctx context.Context, driverID uuid.UUID) (*models.Driver, error)
	GetForUpdate(ctx context.Context, driverID uuid.UUID) (*models.Driver, error)
	SetAvailability(ctx context.Context, driverID uuid.UUID, available bool) error
	UpdateLocation(ctx context.Context, driverID uuid.UUID, lat, lon float64, at time.Time) error
}

type AssignmentRepo interface {
	GetActiveByDriver(ctx context.Context, driverID uuid.UUID) (*models.Assignment, error)
}

// LocationIndex mirrors positions into the live geo cache. Best-effort:
// the relational store remains authoritative.
type LocationIndex interface {
	Upsert(ctx context.Context, driverID uuid.UUID, lat, lon float64) error
	Remove(ctx context.Context, driverID uuid.UUID) error
}

// Service manages driver availability sessions and location pings.
type Service struct {
	drivers     DriverRepo
	assignments AssignmentRepo
	locations   LocationIndex
	trm         trm.TxManager
	logger      logger.Logger
}

func New(drivers DriverRepo, assignments AssignmentRepo, locations LocationIndex, trm trm.TxManager, logger logger.Logger) *Service {
	return &Service{
		drivers:     drivers,
		assignments: assignments,
		locations:   locations,
		trm:         trm,
		logger:      logger,
	}
}

// GoOnline makes the driver dispatchable at the given position. Only
// approved drivers without an active assignment may go online.
func (s *Service) GoOnline(ctx context.Context, driverID uuid.UUID, lat, lon float64) error {
	ctx = wrap.WithAction(ctx, "driver_go_online")

	if err := geo.ValidateCoordinate(lat, lon); err != nil {
		return wrap.Error(ctx, err)
	}

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		driver, err := s.drivers.GetForUpdate(ctx, driverID)
		if err != nil {
			return wrap.Error(ctx, err)
		}

		if !driver.IsApproved() {
			return wrap.Error(ctx, types.ErrDriverNotVerified)
		}

		if _, err := s.assignments.GetActiveByDriver(ctx, driverID); err == nil {
			return wrap.Error(ctx, types.ErrDriverOnTrip)
		} else if !errors.Is(err, types.ErrAssignmentNotFound) {
			return wrap.Error(ctx, err)
		}

		if err := s.drivers.UpdateLocation(ctx, driverID, lat, lon, time.Now()); err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not store location: %w", err))
		}
		if err := s.drivers.SetAvailability(ctx, driverID, true); err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not set availability: %w", err))
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.indexUpsert(ctx, driverID, lat, lon)
	metrics.DriversAvailableGauge.WithLabelValues("dispatch").Inc()
	s.logger.Info(ctx, "driver online", "driver_id", driverID)

	return nil
}

// GoOffline withdraws the driver from dispatch. A driver on an active trip
// cannot go offline; the trip's terminal transition releases them instead.
func (s *Service) GoOffline(ctx context.Context, driverID uuid.UUID) error {
	ctx = wrap.WithAction(ctx, "driver_go_offline")

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		if _, err := s.drivers.GetForUpdate(ctx, driverID); err != nil {
			return wrap.Error(ctx, err)
		}

		if _, err := s.assignments.GetActiveByDriver(ctx, driverID); err == nil {
			return wrap.Error(ctx, types.ErrDriverOnTrip)
		} else if !errors.Is(err, types.ErrAssignmentNotFound) {
			return wrap.Error(ctx, err)
		}

		if err := s.drivers.SetAvailability(ctx, driverID, false); err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not set availability: %w", err))
		}

		return nil
	})
	if err != nil {
		return err
	}

	if s.locations != nil {
		if err := s.locations.Remove(ctx, driverID); err != nil {
			s.logger.Warn(ctx, "could not remove driver from location index", "driver_id", driverID, "error", err.Error())
		}
	}
	metrics.DriversAvailableGauge.WithLabelValues("dispatch").Dec()
	s.logger.Info(ctx, "driver offline", "driver_id", driverID)

	return nil
}

// UpdateLocation records a position ping in both stores.
func (s *Service) UpdateLocation(ctx context.Context, driverID uuid.UUID, lat, lon float64) error {
	ctx = wrap.WithAction(ctx, "driver_update_location")

	if err := geo.ValidateCoordinate(lat, lon); err != nil {
		return wrap.Error(ctx, err)
	}

	if err := s.drivers.UpdateLocation(ctx, driverID, lat, lon, time.Now()); err != nil {
		return wrap.Error(ctx, err)
	}

	s.indexUpsert(ctx, driverID, lat, lon)

	return nil
}

func (s *Service) indexUpsert(ctx context.Context, driverID uuid.UUID, lat, lon float64) {
	if s.locations == nil {
		return
	}
	if err := s.locations.Upsert(ctx, driverID, lat, lon); err != nil {
		s.logger.Warn(ctx, "could not update location index", "driver_id", driverID, "error", err.Error())
	}
}
