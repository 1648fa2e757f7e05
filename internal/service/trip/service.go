package trip

import (
	"context"
	"errors"
	"fmt"
	"math"
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

const averageSpeedKmh = 50

// Service drives a trip from creation to a terminal state.
type Service struct {
	trips       TripRepo
	drivers     DriverRepo
	assignments AssignmentRepo
	settler     Settler
	notifier    Notifier
	pusher      DriverPusher
	trm         trm.TxManager
	logger      logger.Logger
}

func New(
	trips TripRepo,
	drivers DriverRepo,
	assignments AssignmentRepo,
	settler Settler,
	notifier Notifier,
	pusher DriverPusher,
	trm trm.TxManager,
	logger logger.Logger,
) *Service {
	return &Service{
		trips:       trips,
		drivers:     drivers,
		assignments: assignments,
		settler:     settler,
		notifier:    notifier,
		pusher:      pusher,
		trm:         trm,
		logger:      logger,
	}
}

// Create registers a new trip request as PENDING, pricing it from the active
// tariff and assigning a human-readable trip number.
func (s *Service) Create(ctx context.Context, trip *models.Trip) (*models.Trip, error) {
	ctx = wrap.WithAction(ctx, "create_trip")

	if err := geo.ValidateCoordinate(trip.Pickup.Latitude, trip.Pickup.Longitude); err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("pickup: %w", err))
	}
	if err := geo.ValidateCoordinate(trip.Destination.Latitude, trip.Destination.Longitude); err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("destination: %w", err))
	}

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		distance := geo.Haversine(
			trip.Pickup.Latitude, trip.Pickup.Longitude,
			trip.Destination.Latitude, trip.Destination.Longitude,
		)
		duration := estimateDuration(distance)

		tripNumber, err := s.generateTripNumber(ctx)
		if err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not generate trip number: %w", err))
		}

		trip.ID = uuid.MustNew()
		trip.TripNumber = tripNumber
		trip.Status = types.StatusPending
		trip.EstimatedDistanceKm = distance
		trip.EstimatedDurationMin = duration
		trip.EstimatedPrice = s.settler.Estimate(ctx, trip.VehicleType, trip.CompanyID, distance, duration)

		if err := s.trips.Create(ctx, trip); err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not create trip: %w", err))
		}

		return nil
	})
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	metrics.TripsTotal.WithLabelValues("dispatch", types.StatusPending.String()).Inc()
	s.logger.Info(ctx, "trip created", "trip_id", trip.ID, "trip_number", trip.TripNumber)

	msg := models.TripRequestedMessage{
		TripID:      trip.ID,
		TripNumber:  trip.TripNumber,
		ServiceType: string(trip.ServiceType),
		VehicleType: string(trip.VehicleType),
		PickupLocation: models.LocationMessage{
			Lat: trip.Pickup.Latitude, Lng: trip.Pickup.Longitude, Address: trip.Pickup.Address,
		},
		DestinationLocation: models.LocationMessage{
			Lat: trip.Destination.Latitude, Lng: trip.Destination.Longitude, Address: trip.Destination.Address,
		},
		EstimatedPrice: trip.EstimatedPrice,
	}
	if err := s.notifier.PublishTripRequested(ctx, msg); err != nil {
		s.logger.Warn(ctx, "failed to publish trip request", "trip_id", trip.ID, "error", err.Error())
	}

	return trip, nil
}

func (s *Service) Get(ctx context.Context, tripID uuid.UUID) (*models.Trip, error) {
	ctx = wrap.WithAction(ctx, "get_trip")

	trip, err := s.trips.Get(ctx, tripID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	return trip, nil
}

// AdvanceInput is one driver-signalled lifecycle step. Recorded distance and
// elapsed time may ride along on any transition and persist write-once.
type AdvanceInput struct {
	TripID             uuid.UUID
	DriverID           uuid.UUID
	Target             types.TripStatus
	FinalPrice         *float64
	RecordedDistanceKm *float64
	RecordedElapsedMin *int
	CancellationReason *string
}

// Advance applies one lifecycle transition with an optimistic version check.
// The caller must own the trip's active assignment; cancelling an unassigned
// pending trip is the one exception. All side effects of the transition,
// including fare settlement on completion, commit in the same transaction.
func (s *Service) Advance(ctx context.Context, in AdvanceInput) (*models.Trip, error) {
	ctx = wrap.WithAction(ctx, "advance_trip_status")
	ctx = wrap.WithTripID(ctx, in.TripID.String())

	var advanced *models.Trip

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		trip, err := s.trips.Get(ctx, in.TripID)
		if err != nil {
			return wrap.Error(ctx, err)
		}

		if trip.Status.IsTerminal() || !transitionAllowed(trip.Status, in.Target) {
			return wrap.Error(ctx, fmt.Errorf("%w: %s -> %s", types.ErrInvalidTransition, trip.Status, in.Target))
		}

		asg, err := s.assignments.GetActiveByTrip(ctx, in.TripID)
		switch {
		case err == nil:
			if asg.DriverID != in.DriverID {
				return wrap.Error(ctx, types.ErrNotAssignmentOwner)
			}
		case errors.Is(err, types.ErrAssignmentNotFound):
			// Only an unassigned pending trip may change state without an owner.
			if trip.Status != types.StatusPending || in.Target != types.StatusCancelled {
				return wrap.Error(ctx, types.ErrNotAssignmentOwner)
			}
			asg = nil
		default:
			return wrap.Error(ctx, err)
		}

		upd := models.TripStatusUpdate{
			TripID:             in.TripID,
			FromStatus:         trip.Status,
			FromVersion:        trip.Version,
			ToStatus:           in.Target,
			At:                 time.Now(),
			FinalPrice:         sanitizePositive(in.FinalPrice),
			RecordedDistanceKm: sanitizePositive(in.RecordedDistanceKm),
			RecordedElapsedMin: sanitizePositiveInt(in.RecordedElapsedMin),
			CancellationReason: in.CancellationReason,
		}

		ok, err := s.trips.AdvanceStatus(ctx, upd)
		if err != nil {
			return wrap.Error(ctx, err)
		}
		if !ok {
			return wrap.Error(ctx, types.ErrTripStateChanged)
		}

		if asg != nil {
			if err := s.assignments.UpdateStatus(ctx, in.TripID, assignmentStatusFor(in.Target)); err != nil {
				return wrap.Error(ctx, fmt.Errorf("could not update assignment: %w", err))
			}
		}

		switch in.Target {
		case types.StatusCompleted:
			if err := s.complete(ctx, in, asg); err != nil {
				return err
			}
		case types.StatusCancelled:
			if asg != nil {
				if err := s.drivers.SetAvailability(ctx, asg.DriverID, true); err != nil {
					return wrap.Error(ctx, fmt.Errorf("could not release driver: %w", err))
				}
			}
		}

		advanced, err = s.trips.Get(ctx, in.TripID)
		if err != nil {
			return wrap.Error(ctx, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TripsTotal.WithLabelValues("dispatch", in.Target.String()).Inc()
	s.logger.Info(ctx, "trip status advanced", "trip_id", in.TripID, "status", in.Target)

	s.notifyStatus(ctx, advanced, in.DriverID)

	return advanced, nil
}

// complete performs the completion side effects inside the transaction:
// settle the fare, release the driver, bump their lifetime counter.
func (s *Service) complete(ctx context.Context, in AdvanceInput, asg *models.Assignment) error {
	trip, err := s.trips.Get(ctx, in.TripID)
	if err != nil {
		return wrap.Error(ctx, err)
	}

	if _, err := s.settler.Settle(ctx, trip); err != nil {
		return wrap.Error(ctx, fmt.Errorf("could not settle fare: %w", err))
	}

	if asg != nil {
		if err := s.drivers.SetAvailability(ctx, asg.DriverID, true); err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not release driver: %w", err))
		}
		if err := s.drivers.IncrementTripCount(ctx, asg.DriverID); err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not bump driver trip count: %w", err))
		}
	}

	return nil
}

// notifyStatus fans the committed transition out to rabbit and the driver's
// live websocket. Both paths are fire-and-forget.
func (s *Service) notifyStatus(ctx context.Context, trip *models.Trip, driverID uuid.UUID) {
	msg := models.TripStatusMessage{
		TripID:     trip.ID,
		Status:     trip.Status.String(),
		DriverID:   &driverID,
		FinalPrice: trip.FinalPrice,
		Timestamp:  time.Now(),
	}
	if err := s.notifier.PublishTripStatus(ctx, msg); err != nil {
		s.logger.Warn(ctx, "failed to publish status update", "trip_id", trip.ID, "error", err.Error())
	}

	if s.pusher != nil {
		push := map[string]any{
			"type":    "trip_status",
			"trip_id": trip.ID.String(),
			"status":  trip.Status.String(),
		}
		if err := s.pusher.SendTo(driverID, push); err != nil {
			s.logger.Debug(ctx, "driver not reachable over websocket", "driver_id", driverID)
		}
	}
}

// estimateDuration converts distance to whole minutes at the average city speed.
func estimateDuration(distanceKm float64) int {
	if distanceKm <= 0 {
		return 0
	}
	return int(math.Ceil(distanceKm / averageSpeedKmh * 60))
}

func sanitizePositive(v *float64) *float64 {
	if v == nil || *v <= 0 || math.IsNaN(*v) {
		return nil
	}
	return v
}

func sanitizePositiveInt(v *int) *int {
	if v == nil || *v <= 0 {
		return nil
	}
	return v
}
