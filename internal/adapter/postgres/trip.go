package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
	"github.com/Temutjin2k/trip-dispatch/internal/domain/types"
	"github.com/Temutjin2k/trip-dispatch/pkg/geo"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
)

type TripRepo struct {
	db *pgxpool.Pool
}

func NewTripRepo(db *pgxpool.Pool) *TripRepo {
	return &TripRepo{db: db}
}

const tripColumns = `
	t.id, t.trip_number, t.rider_id, t.service_type, t.vehicle_type, t.company_id,
	t.status, t.pickup_latitude, t.pickup_longitude, t.pickup_address,
	t.destination_latitude, t.destination_longitude, t.destination_address,
	t.estimated_distance_km, t.estimated_duration_min, t.estimated_price,
	t.final_price, t.recorded_distance_km, t.recorded_elapsed_min,
	t.cancellation_reason, t.version,
	t.created_at, t.accepted_at, t.arrived_at, t.picked_up_at, t.completed_at, t.cancelled_at`

func scanTrip(row pgx.Row) (*models.Trip, error) {
	var t models.Trip
	err := row.Scan(
		&t.ID, &t.TripNumber, &t.RiderID, &t.ServiceType, &t.VehicleType, &t.CompanyID,
		&t.Status, &t.Pickup.Latitude, &t.Pickup.Longitude, &t.Pickup.Address,
		&t.Destination.Latitude, &t.Destination.Longitude, &t.Destination.Address,
		&t.EstimatedDistanceKm, &t.EstimatedDurationMin, &t.EstimatedPrice,
		&t.FinalPrice, &t.RecordedDistanceKm, &t.RecordedElapsedMin,
		&t.CancellationReason, &t.Version,
		&t.CreatedAt, &t.AcceptedAt, &t.ArrivedAt, &t.PickedUpAt, &t.CompletedAt, &t.CancelledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrTripNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TripRepo) Create(ctx context.Context, trip *models.Trip) error {
	q := TxorDB(ctx, r.db)

	query := `
		INSERT INTO trips (
			id, trip_number, rider_id, service_type, vehicle_type, company_id, status,
			pickup_latitude, pickup_longitude, pickup_address,
			destination_latitude, destination_longitude, destination_address,
			estimated_distance_km, estimated_duration_min, estimated_price
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING created_at, version;`

	err := q.QueryRow(ctx, query,
		trip.ID, trip.TripNumber, trip.RiderID, trip.ServiceType, trip.VehicleType, trip.CompanyID, trip.Status,
		trip.Pickup.Latitude, trip.Pickup.Longitude, trip.Pickup.Address,
		trip.Destination.Latitude, trip.Destination.Longitude, trip.Destination.Address,
		trip.EstimatedDistanceKm, trip.EstimatedDurationMin, trip.EstimatedPrice,
	).Scan(&trip.CreatedAt, &trip.Version)
	if err != nil {
		return fmt.Errorf("trip repo: Create: %w", err)
	}

	return nil
}

func (r *TripRepo) Get(ctx context.Context, tripID uuid.UUID) (*models.Trip, error) {
	q := TxorDB(ctx, r.db)

	query := fmt.Sprintf(`SELECT %s FROM trips t WHERE t.id = $1;`, tripColumns)

	trip, err := scanTrip(q.QueryRow(ctx, query, tripID))
	if err != nil {
		if errors.Is(err, types.ErrTripNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("trip repo: Get: %w", err)
	}
	return trip, nil
}

// GetForUpdate loads the trip row under an exclusive row-level lock.
// Must run inside a transaction; concurrent callers for the same trip
// serialize behind this statement.
func (r *TripRepo) GetForUpdate(ctx context.Context, tripID uuid.UUID) (*models.Trip, error) {
	q := TxorDB(ctx, r.db)

	query := fmt.Sprintf(`SELECT %s FROM trips t WHERE t.id = $1 FOR UPDATE;`, tripColumns)

	trip, err := scanTrip(q.QueryRow(ctx, query, tripID))
	if err != nil {
		if errors.Is(err, types.ErrTripNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("trip repo: GetForUpdate: %w", err)
	}
	return trip, nil
}

// MarkAccepted moves a pending trip to ACCEPTED. The caller holds the row
// lock, so the WHERE status guard is a belt-and-braces check.
func (r *TripRepo) MarkAccepted(ctx context.Context, tripID uuid.UUID, at time.Time) error {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE trips
		SET status = $2, accepted_at = $3, version = version + 1, updated_at = now()
		WHERE id = $1 AND status = $4;`

	cmdTag, err := q.Exec(ctx, query, tripID, types.StatusAccepted, at, types.StatusPending)
	if err != nil {
		return fmt.Errorf("trip repo: MarkAccepted: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return types.ErrTripAlreadyAccepted
	}

	return nil
}

// AdvanceStatus applies a versioned status transition. Write-once fields use
// COALESCE so an already-set value is never replaced. Returns false when the
// expected (status, version) pair no longer matches, i.e. a concurrent writer
// got there first.
func (r *TripRepo) AdvanceStatus(ctx context.Context, upd models.TripStatusUpdate) (bool, error) {
	q := TxorDB(ctx, r.db)

	var tsColumn string
	switch upd.ToStatus {
	case types.StatusArrived:
		tsColumn = "arrived_at"
	case types.StatusInProgress:
		tsColumn = "picked_up_at"
	case types.StatusCompleted:
		tsColumn = "completed_at"
	case types.StatusCancelled:
		tsColumn = "cancelled_at"
	default:
		return false, fmt.Errorf("trip repo: AdvanceStatus: unsupported target %s", upd.ToStatus)
	}

	query := fmt.Sprintf(`
		UPDATE trips
		SET status = $2,
			%s = COALESCE(%s, $3),
			final_price = COALESCE(final_price, $4),
			recorded_distance_km = COALESCE(recorded_distance_km, $5),
			recorded_elapsed_min = COALESCE(recorded_elapsed_min, $6),
			cancellation_reason = COALESCE(cancellation_reason, $7),
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND status = $8 AND version = $9;`, tsColumn, tsColumn)

	cmdTag, err := q.Exec(ctx, query,
		upd.TripID, upd.ToStatus, upd.At,
		upd.FinalPrice, upd.RecordedDistanceKm, upd.RecordedElapsedMin, upd.CancellationReason,
		upd.FromStatus, upd.FromVersion,
	)
	if err != nil {
		return false, fmt.Errorf("trip repo: AdvanceStatus: %w", err)
	}

	return cmdTag.RowsAffected() > 0, nil
}

// FindPendingInBox returns pending trips inside the bounding box created
// after the given instant, oldest first. The box is a coarse pre-filter;
// callers re-check with exact distance.
func (r *TripRepo) FindPendingInBox(ctx context.Context, box geo.BoundingBox, since time.Time) ([]*models.Trip, error) {
	q := TxorDB(ctx, r.db)

	query := fmt.Sprintf(`
		SELECT %s FROM trips t
		WHERE t.status = $1
		  AND t.created_at >= $2
		  AND t.pickup_latitude BETWEEN $3 AND $4
		  AND t.pickup_longitude BETWEEN $5 AND $6
		ORDER BY t.created_at ASC;`, tripColumns)

	rows, err := q.Query(ctx, query,
		types.StatusPending, since,
		box.MinLat, box.MaxLat, box.MinLon, box.MaxLon,
	)
	if err != nil {
		return nil, fmt.Errorf("trip repo: FindPendingInBox: %w", err)
	}
	defer rows.Close()

	var trips []*models.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("trip repo: FindPendingInBox scan: %w", err)
		}
		trips = append(trips, trip)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("trip repo: FindPendingInBox rows: %w", err)
	}

	return trips, nil
}

func (r *TripRepo) CountByDate(ctx context.Context, date time.Time) (int, error) {
	q := TxorDB(ctx, r.db)

	var count int
	query := "SELECT COUNT(*) FROM trips WHERE DATE(created_at) = $1;"

	err := q.QueryRow(ctx, query, date.Format("2006-01-02")).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("trip repo: CountByDate: %w", err)
	}
	return count, nil
}
