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

type DriverRepo struct {
	db *pgxpool.Pool
}

func NewDriverRepo(db *pgxpool.Pool) *DriverRepo {
	return &DriverRepo{db: db}
}

const driverColumns = `
	d.id, d.vehicle_type, d.verification, d.available, d.company_id,
	d.last_latitude, d.last_longitude, d.last_location_at, d.total_trips,
	d.created_at, d.updated_at`

func scanDriver(row pgx.Row) (*models.Driver, error) {
	var d models.Driver
	err := row.Scan(
		&d.ID, &d.VehicleType, &d.Verification, &d.Available, &d.CompanyID,
		&d.LastLatitude, &d.LastLongitude, &d.LastLocationAt, &d.TotalTrips,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrDriverNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *DriverRepo) Get(ctx context.Context, driverID uuid.UUID) (*models.Driver, error) {
	q := TxorDB(ctx, r.db)

	query := fmt.Sprintf(`SELECT %s FROM drivers d WHERE d.id = $1;`, driverColumns)

	driver, err := scanDriver(q.QueryRow(ctx, query, driverID))
	if err != nil {
		if errors.Is(err, types.ErrDriverNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("driver repo: Get: %w", err)
	}
	return driver, nil
}

// GetForUpdate locks the availability record for the duration of the
// surrounding transaction so acceptance cannot race availability toggles.
func (r *DriverRepo) GetForUpdate(ctx context.Context, driverID uuid.UUID) (*models.Driver, error) {
	q := TxorDB(ctx, r.db)

	query := fmt.Sprintf(`SELECT %s FROM drivers d WHERE d.id = $1 FOR UPDATE;`, driverColumns)

	driver, err := scanDriver(q.QueryRow(ctx, query, driverID))
	if err != nil {
		if errors.Is(err, types.ErrDriverNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("driver repo: GetForUpdate: %w", err)
	}
	return driver, nil
}

func (r *DriverRepo) SetAvailability(ctx context.Context, driverID uuid.UUID, available bool) error {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE drivers
		SET available = $2, updated_at = now()
		WHERE id = $1;`

	cmdTag, err := q.Exec(ctx, query, driverID, available)
	if err != nil {
		return fmt.Errorf("driver repo: SetAvailability: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return types.ErrDriverNotFound
	}

	return nil
}

func (r *DriverRepo) UpdateLocation(ctx context.Context, driverID uuid.UUID, lat, lon float64, at time.Time) error {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE drivers
		SET last_latitude = $2, last_longitude = $3, last_location_at = $4, updated_at = now()
		WHERE id = $1;`

	cmdTag, err := q.Exec(ctx, query, driverID, lat, lon, at)
	if err != nil {
		return fmt.Errorf("driver repo: UpdateLocation: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return types.ErrDriverNotFound
	}

	return nil
}

func (r *DriverRepo) IncrementTripCount(ctx context.Context, driverID uuid.UUID) error {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE drivers
		SET total_trips = total_trips + 1, updated_at = now()
		WHERE id = $1;`

	cmdTag, err := q.Exec(ctx, query, driverID)
	if err != nil {
		return fmt.Errorf("driver repo: IncrementTripCount: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return types.ErrDriverNotFound
	}

	return nil
}

// FindAvailableInBox returns approved, available drivers whose last known
// location is inside the box and fresh enough. Used as the fallback supply
// source when the live location index is unreachable.
func (r *DriverRepo) FindAvailableInBox(ctx context.Context, box geo.BoundingBox, locationSince time.Time) ([]*models.Driver, error) {
	q := TxorDB(ctx, r.db)

	query := fmt.Sprintf(`
		SELECT %s FROM drivers d
		WHERE d.available = true
		  AND d.verification = $1
		  AND d.last_location_at >= $2
		  AND d.last_latitude BETWEEN $3 AND $4
		  AND d.last_longitude BETWEEN $5 AND $6;`, driverColumns)

	rows, err := q.Query(ctx, query,
		types.VerificationApproved, locationSince,
		box.MinLat, box.MaxLat, box.MinLon, box.MaxLon,
	)
	if err != nil {
		return nil, fmt.Errorf("driver repo: FindAvailableInBox: %w", err)
	}
	defer rows.Close()

	var drivers []*models.Driver
	for rows.Next() {
		driver, err := scanDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("driver repo: FindAvailableInBox scan: %w", err)
		}
		drivers = append(drivers, driver)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("driver repo: FindAvailableInBox rows: %w", err)
	}

	return drivers, nil
}
