package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
	"github.com/Temutjin2k/trip-dispatch/internal/domain/types"
	pgdb "github.com/Temutjin2k/trip-dispatch/pkg/postgres"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
)

type AssignmentRepo struct {
	db *pgxpool.Pool
}

func NewAssignmentRepo(db *pgxpool.Pool) *AssignmentRepo {
	return &AssignmentRepo{db: db}
}

func (r *AssignmentRepo) Create(ctx context.Context, asg *models.Assignment) error {
	q := TxorDB(ctx, r.db)

	query := `
		INSERT INTO assignments (trip_id, driver_id, status, assigned_at)
		VALUES ($1, $2, $3, $4)
		RETURNING updated_at;`

	err := q.QueryRow(ctx, query, asg.TripID, asg.DriverID, asg.Status, asg.AssignedAt).Scan(&asg.UpdatedAt)
	if err != nil {
		if pgdb.IsForeignKeyViolation(err) {
			return types.ErrTripNotFound
		}
		return fmt.Errorf("assignment repo: Create: %w", err)
	}

	return nil
}

// GetActiveByTrip returns the single non-terminal assignment for a trip,
// or ErrAssignmentNotFound when the trip has none.
func (r *AssignmentRepo) GetActiveByTrip(ctx context.Context, tripID uuid.UUID) (*models.Assignment, error) {
	q := TxorDB(ctx, r.db)

	query := `
		SELECT trip_id, driver_id, status, assigned_at, updated_at
		FROM assignments
		WHERE trip_id = $1 AND status NOT IN ($2, $3);`

	var asg models.Assignment
	err := q.QueryRow(ctx, query, tripID, types.AssignmentCompleted, types.AssignmentCancelled).
		Scan(&asg.TripID, &asg.DriverID, &asg.Status, &asg.AssignedAt, &asg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("assignment repo: GetActiveByTrip: %w", err)
	}

	return &asg, nil
}

// GetActiveByDriver returns the driver's current non-terminal assignment,
// or ErrAssignmentNotFound when the driver is free.
func (r *AssignmentRepo) GetActiveByDriver(ctx context.Context, driverID uuid.UUID) (*models.Assignment, error) {
	q := TxorDB(ctx, r.db)

	query := `
		SELECT trip_id, driver_id, status, assigned_at, updated_at
		FROM assignments
		WHERE driver_id = $1 AND status NOT IN ($2, $3);`

	var asg models.Assignment
	err := q.QueryRow(ctx, query, driverID, types.AssignmentCompleted, types.AssignmentCancelled).
		Scan(&asg.TripID, &asg.DriverID, &asg.Status, &asg.AssignedAt, &asg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("assignment repo: GetActiveByDriver: %w", err)
	}

	return &asg, nil
}

// UpdateStatus moves the trip's active assignment to the given status,
// keeping it in lock-step with the trip row.
func (r *AssignmentRepo) UpdateStatus(ctx context.Context, tripID uuid.UUID, status types.AssignmentStatus) error {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE assignments
		SET status = $2, updated_at = now()
		WHERE trip_id = $1 AND status NOT IN ($3, $4);`

	cmdTag, err := q.Exec(ctx, query, tripID, status, types.AssignmentCompleted, types.AssignmentCancelled)
	if err != nil {
		return fmt.Errorf("assignment repo: UpdateStatus: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return types.ErrAssignmentNotFound
	}

	return nil
}
