package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
	"github.com/Temutjin2k/trip-dispatch/internal/domain/types"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
)

type SettlementRepo struct {
	db *pgxpool.Pool
}

func NewSettlementRepo(db *pgxpool.Pool) *SettlementRepo {
	return &SettlementRepo{db: db}
}

// Exists reports whether a settlement has already been written for the trip.
func (r *SettlementRepo) Exists(ctx context.Context, tripID uuid.UUID) (bool, error) {
	q := TxorDB(ctx, r.db)

	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM settlements WHERE trip_id = $1);`, tripID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("settlement repo: Exists: %w", err)
	}

	return exists, nil
}

// Create inserts the settlement record. The unique constraint on trip_id
// makes the operation idempotent: a concurrent duplicate is silently dropped
// and the first row stands.
func (r *SettlementRepo) Create(ctx context.Context, s *models.Settlement) error {
	q := TxorDB(ctx, r.db)

	query := `
		INSERT INTO settlements (
			id, trip_id, applied_price, fare_rule_id,
			commission_percent, commission_value, driver_earning, company_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (trip_id) DO NOTHING
		RETURNING created_at;`

	err := q.QueryRow(ctx, query,
		s.ID, s.TripID, s.AppliedPrice, s.FareRuleID,
		s.CommissionPercent, s.CommissionValue, s.DriverEarning, s.CompanyID,
	).Scan(&s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the race to another writer, the ledger already holds a row.
			return nil
		}
		return fmt.Errorf("settlement repo: Create: %w", err)
	}

	return nil
}

// GetByTrip returns the settlement for a trip, if any.
func (r *SettlementRepo) GetByTrip(ctx context.Context, tripID uuid.UUID) (*models.Settlement, error) {
	q := TxorDB(ctx, r.db)

	query := `
		SELECT id, trip_id, applied_price, fare_rule_id,
		       commission_percent, commission_value, driver_earning, company_id, created_at
		FROM settlements
		WHERE trip_id = $1;`

	var s models.Settlement
	err := q.QueryRow(ctx, query, tripID).Scan(
		&s.ID, &s.TripID, &s.AppliedPrice, &s.FareRuleID,
		&s.CommissionPercent, &s.CommissionValue, &s.DriverEarning, &s.CompanyID, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("settlement repo: GetByTrip: %w", err)
	}

	return &s, nil
}
