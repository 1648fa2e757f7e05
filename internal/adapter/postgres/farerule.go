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
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
)

type FareRuleRepo struct {
	db *pgxpool.Pool
}

func NewFareRuleRepo(db *pgxpool.Pool) *FareRuleRepo {
	return &FareRuleRepo{db: db}
}

// Resolve returns the fare rule active at the given instant for the
// (vehicle type, company) pair. A company-specific rule wins over the
// platform-wide one (company_id IS NULL). ErrFareRuleNotFound when neither
// exists; settlement treats that as "use defaults", never as a failure.
func (r *FareRuleRepo) Resolve(ctx context.Context, vehicleType types.VehicleType, companyID *uuid.UUID, at time.Time) (*models.FareRule, error) {
	q := TxorDB(ctx, r.db)

	query := `
		SELECT id, vehicle_type, company_id, base_fare, per_km, per_min,
		       commission_percent, commission_value, active_from, active_to
		FROM fare_rules
		WHERE vehicle_type = $1
		  AND (company_id = $2 OR company_id IS NULL)
		  AND active_from <= $3
		  AND (active_to IS NULL OR active_to >= $3)
		ORDER BY company_id NULLS LAST, active_from DESC
		LIMIT 1;`

	var rule models.FareRule
	err := q.QueryRow(ctx, query, vehicleType, companyID, at).Scan(
		&rule.ID, &rule.VehicleType, &rule.CompanyID,
		&rule.BaseFare, &rule.PerKm, &rule.PerMin,
		&rule.CommissionPercent, &rule.CommissionValue,
		&rule.ActiveFrom, &rule.ActiveTo,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrFareRuleNotFound
		}
		return nil, fmt.Errorf("fare rule repo: Resolve: %w", err)
	}

	return &rule, nil
}
