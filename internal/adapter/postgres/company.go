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

type CompanyRepo struct {
	db *pgxpool.Pool
}

func NewCompanyRepo(db *pgxpool.Pool) *CompanyRepo {
	return &CompanyRepo{db: db}
}

func (r *CompanyRepo) Get(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	q := TxorDB(ctx, r.db)

	query := `
		SELECT id, name, default_commission_percent, created_at
		FROM companies
		WHERE id = $1;`

	var c models.Company
	err := q.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.DefaultCommissionPercent, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrCompanyNotFound
		}
		return nil, fmt.Errorf("company repo: Get: %w", err)
	}

	return &c, nil
}

// UpsertMetrics accumulates one completed trip and its applied price
// into the company's rollup row.
func (r *CompanyRepo) UpsertMetrics(ctx context.Context, companyID uuid.UUID, revenue float64) error {
	q := TxorDB(ctx, r.db)

	query := `
		INSERT INTO company_metrics (company_id, trips_total, revenue_total, updated_at)
		VALUES ($1, 1, $2, now())
		ON CONFLICT (company_id) DO UPDATE SET
			trips_total   = company_metrics.trips_total + 1,
			revenue_total = company_metrics.revenue_total + EXCLUDED.revenue_total,
			updated_at    = now();`

	if _, err := q.Exec(ctx, query, companyID, revenue); err != nil {
		return fmt.Errorf("company repo: UpsertMetrics: %w", err)
	}

	return nil
}
