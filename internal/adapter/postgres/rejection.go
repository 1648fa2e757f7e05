package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
)

type RejectionRepo struct {
	db *pgxpool.Pool
}

func NewRejectionRepo(db *pgxpool.Pool) *RejectionRepo {
	return &RejectionRepo{db: db}
}

// Add marks a trip as rejected by the driver so it stops appearing in their
// feed. Duplicate rejections are a no-op.
func (r *RejectionRepo) Add(ctx context.Context, tripID, driverID uuid.UUID) error {
	q := TxorDB(ctx, r.db)

	query := `
		INSERT INTO trip_rejections (trip_id, driver_id)
		VALUES ($1, $2)
		ON CONFLICT (trip_id, driver_id) DO NOTHING;`

	if _, err := q.Exec(ctx, query, tripID, driverID); err != nil {
		return fmt.Errorf("rejection repo: Add: %w", err)
	}

	return nil
}

// TripIDsForDriver returns the set of trips the driver has rejected, used to
// filter their nearby feed.
func (r *RejectionRepo) TripIDsForDriver(ctx context.Context, driverID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	q := TxorDB(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT trip_id FROM trip_rejections WHERE driver_id = $1;`, driverID)
	if err != nil {
		return nil, fmt.Errorf("rejection repo: TripIDsForDriver: %w", err)
	}
	defer rows.Close()

	rejected := make(map[uuid.UUID]struct{})
	for rows.Next() {
		var tripID uuid.UUID
		if err := rows.Scan(&tripID); err != nil {
			return nil, fmt.Errorf("rejection repo: TripIDsForDriver: scan: %w", err)
		}
		rejected[tripID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rejection repo: TripIDsForDriver: rows: %w", err)
	}

	return rejected, nil
}
