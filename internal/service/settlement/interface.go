package settlement

import (
	"context"
	"time"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
	"github.com/Temutjin2k/trip-dispatch/internal/domain/types"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
)

type FareRuleRepo interface {
	Resolve(ctx context.Context, vehicleType types.VehicleType, companyID *uuid.UUID, at time.Time) (*models.FareRule, error)
}

type SettlementRepo interface {
	Exists(ctx context.Context, tripID uuid.UUID) (bool, error)
	Create(ctx context.Context, s *models.Settlement) error
	GetByTrip(ctx context.Context, tripID uuid.UUID) (*models.Settlement, error)
}

type CompanyRepo interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Company, error)
	UpsertMetrics(ctx context.Context, companyID uuid.UUID, revenue float64) error
}
