package settlement

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
	"github.com/Temutjin2k/trip-dispatch/internal/domain/types"
	"github.com/Temutjin2k/trip-dispatch/pkg/logger"
	wrap "github.com/Temutjin2k/trip-dispatch/pkg/logger/wrapper"
	"github.com/Temutjin2k/trip-dispatch/pkg/metrics"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
)

// Service freezes the financial record of a completed trip and resolves
// tariffs for price estimates.
type Service struct {
	fareRules   FareRuleRepo
	settlements SettlementRepo
	companies   CompanyRepo
	logger      logger.Logger
}

func New(fareRules FareRuleRepo, settlements SettlementRepo, companies CompanyRepo, logger logger.Logger) *Service {
	return &Service{
		fareRules:   fareRules,
		settlements: settlements,
		companies:   companies,
		logger:      logger,
	}
}

// Settle writes the one-time fare snapshot for a completed trip and bumps the
// company aggregates. Safe to call more than once: the first snapshot wins
// and later calls are no-ops.
//
// A missing fare rule or company row never fails the call; the chain falls
// through to defaults so completion is never blocked by pricing config.
// Callers run Settle inside the completion transaction.
func (s *Service) Settle(ctx context.Context, trip *models.Trip) (*models.Settlement, error) {
	ctx = wrap.WithAction(ctx, "settle_fare")

	exists, err := s.settlements.Exists(ctx, trip.ID)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("could not check settlement existence: %w", err))
	}
	if exists {
		s.logger.Debug(ctx, "settlement already exists, skipping", "trip_id", trip.ID)
		return nil, nil
	}

	appliedPrice := trip.EstimatedPrice
	if trip.FinalPrice != nil {
		appliedPrice = *trip.FinalPrice
	}
	if appliedPrice < 0 || math.IsNaN(appliedPrice) {
		appliedPrice = 0
	}

	rule, err := s.fareRules.Resolve(ctx, trip.VehicleType, trip.CompanyID, time.Now())
	if err != nil && !errors.Is(err, types.ErrFareRuleNotFound) {
		return nil, wrap.Error(ctx, fmt.Errorf("could not resolve fare rule: %w", err))
	}

	var company *models.Company
	if trip.CompanyID != nil {
		company, err = s.companies.Get(ctx, *trip.CompanyID)
		if err != nil && !errors.Is(err, types.ErrCompanyNotFound) {
			return nil, wrap.Error(ctx, fmt.Errorf("could not load company: %w", err))
		}
	}

	c := resolveCommission(ctx, rule, company)

	var commissionValue, commissionPercent float64
	if c.Value != nil {
		commissionValue = round2(*c.Value)
		if appliedPrice > 0 {
			commissionPercent = round2(commissionValue / appliedPrice * 100)
		}
	} else {
		commissionPercent = round2(c.Percent)
		commissionValue = round2(appliedPrice * commissionPercent / 100)
	}

	snapshot := &models.Settlement{
		ID:                uuid.MustNew(),
		TripID:            trip.ID,
		AppliedPrice:      round2(appliedPrice),
		CommissionPercent: commissionPercent,
		CommissionValue:   commissionValue,
		DriverEarning:     round2(appliedPrice - commissionValue),
		CompanyID:         trip.CompanyID,
	}
	if rule != nil {
		snapshot.FareRuleID = &rule.ID
	}

	if err := s.settlements.Create(ctx, snapshot); err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("could not create settlement: %w", err))
	}

	if trip.CompanyID != nil {
		if err := s.companies.UpsertMetrics(ctx, *trip.CompanyID, snapshot.AppliedPrice); err != nil {
			return nil, wrap.Error(ctx, fmt.Errorf("could not update company metrics: %w", err))
		}
	}

	metrics.SettlementsTotal.WithLabelValues("dispatch").Inc()
	s.logger.Info(ctx, "fare settled",
		"trip_id", trip.ID,
		"applied_price", snapshot.AppliedPrice,
		"commission_value", snapshot.CommissionValue,
	)

	return snapshot, nil
}

// GetByTrip returns the frozen settlement record of a completed trip.
func (s *Service) GetByTrip(ctx context.Context, tripID uuid.UUID) (*models.Settlement, error) {
	ctx = wrap.WithAction(ctx, "get_settlement")

	stl, err := s.settlements.GetByTrip(ctx, tripID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	return stl, nil
}

// Default tariff used when no fare rule is configured.
const (
	defaultBaseFare = 500.0
	defaultPerKm    = 100.0
	defaultPerMin   = 50.0
)

// Estimate prices a trip at creation time from the active tariff.
// Falls back to a flat default tariff when no rule is configured.
func (s *Service) Estimate(ctx context.Context, vehicleType types.VehicleType, companyID *uuid.UUID, distanceKm float64, durationMin int) float64 {
	baseFare, perKm, perMin := defaultBaseFare, defaultPerKm, defaultPerMin

	rule, err := s.fareRules.Resolve(ctx, vehicleType, companyID, time.Now())
	if err == nil {
		baseFare, perKm, perMin = rule.BaseFare, rule.PerKm, rule.PerMin
	} else if !errors.Is(err, types.ErrFareRuleNotFound) {
		s.logger.Warn(ctx, "fare rule lookup failed, using default tariff", "error", err.Error())
	}

	return round2(baseFare + distanceKm*perKm + float64(durationMin)*perMin)
}

// round2 rounds to 2 fraction digits, the money precision used everywhere.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
