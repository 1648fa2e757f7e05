package settlement

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
	"github.com/Temutjin2k/trip-dispatch/internal/domain/types"
	"github.com/Temutjin2k/trip-dispatch/pkg/logger"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
)

type fakeFareRules struct {
	rule *models.FareRule
}

func (f *fakeFareRules) Resolve(_ context.Context, _ types.VehicleType, _ *uuid.UUID, _ time.Time) (*models.FareRule, error) {
	if f.rule == nil {
		return nil, types.ErrFareRuleNotFound
	}
	return f.rule, nil
}

type fakeSettlements struct {
	mu        sync.Mutex
	snapshots map[uuid.UUID]*models.Settlement
}

func newFakeSettlements() *fakeSettlements {
	return &fakeSettlements{snapshots: make(map[uuid.UUID]*models.Settlement)}
}

func (f *fakeSettlements) Exists(_ context.Context, tripID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.snapshots[tripID]
	return ok, nil
}

func (f *fakeSettlements) Create(_ context.Context, s *models.Settlement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.snapshots[s.TripID]; ok {
		return nil
	}
	s.CreatedAt = time.Now()
	f.snapshots[s.TripID] = s
	return nil
}

func (f *fakeSettlements) GetByTrip(_ context.Context, tripID uuid.UUID) (*models.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.snapshots[tripID]
	if !ok {
		return nil, types.ErrNotFound
	}
	return s, nil
}

type fakeCompanies struct {
	company *models.Company
	upserts int
	revenue float64
}

func (f *fakeCompanies) Get(_ context.Context, _ uuid.UUID) (*models.Company, error) {
	if f.company == nil {
		return nil, types.ErrCompanyNotFound
	}
	return f.company, nil
}

func (f *fakeCompanies) UpsertMetrics(_ context.Context, _ uuid.UUID, revenue float64) error {
	f.upserts++
	f.revenue += revenue
	return nil
}

func ptr[T any](v T) *T { return &v }

func completedTrip(estimated float64, companyID *uuid.UUID) *models.Trip {
	return &models.Trip{
		ID:             uuid.MustNew(),
		VehicleType:    types.VehicleCar,
		CompanyID:      companyID,
		Status:         types.StatusCompleted,
		EstimatedPrice: estimated,
	}
}

func newTestService(rules *fakeFareRules, companies *fakeCompanies) (*Service, *fakeSettlements) {
	settlements := newFakeSettlements()
	log := logger.InitLogger("test", logger.LevelError)
	return New(rules, settlements, companies, log), settlements
}

func TestSettleCompanyDefaultCommission(t *testing.T) {
	companyID := uuid.MustNew()
	companies := &fakeCompanies{company: &models.Company{
		ID:                       companyID,
		DefaultCommissionPercent: ptr(15.0),
	}}
	svc, _ := newTestService(&fakeFareRules{}, companies)

	trip := completedTrip(20000, &companyID)
	snap, err := svc.Settle(context.Background(), trip)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	if snap.CommissionValue != 3000 {
		t.Fatalf("expected commission 3000, got %v", snap.CommissionValue)
	}
	if snap.DriverEarning != 17000 {
		t.Fatalf("expected driver earning 17000, got %v", snap.DriverEarning)
	}
	if companies.upserts != 1 {
		t.Fatalf("expected 1 company upsert, got %d", companies.upserts)
	}
	if companies.revenue != 20000 {
		t.Fatalf("expected company revenue to accumulate the applied price 20000, got %v", companies.revenue)
	}
}

func TestSettlePrecedence(t *testing.T) {
	companyID := uuid.MustNew()

	tests := []struct {
		name           string
		rule           *models.FareRule
		companyPercent *float64
		wantCommission float64
	}{
		{
			name:           "explicit value beats percent",
			rule:           &models.FareRule{ID: uuid.MustNew(), CommissionValue: ptr(750.0), CommissionPercent: ptr(20.0)},
			companyPercent: ptr(15.0),
			wantCommission: 750,
		},
		{
			name:           "rule percent beats company default",
			rule:           &models.FareRule{ID: uuid.MustNew(), CommissionPercent: ptr(20.0)},
			companyPercent: ptr(15.0),
			wantCommission: 2000,
		},
		{
			name:           "company default beats global fallback",
			rule:           &models.FareRule{ID: uuid.MustNew()},
			companyPercent: ptr(15.0),
			wantCommission: 1500,
		},
		{
			name:           "global fallback",
			rule:           nil,
			companyPercent: nil,
			wantCommission: 1000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			companies := &fakeCompanies{company: &models.Company{
				ID:                       companyID,
				DefaultCommissionPercent: tt.companyPercent,
			}}
			svc, _ := newTestService(&fakeFareRules{rule: tt.rule}, companies)

			snap, err := svc.Settle(context.Background(), completedTrip(10000, &companyID))
			if err != nil {
				t.Fatalf("settle: %v", err)
			}
			if snap.CommissionValue != tt.wantCommission {
				t.Fatalf("expected commission %v, got %v", tt.wantCommission, snap.CommissionValue)
			}
		})
	}
}

func TestSettleIdempotent(t *testing.T) {
	svc, settlements := newTestService(&fakeFareRules{}, &fakeCompanies{})
	trip := completedTrip(5000, nil)

	first, err := svc.Settle(context.Background(), trip)
	if err != nil {
		t.Fatalf("first settle: %v", err)
	}
	if first == nil {
		t.Fatal("first settle must return the snapshot")
	}

	second, err := svc.Settle(context.Background(), trip)
	if err != nil {
		t.Fatalf("second settle: %v", err)
	}
	if second != nil {
		t.Fatal("duplicate settle must be a no-op")
	}
	if len(settlements.snapshots) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(settlements.snapshots))
	}
}

func TestSettleFinalPriceWins(t *testing.T) {
	svc, _ := newTestService(&fakeFareRules{}, &fakeCompanies{})

	trip := completedTrip(5000, nil)
	trip.FinalPrice = ptr(6200.0)

	snap, err := svc.Settle(context.Background(), trip)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if snap.AppliedPrice != 6200 {
		t.Fatalf("expected applied price 6200, got %v", snap.AppliedPrice)
	}
}

func TestSettleMissingPriceNeverFails(t *testing.T) {
	svc, _ := newTestService(&fakeFareRules{}, &fakeCompanies{})

	trip := completedTrip(0, nil)
	snap, err := svc.Settle(context.Background(), trip)
	if err != nil {
		t.Fatalf("settle must not fail on zero price: %v", err)
	}
	if snap.AppliedPrice != 0 || snap.CommissionValue != 0 || snap.DriverEarning != 0 {
		t.Fatalf("expected all-zero snapshot, got %+v", snap)
	}
}

func TestSettleMonetaryConsistency(t *testing.T) {
	prices := []float64{1, 99.99, 12345.67, 20000, 0.01}
	percents := []float64{0, 7.77, 10, 15, 33.33}

	for _, price := range prices {
		for _, pct := range percents {
			rules := &fakeFareRules{rule: &models.FareRule{ID: uuid.MustNew(), CommissionPercent: ptr(pct)}}
			svc, _ := newTestService(rules, &fakeCompanies{})

			snap, err := svc.Settle(context.Background(), completedTrip(price, nil))
			if err != nil {
				t.Fatalf("settle price=%v pct=%v: %v", price, pct, err)
			}

			sum := snap.CommissionValue + snap.DriverEarning
			if math.Abs(sum-snap.AppliedPrice) > 0.01 {
				t.Fatalf("price=%v pct=%v: commission %v + earning %v != applied %v",
					price, pct, snap.CommissionValue, snap.DriverEarning, snap.AppliedPrice)
			}
		}
	}
}

func TestEstimate(t *testing.T) {
	rules := &fakeFareRules{rule: &models.FareRule{
		ID: uuid.MustNew(), BaseFare: 800, PerKm: 120, PerMin: 60,
	}}
	svc, _ := newTestService(rules, &fakeCompanies{})

	got := svc.Estimate(context.Background(), types.VehicleCar, nil, 10, 20)
	want := 800 + 10*120.0 + 20*60.0
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestEstimateDefaultTariff(t *testing.T) {
	svc, _ := newTestService(&fakeFareRules{}, &fakeCompanies{})

	got := svc.Estimate(context.Background(), types.VehicleCar, nil, 10, 20)
	want := defaultBaseFare + 10*defaultPerKm + 20*defaultPerMin
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestRound2(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{10.004, 10.0},
		{10.006, 10.01},
		{-2.345, -2.35},
		{0, 0},
	}
	for _, tt := range tests {
		if got := round2(tt.in); got != tt.want {
			t.Errorf("round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
