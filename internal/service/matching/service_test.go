package matching

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
	"github.com/Temutjin2k/trip-dispatch/internal/domain/types"
	"github.com/Temutjin2k/trip-dispatch/pkg/geo"
	"github.com/Temutjin2k/trip-dispatch/pkg/logger"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
)

type fakeTripStore struct {
	trips map[uuid.UUID]*models.Trip
}

func newFakeTripStore(trips ...*models.Trip) *fakeTripStore {
	s := &fakeTripStore{trips: make(map[uuid.UUID]*models.Trip)}
	for _, t := range trips {
		s.trips[t.ID] = t
	}
	return s
}

func (s *fakeTripStore) Get(_ context.Context, tripID uuid.UUID) (*models.Trip, error) {
	t, ok := s.trips[tripID]
	if !ok {
		return nil, types.ErrTripNotFound
	}
	return t, nil
}

func (s *fakeTripStore) FindPendingInBox(_ context.Context, box geo.BoundingBox, since time.Time) ([]*models.Trip, error) {
	var out []*models.Trip
	for _, t := range s.trips {
		if t.Status != types.StatusPending || t.CreatedAt.Before(since) {
			continue
		}
		if !box.Contains(t.Pickup.Latitude, t.Pickup.Longitude) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

type fakeDriverStore struct {
	drivers map[uuid.UUID]*models.Driver
}

func newFakeDriverStore(drivers ...*models.Driver) *fakeDriverStore {
	s := &fakeDriverStore{drivers: make(map[uuid.UUID]*models.Driver)}
	for _, d := range drivers {
		s.drivers[d.ID] = d
	}
	return s
}

func (s *fakeDriverStore) Get(_ context.Context, driverID uuid.UUID) (*models.Driver, error) {
	d, ok := s.drivers[driverID]
	if !ok {
		return nil, types.ErrDriverNotFound
	}
	return d, nil
}

func (s *fakeDriverStore) FindAvailableInBox(_ context.Context, box geo.BoundingBox, _ time.Time) ([]*models.Driver, error) {
	var out []*models.Driver
	for _, d := range s.drivers {
		if !d.Available || !d.IsApproved() || d.LastLatitude == nil {
			continue
		}
		if !box.Contains(*d.LastLatitude, *d.LastLongitude) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

type fakeRejections struct {
	rejected map[uuid.UUID]struct{}
	fail     bool
}

func (r *fakeRejections) TripIDsForDriver(_ context.Context, _ uuid.UUID) (map[uuid.UUID]struct{}, error) {
	if r.fail {
		return nil, errors.New("storage down")
	}
	return r.rejected, nil
}

type fakeTrust struct {
	favorites map[uuid.UUID]bool
	scores    map[uuid.UUID]float64
}

func (t *fakeTrust) Signals(_ context.Context, _ uuid.UUID, driverOrTripKey uuid.UUID) (float64, bool, error) {
	return t.scores[driverOrTripKey], t.favorites[driverOrTripKey], nil
}

type nopTrust struct{}

func (nopTrust) Signals(_ context.Context, _, _ uuid.UUID) (float64, bool, error) {
	return 0, false, nil
}

const (
	baseLat = 6.2100
	baseLon = -75.5700
)

// pickupAtKm places a pickup roughly km kilometers north of the base point.
func pickupAtKm(km float64) models.Location {
	return models.Location{Latitude: baseLat + km/111.0, Longitude: baseLon}
}

func pendingTripAt(loc models.Location, age time.Duration) *models.Trip {
	return &models.Trip{
		ID:          uuid.MustNew(),
		RiderID:     uuid.MustNew(),
		ServiceType: types.ServiceTransport,
		VehicleType: types.VehicleCar,
		Status:      types.StatusPending,
		Pickup:      loc,
		CreatedAt:   time.Now().Add(-age),
	}
}

func carDriver() *models.Driver {
	lat, lon := baseLat, baseLon
	return &models.Driver{
		ID:           uuid.MustNew(),
		VehicleType:  types.VehicleCar,
		Verification: types.VerificationApproved,
		Available:    true,
		LastLatitude: &lat, LastLongitude: &lon,
	}
}

func newTestService(trips *fakeTripStore, drivers *fakeDriverStore, rejections *fakeRejections, trust TrustProvider) *Service {
	if trust == nil {
		trust = nopTrust{}
	}
	log := logger.InitLogger("test", logger.LevelError)
	return New(trips, drivers, rejections, nil, trust, Config{}, log)
}

func TestNearbyPendingFilters(t *testing.T) {
	driver := carDriver()

	near := pendingTripAt(pickupAtKm(1), time.Minute)
	far := pendingTripAt(pickupAtKm(40), time.Minute)
	stale := pendingTripAt(pickupAtKm(1), time.Hour)
	rejected := pendingTripAt(pickupAtKm(2), time.Minute)
	delivery := pendingTripAt(pickupAtKm(1), time.Minute)
	delivery.ServiceType = types.ServicePackageDelivery

	trips := newFakeTripStore(near, far, stale, rejected, delivery)
	drivers := newFakeDriverStore(driver)
	rejections := &fakeRejections{rejected: map[uuid.UUID]struct{}{rejected.ID: {}}}

	svc := newTestService(trips, drivers, rejections, nil)

	got, err := svc.NearbyPending(context.Background(), driver.ID, baseLat, baseLon, 5)
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}

	// Car can also take the package delivery; far, stale and rejected drop out.
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	for _, c := range got {
		if c.Trip.ID == far.ID || c.Trip.ID == stale.ID || c.Trip.ID == rejected.ID {
			t.Fatalf("trip %s should have been filtered out", c.Trip.ID)
		}
	}
}

func TestNearbyPendingVehicleCompatibility(t *testing.T) {
	truck := carDriver()
	truck.VehicleType = types.VehicleTruck

	delivery := pendingTripAt(pickupAtKm(1), time.Minute)
	delivery.ServiceType = types.ServicePackageDelivery
	transport := pendingTripAt(pickupAtKm(1), time.Minute)

	svc := newTestService(newFakeTripStore(delivery, transport), newFakeDriverStore(truck), &fakeRejections{}, nil)

	got, err := svc.NearbyPending(context.Background(), truck.ID, baseLat, baseLon, 5)
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if len(got) != 1 || got[0].Trip.ID != transport.ID {
		t.Fatalf("truck must only see the transport trip, got %d candidates", len(got))
	}
}

func TestNearbyPendingRanking(t *testing.T) {
	driver := carDriver()

	closest := pendingTripAt(pickupAtKm(0.5), time.Minute)
	favorite := pendingTripAt(pickupAtKm(4), time.Minute)
	trusted := pendingTripAt(pickupAtKm(3), time.Minute)
	older := pendingTripAt(pickupAtKm(0.5), 10*time.Minute)

	trust := &fakeTrust{
		favorites: map[uuid.UUID]bool{},
		scores:    map[uuid.UUID]float64{},
	}
	// Signals are keyed by rider in the real service; the fake keys by rider too.
	trust.favorites[favorite.RiderID] = true
	trust.scores[trusted.RiderID] = 0.9

	svc := newTestService(
		newFakeTripStore(closest, favorite, trusted, older),
		newFakeDriverStore(driver),
		&fakeRejections{},
		riderKeyedTrust{trust},
	)

	got, err := svc.NearbyPending(context.Background(), driver.ID, baseLat, baseLon, 5)
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 candidates, got %d", len(got))
	}

	wantOrder := []uuid.UUID{favorite.ID, trusted.ID, older.ID, closest.ID}
	for i, want := range wantOrder {
		if got[i].Trip.ID != want {
			t.Fatalf("position %d: expected trip %s, got %s", i, want, got[i].Trip.ID)
		}
	}
}

// riderKeyedTrust adapts fakeTrust so lookups use the rider id the service
// passes as the first argument.
type riderKeyedTrust struct {
	inner *fakeTrust
}

func (t riderKeyedTrust) Signals(ctx context.Context, riderID, _ uuid.UUID) (float64, bool, error) {
	return t.inner.Signals(ctx, riderID, riderID)
}

func TestNearbyPendingCap(t *testing.T) {
	driver := carDriver()

	store := newFakeTripStore()
	for i := range 25 {
		trip := pendingTripAt(pickupAtKm(float64(i)*0.1), time.Minute)
		store.trips[trip.ID] = trip
	}

	svc := newTestService(store, newFakeDriverStore(driver), &fakeRejections{}, nil)

	got, err := svc.NearbyPending(context.Background(), driver.ID, baseLat, baseLon, 5)
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if len(got) != MaxCandidates {
		t.Fatalf("expected cap of %d, got %d", MaxCandidates, len(got))
	}
}

func TestNearbyPendingRejectionLookupDegrades(t *testing.T) {
	driver := carDriver()
	trip := pendingTripAt(pickupAtKm(1), time.Minute)

	svc := newTestService(newFakeTripStore(trip), newFakeDriverStore(driver), &fakeRejections{fail: true}, nil)

	got, err := svc.NearbyPending(context.Background(), driver.ID, baseLat, baseLon, 5)
	if err != nil {
		t.Fatalf("nearby must tolerate rejection lookup failure: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
}

func TestCandidateDrivers(t *testing.T) {
	trip := pendingTripAt(pickupAtKm(0), time.Minute)

	near := carDriver()
	farLat := baseLat + 40.0/111.0
	far := carDriver()
	far.LastLatitude = &farLat
	busy := carDriver()
	busy.Available = false
	unverified := carDriver()
	unverified.Verification = types.VerificationPending

	svc := newTestService(
		newFakeTripStore(trip),
		newFakeDriverStore(near, far, busy, unverified),
		&fakeRejections{},
		nil,
	)

	got, err := svc.CandidateDrivers(context.Background(), trip.ID, 5)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(got) != 1 || got[0].Driver.ID != near.ID {
		t.Fatalf("expected only the near available approved driver, got %d", len(got))
	}
}

func TestCandidateDriversTripNotFound(t *testing.T) {
	svc := newTestService(newFakeTripStore(), newFakeDriverStore(), &fakeRejections{}, nil)

	_, err := svc.CandidateDrivers(context.Background(), uuid.MustNew(), 5)
	if !errors.Is(err, types.ErrTripNotFound) {
		t.Fatalf("expected ErrTripNotFound, got %v", err)
	}
}

func TestCandidateDriversLiveIndexPreferred(t *testing.T) {
	trip := pendingTripAt(pickupAtKm(0), time.Minute)
	driver := carDriver()

	index := &fakeIndex{points: []models.DriverPoint{
		{ID: driver.ID, Latitude: baseLat, Longitude: baseLon},
	}}

	log := logger.InitLogger("test", logger.LevelError)
	svc := New(newFakeTripStore(trip), newFakeDriverStore(driver), &fakeRejections{}, index, nopTrust{}, Config{}, log)

	got, err := svc.CandidateDrivers(context.Background(), trip.ID, 5)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate from the index, got %d", len(got))
	}
	if index.calls != 1 {
		t.Fatalf("expected the live index to be queried, calls=%d", index.calls)
	}
}

type fakeIndex struct {
	points []models.DriverPoint
	calls  int
}

func (f *fakeIndex) Nearby(_ context.Context, _, _, _ float64, _ int) ([]models.DriverPoint, error) {
	f.calls++
	if f.points == nil {
		return nil, fmt.Errorf("index down")
	}
	return f.points, nil
}
