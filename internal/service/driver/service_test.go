package driver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
	"github.com/Temutjin2k/trip-dispatch/internal/domain/types"
	"github.com/Temutjin2k/trip-dispatch/pkg/logger"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
)

type passTxManager struct{}

func (passTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (passTxManager) DoReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeDriverStore struct {
	mu      sync.Mutex
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
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[driverID]
	if !ok {
		return nil, types.ErrDriverNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *fakeDriverStore) GetForUpdate(ctx context.Context, driverID uuid.UUID) (*models.Driver, error) {
	return s.Get(ctx, driverID)
}

func (s *fakeDriverStore) SetAvailability(_ context.Context, driverID uuid.UUID, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[driverID]
	if !ok {
		return types.ErrDriverNotFound
	}
	d.Available = available
	return nil
}

func (s *fakeDriverStore) UpdateLocation(_ context.Context, driverID uuid.UUID, lat, lon float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[driverID]
	if !ok {
		return types.ErrDriverNotFound
	}
	d.LastLatitude = &lat
	d.LastLongitude = &lon
	d.LastLocationAt = &at
	return nil
}

type fakeAssignments struct {
	active map[uuid.UUID]*models.Assignment
}

func (s *fakeAssignments) GetActiveByDriver(_ context.Context, driverID uuid.UUID) (*models.Assignment, error) {
	if a, ok := s.active[driverID]; ok {
		return a, nil
	}
	return nil, types.ErrAssignmentNotFound
}

type fakeIndex struct {
	mu      sync.Mutex
	upserts int
	removes int
	fail    bool
}

func (f *fakeIndex) Upsert(_ context.Context, _ uuid.UUID, _, _ float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("redis down")
	}
	f.upserts++
	return nil
}

func (f *fakeIndex) Remove(_ context.Context, _ uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("redis down")
	}
	f.removes++
	return nil
}

func approvedDriver() *models.Driver {
	return &models.Driver{
		ID:           uuid.MustNew(),
		VehicleType:  types.VehicleCar,
		Verification: types.VerificationApproved,
	}
}

func newTestService(drivers *fakeDriverStore, assignments *fakeAssignments, index *fakeIndex) *Service {
	if assignments == nil {
		assignments = &fakeAssignments{}
	}
	log := logger.InitLogger("test", logger.LevelError)
	return New(drivers, assignments, index, passTxManager{}, log)
}

func TestGoOnline(t *testing.T) {
	d := approvedDriver()
	store := newFakeDriverStore(d)
	index := &fakeIndex{}
	svc := newTestService(store, nil, index)

	if err := svc.GoOnline(context.Background(), d.ID, 6.21, -75.57); err != nil {
		t.Fatalf("go online: %v", err)
	}

	got := store.drivers[d.ID]
	if !got.Available {
		t.Fatal("driver must be available after going online")
	}
	if got.LastLatitude == nil || *got.LastLatitude != 6.21 {
		t.Fatal("location not stored")
	}
	if index.upserts != 1 {
		t.Fatalf("expected location index upsert, got %d", index.upserts)
	}
}

func TestGoOnlineRequiresApproval(t *testing.T) {
	d := approvedDriver()
	d.Verification = types.VerificationPending
	svc := newTestService(newFakeDriverStore(d), nil, &fakeIndex{})

	err := svc.GoOnline(context.Background(), d.ID, 6.21, -75.57)
	if !errors.Is(err, types.ErrDriverNotVerified) {
		t.Fatalf("expected ErrDriverNotVerified, got %v", err)
	}
}

func TestGoOnlineRejectsActiveAssignment(t *testing.T) {
	d := approvedDriver()
	assignments := &fakeAssignments{active: map[uuid.UUID]*models.Assignment{
		d.ID: {TripID: uuid.MustNew(), DriverID: d.ID, Status: types.AssignmentInProgress},
	}}
	svc := newTestService(newFakeDriverStore(d), assignments, &fakeIndex{})

	err := svc.GoOnline(context.Background(), d.ID, 6.21, -75.57)
	if !errors.Is(err, types.ErrDriverOnTrip) {
		t.Fatalf("expected ErrDriverOnTrip, got %v", err)
	}
}

func TestGoOnlineRejectsBadCoordinates(t *testing.T) {
	d := approvedDriver()
	svc := newTestService(newFakeDriverStore(d), nil, &fakeIndex{})

	if err := svc.GoOnline(context.Background(), d.ID, 120, -75.57); err == nil {
		t.Fatal("expected coordinate validation error")
	}
}

func TestGoOffline(t *testing.T) {
	d := approvedDriver()
	d.Available = true
	store := newFakeDriverStore(d)
	index := &fakeIndex{}
	svc := newTestService(store, nil, index)

	if err := svc.GoOffline(context.Background(), d.ID); err != nil {
		t.Fatalf("go offline: %v", err)
	}
	if store.drivers[d.ID].Available {
		t.Fatal("driver must be unavailable after going offline")
	}
	if index.removes != 1 {
		t.Fatalf("expected location index removal, got %d", index.removes)
	}
}

func TestGoOfflineBlockedOnActiveTrip(t *testing.T) {
	d := approvedDriver()
	d.Available = false
	assignments := &fakeAssignments{active: map[uuid.UUID]*models.Assignment{
		d.ID: {TripID: uuid.MustNew(), DriverID: d.ID, Status: types.AssignmentInProgress},
	}}
	svc := newTestService(newFakeDriverStore(d), assignments, &fakeIndex{})

	err := svc.GoOffline(context.Background(), d.ID)
	if !errors.Is(err, types.ErrDriverOnTrip) {
		t.Fatalf("expected ErrDriverOnTrip, got %v", err)
	}
}

func TestUpdateLocationToleratesIndexFailure(t *testing.T) {
	d := approvedDriver()
	store := newFakeDriverStore(d)
	svc := newTestService(store, nil, &fakeIndex{fail: true})

	if err := svc.UpdateLocation(context.Background(), d.ID, 6.22, -75.58); err != nil {
		t.Fatalf("update location must tolerate index failure: %v", err)
	}
	if store.drivers[d.ID].LastLatitude == nil {
		t.Fatal("location must still be stored in the database")
	}
}
