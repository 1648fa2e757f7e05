package trip

import (
	"context"
	"errors"
	"strings"
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

type fakeTripStore struct {
	mu    sync.Mutex
	trips map[uuid.UUID]*models.Trip

	// conflictOnce makes the next AdvanceStatus report a lost optimistic race.
	conflictOnce bool
}

func newFakeTripStore(trips ...*models.Trip) *fakeTripStore {
	s := &fakeTripStore{trips: make(map[uuid.UUID]*models.Trip)}
	for _, t := range trips {
		s.trips[t.ID] = t
	}
	return s
}

func (s *fakeTripStore) Create(_ context.Context, trip *models.Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	trip.CreatedAt = time.Now()
	trip.Version = 1
	s.trips[trip.ID] = trip
	return nil
}

func (s *fakeTripStore) Get(_ context.Context, tripID uuid.UUID) (*models.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[tripID]
	if !ok {
		return nil, types.ErrTripNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *fakeTripStore) AdvanceStatus(_ context.Context, upd models.TripStatusUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflictOnce {
		s.conflictOnce = false
		return false, nil
	}
	t, ok := s.trips[upd.TripID]
	if !ok {
		return false, nil
	}
	if t.Status != upd.FromStatus || t.Version != upd.FromVersion {
		return false, nil
	}

	t.Status = upd.ToStatus
	t.Version++
	if t.FinalPrice == nil {
		t.FinalPrice = upd.FinalPrice
	}
	if t.RecordedDistanceKm == nil {
		t.RecordedDistanceKm = upd.RecordedDistanceKm
	}
	if t.RecordedElapsedMin == nil {
		t.RecordedElapsedMin = upd.RecordedElapsedMin
	}
	if t.CancellationReason == nil {
		t.CancellationReason = upd.CancellationReason
	}
	return true, nil
}

func (s *fakeTripStore) CountByDate(_ context.Context, _ time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trips), nil
}

type fakeDriverStore struct {
	mu           sync.Mutex
	availability map[uuid.UUID]bool
	tripCounts   map[uuid.UUID]int
}

func newFakeDriverStore() *fakeDriverStore {
	return &fakeDriverStore{
		availability: make(map[uuid.UUID]bool),
		tripCounts:   make(map[uuid.UUID]int),
	}
}

func (s *fakeDriverStore) SetAvailability(_ context.Context, driverID uuid.UUID, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.availability[driverID] = available
	return nil
}

func (s *fakeDriverStore) IncrementTripCount(_ context.Context, driverID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tripCounts[driverID]++
	return nil
}

type fakeAssignments struct {
	mu     sync.Mutex
	active map[uuid.UUID]*models.Assignment
}

func newFakeAssignments(asgs ...*models.Assignment) *fakeAssignments {
	s := &fakeAssignments{active: make(map[uuid.UUID]*models.Assignment)}
	for _, a := range asgs {
		s.active[a.TripID] = a
	}
	return s
}

func (s *fakeAssignments) GetActiveByTrip(_ context.Context, tripID uuid.UUID) (*models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.active[tripID]
	if !ok {
		return nil, types.ErrAssignmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *fakeAssignments) UpdateStatus(_ context.Context, tripID uuid.UUID, status types.AssignmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.active[tripID]
	if !ok {
		return types.ErrAssignmentNotFound
	}
	a.Status = status
	return nil
}

type fakeSettler struct {
	mu       sync.Mutex
	settled  []uuid.UUID
	estimate float64
}

func (s *fakeSettler) Settle(_ context.Context, trip *models.Trip) (*models.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settled = append(s.settled, trip.ID)
	return &models.Settlement{TripID: trip.ID}, nil
}

func (s *fakeSettler) Estimate(_ context.Context, _ types.VehicleType, _ *uuid.UUID, _ float64, _ int) float64 {
	return s.estimate
}

type fakeNotifier struct {
	mu        sync.Mutex
	requested []models.TripRequestedMessage
	statuses  []models.TripStatusMessage
}

func (n *fakeNotifier) PublishTripRequested(_ context.Context, msg models.TripRequestedMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requested = append(n.requested, msg)
	return nil
}

func (n *fakeNotifier) PublishTripStatus(_ context.Context, msg models.TripStatusMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, msg)
	return nil
}

type env struct {
	svc         *Service
	trips       *fakeTripStore
	drivers     *fakeDriverStore
	assignments *fakeAssignments
	settler     *fakeSettler
	notifier    *fakeNotifier
}

func newEnv(trips *fakeTripStore, assignments *fakeAssignments) *env {
	drivers := newFakeDriverStore()
	settler := &fakeSettler{estimate: 4200}
	notifier := &fakeNotifier{}
	log := logger.InitLogger("test", logger.LevelError)

	svc := New(trips, drivers, assignments, settler, notifier, nil, passTxManager{}, log)
	return &env{svc, trips, drivers, assignments, settler, notifier}
}

func tripInStatus(status types.TripStatus) *models.Trip {
	return &models.Trip{
		ID:          uuid.MustNew(),
		RiderID:     uuid.MustNew(),
		ServiceType: types.ServiceTransport,
		VehicleType: types.VehicleCar,
		Status:      status,
		Version:     1,
		CreatedAt:   time.Now(),
	}
}

func assignedTo(trip *models.Trip, driverID uuid.UUID) *models.Assignment {
	return &models.Assignment{
		TripID:     trip.ID,
		DriverID:   driverID,
		Status:     types.AssignmentAssigned,
		AssignedAt: time.Now(),
	}
}

func TestCreateTrip(t *testing.T) {
	e := newEnv(newFakeTripStore(), newFakeAssignments())

	in := &models.Trip{
		RiderID:     uuid.MustNew(),
		ServiceType: types.ServiceTransport,
		VehicleType: types.VehicleCar,
		Pickup:      models.Location{Latitude: 6.21, Longitude: -75.57},
		Destination: models.Location{Latitude: 6.25, Longitude: -75.59},
	}

	created, err := e.svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if created.Status != types.StatusPending {
		t.Fatalf("expected PENDING, got %s", created.Status)
	}
	if !strings.HasPrefix(created.TripNumber, "TRIP_") {
		t.Fatalf("unexpected trip number %q", created.TripNumber)
	}
	if created.EstimatedDistanceKm <= 0 {
		t.Fatal("expected a positive distance estimate")
	}
	if created.EstimatedPrice != 4200 {
		t.Fatalf("expected tariff estimate 4200, got %v", created.EstimatedPrice)
	}
	if len(e.notifier.requested) != 1 {
		t.Fatalf("expected trip.requested publish, got %d", len(e.notifier.requested))
	}
}

func TestCreateTripRejectsBadCoordinates(t *testing.T) {
	e := newEnv(newFakeTripStore(), newFakeAssignments())

	in := &models.Trip{
		RiderID:     uuid.MustNew(),
		ServiceType: types.ServiceTransport,
		VehicleType: types.VehicleCar,
		Pickup:      models.Location{Latitude: 95, Longitude: 0},
		Destination: models.Location{Latitude: 6.25, Longitude: -75.59},
	}

	if _, err := e.svc.Create(context.Background(), in); err == nil {
		t.Fatal("expected coordinate validation error")
	}
}

func TestParseTargetStatus(t *testing.T) {
	tests := []struct {
		raw    string
		want   types.TripStatus
		wantOK bool
	}{
		{"arrived", types.StatusArrived, true},
		{"picked_up", types.StatusInProgress, true},
		{"in_progress", types.StatusInProgress, true},
		{"IN_PROGRESS", types.StatusInProgress, true},
		{"completed", types.StatusCompleted, true},
		{"cancelled", types.StatusCancelled, true},
		{"pending", "", false},
		{"accepted", "", false},
		{"teleported", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseTargetStatus(tt.raw)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseTargetStatus(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestAdvanceHappyPath(t *testing.T) {
	driverID := uuid.MustNew()
	trip := tripInStatus(types.StatusAccepted)
	e := newEnv(newFakeTripStore(trip), newFakeAssignments(assignedTo(trip, driverID)))

	steps := []types.TripStatus{types.StatusArrived, types.StatusInProgress, types.StatusCompleted}
	for _, target := range steps {
		got, err := e.svc.Advance(context.Background(), AdvanceInput{
			TripID: trip.ID, DriverID: driverID, Target: target,
		})
		if err != nil {
			t.Fatalf("advance to %s: %v", target, err)
		}
		if got.Status != target {
			t.Fatalf("expected %s, got %s", target, got.Status)
		}
	}

	if len(e.settler.settled) != 1 {
		t.Fatalf("expected 1 settlement, got %d", len(e.settler.settled))
	}
	if !e.drivers.availability[driverID] {
		t.Fatal("driver must be released on completion")
	}
	if e.drivers.tripCounts[driverID] != 1 {
		t.Fatalf("expected trip count 1, got %d", e.drivers.tripCounts[driverID])
	}
	if e.assignments.active[trip.ID].Status != types.AssignmentCompleted {
		t.Fatalf("assignment not completed: %s", e.assignments.active[trip.ID].Status)
	}
	if len(e.notifier.statuses) != len(steps) {
		t.Fatalf("expected %d status publishes, got %d", len(steps), len(e.notifier.statuses))
	}
}

func TestAdvanceInvalidTransitions(t *testing.T) {
	driverID := uuid.MustNew()

	tests := []struct {
		from   types.TripStatus
		target types.TripStatus
	}{
		{types.StatusAccepted, types.StatusCompleted},
		{types.StatusAccepted, types.StatusInProgress},
		{types.StatusArrived, types.StatusCompleted},
		{types.StatusCompleted, types.StatusCancelled},
		{types.StatusCancelled, types.StatusArrived},
		{types.StatusCompleted, types.StatusArrived},
	}

	for _, tt := range tests {
		trip := tripInStatus(tt.from)
		e := newEnv(newFakeTripStore(trip), newFakeAssignments(assignedTo(trip, driverID)))

		_, err := e.svc.Advance(context.Background(), AdvanceInput{
			TripID: trip.ID, DriverID: driverID, Target: tt.target,
		})
		if !errors.Is(err, types.ErrInvalidTransition) {
			t.Fatalf("%s -> %s: expected ErrInvalidTransition, got %v", tt.from, tt.target, err)
		}

		got, _ := e.trips.Get(context.Background(), trip.ID)
		if got.Status != tt.from {
			t.Fatalf("%s -> %s: state must be unchanged, got %s", tt.from, tt.target, got.Status)
		}
	}
}

func TestAdvanceOwnerGuard(t *testing.T) {
	owner := uuid.MustNew()
	stranger := uuid.MustNew()
	trip := tripInStatus(types.StatusAccepted)
	e := newEnv(newFakeTripStore(trip), newFakeAssignments(assignedTo(trip, owner)))

	_, err := e.svc.Advance(context.Background(), AdvanceInput{
		TripID: trip.ID, DriverID: stranger, Target: types.StatusArrived,
	})
	if !errors.Is(err, types.ErrNotAssignmentOwner) {
		t.Fatalf("expected ErrNotAssignmentOwner, got %v", err)
	}
}

func TestCancelUnassignedPending(t *testing.T) {
	trip := tripInStatus(types.StatusPending)
	e := newEnv(newFakeTripStore(trip), newFakeAssignments())

	reason := "changed my mind"
	got, err := e.svc.Advance(context.Background(), AdvanceInput{
		TripID: trip.ID, DriverID: trip.RiderID, Target: types.StatusCancelled,
		CancellationReason: &reason,
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != types.StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", got.Status)
	}
	if got.CancellationReason == nil || *got.CancellationReason != reason {
		t.Fatal("cancellation reason not recorded")
	}
}

func TestCancelReleasesDriver(t *testing.T) {
	driverID := uuid.MustNew()
	trip := tripInStatus(types.StatusArrived)
	e := newEnv(newFakeTripStore(trip), newFakeAssignments(assignedTo(trip, driverID)))

	_, err := e.svc.Advance(context.Background(), AdvanceInput{
		TripID: trip.ID, DriverID: driverID, Target: types.StatusCancelled,
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !e.drivers.availability[driverID] {
		t.Fatal("driver must be released on cancellation")
	}
	if e.assignments.active[trip.ID].Status != types.AssignmentCancelled {
		t.Fatalf("assignment not cancelled: %s", e.assignments.active[trip.ID].Status)
	}
}

func TestAdvanceVersionConflict(t *testing.T) {
	driverID := uuid.MustNew()
	trip := tripInStatus(types.StatusAccepted)
	store := newFakeTripStore(trip)
	e := newEnv(store, newFakeAssignments(assignedTo(trip, driverID)))

	// Another writer wins the version check between our read and write.
	store.conflictOnce = true

	_, err := e.svc.Advance(context.Background(), AdvanceInput{
		TripID: trip.ID, DriverID: driverID, Target: types.StatusArrived,
	})
	if !errors.Is(err, types.ErrTripStateChanged) {
		t.Fatalf("expected ErrTripStateChanged, got %v", err)
	}

	got, _ := store.Get(context.Background(), trip.ID)
	if got.Status != types.StatusAccepted {
		t.Fatalf("state must be unchanged after conflict, got %s", got.Status)
	}
}

func TestRecordedFieldsWriteOnce(t *testing.T) {
	driverID := uuid.MustNew()
	trip := tripInStatus(types.StatusAccepted)
	e := newEnv(newFakeTripStore(trip), newFakeAssignments(assignedTo(trip, driverID)))

	first := 12.4
	if _, err := e.svc.Advance(context.Background(), AdvanceInput{
		TripID: trip.ID, DriverID: driverID, Target: types.StatusArrived,
		RecordedDistanceKm: &first,
	}); err != nil {
		t.Fatalf("advance: %v", err)
	}

	second := 99.9
	got, err := e.svc.Advance(context.Background(), AdvanceInput{
		TripID: trip.ID, DriverID: driverID, Target: types.StatusInProgress,
		RecordedDistanceKm: &second,
	})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if got.RecordedDistanceKm == nil || *got.RecordedDistanceKm != first {
		t.Fatalf("recorded distance must keep first value %v, got %v", first, got.RecordedDistanceKm)
	}
}

func TestAdvanceDropsNonPositiveMeasurements(t *testing.T) {
	driverID := uuid.MustNew()
	trip := tripInStatus(types.StatusAccepted)
	e := newEnv(newFakeTripStore(trip), newFakeAssignments(assignedTo(trip, driverID)))

	bad := -3.0
	badMin := 0
	got, err := e.svc.Advance(context.Background(), AdvanceInput{
		TripID: trip.ID, DriverID: driverID, Target: types.StatusArrived,
		RecordedDistanceKm: &bad,
		RecordedElapsedMin: &badMin,
	})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if got.RecordedDistanceKm != nil || got.RecordedElapsedMin != nil {
		t.Fatal("non-positive measurements must be dropped")
	}
}

func TestEstimateDuration(t *testing.T) {
	tests := []struct {
		km   float64
		want int
	}{
		{0, 0},
		{-1, 0},
		{50, 60},
		{25, 30},
		{1, 2},
	}
	for _, tt := range tests {
		if got := estimateDuration(tt.km); got != tt.want {
			t.Errorf("estimateDuration(%v) = %d, want %d", tt.km, got, tt.want)
		}
	}
}
