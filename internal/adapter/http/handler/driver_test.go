package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
	"github.com/Temutjin2k/trip-dispatch/internal/domain/types"
	"github.com/Temutjin2k/trip-dispatch/pkg/logger"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
)

type fakeDriverService struct {
	online   int
	offline  int
	location int
}

func (f *fakeDriverService) GoOnline(_ context.Context, _ uuid.UUID, _, _ float64) error {
	f.online++
	return nil
}

func (f *fakeDriverService) GoOffline(_ context.Context, _ uuid.UUID) error {
	f.offline++
	return nil
}

func (f *fakeDriverService) UpdateLocation(_ context.Context, _ uuid.UUID, _, _ float64) error {
	f.location++
	return nil
}

func driverRequest(t *testing.T, method, body string, pathDriverID, actorID uuid.UUID) *http.Request {
	t.Helper()

	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, "/drivers/"+pathDriverID.String()+"/online", strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, "/drivers/"+pathDriverID.String()+"/offline", nil)
	}
	r.SetPathValue("driver_id", pathDriverID.String())

	ctx := models.WithActor(r.Context(), &models.Actor{ID: actorID, Role: types.RoleDriver})
	return r.WithContext(ctx)
}

// A driver token must not control another driver's availability.
func TestDriverPresenceRejectsForeignDriverID(t *testing.T) {
	service := &fakeDriverService{}
	h := NewDriver(service, nil, logger.InitLogger("test", logger.LevelError))

	self := uuid.MustNew()
	other := uuid.MustNew()
	body := `{"latitude": 51.1, "longitude": 71.4}`

	tests := []struct {
		name    string
		handler http.HandlerFunc
		req     *http.Request
	}{
		{"online", h.GoOnline, driverRequest(t, http.MethodPost, body, other, self)},
		{"offline", h.GoOffline, driverRequest(t, http.MethodPost, "", other, self)},
		{"location", h.UpdateLocation, driverRequest(t, http.MethodPost, body, other, self)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tc.handler(rec, tc.req)

			if rec.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %d", rec.Code)
			}
		})
	}

	if service.online != 0 || service.offline != 0 || service.location != 0 {
		t.Fatalf("service must not be called for a foreign driver id, got %+v", service)
	}
}

func TestDriverPresenceAllowsOwnDriverID(t *testing.T) {
	service := &fakeDriverService{}
	h := NewDriver(service, nil, logger.InitLogger("test", logger.LevelError))

	self := uuid.MustNew()
	body := `{"latitude": 51.1, "longitude": 71.4}`

	rec := httptest.NewRecorder()
	h.GoOnline(rec, driverRequest(t, http.MethodPost, body, self, self))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.GoOffline(rec, driverRequest(t, http.MethodPost, "", self, self))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.UpdateLocation(rec, driverRequest(t, http.MethodPost, body, self, self))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	if service.online != 1 || service.offline != 1 || service.location != 1 {
		t.Fatalf("expected each presence call once, got %+v", service)
	}
}
