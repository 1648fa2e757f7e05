package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Temutjin2k/trip-dispatch/internal/adapter/http/handler/dto"
	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
	tripsvc "github.com/Temutjin2k/trip-dispatch/internal/service/trip"
	"github.com/Temutjin2k/trip-dispatch/pkg/logger"
	wrap "github.com/Temutjin2k/trip-dispatch/pkg/logger/wrapper"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
	"github.com/Temutjin2k/trip-dispatch/pkg/validator"
)

type Trip struct {
	trips       TripService
	assignments AssignmentService
	matcher     MatchService
	settlements SettlementService
	l           logger.Logger
}

type TripService interface {
	Create(ctx context.Context, trip *models.Trip) (*models.Trip, error)
	Get(ctx context.Context, tripID uuid.UUID) (*models.Trip, error)
	Advance(ctx context.Context, in tripsvc.AdvanceInput) (*models.Trip, error)
}

type AssignmentService interface {
	Accept(ctx context.Context, tripID, driverID uuid.UUID) (*models.Assignment, error)
	Reject(ctx context.Context, tripID, driverID uuid.UUID, reason string)
}

type MatchService interface {
	NearbyPending(ctx context.Context, driverID uuid.UUID, lat, lon, radiusKm float64) ([]models.TripCandidate, error)
	CandidateDrivers(ctx context.Context, tripID uuid.UUID, radiusKm float64) ([]models.DriverCandidate, error)
}

type SettlementService interface {
	GetByTrip(ctx context.Context, tripID uuid.UUID) (*models.Settlement, error)
}

func NewTrip(trips TripService, assignments AssignmentService, matcher MatchService, settlements SettlementService, l logger.Logger) *Trip {
	return &Trip{
		trips:       trips,
		assignments: assignments,
		matcher:     matcher,
		settlements: settlements,
		l:           l,
	}
}

func (h *Trip) Create(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "create_trip")

	actor := models.ActorFromContext(ctx)
	if actor.IsAnonymous() {
		errorResponse(w, http.StatusUnauthorized, "authorization required")
		return
	}

	var req dto.CreateTripRequest
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		h.l.Warn(ctx, "invalid request data")
		failedValidationResponse(w, v.Errors)
		return
	}

	trip, err := h.trips.Create(ctx, req.ToModel(actor.ID))
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to create trip", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{"trip": dto.NewTripResponse(trip)}
	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "trip created", "trip_id", trip.ID, "trip_number", trip.TripNumber)
}

func (h *Trip) Get(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "get_trip")

	tripID, err := uuid.Parse(r.PathValue("trip_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid trip uuid format")
		badRequestResponse(w, "invalid trip uuid format")
		return
	}

	trip, err := h.trips.Get(ctx, tripID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to get trip", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"trip": dto.NewTripResponse(trip)}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}
}

// Accept claims a pending trip for the calling driver. Exactly one driver
// wins; everyone else gets a 409.
func (h *Trip) Accept(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "accept_trip")

	actor := models.ActorFromContext(ctx)
	tripID, err := uuid.Parse(r.PathValue("trip_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid trip uuid format")
		badRequestResponse(w, "invalid trip uuid format")
		return
	}

	asg, err := h.assignments.Accept(ctx, tripID, actor.ID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to accept trip", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"trip_id":     asg.TripID,
		"driver_id":   asg.DriverID,
		"status":      asg.Status,
		"assigned_at": asg.AssignedAt,
		"message":     "Trip accepted, head to the pickup point",
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "trip accepted", "trip_id", tripID, "driver_id", actor.ID)
}

// Reject records that the calling driver declined the trip so matching stops
// offering it to them. Always returns 204.
func (h *Trip) Reject(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "reject_trip")

	actor := models.ActorFromContext(ctx)
	tripID, err := uuid.Parse(r.PathValue("trip_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid trip uuid format")
		badRequestResponse(w, "invalid trip uuid format")
		return
	}

	var req dto.RejectTripRequest
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		h.l.Warn(ctx, "invalid request data")
		failedValidationResponse(w, v.Errors)
		return
	}

	h.assignments.Reject(ctx, tripID, actor.ID, req.Reason)

	w.WriteHeader(http.StatusNoContent)
}

// UpdateStatus applies one lifecycle transition signalled by the assigned
// driver, or a cancellation by the rider.
func (h *Trip) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "update_trip_status")

	actor := models.ActorFromContext(ctx)
	tripID, err := uuid.Parse(r.PathValue("trip_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid trip uuid format")
		badRequestResponse(w, "invalid trip uuid format")
		return
	}

	var req dto.AdvanceStatusRequest
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		h.l.Warn(ctx, "invalid request data")
		failedValidationResponse(w, v.Errors)
		return
	}

	target, ok := tripsvc.ParseTargetStatus(req.Status)
	if !ok {
		h.l.Warn(ctx, "unknown target status", "status", req.Status)
		failedValidationResponse(w, map[string]string{"status": "must be ARRIVED, PICKED_UP, IN_PROGRESS, COMPLETED or CANCELLED"})
		return
	}

	trip, err := h.trips.Advance(ctx, tripsvc.AdvanceInput{
		TripID:             tripID,
		DriverID:           actor.ID,
		Target:             target,
		FinalPrice:         req.FinalPrice,
		RecordedDistanceKm: req.RecordedDistanceKm,
		RecordedElapsedMin: req.RecordedElapsedMin,
		CancellationReason: req.Reason,
	})
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to advance trip status", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"trip": dto.NewTripResponse(trip)}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "trip status updated", "trip_id", tripID, "status", trip.Status)
}

// Nearby returns pending trips the calling driver can serve, ranked.
func (h *Trip) Nearby(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "nearby_trips")

	actor := models.ActorFromContext(ctx)

	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("latitude"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("longitude"), 64)
	if errLat != nil || errLon != nil {
		h.l.Warn(ctx, "missing or invalid coordinates")
		badRequestResponse(w, "latitude and longitude query parameters are required")
		return
	}

	radiusKm := parseFloatQuery(r, "radius_km")

	candidates, err := h.matcher.NearbyPending(ctx, actor.ID, lat, lon, radiusKm)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to find nearby trips", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"trips": candidates,
		"count": len(candidates),
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}
}

// Candidates returns ranked available drivers for a pending trip.
func (h *Trip) Candidates(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "trip_candidates")

	tripID, err := uuid.Parse(r.PathValue("trip_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid trip uuid format")
		badRequestResponse(w, "invalid trip uuid format")
		return
	}

	radiusKm := parseFloatQuery(r, "radius_km")

	candidates, err := h.matcher.CandidateDrivers(ctx, tripID, radiusKm)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to find candidate drivers", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"drivers": candidates,
		"count":   len(candidates),
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}
}

// Settlement returns the frozen financial record of a completed trip.
func (h *Trip) Settlement(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "get_trip_settlement")

	tripID, err := uuid.Parse(r.PathValue("trip_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid trip uuid format")
		badRequestResponse(w, "invalid trip uuid format")
		return
	}

	stl, err := h.settlements.GetByTrip(ctx, tripID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to get settlement", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"trip_id":            stl.TripID,
		"applied_price":      stl.AppliedPrice,
		"fare_rule_id":       stl.FareRuleID,
		"commission_percent": stl.CommissionPercent,
		"commission_value":   stl.CommissionValue,
		"driver_earning":     stl.DriverEarning,
		"company_id":         stl.CompanyID,
		"created_at":         stl.CreatedAt,
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}
}

// parseFloatQuery returns the query parameter as a float, or 0 when absent
// or unparsable. Services substitute their own defaults for 0.
func parseFloatQuery(r *http.Request, key string) float64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}
