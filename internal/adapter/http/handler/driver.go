package handler

import (
	"context"
	"net/http"

	"github.com/Temutjin2k/trip-dispatch/internal/adapter/http/handler/dto"
	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
	"github.com/Temutjin2k/trip-dispatch/pkg/logger"
	wrap "github.com/Temutjin2k/trip-dispatch/pkg/logger/wrapper"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
	"github.com/Temutjin2k/trip-dispatch/pkg/validator"
	"github.com/Temutjin2k/trip-dispatch/pkg/wshub"
	"github.com/gorilla/websocket"
)

type Driver struct {
	service  DriverService
	hub      *wshub.ConnectionHub
	upgrader websocket.Upgrader
	l        logger.Logger
}

type DriverService interface {
	GoOnline(ctx context.Context, driverID uuid.UUID, lat, lon float64) error
	GoOffline(ctx context.Context, driverID uuid.UUID) error
	UpdateLocation(ctx context.Context, driverID uuid.UUID, lat, lon float64) error
}

func NewDriver(service DriverService, hub *wshub.ConnectionHub, l logger.Logger) *Driver {
	return &Driver{
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		l: l,
	}
}

// authorizeDriver checks the path driver id against the authenticated caller.
// Drivers manage only their own presence.
func (h *Driver) authorizeDriver(ctx context.Context, w http.ResponseWriter, driverID uuid.UUID) bool {
	actor := models.ActorFromContext(ctx)
	if actor == nil || actor.ID != driverID {
		h.l.Warn(ctx, "driver id does not match the authenticated caller", "driver_id", driverID)
		errorResponse(w, http.StatusForbidden, "you can only manage your own driver profile")
		return false
	}
	return true
}

func (h *Driver) GoOnline(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "set_driver_online")

	driverID, err := uuid.Parse(r.PathValue("driver_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid driver uuid format")
		badRequestResponse(w, "invalid driver uuid format")
		return
	}

	if !h.authorizeDriver(ctx, w, driverID) {
		return
	}

	var req dto.CoordinateUpdateReq
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

	if err := h.service.GoOnline(ctx, driverID, *req.Latitude, *req.Longitude); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to set driver status to online", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"status":  "AVAILABLE",
		"message": "You are now online and ready to accept trips",
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "driver set to online", "driver_id", driverID)
}

func (h *Driver) GoOffline(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "set_driver_offline")

	driverID, err := uuid.Parse(r.PathValue("driver_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid driver uuid format")
		badRequestResponse(w, "invalid driver uuid format")
		return
	}

	if !h.authorizeDriver(ctx, w, driverID) {
		return
	}

	if err := h.service.GoOffline(ctx, driverID); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to set driver status to offline", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"status":  "OFFLINE",
		"message": "You are now offline",
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "driver set to offline", "driver_id", driverID)
}

func (h *Driver) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "update_driver_location")

	driverID, err := uuid.Parse(r.PathValue("driver_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid driver uuid format")
		badRequestResponse(w, "invalid driver uuid format")
		return
	}

	if !h.authorizeDriver(ctx, w, driverID) {
		return
	}

	var req dto.CoordinateUpdateReq
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

	if err := h.service.UpdateLocation(ctx, driverID, *req.Latitude, *req.Longitude); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to update driver location", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleWS upgrades the request and registers the driver connection in the
// hub. Trip status pushes go through this connection while it lives.
func (h *Driver) HandleWS(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "driver_websocket")

	driverID, err := uuid.Parse(r.PathValue("driver_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid driver uuid format")
		badRequestResponse(w, "invalid driver uuid format")
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to upgrade connection", err)
		return
	}

	conn := wshub.NewConn(context.Background(), driverID, wsConn)
	if err := h.hub.Add(conn); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to register connection", err)
		conn.Close()
		return
	}

	h.l.Info(ctx, "driver connected", "driver_id", driverID)

	go func() {
		defer func() {
			if err := h.hub.Delete(driverID); err != nil {
				h.l.Warn(ctx, "failed to remove connection", "driver_id", driverID, "err", err.Error())
			}
			h.l.Info(ctx, "driver disconnected", "driver_id", driverID)
		}()

		// Inbound messages are drained and ignored; the channel is push-only.
		_ = conn.Listen(func(msg map[string]any) error { return nil })
	}()
}
