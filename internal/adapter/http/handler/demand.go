package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
	"github.com/Temutjin2k/trip-dispatch/pkg/logger"
	wrap "github.com/Temutjin2k/trip-dispatch/pkg/logger/wrapper"
)

type Demand struct {
	service DemandService
	l       logger.Logger
}

type DemandService interface {
	Zones(ctx context.Context, lat, lon, radiusKm, cellKm float64) (*models.DemandReport, error)
}

func NewDemand(service DemandService, l logger.Logger) *Demand {
	return &Demand{
		service: service,
		l:       l,
	}
}

// Zones returns the live demand grid around a point.
func (h *Demand) Zones(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "demand_zones")

	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("latitude"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("longitude"), 64)
	if errLat != nil || errLon != nil {
		h.l.Warn(ctx, "missing or invalid coordinates")
		badRequestResponse(w, "latitude and longitude query parameters are required")
		return
	}

	radiusKm := parseFloatQuery(r, "radius_km")
	cellKm := parseFloatQuery(r, "cell_km")

	report, err := h.service.Zones(ctx, lat, lon, radiusKm, cellKm)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to compute demand zones", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"zones":        report.Cells,
		"synthetic":    report.Synthetic,
		"generated_at": report.GeneratedAt,
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}
}
