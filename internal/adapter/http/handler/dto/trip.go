package dto

import (
	"time"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
	"github.com/Temutjin2k/trip-dispatch/internal/domain/types"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
	"github.com/Temutjin2k/trip-dispatch/pkg/validator"
)

type LocationReq struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Address   string   `json:"address"`
}

func (l *LocationReq) Validate(v *validator.Validator, prefix string) {
	if l.Latitude == nil || l.Longitude == nil {
		v.Check(l.Latitude != nil, prefix+".latitude", "must be provided")
		v.Check(l.Longitude != nil, prefix+".longitude", "must be provided")
		return
	}
	v.Check(*l.Latitude >= -90 && *l.Latitude <= 90, prefix+".latitude", "must be between -90 and 90")
	v.Check(*l.Longitude >= -180 && *l.Longitude <= 180, prefix+".longitude", "must be between -180 and 180")
}

type CreateTripRequest struct {
	ServiceType string      `json:"service_type"`
	VehicleType string      `json:"vehicle_type"`
	CompanyID   *uuid.UUID  `json:"company_id"`
	Pickup      LocationReq `json:"pickup"`
	Destination LocationReq `json:"destination"`
}

func (r *CreateTripRequest) Validate(v *validator.Validator) {
	v.Check(r.ServiceType != "", "service_type", "must be provided")
	v.Check(validator.PermittedValue(types.ServiceType(r.ServiceType),
		types.ServiceTransport, types.ServicePackageDelivery),
		"service_type", "must be TRANSPORT or PACKAGE_DELIVERY")

	v.Check(r.VehicleType != "", "vehicle_type", "must be provided")
	v.Check(validator.PermittedValue(types.VehicleType(r.VehicleType),
		types.VehicleCar, types.VehicleVan, types.VehicleMotorcycle, types.VehicleTruck),
		"vehicle_type", "must be CAR, VAN, MOTORCYCLE or TRUCK")

	if types.ServiceType(r.ServiceType) == types.ServicePackageDelivery {
		v.Check(types.VehicleAllowed(types.ServicePackageDelivery, types.VehicleType(r.VehicleType)),
			"vehicle_type", "cannot carry package deliveries")
	}

	r.Pickup.Validate(v, "pickup")
	r.Destination.Validate(v, "destination")
}

func (r *CreateTripRequest) ToModel(riderID uuid.UUID) *models.Trip {
	trip := &models.Trip{
		RiderID:     riderID,
		ServiceType: types.ServiceType(r.ServiceType),
		VehicleType: types.VehicleType(r.VehicleType),
		CompanyID:   r.CompanyID,
		Pickup: models.Location{
			Latitude:  *r.Pickup.Latitude,
			Longitude: *r.Pickup.Longitude,
			Address:   r.Pickup.Address,
		},
		Destination: models.Location{
			Latitude:  *r.Destination.Latitude,
			Longitude: *r.Destination.Longitude,
			Address:   r.Destination.Address,
		},
	}
	return trip
}

type AdvanceStatusRequest struct {
	Status             string   `json:"status"`
	FinalPrice         *float64 `json:"final_price"`
	RecordedDistanceKm *float64 `json:"distance_km"`
	RecordedElapsedMin *int     `json:"elapsed_min"`
	Reason             *string  `json:"reason"`
}

func (r *AdvanceStatusRequest) Validate(v *validator.Validator) {
	v.Check(r.Status != "", "status", "must be provided")
	if r.Reason != nil {
		v.Check(len(*r.Reason) <= 500, "reason", "must be at most 500 characters")
	}
}

type RejectTripRequest struct {
	Reason string `json:"reason"`
}

func (r *RejectTripRequest) Validate(v *validator.Validator) {
	v.Check(len(r.Reason) <= 500, "reason", "must be at most 500 characters")
}

// TripResponse is the wire representation of a trip.
type TripResponse struct {
	ID          uuid.UUID       `json:"id"`
	TripNumber  string          `json:"trip_number"`
	RiderID     uuid.UUID       `json:"rider_id"`
	ServiceType string          `json:"service_type"`
	VehicleType string          `json:"vehicle_type"`
	CompanyID   *uuid.UUID      `json:"company_id,omitempty"`
	Status      string          `json:"status"`
	Pickup      models.Location `json:"pickup"`
	Destination models.Location `json:"destination"`

	EstimatedDistanceKm  float64 `json:"estimated_distance_km"`
	EstimatedDurationMin int     `json:"estimated_duration_min"`
	EstimatedPrice       float64 `json:"estimated_price"`

	FinalPrice         *float64 `json:"final_price,omitempty"`
	RecordedDistanceKm *float64 `json:"recorded_distance_km,omitempty"`
	RecordedElapsedMin *int     `json:"recorded_elapsed_min,omitempty"`
	CancellationReason *string  `json:"cancellation_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	ArrivedAt   *time.Time `json:"arrived_at,omitempty"`
	PickedUpAt  *time.Time `json:"picked_up_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

func NewTripResponse(t *models.Trip) TripResponse {
	return TripResponse{
		ID:          t.ID,
		TripNumber:  t.TripNumber,
		RiderID:     t.RiderID,
		ServiceType: string(t.ServiceType),
		VehicleType: string(t.VehicleType),
		CompanyID:   t.CompanyID,
		Status:      t.Status.String(),
		Pickup:      t.Pickup,
		Destination: t.Destination,

		EstimatedDistanceKm:  t.EstimatedDistanceKm,
		EstimatedDurationMin: t.EstimatedDurationMin,
		EstimatedPrice:       t.EstimatedPrice,

		FinalPrice:         t.FinalPrice,
		RecordedDistanceKm: t.RecordedDistanceKm,
		RecordedElapsedMin: t.RecordedElapsedMin,
		CancellationReason: t.CancellationReason,

		CreatedAt:   t.CreatedAt,
		AcceptedAt:  t.AcceptedAt,
		ArrivedAt:   t.ArrivedAt,
		PickedUpAt:  t.PickedUpAt,
		CompletedAt: t.CompletedAt,
		CancelledAt: t.CancelledAt,
	}
}
