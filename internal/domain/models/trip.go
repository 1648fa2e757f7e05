package models

import (
	"time"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/types"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
)

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// Trip is one transport/delivery request and its lifecycle record.
type Trip struct {
	ID          uuid.UUID
	TripNumber  string
	RiderID     uuid.UUID
	ServiceType types.ServiceType
	VehicleType types.VehicleType
	CompanyID   *uuid.UUID
	Status      types.TripStatus
	Pickup      Location
	Destination Location

	// Estimates made at creation time
	EstimatedDistanceKm  float64
	EstimatedDurationMin int
	EstimatedPrice       float64

	// Final, set at most once
	FinalPrice *float64

	// Write-once actuals: the first positive value reported on any
	// status-advance call wins, later writes are ignored.
	RecordedDistanceKm *float64
	RecordedElapsedMin *int

	CancellationReason *string

	// Version is bumped on every status change; the advance path uses it
	// for optimistic conflict detection.
	Version int64

	CreatedAt   time.Time
	AcceptedAt  *time.Time
	ArrivedAt   *time.Time
	PickedUpAt  *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
}

// TripCandidate is a matchable trip together with its ranking signals.
type TripCandidate struct {
	Trip       *Trip   `json:"trip"`
	DistanceKm float64 `json:"distance_km"`
	Favorite   bool    `json:"favorite"`
	TrustScore float64 `json:"trust_score"`
}

// TripStatusUpdate carries one optimistic status-advance write.
type TripStatusUpdate struct {
	TripID             uuid.UUID
	FromStatus         types.TripStatus
	FromVersion        int64
	ToStatus           types.TripStatus
	At                 time.Time
	FinalPrice         *float64
	RecordedDistanceKm *float64
	RecordedElapsedMin *int
	CancellationReason *string
}

/* ======================= rabbitmq ======================= */

type LocationMessage struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

type TripRequestedMessage struct {
	TripID              uuid.UUID       `json:"trip_id"`
	TripNumber          string          `json:"trip_number"`
	ServiceType         string          `json:"service_type"`
	VehicleType         string          `json:"vehicle_type"`
	PickupLocation      LocationMessage `json:"pickup_location"`
	DestinationLocation LocationMessage `json:"destination_location"`
	EstimatedPrice      float64         `json:"estimated_price"`
	CorrelationID       string          `json:"correlation_id"`
}

type TripStatusMessage struct {
	TripID        uuid.UUID  `json:"trip_id"`
	Status        string     `json:"status"`
	DriverID      *uuid.UUID `json:"driver_id,omitempty"`
	FinalPrice    *float64   `json:"final_price,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
	CorrelationID string     `json:"correlation_id"`
}
