package models

import (
	"time"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/types"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
)

// Driver is the availability record used for dispatch decisions.
// Profile data (name, documents, photos) lives in the external profile service.
type Driver struct {
	ID             uuid.UUID
	VehicleType    types.VehicleType
	Verification   types.VerificationStatus
	Available      bool
	CompanyID      *uuid.UUID
	LastLatitude   *float64
	LastLongitude  *float64
	LastLocationAt *time.Time
	TotalTrips     int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsApproved reports whether the driver passed document verification.
func (d *Driver) IsApproved() bool {
	return d.Verification == types.VerificationApproved
}

// DriverPoint is a driver position returned by the live location index.
type DriverPoint struct {
	ID        uuid.UUID `json:"id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}

// DriverCandidate is a dispatchable driver with distance to a pickup point.
type DriverCandidate struct {
	Driver     *Driver `json:"driver"`
	DistanceKm float64 `json:"distance_km"`
	Favorite   bool    `json:"favorite"`
	TrustScore float64 `json:"trust_score"`
}
