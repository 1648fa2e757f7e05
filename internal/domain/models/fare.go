package models

import (
	"time"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/types"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
)

// FareRule is the active tariff/commission configuration for a
// (vehicle type, company-or-null) pair.
type FareRule struct {
	ID          uuid.UUID
	VehicleType types.VehicleType
	CompanyID   *uuid.UUID

	// Tariff used for price estimates
	BaseFare   float64
	PerKm      float64
	PerMin     float64

	// Commission overrides; either may be nil. An explicit value takes
	// precedence over the percentage.
	CommissionPercent *float64
	CommissionValue   *float64

	ActiveFrom time.Time
	ActiveTo   *time.Time
}

// ActiveAt reports whether the rule applies at the given instant.
func (r *FareRule) ActiveAt(at time.Time) bool {
	if at.Before(r.ActiveFrom) {
		return false
	}
	if r.ActiveTo != nil && at.After(*r.ActiveTo) {
		return false
	}
	return true
}

// Settlement is the frozen financial record of a completed trip.
// It is created exactly once and never updated.
type Settlement struct {
	ID                uuid.UUID
	TripID            uuid.UUID
	AppliedPrice      float64
	FareRuleID        *uuid.UUID
	CommissionPercent float64
	CommissionValue   float64
	DriverEarning     float64
	CompanyID         *uuid.UUID
	CreatedAt         time.Time
}

// Company carries the commission default and running aggregates.
type Company struct {
	ID                       uuid.UUID
	Name                     string
	DefaultCommissionPercent *float64
	CreatedAt                time.Time
}
