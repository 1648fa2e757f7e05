package types

import "errors"

var (
	// not found
	ErrTripNotFound       = errors.New("trip not found")
	ErrDriverNotFound     = errors.New("driver not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrFareRuleNotFound   = errors.New("fare rule not found")
	ErrCompanyNotFound    = errors.New("company not found")
	ErrNotFound           = errors.New("requested item not found")

	// state conflict
	ErrTripAlreadyAccepted = errors.New("trip already accepted by another driver")
	ErrInvalidTransition   = errors.New("invalid trip status transition")
	ErrTripStateChanged    = errors.New("trip state changed concurrently, retry")

	// eligibility
	ErrDriverNotVerified   = errors.New("driver is not verified")
	ErrDriverNotAvailable  = errors.New("driver is not available")
	ErrDriverOnTrip        = errors.New("driver has an active assignment")
	ErrVehicleIncompatible = errors.New("vehicle type cannot serve this trip")

	// permission
	ErrNotAssignmentOwner = errors.New("caller does not own this assignment")
)
