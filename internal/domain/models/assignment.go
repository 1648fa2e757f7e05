package models

import (
	"time"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/types"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
)

// Assignment binds one trip to one driver. At most one non-terminal
// assignment exists per trip; the ledger enforces this under a row lock.
type Assignment struct {
	TripID     uuid.UUID
	DriverID   uuid.UUID
	Status     types.AssignmentStatus
	AssignedAt time.Time
	UpdatedAt  time.Time
}

// IsTerminal reports whether the assignment reached a final state.
func (a *Assignment) IsTerminal() bool {
	return a.Status == types.AssignmentCompleted || a.Status == types.AssignmentCancelled
}
