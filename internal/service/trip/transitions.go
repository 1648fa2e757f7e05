package trip

import (
	"strings"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/types"
)

// allowedTransitions is the fixed lifecycle table. CANCELLED is reachable
// from every non-terminal state; terminal states allow nothing.
var allowedTransitions = map[types.TripStatus][]types.TripStatus{
	types.StatusPending:    {types.StatusCancelled},
	types.StatusAccepted:   {types.StatusArrived, types.StatusCancelled},
	types.StatusArrived:    {types.StatusInProgress, types.StatusCancelled},
	types.StatusInProgress: {types.StatusCompleted, types.StatusCancelled},
}

func transitionAllowed(from, to types.TripStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseTargetStatus normalizes a client-supplied target status. "picked_up"
// and "in_progress" are synonyms for the same forward transition.
func ParseTargetStatus(raw string) (types.TripStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "ARRIVED":
		return types.StatusArrived, true
	case "PICKED_UP", "IN_PROGRESS":
		return types.StatusInProgress, true
	case "COMPLETED":
		return types.StatusCompleted, true
	case "CANCELLED":
		return types.StatusCancelled, true
	default:
		return "", false
	}
}

// assignmentStatusFor maps the trip's new status onto the assignment record,
// which is kept in lock-step.
func assignmentStatusFor(status types.TripStatus) types.AssignmentStatus {
	switch status {
	case types.StatusArrived:
		return types.AssignmentArrived
	case types.StatusInProgress:
		return types.AssignmentInProgress
	case types.StatusCompleted:
		return types.AssignmentCompleted
	case types.StatusCancelled:
		return types.AssignmentCancelled
	default:
		return types.AssignmentAssigned
	}
}
