package trip

import (
	"context"
	"fmt"
	"time"

	wrap "github.com/Temutjin2k/trip-dispatch/pkg/logger/wrapper"
)

// generateTripNumber produces the human-readable daily sequence number,
// e.g. TRIP_20260901_042.
func (s *Service) generateTripNumber(ctx context.Context) (string, error) {
	now := time.Now()
	datePart := now.Format("20060102")

	count, err := s.trips.CountByDate(ctx, now)
	if err != nil {
		return "", wrap.Error(ctx, err)
	}

	nextSequence := count + 1
	return fmt.Sprintf("TRIP_%s_%03d", datePart, nextSequence), nil
}
