package trust

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/types"
	wrap "github.com/Temutjin2k/trip-dispatch/pkg/logger/wrapper"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
)

// Client talks to the external trust/favorites service. Match ranking uses
// its signals as tie-breakers only, so callers must tolerate lookup failures.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 3 * time.Second,
		},
	}
}

type signalsPayload struct {
	TrustScore float64     `json:"trust_score"`
	Favorites  []uuid.UUID `json:"favorites"`
}

// Signals returns the rider's trust score for the driver and whether the
// driver is on the rider's favorites list.
func (c *Client) Signals(ctx context.Context, riderID, driverID uuid.UUID) (trustScore float64, favorite bool, err error) {
	const op = "trust.Client.Signals"

	url := fmt.Sprintf("%s/v1/riders/%s/signals?key=%s", c.baseURL, riderID, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		ctx = wrap.WithAction(ctx, types.ActionExternalServiceFailed)
		return 0, false, wrap.Error(ctx, fmt.Errorf("%s: failed to call trust service: %w", op, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		ctx = wrap.WithAction(ctx, types.ActionExternalServiceFailed)
		return 0, false, wrap.Error(ctx, fmt.Errorf("%s: unexpected response status %d", op, resp.StatusCode))
	}

	var payload signalsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		ctx = wrap.WithAction(ctx, "decode_trust_payload")
		return 0, false, wrap.Error(ctx, fmt.Errorf("%s: failed to decode trust response: %w", op, err))
	}

	for _, id := range payload.Favorites {
		if id == driverID {
			favorite = true
			break
		}
	}

	return payload.TrustScore, favorite, nil
}

// Nop is the stand-in used when no trust service is configured. Every driver
// looks the same to it, so ranking falls through to distance and age.
type Nop struct{}

func (Nop) Signals(ctx context.Context, riderID, driverID uuid.UUID) (float64, bool, error) {
	return 0, false, nil
}
