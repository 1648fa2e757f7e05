package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/types"
	"github.com/Temutjin2k/trip-dispatch/pkg/logger"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestVerifyValidToken(t *testing.T) {
	v := NewVerifier(testSecret, logger.InitLogger("test", logger.LevelError))

	userID := uuid.MustNew()
	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": userID.String(),
		"role":    "DRIVER",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	actor, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if actor.ID != userID {
		t.Errorf("actor id = %s, want %s", actor.ID, userID)
	}
	if actor.Role != types.RoleDriver {
		t.Errorf("actor role = %s, want DRIVER", actor.Role)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	v := NewVerifier(testSecret, logger.InitLogger("test", logger.LevelError))

	valid := jwt.MapClaims{
		"user_id": uuid.MustNew().String(),
		"role":    "RIDER",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{
			name:    "wrong secret",
			token:   signToken(t, "other-secret", valid),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "garbage",
			token:   "not-a-token",
			wantErr: ErrInvalidToken,
		},
		{
			name: "expired",
			token: signToken(t, testSecret, jwt.MapClaims{
				"user_id": uuid.MustNew().String(),
				"role":    "RIDER",
				"exp":     time.Now().Add(-time.Hour).Unix(),
			}),
			wantErr: ErrInvalidToken,
		},
		{
			name: "missing user id",
			token: signToken(t, testSecret, jwt.MapClaims{
				"role": "RIDER",
				"exp":  time.Now().Add(time.Hour).Unix(),
			}),
		},
		{
			name: "missing role",
			token: signToken(t, testSecret, jwt.MapClaims{
				"user_id": uuid.MustNew().String(),
				"exp":     time.Now().Add(time.Hour).Unix(),
			}),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			actor, err := v.Verify(context.Background(), tc.token)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if actor != nil {
				t.Errorf("expected nil actor, got %+v", actor)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}
