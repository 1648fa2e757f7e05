package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
	"github.com/Temutjin2k/trip-dispatch/internal/domain/types"
	"github.com/Temutjin2k/trip-dispatch/pkg/logger"
	wrap "github.com/Temutjin2k/trip-dispatch/pkg/logger/wrapper"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Verifier validates access tokens issued by the external identity service.
// Dispatch never issues tokens itself; it shares the HS256 secret and trusts
// the user_id and role claims.
type Verifier struct {
	secret string
	log    logger.Logger
}

func NewVerifier(secret string, log logger.Logger) *Verifier {
	return &Verifier{
		secret: secret,
		log:    log,
	}
}

// Verify parses the token and returns the actor it identifies.
func (s *Verifier) Verify(ctx context.Context, token string) (*models.Actor, error) {
	ctx = wrap.WithAction(ctx, "verify_token")

	parsed, err := jwt.ParseWithClaims(token, jwt.MapClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return []byte(s.secret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, wrap.Error(ctx, ErrInvalidToken)
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, wrap.Error(ctx, ErrInvalidToken)
	}

	userIDStr, _ := mc["user_id"].(string)
	if userIDStr == "" {
		return nil, wrap.Error(ctx, fmt.Errorf("invalid or missing 'user_id' in token claims"))
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("invalid 'user_id' in token claims"))
	}

	role, _ := mc["role"].(string)
	if role == "" {
		return nil, wrap.Error(ctx, fmt.Errorf("invalid or missing 'role' in token claims"))
	}

	expFloat, ok := mc["exp"].(float64)
	if !ok {
		return nil, wrap.Error(ctx, fmt.Errorf("invalid or missing 'exp' in token claims"))
	}
	if time.Now().UTC().After(time.Unix(int64(expFloat), 0)) {
		return nil, wrap.Error(ctx, ErrExpiredToken)
	}

	return &models.Actor{
		ID:   userID,
		Role: types.UserRole(role),
	}, nil
}
