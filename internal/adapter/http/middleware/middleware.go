package middleware

import (
	"context"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
	"github.com/Temutjin2k/trip-dispatch/pkg/logger"
)

type (
	TokenVerifier interface {
		Verify(ctx context.Context, token string) (*models.Actor, error)
	}

	Middleware struct {
		verifier TokenVerifier
		log      logger.Logger
	}
)

func NewMiddleware(verifier TokenVerifier, log logger.Logger) *Middleware {
	return &Middleware{
		verifier: verifier,
		log:      log,
	}
}
