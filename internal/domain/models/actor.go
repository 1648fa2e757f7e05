package models

import (
	"context"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/types"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
)

// Actor is the authenticated caller extracted from the identity service's JWT.
type Actor struct {
	ID   uuid.UUID
	Role types.UserRole
}

// AnonymousActor represents an unauthenticated request.
func AnonymousActor() *Actor {
	return &Actor{}
}

// IsAnonymous reports whether the actor carries no identity.
func (a *Actor) IsAnonymous() bool {
	return a == nil || a.ID.IsZero()
}

type actorCtxKey struct{}

// WithActor stores the actor in the context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, actor)
}

// ActorFromContext returns the actor stored in the context, or nil.
func ActorFromContext(ctx context.Context) *Actor {
	if a, ok := ctx.Value(actorCtxKey{}).(*Actor); ok {
		return a
	}
	return nil
}
