package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
	"github.com/Temutjin2k/trip-dispatch/internal/domain/types"
	wrap "github.com/Temutjin2k/trip-dispatch/pkg/logger/wrapper"
)

// --- base auth middleware ---

// Auth validates the identity-service JWT and injects the actor into context.
// Requests without a header proceed as anonymous; protected endpoints reject
// them via RequireRoles.
func (h *Middleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		header := r.Header.Get("Authorization")
		if header == "" {
			r = r.WithContext(models.WithActor(ctx, models.AnonymousActor()))
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(header)
		if err != nil {
			errorResponse(w, http.StatusUnauthorized, err.Error())
			return
		}

		actor, err := h.verifier.Verify(ctx, token)
		if err != nil || actor == nil {
			h.log.Error(wrap.ErrorCtx(ctx, err), "failed to authenticate request", err)
			errorResponse(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		ctx = wrap.WithUserID(ctx, actor.ID.String())
		next.ServeHTTP(w, r.WithContext(models.WithActor(ctx, actor)))
	})
}

// RequireRoles wraps a handler and allows only actors with one of the given
// roles. With no roles listed, any authenticated actor passes.
func (h *Middleware) RequireRoles(next http.HandlerFunc, allowedRoles ...types.UserRole) http.Handler {
	allowed := make(map[types.UserRole]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := models.ActorFromContext(r.Context())
		if actor.IsAnonymous() {
			errorResponse(w, http.StatusUnauthorized, "authorization required")
			return
		}
		if len(allowed) > 0 {
			if _, ok := allowed[actor.Role]; !ok {
				errorResponse(w, http.StatusForbidden, "forbidden: insufficient role")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// --- header parser ---
func extractBearerToken(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", fmt.Errorf("invalid Authorization header format")
	}
	return parts[1], nil
}
