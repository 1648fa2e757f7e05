package middleware

import (
	"net/http"

	wrap "github.com/Temutjin2k/trip-dispatch/pkg/logger/wrapper"
	"github.com/Temutjin2k/trip-dispatch/pkg/uuid"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with an id for log correlation. An incoming
// X-Request-ID header is reused so ids survive gateway hops.
func (h *Middleware) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.MustNew().String()
		}

		w.Header().Set(requestIDHeader, id)

		ctx := wrap.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
