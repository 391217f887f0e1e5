package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/plusonehq/plusone-backend/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// RequestID tags each request with an id and carries it through the logger
// context. A caller-supplied id is kept only when it parses as a UUID.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if _, err := uuid.Parse(reqID); err != nil {
				reqID = uuid.NewString()
			}

			w.Header().Set(requestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
