package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/plusonehq/plusone-backend/pkg/logger"
)

// Logging emits one line per request with status, duration, and bytes
// written. Health probes are logged only on completion to keep probe noise
// down.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			probe := strings.HasPrefix(r.URL.Path, "/health/")

			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"method": r.Method,
					"path":   r.URL.Path,
				})
				if !probe {
					logg.Info(ctx, "request.start")
				}
			}

			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()

			next.ServeHTTP(rec, r.WithContext(ctx))

			if rec.status == 0 {
				rec.status = http.StatusOK
			}

			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"status":      rec.status,
					"bytes":       rec.bytes,
					"duration_ms": time.Since(start).Milliseconds(),
				})
				if rec.status >= http.StatusInternalServerError {
					logg.Warn(ctx, "request.complete")
				} else {
					logg.Info(ctx, "request.complete")
				}
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}
