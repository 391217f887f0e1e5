package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/plusonehq/plusone-backend/api/responses"
	pkgerrors "github.com/plusonehq/plusone-backend/pkg/errors"
	"github.com/plusonehq/plusone-backend/pkg/logger"
)

// Recoverer converts handler panics into INTERNAL_ERROR responses.
// http.ErrAbortHandler is re-raised so aborted streams stay aborted.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					err := fmt.Errorf("panic: %v", rec)
					ctx := r.Context()
					if logg != nil {
						ctx = logg.WithFields(ctx, map[string]any{
							"panic": rec,
							"stack": string(debug.Stack()),
						})
						logg.Error(ctx, "panic.recovered", err)
					}
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
