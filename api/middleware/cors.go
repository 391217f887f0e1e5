package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000", // local dev
}

// CORS returns middleware that applies the API's allowed origin policy.
// Extra origins come from configuration.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := defaultCORSOrigins
	if len(origins) > 0 {
		allowed = append(allowed, origins...)
	}
	return cors.New(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
