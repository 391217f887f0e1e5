package controllers

import (
	"context"
	"net/http"

	"github.com/plusonehq/plusone-backend/api/responses"
	"github.com/plusonehq/plusone-backend/pkg/config"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PlusOne-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports degraded dependencies without failing the endpoint, so
// orchestrators can distinguish a dead process from a wobbly dependency.
func HealthReady(cfg *config.Config, db pinger, cache pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PlusOne-Env", cfg.App.Env)

		checks := map[string]string{}
		ready := true
		for name, dep := range map[string]pinger{"db": db, "redis": cache} {
			if dep == nil {
				checks[name] = "skipped"
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				checks[name] = "unreachable"
				ready = false
				continue
			}
			checks[name] = "ok"
		}

		status := "ready"
		code := http.StatusOK
		if !ready {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		responses.WriteSuccessStatus(w, code, map[string]any{
			"status": status,
			"checks": checks,
		})
	}
}
