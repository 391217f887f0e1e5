package controllers

import (
	"net/http"

	"github.com/plusonehq/plusone-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}
