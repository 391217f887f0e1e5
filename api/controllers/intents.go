package controllers

import (
	"net/http"

	"github.com/plusonehq/plusone-backend/api/responses"
	"github.com/plusonehq/plusone-backend/api/validators"
	"github.com/plusonehq/plusone-backend/internal/orders"
	"github.com/plusonehq/plusone-backend/pkg/logger"
)

// SubmitIntent accepts one "+1" purchase intent and folds it into the
// caller's aggregate order for the post. Omitting delta means one unit.
func SubmitIntent(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input orders.AccumulateInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.Delta == 0 {
			input.Delta = 1
		}

		row, err := svc.Accumulate(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderView(row))
	}
}
