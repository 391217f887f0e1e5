package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/plusonehq/plusone-backend/api/responses"
	"github.com/plusonehq/plusone-backend/api/validators"
	"github.com/plusonehq/plusone-backend/internal/ledger"
	"github.com/plusonehq/plusone-backend/pkg/db/models"
	"github.com/plusonehq/plusone-backend/pkg/enums"
	"github.com/plusonehq/plusone-backend/pkg/logger"
)

type transitionView struct {
	ID         int64            `json:"id"`
	OrderID    int64            `json:"order_id"`
	StatusType enums.StatusType `json:"status_type"`
	OldValue   bool             `json:"old_value"`
	NewValue   bool             `json:"new_value"`
	ChangedBy  int64            `json:"changed_by"`
	ChangedAt  time.Time        `json:"changed_at"`
}

func newTransitionView(row *models.StatusTransition) transitionView {
	return transitionView{
		ID:         row.ID,
		OrderID:    row.OrderID,
		StatusType: row.StatusType,
		OldValue:   row.OldValue,
		NewValue:   row.NewValue,
		ChangedBy:  row.ChangedBy,
		ChangedAt:  row.ChangedAt,
	}
}

type recordStatusRequest struct {
	StatusType string `json:"status_type" validate:"required,max=64"`
	NewValue   bool   `json:"new_value"`
	ChangedBy  int64  `json:"changed_by" validate:"required,gt=0"`
}

// RecordStatus appends one status transition to the order's audit trail.
// The old value is read from the derived current value at append time;
// racing actors both land in the trail.
func RecordStatus(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body recordStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		oldValue, err := svc.CurrentValue(r.Context(), orderID, enums.StatusType(body.StatusType))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.RecordTransition(r.Context(), ledger.RecordTransitionInput{
			OrderID:    orderID,
			StatusType: enums.StatusType(body.StatusType),
			OldValue:   oldValue,
			NewValue:   body.NewValue,
			ChangedBy:  body.ChangedBy,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newTransitionView(row))
	}
}

// GetStatus derives current flag values from the transition log. With a
// statusType path segment (or a type query parameter) it returns that flag
// alone; otherwise it reports the built-in flag set.
func GetStatus(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	builtins := []enums.StatusType{
		enums.StatusTypePaid,
		enums.StatusTypeShipped,
		enums.StatusTypeConfirmed,
		enums.StatusTypeCanceled,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		raw := strings.TrimSpace(chi.URLParam(r, "statusType"))
		if raw == "" {
			raw = strings.TrimSpace(r.URL.Query().Get("type"))
		}
		if raw != "" {
			value, err := svc.CurrentValue(r.Context(), orderID, enums.StatusType(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, map[string]any{
				"order_id":    orderID,
				"status_type": strings.ToLower(raw),
				"value":       value,
			})
			return
		}

		statuses := map[string]bool{}
		for _, statusType := range builtins {
			value, err := svc.CurrentValue(r.Context(), orderID, statusType)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			statuses[string(statusType)] = value
		}
		responses.WriteSuccess(w, map[string]any{
			"order_id": orderID,
			"statuses": statuses,
		})
	}
}

// GetHistory returns the order's full transition trail, oldest first.
func GetHistory(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.History(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]transitionView, 0, len(rows))
		for i := range rows {
			views = append(views, newTransitionView(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{
			"order_id":    orderID,
			"transitions": views,
		})
	}
}
