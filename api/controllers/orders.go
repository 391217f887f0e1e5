package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/plusonehq/plusone-backend/api/responses"
	"github.com/plusonehq/plusone-backend/api/validators"
	"github.com/plusonehq/plusone-backend/internal/orders"
	"github.com/plusonehq/plusone-backend/pkg/db/models"
	pkgerrors "github.com/plusonehq/plusone-backend/pkg/errors"
	"github.com/plusonehq/plusone-backend/pkg/logger"
	"github.com/plusonehq/plusone-backend/pkg/pagination"
	"github.com/plusonehq/plusone-backend/pkg/types"
)

type orderView struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	ProductID       int64     `json:"product_id"`
	PostID          int64     `json:"post_id"`
	Quantity        int64     `json:"quantity"`
	Variant         *string   `json:"variant,omitempty"`
	ExternalOrderID *int64    `json:"external_order_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func newOrderView(row *models.AggregateOrder) orderView {
	return orderView{
		ID:              row.ID,
		UserID:          row.UserID,
		ProductID:       row.ProductID,
		PostID:          row.PostID,
		Quantity:        row.Quantity,
		Variant:         row.Variant,
		ExternalOrderID: row.ExternalOrderID,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "path parameter must be a positive id").WithDetails(map[string]any{"field": name})
	}
	return value, nil
}

// LinkOrder attaches the external checkout order id to an aggregate.
func LinkOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input orders.LinkInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.OrderID = orderID

		result, err := svc.LinkExternalOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"linked": result.Linked,
			"order":  newOrderView(result.Order),
		})
	}
}

// GetOrder returns one aggregate order by id.
func GetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.FindByID(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderView(row))
	}
}

// FindOrder looks up a user's aggregate on one post.
func FindOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := validators.ParseQueryInt64(r, "user_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		postID, err := validators.ParseQueryInt64(r, "post_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.FindByUserAndPost(r.Context(), userID, postID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderView(row))
	}
}

// ListOrdersByPost pages aggregates for one post, newest first.
func ListOrdersByPost(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, err := pathID(r, "postId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, next, err := svc.ListByPost(r.Context(), orders.ListByPostInput{
			PostID: postID,
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]orderView, 0, len(rows))
		for i := range rows {
			views = append(views, newOrderView(&rows[i]))
		}
		responses.WriteSuccess(w, types.CursorPage{
			Items:      views,
			NextCursor: next,
		})
	}
}

// DeleteOrder removes an aggregate order. Status history stays behind.
func DeleteOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var actorID int64
		if raw := strings.TrimSpace(r.URL.Query().Get("actor_id")); raw != "" {
			actorID, err = strconv.ParseInt(raw, 10, 64)
			if err != nil || actorID <= 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "actor_id must be a positive id"))
				return
			}
		}

		if err := svc.Delete(r.Context(), orderID, actorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"deleted": true, "order_id": orderID})
	}
}
