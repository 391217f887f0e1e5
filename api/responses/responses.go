package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/plusonehq/plusone-backend/pkg/errors"
	"github.com/plusonehq/plusone-backend/pkg/logger"
	"github.com/plusonehq/plusone-backend/pkg/types"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteError maps a coded error to its HTTP status and envelope, logging
// the full chain. Untyped errors are treated as internal.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	payload := types.ErrorEnvelope{
		Error: types.APIError{
			Code:    string(typed.Code()),
			Message: publicMessage(typed, meta),
		},
	}
	if meta.DetailsAllowed {
		payload.Error.Details = typed.Details()
	}

	if logg != nil {
		logg.Error(logg.WithFields(ctx, pkgerrors.Dump(err).Fields()), "request.error", err)
	}
	writeJSON(w, meta.HTTPStatus, payload)
}

// publicMessage prefers the caller-supplied message for the client-fault
// codes; internal and dependency failures only expose the generic text.
func publicMessage(typed *pkgerrors.Error, meta pkgerrors.Metadata) string {
	switch typed.Code() {
	case pkgerrors.CodeValidation,
		pkgerrors.CodeNotFound,
		pkgerrors.CodeConflict,
		pkgerrors.CodeIdempotency:
		if m := typed.Message(); m != "" {
			return m
		}
	}
	return meta.PublicMessage
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
