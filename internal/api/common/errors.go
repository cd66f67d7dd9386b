package common

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rovits/poi-sync-service/internal/places"
)

// WriteError maps err onto the error envelope. Validation errors become 400,
// upstream failures 503 and everything else 500.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *places.ValidationError
		external   *places.ExternalSourceError
	)
	switch {
	case errors.As(err, &validation):
		WriteErrorResponse(w, CodeValidation, validation.Error(), http.StatusBadRequest)
	case errors.As(err, &external):
		slog.WarnContext(r.Context(), "Upstream place source failed", "service", external.Service, "error", err)
		WriteErrorResponse(w, CodeExternalService, "External place service is unavailable", http.StatusServiceUnavailable)
	default:
		slog.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		WriteErrorResponse(w, CodeInternal, "Internal server error", http.StatusInternalServerError)
	}
}
