package common

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rovits/poi-sync-service/internal/places"
)

// GetAndValidateURLParam extracts, decodes, and validates a URL parameter from the request.
// Validation rules:
// - Must not be empty after trimming whitespace
// - Must not contain any whitespace characters
func GetAndValidateURLParam(r *http.Request, paramName string) (string, error) {
	encodedValue := chi.URLParam(r, paramName)

	decoded, err := url.PathUnescape(encodedValue)
	if err != nil {
		return "", places.NewValidationError(paramName, "invalid URL encoding")
	}

	if strings.TrimSpace(decoded) == "" {
		return "", places.NewValidationError(paramName, "cannot be empty")
	}

	if strings.ContainsAny(decoded, " \t\n\r") {
		return "", places.NewValidationError(paramName, "cannot contain whitespace")
	}

	return decoded, nil
}

// QueryFloat parses a float query parameter. A missing parameter yields def,
// or a validation error when required is set.
func QueryFloat(r *http.Request, name string, def float64, required bool) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		if required {
			return 0, places.NewValidationError(name, "is required")
		}
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, places.NewValidationError(name, "must be a number, got %q", raw)
	}
	return v, nil
}

// QueryInt parses an integer query parameter, returning def when missing
func QueryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, places.NewValidationError(name, "must be an integer, got %q", raw)
	}
	return v, nil
}

// QueryString returns a trimmed query parameter or def when it is blank
func QueryString(r *http.Request, name, def string) string {
	if v := strings.TrimSpace(r.URL.Query().Get(name)); v != "" {
		return v
	}
	return def
}

// HasQuery reports whether the query parameter is present and non-blank
func HasQuery(r *http.Request, name string) bool {
	return strings.TrimSpace(r.URL.Query().Get(name)) != ""
}
