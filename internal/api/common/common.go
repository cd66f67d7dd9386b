// Package common provides shared HTTP utility functions for API handlers and
// middleware: the response envelope, error codes and parameter parsing.
package common

import (
	"encoding/json"
	"net/http"
)

// Error codes carried in the response envelope
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeExternalService = "EXTERNAL_SERVICE_ERROR"
	CodeInternal        = "INTERNAL_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeRateLimited     = "RATE_LIMIT_EXCEEDED"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeUnavailable     = "SERVICE_UNAVAILABLE"
)

// ErrorDetail describes a failed request
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response is the envelope of every API response
type Response struct {
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// WriteJSONResponse writes data inside a success envelope
func WriteJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	writeEnvelope(w, Response{Success: true, Data: data}, statusCode)
}

// WriteErrorResponse writes a standardized error response
func WriteErrorResponse(w http.ResponseWriter, code, message string, statusCode int) {
	writeEnvelope(w, Response{Error: &ErrorDetail{Code: code, Message: message}}, statusCode)
}

func writeEnvelope(w http.ResponseWriter, resp Response, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
