package httpclient

import (
	"fmt"
	"net/http"
)

// HTTPError represents a non-2xx upstream response
type HTTPError struct {
	StatusCode int
	Message    string
	URL        string
	Body       []byte
	RetryAfter string
}

// Error returns the error message
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// Retryable reports whether repeating the request may succeed
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}
