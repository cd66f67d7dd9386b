package api

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/rovits/poi-sync-service/internal/api/common"
	"github.com/rovits/poi-sync-service/internal/logging"
	"github.com/rovits/poi-sync-service/internal/ratelimit"
)

// CorrelationIDHeader carries the id that ties a request to its log lines
const CorrelationIDHeader = logging.CorrelationIDHeader

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.DebugContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

// CorrelationIDMiddleware reuses the caller's X-Correlation-ID or falls back
// to the chi request id, echoes it on the response and attaches it to the
// request context for logging
func CorrelationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(CorrelationIDHeader))
		if id == "" {
			id = middleware.GetReqID(r.Context())
		}
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(CorrelationIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithCorrelationID(r.Context(), id)))
	})
}

// APIKeyConfig configures APIKeyMiddleware
type APIKeyConfig struct {
	// Header defaults to X-API-Key
	Header string
	Key    string

	// Limit requests per Period are allowed for each presented key
	Limiter *ratelimit.Limiter
	Limit   int
	Period  time.Duration

	// Lockout throttles callers that keep presenting bad keys. Optional.
	Lockout *ratelimit.Lockout

	// ExemptPaths defaults to ratelimit.DefaultExemptPaths
	ExemptPaths []string
}

// APIKeyMiddleware rejects requests without the configured API key. Each
// presented key value is rate limited, and repeated failures lock the caller
// out for a while.
func APIKeyMiddleware(cfg APIKeyConfig) func(http.Handler) http.Handler {
	header := cfg.Header
	if header == "" {
		header = "X-API-Key"
	}
	exempt := cfg.ExemptPaths
	if exempt == nil {
		exempt = ratelimit.DefaultExemptPaths
	}
	expected := []byte(cfg.Key)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range exempt {
				if r.URL.Path == p {
					next.ServeHTTP(w, r)
					return
				}
			}

			provided := r.Header.Get(header)
			subject := provided
			if subject == "" {
				subject = "unknown"
			}

			if cfg.Limiter != nil && cfg.Limiter.IsExceeded(r.Context(), "apikey:"+subject, cfg.Limit, cfg.Period) {
				common.WriteErrorResponse(w, common.CodeRateLimited, "Too many requests", http.StatusTooManyRequests)
				return
			}

			if provided != "" && subtle.ConstantTimeCompare([]byte(provided), expected) == 1 {
				next.ServeHTTP(w, r)
				return
			}

			if cfg.Lockout != nil {
				err := cfg.Lockout.CheckAndIncrease(r.Context(), "apikey-fail:"+subject, ratelimit.ClientIP(r))
				var exceeded *ratelimit.ExceededError
				if errors.As(err, &exceeded) {
					slog.WarnContext(r.Context(), "API key attempts locked out",
						"scope", exceeded.Scope, "blocked_until", exceeded.BlockedUntil)
					w.Header().Set("Retry-After", retryAfter(exceeded.BlockedUntil))
					common.WriteErrorResponse(w, common.CodeRateLimited, "Too many failed attempts", http.StatusTooManyRequests)
					return
				}
			}

			common.WriteErrorResponse(w, common.CodeUnauthorized, "Unauthorized (API key missing or invalid)", http.StatusUnauthorized)
		})
	}
}

func retryAfter(until time.Time) string {
	secs := int(time.Until(until).Seconds()) + 1
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
