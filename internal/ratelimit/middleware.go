package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rovits/poi-sync-service/internal/api/common"
	"github.com/rovits/poi-sync-service/internal/telemetry"
)

// DefaultExemptPaths are never limited
var DefaultExemptPaths = []string{"/health", "/readiness", "/version", "/metrics"}

// MiddlewareConfig configures Middleware
type MiddlewareConfig struct {
	AnonymousLimit     int
	AuthenticatedLimit int
	Period             time.Duration

	// JWTSecret verifies HS256 bearer tokens. Without it every caller is
	// limited by IP.
	JWTSecret []byte

	// ExemptPaths defaults to DefaultExemptPaths
	ExemptPaths []string

	Metrics *telemetry.RateLimitMetrics
}

// Middleware limits requests per authenticated user or, for anonymous
// callers, per client IP
func Middleware(limiter *Limiter, cfg MiddlewareConfig) func(http.Handler) http.Handler {
	exempt := cfg.ExemptPaths
	if exempt == nil {
		exempt = DefaultExemptPaths
	}
	retryAfter := strconv.Itoa(int(cfg.Period.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range exempt {
				if r.URL.Path == p {
					next.ServeHTTP(w, r)
					return
				}
			}

			key, limit, scope := "ip:"+ClientIP(r), cfg.AnonymousLimit, "anonymous"
			if sub := bearerSubject(r, cfg.JWTSecret); sub != "" {
				key, limit, scope = "user:"+sub, cfg.AuthenticatedLimit, "authenticated"
			}

			if limiter.IsExceeded(r.Context(), key, limit, cfg.Period) {
				cfg.Metrics.RecordRejection(r.Context(), scope)
				w.Header().Set("Retry-After", retryAfter)
				common.WriteErrorResponse(w, common.CodeRateLimited, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host of r.RemoteAddr. Run RealIP first to resolve
// callers behind trusted proxies.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// bearerSubject returns the subject of a valid HS256 bearer token
func bearerSubject(r *http.Request, secret []byte) string {
	if len(secret) == 0 {
		return ""
	}
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return ""
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return ""
	}
	return claims.Subject
}
