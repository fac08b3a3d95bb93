package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/tendant/simple-org-admin/internal/config"
	"github.com/tendant/simple-org-admin/internal/httputil"
)

// RateLimitConfig holds rate limiting configuration for a specific endpoint type.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Logger   *slog.Logger
}

// RateLimit creates a rate limiter keyed by authenticated user, falling back
// to the client IP for anonymous requests.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(userOrIPKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Logger != nil {
				cfg.Logger.Warn("rate limit exceeded",
					"ip", r.RemoteAddr,
					"user_id", userIDString(r),
					"path", r.URL.Path,
					"method", r.Method,
					"user_agent", r.UserAgent(),
				)
			}
			httputil.Error(w, http.StatusTooManyRequests, "rate limit exceeded. please try again later")
		}),
	)
}

// NoRateLimit returns a no-op middleware when rate limiting is disabled.
func NoRateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return next
	}
}

// CreateRateLimiters creates rate limiting middleware per route group:
// "admin" for member administration, "accept" for invite acceptance and
// "profile" for the caller's own settings.
func CreateRateLimiters(cfg config.RateLimitConfig, logger *slog.Logger) map[string]func(http.Handler) http.Handler {
	if !cfg.Enabled {
		noOp := NoRateLimit()
		return map[string]func(http.Handler) http.Handler{
			"admin":   noOp,
			"accept":  noOp,
			"profile": noOp,
		}
	}

	return map[string]func(http.Handler) http.Handler{
		"admin": RateLimit(RateLimitConfig{
			Requests: cfg.AdminRequestsPerMinute,
			Window:   time.Duration(cfg.AdminWindowMinutes) * time.Minute,
			Logger:   logger,
		}),
		"accept": RateLimit(RateLimitConfig{
			Requests: cfg.AcceptRequestsPerWindow,
			Window:   time.Duration(cfg.AcceptWindowMinutes) * time.Minute,
			Logger:   logger,
		}),
		"profile": RateLimit(RateLimitConfig{
			Requests: cfg.ProfileRequestsPerMinute,
			Window:   time.Duration(cfg.ProfileWindowMinutes) * time.Minute,
			Logger:   logger,
		}),
	}
}

func userOrIPKey(r *http.Request) (string, error) {
	if id, ok := GetUserID(r.Context()); ok {
		return "user:" + id.String(), nil
	}
	return httprate.KeyByIP(r)
}

func userIDString(r *http.Request) string {
	if id, ok := GetUserID(r.Context()); ok {
		return id.String()
	}
	return ""
}
