package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/tendant/simple-org-admin/internal/config"
	"github.com/tendant/simple-org-admin/internal/testutil"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Requests: 2, Window: time.Minute, Logger: testutil.DiscardLogger()})(okHandler())

	send := func(remoteAddr string, userID *uuid.UUID) int {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = remoteAddr
		if userID != nil {
			req = req.WithContext(WithUserID(req.Context(), *userID))
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("192.168.1.1:12345", nil))
	assert.Equal(t, http.StatusOK, send("192.168.1.1:12345", nil))
	assert.Equal(t, http.StatusTooManyRequests, send("192.168.1.1:12345", nil))

	// Authenticated users get their own bucket, even behind the same IP.
	alice := uuid.New()
	assert.Equal(t, http.StatusOK, send("192.168.1.1:12345", &alice))
	assert.Equal(t, http.StatusOK, send("192.168.1.1:12345", &alice))
	assert.Equal(t, http.StatusTooManyRequests, send("192.168.1.1:12345", &alice))

	bob := uuid.New()
	assert.Equal(t, http.StatusOK, send("192.168.1.1:12345", &bob))
}

func TestCreateRateLimiters(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.RateLimitConfig
		wantLimited bool
	}{
		{"disabled", config.RateLimitConfig{}, false},
		{"enabled", config.RateLimitConfig{
			Enabled:                  true,
			AdminRequestsPerMinute:   1,
			AdminWindowMinutes:       1,
			AcceptRequestsPerWindow:  1,
			AcceptWindowMinutes:      1,
			ProfileRequestsPerMinute: 1,
			ProfileWindowMinutes:     1,
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiters := CreateRateLimiters(tt.cfg, testutil.DiscardLogger())
			for _, group := range []string{"admin", "accept", "profile"} {
				limiter, ok := limiters[group]
				if !assert.True(t, ok, group) {
					continue
				}
				handler := limiter(okHandler())
				var last int
				for i := 0; i < 3; i++ {
					w := httptest.NewRecorder()
					handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
					last = w.Code
				}
				if tt.wantLimited {
					assert.Equal(t, http.StatusTooManyRequests, last, group)
				} else {
					assert.Equal(t, http.StatusOK, last, group)
				}
			}
		})
	}
}
