package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tendant/simple-org-admin/internal/config"
	"github.com/tendant/simple-org-admin/internal/http/features/devices"
	"github.com/tendant/simple-org-admin/internal/http/features/members"
	"github.com/tendant/simple-org-admin/internal/http/features/scim"
	"github.com/tendant/simple-org-admin/internal/http/features/twofactor"
	"github.com/tendant/simple-org-admin/internal/http/middleware"
	"github.com/tendant/simple-org-admin/internal/httputil"
	"github.com/tendant/simple-org-admin/internal/push"
	"github.com/tendant/simple-org-admin/pkg/auth"
	"github.com/tendant/simple-org-admin/pkg/membership"
	"github.com/tendant/simple-org-admin/pkg/repository"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger            *slog.Logger
	Tokens            *auth.AccessTokenService
	Commands          *membership.Commands
	OrganizationUsers *repository.OrganizationUsersRepository
	ProviderUsers     *repository.ProviderUsersRepository
	Users             *repository.UsersRepository
	TwoFactor         *auth.TwoFactorService // nil disables two-step login routes
	TwoFactorEnforcer twofactor.Enforcer
	Devices           *push.DeviceService
	PushHub           *push.Hub
	AllowedOrigins    []string // websocket origins; empty allows any
	RateLimitConfig   config.RateLimitConfig
	SecurityHeaders   config.SecurityHeadersConfig
	Validation        config.ValidationConfig
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.Validation.MaxRequestBodySize))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)
	authenticated := middleware.Auth(cfg.Tokens)
	manage := middleware.ManageUsers(cfg.OrganizationUsers, cfg.ProviderUsers)

	membersHandler := members.NewHandler(cfg.Logger, cfg.Commands, cfg.OrganizationUsers, cfg.Users, cfg.Validation.MaxBulkItems)
	r.Group(func(r chi.Router) {
		r.Use(authenticated)
		r.Use(rateLimiters["admin"])
		membersHandler.RegisterAdminRoutes(r, manage)
		scim.NewHandler(cfg.Logger, cfg.Commands, cfg.OrganizationUsers).RegisterRoutes(r, manage)
	})
	r.Group(func(r chi.Router) {
		r.Use(authenticated)
		r.Use(rateLimiters["accept"])
		membersHandler.RegisterMemberRoutes(r, middleware.RequireVerified())
	})

	r.Group(func(r chi.Router) {
		r.Use(authenticated)
		r.Use(rateLimiters["profile"])

		if cfg.Devices != nil {
			devicesHandler := devices.NewHandler(cfg.Logger, cfg.Devices)
			r.Get("/v1/devices", devicesHandler.List)
			r.Post("/v1/devices", devicesHandler.Register)
		}

		if cfg.TwoFactor != nil {
			tfHandler := twofactor.NewHandler(cfg.Logger, cfg.TwoFactor, cfg.TwoFactorEnforcer)
			r.Get("/v1/me/two-factor", tfHandler.Status)
			r.Post("/v1/me/two-factor/setup", tfHandler.Setup)
			r.Post("/v1/me/two-factor/enable", tfHandler.Enable)
			r.Post("/v1/me/two-factor/verify", tfHandler.Verify)
			r.Post("/v1/me/two-factor/disable", tfHandler.Disable)
		}
	})

	// The websocket authenticates itself from the query string.
	if cfg.PushHub != nil {
		r.Method(http.MethodGet, "/v1/push", push.NewHandler(cfg.PushHub, cfg.Tokens, cfg.AllowedOrigins))
	}

	return r
}
