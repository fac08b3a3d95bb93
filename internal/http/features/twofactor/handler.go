package twofactor

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tendant/simple-org-admin/internal/http/middleware"
	"github.com/tendant/simple-org-admin/internal/httputil"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

// Manager enrolls and verifies TOTP secrets.
type Manager interface {
	Setup(ctx context.Context, userID uuid.UUID) (*domain.TwoFactorSetup, error)
	Enable(ctx context.Context, userID uuid.UUID, code string) error
	Verify(ctx context.Context, userID uuid.UUID, code string) (bool, error)
	Disable(ctx context.Context, userID uuid.UUID) error
	TwoFactorIsEnabled(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Enforcer revokes a user from organizations that require two-step login.
type Enforcer interface {
	EnforceForUser(ctx context.Context, userID uuid.UUID) (int, error)
}

// Handler handles two-step login requests for the signed in user.
type Handler struct {
	logger   *slog.Logger
	manager  Manager
	enforcer Enforcer
}

// NewHandler creates a new two-factor handler. enforcer may be nil.
func NewHandler(logger *slog.Logger, manager Manager, enforcer Enforcer) *Handler {
	return &Handler{logger: logger, manager: manager, enforcer: enforcer}
}

// StatusResponse reports whether two-step login is on.
type StatusResponse struct {
	Enabled bool `json:"enabled"`
}

// SetupResponse carries a pending secret for an authenticator app.
type SetupResponse struct {
	QRCode string `json:"qr_code"`
	Secret string `json:"secret"`
}

// CodeRequest carries a TOTP code.
type CodeRequest struct {
	Code string `json:"code"`
}

// DisableResponse reports the memberships revoked by turning two-step login off.
type DisableResponse struct {
	Message                  string `json:"message"`
	RevokedOrganizationUsers int    `json:"revoked_organization_users"`
}

// Status handles GET /v1/me/two-factor
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	enabled, err := h.manager.TwoFactorIsEnabled(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, StatusResponse{Enabled: enabled})
}

// Setup handles POST /v1/me/two-factor/setup
func (h *Handler) Setup(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	setup, err := h.manager.Setup(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, SetupResponse{QRCode: setup.QRCodeDataURI, Secret: setup.Secret})
}

// Enable handles POST /v1/me/two-factor/enable
func (h *Handler) Enable(w http.ResponseWriter, r *http.Request) {
	userID, code, ok := h.codeRequest(w, r)
	if !ok {
		return
	}
	if err := h.manager.Enable(r.Context(), userID, code); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	h.logger.Info("two-step login enabled", "user_id", userID)
	httputil.JSON(w, http.StatusOK, map[string]string{"message": "two-step login enabled"})
}

// Verify handles POST /v1/me/two-factor/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	userID, code, ok := h.codeRequest(w, r)
	if !ok {
		return
	}
	valid, err := h.manager.Verify(r.Context(), userID, code)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	if !valid {
		httputil.Error(w, http.StatusBadRequest, domain.ErrInvalidTwoFactorCode.Error())
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]bool{"valid": true})
}

// Disable handles POST /v1/me/two-factor/disable. A valid code is required,
// and the user loses access to organizations that require two-step login.
func (h *Handler) Disable(w http.ResponseWriter, r *http.Request) {
	userID, code, ok := h.codeRequest(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	valid, err := h.manager.Verify(ctx, userID, code)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	if !valid {
		httputil.Error(w, http.StatusBadRequest, domain.ErrInvalidTwoFactorCode.Error())
		return
	}
	if err := h.manager.Disable(ctx, userID); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	resp := DisableResponse{Message: "two-step login disabled"}
	if h.enforcer != nil {
		n, err := h.enforcer.EnforceForUser(ctx, userID)
		if err != nil {
			// Two-step login is already off; the next sweep picks up what failed here.
			h.logger.Error("failed to enforce two-step login policy", "user_id", userID, "error", err)
		}
		resp.RevokedOrganizationUsers = n
	}
	h.logger.Info("two-step login disabled", "user_id", userID, "revoked", resp.RevokedOrganizationUsers)
	httputil.JSON(w, http.StatusOK, resp)
}

func (h *Handler) codeRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, "", false
	}
	var req CodeRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return uuid.Nil, "", false
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		httputil.Error(w, http.StatusBadRequest, "code is required")
		return uuid.Nil, "", false
	}
	return userID, code, true
}
