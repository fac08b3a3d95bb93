// Package scim serves the directory-sync endpoints. Changes made here are
// attributed to the SCIM system user rather than the caller.
package scim

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tendant/simple-org-admin/internal/http/middleware"
	"github.com/tendant/simple-org-admin/internal/httputil"
	"github.com/tendant/simple-org-admin/pkg/domain"
	"github.com/tendant/simple-org-admin/pkg/membership"
)

// MemberStore loads memberships.
type MemberStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.OrganizationUser, error)
}

// Handler handles SCIM user requests.
type Handler struct {
	logger   *slog.Logger
	commands *membership.Commands
	members  MemberStore
}

// NewHandler creates a new SCIM handler.
func NewHandler(logger *slog.Logger, commands *membership.Commands, members MemberStore) *Handler {
	return &Handler{logger: logger, commands: commands, members: members}
}

// PatchRequest toggles a member's access.
type PatchRequest struct {
	Active *bool `json:"active"`
}

// RegisterRoutes registers SCIM routes. manage must authorize the caller
// for the {orgID} organization.
func (h *Handler) RegisterRoutes(r chi.Router, manage func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(manage)
		r.Patch("/v1/scim/organizations/{orgID}/users/{id}", h.Patch)
		r.Delete("/v1/scim/organizations/{orgID}/users/{id}", h.Delete)
	})
}

// Delete handles DELETE /v1/scim/organizations/{orgID}/users/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	orgID, _ := middleware.GetOrganizationID(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusNotFound, "organization user not found")
		return
	}
	if err := h.commands.Remove.RemoveUserBySystem(r.Context(), orgID, id, domain.SystemUserSCIM); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Patch handles PATCH /v1/scim/organizations/{orgID}/users/{id}.
// active=false revokes the member and active=true restores them.
func (h *Handler) Patch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, _ := middleware.GetOrganizationID(ctx)
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusNotFound, "organization user not found")
		return
	}

	var req PatchRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.Active == nil {
		httputil.Error(w, http.StatusBadRequest, "active is required")
		return
	}

	ou, err := h.members.GetByID(ctx, id)
	if err == nil && ou.OrganizationID != orgID {
		err = domain.ErrOrganizationUserNotFound
	}
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	switch {
	case *req.Active && ou.Status == domain.OrganizationUserStatusRevoked:
		err = h.commands.Restore.RestoreUser(ctx, ou, nil)
	case !*req.Active && ou.Status != domain.OrganizationUserStatusRevoked:
		err = h.commands.Revoke.RevokeUserBySystem(ctx, ou, domain.SystemUserSCIM)
	}
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
