package members

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

const usersPath = "/v1/organizations/{orgID}/users"

// RegisterAdminRoutes registers member administration routes. manage must
// authorize the caller for the {orgID} organization.
func (h *Handler) RegisterAdminRoutes(r chi.Router, manage func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(manage)
		r.Get(usersPath, h.List)
		r.Post(usersPath+"/invite", h.Invite)
		r.Post(usersPath+"/confirm", h.BulkConfirm)
		r.Put(usersPath+"/revoke", h.BulkRevoke)
		r.Delete(usersPath+"/delete-account", h.BulkDeleteAccount)
		r.Delete(usersPath+"/claimed", h.BulkDeleteClaimed)
		r.Post(usersPath+"/{id}/confirm", h.Confirm)
		r.Put(usersPath+"/{id}/revoke", h.Revoke)
		r.Put(usersPath+"/{id}/restore", h.Restore)
		r.Delete(usersPath+"/{id}", h.Remove)
		r.Delete(usersPath+"/{id}/delete-account", h.DeleteAccount)
	})
}

// RegisterMemberRoutes registers routes used by invitees and members
// acting on their own membership. Accepting without an invite token
// matches on email, so those routes go through verified.
func (h *Handler) RegisterMemberRoutes(r chi.Router, verified func(http.Handler) http.Handler) {
	r.Post(usersPath+"/{id}/accept", h.AcceptInvite)
	r.Post("/v1/organizations/{orgID}/leave", h.Leave)
	r.Group(func(r chi.Router) {
		r.Use(verified)
		r.Post("/v1/organizations/{orgID}/accept", h.AcceptByOrganization)
		r.Post("/v1/organizations/sso/{identifier}/accept", h.AcceptBySSO)
	})
}
