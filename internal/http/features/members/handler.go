// Package members serves organization membership administration and the
// invitee and member self-service endpoints.
package members

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tendant/simple-org-admin/internal/http/middleware"
	"github.com/tendant/simple-org-admin/internal/httputil"
	"github.com/tendant/simple-org-admin/pkg/auth"
	"github.com/tendant/simple-org-admin/pkg/domain"
	"github.com/tendant/simple-org-admin/pkg/membership"
)

const (
	maxKeyLength        = 10000
	maxExternalIDLength = 300
	maxIdentifierLength = 50
)

// MemberStore reads memberships.
type MemberStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.OrganizationUser, error)
	GetManyDetailsByOrganization(ctx context.Context, organizationID uuid.UUID) ([]*domain.OrganizationUserUserDetails, error)
}

// UserStore loads the signed in user.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// Handler handles membership HTTP requests.
type Handler struct {
	logger       *slog.Logger
	commands     *membership.Commands
	members      MemberStore
	users        UserStore
	maxBulkItems int
}

// NewHandler creates a new members handler. maxBulkItems caps the size of
// bulk requests; zero means no cap.
func NewHandler(logger *slog.Logger, commands *membership.Commands, members MemberStore, users UserStore, maxBulkItems int) *Handler {
	return &Handler{
		logger:       logger,
		commands:     commands,
		members:      members,
		users:        users,
		maxBulkItems: maxBulkItems,
	}
}

// List handles GET /v1/organizations/{orgID}/users
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, _ := middleware.GetOrganizationID(ctx)

	details, err := h.members.GetManyDetailsByOrganization(ctx, orgID)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	ids := make([]uuid.UUID, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.ID)
	}
	claimed := h.commands.ClaimedStatus.GetUsersOrganizationClaimedStatus(ctx, orgID, ids)

	data := make([]MemberResponse, 0, len(details))
	for _, d := range details {
		data = append(data, detailsResponse(d, claimed[d.ID]))
	}
	httputil.JSON(w, http.StatusOK, map[string]any{"data": data})
}

// Invite handles POST /v1/organizations/{orgID}/users/invite
func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, _ := middleware.GetOrganizationID(ctx)
	actor, _ := middleware.GetActor(ctx)

	var req InviteRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if !h.checkBulkSize(w, len(req.Invites)) {
		return
	}

	invites := make([]membership.Invite, 0, len(req.Invites))
	for i, entry := range req.Invites {
		invite, err := toInvite(entry)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, fmt.Sprintf("invites[%d]: %s", i, err))
			return
		}
		invites = append(invites, invite)
	}

	result, err := h.commands.Invite.InviteUsers(ctx, membership.InviteOrganizationUsersRequest{
		OrganizationID: orgID,
		Invites:        invites,
		InvitingUser:   actor,
	})
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	resp := InviteResponse{Invited: make([]MemberResponse, 0, len(result.Invited)), Skipped: result.Skipped}
	if resp.Skipped == nil {
		resp.Skipped = []string{}
	}
	for _, ou := range result.Invited {
		resp.Invited = append(resp.Invited, toResponse(ou))
	}
	httputil.JSON(w, http.StatusCreated, resp)
}

func toInvite(entry InviteEntry) (membership.Invite, error) {
	email := strings.TrimSpace(entry.Email)
	if email == "" {
		return membership.Invite{}, errors.New("email is required")
	}
	typ := domain.OrganizationUserTypeUser
	if entry.Type != "" {
		t, ok := domain.ParseOrganizationUserType(entry.Type)
		if !ok {
			return membership.Invite{}, fmt.Errorf("unknown type %q", entry.Type)
		}
		typ = t
	}
	if entry.ExternalID != nil {
		if err := auth.ValidateStringLength("external_id", *entry.ExternalID, 0, maxExternalIDLength); err != nil {
			return membership.Invite{}, err
		}
	}

	invite := membership.Invite{
		Email:                email,
		Type:                 typ,
		AccessSecretsManager: entry.AccessSecretsManager,
		Groups:               entry.Groups,
		ExternalID:           entry.ExternalID,
	}
	if entry.Permissions != nil {
		invite.Permissions = *entry.Permissions
	}
	for _, c := range entry.Collections {
		invite.Collections = append(invite.Collections, domain.CollectionAccess{
			CollectionID:  c.ID,
			ReadOnly:      c.ReadOnly,
			HidePasswords: c.HidePasswords,
			Manage:        c.Manage,
		})
	}
	return invite, nil
}

// Confirm handles POST /v1/organizations/{orgID}/users/{id}/confirm
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, _ := middleware.GetOrganizationID(ctx)
	actor, _ := middleware.GetActor(ctx)
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req ConfirmRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if err := validateKey(req.Key); err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ou, err := h.commands.Confirm.ConfirmUser(ctx, orgID, id, req.Key, actor.UserID)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toResponse(ou))
}

// BulkConfirm handles POST /v1/organizations/{orgID}/users/confirm
func (h *Handler) BulkConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, _ := middleware.GetOrganizationID(ctx)
	actor, _ := middleware.GetActor(ctx)

	var req BulkConfirmRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if !h.checkBulkSize(w, len(req.Keys)) {
		return
	}
	keys := make(map[uuid.UUID]string, len(req.Keys))
	for _, k := range req.Keys {
		if err := validateKey(k.Key); err != nil {
			httputil.Error(w, http.StatusBadRequest, fmt.Sprintf("%s: %s", k.ID, err))
			return
		}
		keys[k.ID] = k.Key
	}

	results, err := h.commands.Confirm.ConfirmUsers(ctx, orgID, keys, actor.UserID)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	data := make([]BulkResult, 0, len(results))
	for _, res := range results {
		data = append(data, bulkResult(res.Item.ID, res.Err))
	}
	httputil.JSON(w, http.StatusOK, BulkResponse{Data: data})
}

// Revoke handles PUT /v1/organizations/{orgID}/users/{id}/revoke
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := middleware.GetActor(ctx)
	ou, ok := h.loadMember(w, r)
	if !ok {
		return
	}
	if err := h.commands.Revoke.RevokeUser(ctx, ou, &actor.UserID); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkRevoke handles PUT /v1/organizations/{orgID}/users/revoke
func (h *Handler) BulkRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, _ := middleware.GetOrganizationID(ctx)
	actor, _ := middleware.GetActor(ctx)

	ids, ok := h.bulkIDs(w, r)
	if !ok {
		return
	}
	results, err := h.commands.Revoke.RevokeUsers(ctx, orgID, ids, &actor.UserID)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	data := make([]BulkResult, 0, len(results))
	for _, res := range results {
		data = append(data, bulkResult(res.Item.ID, res.Err))
	}
	httputil.JSON(w, http.StatusOK, BulkResponse{Data: data})
}

// Restore handles PUT /v1/organizations/{orgID}/users/{id}/restore
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := middleware.GetActor(ctx)
	ou, ok := h.loadMember(w, r)
	if !ok {
		return
	}
	if err := h.commands.Restore.RestoreUser(ctx, ou, &actor.UserID); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Remove handles DELETE /v1/organizations/{orgID}/users/{id}
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, _ := middleware.GetOrganizationID(ctx)
	actor, _ := middleware.GetActor(ctx)
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.commands.Remove.RemoveUser(ctx, orgID, id, actor.UserID); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAccount handles DELETE /v1/organizations/{orgID}/users/{id}/delete-account
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, _ := middleware.GetOrganizationID(ctx)
	actor, _ := middleware.GetActor(ctx)
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.commands.DeleteManaged.DeleteUser(ctx, orgID, id, &actor.UserID); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkDeleteAccount handles DELETE /v1/organizations/{orgID}/users/delete-account
func (h *Handler) BulkDeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, _ := middleware.GetOrganizationID(ctx)
	actor, _ := middleware.GetActor(ctx)

	ids, ok := h.bulkIDs(w, r)
	if !ok {
		return
	}
	results, err := h.commands.DeleteManaged.DeleteManyUsers(ctx, orgID, ids, &actor.UserID)
	h.writeIDResults(w, results, err)
}

// BulkDeleteClaimed handles DELETE /v1/organizations/{orgID}/users/claimed
func (h *Handler) BulkDeleteClaimed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, _ := middleware.GetOrganizationID(ctx)
	actor, _ := middleware.GetActor(ctx)

	ids, ok := h.bulkIDs(w, r)
	if !ok {
		return
	}
	results, err := h.commands.DeleteClaimed.DeleteManyUsers(ctx, orgID, ids, actor.UserID)
	h.writeIDResults(w, results, err)
}

// AcceptInvite handles POST /v1/organizations/{orgID}/users/{id}/accept.
// The invitee proves the invite with the token from their email.
func (h *Handler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req AcceptRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		httputil.Error(w, http.StatusBadRequest, "token is required")
		return
	}

	ou, err := h.commands.Accept.AcceptOrgUserByEmailToken(ctx, id, user, req.Token)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toResponse(ou))
}

// AcceptByOrganization handles POST /v1/organizations/{orgID}/accept for
// users who were invited by email without following the link.
func (h *Handler) AcceptByOrganization(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	orgID, err := uuid.Parse(chi.URLParam(r, "orgID"))
	if err != nil {
		httputil.Error(w, http.StatusNotFound, "organization not found")
		return
	}
	ou, err := h.commands.Accept.AcceptOrgUserByOrgID(r.Context(), orgID, user)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toResponse(ou))
}

// AcceptBySSO handles POST /v1/organizations/sso/{identifier}/accept
func (h *Handler) AcceptBySSO(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	identifier := strings.TrimSpace(chi.URLParam(r, "identifier"))
	if err := auth.ValidateStringLength("identifier", identifier, 1, maxIdentifierLength); err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	ou, err := h.commands.Accept.AcceptOrgUserByOrgSsoID(r.Context(), identifier, user)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toResponse(ou))
}

// Leave handles POST /v1/organizations/{orgID}/leave
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	orgID, err := uuid.Parse(chi.URLParam(r, "orgID"))
	if err != nil {
		httputil.Error(w, http.StatusNotFound, "organization not found")
		return
	}
	if err := h.commands.Delete.UserLeave(r.Context(), orgID, userID); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusUnauthorized, "unauthorized")
			return nil, false
		}
		httputil.WriteError(w, h.logger, err)
		return nil, false
	}
	return user, true
}

// loadMember loads the {id} membership, hiding members of other
// organizations.
func (h *Handler) loadMember(w http.ResponseWriter, r *http.Request) (*domain.OrganizationUser, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return nil, false
	}
	orgID, _ := middleware.GetOrganizationID(r.Context())
	ou, err := h.members.GetByID(r.Context(), id)
	if err == nil && ou.OrganizationID != orgID {
		err = domain.ErrOrganizationUserNotFound
	}
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return nil, false
	}
	return ou, true
}

func (h *Handler) bulkIDs(w http.ResponseWriter, r *http.Request) ([]uuid.UUID, bool) {
	var req BulkRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return nil, false
	}
	if len(req.IDs) == 0 {
		httputil.Error(w, http.StatusBadRequest, "ids are required")
		return nil, false
	}
	if !h.checkBulkSize(w, len(req.IDs)) {
		return nil, false
	}
	return req.IDs, true
}

func (h *Handler) checkBulkSize(w http.ResponseWriter, n int) bool {
	if h.maxBulkItems > 0 && n > h.maxBulkItems {
		httputil.Error(w, http.StatusBadRequest, fmt.Sprintf("at most %d items per request", h.maxBulkItems))
		return false
	}
	return true
}

func (h *Handler) writeIDResults(w http.ResponseWriter, results []domain.ItemResult[uuid.UUID], err error) {
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	data := make([]BulkResult, 0, len(results))
	for _, res := range results {
		data = append(data, bulkResult(res.Item, res.Err))
	}
	httputil.JSON(w, http.StatusOK, BulkResponse{Data: data})
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusNotFound, "organization user not found")
		return uuid.Nil, false
	}
	return id, true
}

func validateKey(key string) error {
	return auth.ValidateStringLength("key", strings.TrimSpace(key), 1, maxKeyLength)
}
