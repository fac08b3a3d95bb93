package members

import (
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-org-admin/pkg/domain"
)

// MemberResponse is the admin view of a membership.
type MemberResponse struct {
	ID                   uuid.UUID          `json:"id"`
	OrganizationID       uuid.UUID          `json:"organization_id"`
	UserID               *uuid.UUID         `json:"user_id,omitempty"`
	Email                string             `json:"email,omitempty"`
	Name                 *string            `json:"name,omitempty"`
	Status               string             `json:"status"`
	Type                 string             `json:"type"`
	Permissions          domain.Permissions `json:"permissions"`
	AccessSecretsManager bool               `json:"access_secrets_manager"`
	ExternalID           *string            `json:"external_id,omitempty"`
	TwoFactorEnabled     bool               `json:"two_factor_enabled"`
	Claimed              bool               `json:"claimed"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

func toResponse(ou *domain.OrganizationUser) MemberResponse {
	resp := MemberResponse{
		ID:                   ou.ID,
		OrganizationID:       ou.OrganizationID,
		UserID:               ou.UserID,
		Status:               ou.Status.String(),
		Type:                 ou.Type.String(),
		Permissions:          ou.Permissions,
		AccessSecretsManager: ou.AccessSecretsManager,
		ExternalID:           ou.ExternalID,
		CreatedAt:            ou.CreatedAt,
		UpdatedAt:            ou.UpdatedAt,
	}
	if ou.Email != nil {
		resp.Email = *ou.Email
	}
	return resp
}

func detailsResponse(d *domain.OrganizationUserUserDetails, claimed bool) MemberResponse {
	resp := toResponse(&d.OrganizationUser)
	resp.Email = d.ContactEmail()
	resp.Name = d.UserName
	resp.TwoFactorEnabled = d.TwoFactorEnabled
	resp.Claimed = claimed
	return resp
}

// CollectionRequest grants a collection to an invitee.
type CollectionRequest struct {
	ID            uuid.UUID `json:"id"`
	ReadOnly      bool      `json:"read_only"`
	HidePasswords bool      `json:"hide_passwords"`
	Manage        bool      `json:"manage"`
}

// InviteEntry describes one invitee.
type InviteEntry struct {
	Email                string              `json:"email"`
	Type                 string              `json:"type"`
	Permissions          *domain.Permissions `json:"permissions,omitempty"`
	AccessSecretsManager bool                `json:"access_secrets_manager"`
	Collections          []CollectionRequest `json:"collections,omitempty"`
	Groups               []uuid.UUID         `json:"groups,omitempty"`
	ExternalID           *string             `json:"external_id,omitempty"`
}

// InviteRequest is the body of POST .../users/invite.
type InviteRequest struct {
	Invites []InviteEntry `json:"invites"`
}

// InviteResponse lists created memberships and skipped emails.
type InviteResponse struct {
	Invited []MemberResponse `json:"invited"`
	Skipped []string         `json:"skipped"`
}

// ConfirmRequest carries the organization key encrypted for the member.
type ConfirmRequest struct {
	Key string `json:"key"`
}

// BulkConfirmEntry is one member and their encrypted key.
type BulkConfirmEntry struct {
	ID  uuid.UUID `json:"id"`
	Key string    `json:"key"`
}

// BulkConfirmRequest confirms several members.
type BulkConfirmRequest struct {
	Keys []BulkConfirmEntry `json:"keys"`
}

// BulkRequest names the memberships a bulk action applies to.
type BulkRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

// BulkResult is the outcome for one membership of a bulk action.
// Error is empty when the action was applied.
type BulkResult struct {
	ID      uuid.UUID `json:"id"`
	Error   string    `json:"error,omitempty"`
	Warning string    `json:"warning,omitempty"`
}

// BulkResponse wraps per-item outcomes.
type BulkResponse struct {
	Data []BulkResult `json:"data"`
}

// AcceptRequest carries the invite token from the email link.
type AcceptRequest struct {
	Token string `json:"token"`
}

func bulkResult(id uuid.UUID, err error) BulkResult {
	r := BulkResult{ID: id}
	switch {
	case err == nil:
	case domain.IsSoftFailure(err):
		r.Warning = err.Error()
	default:
		r.Error = err.Error()
	}
	return r
}
