package membership

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

// RevokeOrganizationUsersRequest asks to revoke members that no longer meet
// an organization policy.
type RevokeOrganizationUsersRequest struct {
	OrganizationID    uuid.UUID
	OrganizationUsers []*domain.OrganizationUserUserDetails
	Actor             domain.Actor
}

// RevokeNonCompliantCommand revokes policy-violating members as one batch.
// Any rejection cancels the whole batch.
type RevokeNonCompliantCommand struct {
	deps      Deps
	ownership *OwnershipChecker
}

// NewRevokeNonCompliantCommand creates a new non-compliant revocation command.
func NewRevokeNonCompliantCommand(d Deps, ownership *OwnershipChecker) *RevokeNonCompliantCommand {
	return &RevokeNonCompliantCommand{deps: d, ownership: ownership}
}

// RevokeNonCompliantUsers validates and applies the request.
// Business-rule failures are reported in the result; only infrastructure
// failures are returned as errors.
func (c *RevokeNonCompliantCommand) RevokeNonCompliantUsers(ctx context.Context, req RevokeOrganizationUsersRequest) (domain.CommandResult, error) {
	result, err := c.validate(ctx, req)
	if err != nil || result.HasErrors() {
		return result, err
	}
	if len(req.OrganizationUsers) == 0 {
		return result, nil
	}

	ids := make([]uuid.UUID, 0, len(req.OrganizationUsers))
	for _, ou := range req.OrganizationUsers {
		ids = append(ids, ou.ID)
	}
	if err := c.deps.OrganizationUsers.RevokeMany(ctx, ids); err != nil {
		return domain.CommandResult{}, fmt.Errorf("failed to revoke organization users: %w", err)
	}

	now := c.deps.now()
	events := make([]domain.OrganizationUserEvent, 0, len(req.OrganizationUsers))
	for _, ou := range req.OrganizationUsers {
		ou.Status = domain.OrganizationUserStatusRevoked
		events = append(events, eventFor(&ou.OrganizationUser, domain.EventOrganizationUserRevoked, req.Actor, now))
	}
	logEvents(ctx, c.deps, events)

	c.deps.Logger.Info("revoked non-compliant organization users",
		"organization_id", req.OrganizationID, "count", len(ids))
	return result, nil
}

func (c *RevokeNonCompliantCommand) validate(ctx context.Context, req RevokeOrganizationUsersRequest) (domain.CommandResult, error) {
	var standard *domain.StandardUser
	switch a := req.Actor.(type) {
	case domain.StandardUser:
		standard = &a
	case domain.SystemUser:
	default:
		return domain.NewCommandResult(MsgUnexpectedActor), nil
	}

	if standard != nil {
		for _, ou := range req.OrganizationUsers {
			if ou.HasUser(standard.UserID) {
				return domain.NewCommandResult(MsgCannotRevokeSelf), nil
			}
		}
	}

	ids := make([]uuid.UUID, 0, len(req.OrganizationUsers))
	for _, ou := range req.OrganizationUsers {
		if ou.OrganizationID != req.OrganizationID {
			return domain.NewCommandResult(MsgInvalidUsers), nil
		}
		ids = append(ids, ou.ID)
	}

	ok, err := c.ownership.HasConfirmedOwnersExcept(ctx, req.OrganizationID, ids, true)
	if err != nil {
		return domain.CommandResult{}, err
	}
	if !ok {
		return domain.NewCommandResult(MsgMustHaveConfirmedOwner), nil
	}

	var messages []string
	for _, ou := range req.OrganizationUsers {
		switch {
		case ou.Status == domain.OrganizationUserStatusRevoked:
			messages = append(messages, fmt.Sprintf("%s Id: %s", MsgUserAlreadyRevoked, ou.ID))
		case ou.IsOwner() && standard != nil && !standard.IsOrganizationOwnerOrProvider:
			messages = append(messages, fmt.Sprintf("%s Id: %s", MsgOnlyOwnersRevokeOwners, ou.ID))
		}
	}
	return domain.NewCommandResult(messages...), nil
}
