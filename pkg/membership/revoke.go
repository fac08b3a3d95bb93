package membership

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

// RevokeCommand suspends memberships without deleting them.
type RevokeCommand struct {
	deps      Deps
	ownership *OwnershipChecker
	access    *AccessQuery
}

// NewRevokeCommand creates a new revoke command.
func NewRevokeCommand(d Deps, ownership *OwnershipChecker, access *AccessQuery) *RevokeCommand {
	return &RevokeCommand{deps: d, ownership: ownership, access: access}
}

// RevokeUser revokes a membership on behalf of a user. A nil revokingUserID
// skips the self and owner-privilege checks.
func (c *RevokeCommand) RevokeUser(ctx context.Context, ou *domain.OrganizationUser, revokingUserID *uuid.UUID) error {
	if revokingUserID != nil {
		if ou.HasUser(*revokingUserID) {
			return domain.ErrBadRequest(MsgCannotRevokeSelf)
		}
		if ou.IsOwner() {
			isOwner, err := c.access.IsOrganizationOwner(ctx, ou.OrganizationID, *revokingUserID)
			if err != nil {
				return err
			}
			if !isOwner {
				return domain.ErrBadRequest(MsgOnlyOwnersRevokeOwners)
			}
		}
	}

	if err := c.revoke(ctx, ou); err != nil {
		return err
	}
	logEvent(ctx, c.deps, eventFor(ou, domain.EventOrganizationUserRevoked, actorFromUserID(revokingUserID), c.deps.now()))
	return nil
}

// RevokeUserBySystem revokes a membership on behalf of an automated actor.
func (c *RevokeCommand) RevokeUserBySystem(ctx context.Context, ou *domain.OrganizationUser, systemUser domain.EventSystemUser) error {
	if err := c.revoke(ctx, ou); err != nil {
		return err
	}
	logEvent(ctx, c.deps, eventFor(ou, domain.EventOrganizationUserRevoked, domain.SystemUser{Kind: systemUser}, c.deps.now()))
	return nil
}

func (c *RevokeCommand) revoke(ctx context.Context, ou *domain.OrganizationUser) error {
	if ou.Status == domain.OrganizationUserStatusRevoked {
		return domain.ErrBadRequest(MsgAlreadyRevoked)
	}

	ok, err := c.ownership.HasConfirmedOwnersExcept(ctx, ou.OrganizationID, []uuid.UUID{ou.ID}, true)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrBadRequest(MsgMustHaveConfirmedOwner)
	}

	if err := c.deps.OrganizationUsers.Revoke(ctx, ou.ID); err != nil {
		return fmt.Errorf("failed to revoke organization user: %w", err)
	}
	ou.Status = domain.OrganizationUserStatusRevoked
	c.deps.Logger.Info("organization user revoked",
		"organization_id", ou.OrganizationID, "organization_user_id", ou.ID)
	pushSyncOrgKeys(ctx, c.deps, ou)
	return nil
}

// RevokeUsers revokes several memberships of one organization. The
// ownership check covers the whole batch; the other checks apply per item.
func (c *RevokeCommand) RevokeUsers(ctx context.Context, organizationID uuid.UUID, orgUserIDs []uuid.UUID, revokingUserID *uuid.UUID) ([]domain.ItemResult[*domain.OrganizationUser], error) {
	loaded, err := c.deps.OrganizationUsers.GetManyByIDs(ctx, orgUserIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization users: %w", err)
	}
	var orgUsers []*domain.OrganizationUser
	for _, ou := range loaded {
		if ou.OrganizationID == organizationID {
			orgUsers = append(orgUsers, ou)
		}
	}
	if len(orgUsers) == 0 {
		return nil, domain.ErrBadRequest(MsgUsersInvalid)
	}

	ok, err := c.ownership.HasConfirmedOwnersExcept(ctx, organizationID, orgUserIDs, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrBadRequest(MsgMustHaveConfirmedOwner)
	}

	revokerIsOwner := false
	if revokingUserID != nil {
		revokerIsOwner, err = c.access.IsOrganizationOwner(ctx, organizationID, *revokingUserID)
		if err != nil {
			return nil, err
		}
	}

	results := make([]domain.ItemResult[*domain.OrganizationUser], 0, len(orgUsers))
	var toRevoke []*domain.OrganizationUser
	for _, ou := range orgUsers {
		var rejection error
		switch {
		case ou.Status == domain.OrganizationUserStatusRevoked:
			rejection = domain.ErrBadRequest(MsgAlreadyRevoked)
		case revokingUserID != nil && ou.HasUser(*revokingUserID):
			rejection = domain.ErrBadRequest(MsgCannotRevokeSelf)
		case ou.IsOwner() && revokingUserID != nil && !revokerIsOwner:
			rejection = domain.ErrBadRequest(MsgOnlyOwnersRevokeOwners)
		}
		if rejection == nil {
			toRevoke = append(toRevoke, ou)
		}
		results = append(results, domain.ItemResult[*domain.OrganizationUser]{Item: ou, Err: rejection})
	}
	if len(toRevoke) == 0 {
		return results, nil
	}

	ids := make([]uuid.UUID, 0, len(toRevoke))
	for _, ou := range toRevoke {
		ids = append(ids, ou.ID)
	}
	if err := c.deps.OrganizationUsers.RevokeMany(ctx, ids); err != nil {
		return nil, fmt.Errorf("failed to revoke organization users: %w", err)
	}

	now := c.deps.now()
	actor := actorFromUserID(revokingUserID)
	events := make([]domain.OrganizationUserEvent, 0, len(toRevoke))
	for _, ou := range toRevoke {
		ou.Status = domain.OrganizationUserStatusRevoked
		events = append(events, eventFor(ou, domain.EventOrganizationUserRevoked, actor, now))
		pushSyncOrgKeys(ctx, c.deps, ou)
	}
	logEvents(ctx, c.deps, events)
	return results, nil
}
