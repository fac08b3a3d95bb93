package membership

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

// DeleteManagedCommand deletes the user accounts of members the
// organization manages through a verified domain.
type DeleteManagedCommand struct {
	deps      Deps
	ownership *OwnershipChecker
	claimed   *ClaimedStatusQuery
	access    *AccessQuery
}

// NewDeleteManagedCommand creates a new managed-account delete command.
func NewDeleteManagedCommand(d Deps, ownership *OwnershipChecker, claimed *ClaimedStatusQuery, access *AccessQuery) *DeleteManagedCommand {
	return &DeleteManagedCommand{deps: d, ownership: ownership, claimed: claimed, access: access}
}

type managedDeletion struct {
	orgUser *domain.OrganizationUser
	user    *domain.User
}

// DeleteUser deletes one managed member's account. A nil deletingUserID
// skips the self and owner-privilege checks.
func (c *DeleteManagedCommand) DeleteUser(ctx context.Context, organizationID, orgUserID uuid.UUID, deletingUserID *uuid.UUID) error {
	ou, err := c.deps.OrganizationUsers.GetByID(ctx, orgUserID)
	if errors.Is(err, domain.ErrOrganizationUserNotFound) {
		return domain.ErrNotFound(MsgMemberNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get organization user: %w", err)
	}
	if ou.OrganizationID != organizationID {
		return domain.ErrNotFound(MsgMemberNotFound)
	}

	managed := c.claimed.GetUsersOrganizationClaimedStatus(ctx, organizationID, []uuid.UUID{orgUserID})
	hasOtherOwners, err := c.ownership.HasConfirmedOwnersExcept(ctx, organizationID, []uuid.UUID{orgUserID}, true)
	if err != nil {
		return err
	}
	user, err := c.validate(ctx, ou, deletingUserID, managed, hasOtherOwners)
	if err != nil {
		return err
	}

	return c.deleteUsers(ctx, []managedDeletion{{orgUser: ou, user: user}}, deletingUserID)
}

// DeleteManyUsers deletes several managed members' accounts. Rejections are
// reported per item; accepted items are deleted together.
func (c *DeleteManagedCommand) DeleteManyUsers(ctx context.Context, organizationID uuid.UUID, orgUserIDs []uuid.UUID, deletingUserID *uuid.UUID) ([]domain.ItemResult[uuid.UUID], error) {
	orgUsers, err := c.deps.OrganizationUsers.GetManyByIDs(ctx, orgUserIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization users: %w", err)
	}
	byID := make(map[uuid.UUID]*domain.OrganizationUser, len(orgUsers))
	for _, ou := range orgUsers {
		if ou.OrganizationID == organizationID {
			byID[ou.ID] = ou
		}
	}

	managed := c.claimed.GetUsersOrganizationClaimedStatus(ctx, organizationID, orgUserIDs)
	hasOtherOwners, err := c.ownership.HasConfirmedOwnersExcept(ctx, organizationID, orgUserIDs, true)
	if err != nil {
		return nil, err
	}

	results := make([]domain.ItemResult[uuid.UUID], 0, len(orgUserIDs))
	var deletions []managedDeletion
	for _, id := range orgUserIDs {
		ou, ok := byID[id]
		if !ok {
			results = append(results, domain.ItemResult[uuid.UUID]{Item: id, Err: domain.ErrNotFound(MsgMemberNotFound)})
			continue
		}
		user, err := c.validate(ctx, ou, deletingUserID, managed, hasOtherOwners)
		if err != nil {
			if !isBusinessError(err) {
				return nil, err
			}
			results = append(results, domain.ItemResult[uuid.UUID]{Item: id, Err: err})
			continue
		}
		deletions = append(deletions, managedDeletion{orgUser: ou, user: user})
		results = append(results, domain.ItemResult[uuid.UUID]{Item: id})
	}

	if err := c.deleteUsers(ctx, deletions, deletingUserID); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *DeleteManagedCommand) validate(ctx context.Context, ou *domain.OrganizationUser, deletingUserID *uuid.UUID, managed map[uuid.UUID]bool, hasOtherOwners bool) (*domain.User, error) {
	if ou.UserID == nil || ou.Status == domain.OrganizationUserStatusInvited {
		return nil, domain.ErrBadRequest(MsgCannotDeleteInvited)
	}
	if deletingUserID != nil && *ou.UserID == *deletingUserID {
		return nil, domain.ErrBadRequest(MsgCannotDeleteSelf)
	}
	if ou.IsOwner() {
		if deletingUserID != nil {
			isOwner, err := c.access.IsOrganizationOwner(ctx, ou.OrganizationID, *deletingUserID)
			if err != nil {
				return nil, err
			}
			if !isOwner {
				return nil, domain.ErrBadRequest(MsgOnlyOwnersDeleteOwners)
			}
		}
		if !hasOtherOwners {
			return nil, domain.ErrBadRequest(MsgMustHaveConfirmedOwner)
		}
	}
	if !managed[ou.ID] {
		return nil, domain.ErrBadRequest(MsgNotManaged)
	}

	user, err := c.deps.Users.GetByID(ctx, *ou.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrNotFound(MsgMemberNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	count, err := c.deps.OrganizationUsers.GetCountByOnlyOwner(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count sole-owned organizations: %w", err)
	}
	if count > 0 {
		return nil, domain.ErrBadRequest(MsgSoleOwnerOfOrganization)
	}
	count, err = c.deps.ProviderUsers.GetCountByOnlyOwner(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count sole-owned providers: %w", err)
	}
	if count > 0 {
		return nil, domain.ErrBadRequest(MsgSoleOwnerOfProvider)
	}
	return user, nil
}

func (c *DeleteManagedCommand) deleteUsers(ctx context.Context, deletions []managedDeletion, deletingUserID *uuid.UUID) error {
	if len(deletions) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(deletions))
	for _, d := range deletions {
		ids = append(ids, d.user.ID)
	}
	if err := c.deps.Users.DeleteMany(ctx, ids); err != nil {
		return fmt.Errorf("failed to delete users: %w", err)
	}

	now := c.deps.now()
	actor := actorFromUserID(deletingUserID)
	events := make([]domain.OrganizationUserEvent, 0, len(deletions))
	for _, d := range deletions {
		if err := c.deps.Push.PushLogOut(ctx, d.user.ID); err != nil {
			c.deps.Logger.Warn("failed to push log out", "user_id", d.user.ID, "error", err)
		}
		events = append(events, eventFor(d.orgUser, domain.EventOrganizationUserDeleted, actor, now))
	}
	logEvents(ctx, c.deps, events)

	c.deps.Logger.Info("deleted managed user accounts", "count", len(deletions))
	return nil
}
