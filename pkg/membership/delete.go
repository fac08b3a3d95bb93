package membership

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

// RemovalType selects how a membership leaves its organization.
type RemovalType int

const (
	// AdminRemoved deletes the membership only.
	AdminRemoved RemovalType = iota
	// AdminDeleted deletes the member's user account as well.
	AdminDeleted
	// SelfRemoved is a member leaving on their own.
	SelfRemoved
)

func (t RemovalType) String() string {
	switch t {
	case AdminRemoved:
		return "admin_removed"
	case AdminDeleted:
		return "admin_deleted"
	case SelfRemoved:
		return "self_removed"
	default:
		return "unknown"
	}
}

// DeleteCommand removes memberships on behalf of admins, systems or the
// members themselves.
type DeleteCommand struct {
	deps      Deps
	ownership *OwnershipChecker
	claimed   *ClaimedStatusQuery
	access    *AccessQuery
}

// NewDeleteCommand creates a new delete command.
func NewDeleteCommand(d Deps, ownership *OwnershipChecker, claimed *ClaimedStatusQuery, access *AccessQuery) *DeleteCommand {
	return &DeleteCommand{deps: d, ownership: ownership, claimed: claimed, access: access}
}

// RemoveUser removes a membership as an admin or system action.
func (c *DeleteCommand) RemoveUser(ctx context.Context, ou *domain.OrganizationUser, actor domain.Actor) error {
	return c.Delete(ctx, ou, actor, AdminRemoved)
}

// Delete removes ou according to removal. The self and owner-privilege
// checks apply to human actors removing someone else; for SelfRemoved the
// actor is the leaving member.
func (c *DeleteCommand) Delete(ctx context.Context, ou *domain.OrganizationUser, actor domain.Actor, removal RemovalType) error {
	deletingUserID := domain.ActorUserID(actor)
	if removal == SelfRemoved {
		deletingUserID = nil
	}

	if deletingUserID != nil && ou.HasUser(*deletingUserID) {
		return domain.ErrBadRequest(MsgCannotRemoveSelf)
	}
	if ou.IsOwner() {
		if deletingUserID != nil {
			isOwner, err := c.access.IsOrganizationOwner(ctx, ou.OrganizationID, *deletingUserID)
			if err != nil {
				return err
			}
			if !isOwner {
				return domain.ErrBadRequest(MsgOnlyOwnersDeleteOwners)
			}
		}
		ok, err := c.ownership.HasConfirmedOwnersExcept(ctx, ou.OrganizationID, []uuid.UUID{ou.ID}, true)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrBadRequest(MsgMustHaveConfirmedOwner)
		}
	}

	var event domain.EventType
	switch removal {
	case AdminRemoved:
		if deletingUserID != nil && c.claimed.IsClaimed(ctx, ou.OrganizationID, ou.ID) {
			return domain.ErrBadRequest(MsgRemoveClaimedAccount)
		}
		if err := c.deleteMembership(ctx, ou); err != nil {
			return err
		}
		event = domain.EventOrganizationUserRemoved

	case AdminDeleted:
		if ou.Status != domain.OrganizationUserStatusConfirmed && ou.Status != domain.OrganizationUserStatusRevoked {
			return domain.ErrBadRequest(MsgOnlyConfirmedOrRevoked)
		}
		if c.claimed.IsClaimed(ctx, ou.OrganizationID, ou.ID) {
			return domain.ErrBadRequest(MsgClaimedUseClaimedDelete)
		}
		if ou.UserID == nil {
			return domain.ErrBadRequest(MsgInvalidUser)
		}
		if err := c.deps.Users.DeleteMany(ctx, []uuid.UUID{*ou.UserID}); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		if err := c.deps.Push.PushLogOut(ctx, *ou.UserID); err != nil {
			c.deps.Logger.Warn("failed to push log out", "user_id", *ou.UserID, "error", err)
		}
		event = domain.EventOrganizationUserDeleted

	case SelfRemoved:
		if c.claimed.IsClaimed(ctx, ou.OrganizationID, ou.ID) {
			return domain.ErrBadRequest(MsgClaimedCannotLeave)
		}
		if err := c.deleteMembership(ctx, ou); err != nil {
			return err
		}
		event = domain.EventOrganizationUserLeft

	default:
		return fmt.Errorf("unknown removal type %d", removal)
	}

	c.deps.Logger.Info("organization user removed",
		"organization_id", ou.OrganizationID, "organization_user_id", ou.ID, "removal", removal)
	logEvent(ctx, c.deps, eventFor(ou, event, actor, c.deps.now()))
	return nil
}

func (c *DeleteCommand) deleteMembership(ctx context.Context, ou *domain.OrganizationUser) error {
	if err := c.deps.OrganizationUsers.Delete(ctx, ou.ID); err != nil {
		return fmt.Errorf("failed to delete organization user: %w", err)
	}
	pushSyncOrgKeys(ctx, c.deps, ou)
	return nil
}
