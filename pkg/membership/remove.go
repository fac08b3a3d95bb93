package membership

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

// OrganizationUserRemover removes a resolved membership.
type OrganizationUserRemover interface {
	RemoveUser(ctx context.Context, ou *domain.OrganizationUser, actor domain.Actor) error
}

// RemoveCommand resolves membership ids and hands them to a remover.
type RemoveCommand struct {
	organizationUsers domain.OrganizationUserRepository
	remover           OrganizationUserRemover
}

// NewRemoveCommand creates a new remove command. DeleteCommand is the usual
// remover.
func NewRemoveCommand(organizationUsers domain.OrganizationUserRepository, remover OrganizationUserRemover) *RemoveCommand {
	return &RemoveCommand{organizationUsers: organizationUsers, remover: remover}
}

// RemoveUser removes a membership on behalf of a user.
func (c *RemoveCommand) RemoveUser(ctx context.Context, organizationID, orgUserID, deletingUserID uuid.UUID) error {
	ou, err := c.load(ctx, organizationID, orgUserID)
	if err != nil {
		return err
	}
	return c.remover.RemoveUser(ctx, ou, domain.StandardUser{UserID: deletingUserID})
}

// RemoveUserBySystem removes a membership on behalf of an automated actor.
func (c *RemoveCommand) RemoveUserBySystem(ctx context.Context, organizationID, orgUserID uuid.UUID, systemUser domain.EventSystemUser) error {
	ou, err := c.load(ctx, organizationID, orgUserID)
	if err != nil {
		return err
	}
	return c.remover.RemoveUser(ctx, ou, domain.SystemUser{Kind: systemUser})
}

func (c *RemoveCommand) load(ctx context.Context, organizationID, orgUserID uuid.UUID) (*domain.OrganizationUser, error) {
	ou, err := c.organizationUsers.GetByID(ctx, orgUserID)
	if errors.Is(err, domain.ErrOrganizationUserNotFound) {
		return nil, domain.ErrNotFound(MsgUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization user: %w", err)
	}
	if ou.OrganizationID != organizationID {
		return nil, domain.ErrNotFound(MsgUserNotFound)
	}
	return ou, nil
}

// UserLeave removes the user's own membership in the organization.
func (c *DeleteCommand) UserLeave(ctx context.Context, organizationID, userID uuid.UUID) error {
	ou, err := c.deps.OrganizationUsers.GetByOrganizationAndUser(ctx, organizationID, userID)
	if errors.Is(err, domain.ErrOrganizationUserNotFound) {
		return domain.ErrNotFound(MsgUserNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get organization user: %w", err)
	}
	return c.Delete(ctx, ou, domain.StandardUser{UserID: userID}, SelfRemoved)
}
