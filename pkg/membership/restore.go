package membership

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

// RestoreCommand returns revoked memberships to their prior status.
type RestoreCommand struct {
	deps   Deps
	access *AccessQuery
}

// NewRestoreCommand creates a new restore command.
func NewRestoreCommand(d Deps, access *AccessQuery) *RestoreCommand {
	return &RestoreCommand{deps: d, access: access}
}

// RestoreUser restores a revoked membership. A nil restoringUserID skips the
// self and owner-privilege checks.
func (c *RestoreCommand) RestoreUser(ctx context.Context, ou *domain.OrganizationUser, restoringUserID *uuid.UUID) error {
	if restoringUserID != nil {
		if ou.HasUser(*restoringUserID) {
			return domain.ErrBadRequest(MsgCannotRestoreSelf)
		}
		if ou.IsOwner() {
			isOwner, err := c.access.IsOrganizationOwner(ctx, ou.OrganizationID, *restoringUserID)
			if err != nil {
				return err
			}
			if !isOwner {
				return domain.ErrBadRequest(MsgOnlyOwnersRestoreOwners)
			}
		}
	}
	if ou.Status != domain.OrganizationUserStatusRevoked {
		return domain.ErrBadRequest(MsgAlreadyActive)
	}

	org, err := c.deps.Organizations.GetByID(ctx, ou.OrganizationID)
	if err != nil {
		return fmt.Errorf("failed to get organization: %w", err)
	}

	smSeats := 0
	if ou.AccessSecretsManager {
		smSeats = 1
	}
	adj, err := c.deps.Billing.ValidateSeats(ctx, org, 1, smSeats)
	if err != nil {
		return err
	}
	if ou.UserID != nil {
		if err := c.checkPolicies(ctx, org, ou); err != nil {
			return err
		}
	}
	if err := c.deps.Billing.ApplySeatAdjustment(ctx, org, adj); err != nil {
		return err
	}

	status := EffectiveStatus(ou)
	if err := c.deps.OrganizationUsers.Restore(ctx, ou.ID, status); err != nil {
		if undoErr := c.deps.Billing.ApplySeatAdjustment(context.WithoutCancel(ctx), org, adj.Negate()); undoErr != nil {
			c.deps.Logger.Error("failed to revert seat adjustment",
				"organization_id", org.ID, "organization_user_id", ou.ID, "error", undoErr)
		}
		return fmt.Errorf("failed to restore organization user: %w", err)
	}
	ou.Status = status

	c.deps.Logger.Info("organization user restored",
		"organization_id", ou.OrganizationID, "organization_user_id", ou.ID, "status", status)
	logEvent(ctx, c.deps, eventFor(ou, domain.EventOrganizationUserRestored, actorFromUserID(restoringUserID), c.deps.now()))
	pushSyncOrgKeys(ctx, c.deps, ou)
	return nil
}

func (c *RestoreCommand) checkPolicies(ctx context.Context, org *domain.Organization, ou *domain.OrganizationUser) error {
	userID := *ou.UserID

	if ou.IsAdminOrOwner() && c.deps.Billing.IsFreePlan(org) {
		count, err := c.deps.OrganizationUsers.GetCountByFreeOrganizationAdminUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to count free organization admin memberships: %w", err)
		}
		if count > 0 {
			return domain.ErrBadRequest(MsgFreeOrgAdminOnRestore)
		}
	}

	// The revoked membership itself is invisible to policy applicability,
	// so this organization's own policies are read directly.
	exempt := ou.IsAdminOrOwner()

	twoFactor, err := c.deps.Policies.GetOrganizationPolicy(ctx, org.ID, domain.PolicyTypeTwoFactorAuthentication)
	if err != nil {
		return err
	}
	if twoFactor != nil && twoFactor.Enabled && !exempt {
		enabled, err := c.deps.TwoFactor.TwoFactorIsEnabled(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to check two-step login: %w", err)
		}
		if !enabled {
			return domain.ErrBadRequest(MsgTwoFactorRequiredRestore)
		}
	}

	memberships, err := c.deps.OrganizationUsers.GetManyByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user memberships: %w", err)
	}
	hasOtherOrgs := false
	for _, m := range memberships {
		if m.OrganizationID != org.ID && m.Status != domain.OrganizationUserStatusRevoked {
			hasOtherOrgs = true
			break
		}
	}

	singleOrg, err := c.deps.Policies.GetOrganizationPolicy(ctx, org.ID, domain.PolicyTypeSingleOrg)
	if err != nil {
		return err
	}
	if hasOtherOrgs && singleOrg != nil && singleOrg.Enabled && !exempt {
		return domain.ErrBadRequest(MsgSingleOrgRestoreThis)
	}

	others, err := c.deps.Policies.GetPoliciesApplicableToUser(ctx, userID, domain.PolicyTypeSingleOrg)
	if err != nil {
		return err
	}
	for _, p := range others {
		if p.OrganizationID != org.ID {
			return domain.ErrBadRequest(MsgSingleOrgRestoreOther)
		}
	}
	return nil
}
