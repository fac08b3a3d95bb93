package membership

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/auth"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

// AcceptCommand moves an invited membership to Accepted for a user.
type AcceptCommand struct {
	deps Deps
}

// NewAcceptCommand creates a new accept command.
func NewAcceptCommand(d Deps) *AcceptCommand {
	return &AcceptCommand{deps: d}
}

// AcceptOrgUserByEmailToken accepts the invitation named in an emailed
// invite link.
func (c *AcceptCommand) AcceptOrgUserByEmailToken(ctx context.Context, orgUserID uuid.UUID, user *domain.User, token string) (*domain.OrganizationUser, error) {
	ou, err := c.deps.OrganizationUsers.GetByID(ctx, orgUserID)
	if errors.Is(err, domain.ErrOrganizationUserNotFound) {
		return nil, domain.ErrBadRequest(MsgUserInvalid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization user: %w", err)
	}

	inviteEmail := user.Email
	if ou.Email != nil {
		inviteEmail = *ou.Email
	}
	if !c.deps.InviteTokenValidator.Validate(token, ou.ID, inviteEmail) {
		return nil, domain.ErrBadRequest(MsgInvalidToken)
	}

	existing, err := c.deps.OrganizationUsers.GetCountByOrganization(ctx, ou.OrganizationID, user.Email, true)
	if err != nil {
		return nil, fmt.Errorf("failed to count memberships: %w", err)
	}
	if existing > 0 {
		if ou.Status == domain.OrganizationUserStatusAccepted {
			return nil, domain.ErrBadRequest(MsgInvitationAlreadyPending)
		}
		return nil, domain.ErrBadRequest(MsgAlreadyMember)
	}

	if ou.Email == nil || !auth.EmailsMatch(*ou.Email, user.Email) {
		return nil, domain.ErrBadRequest(MsgEmailMismatch)
	}

	accepted, err := c.AcceptOrgUser(ctx, ou, user)
	if err != nil {
		return nil, err
	}

	// Following the link proves ownership of the address.
	if !user.EmailVerified {
		user.EmailVerified = true
		user.UpdatedAt = c.deps.now()
		if err := c.deps.Users.Replace(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to verify user email: %w", err)
		}
	}
	return accepted, nil
}

// AcceptOrgUserByOrgSsoID accepts the user's invitation to the organization
// with the given SSO identifier.
func (c *AcceptCommand) AcceptOrgUserByOrgSsoID(ctx context.Context, identifier string, user *domain.User) (*domain.OrganizationUser, error) {
	org, err := c.deps.Organizations.GetByIdentifier(ctx, identifier)
	if errors.Is(err, domain.ErrOrganizationNotFound) {
		return nil, domain.ErrBadRequest(MsgOrganizationInvalid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	ou, err := c.findMembership(ctx, org.ID, user)
	if err != nil {
		return nil, err
	}
	return c.AcceptOrgUser(ctx, ou, user)
}

// AcceptOrgUserByOrgID accepts the user's invitation to the organization.
func (c *AcceptCommand) AcceptOrgUserByOrgID(ctx context.Context, organizationID uuid.UUID, user *domain.User) (*domain.OrganizationUser, error) {
	org, err := c.deps.Organizations.GetByID(ctx, organizationID)
	if errors.Is(err, domain.ErrOrganizationNotFound) {
		return nil, domain.ErrBadRequest(MsgOrganizationInvalid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	ou, err := c.findMembership(ctx, org.ID, user)
	if err != nil {
		return nil, err
	}
	return c.AcceptOrgUser(ctx, ou, user)
}

// findMembership looks the user up by id first, then by invite email.
func (c *AcceptCommand) findMembership(ctx context.Context, organizationID uuid.UUID, user *domain.User) (*domain.OrganizationUser, error) {
	memberships, err := c.deps.OrganizationUsers.GetManyByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user memberships: %w", err)
	}
	for _, ou := range memberships {
		if ou.OrganizationID == organizationID {
			return ou, nil
		}
	}

	ou, err := c.deps.OrganizationUsers.GetByOrganizationAndEmail(ctx, organizationID, user.Email)
	if errors.Is(err, domain.ErrOrganizationUserNotFound) {
		return nil, domain.ErrBadRequest(MsgUserNotFoundInOrg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization user: %w", err)
	}
	return ou, nil
}

// AcceptOrgUser applies the status, plan and policy checks shared by every
// entry point and persists the acceptance.
func (c *AcceptCommand) AcceptOrgUser(ctx context.Context, ou *domain.OrganizationUser, user *domain.User) (*domain.OrganizationUser, error) {
	switch ou.Status {
	case domain.OrganizationUserStatusRevoked:
		return nil, domain.ErrBadRequest(MsgAccessRevoked)
	case domain.OrganizationUserStatusInvited:
	default:
		return nil, domain.ErrBadRequest(MsgAlreadyAccepted)
	}

	org, err := c.deps.Organizations.GetByID(ctx, ou.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	if ou.IsAdminOrOwner() && c.deps.Billing.IsFreePlan(org) {
		count, err := c.deps.OrganizationUsers.GetCountByFreeOrganizationAdminUser(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count free organization admin memberships: %w", err)
		}
		if count > 0 {
			return nil, domain.ErrBadRequest(MsgFreeOrgAdminOnAccept)
		}
	}

	if err := c.validatePolicies(ctx, ou, user); err != nil {
		return nil, err
	}

	userID := user.ID
	ou.Status = domain.OrganizationUserStatusAccepted
	ou.UserID = &userID
	ou.Email = nil
	ou.UpdatedAt = c.deps.now()
	if err := c.deps.OrganizationUsers.Replace(ctx, ou); err != nil {
		return nil, fmt.Errorf("failed to accept organization user: %w", err)
	}

	c.deps.Logger.Info("organization user accepted",
		"organization_id", ou.OrganizationID, "organization_user_id", ou.ID, "user_id", user.ID)
	logEvent(ctx, c.deps, eventFor(ou, domain.EventOrganizationUserAccepted, domain.StandardUser{UserID: user.ID}, c.deps.now()))
	c.notifyAdmins(ctx, org, user)
	return ou, nil
}

func (c *AcceptCommand) validatePolicies(ctx context.Context, ou *domain.OrganizationUser, user *domain.User) error {
	memberships, err := c.deps.OrganizationUsers.GetManyByUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to get user memberships: %w", err)
	}
	hasOtherOrgs := false
	for _, m := range memberships {
		if m.OrganizationID != ou.OrganizationID {
			hasOtherOrgs = true
			break
		}
	}

	invitedSingleOrg, err := c.deps.Policies.GetPoliciesApplicableToUser(ctx, user.ID, domain.PolicyTypeSingleOrg, domain.OrganizationUserStatusInvited)
	if err != nil {
		return err
	}
	if hasOtherOrgs && containsOrganization(invitedSingleOrg, ou.OrganizationID) {
		return domain.ErrBadRequest(MsgSingleOrgJoinThis)
	}

	otherSingleOrg, err := c.deps.Policies.AnyPoliciesApplicableToUser(ctx, user.ID, domain.PolicyTypeSingleOrg)
	if err != nil {
		return err
	}
	if otherSingleOrg {
		return domain.ErrBadRequest(MsgSingleOrgJoinOther)
	}

	enabled, err := c.deps.TwoFactor.TwoFactorIsEnabled(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to check two-step login: %w", err)
	}
	if !enabled {
		required, err := c.deps.TwoFactorRequirement.IsTwoFactorRequired(ctx, user.ID, ou.OrganizationID, domain.OrganizationUserStatusInvited)
		if err != nil {
			return err
		}
		if required {
			return domain.ErrBadRequest(MsgTwoFactorRequiredToJoin)
		}
	}
	return nil
}

// notifyAdmins emails the organization's confirmed admins and owners.
// Delivery failures do not undo the acceptance.
func (c *AcceptCommand) notifyAdmins(ctx context.Context, org *domain.Organization, user *domain.User) {
	admins, err := c.deps.OrganizationUsers.GetManyDetailsByMinimumRole(ctx, org.ID, domain.OrganizationUserTypeAdmin)
	if err != nil {
		c.deps.Logger.Warn("failed to get organization admins", "organization_id", org.ID, "error", err)
		return
	}
	emails := make([]string, 0, len(admins))
	for _, a := range admins {
		if e := a.ContactEmail(); e != "" {
			emails = append(emails, e)
		}
	}
	if len(emails) == 0 {
		return
	}
	if err := c.deps.Mail.SendOrganizationAcceptedEmail(ctx, org, user.Email, emails); err != nil {
		c.deps.Logger.Warn("failed to send accepted email", "organization_id", org.ID, "error", err)
	}
}

func containsOrganization(details []domain.PolicyDetails, organizationID uuid.UUID) bool {
	for _, d := range details {
		if d.OrganizationID == organizationID {
			return true
		}
	}
	return false
}
