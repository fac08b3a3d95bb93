package membership

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/domain"
	"golang.org/x/sync/errgroup"
)

// ConfirmCommand hands accepted members their wrapped organization key.
type ConfirmCommand struct {
	deps Deps
}

// NewConfirmCommand creates a new confirm command.
func NewConfirmCommand(d Deps) *ConfirmCommand {
	return &ConfirmCommand{deps: d}
}

// ConfirmUser confirms one accepted membership.
func (c *ConfirmCommand) ConfirmUser(ctx context.Context, organizationID, orgUserID uuid.UUID, key string, confirmingUserID uuid.UUID) (*domain.OrganizationUser, error) {
	results, err := c.ConfirmUsers(ctx, organizationID, map[uuid.UUID]string{orgUserID: key}, confirmingUserID)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, domain.ErrBadRequest(MsgUserNotValid)
	}
	if results[0].Err != nil {
		return nil, results[0].Err
	}
	return results[0].Item, nil
}

// ConfirmUsers confirms every accepted membership in keys. Memberships that
// are not accepted or belong to another organization are skipped. Each
// remaining membership is checked on its own; the ones that pass are
// persisted together.
func (c *ConfirmCommand) ConfirmUsers(ctx context.Context, organizationID uuid.UUID, keys map[uuid.UUID]string, confirmingUserID uuid.UUID) ([]domain.ItemResult[*domain.OrganizationUser], error) {
	ids := make([]uuid.UUID, 0, len(keys))
	for id := range keys {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	orgUsers, err := c.deps.OrganizationUsers.GetManyByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization users: %w", err)
	}
	valid := make([]*domain.OrganizationUser, 0, len(orgUsers))
	userIDs := make([]uuid.UUID, 0, len(orgUsers))
	for _, ou := range orgUsers {
		if ou.Status != domain.OrganizationUserStatusAccepted || ou.OrganizationID != organizationID || ou.UserID == nil {
			continue
		}
		valid = append(valid, ou)
		userIDs = append(userIDs, *ou.UserID)
	}
	if len(valid) == 0 {
		return nil, nil
	}

	var (
		org       *domain.Organization
		users     []*domain.User
		twoFactor []domain.UserTwoFactorStatus
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		org, err = c.deps.Organizations.GetByID(gctx, organizationID)
		if err != nil {
			return fmt.Errorf("failed to get organization: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		users, err = c.deps.Users.GetManyByIDs(gctx, userIDs)
		if err != nil {
			return fmt.Errorf("failed to get users: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		twoFactor, err = c.deps.TwoFactor.TwoFactorIsEnabledMany(gctx, userIDs)
		if err != nil {
			return fmt.Errorf("failed to check two-step login: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	usersByID := make(map[uuid.UUID]*domain.User, len(users))
	for _, u := range users {
		usersByID[u.ID] = u
	}
	twoFactorEnabled := make(map[uuid.UUID]bool, len(twoFactor))
	for _, s := range twoFactor {
		twoFactorEnabled[s.UserID] = s.TwoFactorEnabled
	}

	now := c.deps.now()
	results := make([]domain.ItemResult[*domain.OrganizationUser], 0, len(valid))
	var succeeded []*domain.OrganizationUser
	for _, ou := range valid {
		user, ok := usersByID[*ou.UserID]
		if !ok {
			results = append(results, domain.ItemResult[*domain.OrganizationUser]{Item: ou, Err: domain.ErrBadRequest(MsgUserNotValid)})
			continue
		}

		err := c.check(ctx, org, ou, twoFactorEnabled[user.ID])
		if err != nil {
			if !isBusinessError(err) {
				return nil, err
			}
			results = append(results, domain.ItemResult[*domain.OrganizationUser]{Item: ou, Err: err})
			continue
		}

		key := keys[ou.ID]
		ou.Status = domain.OrganizationUserStatusConfirmed
		ou.Key = &key
		ou.Email = nil
		ou.UpdatedAt = now
		succeeded = append(succeeded, ou)
		results = append(results, domain.ItemResult[*domain.OrganizationUser]{Item: ou})
	}

	if len(succeeded) == 0 {
		return results, nil
	}
	if err := c.deps.OrganizationUsers.ReplaceMany(ctx, succeeded); err != nil {
		return nil, fmt.Errorf("failed to confirm organization users: %w", err)
	}

	actor := domain.StandardUser{UserID: confirmingUserID}
	events := make([]domain.OrganizationUserEvent, 0, len(succeeded))
	for _, ou := range succeeded {
		events = append(events, eventFor(ou, domain.EventOrganizationUserConfirmed, actor, now))
		user := usersByID[*ou.UserID]
		if err := c.deps.Mail.SendOrganizationConfirmedEmail(ctx, org.Name, user.Email, ou.AccessSecretsManager); err != nil {
			c.deps.Logger.Warn("failed to send confirmed email",
				"organization_id", org.ID, "organization_user_id", ou.ID, "error", err)
		}
		resetDeviceRegistrations(ctx, c.deps, ou)
	}
	logEvents(ctx, c.deps, events)

	c.deps.Logger.Info("organization users confirmed",
		"organization_id", organizationID, "confirmed", len(succeeded), "rejected", len(results)-len(succeeded))
	return results, nil
}

func (c *ConfirmCommand) check(ctx context.Context, org *domain.Organization, ou *domain.OrganizationUser, twoFactorEnabled bool) error {
	userID := *ou.UserID

	if ou.IsAdminOrOwner() && c.deps.Billing.IsFreePlan(org) {
		count, err := c.deps.OrganizationUsers.GetCountByFreeOrganizationAdminUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to count free organization admin memberships: %w", err)
		}
		if count > 0 {
			return domain.ErrBadRequest(MsgFreeOrgAdminOnConfirm)
		}
	}

	if !twoFactorEnabled {
		required, err := c.deps.TwoFactorRequirement.IsTwoFactorRequired(ctx, userID, org.ID, domain.OrganizationUserStatusAccepted)
		if err != nil {
			return err
		}
		if required {
			return domain.ErrBadRequest(MsgTwoFactorRequiredToConfirm)
		}
	}

	memberships, err := c.deps.OrganizationUsers.GetManyByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user memberships: %w", err)
	}
	hasOtherOrgs := false
	for _, m := range memberships {
		if m.OrganizationID != org.ID {
			hasOtherOrgs = true
			break
		}
	}

	singleOrg, err := c.deps.Policies.GetPoliciesApplicableToUser(ctx, userID, domain.PolicyTypeSingleOrg)
	if err != nil {
		return err
	}
	if hasOtherOrgs && containsOrganization(singleOrg, org.ID) {
		return domain.ErrBadRequest(MsgSingleOrgConfirmThis)
	}
	for _, p := range singleOrg {
		if p.OrganizationID != org.ID {
			return domain.ErrBadRequest(MsgSingleOrgConfirmOther)
		}
	}
	return nil
}
