package membership

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/domain"
	"github.com/tendant/simple-org-admin/pkg/validation"
	"golang.org/x/sync/errgroup"
)

// DeleteUserValidationRequest carries everything the claimed-account
// validators need for one membership.
type DeleteUserValidationRequest struct {
	OrganizationID     uuid.UUID
	OrganizationUserID uuid.UUID
	OrganizationUser   *domain.OrganizationUser
	User               *domain.User
	DeletingUserID     uuid.UUID
	IsClaimed          bool
}

// DeleteClaimedCommand deletes the user accounts of members whose email
// domain the organization has claimed.
type DeleteClaimedCommand struct {
	deps     Deps
	claimed  *ClaimedStatusQuery
	access   *AccessQuery
	pipeline validation.Pipeline[DeleteUserValidationRequest]
}

// NewDeleteClaimedCommand creates a new claimed-account delete command.
func NewDeleteClaimedCommand(d Deps, claimed *ClaimedStatusQuery, access *AccessQuery) *DeleteClaimedCommand {
	c := &DeleteClaimedCommand{deps: d, claimed: claimed, access: access}
	c.pipeline = validation.Pipeline[DeleteUserValidationRequest]{
		Sync: []validation.Validator[DeleteUserValidationRequest]{
			validation.Func[DeleteUserValidationRequest](validateUserResolved),
			validation.Func[DeleteUserValidationRequest](validateNotInvited),
			validation.Func[DeleteUserValidationRequest](validateNotSelf),
			validation.Func[DeleteUserValidationRequest](validateClaimed),
		},
		Async: []validation.AsyncValidator[DeleteUserValidationRequest]{
			validation.AsyncFunc[DeleteUserValidationRequest](c.validateOwnerPrivilege),
			validation.AsyncFunc[DeleteUserValidationRequest](c.validateNotSoleOrganizationOwner),
			validation.AsyncFunc[DeleteUserValidationRequest](c.validateNotSoleProviderOwner),
			validation.AsyncFunc[DeleteUserValidationRequest](c.validateCustomCannotDeleteAdmin),
		},
	}
	return c
}

func validateUserResolved(r DeleteUserValidationRequest) *validation.Error {
	if r.OrganizationUser == nil || r.User == nil {
		return validation.NotFound(MsgInvalidUser)
	}
	return nil
}

func validateNotInvited(r DeleteUserValidationRequest) *validation.Error {
	if r.OrganizationUser.Status == domain.OrganizationUserStatusInvited {
		return validation.BadRequest(MsgCannotDeleteInvited)
	}
	return nil
}

func validateNotSelf(r DeleteUserValidationRequest) *validation.Error {
	if r.User.ID == r.DeletingUserID {
		return validation.BadRequest(MsgCannotDeleteSelf)
	}
	return nil
}

func validateClaimed(r DeleteUserValidationRequest) *validation.Error {
	if !r.IsClaimed {
		return validation.BadRequest(MsgNotClaimed)
	}
	return nil
}

func (c *DeleteClaimedCommand) validateOwnerPrivilege(ctx context.Context, r DeleteUserValidationRequest) (*validation.Error, error) {
	if !r.OrganizationUser.IsOwner() {
		return nil, nil
	}
	isOwner, err := c.access.IsOrganizationOwner(ctx, r.OrganizationID, r.DeletingUserID)
	if err != nil {
		return nil, err
	}
	if !isOwner {
		return validation.BadRequest(MsgOnlyOwnersDeleteOwners), nil
	}
	return nil, nil
}

func (c *DeleteClaimedCommand) validateNotSoleOrganizationOwner(ctx context.Context, r DeleteUserValidationRequest) (*validation.Error, error) {
	count, err := c.deps.OrganizationUsers.GetCountByOnlyOwner(ctx, r.User.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count sole-owned organizations: %w", err)
	}
	if count > 0 {
		return validation.BadRequest(MsgSoleOwnerOfOrganization), nil
	}
	return nil, nil
}

func (c *DeleteClaimedCommand) validateNotSoleProviderOwner(ctx context.Context, r DeleteUserValidationRequest) (*validation.Error, error) {
	count, err := c.deps.ProviderUsers.GetCountByOnlyOwner(ctx, r.User.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count sole-owned providers: %w", err)
	}
	if count > 0 {
		return validation.BadRequest(MsgSoleOwnerOfProvider), nil
	}
	return nil, nil
}

func (c *DeleteClaimedCommand) validateCustomCannotDeleteAdmin(ctx context.Context, r DeleteUserValidationRequest) (*validation.Error, error) {
	if r.OrganizationUser.Type != domain.OrganizationUserTypeAdmin {
		return nil, nil
	}
	custom, err := c.access.IsOrganizationCustom(ctx, r.OrganizationID, r.DeletingUserID)
	if err != nil {
		return nil, err
	}
	if custom {
		return validation.BadRequest(MsgCustomCannotDeleteAdmins), nil
	}
	return nil, nil
}

// DeleteManyUsers validates each membership independently and deletes the
// user accounts of those that pass. Results follow the input order.
func (c *DeleteClaimedCommand) DeleteManyUsers(ctx context.Context, organizationID uuid.UUID, orgUserIDs []uuid.UUID, deletingUserID uuid.UUID) ([]domain.ItemResult[uuid.UUID], error) {
	var (
		orgUsers []*domain.OrganizationUser
		claimed  map[uuid.UUID]bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orgUsers, err = c.deps.OrganizationUsers.GetManyByIDs(gctx, orgUserIDs)
		if err != nil {
			return fmt.Errorf("failed to get organization users: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		claimed = c.claimed.GetUsersOrganizationClaimedStatus(gctx, organizationID, orgUserIDs)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*domain.OrganizationUser, len(orgUsers))
	var userIDs []uuid.UUID
	for _, ou := range orgUsers {
		if ou.OrganizationID != organizationID {
			continue
		}
		byID[ou.ID] = ou
		if ou.UserID != nil {
			userIDs = append(userIDs, *ou.UserID)
		}
	}
	users, err := c.deps.Users.GetManyByIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	usersByID := make(map[uuid.UUID]*domain.User, len(users))
	for _, u := range users {
		usersByID[u.ID] = u
	}

	requests := make([]DeleteUserValidationRequest, 0, len(orgUserIDs))
	for _, id := range orgUserIDs {
		req := DeleteUserValidationRequest{
			OrganizationID:     organizationID,
			OrganizationUserID: id,
			DeletingUserID:     deletingUserID,
			IsClaimed:          claimed[id],
		}
		if ou, ok := byID[id]; ok {
			req.OrganizationUser = ou
			if ou.UserID != nil {
				req.User = usersByID[*ou.UserID]
			}
		}
		requests = append(requests, req)
	}

	validated, err := c.pipeline.Run(ctx, requests)
	if err != nil {
		return nil, err
	}

	outcome := make(map[uuid.UUID]error, len(validated))
	valid := validation.Valid(validated)
	for _, r := range validation.Invalid(validated) {
		outcome[r.Request.OrganizationUserID] = toDomainError(r.Err)
	}

	now := c.deps.now()
	deleteIDs := make([]uuid.UUID, 0, len(valid))
	for _, r := range valid {
		if err := c.deps.Billing.CancelPremium(ctx, r.User); err != nil {
			c.deps.Logger.Warn("failed to cancel premium subscription",
				"user_id", r.User.ID, "error", err)
			outcome[r.OrganizationUserID] = &domain.SoftFailure{Operation: "cancel premium subscription", Err: err}
		}
		userID := r.User.ID
		if err := c.deps.ReferenceEvents.RaiseEvent(ctx, domain.ReferenceEvent{
			Type:           domain.ReferenceEventDeleteAccount,
			UserID:         &userID,
			OrganizationID: &organizationID,
			Date:           now,
		}); err != nil {
			c.deps.Logger.Warn("failed to raise delete account event", "user_id", userID, "error", err)
		}
		deleteIDs = append(deleteIDs, userID)
	}

	if len(deleteIDs) > 0 {
		if err := c.deps.Users.DeleteMany(ctx, deleteIDs); err != nil {
			return nil, fmt.Errorf("failed to delete users: %w", err)
		}

		actor := domain.StandardUser{UserID: deletingUserID}
		events := make([]domain.OrganizationUserEvent, 0, len(valid))
		for _, r := range valid {
			if err := c.deps.Push.PushLogOut(ctx, r.User.ID); err != nil {
				c.deps.Logger.Warn("failed to push log out", "user_id", r.User.ID, "error", err)
			}
			events = append(events, eventFor(r.OrganizationUser, domain.EventOrganizationUserDeleted, actor, now))
		}
		logEvents(ctx, c.deps, events)
	}

	c.deps.Logger.Info("deleted claimed user accounts",
		"organization_id", organizationID, "deleted", len(deleteIDs), "requested", len(orgUserIDs))

	results := make([]domain.ItemResult[uuid.UUID], 0, len(orgUserIDs))
	for _, id := range orgUserIDs {
		results = append(results, domain.ItemResult[uuid.UUID]{Item: id, Err: outcome[id]})
	}
	return results, nil
}
