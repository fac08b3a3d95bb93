package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

// Invite describes one person to invite.
type Invite struct {
	Email                string
	Type                 domain.OrganizationUserType
	Permissions          domain.Permissions
	AccessSecretsManager bool
	Collections          []domain.CollectionAccess
	Groups               []uuid.UUID
	ExternalID           *string
}

// InviteOrganizationUsersRequest invites a batch of people to an
// organization.
type InviteOrganizationUsersRequest struct {
	OrganizationID uuid.UUID
	Invites        []Invite
	InvitingUser   domain.Actor
}

// InviteResult lists the created memberships and the emails skipped because
// they were duplicates or already in the organization.
type InviteResult struct {
	Invited []*domain.OrganizationUser
	Skipped []string
}

// InviteCommand creates invited memberships and emails their tokens.
type InviteCommand struct {
	deps   Deps
	access *AccessQuery
}

// NewInviteCommand creates a new invite command.
func NewInviteCommand(d Deps) *InviteCommand {
	return &InviteCommand{deps: d, access: NewAccessQuery(d.OrganizationUsers, d.ProviderUsers)}
}

// InviteUsers invites the batch. Either every new membership is created,
// seated and emailed, or none is.
func (c *InviteCommand) InviteUsers(ctx context.Context, req InviteOrganizationUsersRequest) (*InviteResult, error) {
	if len(req.Invites) == 0 {
		return nil, domain.ErrBadRequest(MsgNoInvites)
	}
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	org, err := c.deps.Organizations.GetByID(ctx, req.OrganizationID)
	if errors.Is(err, domain.ErrOrganizationNotFound) {
		return nil, domain.ErrNotFound(MsgOrganizationNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	result := &InviteResult{}
	seen := make(map[string]struct{}, len(req.Invites))
	emails := c.deps.emailPolicy()
	var pending []Invite
	for _, inv := range req.Invites {
		email, err := emails.Check(inv.Email)
		if err != nil {
			return nil, domain.ErrBadRequest(MsgInvalidEmail, inv.Email)
		}
		if _, dup := seen[email]; dup {
			result.Skipped = append(result.Skipped, email)
			continue
		}
		seen[email] = struct{}{}

		count, err := c.deps.OrganizationUsers.GetCountByOrganization(ctx, org.ID, email, false)
		if err != nil {
			return nil, fmt.Errorf("failed to count memberships: %w", err)
		}
		if count > 0 {
			result.Skipped = append(result.Skipped, email)
			continue
		}
		inv.Email = email
		pending = append(pending, inv)
	}
	if len(pending) == 0 {
		return result, nil
	}

	smSeats := 0
	for _, inv := range pending {
		if inv.AccessSecretsManager {
			smSeats++
		}
	}
	adj, err := c.deps.Billing.ValidateSeats(ctx, org, len(pending), smSeats)
	if err != nil {
		return nil, err
	}

	now := c.deps.now()
	rows := make([]domain.NewOrganizationUser, 0, len(pending))
	invited := make([]*domain.OrganizationUser, 0, len(pending))
	for _, inv := range pending {
		email := inv.Email
		ou := &domain.OrganizationUser{
			ID:                   uuid.New(),
			OrganizationID:       org.ID,
			Email:                &email,
			Status:               domain.OrganizationUserStatusInvited,
			Type:                 inv.Type,
			AccessSecretsManager: inv.AccessSecretsManager,
			ExternalID:           inv.ExternalID,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		ou.SetPermissions(inv.Permissions)
		rows = append(rows, domain.NewOrganizationUser{OrganizationUser: ou, Collections: inv.Collections, Groups: inv.Groups})
		invited = append(invited, ou)
	}

	var undo compensations
	err = c.deps.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := c.deps.OrganizationUsers.CreateMany(ctx, rows); err != nil {
			return fmt.Errorf("failed to create organization users: %w", err)
		}
		ids := make([]uuid.UUID, 0, len(invited))
		for _, ou := range invited {
			ids = append(ids, ou.ID)
		}
		undo.push("delete invited organization users", func(ctx context.Context) error {
			return c.deps.OrganizationUsers.DeleteMany(ctx, ids)
		})

		if err := c.deps.Billing.ApplySeatAdjustment(ctx, org, adj); err != nil {
			return err
		}
		if !adj.IsZero() {
			undo.push("revert seat adjustment", func(ctx context.Context) error {
				return c.deps.Billing.ApplySeatAdjustment(ctx, org, adj.Negate())
			})
		}

		invites := make([]domain.OrganizationInvite, 0, len(invited))
		for _, ou := range invited {
			token, err := c.deps.InviteTokenIssuer.Issue(ou.ID, *ou.Email)
			if err != nil {
				return fmt.Errorf("failed to issue invite token: %w", err)
			}
			invites = append(invites, domain.OrganizationInvite{OrganizationUser: ou, Token: token})
		}
		if err := c.deps.Mail.SendOrganizationInviteEmails(ctx, org, invites); err != nil {
			return fmt.Errorf("failed to send invite emails: %w", err)
		}
		return nil
	})
	if err != nil {
		undo.run(context.WithoutCancel(ctx), c.deps.Logger)
		c.deps.Logger.Error("failed to invite organization users",
			"organization_id", org.ID, "count", len(invited), "error", err)
		return nil, err
	}

	events := make([]domain.OrganizationUserEvent, 0, len(invited))
	for _, ou := range invited {
		events = append(events, eventFor(ou, domain.EventOrganizationUserInvited, req.InvitingUser, now))
	}
	logEvents(ctx, c.deps, events)

	orgID := org.ID
	if err := c.deps.ReferenceEvents.RaiseEvent(ctx, domain.ReferenceEvent{
		Type:           domain.ReferenceEventInvitedUsers,
		OrganizationID: &orgID,
		Users:          len(invited),
		Date:           now,
	}); err != nil {
		c.deps.Logger.Warn("failed to raise invited users event", "organization_id", org.ID, "error", err)
	}

	c.deps.Logger.Info("organization users invited",
		"organization_id", org.ID, "invited", len(invited), "skipped", len(result.Skipped))
	result.Invited = invited
	return result, nil
}

func (c *InviteCommand) authorize(ctx context.Context, req InviteOrganizationUsersRequest) error {
	switch a := req.InvitingUser.(type) {
	case domain.SystemUser:
		return nil
	case domain.StandardUser:
		var grantsOwner, grantsAdmin bool
		for _, inv := range req.Invites {
			grantsOwner = grantsOwner || inv.Type == domain.OrganizationUserTypeOwner
			grantsAdmin = grantsAdmin || inv.Type == domain.OrganizationUserTypeAdmin
		}
		if grantsOwner && !a.IsOrganizationOwnerOrProvider {
			return domain.ErrBadRequest(MsgOnlyOwnersInviteOwners)
		}
		if grantsOwner || grantsAdmin {
			custom, err := c.access.IsOrganizationCustom(ctx, req.OrganizationID, a.UserID)
			if err != nil {
				return err
			}
			if custom {
				return domain.ErrBadRequest(MsgCustomCannotInviteAdmins)
			}
		}
		return nil
	default:
		return domain.ErrBadRequest(MsgUnexpectedActor)
	}
}

type compensation struct {
	name string
	fn   func(ctx context.Context) error
}

// compensations undoes completed steps of a failed operation, latest first.
type compensations []compensation

func (cs *compensations) push(name string, fn func(ctx context.Context) error) {
	*cs = append(*cs, compensation{name: name, fn: fn})
}

func (cs compensations) run(ctx context.Context, logger *slog.Logger) {
	for i := len(cs) - 1; i >= 0; i-- {
		if err := cs[i].fn(ctx); err != nil {
			logger.Error("compensation failed", "step", cs[i].name, "error", err)
		}
	}
}
