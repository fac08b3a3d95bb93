// Package membership implements the organization membership lifecycle:
// invite, accept, confirm, revoke, restore, remove and delete, with the
// ownership, policy and plan checks that guard each transition.
package membership

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/auth"
	"github.com/tendant/simple-org-admin/pkg/billing"
	"github.com/tendant/simple-org-admin/pkg/domain"
	"github.com/tendant/simple-org-admin/pkg/policy"
	"github.com/tendant/simple-org-admin/pkg/validation"
)

// Deps are the collaborators shared by the membership commands.
type Deps struct {
	OrganizationUsers    domain.OrganizationUserRepository
	Users                domain.UserRepository
	Organizations        domain.OrganizationRepository
	ProviderUsers        domain.ProviderUserRepository
	Policies             *policy.Service
	TwoFactorRequirement policy.TwoFactorRequirementQuery
	TwoFactor            domain.TwoFactorQuery
	Cache                domain.ApplicationCache
	Events               domain.EventService
	ReferenceEvents      domain.ReferenceEventService
	Mail                 domain.MailService
	Push                 domain.PushNotificationService
	Devices              domain.DeviceRegistrationService
	Billing              *billing.Service
	Tx                   domain.TxManager
	InviteTokenIssuer    domain.InviteTokenIssuer
	InviteTokenValidator domain.InviteTokenValidator
	EmailPolicy          *auth.EmailPolicy // nil uses auth.DefaultEmailPolicy
	Logger               *slog.Logger
	Now                  func() time.Time
}

func (d Deps) emailPolicy() auth.EmailPolicy {
	if d.EmailPolicy != nil {
		return *d.EmailPolicy
	}
	return auth.DefaultEmailPolicy
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

// Commands groups every membership command, wired to the same collaborators.
type Commands struct {
	Ownership          *OwnershipChecker
	ClaimedStatus      *ClaimedStatusQuery
	Access             *AccessQuery
	Accept             *AcceptCommand
	Confirm            *ConfirmCommand
	Revoke             *RevokeCommand
	RevokeNonCompliant *RevokeNonCompliantCommand
	Restore            *RestoreCommand
	Delete             *DeleteCommand
	Remove             *RemoveCommand
	DeleteClaimed      *DeleteClaimedCommand
	DeleteManaged      *DeleteManagedCommand
	Invite             *InviteCommand
}

// NewCommands wires all commands.
func NewCommands(d Deps) *Commands {
	ownership := NewOwnershipChecker(d.OrganizationUsers, d.ProviderUsers)
	claimed := NewClaimedStatusQuery(d.Cache, d.OrganizationUsers, d.Logger)
	access := NewAccessQuery(d.OrganizationUsers, d.ProviderUsers)
	del := NewDeleteCommand(d, ownership, claimed, access)

	return &Commands{
		Ownership:          ownership,
		ClaimedStatus:      claimed,
		Access:             access,
		Accept:             NewAcceptCommand(d),
		Confirm:            NewConfirmCommand(d),
		Revoke:             NewRevokeCommand(d, ownership, access),
		RevokeNonCompliant: NewRevokeNonCompliantCommand(d, ownership),
		Restore:            NewRestoreCommand(d, access),
		Delete:             del,
		Remove:             NewRemoveCommand(d.OrganizationUsers, del),
		DeleteClaimed:      NewDeleteClaimedCommand(d, claimed, access),
		DeleteManaged:      NewDeleteManagedCommand(d, ownership, claimed, access),
		Invite:             NewInviteCommand(d),
	}
}

// eventFor builds an audit entry attributed to the acting entity.
func eventFor(ou *domain.OrganizationUser, typ domain.EventType, actor domain.Actor, date time.Time) domain.OrganizationUserEvent {
	e := domain.OrganizationUserEvent{OrganizationUser: ou, Type: typ, Date: date}
	switch a := actor.(type) {
	case domain.StandardUser:
		id := a.UserID
		e.ActingUserID = &id
	case domain.SystemUser:
		kind := a.Kind
		e.SystemUser = &kind
	}
	return e
}

// actorFromUserID wraps an optional acting user id.
func actorFromUserID(userID *uuid.UUID) domain.Actor {
	if userID == nil {
		return nil
	}
	return domain.StandardUser{UserID: *userID}
}

// toDomainError maps a pipeline failure onto the business error taxonomy.
func toDomainError(err *validation.Error) error {
	if err == nil {
		return nil
	}
	if err.Kind == validation.KindNotFound {
		return domain.ErrNotFound("%s", err.Message)
	}
	return domain.ErrBadRequest("%s", err.Message)
}

// isBusinessError reports whether err is an expected per-item rejection.
func isBusinessError(err error) bool {
	var nf *domain.NotFoundError
	var br *domain.BadRequestError
	return errors.As(err, &nf) || errors.As(err, &br)
}

// pushSyncOrgKeys asks the member's clients to resync organization keys.
// Failures are logged.
func pushSyncOrgKeys(ctx context.Context, d Deps, ou *domain.OrganizationUser) {
	if ou.UserID == nil {
		return
	}
	if err := d.Push.PushSyncOrgKeys(ctx, *ou.UserID); err != nil {
		d.Logger.Warn("failed to push sync org keys", "user_id", *ou.UserID, "error", err)
	}
}

// resetDeviceRegistrations drops the member's device registrations for the
// organization before the key resync push.
func resetDeviceRegistrations(ctx context.Context, d Deps, ou *domain.OrganizationUser) {
	if ou.UserID == nil {
		return
	}
	if d.Devices != nil {
		if err := d.Devices.DeleteUserRegistrationOrganization(ctx, *ou.UserID, ou.OrganizationID); err != nil {
			d.Logger.Warn("failed to delete device registrations",
				"organization_id", ou.OrganizationID, "user_id", *ou.UserID, "error", err)
		}
	}
	pushSyncOrgKeys(ctx, d, ou)
}

func logEvent(ctx context.Context, d Deps, e domain.OrganizationUserEvent) {
	if err := d.Events.LogOrganizationUserEvent(ctx, e); err != nil {
		d.Logger.Error("failed to log organization user event",
			"organization_user_id", e.OrganizationUser.ID, "type", e.Type, "error", err)
	}
}

func logEvents(ctx context.Context, d Deps, events []domain.OrganizationUserEvent) {
	if len(events) == 0 {
		return
	}
	if err := d.Events.LogOrganizationUserEvents(ctx, events); err != nil {
		d.Logger.Error("failed to log organization user events", "count", len(events), "error", err)
	}
}
