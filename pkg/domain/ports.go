package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OccupiedSeats counts memberships that consume a paid seat.
type OccupiedSeats struct {
	Passwords      int
	SecretsManager int
}

// NewOrganizationUser is a membership to create with its link rows.
type NewOrganizationUser struct {
	OrganizationUser *OrganizationUser
	Collections      []CollectionAccess
	Groups           []uuid.UUID
}

// OrganizationUserRepository persists memberships.
type OrganizationUserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*OrganizationUser, error)
	GetManyByIDs(ctx context.Context, ids []uuid.UUID) ([]*OrganizationUser, error)
	GetByOrganizationAndUser(ctx context.Context, organizationID, userID uuid.UUID) (*OrganizationUser, error)
	GetByOrganizationAndEmail(ctx context.Context, organizationID uuid.UUID, email string) (*OrganizationUser, error)
	GetManyByOrganization(ctx context.Context, organizationID uuid.UUID, role *OrganizationUserType) ([]*OrganizationUser, error)
	GetManyByUser(ctx context.Context, userID uuid.UUID) ([]*OrganizationUser, error)
	GetManyDetailsByMinimumRole(ctx context.Context, organizationID uuid.UUID, minRole OrganizationUserType) ([]*OrganizationUserUserDetails, error)
	GetManyDetailsByOrganization(ctx context.Context, organizationID uuid.UUID) ([]*OrganizationUserUserDetails, error)
	GetManyByOrganizationWithClaimedDomains(ctx context.Context, organizationID uuid.UUID) ([]*OrganizationUser, error)
	GetCountByOrganization(ctx context.Context, organizationID uuid.UUID, email string, onlyRegisteredUsers bool) (int, error)
	GetCountByFreeOrganizationAdminUser(ctx context.Context, userID uuid.UUID) (int, error)
	GetCountByOnlyOwner(ctx context.Context, userID uuid.UUID) (int, error)
	GetOccupiedSeatCount(ctx context.Context, organizationID uuid.UUID) (OccupiedSeats, error)
	CreateMany(ctx context.Context, users []NewOrganizationUser) error
	Replace(ctx context.Context, ou *OrganizationUser) error
	ReplaceMany(ctx context.Context, ous []*OrganizationUser) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteMany(ctx context.Context, ids []uuid.UUID) error
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeMany(ctx context.Context, ids []uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID, status OrganizationUserStatus) error
}

// UserRepository persists user accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetManyByIDs(ctx context.Context, ids []uuid.UUID) ([]*User, error)
	Replace(ctx context.Context, user *User) error
	DeleteMany(ctx context.Context, ids []uuid.UUID) error
}

// ProviderUserRepository reads provider memberships.
type ProviderUserRepository interface {
	GetCountByOnlyOwner(ctx context.Context, userID uuid.UUID) (int, error)
	GetManyByOrganization(ctx context.Context, organizationID uuid.UUID, status *ProviderUserStatus) ([]*ProviderUser, error)
}

// OrganizationRepository persists organizations.
type OrganizationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Organization, error)
	GetByIdentifier(ctx context.Context, identifier string) (*Organization, error)
	GetAbility(ctx context.Context, id uuid.UUID) (*OrganizationAbility, error)
	Replace(ctx context.Context, org *Organization) error
}

// PolicyRepository reads organization policies.
type PolicyRepository interface {
	GetByOrganizationAndType(ctx context.Context, organizationID uuid.UUID, policyType PolicyType) (*Policy, error)
	GetManyByType(ctx context.Context, policyType PolicyType) ([]*Policy, error)
	GetPolicyDetailsByUserID(ctx context.Context, userID uuid.UUID, policyType PolicyType) ([]PolicyDetails, error)
}

// ApplicationCache serves organization abilities. A nil ability with a nil
// error means the organization is unknown.
type ApplicationCache interface {
	GetOrganizationAbility(ctx context.Context, organizationID uuid.UUID) (*OrganizationAbility, error)
	DeleteOrganizationAbility(ctx context.Context, organizationID uuid.UUID) error
}

// TwoFactorQuery reports whether users have two-step login enabled.
type TwoFactorQuery interface {
	TwoFactorIsEnabled(ctx context.Context, userID uuid.UUID) (bool, error)
	TwoFactorIsEnabledMany(ctx context.Context, userIDs []uuid.UUID) ([]UserTwoFactorStatus, error)
}

// OrganizationUserEvent is one audit entry to record. At most one of
// ActingUserID and SystemUser is set.
type OrganizationUserEvent struct {
	OrganizationUser *OrganizationUser
	Type             EventType
	ActingUserID     *uuid.UUID
	SystemUser       *EventSystemUser
	Date             time.Time
}

// EventService records audit events.
type EventService interface {
	LogOrganizationUserEvent(ctx context.Context, e OrganizationUserEvent) error
	LogOrganizationUserEvents(ctx context.Context, events []OrganizationUserEvent) error
}

// ReferenceEventService raises analytics events.
type ReferenceEventService interface {
	RaiseEvent(ctx context.Context, e ReferenceEvent) error
}

// OrganizationInvite pairs a new membership with its signed invite token.
type OrganizationInvite struct {
	OrganizationUser *OrganizationUser
	Token            string
}

// MailService sends membership notifications.
type MailService interface {
	SendOrganizationInviteEmails(ctx context.Context, org *Organization, invites []OrganizationInvite) error
	SendOrganizationAcceptedEmail(ctx context.Context, org *Organization, userEmail string, adminEmails []string) error
	SendOrganizationConfirmedEmail(ctx context.Context, organizationName, email string, accessSecretsManager bool) error
}

// PushNotificationService signals connected clients.
type PushNotificationService interface {
	PushSyncOrgKeys(ctx context.Context, userID uuid.UUID) error
	PushLogOut(ctx context.Context, userID uuid.UUID) error
}

// DeviceRegistrationService manages push registrations of devices.
type DeviceRegistrationService interface {
	DeleteUserRegistrationOrganization(ctx context.Context, userID, organizationID uuid.UUID) error
}

// InviteTokenIssuer signs invite tokens.
type InviteTokenIssuer interface {
	Issue(orgUserID uuid.UUID, email string) (string, error)
}

// InviteTokenValidator checks invite tokens in every supported encoding.
type InviteTokenValidator interface {
	Validate(token string, orgUserID uuid.UUID, email string) bool
}

// TxManager runs fn in a database transaction carried by ctx.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
