package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies an audit event.
type EventType string

const (
	EventOrganizationUserInvited   EventType = "organization_user.invited"
	EventOrganizationUserAccepted  EventType = "organization_user.accepted"
	EventOrganizationUserConfirmed EventType = "organization_user.confirmed"
	EventOrganizationUserUpdated   EventType = "organization_user.updated"
	EventOrganizationUserRemoved   EventType = "organization_user.removed"
	EventOrganizationUserRevoked   EventType = "organization_user.revoked"
	EventOrganizationUserRestored  EventType = "organization_user.restored"
	EventOrganizationUserDeleted   EventType = "organization_user.deleted"
	EventOrganizationUserLeft      EventType = "organization_user.left"
)

// EventSystemUser identifies an automated actor.
type EventSystemUser int16

const (
	SystemUserUnknown            EventSystemUser = 0
	SystemUserSCIM               EventSystemUser = 1
	SystemUserDomainVerification EventSystemUser = 2
	SystemUserPublicAPI          EventSystemUser = 3
	SystemUserTwoFactorDisabled  EventSystemUser = 4
)

func (s EventSystemUser) String() string {
	switch s {
	case SystemUserSCIM:
		return "scim"
	case SystemUserDomainVerification:
		return "domain_verification"
	case SystemUserPublicAPI:
		return "public_api"
	case SystemUserTwoFactorDisabled:
		return "two_factor_disabled"
	default:
		return "unknown"
	}
}

// Event is an audit record of a membership change.
type Event struct {
	ID                 uuid.UUID        `json:"id"`
	Type               EventType        `json:"type"`
	OrganizationID     uuid.UUID        `json:"organization_id"`
	OrganizationUserID uuid.UUID        `json:"organization_user_id"`
	ActingUserID       *uuid.UUID       `json:"acting_user_id,omitempty"`
	SystemUser         *EventSystemUser `json:"system_user,omitempty"`
	Date               time.Time        `json:"date"`
}

// ReferenceEventType identifies a business analytics event.
type ReferenceEventType string

const (
	ReferenceEventDeleteAccount ReferenceEventType = "delete_account"
	ReferenceEventInvitedUsers  ReferenceEventType = "invited_users"
)

// ReferenceEvent is an analytics record raised alongside audit events.
type ReferenceEvent struct {
	Type           ReferenceEventType `json:"type"`
	UserID         *uuid.UUID         `json:"user_id,omitempty"`
	OrganizationID *uuid.UUID         `json:"organization_id,omitempty"`
	Users          int                `json:"users,omitempty"`
	Date           time.Time          `json:"date"`
}
