package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProviderUserStatus is the state of a provider membership.
type ProviderUserStatus int16

const (
	ProviderUserStatusInvited   ProviderUserStatus = 0
	ProviderUserStatusAccepted  ProviderUserStatus = 1
	ProviderUserStatusConfirmed ProviderUserStatus = 2
)

// ProviderUserType is the role of a provider member.
type ProviderUserType int16

const (
	ProviderUserTypeProviderAdmin ProviderUserType = 0
	ProviderUserTypeServiceUser   ProviderUserType = 1
)

// ProviderUser is a user's membership in a provider (a reseller managing
// client organizations).
type ProviderUser struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	UserID     *uuid.UUID
	Email      *string
	Type       ProviderUserType
	Status     ProviderUserStatus
	CreatedAt  time.Time
}
