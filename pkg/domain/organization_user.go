package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrganizationUserStatus is the lifecycle state of a membership.
// Values are ordered so that status comparisons (>= Accepted) hold.
type OrganizationUserStatus int16

const (
	OrganizationUserStatusRevoked   OrganizationUserStatus = -1
	OrganizationUserStatusInvited   OrganizationUserStatus = 0
	OrganizationUserStatusAccepted  OrganizationUserStatus = 1
	OrganizationUserStatusConfirmed OrganizationUserStatus = 2
)

func (s OrganizationUserStatus) String() string {
	switch s {
	case OrganizationUserStatusRevoked:
		return "revoked"
	case OrganizationUserStatusInvited:
		return "invited"
	case OrganizationUserStatusAccepted:
		return "accepted"
	case OrganizationUserStatusConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// OrganizationUserType is the role of a member within an organization.
type OrganizationUserType int16

const (
	OrganizationUserTypeOwner   OrganizationUserType = 0
	OrganizationUserTypeAdmin   OrganizationUserType = 1
	OrganizationUserTypeUser    OrganizationUserType = 2
	OrganizationUserTypeManager OrganizationUserType = 3 // deprecated
	OrganizationUserTypeCustom  OrganizationUserType = 4
)

func (t OrganizationUserType) String() string {
	switch t {
	case OrganizationUserTypeOwner:
		return "owner"
	case OrganizationUserTypeAdmin:
		return "admin"
	case OrganizationUserTypeUser:
		return "user"
	case OrganizationUserTypeManager:
		return "manager"
	case OrganizationUserTypeCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// ParseOrganizationUserType parses a role name.
func ParseOrganizationUserType(s string) (OrganizationUserType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "owner":
		return OrganizationUserTypeOwner, true
	case "admin":
		return OrganizationUserTypeAdmin, true
	case "user":
		return OrganizationUserTypeUser, true
	case "manager":
		return OrganizationUserTypeManager, true
	case "custom":
		return OrganizationUserTypeCustom, true
	default:
		return 0, false
	}
}

// Rank orders roles by privilege; higher is more privileged.
func (t OrganizationUserType) Rank() int {
	switch t {
	case OrganizationUserTypeOwner:
		return 4
	case OrganizationUserTypeAdmin:
		return 3
	case OrganizationUserTypeManager, OrganizationUserTypeCustom:
		return 2
	case OrganizationUserTypeUser:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether t is as privileged as min.
func (t OrganizationUserType) AtLeast(min OrganizationUserType) bool {
	return t.Rank() >= min.Rank()
}

// Permissions are the fine-grained capabilities of a Custom member.
type Permissions struct {
	AccessEventLogs      bool `json:"access_event_logs"`
	AccessImportExport   bool `json:"access_import_export"`
	AccessReports        bool `json:"access_reports"`
	CreateNewCollections bool `json:"create_new_collections"`
	EditAnyCollection    bool `json:"edit_any_collection"`
	DeleteAnyCollection  bool `json:"delete_any_collection"`
	ManageGroups         bool `json:"manage_groups"`
	ManagePolicies       bool `json:"manage_policies"`
	ManageSso            bool `json:"manage_sso"`
	ManageUsers          bool `json:"manage_users"`
	ManageResetPassword  bool `json:"manage_reset_password"`
	ManageScim           bool `json:"manage_scim"`
}

// OrganizationUser is one user's (or pending invitee's) membership in an
// organization.
//
// While Invited the row is addressed by Email and UserID is nil. From
// Accepted onwards UserID is set and Email is cleared. Key is set on
// Confirm. Revocation leaves these fields untouched so the prior status can
// be recovered.
type OrganizationUser struct {
	ID                   uuid.UUID
	OrganizationID       uuid.UUID
	UserID               *uuid.UUID
	Email                *string
	Key                  *string
	Status               OrganizationUserStatus
	Type                 OrganizationUserType
	Permissions          Permissions
	AccessSecretsManager bool
	ExternalID           *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsOwner returns true for members holding the Owner role.
func (ou *OrganizationUser) IsOwner() bool {
	return ou.Type == OrganizationUserTypeOwner
}

// IsAdminOrOwner returns true for Owner and Admin members.
func (ou *OrganizationUser) IsAdminOrOwner() bool {
	return ou.Type == OrganizationUserTypeOwner || ou.Type == OrganizationUserTypeAdmin
}

// HasUser reports whether the membership is linked to userID.
func (ou *OrganizationUser) HasUser(userID uuid.UUID) bool {
	return ou.UserID != nil && *ou.UserID == userID
}

// SetPermissions stores permissions only for Custom members.
func (ou *OrganizationUser) SetPermissions(p Permissions) {
	if ou.Type != OrganizationUserTypeCustom {
		ou.Permissions = Permissions{}
		return
	}
	ou.Permissions = p
}

// OrganizationUserUserDetails joins a membership with user fields needed by
// admin listings and notifications.
type OrganizationUserUserDetails struct {
	OrganizationUser
	UserEmail        *string
	UserName         *string
	TwoFactorEnabled bool
}

// ContactEmail returns the best address to reach the member.
func (d *OrganizationUserUserDetails) ContactEmail() string {
	if d.UserEmail != nil {
		return *d.UserEmail
	}
	if d.Email != nil {
		return *d.Email
	}
	return ""
}

// CollectionAccess links a membership to a collection.
type CollectionAccess struct {
	CollectionID  uuid.UUID
	ReadOnly      bool
	HidePasswords bool
	Manage        bool
}
