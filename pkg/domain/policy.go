package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PolicyType identifies an organization policy.
type PolicyType string

const (
	PolicyTypeTwoFactorAuthentication   PolicyType = "two_factor_authentication"
	PolicyTypeMasterPassword            PolicyType = "master_password"
	PolicyTypePasswordGenerator         PolicyType = "password_generator"
	PolicyTypeSingleOrg                 PolicyType = "single_org"
	PolicyTypeRequireSso                PolicyType = "require_sso"
	PolicyTypeOrganizationDataOwnership PolicyType = "organization_data_ownership"
	PolicyTypeDisableSend               PolicyType = "disable_send"
	PolicyTypeSendOptions               PolicyType = "send_options"
	PolicyTypeResetPassword             PolicyType = "reset_password"
)

// ExemptsAdmins reports whether Owners and Admins are exempt from the policy.
func (t PolicyType) ExemptsAdmins() bool {
	return t != PolicyTypeMasterPassword
}

// Policy is an organization-scoped rule.
type Policy struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Type           PolicyType
	Enabled        bool
	Data           json.RawMessage
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PolicyDetails is a policy joined with one membership of the user it is
// evaluated for.
type PolicyDetails struct {
	OrganizationUserID      uuid.UUID
	OrganizationID          uuid.UUID
	PolicyType              PolicyType
	PolicyEnabled           bool
	OrganizationUserType    OrganizationUserType
	OrganizationUserStatus  OrganizationUserStatus
	IsProvider              bool
	OrganizationEnabled     bool
	OrganizationUsePolicies bool
}
