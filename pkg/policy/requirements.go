package policy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

// RequireTwoFactorPolicyRequirement is a snapshot of the two-step login
// policies that bind one user, computed once and queried per organization.
type RequireTwoFactorPolicyRequirement struct {
	policies []domain.PolicyDetails
}

// NewRequireTwoFactorPolicyRequirement builds the requirement from raw
// policy details. Details that do not enforce the policy are dropped here,
// so the snapshot answers queries without further filtering.
func NewRequireTwoFactorPolicyRequirement(details []domain.PolicyDetails, minStatus domain.OrganizationUserStatus) *RequireTwoFactorPolicyRequirement {
	r := &RequireTwoFactorPolicyRequirement{}
	for _, d := range details {
		if d.PolicyType != domain.PolicyTypeTwoFactorAuthentication {
			continue
		}
		if !enforces(d, minStatus) {
			continue
		}
		r.policies = append(r.policies, d)
	}
	return r
}

// IsTwoFactorRequiredForOrganization returns true when the organization
// requires two-step login of this user.
func (r *RequireTwoFactorPolicyRequirement) IsTwoFactorRequiredForOrganization(organizationID uuid.UUID) bool {
	for _, p := range r.policies {
		if p.OrganizationID == organizationID {
			return true
		}
	}
	return false
}

// OrganizationsRequiringTwoFactor lists the organizations enforcing the policy.
func (r *RequireTwoFactorPolicyRequirement) OrganizationsRequiringTwoFactor() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.policies))
	for _, p := range r.policies {
		ids = append(ids, p.OrganizationID)
	}
	return ids
}

// enforces mirrors the applicability rules as exemption checks: disabled
// policies and organizations, low statuses, admins and providers are exempt.
func enforces(d domain.PolicyDetails, minStatus domain.OrganizationUserStatus) bool {
	switch {
	case !d.PolicyEnabled:
		return false
	case !d.OrganizationEnabled, !d.OrganizationUsePolicies:
		return false
	case d.OrganizationUserStatus == domain.OrganizationUserStatusRevoked:
		return false
	case minStatus > domain.OrganizationUserStatusInvited && d.OrganizationUserStatus == domain.OrganizationUserStatusInvited:
		return false
	case minStatus > domain.OrganizationUserStatusAccepted && d.OrganizationUserStatus == domain.OrganizationUserStatusAccepted:
		return false
	case d.IsProvider:
		return false
	case d.OrganizationUserType == domain.OrganizationUserTypeOwner, d.OrganizationUserType == domain.OrganizationUserTypeAdmin:
		return false
	}
	return true
}

// RequirementService loads policy requirements for users.
type RequirementService struct {
	policies domain.PolicyRepository
}

// NewRequirementService creates a new requirement service.
func NewRequirementService(policies domain.PolicyRepository) *RequirementService {
	return &RequirementService{policies: policies}
}

// GetTwoFactorRequirement loads the two-step login requirement of a user.
func (s *RequirementService) GetTwoFactorRequirement(ctx context.Context, userID uuid.UUID, minStatus domain.OrganizationUserStatus) (*RequireTwoFactorPolicyRequirement, error) {
	details, err := s.policies.GetPolicyDetailsByUserID(ctx, userID, domain.PolicyTypeTwoFactorAuthentication)
	if err != nil {
		return nil, fmt.Errorf("failed to get policy details: %w", err)
	}
	return NewRequireTwoFactorPolicyRequirement(details, minStatus), nil
}
