package policy

import (
	"context"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

// TwoFactorRequirementQuery answers whether an organization requires the
// user to have two-step login enabled.
type TwoFactorRequirementQuery interface {
	IsTwoFactorRequired(ctx context.Context, userID, organizationID uuid.UUID, minStatus domain.OrganizationUserStatus) (bool, error)
}

// LegacyTwoFactorQuery evaluates the policy per call.
type LegacyTwoFactorQuery struct {
	policies *Service
}

// NewLegacyTwoFactorQuery creates the per-call implementation.
func NewLegacyTwoFactorQuery(policies *Service) *LegacyTwoFactorQuery {
	return &LegacyTwoFactorQuery{policies: policies}
}

func (q *LegacyTwoFactorQuery) IsTwoFactorRequired(ctx context.Context, userID, organizationID uuid.UUID, minStatus domain.OrganizationUserStatus) (bool, error) {
	applicable, err := q.policies.GetPoliciesApplicableToUser(ctx, userID, domain.PolicyTypeTwoFactorAuthentication, minStatus)
	if err != nil {
		return false, err
	}
	for _, p := range applicable {
		if p.OrganizationID == organizationID {
			return true, nil
		}
	}
	return false, nil
}

// RequirementTwoFactorQuery evaluates a precomputed requirement snapshot.
type RequirementTwoFactorQuery struct {
	requirements *RequirementService
}

// NewRequirementTwoFactorQuery creates the snapshot-based implementation.
func NewRequirementTwoFactorQuery(requirements *RequirementService) *RequirementTwoFactorQuery {
	return &RequirementTwoFactorQuery{requirements: requirements}
}

func (q *RequirementTwoFactorQuery) IsTwoFactorRequired(ctx context.Context, userID, organizationID uuid.UUID, minStatus domain.OrganizationUserStatus) (bool, error) {
	req, err := q.requirements.GetTwoFactorRequirement(ctx, userID, minStatus)
	if err != nil {
		return false, err
	}
	return req.IsTwoFactorRequiredForOrganization(organizationID), nil
}

// NewTwoFactorRequirementQuery selects the implementation for the
// policy-requirements feature flag.
func NewTwoFactorRequirementQuery(policies domain.PolicyRepository, usePolicyRequirements bool) TwoFactorRequirementQuery {
	if usePolicyRequirements {
		return NewRequirementTwoFactorQuery(NewRequirementService(policies))
	}
	return NewLegacyTwoFactorQuery(NewService(policies))
}
