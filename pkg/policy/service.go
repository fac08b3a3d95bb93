// Package policy answers which organization policies apply to a user.
package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

// Service evaluates policy applicability over the policy repository.
type Service struct {
	policies domain.PolicyRepository
}

// NewService creates a new policy service.
func NewService(policies domain.PolicyRepository) *Service {
	return &Service{policies: policies}
}

// GetPoliciesApplicableToUser returns the enabled policies of type
// policyType that bind the user in any organization. Only memberships with
// status at or above minStatus are considered (Accepted when omitted).
// Owners and Admins are exempt unless the policy type applies to everyone,
// and provider users are always exempt.
func (s *Service) GetPoliciesApplicableToUser(ctx context.Context, userID uuid.UUID, policyType domain.PolicyType, minStatus ...domain.OrganizationUserStatus) ([]domain.PolicyDetails, error) {
	min := domain.OrganizationUserStatusAccepted
	if len(minStatus) > 0 {
		min = minStatus[0]
	}

	details, err := s.policies.GetPolicyDetailsByUserID(ctx, userID, policyType)
	if err != nil {
		return nil, fmt.Errorf("failed to get policy details: %w", err)
	}

	var applicable []domain.PolicyDetails
	for _, d := range details {
		if !applies(d, policyType, min) {
			continue
		}
		applicable = append(applicable, d)
	}
	return applicable, nil
}

// AnyPoliciesApplicableToUser returns true if at least one policy of the
// type binds the user.
func (s *Service) AnyPoliciesApplicableToUser(ctx context.Context, userID uuid.UUID, policyType domain.PolicyType, minStatus ...domain.OrganizationUserStatus) (bool, error) {
	policies, err := s.GetPoliciesApplicableToUser(ctx, userID, policyType, minStatus...)
	if err != nil {
		return false, err
	}
	return len(policies) > 0, nil
}

// GetOrganizationPolicy returns the policy of a type for an organization, or
// nil if the organization has none.
func (s *Service) GetOrganizationPolicy(ctx context.Context, organizationID uuid.UUID, policyType domain.PolicyType) (*domain.Policy, error) {
	p, err := s.policies.GetByOrganizationAndType(ctx, organizationID, policyType)
	if errors.Is(err, domain.ErrPolicyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func applies(d domain.PolicyDetails, policyType domain.PolicyType, minStatus domain.OrganizationUserStatus) bool {
	if d.PolicyType != policyType || !d.PolicyEnabled {
		return false
	}
	if !d.OrganizationEnabled || !d.OrganizationUsePolicies {
		return false
	}
	if d.OrganizationUserStatus < minStatus {
		return false
	}
	if policyType.ExemptsAdmins() &&
		(d.OrganizationUserType == domain.OrganizationUserTypeOwner || d.OrganizationUserType == domain.OrganizationUserTypeAdmin) {
		return false
	}
	return !d.IsProvider
}
