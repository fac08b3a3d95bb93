// Package scheduler runs periodic membership maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tendant/simple-org-admin/pkg/domain"
	"github.com/tendant/simple-org-admin/pkg/membership"
	"github.com/tendant/simple-org-admin/pkg/policy"
)

// PolicyLister finds organizations by policy.
type PolicyLister interface {
	GetManyByType(ctx context.Context, policyType domain.PolicyType) ([]*domain.Policy, error)
}

// MemberLister loads members with their two-step login state.
type MemberLister interface {
	GetManyDetailsByOrganization(ctx context.Context, organizationID uuid.UUID) ([]*domain.OrganizationUserUserDetails, error)
	GetManyByUser(ctx context.Context, userID uuid.UUID) ([]*domain.OrganizationUser, error)
}

// Revoker revokes members that violate a policy.
type Revoker interface {
	RevokeNonCompliantUsers(ctx context.Context, req membership.RevokeOrganizationUsersRequest) (domain.CommandResult, error)
}

// ComplianceSweep revokes members of organizations enforcing the two-step
// login policy who do not have it enabled.
type ComplianceSweep struct {
	policies    PolicyLister
	members     MemberLister
	requirement policy.TwoFactorRequirementQuery
	revoker     Revoker
	logger      *slog.Logger
}

// NewComplianceSweep creates the sweep job.
func NewComplianceSweep(policies PolicyLister, members MemberLister, requirement policy.TwoFactorRequirementQuery, revoker Revoker, logger *slog.Logger) *ComplianceSweep {
	return &ComplianceSweep{
		policies:    policies,
		members:     members,
		requirement: requirement,
		revoker:     revoker,
		logger:      logger,
	}
}

// SweepResult summarizes one run.
type SweepResult struct {
	Organizations int
	Revoked       int
	Rejected      int
}

// Run checks every organization with the policy enabled. A failing
// organization is logged and skipped.
func (s *ComplianceSweep) Run(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	policies, err := s.policies.GetManyByType(ctx, domain.PolicyTypeTwoFactorAuthentication)
	if err != nil {
		return res, fmt.Errorf("failed to list two-step login policies: %w", err)
	}

	for _, p := range policies {
		if !p.Enabled {
			continue
		}
		res.Organizations++

		revoked, rejected, err := s.sweepOrganization(ctx, p.OrganizationID)
		if err != nil {
			s.logger.Error("compliance sweep failed for organization", "organization_id", p.OrganizationID, "error", err)
			continue
		}
		res.Revoked += revoked
		if rejected {
			res.Rejected++
		}
	}
	return res, nil
}

func (s *ComplianceSweep) sweepOrganization(ctx context.Context, organizationID uuid.UUID) (int, bool, error) {
	members, err := s.members.GetManyDetailsByOrganization(ctx, organizationID)
	if err != nil {
		return 0, false, err
	}

	var nonCompliant []*domain.OrganizationUserUserDetails
	for _, m := range members {
		if m.UserID == nil || m.TwoFactorEnabled || m.Status < domain.OrganizationUserStatusAccepted {
			continue
		}
		required, err := s.requirement.IsTwoFactorRequired(ctx, *m.UserID, organizationID, domain.OrganizationUserStatusAccepted)
		if err != nil {
			return 0, false, err
		}
		if required {
			nonCompliant = append(nonCompliant, m)
		}
	}
	if len(nonCompliant) == 0 {
		return 0, false, nil
	}

	return s.revoke(ctx, organizationID, nonCompliant)
}

// EnforceForUser revokes the user from every organization that requires
// two-step login. Called after the user turns it off.
func (s *ComplianceSweep) EnforceForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	memberships, err := s.members.GetManyByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to list memberships: %w", err)
	}

	revoked := 0
	for _, ou := range memberships {
		if ou.Status < domain.OrganizationUserStatusAccepted {
			continue
		}
		required, err := s.requirement.IsTwoFactorRequired(ctx, userID, ou.OrganizationID, domain.OrganizationUserStatusAccepted)
		if err != nil {
			return revoked, err
		}
		if !required {
			continue
		}
		n, _, err := s.revoke(ctx, ou.OrganizationID, []*domain.OrganizationUserUserDetails{{OrganizationUser: *ou}})
		if err != nil {
			return revoked, err
		}
		revoked += n
	}
	return revoked, nil
}

func (s *ComplianceSweep) revoke(ctx context.Context, organizationID uuid.UUID, members []*domain.OrganizationUserUserDetails) (int, bool, error) {
	result, err := s.revoker.RevokeNonCompliantUsers(ctx, membership.RevokeOrganizationUsersRequest{
		OrganizationID:    organizationID,
		OrganizationUsers: members,
		Actor:             domain.SystemUser{Kind: domain.SystemUserTwoFactorDisabled},
	})
	if err != nil {
		return 0, false, err
	}
	if result.HasErrors() {
		s.logger.Warn("two-step login revocation rejected", "organization_id", organizationID, "errors", result.ErrorMessages)
		return 0, true, nil
	}
	return len(members), false, nil
}
