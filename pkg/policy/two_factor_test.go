package policy

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-org-admin/pkg/domain"
)

type detailsRepo struct {
	details []domain.PolicyDetails
}

func (r *detailsRepo) GetByOrganizationAndType(context.Context, uuid.UUID, domain.PolicyType) (*domain.Policy, error) {
	return nil, domain.ErrPolicyNotFound
}

func (r *detailsRepo) GetManyByType(context.Context, domain.PolicyType) ([]*domain.Policy, error) {
	return nil, nil
}

func (r *detailsRepo) GetPolicyDetailsByUserID(context.Context, uuid.UUID, domain.PolicyType) ([]domain.PolicyDetails, error) {
	return r.details, nil
}

// Both strategies must agree on every combination of the inputs that decide
// whether a policy binds a member.
func TestTwoFactorRequirementQuery_Equivalence(t *testing.T) {
	orgID := uuid.New()
	userID := uuid.New()

	statuses := []domain.OrganizationUserStatus{
		domain.OrganizationUserStatusRevoked,
		domain.OrganizationUserStatusInvited,
		domain.OrganizationUserStatusAccepted,
		domain.OrganizationUserStatusConfirmed,
	}
	types := []domain.OrganizationUserType{
		domain.OrganizationUserTypeOwner,
		domain.OrganizationUserTypeAdmin,
		domain.OrganizationUserTypeUser,
		domain.OrganizationUserTypeCustom,
	}
	minStatuses := []domain.OrganizationUserStatus{
		domain.OrganizationUserStatusInvited,
		domain.OrganizationUserStatusAccepted,
		domain.OrganizationUserStatusConfirmed,
	}
	bools := []bool{false, true}

	ctx := context.Background()
	cases := 0
	for _, status := range statuses {
		for _, typ := range types {
			for _, policyEnabled := range bools {
				for _, orgEnabled := range bools {
					for _, usePolicies := range bools {
						for _, isProvider := range bools {
							repo := &detailsRepo{details: []domain.PolicyDetails{{
								OrganizationUserID:      uuid.New(),
								OrganizationID:          orgID,
								PolicyType:              domain.PolicyTypeTwoFactorAuthentication,
								PolicyEnabled:           policyEnabled,
								OrganizationUserType:    typ,
								OrganizationUserStatus:  status,
								IsProvider:              isProvider,
								OrganizationEnabled:     orgEnabled,
								OrganizationUsePolicies: usePolicies,
							}}}
							legacy := NewTwoFactorRequirementQuery(repo, false)
							requirement := NewTwoFactorRequirementQuery(repo, true)

							for _, min := range minStatuses {
								name := fmt.Sprintf("status=%s type=%s enabled=%v org=%v use=%v provider=%v min=%s",
									status, typ, policyEnabled, orgEnabled, usePolicies, isProvider, min)

								want, err := legacy.IsTwoFactorRequired(ctx, userID, orgID, min)
								require.NoError(t, err, name)
								got, err := requirement.IsTwoFactorRequired(ctx, userID, orgID, min)
								require.NoError(t, err, name)
								assert.Equal(t, want, got, name)

								other, err := requirement.IsTwoFactorRequired(ctx, userID, uuid.New(), min)
								require.NoError(t, err, name)
								assert.False(t, other, name)
								cases++
							}
						}
					}
				}
			}
		}
	}
	assert.Equal(t, 4*4*2*2*2*2*3, cases)
}

func TestTwoFactorRequirementQuery_RequiredForPlainMember(t *testing.T) {
	orgID := uuid.New()
	repo := &detailsRepo{details: []domain.PolicyDetails{{
		OrganizationID:          orgID,
		PolicyType:              domain.PolicyTypeTwoFactorAuthentication,
		PolicyEnabled:           true,
		OrganizationUserType:    domain.OrganizationUserTypeUser,
		OrganizationUserStatus:  domain.OrganizationUserStatusAccepted,
		OrganizationEnabled:     true,
		OrganizationUsePolicies: true,
	}}}

	for _, flag := range []bool{false, true} {
		q := NewTwoFactorRequirementQuery(repo, flag)
		required, err := q.IsTwoFactorRequired(context.Background(), uuid.New(), orgID, domain.OrganizationUserStatusAccepted)
		require.NoError(t, err)
		assert.True(t, required, "policy requirements flag=%v", flag)
	}
}

func TestRequireTwoFactorPolicyRequirement_Organizations(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	base := domain.PolicyDetails{
		PolicyType:              domain.PolicyTypeTwoFactorAuthentication,
		PolicyEnabled:           true,
		OrganizationUserType:    domain.OrganizationUserTypeUser,
		OrganizationUserStatus:  domain.OrganizationUserStatusConfirmed,
		OrganizationEnabled:     true,
		OrganizationUsePolicies: true,
	}
	da, db := base, base
	da.OrganizationID = a
	db.OrganizationID = b
	db.OrganizationUserType = domain.OrganizationUserTypeAdmin

	req := NewRequireTwoFactorPolicyRequirement([]domain.PolicyDetails{da, db}, domain.OrganizationUserStatusAccepted)
	assert.Equal(t, []uuid.UUID{a}, req.OrganizationsRequiringTwoFactor())
	assert.True(t, req.IsTwoFactorRequiredForOrganization(a))
	assert.False(t, req.IsTwoFactorRequiredForOrganization(b))
}
