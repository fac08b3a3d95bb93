package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-org-admin/internal/testutil"
	"github.com/tendant/simple-org-admin/pkg/domain"
	"github.com/tendant/simple-org-admin/pkg/membership"
	"github.com/tendant/simple-org-admin/pkg/policy"
)

type fakeRevoker struct {
	requests []membership.RevokeOrganizationUsersRequest
	result   domain.CommandResult
	err      error
}

func (r *fakeRevoker) RevokeNonCompliantUsers(_ context.Context, req membership.RevokeOrganizationUsersRequest) (domain.CommandResult, error) {
	r.requests = append(r.requests, req)
	return r.result, r.err
}

func memberIDs(req membership.RevokeOrganizationUsersRequest) []uuid.UUID {
	var ids []uuid.UUID
	for _, ou := range req.OrganizationUsers {
		ids = append(ids, ou.ID)
	}
	return ids
}

func newSweep(store *testutil.Store, revoker Revoker) *ComplianceSweep {
	return NewComplianceSweep(
		store.PolicyRepo(),
		store.OrganizationUserRepo(),
		policy.NewTwoFactorRequirementQuery(store.PolicyRepo(), true),
		revoker,
		testutil.DiscardLogger(),
	)
}

func TestComplianceSweep_RevokesMembersWithoutTwoFactor(t *testing.T) {
	store := testutil.NewStore()
	org := store.AddOrganization(domain.PlanTypeEnterpriseAnnual)
	store.AddPolicy(org, domain.PolicyTypeTwoFactorAuthentication)

	owner := store.AddMember(org, store.AddUser("owner@example.com"), domain.OrganizationUserTypeOwner, domain.OrganizationUserStatusConfirmed)
	admin := store.AddMember(org, store.AddUser("admin@example.com"), domain.OrganizationUserTypeAdmin, domain.OrganizationUserStatusConfirmed)
	compliantUser := store.AddUser("compliant@example.com")
	store.TwoFactorEnabled[compliantUser.ID] = true
	compliant := store.AddMember(org, compliantUser, domain.OrganizationUserTypeUser, domain.OrganizationUserStatusConfirmed)
	accepted := store.AddMember(org, store.AddUser("accepted@example.com"), domain.OrganizationUserTypeUser, domain.OrganizationUserStatusAccepted)
	confirmed := store.AddMember(org, store.AddUser("confirmed@example.com"), domain.OrganizationUserTypeCustom, domain.OrganizationUserStatusConfirmed)
	invited := store.AddInvite(org, "invited@example.com", domain.OrganizationUserTypeUser)
	revoked := store.AddMember(org, store.AddUser("revoked@example.com"), domain.OrganizationUserTypeUser, domain.OrganizationUserStatusRevoked)

	revoker := &fakeRevoker{}
	res, err := newSweep(store, revoker).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SweepResult{Organizations: 1, Revoked: 2}, res)
	require.Len(t, revoker.requests, 1)
	req := revoker.requests[0]
	assert.Equal(t, org.ID, req.OrganizationID)
	assert.Equal(t, domain.SystemUser{Kind: domain.SystemUserTwoFactorDisabled}, req.Actor)

	ids := memberIDs(req)
	assert.ElementsMatch(t, []uuid.UUID{accepted.ID, confirmed.ID}, ids)
	for _, skipped := range []*domain.OrganizationUser{owner, admin, compliant, invited, revoked} {
		assert.NotContains(t, ids, skipped.ID)
	}
}

func TestComplianceSweep_SkipsDisabledPolicies(t *testing.T) {
	store := testutil.NewStore()
	org := store.AddOrganization(domain.PlanTypeEnterpriseAnnual)
	store.AddPolicy(org, domain.PolicyTypeTwoFactorAuthentication).Enabled = false
	store.AddMember(org, store.AddUser("user@example.com"), domain.OrganizationUserTypeUser, domain.OrganizationUserStatusConfirmed)

	revoker := &fakeRevoker{}
	res, err := newSweep(store, revoker).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, res)
	assert.Empty(t, revoker.requests)
}

func TestComplianceSweep_RejectionsAndFailuresDoNotStopTheRun(t *testing.T) {
	store := testutil.NewStore()
	for i := 0; i < 2; i++ {
		org := store.AddOrganization(domain.PlanTypeTeamsAnnually)
		store.AddPolicy(org, domain.PolicyTypeTwoFactorAuthentication)
		store.AddMember(org, store.AddUser(uuid.NewString()+"@example.com"), domain.OrganizationUserTypeUser, domain.OrganizationUserStatusConfirmed)
	}

	tests := []struct {
		name    string
		revoker *fakeRevoker
		want    SweepResult
	}{
		{"rejected", &fakeRevoker{result: domain.NewCommandResult(membership.MsgMustHaveConfirmedOwner)}, SweepResult{Organizations: 2, Rejected: 2}},
		{"infrastructure failure", &fakeRevoker{err: errors.New("db down")}, SweepResult{Organizations: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newSweep(store, tt.revoker).Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)
			assert.Len(t, tt.revoker.requests, 2)
		})
	}
}

func TestComplianceSweep_EnforceForUser(t *testing.T) {
	store := testutil.NewStore()
	enforcing := store.AddOrganization(domain.PlanTypeEnterpriseAnnual)
	store.AddPolicy(enforcing, domain.PolicyTypeTwoFactorAuthentication)
	relaxed := store.AddOrganization(domain.PlanTypeEnterpriseAnnual)
	administered := store.AddOrganization(domain.PlanTypeEnterpriseAnnual)
	store.AddPolicy(administered, domain.PolicyTypeTwoFactorAuthentication)

	user := store.AddUser("user@example.com")
	member := store.AddMember(enforcing, user, domain.OrganizationUserTypeUser, domain.OrganizationUserStatusConfirmed)
	store.AddMember(relaxed, user, domain.OrganizationUserTypeUser, domain.OrganizationUserStatusConfirmed)
	store.AddMember(administered, user, domain.OrganizationUserTypeAdmin, domain.OrganizationUserStatusConfirmed)

	revoker := &fakeRevoker{}
	n, err := newSweep(store, revoker).EnforceForUser(context.Background(), user.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	require.Len(t, revoker.requests, 1)
	assert.Equal(t, enforcing.ID, revoker.requests[0].OrganizationID)
	assert.Equal(t, []uuid.UUID{member.ID}, memberIDs(revoker.requests[0]))
	assert.Equal(t, domain.SystemUser{Kind: domain.SystemUserTwoFactorDisabled}, revoker.requests[0].Actor)
}

func TestScheduler_RunsSweep(t *testing.T) {
	store := testutil.NewStore()
	org := store.AddOrganization(domain.PlanTypeEnterpriseAnnual)
	store.AddPolicy(org, domain.PolicyTypeTwoFactorAuthentication)
	store.AddMember(org, store.AddUser("user@example.com"), domain.OrganizationUserTypeUser, domain.OrganizationUserStatusConfirmed)

	revoker := &fakeRevoker{}
	s := NewScheduler(newSweep(store, revoker), time.Minute, testutil.DiscardLogger())
	require.NoError(t, s.Start("@every 1s"))
	defer s.Stop()

	assert.Eventually(t, func() bool { return s.runs() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := NewScheduler(newSweep(testutil.NewStore(), &fakeRevoker{}), time.Minute, testutil.DiscardLogger())
	assert.Error(t, s.Start("not a schedule"))
}
