package membership

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-org-admin/pkg/domain"
)

func TestDeleteManaged_DeleteUser(t *testing.T) {
	f := newClaimedFixture(t)
	alice := f.member("alice@acme.com", domain.OrganizationUserTypeUser)

	err := f.h.cmds.DeleteManaged.DeleteUser(f.h.ctx, f.org.ID, alice.ID, idPtr(f.owner.ID))
	require.NoError(t, err)

	assert.NotContains(t, f.h.store.Users, *alice.UserID)
	assert.Nil(t, f.h.store.Member(alice.ID))
	assert.Equal(t, []uuid.UUID{*alice.UserID}, f.h.push.LogOuts)
	require.Len(t, f.h.events.Events, 1)
	e := f.h.events.Events[0]
	assert.Equal(t, domain.EventOrganizationUserDeleted, e.Type)
	require.NotNil(t, e.ActingUserID)
	assert.Equal(t, f.owner.ID, *e.ActingUserID)
}

func TestDeleteManaged_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f claimedFixture) uuid.UUID
		deleting func(f claimedFixture) *uuid.UUID
		notFound bool
		msg      string
	}{
		{
			name:     "unknown membership",
			setup:    func(claimedFixture) uuid.UUID { return uuid.New() },
			notFound: true,
			msg:      MsgMemberNotFound,
		},
		{
			name: "invited",
			setup: func(f claimedFixture) uuid.UUID {
				return f.h.store.AddInvite(f.org, "new@acme.com", domain.OrganizationUserTypeUser).ID
			},
			msg: MsgCannotDeleteInvited,
		},
		{
			name:  "self",
			setup: func(f claimedFixture) uuid.UUID { return f.self.ID },
			msg:   MsgCannotDeleteSelf,
		},
		{
			name: "admin deleting owner",
			setup: func(f claimedFixture) uuid.UUID {
				return f.member("owner2@acme.com", domain.OrganizationUserTypeOwner).ID
			},
			deleting: func(f claimedFixture) *uuid.UUID {
				admin := f.h.store.AddUser("admin@example.com")
				f.h.store.AddMember(f.org, admin, domain.OrganizationUserTypeAdmin, domain.OrganizationUserStatusConfirmed)
				return idPtr(admin.ID)
			},
			msg: MsgOnlyOwnersDeleteOwners,
		},
		{
			name: "not managed",
			setup: func(f claimedFixture) uuid.UUID {
				return f.member("carol@gmail.com", domain.OrganizationUserTypeUser).ID
			},
			msg: MsgNotManaged,
		},
		{
			name: "sole owner of a provider",
			setup: func(f claimedFixture) uuid.UUID {
				ou := f.member("erin@acme.com", domain.OrganizationUserTypeUser)
				f.h.store.SoleProviderOwner[*ou.UserID] = 1
				return ou.ID
			},
			msg: MsgSoleOwnerOfProvider,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newClaimedFixture(t)
			id := tt.setup(f)
			deleting := idPtr(f.owner.ID)
			if tt.deleting != nil {
				deleting = tt.deleting(f)
			}

			err := f.h.cmds.DeleteManaged.DeleteUser(f.h.ctx, f.org.ID, id, deleting)
			if tt.notFound {
				requireNotFound(t, err, tt.msg)
			} else {
				requireBadRequest(t, err, tt.msg)
			}
			assert.False(t, f.h.store.Called("Users.DeleteMany"))
			assert.Empty(t, f.h.events.Events)
		})
	}
}

func TestDeleteManaged_LastOwnerIsProtected(t *testing.T) {
	h := newHarness(t)
	org := h.store.AddOrganization(domain.PlanTypeEnterpriseAnnual)
	h.store.ClaimDomain(org, "acme.com")
	owner := h.store.AddMember(org, h.store.AddUser("owner@acme.com"), domain.OrganizationUserTypeOwner, domain.OrganizationUserStatusConfirmed)

	err := h.cmds.DeleteManaged.DeleteUser(h.ctx, org.ID, owner.ID, nil)
	requireBadRequest(t, err, MsgMustHaveConfirmedOwner)
}

func TestDeleteManaged_DeleteManyUsers(t *testing.T) {
	f := newClaimedFixture(t)
	alice := f.member("alice@acme.com", domain.OrganizationUserTypeUser)
	outsider := f.member("carol@gmail.com", domain.OrganizationUserTypeUser)
	missing := uuid.New()

	results, err := f.h.cmds.DeleteManaged.DeleteManyUsers(f.h.ctx, f.org.ID, []uuid.UUID{alice.ID, outsider.ID, missing}, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	requireBadRequest(t, results[1].Err, MsgNotManaged)
	requireNotFound(t, results[2].Err, MsgMemberNotFound)

	assert.NotContains(t, f.h.store.Users, *alice.UserID)
	assert.Contains(t, f.h.store.Users, *outsider.UserID)
	require.Len(t, f.h.events.Events, 1)
	assert.Nil(t, f.h.events.Events[0].ActingUserID)
	assert.Nil(t, f.h.events.Events[0].SystemUser)
}
