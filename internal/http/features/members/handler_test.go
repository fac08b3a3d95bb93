package members

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-org-admin/internal/http/middleware"
	"github.com/tendant/simple-org-admin/internal/testutil"
	"github.com/tendant/simple-org-admin/pkg/billing"
	"github.com/tendant/simple-org-admin/pkg/domain"
	"github.com/tendant/simple-org-admin/pkg/membership"
	"github.com/tendant/simple-org-admin/pkg/policy"
)

const testUserHeader = "X-Test-User"

type fixture struct {
	store  *testutil.Store
	mail   *testutil.MockMailService
	router http.Handler
	org    *domain.Organization
	owner  *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore()
	mail := &testutil.MockMailService{}
	push := &testutil.MockPushService{}
	logger := testutil.DiscardLogger()
	orgs := store.OrganizationRepo()
	ous := store.OrganizationUserRepo()

	cmds := membership.NewCommands(membership.Deps{
		OrganizationUsers:    ous,
		Users:                store.UserRepo(),
		Organizations:        orgs,
		ProviderUsers:        store.ProviderUserRepo(),
		Policies:             policy.NewService(store.PolicyRepo()),
		TwoFactorRequirement: policy.NewTwoFactorRequirementQuery(store.PolicyRepo(), false),
		TwoFactor:            store.TwoFactor(),
		Cache:                store.AbilityCache(),
		Events:               &testutil.MockEventService{},
		ReferenceEvents:      &testutil.MockReferenceEventService{},
		Mail:                 mail,
		Push:                 push,
		Devices:              push,
		Billing:              billing.NewService(billing.DefaultPlanCatalog(), billing.NewLoggingGateway(logger), orgs, ous, logger),
		Tx:                   &testutil.MockTxManager{},
		InviteTokenIssuer:    testutil.MockInviteTokens{},
		InviteTokenValidator: testutil.MockInviteTokens{},
		Logger:               logger,
	})
	h := NewHandler(logger, cmds, ous, store.UserRepo(), 3)

	r := chi.NewRouter()
	r.Use(fakeAuth)
	h.RegisterAdminRoutes(r, middleware.ManageUsers(ous, store.ProviderUserRepo()))
	h.RegisterMemberRoutes(r, func(next http.Handler) http.Handler { return next })

	org := store.AddOrganization(domain.PlanTypeEnterpriseAnnual)
	seats := 10
	org.Seats = &seats
	owner := store.AddUser("owner@example.com")
	store.AddMember(org, owner, domain.OrganizationUserTypeOwner, domain.OrganizationUserStatusConfirmed)

	return &fixture{store: store, mail: mail, router: r, org: org, owner: owner}
}

func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := uuid.Parse(r.Header.Get(testUserHeader)); err == nil {
			r = r.WithContext(middleware.WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func (f *fixture) do(t *testing.T, as uuid.UUID, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if as != uuid.Nil {
		req.Header.Set(testUserHeader, as.String())
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) usersPath(suffix string) string {
	return "/v1/organizations/" + f.org.ID.String() + "/users" + suffix
}

func TestList_RequiresManager(t *testing.T) {
	f := newFixture(t)
	user := f.store.AddUser("user@example.com")
	f.store.AddMember(f.org, user, domain.OrganizationUserTypeUser, domain.OrganizationUserStatusConfirmed)

	tests := []struct {
		name string
		as   uuid.UUID
		want int
	}{
		{"owner", f.owner.ID, http.StatusOK},
		{"plain member", user.ID, http.StatusNotFound},
		{"stranger", uuid.New(), http.StatusNotFound},
		{"anonymous", uuid.Nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.as, http.MethodGet, f.usersPath(""), "")
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	rec := f.do(t, f.owner.ID, http.MethodGet, f.usersPath(""), "")
	var body struct {
		Data []MemberResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Len(t, body.Data, 2)
}

func TestInvite(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, f.owner.ID, http.MethodPost, f.usersPath("/invite"),
		`{"invites":[{"email":"new@example.com","type":"admin"},{"email":"owner@example.com"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp InviteResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Invited, 1)
	assert.Equal(t, "new@example.com", resp.Invited[0].Email)
	assert.Equal(t, "admin", resp.Invited[0].Type)
	assert.Equal(t, "invited", resp.Invited[0].Status)
	assert.Equal(t, []string{"owner@example.com"}, resp.Skipped)
	assert.Len(t, f.mail.Invites, 1)
}

func TestInvite_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		body string
	}{
		{"unknown type", `{"invites":[{"email":"a@example.com","type":"superuser"}]}`},
		{"missing email", `{"invites":[{"type":"user"}]}`},
		{"too many", `{"invites":[{"email":"a@example.com"},{"email":"b@example.com"},{"email":"c@example.com"},{"email":"d@example.com"}]}`},
		{"long external id", `{"invites":[{"email":"a@example.com","external_id":"` + strings.Repeat("x", 301) + `"}]}`},
		{"no invites", `{"invites":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, f.owner.ID, http.MethodPost, f.usersPath("/invite"), tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, f.mail.Invites)
}

func TestRevokeAndRestore(t *testing.T) {
	f := newFixture(t)
	member := f.store.AddMember(f.org, f.store.AddUser("user@example.com"), domain.OrganizationUserTypeUser, domain.OrganizationUserStatusConfirmed)
	path := f.usersPath("/" + member.ID.String())

	rec := f.do(t, f.owner.ID, http.MethodPut, path+"/revoke", "")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, domain.OrganizationUserStatusRevoked, f.store.Member(member.ID).Status)

	rec = f.do(t, f.owner.ID, http.MethodPut, path+"/revoke", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, f.owner.ID, http.MethodPut, path+"/restore", "")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, domain.OrganizationUserStatusConfirmed, f.store.Member(member.ID).Status)
}

func TestRevoke_MemberOfAnotherOrganization(t *testing.T) {
	f := newFixture(t)
	other := f.store.AddOrganization(domain.PlanTypeEnterpriseAnnual)
	member := f.store.AddMember(other, f.store.AddUser("user@example.com"), domain.OrganizationUserTypeUser, domain.OrganizationUserStatusConfirmed)

	rec := f.do(t, f.owner.ID, http.MethodPut, f.usersPath("/"+member.ID.String()+"/revoke"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.OrganizationUserStatusConfirmed, f.store.Member(member.ID).Status)
}

func TestBulkRevoke_ReportsPerItem(t *testing.T) {
	f := newFixture(t)
	member := f.store.AddMember(f.org, f.store.AddUser("user@example.com"), domain.OrganizationUserTypeUser, domain.OrganizationUserStatusConfirmed)
	f.store.AddMember(f.org, f.store.AddUser("co-owner@example.com"), domain.OrganizationUserTypeOwner, domain.OrganizationUserStatusConfirmed)
	self, err := f.store.OrganizationUserRepo().GetByOrganizationAndUser(context.Background(), f.org.ID, f.owner.ID)
	require.NoError(t, err)

	rec := f.do(t, f.owner.ID, http.MethodPut, f.usersPath("/revoke"),
		`{"ids":["`+member.ID.String()+`","`+self.ID.String()+`"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp BulkResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	byID := map[uuid.UUID]BulkResult{}
	for _, r := range resp.Data {
		byID[r.ID] = r
	}
	assert.Empty(t, byID[member.ID].Error)
	assert.Equal(t, membership.MsgCannotRevokeSelf, byID[self.ID].Error)
}

func TestBulk_RequiresIDs(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/revoke", "/delete-account", "/claimed"} {
		method := http.MethodDelete
		if path == "/revoke" {
			method = http.MethodPut
		}
		rec := f.do(t, f.owner.ID, method, f.usersPath(path), `{"ids":[]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestConfirm(t *testing.T) {
	f := newFixture(t)
	member := f.store.AddMember(f.org, f.store.AddUser("user@example.com"), domain.OrganizationUserTypeUser, domain.OrganizationUserStatusAccepted)
	path := f.usersPath("/" + member.ID.String() + "/confirm")

	rec := f.do(t, f.owner.ID, http.MethodPost, path, `{"key":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, f.owner.ID, http.MethodPost, path, `{"key":"2.wrapped"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.OrganizationUserStatusConfirmed, f.store.Member(member.ID).Status)
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	member := f.store.AddMember(f.org, f.store.AddUser("user@example.com"), domain.OrganizationUserTypeUser, domain.OrganizationUserStatusConfirmed)

	rec := f.do(t, f.owner.ID, http.MethodDelete, f.usersPath("/"+member.ID.String()), "")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Nil(t, f.store.Member(member.ID))
}

func TestAcceptInvite(t *testing.T) {
	f := newFixture(t)
	invite := f.store.AddInvite(f.org, "invitee@example.com", domain.OrganizationUserTypeUser)
	invitee := f.store.AddUser("invitee@example.com")
	path := f.usersPath("/" + invite.ID.String() + "/accept")

	rec := f.do(t, invitee.ID, http.MethodPost, path, `{"token":"forged"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	token, err := testutil.MockInviteTokens{}.Issue(invite.ID, "invitee@example.com")
	require.NoError(t, err)
	rec = f.do(t, invitee.ID, http.MethodPost, path, `{"token":"`+token+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored := f.store.Member(invite.ID)
	assert.Equal(t, domain.OrganizationUserStatusAccepted, stored.Status)
	assert.True(t, stored.HasUser(invitee.ID))
}

func TestAcceptInvite_UnknownUser(t *testing.T) {
	f := newFixture(t)
	invite := f.store.AddInvite(f.org, "invitee@example.com", domain.OrganizationUserTypeUser)

	rec := f.do(t, uuid.New(), http.MethodPost, f.usersPath("/"+invite.ID.String()+"/accept"), `{"token":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLeave(t *testing.T) {
	f := newFixture(t)
	user := f.store.AddUser("user@example.com")
	member := f.store.AddMember(f.org, user, domain.OrganizationUserTypeUser, domain.OrganizationUserStatusConfirmed)

	rec := f.do(t, user.ID, http.MethodPost, "/v1/organizations/"+f.org.ID.String()+"/leave", "")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Nil(t, f.store.Member(member.ID))

	rec = f.do(t, f.owner.ID, http.MethodPost, "/v1/organizations/"+f.org.ID.String()+"/leave", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAcceptByOrganization(t *testing.T) {
	f := newFixture(t)
	invite := f.store.AddInvite(f.org, "invitee@example.com", domain.OrganizationUserTypeUser)
	invitee := f.store.AddUser("invitee@example.com")

	rec := f.do(t, invitee.ID, http.MethodPost, "/v1/organizations/"+f.org.ID.String()+"/accept", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.OrganizationUserStatusAccepted, f.store.Member(invite.ID).Status)

	rec = f.do(t, invitee.ID, http.MethodPost, "/v1/organizations/"+uuid.NewString()+"/accept", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
