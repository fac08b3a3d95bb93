package scim

import (
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

type fixture struct {
	store  *testutil.Store
	events *testutil.MockEventService
	router http.Handler
	org    *domain.Organization
	admin  *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore()
	events := &testutil.MockEventService{}
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
		TwoFactorRequirement: policy.NewTwoFactorRequirementQuery(store.PolicyRepo(), true),
		TwoFactor:            store.TwoFactor(),
		Cache:                store.AbilityCache(),
		Events:               events,
		ReferenceEvents:      &testutil.MockReferenceEventService{},
		Mail:                 &testutil.MockMailService{},
		Push:                 push,
		Devices:              push,
		Billing:              billing.NewService(billing.DefaultPlanCatalog(), billing.NewLoggingGateway(logger), orgs, ous, logger),
		Tx:                   &testutil.MockTxManager{},
		InviteTokenIssuer:    testutil.MockInviteTokens{},
		InviteTokenValidator: testutil.MockInviteTokens{},
		Logger:               logger,
	})

	org := store.AddOrganization(domain.PlanTypeEnterpriseAnnual)
	seats := 10
	org.Seats = &seats
	store.AddMember(org, store.AddUser("owner@example.com"), domain.OrganizationUserTypeOwner, domain.OrganizationUserStatusConfirmed)
	admin := store.AddUser("admin@example.com")
	store.AddMember(org, admin, domain.OrganizationUserTypeAdmin, domain.OrganizationUserStatusConfirmed)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithUserID(r.Context(), admin.ID)))
		})
	})
	NewHandler(logger, cmds, ous).RegisterRoutes(r, middleware.ManageUsers(ous, store.ProviderUserRepo()))

	return &fixture{store: store, events: events, router: r, org: org, admin: admin}
}

func (f *fixture) do(method string, orgID, id uuid.UUID, body string) *httptest.ResponseRecorder {
	path := "/v1/scim/organizations/" + orgID.String() + "/users/" + id.String()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func scimActor(t *testing.T, events *testutil.MockEventService, orgUserID uuid.UUID, typ domain.EventType) {
	t.Helper()
	for _, e := range events.Events {
		if e.OrganizationUser.ID == orgUserID && e.Type == typ {
			require.NotNil(t, e.SystemUser)
			assert.Equal(t, domain.SystemUserSCIM, *e.SystemUser)
			assert.Nil(t, e.ActingUserID)
			return
		}
	}
	t.Fatalf("no %v event for %s", typ, orgUserID)
}

func TestDelete_RemovesClaimedMember(t *testing.T) {
	f := newFixture(t)
	f.store.ClaimDomain(f.org, "corp.example")
	member := f.store.AddMember(f.org, f.store.AddUser("user@corp.example"), domain.OrganizationUserTypeUser, domain.OrganizationUserStatusConfirmed)

	rec := f.do(http.MethodDelete, f.org.ID, member.ID, "")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Nil(t, f.store.Member(member.ID))
	scimActor(t, f.events, member.ID, domain.EventOrganizationUserRemoved)
}

func TestDelete_UnknownMember(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodDelete, f.org.ID, uuid.New(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatch_TogglesAccess(t *testing.T) {
	f := newFixture(t)
	member := f.store.AddMember(f.org, f.store.AddUser("user@example.com"), domain.OrganizationUserTypeUser, domain.OrganizationUserStatusConfirmed)

	rec := f.do(http.MethodPatch, f.org.ID, member.ID, `{"active":false}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, domain.OrganizationUserStatusRevoked, f.store.Member(member.ID).Status)
	scimActor(t, f.events, member.ID, domain.EventOrganizationUserRevoked)

	// Repeating a state change is a no-op.
	rec = f.do(http.MethodPatch, f.org.ID, member.ID, `{"active":false}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(http.MethodPatch, f.org.ID, member.ID, `{"active":true}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, domain.OrganizationUserStatusConfirmed, f.store.Member(member.ID).Status)
}

func TestPatch_Validation(t *testing.T) {
	f := newFixture(t)
	other := f.store.AddOrganization(domain.PlanTypeEnterpriseAnnual)
	foreign := f.store.AddMember(other, f.store.AddUser("user@example.com"), domain.OrganizationUserTypeUser, domain.OrganizationUserStatusConfirmed)

	tests := []struct {
		name string
		id   uuid.UUID
		body string
		want int
	}{
		{"missing active", foreign.ID, `{}`, http.StatusBadRequest},
		{"other organization", foreign.ID, `{"active":false}`, http.StatusNotFound},
		{"unknown member", uuid.New(), `{"active":false}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPatch, f.org.ID, tt.id, tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	assert.Equal(t, domain.OrganizationUserStatusConfirmed, f.store.Member(foreign.ID).Status)
}
