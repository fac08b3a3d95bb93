package membership

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-org-admin/internal/testutil"
	"github.com/tendant/simple-org-admin/pkg/billing"
	"github.com/tendant/simple-org-admin/pkg/domain"
	"github.com/tendant/simple-org-admin/pkg/policy"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

type fakeGateway struct {
	seats     []int
	smSeats   []int
	smErr     error
	cancelErr error
	cancelled []string
}

func (g *fakeGateway) AdjustSeats(_ context.Context, _ string, _ *billing.Plan, seats int) error {
	g.seats = append(g.seats, seats)
	return nil
}

func (g *fakeGateway) AdjustSmSeats(_ context.Context, _ string, _ *billing.Plan, seats int) error {
	if g.smErr != nil {
		return g.smErr
	}
	g.smSeats = append(g.smSeats, seats)
	return nil
}

func (g *fakeGateway) CancelSubscription(_ context.Context, subscriptionID string, _ bool) error {
	if g.cancelErr != nil {
		return g.cancelErr
	}
	g.cancelled = append(g.cancelled, subscriptionID)
	return nil
}

type harness struct {
	ctx     context.Context
	store   *testutil.Store
	events  *testutil.MockEventService
	refs    *testutil.MockReferenceEventService
	mail    *testutil.MockMailService
	push    *testutil.MockPushService
	tx      *testutil.MockTxManager
	gateway *fakeGateway
	cmds    *Commands
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		ctx:     context.Background(),
		store:   testutil.NewStore(),
		events:  &testutil.MockEventService{},
		refs:    &testutil.MockReferenceEventService{},
		mail:    &testutil.MockMailService{},
		push:    &testutil.MockPushService{},
		tx:      &testutil.MockTxManager{},
		gateway: &fakeGateway{},
	}
	logger := testutil.DiscardLogger()
	orgs := h.store.OrganizationRepo()
	members := h.store.OrganizationUserRepo()

	h.cmds = NewCommands(Deps{
		OrganizationUsers:    members,
		Users:                h.store.UserRepo(),
		Organizations:        orgs,
		ProviderUsers:        h.store.ProviderUserRepo(),
		Policies:             policy.NewService(h.store.PolicyRepo()),
		TwoFactorRequirement: policy.NewTwoFactorRequirementQuery(h.store.PolicyRepo(), false),
		TwoFactor:            h.store.TwoFactor(),
		Cache:                h.store.AbilityCache(),
		Events:               h.events,
		ReferenceEvents:      h.refs,
		Mail:                 h.mail,
		Push:                 h.push,
		Devices:              h.push,
		Billing:              billing.NewService(billing.DefaultPlanCatalog(), h.gateway, orgs, members, logger),
		Tx:                   h.tx,
		InviteTokenIssuer:    testutil.MockInviteTokens{},
		InviteTokenValidator: testutil.MockInviteTokens{},
		Logger:               logger,
		Now:                  func() time.Time { return fixedNow },
	})
	return h
}

// requireBadRequest asserts err is a BadRequestError carrying msg.
func requireBadRequest(t *testing.T, err error, msg string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, domain.IsBadRequest(err), "expected bad request, got %T: %v", err, err)
	require.Equal(t, msg, err.Error())
}

// requireNotFound asserts err is a NotFoundError carrying msg.
func requireNotFound(t *testing.T, err error, msg string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, domain.IsNotFound(err), "expected not found, got %T: %v", err, err)
	require.Equal(t, msg, err.Error())
}

func idPtr(id uuid.UUID) *uuid.UUID { return &id }

func intPtr(v int) *int { return &v }

func strPtr(s string) *string { return &s }
