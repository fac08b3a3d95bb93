package testutil

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

// DiscardLogger returns a logger that drops all records.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// === Event Service Mock ===

// MockEventService implements domain.EventService for testing.
type MockEventService struct {
	LogFn  func(ctx context.Context, e domain.OrganizationUserEvent) error
	mu     sync.Mutex
	Events []domain.OrganizationUserEvent // collected events for assertions
}

// LogOrganizationUserEvent implements the interface method for testing.
func (m *MockEventService) LogOrganizationUserEvent(ctx context.Context, e domain.OrganizationUserEvent) error {
	if m.LogFn != nil {
		if err := m.LogFn(ctx, e); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, e)
	return nil
}

// LogOrganizationUserEvents implements the interface method for testing.
func (m *MockEventService) LogOrganizationUserEvents(ctx context.Context, events []domain.OrganizationUserEvent) error {
	for _, e := range events {
		if err := m.LogOrganizationUserEvent(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// HasEvent returns true if an event of the type was logged for the member.
func (m *MockEventService) HasEvent(orgUserID uuid.UUID, typ domain.EventType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Events {
		if e.OrganizationUser.ID == orgUserID && e.Type == typ {
			return true
		}
	}
	return false
}

var _ domain.EventService = (*MockEventService)(nil)

// === Reference Event Mock ===

// MockReferenceEventService implements domain.ReferenceEventService for testing.
type MockReferenceEventService struct {
	mu     sync.Mutex
	Events []domain.ReferenceEvent
}

// RaiseEvent implements the interface method for testing.
func (m *MockReferenceEventService) RaiseEvent(_ context.Context, e domain.ReferenceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, e)
	return nil
}

var _ domain.ReferenceEventService = (*MockReferenceEventService)(nil)

// === Mail Service Mock ===

// AcceptedMail is a recorded accepted notification.
type AcceptedMail struct {
	OrganizationID uuid.UUID
	UserEmail      string
	AdminEmails    []string
}

// ConfirmedMail is a recorded confirmation notification.
type ConfirmedMail struct {
	OrganizationName string
	Email            string
}

// MockMailService implements domain.MailService for testing.
type MockMailService struct {
	SendInvitesFn  func(ctx context.Context, org *domain.Organization, invites []domain.OrganizationInvite) error
	SendAcceptedFn func(ctx context.Context, org *domain.Organization, userEmail string, adminEmails []string) error

	mu        sync.Mutex
	Invites   []domain.OrganizationInvite
	Accepted  []AcceptedMail
	Confirmed []ConfirmedMail
}

// SendOrganizationInviteEmails implements the interface method for testing.
func (m *MockMailService) SendOrganizationInviteEmails(ctx context.Context, org *domain.Organization, invites []domain.OrganizationInvite) error {
	if m.SendInvitesFn != nil {
		if err := m.SendInvitesFn(ctx, org, invites); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Invites = append(m.Invites, invites...)
	return nil
}

// SendOrganizationAcceptedEmail implements the interface method for testing.
func (m *MockMailService) SendOrganizationAcceptedEmail(ctx context.Context, org *domain.Organization, userEmail string, adminEmails []string) error {
	if m.SendAcceptedFn != nil {
		if err := m.SendAcceptedFn(ctx, org, userEmail, adminEmails); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Accepted = append(m.Accepted, AcceptedMail{OrganizationID: org.ID, UserEmail: userEmail, AdminEmails: adminEmails})
	return nil
}

// SendOrganizationConfirmedEmail implements the interface method for testing.
func (m *MockMailService) SendOrganizationConfirmedEmail(_ context.Context, organizationName, email string, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Confirmed = append(m.Confirmed, ConfirmedMail{OrganizationName: organizationName, Email: email})
	return nil
}

var _ domain.MailService = (*MockMailService)(nil)

// === Push Mock ===

// MockPushService implements domain.PushNotificationService and
// domain.DeviceRegistrationService for testing.
type MockPushService struct {
	mu                   sync.Mutex
	SyncOrgKeys          []uuid.UUID
	LogOuts              []uuid.UUID
	DeletedRegistrations []uuid.UUID // user ids
}

// PushSyncOrgKeys implements the interface method for testing.
func (m *MockPushService) PushSyncOrgKeys(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SyncOrgKeys = append(m.SyncOrgKeys, userID)
	return nil
}

// PushLogOut implements the interface method for testing.
func (m *MockPushService) PushLogOut(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LogOuts = append(m.LogOuts, userID)
	return nil
}

// DeleteUserRegistrationOrganization implements the interface method for testing.
func (m *MockPushService) DeleteUserRegistrationOrganization(_ context.Context, userID, _ uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeletedRegistrations = append(m.DeletedRegistrations, userID)
	return nil
}

var (
	_ domain.PushNotificationService   = (*MockPushService)(nil)
	_ domain.DeviceRegistrationService = (*MockPushService)(nil)
)

// === Tx Manager Mock ===

// MockTxManager runs fn directly and counts transactions.
type MockTxManager struct {
	Runs int
}

// RunInTx implements the interface method for testing.
func (m *MockTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.Runs++
	return fn(ctx)
}

var _ domain.TxManager = (*MockTxManager)(nil)

// === Invite Token Mock ===

// MockInviteTokens issues predictable tokens and accepts only those.
type MockInviteTokens struct{}

// Issue implements domain.InviteTokenIssuer.
func (MockInviteTokens) Issue(orgUserID uuid.UUID, email string) (string, error) {
	return "token:" + orgUserID.String() + ":" + email, nil
}

// Validate implements domain.InviteTokenValidator.
func (MockInviteTokens) Validate(token string, orgUserID uuid.UUID, email string) bool {
	return token == "token:"+orgUserID.String()+":"+email
}

var (
	_ domain.InviteTokenIssuer    = MockInviteTokens{}
	_ domain.InviteTokenValidator = MockInviteTokens{}
)
