package notification

import (
	"context"
	"errors"
	"html"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-org-admin/pkg/domain"
)

type sentMail struct {
	to, subject, body string
}

type fakeSender struct {
	sent []sentMail
	fail map[string]error
}

func (f *fakeSender) Send(_ context.Context, to, subject, body string) error {
	if err := f.fail[to]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentMail{to, subject, body})
	return nil
}

func newTestMailService(sender Sender) *MailService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMailService(MailConfig{WebVaultURL: "https://vault.example.com/"}, sender, logger)
}

func strPtr(s string) *string { return &s }

func TestMailService_SendOrganizationInviteEmails(t *testing.T) {
	sender := &fakeSender{}
	s := newTestMailService(sender)
	org := &domain.Organization{ID: uuid.New(), Name: "Acme & Co"}
	ou := &domain.OrganizationUser{ID: uuid.New(), OrganizationID: org.ID, Email: strPtr("alice@example.com")}

	err := s.SendOrganizationInviteEmails(context.Background(), org, []domain.OrganizationInvite{
		{OrganizationUser: ou, Token: "tok+en"},
		{OrganizationUser: &domain.OrganizationUser{ID: uuid.New()}}, // no address, skipped
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, "alice@example.com", msg.to)
	assert.Equal(t, "Join Acme & Co", msg.subject)
	assert.Contains(t, msg.body, "Acme &amp; Co")
	assert.Contains(t, msg.body, "5 days")

	start := strings.Index(msg.body, `href="`) + len(`href="`)
	href := msg.body[start : start+strings.Index(msg.body[start:], `"`)]
	// html/template entity-escapes attribute values
	href = html.UnescapeString(href)
	require.True(t, strings.HasPrefix(href, "https://vault.example.com/#/accept-organization?"), href)

	q, err := url.ParseQuery(strings.SplitN(href, "?", 2)[1])
	require.NoError(t, err)
	assert.Equal(t, org.ID.String(), q.Get("organizationId"))
	assert.Equal(t, ou.ID.String(), q.Get("organizationUserId"))
	assert.Equal(t, "alice@example.com", q.Get("email"))
	assert.Equal(t, "tok+en", q.Get("token"))
}

func TestMailService_InviteFailuresAreJoined(t *testing.T) {
	sender := &fakeSender{fail: map[string]error{"bad@example.com": errors.New("mailbox unavailable")}}
	s := newTestMailService(sender)
	org := &domain.Organization{ID: uuid.New(), Name: "Acme"}

	err := s.SendOrganizationInviteEmails(context.Background(), org, []domain.OrganizationInvite{
		{OrganizationUser: &domain.OrganizationUser{ID: uuid.New(), Email: strPtr("bad@example.com")}},
		{OrganizationUser: &domain.OrganizationUser{ID: uuid.New(), Email: strPtr("good@example.com")}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mailbox unavailable")
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "good@example.com", sender.sent[0].to)
}

func TestMailService_SendOrganizationAcceptedEmail(t *testing.T) {
	sender := &fakeSender{}
	s := newTestMailService(sender)
	org := &domain.Organization{ID: uuid.New(), Name: "Acme"}

	err := s.SendOrganizationAcceptedEmail(context.Background(), org, "bob@example.com", []string{"owner@example.com", "admin@example.com"})
	require.NoError(t, err)
	require.Len(t, sender.sent, 2)
	assert.Equal(t, "owner@example.com", sender.sent[0].to)
	assert.Equal(t, "admin@example.com", sender.sent[1].to)
	assert.Contains(t, sender.sent[0].body, "bob@example.com has accepted")
}

func TestMailService_SendOrganizationConfirmedEmail(t *testing.T) {
	tests := []struct {
		name           string
		secretsManager bool
	}{
		{"password manager only", false},
		{"with secrets manager", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			s := newTestMailService(sender)

			require.NoError(t, s.SendOrganizationConfirmedEmail(context.Background(), "Acme", "bob@example.com", tt.secretsManager))
			require.Len(t, sender.sent, 1)
			assert.Equal(t, "You can now access items from Acme", sender.sent[0].subject)
			assert.Equal(t, tt.secretsManager, strings.Contains(sender.sent[0].body, "Secrets Manager"))
		})
	}
}
