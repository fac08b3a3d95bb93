package notification

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"strings"

	"github.com/tendant/simple-org-admin/pkg/domain"
)

var templates = template.Must(template.New("mail").Parse(`
{{define "invite"}}<html><body>
	<h2>Join {{.OrganizationName}}</h2>
	<p>You have been invited to join the {{.OrganizationName}} organization.</p>
	<p><a href="{{.URL}}">Click here to accept the invitation</a></p>
	<p>This invitation will expire in {{.ExpiresIn}}.</p>
</body></html>{{end}}
{{define "accepted"}}<html><body>
	<h2>Confirm a new member of {{.OrganizationName}}</h2>
	<p>{{.UserEmail}} has accepted the invitation to {{.OrganizationName}}.</p>
	<p>Log in and confirm the member to grant them access to the organization's items.</p>
</body></html>{{end}}
{{define "confirmed"}}<html><body>
	<h2>You now have access to {{.OrganizationName}}</h2>
	<p>Your membership in {{.OrganizationName}} has been confirmed.</p>
	{{if .SecretsManager}}<p>You have also been given access to Secrets Manager.</p>{{end}}
</body></html>{{end}}
`))

// MailConfig holds settings for membership mail.
type MailConfig struct {
	WebVaultURL string
	InviteTTL   string // human readable, e.g. "5 days"
}

// MailService renders membership notifications and hands them to a Sender.
type MailService struct {
	config MailConfig
	sender Sender
	logger *slog.Logger
}

// NewMailService creates a mail service.
func NewMailService(config MailConfig, sender Sender, logger *slog.Logger) *MailService {
	if config.InviteTTL == "" {
		config.InviteTTL = "5 days"
	}
	return &MailService{config: config, sender: sender, logger: logger}
}

// SendOrganizationInviteEmails sends one invite per membership. Every
// invite is attempted; the joined error reports the ones that failed.
func (s *MailService) SendOrganizationInviteEmails(ctx context.Context, org *domain.Organization, invites []domain.OrganizationInvite) error {
	var errs []error
	for _, inv := range invites {
		ou := inv.OrganizationUser
		if ou.Email == nil {
			continue
		}
		body, err := render("invite", map[string]any{
			"OrganizationName": org.Name,
			"URL":              s.inviteURL(org, ou, inv.Token),
			"ExpiresIn":        s.config.InviteTTL,
		})
		if err != nil {
			return err
		}
		subject := fmt.Sprintf("Join %s", org.Name)
		if err := s.sender.Send(ctx, *ou.Email, subject, body); err != nil {
			errs = append(errs, fmt.Errorf("invite %s: %w", ou.ID, err))
		}
	}
	s.logger.Info("sent organization invites", "organization_id", org.ID, "count", len(invites), "failed", len(errs))
	return errors.Join(errs...)
}

// SendOrganizationAcceptedEmail notifies the admins that a member is
// waiting for confirmation.
func (s *MailService) SendOrganizationAcceptedEmail(ctx context.Context, org *domain.Organization, userEmail string, adminEmails []string) error {
	body, err := render("accepted", map[string]any{
		"OrganizationName": org.Name,
		"UserEmail":        userEmail,
	})
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Action required: %s needs to be confirmed", userEmail)
	var errs []error
	for _, to := range adminEmails {
		if err := s.sender.Send(ctx, to, subject, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendOrganizationConfirmedEmail tells a member they were confirmed.
func (s *MailService) SendOrganizationConfirmedEmail(ctx context.Context, organizationName, email string, accessSecretsManager bool) error {
	body, err := render("confirmed", map[string]any{
		"OrganizationName": organizationName,
		"SecretsManager":   accessSecretsManager,
	})
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, email, fmt.Sprintf("You can now access items from %s", organizationName), body)
}

func (s *MailService) inviteURL(org *domain.Organization, ou *domain.OrganizationUser, token string) string {
	q := url.Values{}
	q.Set("organizationId", org.ID.String())
	q.Set("organizationUserId", ou.ID.String())
	q.Set("email", *ou.Email)
	q.Set("organizationName", org.Name)
	q.Set("token", token)
	return strings.TrimRight(s.config.WebVaultURL, "/") + "/#/accept-organization?" + q.Encode()
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", name, err)
	}
	return buf.String(), nil
}

// LogSender writes messages to the log instead of delivering them. Used
// when no mail transport is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, to, subject, _ string) error {
	s.logger.Info("mail not sent, no transport configured", "to", to, "subject", subject)
	return nil
}
