package auth

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
)

const maxEmailLength = 254

var (
	ErrEmailRequired   = errors.New("email address is required")
	ErrEmailTooLong    = errors.New("email address is too long")
	ErrEmailInvalid    = errors.New("invalid email address format")
	ErrEmailDisposable = errors.New("disposable email addresses are not allowed")
)

var strictEmailPattern = regexp.MustCompile(`^[a-z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?)+$`)

var disposableDomains = map[string]struct{}{
	"10minutemail.com":  {},
	"guerrillamail.com": {},
	"mailinator.com":    {},
	"tempmail.com":      {},
	"throwaway.email":   {},
	"yopmail.com":       {},
}

// EmailPolicy decides which addresses may be invited to an organization.
type EmailPolicy struct {
	// Strict requires a bare address with a dotted domain.
	Strict bool
	// BlockDisposable rejects well-known throwaway domains.
	BlockDisposable bool
}

// DefaultEmailPolicy is used when no policy is configured.
var DefaultEmailPolicy = EmailPolicy{Strict: true}

// Check validates email and returns its normalized form.
func (p EmailPolicy) Check(email string) (string, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return "", ErrEmailRequired
	}
	if len(normalized) > maxEmailLength {
		return "", ErrEmailTooLong
	}

	// Display names ("Alice <alice@example.com>") are not invitable.
	addr, err := mail.ParseAddress(normalized)
	if err != nil || addr.Address != normalized || addr.Name != "" {
		return "", ErrEmailInvalid
	}
	if p.Strict && !strictEmailPattern.MatchString(normalized) {
		return "", ErrEmailInvalid
	}
	if p.BlockDisposable {
		if _, blocked := disposableDomains[emailDomain(normalized)]; blocked {
			return "", ErrEmailDisposable
		}
	}
	return normalized, nil
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailsMatch reports whether two addresses are the same mailbox, ignoring
// case and surrounding whitespace.
func EmailsMatch(a, b string) bool {
	a, b = NormalizeEmail(a), NormalizeEmail(b)
	return a != "" && a == b
}

func emailDomain(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return ""
	}
	return email[at+1:]
}
