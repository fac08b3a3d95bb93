package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/tendant/simple-org-admin/pkg/domain"
)

const (
	// DefaultInviteTokenTTL is how long an invitation link stays valid.
	DefaultInviteTokenTTL = 5 * 24 * time.Hour

	inviteTokenPurpose  = "org_user_invite"
	legacyInvitePrefix  = "OrganizationUserInvite"
	inviteTokenAudience = "organization-invite"
)

// InviteTokenConfig configures invite token signing.
type InviteTokenConfig struct {
	Secret       []byte // master secret for current-format tokens
	LegacySecret []byte // HMAC key of the legacy format; empty disables it
	TTL          time.Duration
	Issuer       string
}

// InviteTokenService issues and validates the tokens embedded in invitation
// emails. Current tokens are JWTs; tokens in the legacy HMAC format are
// still accepted until they expire.
type InviteTokenService struct {
	key       []byte
	legacyKey []byte
	ttl       time.Duration
	issuer    string
	now       func() time.Time
}

// InviteTokenClaims are the claims of a current-format invite token.
type InviteTokenClaims struct {
	jwt.RegisteredClaims
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

// NewInviteTokenService creates a new invite token service. The signing key
// is derived from cfg.Secret so the same secret can serve other purposes.
func NewInviteTokenService(cfg InviteTokenConfig) (*InviteTokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("invite token secret is required")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, cfg.Secret, nil, []byte(inviteTokenPurpose)), key); err != nil {
		return nil, fmt.Errorf("failed to derive invite token key: %w", err)
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultInviteTokenTTL
	}
	return &InviteTokenService{
		key:       key,
		legacyKey: cfg.LegacySecret,
		ttl:       cfg.TTL,
		issuer:    cfg.Issuer,
		now:       time.Now,
	}, nil
}

var (
	_ domain.InviteTokenIssuer    = (*InviteTokenService)(nil)
	_ domain.InviteTokenValidator = (*InviteTokenService)(nil)
)

// Issue signs a token binding the membership id to the invited email.
func (s *InviteTokenService) Issue(orgUserID uuid.UUID, email string) (string, error) {
	now := s.now()
	claims := InviteTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   orgUserID.String(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{inviteTokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Email:   NormalizeEmail(email),
		Purpose: inviteTokenPurpose,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign invite token: %w", err)
	}
	return token, nil
}

// Validate reports whether token was issued for the membership and email
// and has not expired. Either token format is accepted.
func (s *InviteTokenService) Validate(token string, orgUserID uuid.UUID, email string) bool {
	if s.validateJWT(token, orgUserID, email) {
		return true
	}
	return s.validateLegacy(token, orgUserID, email)
}

func (s *InviteTokenService) validateJWT(token string, orgUserID uuid.UUID, email string) bool {
	claims := &InviteTokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return s.key, nil
	},
		jwt.WithAudience(inviteTokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return false
	}
	return claims.Purpose == inviteTokenPurpose &&
		claims.Subject == orgUserID.String() &&
		strings.EqualFold(claims.Email, email)
}

// Legacy tokens are base64url(payload) "." base64url(HMAC-SHA256(payload))
// where payload is "OrganizationUserInvite <id> <email> <unix millis>".
func (s *InviteTokenService) validateLegacy(token string, orgUserID uuid.UUID, email string) bool {
	if len(s.legacyKey) == 0 {
		return false
	}
	payloadPart, sigPart, ok := strings.Cut(token, ".")
	if !ok || strings.Contains(sigPart, ".") {
		return false
	}
	payload, err := base64.RawURLEncoding.DecodeString(payloadPart)
	if err != nil {
		return false
	}
	sig, err := base64.RawURLEncoding.DecodeString(sigPart)
	if err != nil {
		return false
	}
	if !hmac.Equal(sig, legacySignature(s.legacyKey, payload)) {
		return false
	}

	fields := strings.Split(string(payload), " ")
	if len(fields) != 4 || fields[0] != legacyInvitePrefix {
		return false
	}
	ms, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return false
	}
	issued := time.UnixMilli(ms)
	return fields[1] == orgUserID.String() &&
		strings.EqualFold(fields[2], email) &&
		s.now().Before(issued.Add(s.ttl))
}

func legacySignature(key, payload []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return mac.Sum(nil)
}

// issueLegacy produces a legacy-format token.
func (s *InviteTokenService) issueLegacy(orgUserID uuid.UUID, email string) (string, error) {
	if len(s.legacyKey) == 0 {
		return "", fmt.Errorf("legacy invite tokens are disabled")
	}
	payload := []byte(fmt.Sprintf("%s %s %s %d", legacyInvitePrefix, orgUserID, NormalizeEmail(email), s.now().UnixMilli()))
	return base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString(legacySignature(s.legacyKey, payload)), nil
}
