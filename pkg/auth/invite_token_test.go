package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInviteTokens(t *testing.T, legacy bool) *InviteTokenService {
	t.Helper()
	cfg := InviteTokenConfig{Secret: []byte("invite-secret"), TTL: time.Hour, Issuer: "org-admin"}
	if legacy {
		cfg.LegacySecret = []byte("legacy-secret")
	}
	s, err := NewInviteTokenService(cfg)
	require.NoError(t, err)
	return s
}

func TestInviteTokenService_RoundTrip(t *testing.T) {
	s := newInviteTokens(t, false)
	id := uuid.New()

	token, err := s.Issue(id, "Alice@Example.com")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		id    uuid.UUID
		email string
		valid bool
	}{
		{"matching", token, id, "alice@example.com", true},
		{"email case ignored", token, id, "ALICE@example.com", true},
		{"other membership", token, uuid.New(), "alice@example.com", false},
		{"other email", token, id, "bob@example.com", false},
		{"tampered", token + "x", id, "alice@example.com", false},
		{"garbage", "not-a-token", id, "alice@example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, s.Validate(tt.token, tt.id, tt.email))
		})
	}
}

func TestInviteTokenService_Expiry(t *testing.T) {
	s := newInviteTokens(t, true)
	id := uuid.New()
	issued := time.Now()
	s.now = func() time.Time { return issued }

	token, err := s.Issue(id, "alice@example.com")
	require.NoError(t, err)
	legacy, err := s.issueLegacy(id, "alice@example.com")
	require.NoError(t, err)

	s.now = func() time.Time { return issued.Add(59 * time.Minute) }
	assert.True(t, s.Validate(token, id, "alice@example.com"))
	assert.True(t, s.Validate(legacy, id, "alice@example.com"))

	s.now = func() time.Time { return issued.Add(61 * time.Minute) }
	assert.False(t, s.Validate(token, id, "alice@example.com"))
	assert.False(t, s.Validate(legacy, id, "alice@example.com"))
}

func TestInviteTokenService_Legacy(t *testing.T) {
	s := newInviteTokens(t, true)
	id := uuid.New()
	legacy, err := s.issueLegacy(id, "alice@example.com")
	require.NoError(t, err)

	assert.True(t, s.Validate(legacy, id, "alice@example.com"))
	assert.False(t, s.Validate(legacy, id, "bob@example.com"))

	disabled := newInviteTokens(t, false)
	assert.False(t, disabled.Validate(legacy, id, "alice@example.com"))
	_, err = disabled.issueLegacy(id, "alice@example.com")
	assert.Error(t, err)

	otherKey, err := NewInviteTokenService(InviteTokenConfig{Secret: []byte("x"), LegacySecret: []byte("other")})
	require.NoError(t, err)
	assert.False(t, otherKey.Validate(legacy, id, "alice@example.com"))
}

func TestInviteTokenService_KeysAreIndependent(t *testing.T) {
	a := newInviteTokens(t, false)
	b, err := NewInviteTokenService(InviteTokenConfig{Secret: []byte("another-secret")})
	require.NoError(t, err)
	id := uuid.New()

	token, err := a.Issue(id, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, b.Validate(token, id, "alice@example.com"))
}

func TestNewInviteTokenService_RequiresSecret(t *testing.T) {
	_, err := NewInviteTokenService(InviteTokenConfig{})
	assert.Error(t, err)
}
