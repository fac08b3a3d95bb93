package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-org-admin/pkg/domain"
)

func TestAccessTokenService_RoundTrip(t *testing.T) {
	s := NewAccessTokenService(AccessTokenConfig{JWTSecret: []byte("secret"), Issuer: "org-admin"})
	user := &domain.User{ID: uuid.New(), Email: "alice@example.com", EmailVerified: true}

	token, err := s.IssueAccessToken(user)
	require.NoError(t, err)

	id, err := s.GetUserIDFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	claims, err := s.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.True(t, claims.EmailVerified)
}

func TestAccessTokenService_Rejects(t *testing.T) {
	s := NewAccessTokenService(AccessTokenConfig{JWTSecret: []byte("secret"), Issuer: "org-admin"})
	sign := func(secret string, claims AccessTokenClaims) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return token
	}
	valid := jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		Issuer:    "org-admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	otherIssuer := valid
	otherIssuer.Issuer = "someone-else"

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", sign("other", AccessTokenClaims{RegisteredClaims: valid})},
		{"expired", sign("secret", AccessTokenClaims{RegisteredClaims: expired})},
		{"other issuer", sign("secret", AccessTokenClaims{RegisteredClaims: otherIssuer})},
		{"malformed", "abc.def.ghi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, domain.ErrInvalidToken)
		})
	}
}
