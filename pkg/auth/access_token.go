package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tendant/simple-org-admin/pkg/domain"
)

// DefaultAccessTokenTTL is the lifetime of tokens issued by IssueAccessToken.
const DefaultAccessTokenTTL = 15 * time.Minute

// AccessTokenConfig holds bearer token settings.
type AccessTokenConfig struct {
	JWTSecret []byte
	Issuer    string
	TTL       time.Duration
}

// AccessTokenClaims represents the claims in an access token.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
}

// AccessTokenService validates the bearer tokens presented to the API.
type AccessTokenService struct {
	config AccessTokenConfig
}

// NewAccessTokenService creates a new access token service.
func NewAccessTokenService(config AccessTokenConfig) *AccessTokenService {
	if config.TTL == 0 {
		config.TTL = DefaultAccessTokenTTL
	}
	return &AccessTokenService{config: config}
}

// IssueAccessToken signs an access token for a user.
func (s *AccessTokenService) IssueAccessToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TTL)),
		},
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
	}
	if user.Name != nil {
		claims.Name = *user.Name
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.JWTSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return token, nil
}

// ValidateAccessToken validates an access token and returns the claims.
func (s *AccessTokenService) ValidateAccessToken(tokenString string) (*AccessTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return s.config.JWTSecret, nil
	})
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*AccessTokenClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidToken
	}
	if s.config.Issuer != "" && claims.Issuer != s.config.Issuer {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

// GetUserIDFromToken extracts the user ID from an access token.
func (s *AccessTokenService) GetUserIDFromToken(tokenString string) (uuid.UUID, error) {
	claims, err := s.ValidateAccessToken(tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(claims.Subject)
}
