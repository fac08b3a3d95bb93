package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents the account.
type User struct {
	ID                    uuid.UUID
	Email                 string
	Name                  *string
	EmailVerified         bool
	Premium               bool
	GatewayCustomerID     *string
	GatewaySubscriptionID *string
	TwoFactorEnabled      bool // derived from an enabled TOTP secret
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// HasPremiumSubscription returns true if the user pays for a personal plan.
func (u *User) HasPremiumSubscription() bool {
	return u.Premium && u.GatewaySubscriptionID != nil && *u.GatewaySubscriptionID != ""
}

// TwoFactorMethod represents the type of two-step login method.
type TwoFactorMethod string

const (
	TwoFactorMethodTOTP TwoFactorMethod = "totp"
)

// TwoFactorSecret is an encrypted two-step login secret for a user.
type TwoFactorSecret struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Method          TwoFactorMethod
	SecretEncrypted string // AES-256-GCM encrypted TOTP secret
	Enabled         bool
	CreatedAt       time.Time
	LastUsedAt      *time.Time
}

// TwoFactorSetup contains data returned when starting TOTP enrollment.
type TwoFactorSetup struct {
	Secret        string // Base32 TOTP secret (for manual entry)
	QRCodeDataURI string // QR code as data:image/png;base64,...
}

// UserTwoFactorStatus pairs a user with their two-step login state.
type UserTwoFactorStatus struct {
	UserID           uuid.UUID
	TwoFactorEnabled bool
}
