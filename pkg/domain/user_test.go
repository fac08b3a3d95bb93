package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestUser_HasPremiumSubscription(t *testing.T) {
	tests := []struct {
		name           string
		premium        bool
		subscriptionID *string
		want           bool
	}{
		{
			name:    "not premium",
			premium: false,
			want:    false,
		},
		{
			name:    "premium without subscription",
			premium: true,
			want:    false,
		},
		{
			name:           "premium with empty subscription",
			premium:        true,
			subscriptionID: stringPtr(""),
			want:           false,
		},
		{
			name:           "premium with subscription",
			premium:        true,
			subscriptionID: stringPtr("sub_123"),
			want:           true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := &User{
				ID:                    uuid.New(),
				Email:                 "test@example.com",
				Premium:               tt.premium,
				GatewaySubscriptionID: tt.subscriptionID,
			}

			if got := user.HasPremiumSubscription(); got != tt.want {
				t.Errorf("HasPremiumSubscription() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestActorUserID(t *testing.T) {
	id := uuid.New()

	if got := ActorUserID(StandardUser{UserID: id}); got == nil || *got != id {
		t.Errorf("ActorUserID(StandardUser) = %v, want %v", got, id)
	}
	if got := ActorUserID(SystemUser{Kind: SystemUserSCIM}); got != nil {
		t.Errorf("ActorUserID(SystemUser) = %v, want nil", got)
	}
	if got := ActorUserID(nil); got != nil {
		t.Errorf("ActorUserID(nil) = %v, want nil", got)
	}
}

func stringPtr(s string) *string {
	return &s
}
