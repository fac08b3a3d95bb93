package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-org-admin/pkg/domain"
)

func strPtr(s string) *string { return &s }

func TestCalculateSeatAdjustment(t *testing.T) {
	catalog := DefaultPlanCatalog()

	tests := []struct {
		name     string
		org      domain.Organization
		occupied domain.OccupiedSeats
		newSeats int
		newSm    int
		want     SeatAdjustment
		wantErr  string
	}{
		{
			name:     "unlimited seats",
			org:      domain.Organization{PlanType: domain.PlanTypeEnterpriseAnnual},
			occupied: domain.OccupiedSeats{Passwords: 500},
			newSeats: 10,
		},
		{
			name:     "fits within seats",
			org:      domain.Organization{PlanType: domain.PlanTypeTeamsMonthly, Seats: intPtr(10)},
			occupied: domain.OccupiedSeats{Passwords: 5},
			newSeats: 5,
		},
		{
			name:     "autoscales",
			org:      domain.Organization{PlanType: domain.PlanTypeTeamsMonthly, Seats: intPtr(10), MaxAutoscaleSeats: intPtr(20), GatewaySubscriptionID: strPtr("sub")},
			occupied: domain.OccupiedSeats{Passwords: 9},
			newSeats: 3,
			want:     SeatAdjustment{AdditionalSeats: 2},
		},
		{
			name:     "autoscale limit",
			org:      domain.Organization{PlanType: domain.PlanTypeTeamsMonthly, Seats: intPtr(10), MaxAutoscaleSeats: intPtr(11), GatewaySubscriptionID: strPtr("sub")},
			occupied: domain.OccupiedSeats{Passwords: 10},
			newSeats: 2,
			wantErr:  MsgSeatLimitReached,
		},
		{
			name:     "free plan is capped",
			org:      domain.Organization{PlanType: domain.PlanTypeFree, Seats: intPtr(2)},
			occupied: domain.OccupiedSeats{Passwords: 2},
			newSeats: 1,
			wantErr:  "You have reached the maximum number of users (2) for this plan.",
		},
		{
			name:     "no subscription to scale",
			org:      domain.Organization{PlanType: domain.PlanTypeTeamsMonthly, Seats: intPtr(1)},
			occupied: domain.OccupiedSeats{Passwords: 1},
			newSeats: 1,
			wantErr:  MsgNoSubscription,
		},
		{
			name:    "secrets manager not enabled",
			org:     domain.Organization{PlanType: domain.PlanTypeTeamsMonthly},
			newSm:   1,
			wantErr: MsgNoSecretsManager,
		},
		{
			name:     "secrets manager autoscales",
			org:      domain.Organization{PlanType: domain.PlanTypeTeamsMonthly, UseSecretsManager: true, SmSeats: intPtr(2), MaxAutoscaleSmSeats: intPtr(5)},
			occupied: domain.OccupiedSeats{SecretsManager: 2},
			newSm:    2,
			want:     SeatAdjustment{AdditionalSmSeats: 2},
		},
		{
			name:     "secrets manager autoscale limit",
			org:      domain.Organization{PlanType: domain.PlanTypeTeamsMonthly, UseSecretsManager: true, SmSeats: intPtr(2), MaxAutoscaleSmSeats: intPtr(3)},
			occupied: domain.OccupiedSeats{SecretsManager: 2},
			newSm:    2,
			wantErr:  MsgSmSeatLimitReached,
		},
		{
			name:     "secrets manager cannot exceed password seats",
			org:      domain.Organization{PlanType: domain.PlanTypeTeamsMonthly, UseSecretsManager: true, Seats: intPtr(3), SmSeats: intPtr(3)},
			occupied: domain.OccupiedSeats{Passwords: 1, SecretsManager: 3},
			newSeats: 1,
			newSm:    1,
			wantErr:  MsgSmSeatsExceedPasswordSeat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			org := tt.org
			got, err := CalculateSeatAdjustment(catalog, &org, tt.occupied, tt.newSeats, tt.newSm)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, domain.IsBadRequest(err))
				assert.Equal(t, tt.wantErr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsFreePlan(t *testing.T) {
	catalog := DefaultPlanCatalog()
	assert.True(t, IsFreePlan(catalog, domain.PlanTypeFree))
	assert.False(t, IsFreePlan(catalog, domain.PlanTypeTeamsMonthly))
	assert.False(t, IsFreePlan(catalog, domain.PlanType("unknown")))
}

func TestSeatAdjustment_Negate(t *testing.T) {
	adj := SeatAdjustment{AdditionalSeats: 2, AdditionalSmSeats: 1}
	assert.Equal(t, SeatAdjustment{AdditionalSeats: -2, AdditionalSmSeats: -1}, adj.Negate())
	assert.True(t, SeatAdjustment{}.IsZero())
}
