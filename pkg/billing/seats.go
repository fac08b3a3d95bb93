package billing

import (
	"github.com/tendant/simple-org-admin/pkg/domain"
)

// Seat limit messages.
const (
	MsgSeatLimitReached          = "Seat limit has been reached."
	MsgPlanMaxUsers              = "You have reached the maximum number of users (%d) for this plan."
	MsgNoSubscription            = "No subscription found."
	MsgNoSecretsManager          = "Organization has no access to Secrets Manager."
	MsgSmSeatLimitReached        = "Secrets Manager seat limit has been reached."
	MsgPlanMaxSmSeats            = "You have reached the maximum number of Secrets Manager seats (%d) for this plan."
	MsgSmSeatsExceedPasswordSeat = "Your organization's Secrets Manager seats cannot exceed the number of password manager seats."
)

// SeatAdjustment is the number of seats to add to the subscription to fit
// new members.
type SeatAdjustment struct {
	AdditionalSeats   int
	AdditionalSmSeats int
}

// IsZero returns true when no seat change is needed.
func (a SeatAdjustment) IsZero() bool {
	return a.AdditionalSeats == 0 && a.AdditionalSmSeats == 0
}

// Negate returns the adjustment that undoes a.
func (a SeatAdjustment) Negate() SeatAdjustment {
	return SeatAdjustment{AdditionalSeats: -a.AdditionalSeats, AdditionalSmSeats: -a.AdditionalSmSeats}
}

// CalculateSeatAdjustment checks whether newSeats password-manager members
// and newSmSeats Secrets Manager members fit the organization, autoscaling
// up to its limits. Returns a BadRequestError when they do not fit.
func CalculateSeatAdjustment(catalog PlanCatalog, org *domain.Organization, occupied domain.OccupiedSeats, newSeats, newSmSeats int) (SeatAdjustment, error) {
	plan, ok := catalog.GetPlan(org.PlanType)
	if !ok {
		return SeatAdjustment{}, domain.ErrBadRequest("Unknown plan %q.", org.PlanType)
	}

	var adj SeatAdjustment

	if org.Seats != nil && newSeats > 0 {
		total := occupied.Passwords + newSeats
		if total > *org.Seats {
			if plan.IsFree || !plan.HasAdditionalSeats {
				return SeatAdjustment{}, domain.ErrBadRequest(MsgPlanMaxUsers, *org.Seats)
			}
			if org.MaxAutoscaleSeats != nil && total > *org.MaxAutoscaleSeats {
				return SeatAdjustment{}, domain.ErrBadRequest(MsgSeatLimitReached)
			}
			if org.GatewaySubscriptionID == nil || *org.GatewaySubscriptionID == "" {
				return SeatAdjustment{}, domain.ErrBadRequest(MsgNoSubscription)
			}
			adj.AdditionalSeats = total - *org.Seats
		}
	}

	if newSmSeats > 0 {
		if !org.UseSecretsManager || plan.SecretsManager == nil {
			return SeatAdjustment{}, domain.ErrBadRequest(MsgNoSecretsManager)
		}
		if org.SmSeats != nil {
			total := occupied.SecretsManager + newSmSeats
			if total > *org.SmSeats {
				if !plan.SecretsManager.HasAdditionalSeats {
					return SeatAdjustment{}, domain.ErrBadRequest(MsgPlanMaxSmSeats, *org.SmSeats)
				}
				if org.MaxAutoscaleSmSeats != nil && total > *org.MaxAutoscaleSmSeats {
					return SeatAdjustment{}, domain.ErrBadRequest(MsgSmSeatLimitReached)
				}
				adj.AdditionalSmSeats = total - *org.SmSeats
			}
			if org.Seats != nil && *org.SmSeats+adj.AdditionalSmSeats > *org.Seats+adj.AdditionalSeats {
				return SeatAdjustment{}, domain.ErrBadRequest(MsgSmSeatsExceedPasswordSeat)
			}
		}
	}

	return adj, nil
}
