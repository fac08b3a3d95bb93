package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tendant/simple-org-admin/pkg/domain"
)

// PaymentGateway is the subscription API of the payment provider.
type PaymentGateway interface {
	AdjustSeats(ctx context.Context, subscriptionID string, plan *Plan, seats int) error
	AdjustSmSeats(ctx context.Context, subscriptionID string, plan *Plan, seats int) error
	CancelSubscription(ctx context.Context, subscriptionID string, endOfPeriod bool) error
}

// GatewayError wraps a failure reported by the payment gateway.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Service applies seat and subscription changes.
type Service struct {
	catalog       PlanCatalog
	gateway       PaymentGateway
	organizations domain.OrganizationRepository
	memberships   domain.OrganizationUserRepository
	logger        *slog.Logger
}

// NewService creates a new billing service.
func NewService(catalog PlanCatalog, gateway PaymentGateway, organizations domain.OrganizationRepository, memberships domain.OrganizationUserRepository, logger *slog.Logger) *Service {
	return &Service{
		catalog:       catalog,
		gateway:       gateway,
		organizations: organizations,
		memberships:   memberships,
		logger:        logger,
	}
}

// Catalog returns the plan catalog.
func (s *Service) Catalog() PlanCatalog {
	return s.catalog
}

// IsFreePlan reports whether the organization is on the free tier.
func (s *Service) IsFreePlan(org *domain.Organization) bool {
	return IsFreePlan(s.catalog, org.PlanType)
}

// ValidateSeats computes the seat change needed to invite new members.
func (s *Service) ValidateSeats(ctx context.Context, org *domain.Organization, newSeats, newSmSeats int) (SeatAdjustment, error) {
	occupied, err := s.memberships.GetOccupiedSeatCount(ctx, org.ID)
	if err != nil {
		return SeatAdjustment{}, fmt.Errorf("failed to count occupied seats: %w", err)
	}
	return CalculateSeatAdjustment(s.catalog, org, occupied, newSeats, newSmSeats)
}

// ApplySeatAdjustment resizes the subscription and the organization's seat
// counts by adj. A negative adjustment reverts a previous one. On failure
// the gateway calls already made are reverted and org is left unchanged.
func (s *Service) ApplySeatAdjustment(ctx context.Context, org *domain.Organization, adj SeatAdjustment) error {
	if adj.IsZero() {
		return nil
	}
	plan, ok := s.catalog.GetPlan(org.PlanType)
	if !ok {
		return fmt.Errorf("unknown plan %q", org.PlanType)
	}
	if org.GatewaySubscriptionID == nil {
		return domain.ErrBadRequest(MsgNoSubscription)
	}
	subscriptionID := *org.GatewaySubscriptionID
	updated := *org

	var applied []func(context.Context) error
	fail := func(err error) error {
		undoCtx := context.WithoutCancel(ctx)
		for i := len(applied) - 1; i >= 0; i-- {
			if undoErr := applied[i](undoCtx); undoErr != nil {
				s.logger.Error("failed to revert seat change",
					"organization_id", org.ID, "error", undoErr)
			}
		}
		return err
	}

	if adj.AdditionalSeats != 0 && org.Seats != nil {
		previous := *org.Seats
		seats := previous + adj.AdditionalSeats
		if err := s.gateway.AdjustSeats(ctx, subscriptionID, plan, seats); err != nil {
			return fail(&GatewayError{Op: "adjust seats", Err: err})
		}
		applied = append(applied, func(ctx context.Context) error {
			return s.gateway.AdjustSeats(ctx, subscriptionID, plan, previous)
		})
		updated.Seats = &seats
	}
	if adj.AdditionalSmSeats != 0 && org.SmSeats != nil {
		previous := *org.SmSeats
		smSeats := previous + adj.AdditionalSmSeats
		if err := s.gateway.AdjustSmSeats(ctx, subscriptionID, plan, smSeats); err != nil {
			return fail(&GatewayError{Op: "adjust secrets manager seats", Err: err})
		}
		applied = append(applied, func(ctx context.Context) error {
			return s.gateway.AdjustSmSeats(ctx, subscriptionID, plan, previous)
		})
		updated.SmSeats = &smSeats
	}

	if err := s.organizations.Replace(ctx, &updated); err != nil {
		return fail(fmt.Errorf("failed to update organization seats: %w", err))
	}
	*org = updated
	s.logger.Info("adjusted organization seats",
		"organization_id", org.ID,
		"additional_seats", adj.AdditionalSeats,
		"additional_sm_seats", adj.AdditionalSmSeats,
	)
	return nil
}

// CancelPremium cancels a user's personal premium subscription immediately.
func (s *Service) CancelPremium(ctx context.Context, user *domain.User) error {
	if !user.HasPremiumSubscription() {
		return nil
	}
	if err := s.gateway.CancelSubscription(ctx, *user.GatewaySubscriptionID, false); err != nil {
		return &GatewayError{Op: "cancel subscription", Err: err}
	}
	return nil
}
