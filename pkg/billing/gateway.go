package billing

import (
	"context"
	"log/slog"
)

// LoggingGateway records subscription changes without calling a payment
// provider. Used when no gateway is configured.
type LoggingGateway struct {
	logger *slog.Logger
}

// NewLoggingGateway creates a gateway that only logs.
func NewLoggingGateway(logger *slog.Logger) *LoggingGateway {
	return &LoggingGateway{logger: logger}
}

func (g *LoggingGateway) AdjustSeats(_ context.Context, subscriptionID string, plan *Plan, seats int) error {
	g.logger.Info("adjust seats", "subscription_id", subscriptionID, "plan", plan.Type, "seats", seats)
	return nil
}

func (g *LoggingGateway) AdjustSmSeats(_ context.Context, subscriptionID string, plan *Plan, seats int) error {
	g.logger.Info("adjust secrets manager seats", "subscription_id", subscriptionID, "plan", plan.Type, "seats", seats)
	return nil
}

func (g *LoggingGateway) CancelSubscription(_ context.Context, subscriptionID string, endOfPeriod bool) error {
	g.logger.Info("cancel subscription", "subscription_id", subscriptionID, "end_of_period", endOfPeriod)
	return nil
}
