// Package billing holds the plan catalog and seat accounting consulted by
// membership commands, and the port to the payment gateway.
package billing

import "github.com/tendant/simple-org-admin/pkg/domain"

// SecretsManagerPlan describes the Secrets Manager add-on of a plan.
type SecretsManagerPlan struct {
	BaseSeats          int
	MaxSeats           *int
	HasAdditionalSeats bool
}

// Plan describes the seat rules of a billing plan.
type Plan struct {
	Type               domain.PlanType
	Name               string
	IsFree             bool
	BaseSeats          int
	MaxUsers           *int
	HasAdditionalSeats bool
	SecretsManager     *SecretsManagerPlan
}

// PlanCatalog looks up plans by type.
type PlanCatalog interface {
	GetPlan(planType domain.PlanType) (*Plan, bool)
}

// IsFreePlan reports whether the plan type is the free tier.
func IsFreePlan(catalog PlanCatalog, planType domain.PlanType) bool {
	plan, ok := catalog.GetPlan(planType)
	return ok && plan.IsFree
}

// StaticPlanCatalog is an in-memory catalog.
type StaticPlanCatalog struct {
	plans map[domain.PlanType]*Plan
}

// NewStaticPlanCatalog creates a catalog from the given plans.
func NewStaticPlanCatalog(plans ...*Plan) *StaticPlanCatalog {
	c := &StaticPlanCatalog{plans: make(map[domain.PlanType]*Plan, len(plans))}
	for _, p := range plans {
		c.plans[p.Type] = p
	}
	return c
}

// GetPlan returns the plan for a type.
func (c *StaticPlanCatalog) GetPlan(planType domain.PlanType) (*Plan, bool) {
	p, ok := c.plans[planType]
	return p, ok
}

func intPtr(i int) *int { return &i }

// DefaultPlanCatalog returns the catalog of the plans currently sold.
func DefaultPlanCatalog() *StaticPlanCatalog {
	return NewStaticPlanCatalog(
		&Plan{Type: domain.PlanTypeFree, Name: "Free", IsFree: true, BaseSeats: 2, MaxUsers: intPtr(2),
			SecretsManager: &SecretsManagerPlan{BaseSeats: 2, MaxSeats: intPtr(2)}},
		&Plan{Type: domain.PlanTypeFamilies, Name: "Families", BaseSeats: 6, MaxUsers: intPtr(6)},
		&Plan{Type: domain.PlanTypeTeamsStarter, Name: "Teams Starter", BaseSeats: 10, MaxUsers: intPtr(10),
			SecretsManager: &SecretsManagerPlan{HasAdditionalSeats: true}},
		&Plan{Type: domain.PlanTypeTeamsMonthly, Name: "Teams (Monthly)", HasAdditionalSeats: true,
			SecretsManager: &SecretsManagerPlan{HasAdditionalSeats: true}},
		&Plan{Type: domain.PlanTypeTeamsAnnually, Name: "Teams (Annually)", HasAdditionalSeats: true,
			SecretsManager: &SecretsManagerPlan{HasAdditionalSeats: true}},
		&Plan{Type: domain.PlanTypeEnterpriseMonthly, Name: "Enterprise (Monthly)", HasAdditionalSeats: true,
			SecretsManager: &SecretsManagerPlan{HasAdditionalSeats: true}},
		&Plan{Type: domain.PlanTypeEnterpriseAnnual, Name: "Enterprise (Annually)", HasAdditionalSeats: true,
			SecretsManager: &SecretsManagerPlan{HasAdditionalSeats: true}},
		&Plan{Type: domain.PlanTypeCustom, Name: "Custom", HasAdditionalSeats: true,
			SecretsManager: &SecretsManagerPlan{HasAdditionalSeats: true}},
	)
}
