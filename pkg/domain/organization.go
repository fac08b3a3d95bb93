package domain

import (
	"time"

	"github.com/google/uuid"
)

// PlanType identifies the billing plan of an organization.
type PlanType string

const (
	PlanTypeFree              PlanType = "free"
	PlanTypeFamilies          PlanType = "families"
	PlanTypeTeamsStarter      PlanType = "teams_starter"
	PlanTypeTeamsMonthly      PlanType = "teams_monthly"
	PlanTypeTeamsAnnually     PlanType = "teams_annually"
	PlanTypeEnterpriseMonthly PlanType = "enterprise_monthly"
	PlanTypeEnterpriseAnnual  PlanType = "enterprise_annually"
	PlanTypeCustom            PlanType = "custom"
)

// Organization represents a customer organization that owns a vault.
type Organization struct {
	ID                     uuid.UUID
	Name                   string
	Identifier             *string // SSO identifier
	BillingEmail           string
	PlanType               PlanType
	Seats                  *int
	MaxAutoscaleSeats      *int
	SmSeats                *int
	MaxAutoscaleSmSeats    *int
	UseSecretsManager      bool
	UsePolicies            bool
	UseSso                 bool
	UseOrganizationDomains bool
	Enabled                bool
	GatewayCustomerID      *string
	GatewaySubscriptionID  *string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Ability returns the capability projection of the organization.
func (o *Organization) Ability() OrganizationAbility {
	return OrganizationAbility{
		ID:                     o.ID,
		Enabled:                o.Enabled,
		UsePolicies:            o.UsePolicies,
		UseSso:                 o.UseSso,
		UseOrganizationDomains: o.UseOrganizationDomains,
	}
}

// OrganizationAbility is the cached subset of organization flags consulted
// on hot paths.
type OrganizationAbility struct {
	ID                     uuid.UUID `json:"id"`
	Enabled                bool      `json:"enabled"`
	UsePolicies            bool      `json:"use_policies"`
	UseSso                 bool      `json:"use_sso"`
	UseOrganizationDomains bool      `json:"use_organization_domains"`
}

// OrganizationDomain is an email domain an organization has claimed.
type OrganizationDomain struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	DomainName     string
	VerifiedAt     *time.Time
	CreatedAt      time.Time
}

// IsVerified returns true once domain ownership has been proven.
func (d *OrganizationDomain) IsVerified() bool {
	return d.VerifiedAt != nil
}
