package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

const organizationColumns = `id, name, identifier, billing_email, plan_type, seats, max_autoscale_seats,
	sm_seats, max_autoscale_sm_seats, use_secrets_manager, use_policies, use_sso, use_organization_domains,
	enabled, gateway_customer_id, gateway_subscription_id, created_at, updated_at`

// OrganizationsRepository handles organization data persistence.
type OrganizationsRepository struct {
	db *sql.DB
}

// NewOrganizationsRepository creates a new organizations repository.
func NewOrganizationsRepository(db *sql.DB) *OrganizationsRepository {
	return &OrganizationsRepository{db: db}
}

var _ domain.OrganizationRepository = (*OrganizationsRepository)(nil)

func (r *OrganizationsRepository) getOne(ctx context.Context, where string, arg any) (*domain.Organization, error) {
	var org domain.Organization
	err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE `+where, arg).Scan(
		&org.ID,
		&org.Name,
		&org.Identifier,
		&org.BillingEmail,
		&org.PlanType,
		&org.Seats,
		&org.MaxAutoscaleSeats,
		&org.SmSeats,
		&org.MaxAutoscaleSmSeats,
		&org.UseSecretsManager,
		&org.UsePolicies,
		&org.UseSso,
		&org.UseOrganizationDomains,
		&org.Enabled,
		&org.GatewayCustomerID,
		&org.GatewaySubscriptionID,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrganizationNotFound
		}
		return nil, err
	}
	return &org, nil
}

// Create creates a new organization.
func (r *OrganizationsRepository) Create(ctx context.Context, org *domain.Organization) error {
	query := `
		INSERT INTO organizations (` + organizationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		org.ID,
		org.Name,
		org.Identifier,
		org.BillingEmail,
		org.PlanType,
		org.Seats,
		org.MaxAutoscaleSeats,
		org.SmSeats,
		org.MaxAutoscaleSmSeats,
		org.UseSecretsManager,
		org.UsePolicies,
		org.UseSso,
		org.UseOrganizationDomains,
		org.Enabled,
		org.GatewayCustomerID,
		org.GatewaySubscriptionID,
		org.CreatedAt,
		org.UpdatedAt,
	)
	return err
}

// GetByID retrieves an organization by ID.
func (r *OrganizationsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	return r.getOne(ctx, `id = $1`, id)
}

// GetByIdentifier retrieves an organization by its SSO identifier,
// ignoring case.
func (r *OrganizationsRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.Organization, error) {
	return r.getOne(ctx, `LOWER(identifier) = LOWER($1)`, identifier)
}

// GetAbility retrieves the capability flags of an organization.
func (r *OrganizationsRepository) GetAbility(ctx context.Context, id uuid.UUID) (*domain.OrganizationAbility, error) {
	var a domain.OrganizationAbility
	err := conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, enabled, use_policies, use_sso, use_organization_domains
		FROM organizations
		WHERE id = $1
	`, id).Scan(&a.ID, &a.Enabled, &a.UsePolicies, &a.UseSso, &a.UseOrganizationDomains)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrganizationNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Replace updates an organization.
func (r *OrganizationsRepository) Replace(ctx context.Context, org *domain.Organization) error {
	query := `
		UPDATE organizations
		SET name = $2, identifier = $3, billing_email = $4, plan_type = $5, seats = $6,
		    max_autoscale_seats = $7, sm_seats = $8, max_autoscale_sm_seats = $9,
		    use_secrets_manager = $10, use_policies = $11, use_sso = $12,
		    use_organization_domains = $13, enabled = $14, gateway_customer_id = $15,
		    gateway_subscription_id = $16, updated_at = $17
		WHERE id = $1
	`
	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		org.ID,
		org.Name,
		org.Identifier,
		org.BillingEmail,
		org.PlanType,
		org.Seats,
		org.MaxAutoscaleSeats,
		org.SmSeats,
		org.MaxAutoscaleSmSeats,
		org.UseSecretsManager,
		org.UsePolicies,
		org.UseSso,
		org.UseOrganizationDomains,
		org.Enabled,
		org.GatewayCustomerID,
		org.GatewaySubscriptionID,
		time.Now(),
	)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrOrganizationNotFound)
}

// CreateDomain records a claimed email domain.
func (r *OrganizationsRepository) CreateDomain(ctx context.Context, d *domain.OrganizationDomain) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO organization_domains (id, organization_id, domain_name, verified_at, created_at)
		VALUES ($1, $2, LOWER($3), $4, $5)
	`, d.ID, d.OrganizationID, d.DomainName, d.VerifiedAt, d.CreatedAt)
	return err
}
