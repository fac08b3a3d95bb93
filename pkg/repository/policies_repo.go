package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

// PoliciesRepository reads organization policies.
type PoliciesRepository struct {
	db *sql.DB
}

// NewPoliciesRepository creates a new policies repository.
func NewPoliciesRepository(db *sql.DB) *PoliciesRepository {
	return &PoliciesRepository{db: db}
}

var _ domain.PolicyRepository = (*PoliciesRepository)(nil)

const policyColumns = `id, organization_id, type, enabled, data, created_at, updated_at`

func scanPolicy(row rowScanner) (*domain.Policy, error) {
	p := &domain.Policy{}
	var data []byte
	if err := row.Scan(&p.ID, &p.OrganizationID, &p.Type, &p.Enabled, &data, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Data = data
	return p, nil
}

// Upsert creates or replaces the policy of its type for the organization.
func (r *PoliciesRepository) Upsert(ctx context.Context, p *domain.Policy) error {
	var data any
	if len(p.Data) > 0 {
		data = []byte(p.Data)
	}
	_, err := conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO policies (`+policyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (organization_id, type) DO UPDATE
		SET enabled = EXCLUDED.enabled, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`, p.ID, p.OrganizationID, p.Type, p.Enabled, data, p.CreatedAt, p.UpdatedAt)
	return err
}

// GetByOrganizationAndType retrieves one policy of an organization.
func (r *PoliciesRepository) GetByOrganizationAndType(ctx context.Context, organizationID uuid.UUID, policyType domain.PolicyType) (*domain.Policy, error) {
	p, err := scanPolicy(conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT `+policyColumns+` FROM policies WHERE organization_id = $1 AND type = $2
	`, organizationID, policyType))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPolicyNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetManyByType lists every organization's policy of one type.
func (r *PoliciesRepository) GetManyByType(ctx context.Context, policyType domain.PolicyType) ([]*domain.Policy, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `
		SELECT `+policyColumns+` FROM policies WHERE type = $1 ORDER BY organization_id
	`, policyType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPolicyDetailsByUserID joins policies of one type with every membership
// of the user. Invited memberships are matched by the user's email.
func (r *PoliciesRepository) GetPolicyDetailsByUserID(ctx context.Context, userID uuid.UUID, policyType domain.PolicyType) ([]domain.PolicyDetails, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `
		SELECT ou.id, ou.organization_id, p.type, p.enabled, ou.type, ou.status,
		       EXISTS (
		           SELECT 1 FROM provider_users pu
		           JOIN provider_organizations po ON po.provider_id = pu.provider_id
		           WHERE pu.user_id = $1 AND po.organization_id = ou.organization_id
		       ),
		       o.enabled, o.use_policies
		FROM organization_users ou
		JOIN policies p ON p.organization_id = ou.organization_id AND p.type = $2
		JOIN organizations o ON o.id = ou.organization_id
		WHERE ou.user_id = $1
		   OR (ou.user_id IS NULL AND LOWER(ou.email) = (SELECT LOWER(email) FROM users WHERE id = $1))
		ORDER BY ou.created_at, ou.id
	`, userID, policyType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PolicyDetails
	for rows.Next() {
		var d domain.PolicyDetails
		if err := rows.Scan(
			&d.OrganizationUserID, &d.OrganizationID, &d.PolicyType, &d.PolicyEnabled,
			&d.OrganizationUserType, &d.OrganizationUserStatus, &d.IsProvider,
			&d.OrganizationEnabled, &d.OrganizationUsePolicies,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
