package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

// ProviderUsersRepository reads provider memberships.
type ProviderUsersRepository struct {
	db *sql.DB
}

// NewProviderUsersRepository creates a new provider users repository.
func NewProviderUsersRepository(db *sql.DB) *ProviderUsersRepository {
	return &ProviderUsersRepository{db: db}
}

var _ domain.ProviderUserRepository = (*ProviderUsersRepository)(nil)

// GetCountByOnlyOwner counts providers in which the user is the only
// confirmed provider admin.
func (r *ProviderUsersRepository) GetCountByOnlyOwner(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM (
			SELECT pu.provider_id
			FROM provider_users pu
			WHERE pu.type = $2 AND pu.status = $3
			GROUP BY pu.provider_id
			HAVING COUNT(*) = 1 AND BOOL_OR(pu.user_id = $1)
		) sole
	`, userID, domain.ProviderUserTypeProviderAdmin, domain.ProviderUserStatusConfirmed).Scan(&count)
	return count, err
}

// GetManyByOrganization lists the provider users managing an organization,
// optionally restricted to one status.
func (r *ProviderUsersRepository) GetManyByOrganization(ctx context.Context, organizationID uuid.UUID, status *domain.ProviderUserStatus) ([]*domain.ProviderUser, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `
		SELECT pu.id, pu.provider_id, pu.user_id, pu.email, pu.type, pu.status, pu.created_at
		FROM provider_users pu
		JOIN provider_organizations po ON po.provider_id = pu.provider_id
		WHERE po.organization_id = $1 AND ($2::smallint IS NULL OR pu.status = $2::smallint)
		ORDER BY pu.created_at, pu.id
	`, organizationID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ProviderUser
	for rows.Next() {
		pu := &domain.ProviderUser{}
		if err := rows.Scan(&pu.ID, &pu.ProviderID, &pu.UserID, &pu.Email, &pu.Type, &pu.Status, &pu.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, pu)
	}
	return out, rows.Err()
}
