package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

const organizationUserColumns = `ou.id, ou.organization_id, ou.user_id, ou.email, ou.key, ou.status, ou.type,
	ou.permissions, ou.access_secrets_manager, ou.external_id, ou.created_at, ou.updated_at`

// OrganizationUsersRepository handles membership persistence.
type OrganizationUsersRepository struct {
	db *sql.DB
}

// NewOrganizationUsersRepository creates a new organization users repository.
func NewOrganizationUsersRepository(db *sql.DB) *OrganizationUsersRepository {
	return &OrganizationUsersRepository{db: db}
}

var _ domain.OrganizationUserRepository = (*OrganizationUsersRepository)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrganizationUser(row rowScanner, extra ...any) (*domain.OrganizationUser, error) {
	ou := &domain.OrganizationUser{}
	var permissions []byte
	dest := append([]any{
		&ou.ID, &ou.OrganizationID, &ou.UserID, &ou.Email, &ou.Key, &ou.Status, &ou.Type,
		&permissions, &ou.AccessSecretsManager, &ou.ExternalID, &ou.CreatedAt, &ou.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if len(permissions) > 0 {
		if err := json.Unmarshal(permissions, &ou.Permissions); err != nil {
			return nil, fmt.Errorf("failed to decode permissions: %w", err)
		}
	}
	return ou, nil
}

func (r *OrganizationUsersRepository) queryMany(ctx context.Context, query string, args ...any) ([]*domain.OrganizationUser, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.OrganizationUser
	for rows.Next() {
		ou, err := scanOrganizationUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ou)
	}
	return out, rows.Err()
}

func (r *OrganizationUsersRepository) queryOne(ctx context.Context, query string, args ...any) (*domain.OrganizationUser, error) {
	ou, err := scanOrganizationUser(conn(ctx, r.db).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrganizationUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return ou, nil
}

// GetByID retrieves a membership by ID.
func (r *OrganizationUsersRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.OrganizationUser, error) {
	return r.queryOne(ctx, `SELECT `+organizationUserColumns+` FROM organization_users ou WHERE ou.id = $1`, id)
}

// GetManyByIDs retrieves memberships by ID. Unknown ids are omitted.
func (r *OrganizationUsersRepository) GetManyByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.OrganizationUser, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.queryMany(ctx, `
		SELECT `+organizationUserColumns+`
		FROM organization_users ou
		WHERE ou.id = ANY($1)
		ORDER BY ou.created_at, ou.id
	`, uuidArray(ids))
}

// GetByOrganizationAndUser retrieves a user's membership in an organization.
func (r *OrganizationUsersRepository) GetByOrganizationAndUser(ctx context.Context, organizationID, userID uuid.UUID) (*domain.OrganizationUser, error) {
	return r.queryOne(ctx, `
		SELECT `+organizationUserColumns+`
		FROM organization_users ou
		WHERE ou.organization_id = $1 AND ou.user_id = $2
	`, organizationID, userID)
}

// GetByOrganizationAndEmail retrieves the membership addressed by email,
// matching either the invite address or the linked user's address.
func (r *OrganizationUsersRepository) GetByOrganizationAndEmail(ctx context.Context, organizationID uuid.UUID, email string) (*domain.OrganizationUser, error) {
	return r.queryOne(ctx, `
		SELECT `+organizationUserColumns+`
		FROM organization_users ou
		LEFT JOIN users u ON u.id = ou.user_id
		WHERE ou.organization_id = $1
		  AND (LOWER(ou.email) = LOWER($2) OR LOWER(u.email) = LOWER($2))
		LIMIT 1
	`, organizationID, email)
}

// GetManyByOrganization lists an organization's memberships, optionally
// restricted to one role.
func (r *OrganizationUsersRepository) GetManyByOrganization(ctx context.Context, organizationID uuid.UUID, role *domain.OrganizationUserType) ([]*domain.OrganizationUser, error) {
	return r.queryMany(ctx, `
		SELECT `+organizationUserColumns+`
		FROM organization_users ou
		WHERE ou.organization_id = $1 AND ($2::smallint IS NULL OR ou.type = $2::smallint)
		ORDER BY ou.created_at, ou.id
	`, organizationID, role)
}

// GetManyByUser lists a user's memberships across organizations.
func (r *OrganizationUsersRepository) GetManyByUser(ctx context.Context, userID uuid.UUID) ([]*domain.OrganizationUser, error) {
	return r.queryMany(ctx, `
		SELECT `+organizationUserColumns+`
		FROM organization_users ou
		WHERE ou.user_id = $1
		ORDER BY ou.created_at, ou.id
	`, userID)
}

const detailsQuery = `
	SELECT ` + organizationUserColumns + `, u.email, u.name,
		EXISTS (SELECT 1 FROM two_factor_secrets t WHERE t.user_id = ou.user_id AND t.enabled)
	FROM organization_users ou
	LEFT JOIN users u ON u.id = ou.user_id
	WHERE ou.organization_id = $1`

func (r *OrganizationUsersRepository) queryDetails(ctx context.Context, query string, args ...any) ([]*domain.OrganizationUserUserDetails, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.OrganizationUserUserDetails
	for rows.Next() {
		d := &domain.OrganizationUserUserDetails{}
		ou, err := scanOrganizationUser(rows, &d.UserEmail, &d.UserName, &d.TwoFactorEnabled)
		if err != nil {
			return nil, err
		}
		d.OrganizationUser = *ou
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetManyDetailsByMinimumRole lists confirmed members holding minRole or a
// more privileged role.
func (r *OrganizationUsersRepository) GetManyDetailsByMinimumRole(ctx context.Context, organizationID uuid.UUID, minRole domain.OrganizationUserType) ([]*domain.OrganizationUserUserDetails, error) {
	var types []int64
	for _, t := range []domain.OrganizationUserType{
		domain.OrganizationUserTypeOwner, domain.OrganizationUserTypeAdmin, domain.OrganizationUserTypeUser,
		domain.OrganizationUserTypeManager, domain.OrganizationUserTypeCustom,
	} {
		if t.AtLeast(minRole) {
			types = append(types, int64(t))
		}
	}
	return r.queryDetails(ctx, detailsQuery+`
		AND ou.status = $2 AND ou.type = ANY($3)
		ORDER BY ou.created_at, ou.id
	`, organizationID, domain.OrganizationUserStatusConfirmed, pq.Array(types))
}

// GetManyDetailsByOrganization lists every membership with user details.
func (r *OrganizationUsersRepository) GetManyDetailsByOrganization(ctx context.Context, organizationID uuid.UUID) ([]*domain.OrganizationUserUserDetails, error) {
	return r.queryDetails(ctx, detailsQuery+` ORDER BY ou.created_at, ou.id`, organizationID)
}

// GetManyByOrganizationWithClaimedDomains lists members whose email domain
// the organization has verified.
func (r *OrganizationUsersRepository) GetManyByOrganizationWithClaimedDomains(ctx context.Context, organizationID uuid.UUID) ([]*domain.OrganizationUser, error) {
	return r.queryMany(ctx, `
		SELECT `+organizationUserColumns+`
		FROM organization_users ou
		LEFT JOIN users u ON u.id = ou.user_id
		WHERE ou.organization_id = $1
		  AND EXISTS (
			SELECT 1 FROM organization_domains d
			WHERE d.organization_id = ou.organization_id
			  AND d.verified_at IS NOT NULL
			  AND LOWER(COALESCE(u.email, ou.email)) LIKE ('%@' || LOWER(d.domain_name))
		  )
		ORDER BY ou.created_at, ou.id
	`, organizationID)
}

// GetCountByOrganization counts memberships addressed by email.
func (r *OrganizationUsersRepository) GetCountByOrganization(ctx context.Context, organizationID uuid.UUID, email string, onlyRegisteredUsers bool) (int, error) {
	var count int
	err := conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM organization_users ou
		LEFT JOIN users u ON u.id = ou.user_id
		WHERE ou.organization_id = $1
		  AND (NOT $3::boolean OR ou.user_id IS NOT NULL)
		  AND (LOWER(ou.email) = LOWER($2) OR LOWER(u.email) = LOWER($2))
	`, organizationID, email, onlyRegisteredUsers).Scan(&count)
	return count, err
}

// GetCountByFreeOrganizationAdminUser counts the confirmed Owner or Admin
// memberships the user holds in free organizations.
func (r *OrganizationUsersRepository) GetCountByFreeOrganizationAdminUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM organization_users ou
		JOIN organizations o ON o.id = ou.organization_id
		WHERE ou.user_id = $1
		  AND ou.status = $2
		  AND ou.type IN ($3, $4)
		  AND o.plan_type = $5
	`, userID, domain.OrganizationUserStatusConfirmed,
		domain.OrganizationUserTypeOwner, domain.OrganizationUserTypeAdmin, domain.PlanTypeFree).Scan(&count)
	return count, err
}

// GetCountByOnlyOwner counts organizations in which the user is the only
// confirmed owner.
func (r *OrganizationUsersRepository) GetCountByOnlyOwner(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM (
			SELECT ou.organization_id
			FROM organization_users ou
			WHERE ou.type = $2 AND ou.status = $3
			GROUP BY ou.organization_id
			HAVING COUNT(*) = 1 AND BOOL_OR(ou.user_id = $1)
		) sole
	`, userID, domain.OrganizationUserTypeOwner, domain.OrganizationUserStatusConfirmed).Scan(&count)
	return count, err
}

// GetOccupiedSeatCount counts the non-revoked memberships of an organization.
func (r *OrganizationUsersRepository) GetOccupiedSeatCount(ctx context.Context, organizationID uuid.UUID) (domain.OccupiedSeats, error) {
	var seats domain.OccupiedSeats
	err := conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE access_secrets_manager)
		FROM organization_users
		WHERE organization_id = $1 AND status <> $2
	`, organizationID, domain.OrganizationUserStatusRevoked).Scan(&seats.Passwords, &seats.SecretsManager)
	return seats, err
}

func permissionsJSON(ou *domain.OrganizationUser) ([]byte, error) {
	if ou.Type != domain.OrganizationUserTypeCustom {
		return nil, nil
	}
	return json.Marshal(ou.Permissions)
}

// CreateMany inserts memberships with their collection and group links.
func (r *OrganizationUsersRepository) CreateMany(ctx context.Context, users []domain.NewOrganizationUser) error {
	q := conn(ctx, r.db)
	for _, nu := range users {
		ou := nu.OrganizationUser
		permissions, err := permissionsJSON(ou)
		if err != nil {
			return err
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO organization_users (id, organization_id, user_id, email, key, status, type,
				permissions, access_secrets_manager, external_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, ou.ID, ou.OrganizationID, ou.UserID, ou.Email, ou.Key, ou.Status, ou.Type,
			permissions, ou.AccessSecretsManager, ou.ExternalID, ou.CreatedAt, ou.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert organization user: %w", err)
		}
		for _, c := range nu.Collections {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO organization_user_collections (organization_user_id, collection_id, read_only, hide_passwords, manage)
				VALUES ($1, $2, $3, $4, $5)
			`, ou.ID, c.CollectionID, c.ReadOnly, c.HidePasswords, c.Manage); err != nil {
				return fmt.Errorf("failed to insert collection access: %w", err)
			}
		}
		for _, g := range nu.Groups {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO organization_user_groups (organization_user_id, group_id) VALUES ($1, $2)
			`, ou.ID, g); err != nil {
				return fmt.Errorf("failed to insert group link: %w", err)
			}
		}
	}
	return nil
}

// Replace overwrites a membership.
func (r *OrganizationUsersRepository) Replace(ctx context.Context, ou *domain.OrganizationUser) error {
	permissions, err := permissionsJSON(ou)
	if err != nil {
		return err
	}
	result, err := conn(ctx, r.db).ExecContext(ctx, `
		UPDATE organization_users
		SET user_id = $2, email = $3, key = $4, status = $5, type = $6, permissions = $7,
		    access_secrets_manager = $8, external_id = $9, updated_at = $10
		WHERE id = $1
	`, ou.ID, ou.UserID, ou.Email, ou.Key, ou.Status, ou.Type, permissions,
		ou.AccessSecretsManager, ou.ExternalID, time.Now())
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrOrganizationUserNotFound)
}

// ReplaceMany overwrites several memberships in one transaction.
func (r *OrganizationUsersRepository) ReplaceMany(ctx context.Context, ous []*domain.OrganizationUser) error {
	return NewTxManager(r.db).RunInTx(ctx, func(ctx context.Context) error {
		for _, ou := range ous {
			if err := r.Replace(ctx, ou); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes a membership.
func (r *OrganizationUsersRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM organization_users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrOrganizationUserNotFound)
}

// DeleteMany removes memberships. Unknown ids are ignored.
func (r *OrganizationUsersRepository) DeleteMany(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM organization_users WHERE id = ANY($1)`, uuidArray(ids))
	return err
}

// Revoke sets a membership to Revoked, keeping its other fields.
func (r *OrganizationUsersRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, `
		UPDATE organization_users SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, domain.OrganizationUserStatusRevoked)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrOrganizationUserNotFound)
}

// RevokeMany revokes several memberships.
func (r *OrganizationUsersRepository) RevokeMany(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := conn(ctx, r.db).ExecContext(ctx, `
		UPDATE organization_users SET status = $2, updated_at = NOW() WHERE id = ANY($1)
	`, uuidArray(ids), domain.OrganizationUserStatusRevoked)
	return err
}

// Restore sets a revoked membership back to status.
func (r *OrganizationUsersRepository) Restore(ctx context.Context, id uuid.UUID, status domain.OrganizationUserStatus) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, `
		UPDATE organization_users SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3
	`, id, status, domain.OrganizationUserStatusRevoked)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrOrganizationUserNotFound)
}

func requireRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
