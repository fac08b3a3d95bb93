package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

// TwoFactorEnabled is derived from an enabled secret rather than stored.
const userColumns = `u.id, u.email, u.name, u.email_verified, u.premium, u.gateway_customer_id,
	u.gateway_subscription_id,
	EXISTS (SELECT 1 FROM two_factor_secrets t WHERE t.user_id = u.id AND t.enabled),
	u.created_at, u.updated_at`

// UsersRepository handles user persistence.
type UsersRepository struct {
	db *sql.DB
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

var _ domain.UserRepository = (*UsersRepository)(nil)

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.EmailVerified, &user.Premium,
		&user.GatewayCustomerID, &user.GatewaySubscriptionID, &user.TwoFactorEnabled,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Create creates a new user.
func (r *UsersRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, name, email_verified, premium, gateway_customer_id,
			gateway_subscription_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.EmailVerified, user.Premium,
		user.GatewayCustomerID, user.GatewaySubscriptionID, user.CreatedAt, user.UpdatedAt,
	)
	return err
}

// GetByID retrieves a user by ID.
func (r *UsersRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`
	user, err := scanUser(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetByEmail retrieves a user by email, ignoring case.
func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE LOWER(u.email) = LOWER($1)`
	user, err := scanUser(conn(ctx, r.db).QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetManyByIDs retrieves users by ID. Unknown ids are omitted.
func (r *UsersRepository) GetManyByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id = ANY($1) ORDER BY u.id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, uuidArray(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// Replace updates a user.
func (r *UsersRepository) Replace(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET email = $2, name = $3, email_verified = $4, premium = $5,
		    gateway_customer_id = $6, gateway_subscription_id = $7, updated_at = $8
		WHERE id = $1
	`
	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.EmailVerified, user.Premium,
		user.GatewayCustomerID, user.GatewaySubscriptionID, time.Now(),
	)
	if err != nil {
		return err
	}
	return requireRow(result, domain.ErrUserNotFound)
}

// DeleteMany permanently deletes users. Memberships, devices and two-factor
// secrets cascade through foreign keys.
func (r *UsersRepository) DeleteMany(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM users WHERE id = ANY($1)`, uuidArray(ids))
	return err
}
