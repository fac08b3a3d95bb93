package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

// TwoFactorSecretsRepository handles database operations for two-step login
// secrets.
type TwoFactorSecretsRepository struct {
	db *sql.DB
}

// NewTwoFactorSecretsRepository creates a new two-factor secrets repository.
func NewTwoFactorSecretsRepository(db *sql.DB) *TwoFactorSecretsRepository {
	return &TwoFactorSecretsRepository{db: db}
}

// Upsert stores a pending secret, replacing any earlier pending one for the
// same method.
func (r *TwoFactorSecretsRepository) Upsert(ctx context.Context, secret *domain.TwoFactorSecret) error {
	query := `
		INSERT INTO two_factor_secrets (id, user_id, method, secret_encrypted, enabled, created_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, method) DO UPDATE
		SET secret_encrypted = EXCLUDED.secret_encrypted, enabled = EXCLUDED.enabled,
		    created_at = EXCLUDED.created_at, last_used_at = NULL
		WHERE NOT two_factor_secrets.enabled
	`
	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		secret.ID,
		secret.UserID,
		secret.Method,
		secret.SecretEncrypted,
		secret.Enabled,
		secret.CreatedAt,
		secret.LastUsedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store two-factor secret: %w", err)
	}
	return requireRow(result, domain.ErrTwoFactorAlreadyEnabled)
}

// GetByUserIDAndMethod retrieves a secret by user ID and method.
func (r *TwoFactorSecretsRepository) GetByUserIDAndMethod(ctx context.Context, userID uuid.UUID, method domain.TwoFactorMethod) (*domain.TwoFactorSecret, error) {
	query := `
		SELECT id, user_id, method, secret_encrypted, enabled, created_at, last_used_at
		FROM two_factor_secrets
		WHERE user_id = $1 AND method = $2
	`

	secret := &domain.TwoFactorSecret{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, userID, method).Scan(
		&secret.ID,
		&secret.UserID,
		&secret.Method,
		&secret.SecretEncrypted,
		&secret.Enabled,
		&secret.CreatedAt,
		&secret.LastUsedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrTwoFactorNotEnabled
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get two-factor secret: %w", err)
	}
	return secret, nil
}

// Enable marks a secret as verified and in use.
func (r *TwoFactorSecretsRepository) Enable(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE two_factor_secrets
		SET enabled = TRUE, last_used_at = NOW()
		WHERE id = $1
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to enable two-factor secret: %w", err)
	}
	return nil
}

// UpdateLastUsed updates the last used timestamp for a secret.
func (r *TwoFactorSecretsRepository) UpdateLastUsed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE two_factor_secrets
		SET last_used_at = NOW()
		WHERE id = $1
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to update two-factor secret last used: %w", err)
	}
	return nil
}

// DeleteAllByUserID removes all secrets for a user, disabling two-step login.
func (r *TwoFactorSecretsRepository) DeleteAllByUserID(ctx context.Context, userID uuid.UUID) error {
	query := `
		DELETE FROM two_factor_secrets
		WHERE user_id = $1
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to delete two-factor secrets: %w", err)
	}
	return nil
}

// EnabledByUserIDs reports, for each user id, whether an enabled secret
// exists. The result follows the order of userIDs.
func (r *TwoFactorSecretsRepository) EnabledByUserIDs(ctx context.Context, userIDs []uuid.UUID) ([]domain.UserTwoFactorStatus, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := conn(ctx, r.db).QueryContext(ctx, `
		SELECT DISTINCT user_id FROM two_factor_secrets
		WHERE user_id = ANY($1) AND enabled
	`, uuidArray(userIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query two-factor status: %w", err)
	}
	defer rows.Close()

	enabled := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		enabled[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.UserTwoFactorStatus, 0, len(userIDs))
	for _, id := range userIDs {
		out = append(out, domain.UserTwoFactorStatus{UserID: id, TwoFactorEnabled: enabled[id]})
	}
	return out, nil
}
