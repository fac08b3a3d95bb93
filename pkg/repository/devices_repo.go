package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

// DevicesRepository handles push device registrations.
type DevicesRepository struct {
	db *sql.DB
}

// NewDevicesRepository creates a new devices repository.
func NewDevicesRepository(db *sql.DB) *DevicesRepository {
	return &DevicesRepository{db: db}
}

// Upsert registers a device, replacing its push token and organization.
func (r *DevicesRepository) Upsert(ctx context.Context, d *domain.Device) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO devices (id, user_id, identifier, push_token, organization_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, identifier) DO UPDATE
		SET push_token = EXCLUDED.push_token, organization_id = EXCLUDED.organization_id
	`, d.ID, d.UserID, d.Identifier, d.PushToken, d.OrganizationID, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

// GetManyByUser lists a user's registered devices.
func (r *DevicesRepository) GetManyByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Device, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, user_id, identifier, push_token, organization_id, created_at
		FROM devices
		WHERE user_id = $1
		ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Device
	for rows.Next() {
		d := &domain.Device{}
		if err := rows.Scan(&d.ID, &d.UserID, &d.Identifier, &d.PushToken, &d.OrganizationID, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ClearOrganization detaches a user's devices from an organization's push
// channel.
func (r *DevicesRepository) ClearOrganization(ctx context.Context, userID, organizationID uuid.UUID) (int64, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx, `
		UPDATE devices SET organization_id = NULL
		WHERE user_id = $1 AND organization_id = $2
	`, userID, organizationID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear device organization: %w", err)
	}
	return result.RowsAffected()
}
