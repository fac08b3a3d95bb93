package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

// EventsRepository stores the membership audit log.
type EventsRepository struct {
	db *sql.DB
}

// NewEventsRepository creates a new events repository.
func NewEventsRepository(db *sql.DB) *EventsRepository {
	return &EventsRepository{db: db}
}

// CreateMany inserts audit events.
func (r *EventsRepository) CreateMany(ctx context.Context, events []domain.Event) error {
	q := conn(ctx, r.db)
	for _, e := range events {
		_, err := q.ExecContext(ctx, `
			INSERT INTO events (id, type, organization_id, organization_user_id, acting_user_id, system_user, date)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, e.ID, e.Type, e.OrganizationID, e.OrganizationUserID, e.ActingUserID, e.SystemUser, e.Date)
		if err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
	}
	return nil
}

// ListByOrganization returns the newest events of an organization first.
func (r *EventsRepository) ListByOrganization(ctx context.Context, organizationID uuid.UUID, limit int) ([]domain.Event, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, type, organization_id, organization_user_id, acting_user_id, system_user, date
		FROM events
		WHERE organization_id = $1
		ORDER BY date DESC, id
		LIMIT $2
	`, organizationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.Type, &e.OrganizationID, &e.OrganizationUserID, &e.ActingUserID, &e.SystemUser, &e.Date); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
