package events

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tendant/simple-org-admin/pkg/domain"
)

// Store persists audit events.
type Store interface {
	CreateMany(ctx context.Context, events []domain.Event) error
}

// Service writes membership audit events to the store and, when a
// publisher is configured, forwards them to it. The store is the record of
// truth; publish failures are logged only.
type Service struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
}

// NewService creates an event service. publisher may be nil.
func NewService(store Store, publisher Publisher, logger *slog.Logger) *Service {
	return &Service{store: store, publisher: publisher, logger: logger}
}

func (s *Service) LogOrganizationUserEvent(ctx context.Context, e domain.OrganizationUserEvent) error {
	return s.LogOrganizationUserEvents(ctx, []domain.OrganizationUserEvent{e})
}

func (s *Service) LogOrganizationUserEvents(ctx context.Context, in []domain.OrganizationUserEvent) error {
	if len(in) == 0 {
		return nil
	}

	events := make([]domain.Event, 0, len(in))
	for _, e := range in {
		events = append(events, toEvent(e))
	}
	if err := s.store.CreateMany(ctx, events); err != nil {
		return err
	}

	if s.publisher != nil {
		s.publish(ctx, events)
	}
	return nil
}

// publish groups events by organization so each batch shares a partition key.
func (s *Service) publish(ctx context.Context, events []domain.Event) {
	var order []uuid.UUID
	byOrg := make(map[uuid.UUID][]any)
	for _, e := range events {
		if _, ok := byOrg[e.OrganizationID]; !ok {
			order = append(order, e.OrganizationID)
		}
		byOrg[e.OrganizationID] = append(byOrg[e.OrganizationID], e)
	}
	for _, orgID := range order {
		if err := s.publisher.Publish(ctx, orgID.String(), byOrg[orgID]...); err != nil {
			s.logger.Warn("failed to publish organization user events",
				"organization_id", orgID, "count", len(byOrg[orgID]), "error", err)
		}
	}
}

func toEvent(e domain.OrganizationUserEvent) domain.Event {
	return domain.Event{
		ID:                 uuid.New(),
		Type:               e.Type,
		OrganizationID:     e.OrganizationUser.OrganizationID,
		OrganizationUserID: e.OrganizationUser.ID,
		ActingUserID:       e.ActingUserID,
		SystemUser:         e.SystemUser,
		Date:               e.Date,
	}
}

// ReferenceService raises analytics events. Without a publisher they are
// only logged.
type ReferenceService struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewReferenceService creates a reference event service. publisher may be nil.
func NewReferenceService(publisher Publisher, logger *slog.Logger) *ReferenceService {
	return &ReferenceService{publisher: publisher, logger: logger}
}

func (s *ReferenceService) RaiseEvent(ctx context.Context, e domain.ReferenceEvent) error {
	if s.publisher == nil {
		s.logger.Info("reference event", "type", e.Type, "organization_id", e.OrganizationID, "user_id", e.UserID, "users", e.Users)
		return nil
	}
	return s.publisher.Publish(ctx, string(e.Type), e)
}
