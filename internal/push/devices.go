package push

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-org-admin/pkg/domain"
)

// DeviceStore persists device registrations.
type DeviceStore interface {
	Upsert(ctx context.Context, d *domain.Device) error
	GetManyByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Device, error)
	ClearOrganization(ctx context.Context, userID, organizationID uuid.UUID) (int64, error)
}

// DeviceService manages which devices receive organization pushes.
type DeviceService struct {
	devices DeviceStore
	logger  *slog.Logger
	now     func() time.Time
}

// NewDeviceService creates a device registration service.
func NewDeviceService(devices DeviceStore, logger *slog.Logger) *DeviceService {
	return &DeviceService{devices: devices, logger: logger, now: time.Now}
}

// RegisterDevice records a device of a user, optionally subscribed to an
// organization's pushes.
func (s *DeviceService) RegisterDevice(ctx context.Context, userID uuid.UUID, identifier string, pushToken *string, organizationID *uuid.UUID) (*domain.Device, error) {
	d := &domain.Device{
		ID:             uuid.New(),
		UserID:         userID,
		Identifier:     identifier,
		PushToken:      pushToken,
		OrganizationID: organizationID,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.devices.Upsert(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// ListDevices returns a user's registered devices.
func (s *DeviceService) ListDevices(ctx context.Context, userID uuid.UUID) ([]*domain.Device, error) {
	return s.devices.GetManyByUser(ctx, userID)
}

// DeleteUserRegistrationOrganization unsubscribes a user's devices from an
// organization.
func (s *DeviceService) DeleteUserRegistrationOrganization(ctx context.Context, userID, organizationID uuid.UUID) error {
	n, err := s.devices.ClearOrganization(ctx, userID, organizationID)
	if err != nil {
		return err
	}
	s.logger.Debug("cleared device registrations", "user_id", userID, "organization_id", organizationID, "devices", n)
	return nil
}
