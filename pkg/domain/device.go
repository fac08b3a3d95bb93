package domain

import (
	"time"

	"github.com/google/uuid"
)

// Device is a client installation registered for push notifications.
type Device struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Identifier     string
	PushToken      *string
	OrganizationID *uuid.UUID // set when registered for organization pushes
	CreatedAt      time.Time
}
