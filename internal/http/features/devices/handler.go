package devices

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-org-admin/internal/http/middleware"
	"github.com/tendant/simple-org-admin/internal/httputil"
	"github.com/tendant/simple-org-admin/pkg/auth"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

const (
	maxIdentifierLength = 255
	maxPushTokenLength  = 4096
)

// Registrar records the signed in user's devices.
type Registrar interface {
	RegisterDevice(ctx context.Context, userID uuid.UUID, identifier string, pushToken *string, organizationID *uuid.UUID) (*domain.Device, error)
	ListDevices(ctx context.Context, userID uuid.UUID) ([]*domain.Device, error)
}

// Handler handles device registration requests.
type Handler struct {
	logger  *slog.Logger
	devices Registrar
}

// NewHandler creates a new devices handler.
func NewHandler(logger *slog.Logger, devices Registrar) *Handler {
	return &Handler{logger: logger, devices: devices}
}

// RegisterRequest is the body of POST /v1/devices.
type RegisterRequest struct {
	Identifier     string     `json:"identifier"`
	PushToken      *string    `json:"push_token,omitempty"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
}

// DeviceResponse describes a registered device.
type DeviceResponse struct {
	ID             uuid.UUID  `json:"id"`
	Identifier     string     `json:"identifier"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	HasPushToken   bool       `json:"has_push_token"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toResponse(d *domain.Device) DeviceResponse {
	return DeviceResponse{
		ID:             d.ID,
		Identifier:     d.Identifier,
		OrganizationID: d.OrganizationID,
		HasPushToken:   d.PushToken != nil && *d.PushToken != "",
		CreatedAt:      d.CreatedAt,
	}
}

// Register handles POST /v1/devices
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req RegisterRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	identifier := auth.SanitizeInput(strings.TrimSpace(req.Identifier))
	if err := auth.ValidateStringLength("identifier", identifier, 1, maxIdentifierLength); err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.PushToken != nil {
		if err := auth.ValidateStringLength("push_token", *req.PushToken, 0, maxPushTokenLength); err != nil {
			httputil.Error(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	d, err := h.devices.RegisterDevice(r.Context(), userID, identifier, req.PushToken, req.OrganizationID)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, toResponse(d))
}

// List handles GET /v1/devices
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	devices, err := h.devices.ListDevices(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	data := make([]DeviceResponse, 0, len(devices))
	for _, d := range devices {
		data = append(data, toResponse(d))
	}
	httputil.JSON(w, http.StatusOK, map[string]any{"data": data})
}
