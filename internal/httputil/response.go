package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tendant/simple-org-admin/pkg/domain"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Error writes an error message as JSON.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// DecodeJSON decodes the request body into v, rejecting unknown fields.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	var nf *domain.NotFoundError
	var br *domain.BadRequestError
	var ua *domain.UnauthorizedError
	switch {
	case errors.As(err, &nf),
		errors.Is(err, domain.ErrOrganizationNotFound),
		errors.Is(err, domain.ErrOrganizationUserNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound
	case errors.As(err, &br),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrInvalidTwoFactorCode),
		errors.Is(err, domain.ErrTwoFactorNotEnabled),
		errors.Is(err, domain.ErrTwoFactorAlreadyEnabled):
		return http.StatusBadRequest
	case errors.As(err, &ua), errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// WriteError replies with the status of err. Internal errors are logged and
// their message is not exposed.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		Error(w, status, "internal server error")
		return
	}
	Error(w, status, err.Error())
}
