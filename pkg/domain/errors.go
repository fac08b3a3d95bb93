package domain

import (
	"errors"
	"fmt"
)

// Repository errors
var (
	ErrUserNotFound             = errors.New("user not found")
	ErrOrganizationNotFound     = errors.New("organization not found")
	ErrOrganizationUserNotFound = errors.New("organization user not found")
	ErrPolicyNotFound           = errors.New("policy not found")
	ErrInvalidToken             = errors.New("invalid token")
)

// Two-step login errors
var (
	ErrTwoFactorNotEnabled     = errors.New("two-step login is not enabled for this account")
	ErrTwoFactorAlreadyEnabled = errors.New("two-step login is already enabled")
	ErrInvalidTwoFactorCode    = errors.New("invalid two-step login code")
)

// Validation errors
var (
	ErrInvalidEmail = errors.New("invalid email address")
)

// NotFoundError indicates a referenced resource does not exist or does not
// belong to the stated organization.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// BadRequestError indicates a business-rule rejection.
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string { return e.Message }

// UnauthorizedError indicates the caller lacks the capability to act.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrBadRequest creates a BadRequestError with a formatted message.
func ErrBadRequest(format string, args ...interface{}) *BadRequestError {
	return &BadRequestError{Message: fmt.Sprintf(format, args...)}
}

// ErrUnauthorized creates an UnauthorizedError with a formatted message.
func ErrUnauthorized(format string, args ...interface{}) *UnauthorizedError {
	return &UnauthorizedError{Message: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsBadRequest reports whether err is a BadRequestError.
func IsBadRequest(err error) bool {
	var br *BadRequestError
	return errors.As(err, &br)
}

// SoftFailure marks a best-effort side effect that failed and was skipped.
// The surrounding operation still succeeded.
type SoftFailure struct {
	Operation string
	Err       error
}

func (e *SoftFailure) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Operation, e.Err)
}

func (e *SoftFailure) Unwrap() error { return e.Err }

// IsSoftFailure reports whether err is a SoftFailure.
func IsSoftFailure(err error) bool {
	var sf *SoftFailure
	return errors.As(err, &sf)
}
