package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidTarget      = fmt.Errorf("update is missing its target identity")
	ErrNotFound           = fmt.Errorf("aggregate not found")
	ErrDecode             = fmt.Errorf("malformed envelope")
	ErrTransport          = fmt.Errorf("log transport failure")
	ErrApplierCrashed     = fmt.Errorf("applier crashed")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrInvalidPayload     = fmt.Errorf("invalid payload")
	ErrValidation         = fmt.Errorf("validation failed")
	ErrUnauthorized       = fmt.Errorf("unauthorized")
	ErrForbidden          = fmt.Errorf("forbidden")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrEmptyWords         = fmt.Errorf("no words have been found")
	ErrUnknownBackend     = fmt.Errorf("unknown log backend")
)

// MapToHTTPStatus translates the error taxonomy into the status code the API layer answers with.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidTarget),
		errors.Is(err, ErrInvalidPassword), errors.Is(err, ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrTransport):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Is mirrors the standard library so callers only import this package.
func Is(err, target error) bool { return errors.Is(err, target) }

// As mirrors the standard library so callers only import this package.
func As(err error, target any) bool { return errors.As(err, target) }
