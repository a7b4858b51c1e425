package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/carelink/healthcare-identity/internal/domain"
)

// Error codes surfaced in the response envelope.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeExpired      = "EXPIRED"
	CodeInvalidInput = "INVALID_INPUT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeRateLimited  = "RATE_LIMITED"
	CodeInternal     = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidInput, message, http.StatusBadRequest, details)
}

// NewNotFound reports a missing resource, such as an unknown route.
func NewNotFound(resource string, details map[string]any) *DomainError {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

type sentinelMapping struct {
	target error
	code   string
	status int
}

// Order matters: wrapped login failures match ErrInvalidCredentials before ErrIdentityNotFound.
var sentinels = []sentinelMapping{
	{domain.ErrInvalidCredentials, CodeUnauthorized, http.StatusUnauthorized},
	{domain.ErrBadPassword, CodeUnauthorized, http.StatusUnauthorized},
	{domain.ErrSessionNotFound, CodeUnauthorized, http.StatusUnauthorized},
	{domain.ErrSessionExpired, CodeUnauthorized, http.StatusUnauthorized},
	{domain.ErrResetNotAuthorized, CodeUnauthorized, http.StatusUnauthorized},
	{domain.ErrForbidden, CodeForbidden, http.StatusForbidden},
	{domain.ErrIdentityNotFound, CodeNotFound, http.StatusNotFound},
	{domain.ErrOTPNotFound, CodeNotFound, http.StatusNotFound},
	{domain.ErrRequestNotFound, CodeNotFound, http.StatusNotFound},
	{domain.ErrDuplicateEmail, CodeConflict, http.StatusConflict},
	{domain.ErrDuplicateMobile, CodeConflict, http.StatusConflict},
	{domain.ErrAlreadyDecided, CodeConflict, http.StatusConflict},
	{domain.ErrOTPAlreadyConsumed, CodeConflict, http.StatusConflict},
	{domain.ErrOTPExpired, CodeExpired, http.StatusGone},
	{domain.ErrOTPMismatch, CodeInvalidInput, http.StatusBadRequest},
	{domain.ErrOTPAttemptsExceeded, CodeRateLimited, http.StatusTooManyRequests},
	{domain.ErrOTPRateLimited, CodeRateLimited, http.StatusTooManyRequests},
	{domain.ErrInvalidField, CodeInvalidInput, http.StatusBadRequest},
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	for _, m := range sentinels {
		if errors.Is(err, m.target) {
			de := &DomainError{Code: m.code, Message: m.target.Error(), HTTPStatus: m.status, Err: err}
			var fieldErr *domain.FieldError
			if errors.As(err, &fieldErr) {
				de.Message = fieldErr.Error()
				de.Details = map[string]any{"field": fieldErr.Field}
			}
			return de
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// EnvelopeStatus is the transport status used when rendering a failure.
// Only authentication, authorization and internal failures leave HTTP 200;
// everything else is reported through the envelope's success flag.
func EnvelopeStatus(e *DomainError) int {
	switch e.Code {
	case CodeUnauthorized, CodeForbidden, CodeInternal:
		return e.HTTPStatus
	}
	if e.HTTPStatus >= http.StatusInternalServerError {
		return e.HTTPStatus
	}
	return http.StatusOK
}
