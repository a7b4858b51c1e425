package domain

import (
	"errors"
	"fmt"
)

// Credential errors
var (
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrDuplicateMobile    = errors.New("mobile already registered")
	ErrInvalidField       = errors.New("invalid field")
	ErrBadPassword        = errors.New("bad password")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
)

// OTP errors
var (
	ErrOTPNotFound         = errors.New("otp not found")
	ErrOTPExpired          = errors.New("otp has expired")
	ErrOTPMismatch         = errors.New("otp does not match")
	ErrOTPAlreadyConsumed  = errors.New("otp already used")
	ErrOTPAttemptsExceeded = errors.New("maximum otp attempts exceeded")
	ErrOTPRateLimited      = errors.New("too many otp requests")
	ErrResetNotAuthorized  = errors.New("password reset requires a verified otp")
)

// Verification errors
var (
	ErrRequestNotFound = errors.New("verification request not found")
	ErrAlreadyDecided  = errors.New("verification request already decided")
)

// Session errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session has expired")
)

// FieldError reports which input field failed validation.
type FieldError struct {
	Field  string
	Reason string
}

// NewFieldError builds a FieldError.
func NewFieldError(field, reason string) *FieldError {
	return &FieldError{Field: field, Reason: reason}
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidField) match any FieldError.
func (e *FieldError) Is(target error) bool {
	return target == ErrInvalidField
}
