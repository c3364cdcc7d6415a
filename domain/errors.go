package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Authentication errors
var (
	ErrAuthenticationMissing = errors.New("authentication required")
	ErrAccountNotFound       = errors.New("account not found")
	ErrAccountPending        = errors.New("account is awaiting approval")
	ErrAccountRejected       = errors.New("account registration was rejected")
	ErrAccountInactive       = errors.New("account is inactive")
	ErrPhoneMismatch         = errors.New("phone number does not match account")
	ErrIdentityUnverified    = errors.New("external identity could not be verified")
)

// Token errors
var (
	ErrTokenInvalid        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token has expired")
	ErrTokenWrongType      = errors.New("token type not accepted here")
	ErrTokenNotRefreshable = errors.New("token cannot be refreshed")
	ErrUnknownRole         = errors.New("unknown role")
)

// OTP errors
var (
	ErrOTPNotFound       = errors.New("otp not found")
	ErrOTPInvalid        = errors.New("invalid or expired otp code")
	ErrOTPDeliveryFailed = errors.New("failed to deliver otp")
	ErrOTPInFlight       = errors.New("an otp request for this phone is already in progress")
	ErrInvalidPhone      = errors.New("invalid phone number")
)

// Authorization errors
var (
	ErrInsufficientRole = errors.New("insufficient role permissions")
	ErrSelfApproval     = errors.New("admins cannot approve or deny themselves")
	ErrSuperAdminOnly   = errors.New("only a super admin may approve or deny admins")
)

// Workflow and request errors
var (
	ErrConflict               = errors.New("conflict")
	ErrAlreadyProcessed       = errors.New("registration has already been processed")
	ErrInvalidStateTransition = errors.New("invalid account state transition")
	ErrValidation             = errors.New("validation failed")
	ErrRateLimited            = errors.New("too many otp requests")
	ErrUpstream               = errors.New("upstream provider failure")
)

// RateLimitError is returned when an OTP send is refused. It carries the
// numbers a client needs to render a countdown.
type RateLimitError struct {
	Message           string
	RemainingAttempts int
	NextResendAt      *time.Time
	CooldownUntil     *time.Time
}

func (e *RateLimitError) Error() string { return e.Message }

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// ValidationError carries per-field messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, f+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewFieldError is a ValidationError for a single field.
func NewFieldError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// ConflictError names the uniqueness anchor that collided.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	if e.Field == "" {
		return ErrConflict.Error()
	}
	return fmt.Sprintf("%s is already registered", e.Field)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }
