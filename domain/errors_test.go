package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestSentinelErrorsAreDistinct(t *testing.T) {
	all := map[string]error{
		"ErrAuthenticationMissing":  ErrAuthenticationMissing,
		"ErrAccountNotFound":        ErrAccountNotFound,
		"ErrAccountPending":         ErrAccountPending,
		"ErrAccountRejected":        ErrAccountRejected,
		"ErrAccountInactive":        ErrAccountInactive,
		"ErrPhoneMismatch":          ErrPhoneMismatch,
		"ErrIdentityUnverified":     ErrIdentityUnverified,
		"ErrTokenInvalid":           ErrTokenInvalid,
		"ErrTokenExpired":           ErrTokenExpired,
		"ErrTokenWrongType":         ErrTokenWrongType,
		"ErrTokenNotRefreshable":    ErrTokenNotRefreshable,
		"ErrUnknownRole":            ErrUnknownRole,
		"ErrOTPNotFound":            ErrOTPNotFound,
		"ErrOTPInvalid":             ErrOTPInvalid,
		"ErrOTPDeliveryFailed":      ErrOTPDeliveryFailed,
		"ErrOTPInFlight":            ErrOTPInFlight,
		"ErrInvalidPhone":           ErrInvalidPhone,
		"ErrInsufficientRole":       ErrInsufficientRole,
		"ErrSelfApproval":           ErrSelfApproval,
		"ErrSuperAdminOnly":         ErrSuperAdminOnly,
		"ErrConflict":               ErrConflict,
		"ErrAlreadyProcessed":       ErrAlreadyProcessed,
		"ErrInvalidStateTransition": ErrInvalidStateTransition,
		"ErrValidation":             ErrValidation,
		"ErrRateLimited":            ErrRateLimited,
		"ErrUpstream":               ErrUpstream,
	}

	for name, err := range all {
		if err.Error() == "" {
			t.Errorf("%s has an empty message", name)
		}
		for otherName, other := range all {
			if name != otherName && errors.Is(err, other) {
				t.Errorf("%s should not match %s", name, otherName)
			}
		}
	}
}

func TestTypedErrorsUnwrap(t *testing.T) {
	until := time.Date(2025, 1, 15, 13, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		err    error
		target error
		msg    string
	}{
		{
			name:   "rate limit",
			err:    &RateLimitError{Message: "Too many attempts. Please try again in 60 minutes", CooldownUntil: &until},
			target: ErrRateLimited,
			msg:    "Too many attempts. Please try again in 60 minutes",
		},
		{
			name:   "field validation",
			err:    NewFieldError("kind", "must be user, staff or admin"),
			target: ErrValidation,
			msg:    "validation failed: kind: must be user, staff or admin",
		},
		{
			name:   "named conflict",
			err:    &ConflictError{Field: "email"},
			target: ErrConflict,
			msg:    "email is already registered",
		},
		{
			name:   "anonymous conflict",
			err:    &ConflictError{},
			target: ErrConflict,
			msg:    "conflict",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("handler: %w", tt.err)
			if !errors.Is(wrapped, tt.target) {
				t.Errorf("expected %v to match %v", wrapped, tt.target)
			}
			if tt.err.Error() != tt.msg {
				t.Errorf("expected message %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}

	var rl *RateLimitError
	if !errors.As(fmt.Errorf("send: %w", tests[0].err), &rl) || !rl.CooldownUntil.Equal(until) {
		t.Error("RateLimitError details should survive wrapping")
	}
}

func TestValidationError_ListsEveryField(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{
		"displayName": "is required",
		"phone":       "is required",
	}}
	msg := err.Error()
	for _, want := range []string{"displayName: is required", "phone: is required"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
}
