// Package response writes the JSON envelope shared by every endpoint and
// maps domain errors onto HTTP statuses.
package response

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/you/eventhub/domain"
)

// Error codes returned in the "code" field of a failure envelope.
const (
	CodeAuthMissing     = "AUTH_MISSING"
	CodeAuthInvalid     = "AUTH_INVALID"
	CodeAuthExpired     = "AUTH_EXPIRED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeAccountPending  = "ACCOUNT_PENDING"
	CodeAccountRejected = "ACCOUNT_REJECTED"
	CodeAccountInactive = "ACCOUNT_INACTIVE"
	CodeConflict        = "CONFLICT"
	CodeRateLimited     = "RATE_LIMITED"
	CodeValidation      = "VALIDATION_ERROR"
	CodeOTPInvalid      = "OTP_INVALID"
	CodePhoneMismatch   = "PHONE_MISMATCH"
	CodeUpstream        = "UPSTREAM_FAILURE"
	CodeInternal        = "INTERNAL_ERROR"
)

// OK writes a success envelope.
func OK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// Error writes the failure envelope for err.
func Error(c *gin.Context, err error) {
	status, body := Classify(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).
			Str("path", c.Request.URL.Path).
			Msg("request failed")
	}
	c.JSON(status, body)
}

// Abort writes the failure envelope for err and stops the handler chain.
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

// Classify maps an error onto a status and envelope. Token failures share
// one generic message so callers cannot tell which check failed.
func Classify(err error) (int, gin.H) {
	body := gin.H{"success": false}
	fail := func(status int, code, msg string) (int, gin.H) {
		body["code"] = code
		body["error"] = msg
		return status, body
	}

	var rl *domain.RateLimitError
	var ve *domain.ValidationError
	var ce *domain.ConflictError

	switch {
	case errors.As(err, &rl):
		body["remainingAttempts"] = rl.RemainingAttempts
		if rl.NextResendAt != nil {
			body["nextResendAt"] = rl.NextResendAt.UTC().Format(time.RFC3339)
		}
		if rl.CooldownUntil != nil {
			body["cooldownUntil"] = rl.CooldownUntil.UTC().Format(time.RFC3339)
		}
		return fail(http.StatusTooManyRequests, CodeRateLimited, rl.Message)
	case errors.Is(err, domain.ErrOTPInFlight):
		return fail(http.StatusTooManyRequests, CodeRateLimited, err.Error())
	case errors.As(err, &ve):
		body["fields"] = ve.Fields
		return fail(http.StatusBadRequest, CodeValidation, "Validation failed")
	case errors.As(err, &ce):
		if ce.Field != "" {
			body["field"] = ce.Field
		}
		return fail(http.StatusBadRequest, CodeConflict, ce.Error())

	case errors.Is(err, domain.ErrAuthenticationMissing):
		return fail(http.StatusUnauthorized, CodeAuthMissing, "Authentication required")
	case errors.Is(err, domain.ErrTokenExpired):
		return fail(http.StatusUnauthorized, CodeAuthExpired, "Token has expired")
	case errors.Is(err, domain.ErrTokenInvalid),
		errors.Is(err, domain.ErrTokenWrongType),
		errors.Is(err, domain.ErrTokenNotRefreshable):
		return fail(http.StatusUnauthorized, CodeAuthInvalid, "Invalid token")
	case errors.Is(err, domain.ErrIdentityUnverified):
		return fail(http.StatusUnauthorized, CodeAuthInvalid, "Sign-in could not be verified")
	case errors.Is(err, domain.ErrOTPInvalid):
		return fail(http.StatusUnauthorized, CodeOTPInvalid, "Invalid or expired code")

	case errors.Is(err, domain.ErrInsufficientRole),
		errors.Is(err, domain.ErrSelfApproval),
		errors.Is(err, domain.ErrSuperAdminOnly):
		return fail(http.StatusForbidden, CodeForbidden, err.Error())
	case errors.Is(err, domain.ErrPhoneMismatch):
		return fail(http.StatusForbidden, CodePhoneMismatch, err.Error())
	case errors.Is(err, domain.ErrAccountPending):
		return fail(http.StatusForbidden, CodeAccountPending, "Your registration is awaiting approval")
	case errors.Is(err, domain.ErrAccountRejected):
		return fail(http.StatusForbidden, CodeAccountRejected, "Your registration was not approved")
	case errors.Is(err, domain.ErrAccountInactive):
		return fail(http.StatusForbidden, CodeAccountInactive, "Your account has been deactivated")

	case errors.Is(err, domain.ErrAccountNotFound):
		return fail(http.StatusNotFound, CodeNotFound, "Account not found")

	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrAlreadyProcessed),
		errors.Is(err, domain.ErrInvalidStateTransition):
		return fail(http.StatusBadRequest, CodeConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidPhone):
		body["fields"] = map[string]string{"phone": "is not a valid phone number"}
		return fail(http.StatusBadRequest, CodeValidation, "Validation failed")
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrUnknownRole):
		return fail(http.StatusBadRequest, CodeValidation, err.Error())

	case errors.Is(err, domain.ErrOTPDeliveryFailed):
		return fail(http.StatusInternalServerError, CodeUpstream, "Failed to send verification code")
	case errors.Is(err, domain.ErrUpstream):
		return fail(http.StatusInternalServerError, CodeUpstream, "Upstream provider failure")
	}
	return fail(http.StatusInternalServerError, CodeInternal, "Internal server error")
}
