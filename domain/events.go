package domain

import (
	"context"
	"time"
)

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	// OTP events
	OTPRequestedEvent     AuditEventType = "OTP_REQUESTED"
	OTPRateLimitedEvent   AuditEventType = "OTP_RATE_LIMITED"
	OTPVerifiedEvent      AuditEventType = "OTP_VERIFIED"
	OTPVerifyFailureEvent AuditEventType = "OTP_VERIFICATION_FAILED"

	// Authentication events
	LoginEvent              AuditEventType = "LOGIN"
	LoginFailureEvent       AuditEventType = "LOGIN_FAILED"
	GoogleLinkedEvent       AuditEventType = "GOOGLE_LINKED"
	RegistrationEvent       AuditEventType = "REGISTERED"
	TokenRefreshedEvent     AuditEventType = "TOKEN_REFRESHED"
	TokenRefreshDeniedEvent AuditEventType = "TOKEN_REFRESH_DENIED"

	// Approval events
	AccountApprovedEvent   AuditEventType = "ACCOUNT_APPROVED"
	AccountDeniedEvent     AuditEventType = "ACCOUNT_DENIED"
	AccountActivationEvent AuditEventType = "ACCOUNT_ACTIVATION_CHANGED"
)

// AuditEvent represents a business event that occurred in the system
type AuditEvent struct {
	EventType AuditEventType         `json:"event_type"`
	AccountID uint                   `json:"account_id,omitempty"`
	Role      Role                   `json:"role,omitempty"`
	Phone     string                 `json:"phone,omitempty"`
	Email     string                 `json:"email,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	ErrorMsg  string                 `json:"error_msg,omitempty"`
	Success   bool                   `json:"success"`
}

// AuditLogger records audit events.
type AuditLogger interface {
	LogEvent(ctx context.Context, event *AuditEvent)
}

// NewAuditEvent creates a new audit event with common fields populated
func NewAuditEvent(eventType AuditEventType) *AuditEvent {
	return &AuditEvent{
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Metadata:  make(map[string]interface{}),
		Success:   true,
	}
}

// WithError sets error information on the audit event
func (e *AuditEvent) WithError(err error) *AuditEvent {
	e.Success = false
	if err != nil {
		e.ErrorMsg = err.Error()
	}
	return e
}

// WithAccount sets the account fields
func (e *AuditEvent) WithAccount(a *Account) *AuditEvent {
	if a != nil {
		e.AccountID = a.ID
		e.Role = a.Role
	}
	return e
}

// WithRole sets the role without an account
func (e *AuditEvent) WithRole(r Role) *AuditEvent {
	e.Role = r
	return e
}

// WithPhone sets the phone field
func (e *AuditEvent) WithPhone(phone string) *AuditEvent {
	e.Phone = phone
	return e
}

// WithEmail sets the email field
func (e *AuditEvent) WithEmail(email string) *AuditEvent {
	e.Email = email
	return e
}

// WithMetadata adds metadata to the event
func (e *AuditEvent) WithMetadata(key string, value interface{}) *AuditEvent {
	e.Metadata[key] = value
	return e
}
