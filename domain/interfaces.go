package domain

import (
	"context"
	"time"
)

// AccountLookup is an OR of equality predicates used by login lookup.
type AccountLookup struct {
	Phones    []string
	Email     string
	ShortCode string
}

// AccountAnchors are the fields that must be unique per role.
type AccountAnchors struct {
	SocialHandle string
	Email        string
	Phone        string
	GoogleID     string
}

// AccountRepository defines account data access operations
type AccountRepository interface {
	Create(ctx context.Context, account *Account) error
	FindByID(ctx context.Context, role Role, id uint) (*Account, error)
	FindByEmail(ctx context.Context, role Role, email string) (*Account, error)
	FindByGoogleID(ctx context.Context, role Role, googleID string) (*Account, error)
	FindByPhone(ctx context.Context, role Role, phone string) (*Account, error)
	FindByAny(ctx context.Context, role Role, lookup AccountLookup) ([]*Account, error)
	// FindAnchorConflict returns the name of the first anchor already taken.
	FindAnchorConflict(ctx context.Context, role Role, anchors AccountAnchors) (string, error)
	ShortCodeExists(ctx context.Context, code string) (bool, error)
	LinkGoogleID(ctx context.Context, role Role, id uint, googleID string) error
	// ResolvePending applies decision only if the account is still pending.
	ResolvePending(ctx context.Context, role Role, id uint, decision ApprovalDecision) error
	SetActive(ctx context.Context, role Role, id uint, active bool) error
	ListPending(ctx context.Context, role Role) ([]*Account, error)
	ListReferred(ctx context.Context, referralCode string) ([]*Account, error)
}

// OTPRepository persists one OTPRecord per (phone, purpose). Every
// mutation is a single conditional statement.
type OTPRepository interface {
	Find(ctx context.Context, phone string, purpose OTPPurpose) (*OTPRecord, error)
	SaveCode(ctx context.Context, phone string, purpose OTPPurpose, code string, expiresAt time.Time) error
	Consume(ctx context.Context, phone string, purpose OTPPurpose, code string, now time.Time) (bool, error)
	ConsumeActive(ctx context.Context, phone string, purpose OTPPurpose, now time.Time) (int64, error)
	Invalidate(ctx context.Context, phone string, purpose OTPPurpose, code string, now time.Time) error
	// RecordFailedVerify counts a wrong code and retires the live code once
	// maxFailures is reached. It reports whether the code was retired.
	RecordFailedVerify(ctx context.Context, phone string, purpose OTPPurpose, maxFailures int, now time.Time) (bool, error)
	RecordAttempt(ctx context.Context, phone string, purpose OTPPurpose, now time.Time) (bool, error)
	StartCooldown(ctx context.Context, phone string, purpose OTPPurpose, until time.Time) (bool, error)
	ClearExpiredCooldown(ctx context.Context, phone string, purpose OTPPurpose, now time.Time) (bool, error)
	ResetAttempts(ctx context.Context, phone string, purpose OTPPurpose) error
	// DeleteStale removes spent lineages. A lineage with a send newer than
	// attemptWindow, or an unexpired cooldown, is still counting and stays.
	DeleteStale(ctx context.Context, now time.Time, attemptWindow time.Duration) (int64, error)
}

// ExpenseRepository defines expense data access operations
type ExpenseRepository interface {
	Create(ctx context.Context, expense *Expense) error
	ListByOwner(ctx context.Context, role Role, ownerID uint) ([]*Expense, error)
	SumByOwners(ctx context.Context, role Role, ownerIDs []uint) (int64, error)
}

// SendLocker serializes concurrent sends for one (phone, purpose).
// Acquire hands back an owner token; Release only drops the lock while
// that token still holds it.
type SendLocker interface {
	Acquire(ctx context.Context, phone string, purpose OTPPurpose) (token string, ok bool, err error)
	Release(ctx context.Context, phone string, purpose OTPPurpose, token string) error
}

// SMSProvider is the SMS / verification collaborator.
type SMSProvider interface {
	// SendOTP delivers code, or asks the provider to generate one when code is empty.
	SendOTP(ctx context.Context, phone, code string) error
	VerifyOTPExternally(ctx context.Context, phone, code string) (bool, error)
	ValidatePhoneNumber(ctx context.Context, phone string) bool
}

// IdentityProvider verifies a completed external sign-in.
type IdentityProvider interface {
	Verify(ctx context.Context, credential string) (*ExternalIdentity, error)
}

// RateLimiter gates OTP sends per (phone, purpose).
type RateLimiter interface {
	Check(ctx context.Context, phone string, purpose OTPPurpose) (*RateLimitStatus, error)
	RecordAttempt(ctx context.Context, phone string, purpose OTPPurpose) error
	Reset(ctx context.Context, phone string, purpose OTPPurpose) error
}

// OTPService issues and verifies one-time codes.
type OTPService interface {
	Send(ctx context.Context, phone string, purpose OTPPurpose) (*OTPDispatch, error)
	Verify(ctx context.Context, phone, code string, purpose OTPPurpose) (bool, error)
	Cleanup(ctx context.Context) (int64, error)
}

// TokenService defines token operations
type TokenService interface {
	Sign(claims *TokenClaims, ttl time.Duration) (string, time.Time, error)
	Verify(token string) (*TokenClaims, error)
	SignTempToken(claims *TokenClaims) (string, time.Time, error)
	SignFullToken(claims *TokenClaims) (string, time.Time, error)
	VerifyTempToken(token string) (*TokenClaims, error)
	VerifyFullToken(token string) (*TokenClaims, error)
	// DecodeExpired checks the signature but ignores expiry.
	DecodeExpired(token string) (*TokenClaims, error)
}

// IdentityResolver finds the account behind a login attempt.
type IdentityResolver interface {
	FindAccountForLogin(ctx context.Context, identifier string, role Role) (*Account, error)
	FindAccountForGoogle(ctx context.Context, identity *ExternalIdentity, role Role) (*Account, error)
}

// AuthService defines authentication business logic
type AuthService interface {
	RequestPhoneOTP(ctx context.Context, phone string, role Role) (*OTPDispatch, error)
	VerifyPhoneOTP(ctx context.Context, phone string, role Role, code string) (*AuthResult, error)
	InitiateLogin(ctx context.Context, identifier string, role Role) (*LoginChallenge, error)
	CompleteLogin(ctx context.Context, identifier string, role Role, code string) (*AuthResult, error)
	CompleteRegistration(ctx context.Context, tempToken string, role Role, profile RegistrationProfile) (*RegistrationResult, error)
	GoogleLogin(ctx context.Context, credential string, role Role) (*AuthResult, error)
	RequestGooglePhoneOTP(ctx context.Context, tempToken, phone string) (*OTPDispatch, error)
	VerifyGooglePhone(ctx context.Context, tempToken, phone, code string) (*AuthResult, error)
	Refresh(ctx context.Context, token string) (*AuthResult, error)
	Profile(ctx context.Context, claims *TokenClaims) (*Account, error)
}

// ApprovalService defines the registration approval workflow
type ApprovalService interface {
	Decide(ctx context.Context, approver *TokenClaims, role Role, id uint, action ApprovalAction) (*Account, error)
	SetActive(ctx context.Context, approver *TokenClaims, role Role, id uint, active bool) (*Account, error)
	ListPending(ctx context.Context, approver *TokenClaims, role Role) ([]*Account, error)
}

// ExpenseService defines expense logging and referral aggregation
type ExpenseService interface {
	Log(ctx context.Context, owner *TokenClaims, expense *Expense) (*Expense, error)
	List(ctx context.Context, owner *TokenClaims) ([]*Expense, error)
	ReferralCommission(ctx context.Context, referrer *TokenClaims) (*ReferralCommission, error)
}

// PolicyService defines authorization policy operations
type PolicyService interface {
	AddPolicy(role Role, resource, action string) error
	CheckPermission(role Role, resource, action string) (bool, error)
	GetPolicies() [][]string
}

// CasbinEnforcer interface defines the methods we need from Casbin enforcer
type CasbinEnforcer interface {
	AddPolicy(params ...interface{}) (bool, error)
	Enforce(rvals ...interface{}) (bool, error)
	GetPolicy() ([][]string, error)
	SavePolicy() error
}
