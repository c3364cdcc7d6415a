package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of account kinds. Every token role and every
// account table row maps to exactly one of these.
type Role string

const (
	RoleUser  Role = "USER"
	RoleStaff Role = "STAFF"
	RoleAdmin Role = "ADMIN"
)

// Roles lists every role in privilege order.
var Roles = []Role{RoleUser, RoleStaff, RoleAdmin}

// ParseRole normalizes a role string coming from a token, a query parameter
// or a request body. Casing is ignored and "super_admin" folds into ADMIN;
// super-admin privilege is an account attribute, not a role.
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "USER", "END_USER", "ENDUSER":
		return RoleUser, nil
	case "STAFF":
		return RoleStaff, nil
	case "ADMIN", "SUPER_ADMIN", "SUPERADMIN":
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// ShortCodePrefix is the letter that starts every short code for the role.
func (r Role) ShortCodePrefix() string {
	switch r {
	case RoleStaff:
		return "S"
	case RoleAdmin:
		return "A"
	default:
		return "U"
	}
}

// LoginPurpose is the OTP purpose used when an account of this role logs in.
func (r Role) LoginPurpose() OTPPurpose {
	switch r {
	case RoleStaff:
		return PurposeStaffLogin
	case RoleAdmin:
		return PurposeAdminLogin
	default:
		return PurposeLogin
	}
}

// CasbinSubject is the policy subject for the role.
func (r Role) CasbinSubject() string {
	return "role_" + strings.ToLower(string(r))
}

// RegistrationStatus is the persisted approval status.
type RegistrationStatus string

const (
	StatusPending  RegistrationStatus = "PENDING"
	StatusApproved RegistrationStatus = "APPROVED"
	StatusRejected RegistrationStatus = "REJECTED"
)

// RegistrationState couples approval status with the active flag so that
// only Pending, Approved{active} and Rejected can be expressed.
type RegistrationState struct {
	status RegistrationStatus
	active bool
}

// PendingState is the state of a freshly registered account.
func PendingState() RegistrationState {
	return RegistrationState{status: StatusPending}
}

// ApprovedState is an approved account, active or suspended.
func ApprovedState(active bool) RegistrationState {
	return RegistrationState{status: StatusApproved, active: active}
}

// RejectedState is a denied registration. It is never active.
func RejectedState() RegistrationState {
	return RegistrationState{status: StatusRejected}
}

// RestoreState rebuilds a state from persisted columns. Combinations that
// cannot exist are collapsed to their inactive form.
func RestoreState(status RegistrationStatus, active bool) RegistrationState {
	switch status {
	case StatusApproved:
		return ApprovedState(active)
	case StatusRejected:
		return RejectedState()
	default:
		return PendingState()
	}
}

func (s RegistrationState) Status() RegistrationStatus {
	if s.status == "" {
		return StatusPending
	}
	return s.status
}

func (s RegistrationState) IsActive() bool { return s.status == StatusApproved && s.active }

// CanAuthenticate reports whether the account may receive a full token.
func (s RegistrationState) CanAuthenticate() bool {
	return s.status == StatusApproved && s.active
}

// Gate returns nil when the account may authenticate, or the specific
// reason it may not.
func (s RegistrationState) Gate() error {
	switch {
	case s.CanAuthenticate():
		return nil
	case s.Status() == StatusPending:
		return ErrAccountPending
	case s.Status() == StatusRejected:
		return ErrAccountRejected
	default:
		return ErrAccountInactive
	}
}

// WithActive toggles the active flag. Only approved accounts carry one.
func (s RegistrationState) WithActive(active bool) (RegistrationState, error) {
	if s.status != StatusApproved {
		return s, ErrInvalidStateTransition
	}
	return ApprovedState(active), nil
}

// LoginMethod records how an account proves identity on login.
type LoginMethod string

const (
	LoginMethodPhone  LoginMethod = "PHONE"
	LoginMethodGoogle LoginMethod = "GOOGLE"
)

// Account is an end-user, staff or admin account. Role decides which
// approval rules apply.
type Account struct {
	ID           uint
	Role         Role
	ShortCode    string
	DisplayName  string
	Email        string
	Phone        string
	GoogleID     string
	SocialHandle string
	LoginMethod  LoginMethod
	ReferredBy   string
	State        RegistrationState
	IsSuperAdmin bool
	ApprovedAt   *time.Time
	ApprovedBy   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsSuper reports whether the account may approve other admins.
func (a *Account) IsSuper() bool {
	return a.Role == RoleAdmin && a.IsSuperAdmin
}

// SystemApprover is recorded as approver for end-user accounts, which are
// approved by proving control of their phone.
const SystemApprover = "SYSTEM"

// OTPPurpose scopes a rate-limit lineage.
type OTPPurpose string

const (
	PurposeLogin             OTPPurpose = "LOGIN"
	PurposeStaffLogin        OTPPurpose = "STAFF_LOGIN"
	PurposeAdminLogin        OTPPurpose = "ADMIN_LOGIN"
	PurposeGooglePhoneVerify OTPPurpose = "GOOGLE_PHONE_VERIFY"
)

// DelegatedCodeSentinel is stored in place of a code when the verification
// provider owns the code.
const DelegatedCodeSentinel = "EXTERNAL"

// OTPRecord is the single row kept per (phone, purpose).
type OTPRecord struct {
	ID             uint
	Phone          string
	Purpose        OTPPurpose
	Code           string
	ExpiresAt      time.Time
	IsUsed         bool
	UsedAt         *time.Time
	// FailedVerifies counts wrong codes submitted against the current code.
	FailedVerifies int
	AttemptCount   int
	LastAttempt    *time.Time
	CooldownUntil  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// InCooldown reports whether sends are blocked at now.
func (r *OTPRecord) InCooldown(now time.Time) bool {
	return r.CooldownUntil != nil && now.Before(*r.CooldownUntil)
}

// TokenType separates registration-in-progress tokens from session tokens.
type TokenType string

const (
	TokenTemp TokenType = "temp"
	TokenFull TokenType = "full"
)

// TokenClaims is the decoded content of a signed token.
type TokenClaims struct {
	AccountID   uint
	Role        Role
	Type        TokenType
	Email       string
	Phone       string
	ShortCode   string
	GoogleID    string
	DisplayName string

	// Set on temp tokens that bind a follow-up step to one resolved account.
	ExistingUserID  uint
	ExistingStaffID uint
	ExistingAdminID uint

	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ExistingAccountID returns the bound account id for the token's role.
func (c *TokenClaims) ExistingAccountID() uint {
	switch c.Role {
	case RoleStaff:
		return c.ExistingStaffID
	case RoleAdmin:
		return c.ExistingAdminID
	default:
		return c.ExistingUserID
	}
}

// BindExisting records id as the only account a follow-up step may act on.
func (c *TokenClaims) BindExisting(id uint) {
	switch c.Role {
	case RoleStaff:
		c.ExistingStaffID = id
	case RoleAdmin:
		c.ExistingAdminID = id
	default:
		c.ExistingUserID = id
	}
}

// ClaimsForAccount builds the claim set describing a.
func ClaimsForAccount(a *Account) *TokenClaims {
	return &TokenClaims{
		AccountID: a.ID,
		Role:      a.Role,
		Email:     a.Email,
		Phone:     a.Phone,
		ShortCode: a.ShortCode,
	}
}

// ExternalIdentity is the verified triple supplied by an OAuth provider.
type ExternalIdentity struct {
	Email       string
	ExternalID  string
	DisplayName string
}

// AuthResult is what a successful authentication step hands back.
type AuthResult struct {
	Token                     string
	TokenType                 TokenType
	ExpiresAt                 time.Time
	Account                   *Account
	IsNewAccount              bool
	RequiresPhoneVerification bool
}

// LoginChallenge is returned when a login needs an OTP.
type LoginChallenge struct {
	MaskedPhone       string
	ShortCode         string
	RemainingAttempts int
	ExpiresAt         time.Time
}

// OTPDispatch describes a code that was sent.
type OTPDispatch struct {
	Phone             string
	Purpose           OTPPurpose
	ExpiresAt         time.Time
	RemainingAttempts int
	Delegated         bool
}

// RateLimitStatus is the outcome of a rate-limit check that allowed a send.
type RateLimitStatus struct {
	RemainingAttempts int
	NextResendAt      time.Time
}

// RegistrationProfile holds the profile fields submitted with a temp token.
type RegistrationProfile struct {
	DisplayName  string
	Email        string
	Phone        string
	SocialHandle string
	ReferredBy   string
}

// RegistrationResult is the outcome of completing a registration. Token is
// empty when the account still awaits approval.
type RegistrationResult struct {
	Account   *Account
	Token     string
	ExpiresAt time.Time
}

// ApprovalAction is the decision taken on a pending registration.
type ApprovalAction string

const (
	ActionApprove ApprovalAction = "approve"
	ActionDeny    ApprovalAction = "deny"
)

// ParseApprovalAction accepts approve/accept and deny/reject.
func ParseApprovalAction(s string) (ApprovalAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approve", "accept":
		return ActionApprove, nil
	case "deny", "reject":
		return ActionDeny, nil
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrValidation, s)
}

// ApprovalDecision is applied to a pending account in one conditional write.
type ApprovalDecision struct {
	State      RegistrationState
	ApprovedAt *time.Time
	ApprovedBy string
}

// Expense is a business record logged by any authenticated account.
type Expense struct {
	ID          uint
	OwnerRole   Role
	OwnerID     uint
	AmountCents int64
	Category    string
	Note        string
	SpentAt     time.Time
	CreatedAt   time.Time
}

// ReferralCommission is a read-only aggregation over referred users'
// expenses.
type ReferralCommission struct {
	ReferralCode      string
	ReferredCount     int
	TotalExpenseCents int64
	RateBasisPoints   int
	CommissionCents   int64
}
