package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/you/eventhub/domain"
	"github.com/you/eventhub/internal/phone"
)

const (
	shortCodeDigits   = 6
	shortCodeAttempts = 8
)

// AuthConfig holds token refresh policy
type AuthConfig struct {
	RefreshGrace     time.Duration
	RefreshableRoles []domain.Role
}

// AuthServiceImpl implements domain.AuthService
type AuthServiceImpl struct {
	accounts   domain.AccountRepository
	resolver   domain.IdentityResolver
	otpSvc     domain.OTPService
	tokenSvc   domain.TokenService
	identity   domain.IdentityProvider
	normalizer *phone.Normalizer
	audit      domain.AuditLogger
	config     AuthConfig
	clock      func() time.Time
	log        zerolog.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(
	accounts domain.AccountRepository,
	resolver domain.IdentityResolver,
	otpSvc domain.OTPService,
	tokenSvc domain.TokenService,
	identity domain.IdentityProvider,
	normalizer *phone.Normalizer,
	audit domain.AuditLogger,
	config AuthConfig,
	clock func() time.Time,
	log zerolog.Logger,
) domain.AuthService {
	if clock == nil {
		clock = time.Now
	}
	return &AuthServiceImpl{
		accounts:   accounts,
		resolver:   resolver,
		otpSvc:     otpSvc,
		tokenSvc:   tokenSvc,
		identity:   identity,
		normalizer: normalizer,
		audit:      audit,
		config:     config,
		clock:      clock,
		log:        log.With().Str("component", "auth").Logger(),
	}
}

// RequestPhoneOTP implements domain.AuthService. It serves both returning
// accounts and brand-new phones; a located account must be allowed to
// authenticate before a code is spent on it.
func (s *AuthServiceImpl) RequestPhoneOTP(ctx context.Context, rawPhone string, role domain.Role) (*domain.OTPDispatch, error) {
	phoneNumber := s.normalizer.Normalize(rawPhone)
	if phoneNumber == "" {
		return nil, domain.ErrInvalidPhone
	}

	account, err := s.findOptional(ctx, phoneNumber, role)
	if err != nil {
		return nil, err
	}
	if account != nil {
		if err := account.State.Gate(); err != nil {
			s.auditFailure(ctx, domain.LoginFailureEvent, account, err)
			return nil, err
		}
	}

	return s.otpSvc.Send(ctx, phoneNumber, role.LoginPurpose())
}

// VerifyPhoneOTP implements domain.AuthService. A phone with no account gets
// a temp token carrying the proven phone, for registration.
func (s *AuthServiceImpl) VerifyPhoneOTP(ctx context.Context, rawPhone string, role domain.Role, code string) (*domain.AuthResult, error) {
	phoneNumber := s.normalizer.Normalize(rawPhone)
	if phoneNumber == "" {
		return nil, domain.ErrInvalidPhone
	}

	ok, err := s.otpSvc.Verify(ctx, phoneNumber, code, role.LoginPurpose())
	if err != nil {
		return nil, err
	}
	if !ok {
		s.audit.LogEvent(ctx, domain.NewAuditEvent(domain.LoginFailureEvent).
			WithRole(role).
			WithPhone(s.normalizer.Mask(phoneNumber)).
			WithError(domain.ErrOTPInvalid))
		return nil, domain.ErrOTPInvalid
	}

	account, err := s.findOptional(ctx, phoneNumber, role)
	if err != nil {
		return nil, err
	}
	if account == nil {
		claims := &domain.TokenClaims{Role: role, Phone: phoneNumber}
		token, expiresAt, err := s.tokenSvc.SignTempToken(claims)
		if err != nil {
			return nil, fmt.Errorf("failed to sign temp token: %w", err)
		}
		return &domain.AuthResult{
			Token:        token,
			TokenType:    domain.TokenTemp,
			ExpiresAt:    expiresAt,
			IsNewAccount: true,
		}, nil
	}

	return s.issueFull(ctx, account, "phone_otp")
}

// InitiateLogin implements domain.AuthService
func (s *AuthServiceImpl) InitiateLogin(ctx context.Context, identifier string, role domain.Role) (*domain.LoginChallenge, error) {
	account, err := s.resolveForLogin(ctx, identifier, role)
	if err != nil {
		return nil, err
	}

	dispatch, err := s.otpSvc.Send(ctx, account.Phone, role.LoginPurpose())
	if err != nil {
		return nil, err
	}
	return &domain.LoginChallenge{
		MaskedPhone:       s.normalizer.Mask(account.Phone),
		ShortCode:         account.ShortCode,
		RemainingAttempts: dispatch.RemainingAttempts,
		ExpiresAt:         dispatch.ExpiresAt,
	}, nil
}

// CompleteLogin implements domain.AuthService
func (s *AuthServiceImpl) CompleteLogin(ctx context.Context, identifier string, role domain.Role, code string) (*domain.AuthResult, error) {
	account, err := s.resolveForLogin(ctx, identifier, role)
	if err != nil {
		return nil, err
	}

	ok, err := s.otpSvc.Verify(ctx, account.Phone, code, role.LoginPurpose())
	if err != nil {
		return nil, err
	}
	if !ok {
		s.auditFailure(ctx, domain.LoginFailureEvent, account, domain.ErrOTPInvalid)
		return nil, domain.ErrOTPInvalid
	}
	return s.issueFull(ctx, account, "login")
}

// CompleteRegistration implements domain.AuthService. End-user accounts are
// approved on creation because the phone was just proven; staff and admin
// accounts wait for an approver and get no token.
func (s *AuthServiceImpl) CompleteRegistration(ctx context.Context, tempToken string, role domain.Role, profile domain.RegistrationProfile) (*domain.RegistrationResult, error) {
	claims, err := s.tokenSvc.VerifyTempToken(tempToken)
	if err != nil {
		return nil, err
	}
	if claims.ExistingAccountID() != 0 {
		return nil, domain.ErrTokenWrongType
	}
	if role != "" && role != claims.Role {
		return nil, domain.NewFieldError("kind", "does not match the registration token")
	}
	role = claims.Role

	account, err := s.buildAccount(ctx, claims, profile)
	if err != nil {
		return nil, err
	}

	field, err := s.accounts.FindAnchorConflict(ctx, role, domain.AccountAnchors{
		SocialHandle: account.SocialHandle,
		Email:        account.Email,
		Phone:        account.Phone,
		GoogleID:     account.GoogleID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check uniqueness: %w", err)
	}
	if field != "" {
		return nil, &domain.ConflictError{Field: field}
	}

	if account.ShortCode, err = s.generateShortCode(ctx, role); err != nil {
		return nil, err
	}

	if role == domain.RoleUser {
		now := s.clock()
		account.State = domain.ApprovedState(true)
		account.ApprovedAt = &now
		account.ApprovedBy = domain.SystemApprover
	} else {
		account.State = domain.PendingState()
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.audit.LogEvent(ctx, domain.NewAuditEvent(domain.RegistrationEvent).
		WithAccount(account).
		WithEmail(account.Email).
		WithMetadata("login_method", string(account.LoginMethod)).
		WithMetadata("status", string(account.State.Status())))

	result := &domain.RegistrationResult{Account: account}
	if account.State.CanAuthenticate() {
		token, expiresAt, err := s.tokenSvc.SignFullToken(domain.ClaimsForAccount(account))
		if err != nil {
			return nil, fmt.Errorf("failed to sign token: %w", err)
		}
		result.Token, result.ExpiresAt = token, expiresAt
	}
	return result, nil
}

// Refresh implements domain.AuthService. Expired full tokens inside the
// grace window are accepted; the replacement always reflects the account's
// current state.
func (s *AuthServiceImpl) Refresh(ctx context.Context, token string) (*domain.AuthResult, error) {
	claims, err := s.tokenSvc.Verify(token)
	if errors.Is(err, domain.ErrTokenExpired) {
		claims, err = s.tokenSvc.DecodeExpired(token)
		if err == nil && s.clock().Sub(claims.ExpiresAt) > s.config.RefreshGrace {
			err = domain.ErrTokenNotRefreshable
		}
	}
	if err == nil && (claims.Type != domain.TokenFull || !s.refreshable(claims.Role)) {
		err = domain.ErrTokenNotRefreshable
	}
	if err != nil {
		s.audit.LogEvent(ctx, domain.NewAuditEvent(domain.TokenRefreshDeniedEvent).WithError(err))
		return nil, err
	}

	account, err := s.accounts.FindByID(ctx, claims.Role, claims.AccountID)
	if errors.Is(err, domain.ErrAccountNotFound) && claims.Phone != "" {
		account, err = s.accounts.FindByPhone(ctx, claims.Role, s.normalizer.Normalize(claims.Phone))
	}
	if err != nil {
		return nil, err
	}
	if err := account.State.Gate(); err != nil {
		s.auditFailure(ctx, domain.TokenRefreshDeniedEvent, account, err)
		return nil, err
	}

	fresh, expiresAt, err := s.tokenSvc.SignFullToken(domain.ClaimsForAccount(account))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	s.audit.LogEvent(ctx, domain.NewAuditEvent(domain.TokenRefreshedEvent).WithAccount(account))
	return &domain.AuthResult{Token: fresh, TokenType: domain.TokenFull, ExpiresAt: expiresAt, Account: account}, nil
}

// Profile implements domain.AuthService
func (s *AuthServiceImpl) Profile(ctx context.Context, claims *domain.TokenClaims) (*domain.Account, error) {
	account, err := s.accounts.FindByID(ctx, claims.Role, claims.AccountID)
	if err != nil {
		return nil, err
	}
	if err := account.State.Gate(); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *AuthServiceImpl) resolveForLogin(ctx context.Context, identifier string, role domain.Role) (*domain.Account, error) {
	account, err := s.resolver.FindAccountForLogin(ctx, identifier, role)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			s.audit.LogEvent(ctx, domain.NewAuditEvent(domain.LoginFailureEvent).WithRole(role).WithError(err))
		}
		return nil, err
	}
	if err := account.State.Gate(); err != nil {
		s.auditFailure(ctx, domain.LoginFailureEvent, account, err)
		return nil, err
	}
	if account.Phone == "" {
		return nil, domain.NewFieldError("identifier", "account has no phone number; sign in with Google")
	}
	return account, nil
}

// findOptional resolves a phone to an account, treating "not found" as nil.
func (s *AuthServiceImpl) findOptional(ctx context.Context, phoneNumber string, role domain.Role) (*domain.Account, error) {
	account, err := s.resolver.FindAccountForLogin(ctx, phoneNumber, role)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, nil
	}
	return account, err
}

func (s *AuthServiceImpl) issueFull(ctx context.Context, account *domain.Account, via string) (*domain.AuthResult, error) {
	if err := account.State.Gate(); err != nil {
		s.auditFailure(ctx, domain.LoginFailureEvent, account, err)
		return nil, err
	}
	token, expiresAt, err := s.tokenSvc.SignFullToken(domain.ClaimsForAccount(account))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	s.audit.LogEvent(ctx, domain.NewAuditEvent(domain.LoginEvent).
		WithAccount(account).
		WithMetadata("via", via))
	return &domain.AuthResult{
		Token:     token,
		TokenType: domain.TokenFull,
		ExpiresAt: expiresAt,
		Account:   account,
	}, nil
}

func (s *AuthServiceImpl) buildAccount(ctx context.Context, claims *domain.TokenClaims, profile domain.RegistrationProfile) (*domain.Account, error) {
	fields := map[string]string{}

	account := &domain.Account{
		Role:         claims.Role,
		DisplayName:  strings.TrimSpace(profile.DisplayName),
		Email:        strings.ToLower(strings.TrimSpace(profile.Email)),
		SocialHandle: strings.TrimSpace(profile.SocialHandle),
		GoogleID:     claims.GoogleID,
		LoginMethod:  domain.LoginMethodPhone,
	}
	if account.DisplayName == "" {
		account.DisplayName = claims.DisplayName
	}
	if account.DisplayName == "" {
		fields["displayName"] = "is required"
	}

	// Claims carry values an OTP or Google already proved; they win over
	// anything typed into the profile.
	if claims.Email != "" {
		account.Email = strings.ToLower(claims.Email)
	}
	if claims.GoogleID != "" {
		account.LoginMethod = domain.LoginMethodGoogle
	}
	switch {
	case claims.Phone != "":
		if profile.Phone != "" && !s.normalizer.Equal(profile.Phone, claims.Phone) {
			return nil, domain.ErrPhoneMismatch
		}
		account.Phone = s.normalizer.Normalize(claims.Phone)
	case profile.Phone != "":
		account.Phone = s.normalizer.Normalize(profile.Phone)
		if !s.normalizer.IsValid(account.Phone) {
			fields["phone"] = "is not a valid phone number"
		}
	case claims.GoogleID == "":
		fields["phone"] = "is required"
	}

	if ref := strings.ToUpper(strings.TrimSpace(profile.ReferredBy)); ref != "" {
		if claims.Role != domain.RoleUser {
			fields["referredBy"] = "only end-user accounts can be referred"
		} else {
			exists, err := s.accounts.ShortCodeExists(ctx, ref)
			if err != nil {
				return nil, fmt.Errorf("failed to check referral code: %w", err)
			}
			if !exists {
				fields["referredBy"] = "unknown referral code"
			}
			account.ReferredBy = ref
		}
	}

	if len(fields) > 0 {
		return nil, &domain.ValidationError{Fields: fields}
	}
	return account, nil
}

// generateShortCode draws role-prefixed random codes until one is unused.
// The unique index stays the final guard.
func (s *AuthServiceImpl) generateShortCode(ctx context.Context, role domain.Role) (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < shortCodeDigits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	for i := 0; i < shortCodeAttempts; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate short code: %w", err)
		}
		code := fmt.Sprintf("%s%0*d", role.ShortCodePrefix(), shortCodeDigits, n.Int64())
		exists, err := s.accounts.ShortCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check short code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("failed to allocate a unique short code")
}

func (s *AuthServiceImpl) refreshable(role domain.Role) bool {
	for _, r := range s.config.RefreshableRoles {
		if r == role {
			return true
		}
	}
	return false
}

func (s *AuthServiceImpl) auditFailure(ctx context.Context, eventType domain.AuditEventType, account *domain.Account, err error) {
	s.audit.LogEvent(ctx, domain.NewAuditEvent(eventType).WithAccount(account).WithError(err))
}
