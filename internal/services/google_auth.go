package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/you/eventhub/domain"
)

// GoogleLogin implements domain.AuthService.
//
// An unknown identity gets a temp token for registration. A known account
// that signs in with Google gets a full token straight away; one that signs
// in by phone gets a temp token bound to that account, and only the phone
// step can upgrade it.
func (s *AuthServiceImpl) GoogleLogin(ctx context.Context, credential string, role domain.Role) (*domain.AuthResult, error) {
	identity, err := s.identity.Verify(ctx, credential)
	if err != nil {
		return nil, err
	}

	account, err := s.resolver.FindAccountForGoogle(ctx, identity, role)
	if errors.Is(err, domain.ErrAccountNotFound) {
		claims := &domain.TokenClaims{
			Role:        role,
			Email:       identity.Email,
			GoogleID:    identity.ExternalID,
			DisplayName: identity.DisplayName,
		}
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
	if err != nil {
		return nil, err
	}

	if err := account.State.Gate(); err != nil {
		s.auditFailure(ctx, domain.LoginFailureEvent, account, err)
		return nil, err
	}

	if account.LoginMethod == domain.LoginMethodGoogle {
		if err := s.linkGoogle(ctx, account, identity.ExternalID); err != nil {
			return nil, err
		}
		return s.issueFull(ctx, account, "google")
	}

	claims := &domain.TokenClaims{
		Role:        role,
		Email:       identity.Email,
		GoogleID:    identity.ExternalID,
		DisplayName: identity.DisplayName,
		ShortCode:   account.ShortCode,
	}
	claims.BindExisting(account.ID)
	token, expiresAt, err := s.tokenSvc.SignTempToken(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to sign temp token: %w", err)
	}
	return &domain.AuthResult{
		Token:                     token,
		TokenType:                 domain.TokenTemp,
		ExpiresAt:                 expiresAt,
		Account:                   account,
		RequiresPhoneVerification: true,
	}, nil
}

// RequestGooglePhoneOTP implements domain.AuthService
func (s *AuthServiceImpl) RequestGooglePhoneOTP(ctx context.Context, tempToken, rawPhone string) (*domain.OTPDispatch, error) {
	account, err := s.boundAccount(ctx, tempToken, rawPhone)
	if err != nil {
		return nil, err
	}
	return s.otpSvc.Send(ctx, account.Phone, domain.PurposeGooglePhoneVerify)
}

// VerifyGooglePhone implements domain.AuthService. The Google identity from
// the temp token is linked once the phone is proven.
func (s *AuthServiceImpl) VerifyGooglePhone(ctx context.Context, tempToken, rawPhone, code string) (*domain.AuthResult, error) {
	claims, err := s.tokenSvc.VerifyTempToken(tempToken)
	if err != nil {
		return nil, err
	}
	account, err := s.boundAccount(ctx, tempToken, rawPhone)
	if err != nil {
		return nil, err
	}

	ok, err := s.otpSvc.Verify(ctx, account.Phone, code, domain.PurposeGooglePhoneVerify)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.auditFailure(ctx, domain.LoginFailureEvent, account, domain.ErrOTPInvalid)
		return nil, domain.ErrOTPInvalid
	}

	if err := s.linkGoogle(ctx, account, claims.GoogleID); err != nil {
		return nil, err
	}
	return s.issueFull(ctx, account, "google_phone")
}

// boundAccount loads the one account a bound temp token may act on and
// checks the submitted phone against it.
func (s *AuthServiceImpl) boundAccount(ctx context.Context, tempToken, rawPhone string) (*domain.Account, error) {
	claims, err := s.tokenSvc.VerifyTempToken(tempToken)
	if err != nil {
		return nil, err
	}
	id := claims.ExistingAccountID()
	if id == 0 {
		return nil, domain.ErrTokenWrongType
	}

	account, err := s.accounts.FindByID(ctx, claims.Role, id)
	if err != nil {
		return nil, err
	}
	if err := account.State.Gate(); err != nil {
		return nil, err
	}
	if account.Phone == "" || !s.normalizer.Equal(rawPhone, account.Phone) {
		s.auditFailure(ctx, domain.LoginFailureEvent, account, domain.ErrPhoneMismatch)
		return nil, domain.ErrPhoneMismatch
	}
	return account, nil
}

func (s *AuthServiceImpl) linkGoogle(ctx context.Context, account *domain.Account, googleID string) error {
	if googleID == "" || account.GoogleID == googleID {
		return nil
	}
	if err := s.accounts.LinkGoogleID(ctx, account.Role, account.ID, googleID); err != nil {
		return err
	}
	account.GoogleID = googleID
	s.audit.LogEvent(ctx, domain.NewAuditEvent(domain.GoogleLinkedEvent).
		WithAccount(account).
		WithEmail(account.Email))
	return nil
}
