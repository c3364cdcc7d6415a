package mocks

import (
	"time"

	"github.com/you/eventhub/domain"
)

// MockTokenService implements domain.TokenService for testing
type MockTokenService struct {
	SignFunc            func(claims *domain.TokenClaims, ttl time.Duration) (string, time.Time, error)
	VerifyFunc          func(token string) (*domain.TokenClaims, error)
	SignTempTokenFunc   func(claims *domain.TokenClaims) (string, time.Time, error)
	SignFullTokenFunc   func(claims *domain.TokenClaims) (string, time.Time, error)
	VerifyTempTokenFunc func(token string) (*domain.TokenClaims, error)
	VerifyFullTokenFunc func(token string) (*domain.TokenClaims, error)
	DecodeExpiredFunc   func(token string) (*domain.TokenClaims, error)
}

// NewMockTokenService creates a new MockTokenService
func NewMockTokenService() *MockTokenService {
	return &MockTokenService{}
}

func (m *MockTokenService) Sign(claims *domain.TokenClaims, ttl time.Duration) (string, time.Time, error) {
	if m.SignFunc != nil {
		return m.SignFunc(claims, ttl)
	}
	return "mock-token", time.Now().Add(ttl), nil
}

func (m *MockTokenService) Verify(token string) (*domain.TokenClaims, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(token)
	}
	return nil, domain.ErrTokenInvalid
}

func (m *MockTokenService) SignTempToken(claims *domain.TokenClaims) (string, time.Time, error) {
	if m.SignTempTokenFunc != nil {
		return m.SignTempTokenFunc(claims)
	}
	return "mock-temp-token", time.Now().Add(15 * time.Minute), nil
}

func (m *MockTokenService) SignFullToken(claims *domain.TokenClaims) (string, time.Time, error) {
	if m.SignFullTokenFunc != nil {
		return m.SignFullTokenFunc(claims)
	}
	return "mock-full-token", time.Now().Add(7 * 24 * time.Hour), nil
}

func (m *MockTokenService) VerifyTempToken(token string) (*domain.TokenClaims, error) {
	if m.VerifyTempTokenFunc != nil {
		return m.VerifyTempTokenFunc(token)
	}
	return nil, domain.ErrTokenInvalid
}

func (m *MockTokenService) VerifyFullToken(token string) (*domain.TokenClaims, error) {
	if m.VerifyFullTokenFunc != nil {
		return m.VerifyFullTokenFunc(token)
	}
	return nil, domain.ErrTokenInvalid
}

func (m *MockTokenService) DecodeExpired(token string) (*domain.TokenClaims, error) {
	if m.DecodeExpiredFunc != nil {
		return m.DecodeExpiredFunc(token)
	}
	return nil, domain.ErrTokenInvalid
}

// Compile-time interface compliance verification
var _ domain.TokenService = (*MockTokenService)(nil)
