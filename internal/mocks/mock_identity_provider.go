package mocks

import (
	"context"

	"github.com/you/eventhub/domain"
)

// MockIdentityProvider implements domain.IdentityProvider for testing
type MockIdentityProvider struct {
	VerifyFunc func(ctx context.Context, credential string) (*domain.ExternalIdentity, error)
}

// NewMockIdentityProvider creates a new MockIdentityProvider
func NewMockIdentityProvider() *MockIdentityProvider {
	return &MockIdentityProvider{}
}

func (m *MockIdentityProvider) Verify(ctx context.Context, credential string) (*domain.ExternalIdentity, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, credential)
	}
	return nil, domain.ErrIdentityUnverified
}

// Compile-time interface compliance verification
var _ domain.IdentityProvider = (*MockIdentityProvider)(nil)
