package mocks

import (
	"context"
	"sync"

	"github.com/you/eventhub/domain"
)

// SentSMS records one SendOTP call
type SentSMS struct {
	Phone string
	Code  string
}

// MockSMSProvider implements domain.SMSProvider for testing
type MockSMSProvider struct {
	SendOTPFunc             func(ctx context.Context, phone, code string) error
	VerifyOTPExternallyFunc func(ctx context.Context, phone, code string) (bool, error)
	ValidatePhoneNumberFunc func(ctx context.Context, phone string) bool

	mu   sync.Mutex
	Sent []SentSMS
}

// NewMockSMSProvider creates a new MockSMSProvider that accepts every send
func NewMockSMSProvider() *MockSMSProvider {
	return &MockSMSProvider{}
}

// SendOTP records the send before delegating to SendOTPFunc
func (m *MockSMSProvider) SendOTP(ctx context.Context, phone, code string) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, SentSMS{Phone: phone, Code: code})
	m.mu.Unlock()
	if m.SendOTPFunc != nil {
		return m.SendOTPFunc(ctx, phone, code)
	}
	return nil
}

func (m *MockSMSProvider) VerifyOTPExternally(ctx context.Context, phone, code string) (bool, error) {
	if m.VerifyOTPExternallyFunc != nil {
		return m.VerifyOTPExternallyFunc(ctx, phone, code)
	}
	return false, nil
}

func (m *MockSMSProvider) ValidatePhoneNumber(ctx context.Context, phone string) bool {
	if m.ValidatePhoneNumberFunc != nil {
		return m.ValidatePhoneNumberFunc(ctx, phone)
	}
	return true
}

// LastCode returns the most recent code sent to phone
func (m *MockSMSProvider) LastCode(phone string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Sent) - 1; i >= 0; i-- {
		if m.Sent[i].Phone == phone {
			return m.Sent[i].Code
		}
	}
	return ""
}

// Compile-time interface compliance verification
var _ domain.SMSProvider = (*MockSMSProvider)(nil)
