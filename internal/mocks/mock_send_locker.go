package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/you/eventhub/domain"
)

// MockSendLocker implements domain.SendLocker in memory
type MockSendLocker struct {
	AcquireFunc func(ctx context.Context, phone string, purpose domain.OTPPurpose) (string, bool, error)

	mu   sync.Mutex
	held map[string]string
	seq  int
}

// NewMockSendLocker creates a new in-memory lock
func NewMockSendLocker() *MockSendLocker {
	return &MockSendLocker{held: map[string]string{}}
}

func (m *MockSendLocker) Acquire(ctx context.Context, phone string, purpose domain.OTPPurpose) (string, bool, error) {
	if m.AcquireFunc != nil {
		return m.AcquireFunc(ctx, phone, purpose)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := string(purpose) + ":" + phone
	if _, ok := m.held[key]; ok {
		return "", false, nil
	}
	m.seq++
	token := fmt.Sprintf("lock-%d", m.seq)
	m.held[key] = token
	return token, true, nil
}

func (m *MockSendLocker) Release(ctx context.Context, phone string, purpose domain.OTPPurpose, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := string(purpose) + ":" + phone
	if m.held[key] == token {
		delete(m.held, key)
	}
	return nil
}

// Compile-time interface compliance verification
var _ domain.SendLocker = (*MockSendLocker)(nil)
