package mocks

import (
	"context"

	"github.com/you/eventhub/domain"
)

// MockAccountRepository implements domain.AccountRepository for testing
type MockAccountRepository struct {
	CreateFunc             func(ctx context.Context, account *domain.Account) error
	FindByIDFunc           func(ctx context.Context, role domain.Role, id uint) (*domain.Account, error)
	FindByEmailFunc        func(ctx context.Context, role domain.Role, email string) (*domain.Account, error)
	FindByGoogleIDFunc     func(ctx context.Context, role domain.Role, googleID string) (*domain.Account, error)
	FindByPhoneFunc        func(ctx context.Context, role domain.Role, phone string) (*domain.Account, error)
	FindByAnyFunc          func(ctx context.Context, role domain.Role, lookup domain.AccountLookup) ([]*domain.Account, error)
	FindAnchorConflictFunc func(ctx context.Context, role domain.Role, anchors domain.AccountAnchors) (string, error)
	ShortCodeExistsFunc    func(ctx context.Context, code string) (bool, error)
	LinkGoogleIDFunc       func(ctx context.Context, role domain.Role, id uint, googleID string) error
	ResolvePendingFunc     func(ctx context.Context, role domain.Role, id uint, decision domain.ApprovalDecision) error
	SetActiveFunc          func(ctx context.Context, role domain.Role, id uint, active bool) error
	ListPendingFunc        func(ctx context.Context, role domain.Role) ([]*domain.Account, error)
	ListReferredFunc       func(ctx context.Context, referralCode string) ([]*domain.Account, error)
}

// NewMockAccountRepository creates a new MockAccountRepository; unset
// finders report ErrAccountNotFound
func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{}
}

func (m *MockAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	return nil
}

func (m *MockAccountRepository) FindByID(ctx context.Context, role domain.Role, id uint) (*domain.Account, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, role, id)
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) FindByEmail(ctx context.Context, role domain.Role, email string) (*domain.Account, error) {
	if m.FindByEmailFunc != nil {
		return m.FindByEmailFunc(ctx, role, email)
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) FindByGoogleID(ctx context.Context, role domain.Role, googleID string) (*domain.Account, error) {
	if m.FindByGoogleIDFunc != nil {
		return m.FindByGoogleIDFunc(ctx, role, googleID)
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) FindByPhone(ctx context.Context, role domain.Role, phone string) (*domain.Account, error) {
	if m.FindByPhoneFunc != nil {
		return m.FindByPhoneFunc(ctx, role, phone)
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) FindByAny(ctx context.Context, role domain.Role, lookup domain.AccountLookup) ([]*domain.Account, error) {
	if m.FindByAnyFunc != nil {
		return m.FindByAnyFunc(ctx, role, lookup)
	}
	return nil, nil
}

func (m *MockAccountRepository) FindAnchorConflict(ctx context.Context, role domain.Role, anchors domain.AccountAnchors) (string, error) {
	if m.FindAnchorConflictFunc != nil {
		return m.FindAnchorConflictFunc(ctx, role, anchors)
	}
	return "", nil
}

func (m *MockAccountRepository) ShortCodeExists(ctx context.Context, code string) (bool, error) {
	if m.ShortCodeExistsFunc != nil {
		return m.ShortCodeExistsFunc(ctx, code)
	}
	return false, nil
}

func (m *MockAccountRepository) LinkGoogleID(ctx context.Context, role domain.Role, id uint, googleID string) error {
	if m.LinkGoogleIDFunc != nil {
		return m.LinkGoogleIDFunc(ctx, role, id, googleID)
	}
	return nil
}

func (m *MockAccountRepository) ResolvePending(ctx context.Context, role domain.Role, id uint, decision domain.ApprovalDecision) error {
	if m.ResolvePendingFunc != nil {
		return m.ResolvePendingFunc(ctx, role, id, decision)
	}
	return nil
}

func (m *MockAccountRepository) SetActive(ctx context.Context, role domain.Role, id uint, active bool) error {
	if m.SetActiveFunc != nil {
		return m.SetActiveFunc(ctx, role, id, active)
	}
	return nil
}

func (m *MockAccountRepository) ListPending(ctx context.Context, role domain.Role) ([]*domain.Account, error) {
	if m.ListPendingFunc != nil {
		return m.ListPendingFunc(ctx, role)
	}
	return nil, nil
}

func (m *MockAccountRepository) ListReferred(ctx context.Context, referralCode string) ([]*domain.Account, error) {
	if m.ListReferredFunc != nil {
		return m.ListReferredFunc(ctx, referralCode)
	}
	return nil, nil
}

// Compile-time interface compliance verification
var _ domain.AccountRepository = (*MockAccountRepository)(nil)
