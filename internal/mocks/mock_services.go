package mocks

import (
	"context"

	"github.com/you/eventhub/domain"
)

// MockAuthService implements domain.AuthService for handler tests
type MockAuthService struct {
	RequestPhoneOTPFunc       func(ctx context.Context, phone string, role domain.Role) (*domain.OTPDispatch, error)
	VerifyPhoneOTPFunc        func(ctx context.Context, phone string, role domain.Role, code string) (*domain.AuthResult, error)
	InitiateLoginFunc         func(ctx context.Context, identifier string, role domain.Role) (*domain.LoginChallenge, error)
	CompleteLoginFunc         func(ctx context.Context, identifier string, role domain.Role, code string) (*domain.AuthResult, error)
	CompleteRegistrationFunc  func(ctx context.Context, tempToken string, role domain.Role, profile domain.RegistrationProfile) (*domain.RegistrationResult, error)
	GoogleLoginFunc           func(ctx context.Context, credential string, role domain.Role) (*domain.AuthResult, error)
	RequestGooglePhoneOTPFunc func(ctx context.Context, tempToken, phone string) (*domain.OTPDispatch, error)
	VerifyGooglePhoneFunc     func(ctx context.Context, tempToken, phone, code string) (*domain.AuthResult, error)
	RefreshFunc               func(ctx context.Context, token string) (*domain.AuthResult, error)
	ProfileFunc               func(ctx context.Context, claims *domain.TokenClaims) (*domain.Account, error)
}

func (m *MockAuthService) RequestPhoneOTP(ctx context.Context, phone string, role domain.Role) (*domain.OTPDispatch, error) {
	if m.RequestPhoneOTPFunc != nil {
		return m.RequestPhoneOTPFunc(ctx, phone, role)
	}
	return &domain.OTPDispatch{Phone: phone, Purpose: role.LoginPurpose()}, nil
}

func (m *MockAuthService) VerifyPhoneOTP(ctx context.Context, phone string, role domain.Role, code string) (*domain.AuthResult, error) {
	if m.VerifyPhoneOTPFunc != nil {
		return m.VerifyPhoneOTPFunc(ctx, phone, role, code)
	}
	return nil, domain.ErrOTPInvalid
}

func (m *MockAuthService) InitiateLogin(ctx context.Context, identifier string, role domain.Role) (*domain.LoginChallenge, error) {
	if m.InitiateLoginFunc != nil {
		return m.InitiateLoginFunc(ctx, identifier, role)
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAuthService) CompleteLogin(ctx context.Context, identifier string, role domain.Role, code string) (*domain.AuthResult, error) {
	if m.CompleteLoginFunc != nil {
		return m.CompleteLoginFunc(ctx, identifier, role, code)
	}
	return nil, domain.ErrOTPInvalid
}

func (m *MockAuthService) CompleteRegistration(ctx context.Context, tempToken string, role domain.Role, profile domain.RegistrationProfile) (*domain.RegistrationResult, error) {
	if m.CompleteRegistrationFunc != nil {
		return m.CompleteRegistrationFunc(ctx, tempToken, role, profile)
	}
	return nil, domain.ErrTokenInvalid
}

func (m *MockAuthService) GoogleLogin(ctx context.Context, credential string, role domain.Role) (*domain.AuthResult, error) {
	if m.GoogleLoginFunc != nil {
		return m.GoogleLoginFunc(ctx, credential, role)
	}
	return nil, domain.ErrIdentityUnverified
}

func (m *MockAuthService) RequestGooglePhoneOTP(ctx context.Context, tempToken, phone string) (*domain.OTPDispatch, error) {
	if m.RequestGooglePhoneOTPFunc != nil {
		return m.RequestGooglePhoneOTPFunc(ctx, tempToken, phone)
	}
	return nil, domain.ErrTokenInvalid
}

func (m *MockAuthService) VerifyGooglePhone(ctx context.Context, tempToken, phone, code string) (*domain.AuthResult, error) {
	if m.VerifyGooglePhoneFunc != nil {
		return m.VerifyGooglePhoneFunc(ctx, tempToken, phone, code)
	}
	return nil, domain.ErrTokenInvalid
}

func (m *MockAuthService) Refresh(ctx context.Context, token string) (*domain.AuthResult, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, token)
	}
	return nil, domain.ErrTokenInvalid
}

func (m *MockAuthService) Profile(ctx context.Context, claims *domain.TokenClaims) (*domain.Account, error) {
	if m.ProfileFunc != nil {
		return m.ProfileFunc(ctx, claims)
	}
	return nil, domain.ErrAccountNotFound
}

// MockApprovalService implements domain.ApprovalService for handler tests
type MockApprovalService struct {
	DecideFunc      func(ctx context.Context, approver *domain.TokenClaims, role domain.Role, id uint, action domain.ApprovalAction) (*domain.Account, error)
	SetActiveFunc   func(ctx context.Context, approver *domain.TokenClaims, role domain.Role, id uint, active bool) (*domain.Account, error)
	ListPendingFunc func(ctx context.Context, approver *domain.TokenClaims, role domain.Role) ([]*domain.Account, error)
}

func (m *MockApprovalService) Decide(ctx context.Context, approver *domain.TokenClaims, role domain.Role, id uint, action domain.ApprovalAction) (*domain.Account, error) {
	if m.DecideFunc != nil {
		return m.DecideFunc(ctx, approver, role, id, action)
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockApprovalService) SetActive(ctx context.Context, approver *domain.TokenClaims, role domain.Role, id uint, active bool) (*domain.Account, error) {
	if m.SetActiveFunc != nil {
		return m.SetActiveFunc(ctx, approver, role, id, active)
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockApprovalService) ListPending(ctx context.Context, approver *domain.TokenClaims, role domain.Role) ([]*domain.Account, error) {
	if m.ListPendingFunc != nil {
		return m.ListPendingFunc(ctx, approver, role)
	}
	return nil, nil
}

// MockExpenseService implements domain.ExpenseService for handler tests
type MockExpenseService struct {
	LogFunc                func(ctx context.Context, owner *domain.TokenClaims, expense *domain.Expense) (*domain.Expense, error)
	ListFunc               func(ctx context.Context, owner *domain.TokenClaims) ([]*domain.Expense, error)
	ReferralCommissionFunc func(ctx context.Context, referrer *domain.TokenClaims) (*domain.ReferralCommission, error)
}

func (m *MockExpenseService) Log(ctx context.Context, owner *domain.TokenClaims, expense *domain.Expense) (*domain.Expense, error) {
	if m.LogFunc != nil {
		return m.LogFunc(ctx, owner, expense)
	}
	return expense, nil
}

func (m *MockExpenseService) List(ctx context.Context, owner *domain.TokenClaims) ([]*domain.Expense, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, owner)
	}
	return nil, nil
}

func (m *MockExpenseService) ReferralCommission(ctx context.Context, referrer *domain.TokenClaims) (*domain.ReferralCommission, error) {
	if m.ReferralCommissionFunc != nil {
		return m.ReferralCommissionFunc(ctx, referrer)
	}
	return &domain.ReferralCommission{}, nil
}

// MockOTPService implements domain.OTPService
type MockOTPService struct {
	SendFunc    func(ctx context.Context, phone string, purpose domain.OTPPurpose) (*domain.OTPDispatch, error)
	VerifyFunc  func(ctx context.Context, phone, code string, purpose domain.OTPPurpose) (bool, error)
	CleanupFunc func(ctx context.Context) (int64, error)
}

func (m *MockOTPService) Send(ctx context.Context, phone string, purpose domain.OTPPurpose) (*domain.OTPDispatch, error) {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, phone, purpose)
	}
	return &domain.OTPDispatch{Phone: phone, Purpose: purpose}, nil
}

func (m *MockOTPService) Verify(ctx context.Context, phone, code string, purpose domain.OTPPurpose) (bool, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, phone, code, purpose)
	}
	return false, nil
}

func (m *MockOTPService) Cleanup(ctx context.Context) (int64, error) {
	if m.CleanupFunc != nil {
		return m.CleanupFunc(ctx)
	}
	return 0, nil
}

// MockPolicyService implements domain.PolicyService
type MockPolicyService struct {
	CheckPermissionFunc func(role domain.Role, resource, action string) (bool, error)
	AddPolicyFunc       func(role domain.Role, resource, action string) error
	Policies            [][]string
}

func (m *MockPolicyService) AddPolicy(role domain.Role, resource, action string) error {
	if m.AddPolicyFunc != nil {
		return m.AddPolicyFunc(role, resource, action)
	}
	m.Policies = append(m.Policies, []string{role.CasbinSubject(), resource, action})
	return nil
}

func (m *MockPolicyService) CheckPermission(role domain.Role, resource, action string) (bool, error) {
	if m.CheckPermissionFunc != nil {
		return m.CheckPermissionFunc(role, resource, action)
	}
	return true, nil
}

func (m *MockPolicyService) GetPolicies() [][]string {
	return m.Policies
}

// Compile-time interface compliance verification
var (
	_ domain.AuthService     = (*MockAuthService)(nil)
	_ domain.ApprovalService = (*MockApprovalService)(nil)
	_ domain.ExpenseService  = (*MockExpenseService)(nil)
	_ domain.OTPService      = (*MockOTPService)(nil)
	_ domain.PolicyService   = (*MockPolicyService)(nil)
)
