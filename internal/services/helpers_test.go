package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/you/eventhub/domain"
	"github.com/you/eventhub/internal/infrastructure/auth"
	"github.com/you/eventhub/internal/infrastructure/repositories"
	"github.com/you/eventhub/internal/mocks"
	"github.com/you/eventhub/internal/phone"
)

var baseTime = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

const (
	testPhone      = "+628123456789"
	testLocalPhone = "08123456789"
)

// fakeClock is a settable time source shared by every component of a harness
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

var testRateLimits = RateLimitConfig{
	MaxAttempts:    5,
	ResendInterval: time.Minute,
	Cooldown:       15 * time.Minute,
}

// harness wires the real services over an in-memory database with mock
// collaborators at the edges
type harness struct {
	t          *testing.T
	clock      *fakeClock
	db         *gorm.DB
	accounts   domain.AccountRepository
	otps       domain.OTPRepository
	expenses   domain.ExpenseRepository
	sms        *mocks.MockSMSProvider
	locker     *mocks.MockSendLocker
	audit      *mocks.MockAuditLogger
	google     *mocks.MockIdentityProvider
	tokens     *auth.JWTServiceImpl
	normalizer *phone.Normalizer
	limiter    domain.RateLimiter
	otp        domain.OTPService
	resolver   domain.IdentityResolver
	auth       domain.AuthService
	approval   domain.ApprovalService
	expense    domain.ExpenseService
}

type harnessOption func(*OTPConfig)

func withDelegatedOTP() harnessOption {
	return func(c *OTPConfig) { c.Delegated = true }
}

func withDevFallback() harnessOption {
	return func(c *OTPConfig) { c.DevFallback = true }
}

func withVerifyFailureLimit(n int) harnessOption {
	return func(c *OTPConfig) { c.MaxVerifyFailures = n }
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&repositories.DBAccount{},
		&repositories.DBOTPRecord{},
		&repositories.DBExpense{},
	))
	return db
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		t:          t,
		clock:      &fakeClock{now: baseTime},
		sms:        mocks.NewMockSMSProvider(),
		locker:     mocks.NewMockSendLocker(),
		audit:      mocks.NewMockAuditLogger(),
		google:     mocks.NewMockIdentityProvider(),
		normalizer: phone.NewNormalizer("ID"),
	}
	h.db = setupTestDB(t)
	h.accounts = repositories.NewAccountRepository(h.db)
	h.otps = repositories.NewOTPRepository(h.db)
	h.expenses = repositories.NewExpenseRepository(h.db)

	tokens, err := auth.NewJWTService("test-secret", "eventhub-test", 15*time.Minute, 7*24*time.Hour, auth.WithClock(h.clock.Now))
	require.NoError(t, err)
	h.tokens = tokens

	otpConfig := OTPConfig{Length: 6, TTL: 5 * time.Minute, AttemptWindow: testRateLimits.Cooldown}
	for _, opt := range opts {
		opt(&otpConfig)
	}

	log := zerolog.Nop()
	h.limiter = NewRateLimiter(h.otps, testRateLimits, h.clock.Now, log)
	h.otp = NewOTPService(h.otps, h.limiter, h.sms, h.locker, h.normalizer, h.audit, otpConfig, h.clock.Now, log)
	h.resolver = NewIdentityResolver(h.accounts, h.normalizer, log)
	h.auth = NewAuthService(h.accounts, h.resolver, h.otp, h.tokens, h.google, h.normalizer, h.audit, AuthConfig{
		RefreshGrace:     24 * time.Hour,
		RefreshableRoles: []domain.Role{domain.RoleUser, domain.RoleStaff},
	}, h.clock.Now, log)
	h.approval = NewApprovalService(h.accounts, h.audit, h.clock.Now, log)
	h.expense = NewExpenseService(h.expenses, h.accounts, 500, h.clock.Now)
	return h
}

// seedAccount stores an account directly, bypassing registration
func (h *harness) seedAccount(role domain.Role, code, phoneNumber string, state domain.RegistrationState, mutate ...func(*domain.Account)) *domain.Account {
	h.t.Helper()

	a := &domain.Account{
		Role:        role,
		ShortCode:   code,
		DisplayName: "Account " + code,
		Phone:       phoneNumber,
		LoginMethod: domain.LoginMethodPhone,
		State:       state,
	}
	for _, m := range mutate {
		m(a)
	}
	require.NoError(h.t, h.accounts.Create(context.Background(), a))
	return a
}

// sendUntilCeiling spends every send the limiter allows, spaced past the
// resend interval, and returns the last code delivered
func (h *harness) sendUntilCeiling(phoneNumber string, purpose domain.OTPPurpose) string {
	h.t.Helper()

	for i := 0; i < testRateLimits.MaxAttempts; i++ {
		if i > 0 {
			h.clock.Advance(testRateLimits.ResendInterval + time.Second)
		}
		_, err := h.otp.Send(context.Background(), phoneNumber, purpose)
		require.NoError(h.t, err, "send %d", i+1)
	}
	return h.lastCode(phoneNumber)
}

// wrongCode returns a code of the same shape that differs from code
func wrongCode(code string) string {
	first := byte('0')
	if code[0] == '0' {
		first = '1'
	}
	return string(first) + code[1:]
}

// lastCode returns the most recent self-managed code texted to phoneNumber
func (h *harness) lastCode(phoneNumber string) string {
	h.t.Helper()

	code := h.sms.LastCode(phoneNumber)
	require.NotEmpty(h.t, code, "no code sent to %s", phoneNumber)
	return code
}

func withEmail(email string) func(*domain.Account) {
	return func(a *domain.Account) { a.Email = email }
}

func withGoogleLogin() func(*domain.Account) {
	return func(a *domain.Account) { a.LoginMethod = domain.LoginMethodGoogle }
}

func superAdmin() func(*domain.Account) {
	return func(a *domain.Account) { a.IsSuperAdmin = true }
}

func (h *harness) fullClaims(a *domain.Account) *domain.TokenClaims {
	claims := domain.ClaimsForAccount(a)
	claims.Type = domain.TokenFull
	return claims
}
