package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/you/eventhub/domain"
	httpx "github.com/you/eventhub/internal/http"
	"github.com/you/eventhub/internal/http/handlers"
	"github.com/you/eventhub/internal/http/middleware"
	"github.com/you/eventhub/internal/infrastructure/audit"
	"github.com/you/eventhub/internal/infrastructure/auth"
	"github.com/you/eventhub/internal/infrastructure/database"
	"github.com/you/eventhub/internal/infrastructure/repositories"
	"github.com/you/eventhub/internal/mocks"
	"github.com/you/eventhub/internal/phone"
	"github.com/you/eventhub/internal/services"
)

const cleanupSecret = "e2e-cleanup"

// clock is shared by every service and the HTTP goroutines.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// TestServer is the full service stack over sqlite and miniredis, with the
// SMS and Google collaborators stubbed.
type TestServer struct {
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	Clock    *clock
	SMS      *mocks.MockSMSProvider
	Google   *mocks.MockIdentityProvider
	Accounts domain.AccountRepository
}

func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// File-backed so the casbin adapter can open a second connection.
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "e2e.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&repositories.DBAccount{}, &repositories.DBOTPRecord{}, &repositories.DBExpense{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	clk := &clock{now: time.Now().UTC().Truncate(time.Second)}
	log := zerolog.Nop()
	normalizer := phone.NewNormalizer("ID")
	auditLog := audit.NewZerologAuditLogger(log)
	sms := mocks.NewMockSMSProvider()
	google := mocks.NewMockIdentityProvider()

	accounts := repositories.NewAccountRepository(db)
	otps := repositories.NewOTPRepository(db)
	expenses := repositories.NewExpenseRepository(db)

	tokens, err := auth.NewJWTService("e2e-secret", "eventhub-e2e", 30*time.Minute, 7*24*time.Hour, auth.WithClock(clk.Now))
	require.NoError(t, err)

	limiter := services.NewRateLimiter(otps, services.RateLimitConfig{
		MaxAttempts:    5,
		ResendInterval: time.Minute,
		Cooldown:       time.Hour,
	}, clk.Now, log)
	otpSvc := services.NewOTPService(otps, limiter, sms, database.NewSendLock(rdb, 15*time.Second),
		normalizer, auditLog, services.OTPConfig{Length: 6, TTL: 10 * time.Minute, MaxVerifyFailures: 5, AttemptWindow: time.Hour}, clk.Now, log)
	resolver := services.NewIdentityResolver(accounts, normalizer, log)
	authSvc := services.NewAuthService(accounts, resolver, otpSvc, tokens, google, normalizer, auditLog,
		services.AuthConfig{RefreshGrace: 30 * 24 * time.Hour, RefreshableRoles: []domain.Role{domain.RoleUser, domain.RoleStaff}},
		clk.Now, log)
	approvalSvc := services.NewApprovalService(accounts, auditLog, clk.Now, log)
	expenseSvc := services.NewExpenseService(expenses, accounts, 500, clk.Now)

	cas, err := auth.NewCasbinService(db, "")
	require.NoError(t, err)
	policySvc := services.NewPolicyService(cas.E)
	require.NoError(t, services.SeedPolicies(policySvc, services.DefaultPolicies))

	router := httpx.BuildRouter(httpx.Handlers{
		Auth:    handlers.NewAuthHandlers(authSvc),
		Admin:   handlers.NewAdminHandlers(approvalSvc),
		Expense: handlers.NewExpenseHandlers(expenseSvc),
		Cleanup: handlers.NewCleanupHandlers(otpSvc, cleanupSecret),
		Policy:  handlers.NewPolicyHandlers(policySvc),
	}, middleware.NewAuthMW(tokens), middleware.NewCasbinMW(policySvc), log)

	return &TestServer{
		Router:   router,
		DB:       db,
		Redis:    rdb,
		Clock:    clk,
		SMS:      sms,
		Google:   google,
		Accounts: accounts,
	}
}

// Response is the decoded envelope plus the raw status.
type Response struct {
	Status  int
	Success bool
	Code    string
	Error   string
	Fields  map[string]string
	Data    map[string]interface{}
	List    []interface{}
	Body    map[string]interface{}
}

// Do sends a JSON request with an optional bearer token.
func (s *TestServer) Do(t *testing.T, method, path, token string, body interface{}) *Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	var env struct {
		Success bool              `json:"success"`
		Code    string            `json:"code"`
		Error   string            `json:"error"`
		Fields  map[string]string `json:"fields"`
		Data    json.RawMessage   `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	resp := &Response{
		Status:  w.Code,
		Success: env.Success,
		Code:    env.Code,
		Error:   env.Error,
		Fields:  env.Fields,
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp.Body))
	switch {
	case len(env.Data) > 0 && env.Data[0] == '[':
		require.NoError(t, json.Unmarshal(env.Data, &resp.List))
	case len(env.Data) > 0 && env.Data[0] == '{':
		require.NoError(t, json.Unmarshal(env.Data, &resp.Data))
	}
	return resp
}

// SeedAdmin stores an approved admin directly, since admins cannot be
// approved without an existing admin.
func (s *TestServer) SeedAdmin(t *testing.T, phoneNumber string, super bool) *domain.Account {
	t.Helper()
	now := s.Clock.Now()
	a := &domain.Account{
		Role:         domain.RoleAdmin,
		ShortCode:    "A000001",
		DisplayName:  "Root",
		Phone:        phoneNumber,
		LoginMethod:  domain.LoginMethodPhone,
		State:        domain.ApprovedState(true),
		IsSuperAdmin: super,
		ApprovedAt:   &now,
		ApprovedBy:   domain.SystemApprover,
	}
	require.NoError(t, s.Accounts.Create(context.Background(), a))
	return a
}

// PhoneLogin runs the identifier login for an existing account and returns
// the full token.
func (s *TestServer) PhoneLogin(t *testing.T, identifier, kind, phoneNumber string) string {
	t.Helper()
	resp := s.Do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"identifier": identifier, "kind": kind})
	require.Equal(t, http.StatusOK, resp.Status, resp.Error)

	code := s.SMS.LastCode(phoneNumber)
	require.NotEmpty(t, code)
	resp = s.Do(t, http.MethodPost, "/api/auth/login/verify", "", map[string]string{"identifier": identifier, "kind": kind, "code": code})
	require.Equal(t, http.StatusOK, resp.Status, resp.Error)
	return resp.Data["token"].(string)
}
