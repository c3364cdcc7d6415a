package services

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/you/eventhub/domain"
	"github.com/you/eventhub/internal/infrastructure/auth"
	"github.com/you/eventhub/internal/mocks"
)

// createPolicyServiceForTest creates a PolicyService with mock Casbin enforcer
func createPolicyServiceForTest(t *testing.T) (domain.PolicyService, *mocks.MockCasbinEnforcer) {
	t.Helper()

	enforcer := mocks.NewMockCasbinEnforcer()
	return NewPolicyServiceWithEnforcer(enforcer), enforcer
}

func TestPolicyServiceImpl_AddPolicy(t *testing.T) {
	tests := []struct {
		name          string
		setupMock     func(*mocks.MockCasbinEnforcer)
		expectedError error
		expectedSaves int
	}{
		{
			name:          "new policy is saved",
			expectedSaves: 1,
		},
		{
			name: "existing policy is not saved again",
			setupMock: func(enforcer *mocks.MockCasbinEnforcer) {
				enforcer.AddPolicyFunc = func(params ...interface{}) (bool, error) {
					return false, nil
				}
			},
			expectedSaves: 0,
		},
		{
			name: "add policy fails",
			setupMock: func(enforcer *mocks.MockCasbinEnforcer) {
				enforcer.AddPolicyFunc = func(params ...interface{}) (bool, error) {
					return false, errors.New("adapter unavailable")
				}
			},
			expectedError: errors.New("adapter unavailable"),
		},
		{
			name: "save fails",
			setupMock: func(enforcer *mocks.MockCasbinEnforcer) {
				enforcer.SavePolicyFunc = func() error {
					return errors.New("disk full")
				}
			},
			expectedError: errors.New("disk full"),
			expectedSaves: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policyService, enforcer := createPolicyServiceForTest(t)
			if tt.setupMock != nil {
				tt.setupMock(enforcer)
			}

			err := policyService.AddPolicy(domain.RoleStaff, "/api/expenses", "GET")
			if tt.expectedError != nil {
				assert.EqualError(t, err, tt.expectedError.Error())
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectedSaves, enforcer.SaveCalls)
		})
	}
}

func TestPolicyServiceImpl_UsesRoleSubjects(t *testing.T) {
	policyService, enforcer := createPolicyServiceForTest(t)

	require.NoError(t, policyService.AddPolicy(domain.RoleAdmin, "/api/admin/pending", "GET"))

	policies := policyService.GetPolicies()
	require.Len(t, policies, 1)
	assert.Equal(t, []string{"role_admin", "/api/admin/pending", "GET"}, policies[0])

	allowed, err := policyService.CheckPermission(domain.RoleAdmin, "/api/admin/pending", "GET")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = policyService.CheckPermission(domain.RoleUser, "/api/admin/pending", "GET")
	require.NoError(t, err)
	assert.False(t, allowed)

	enforcer.EnforceFunc = func(rvals ...interface{}) (bool, error) {
		return false, errors.New("model not loaded")
	}
	_, err = policyService.CheckPermission(domain.RoleAdmin, "/api/admin/pending", "GET")
	assert.Error(t, err)
}

func TestSeedPolicies_DefaultRouteGrants(t *testing.T) {
	// SavePolicy truncates outside its transaction; a single :memory: connection would block
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "casbin.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	casbinSvc, err := auth.NewCasbinService(db, "")
	require.NoError(t, err)
	policyService := NewPolicyService(casbinSvc.E)

	require.NoError(t, SeedPolicies(policyService, DefaultPolicies))
	// seeding twice changes nothing
	require.NoError(t, SeedPolicies(policyService, DefaultPolicies))
	assert.Len(t, policyService.GetPolicies(), len(DefaultPolicies))

	tests := []struct {
		role     domain.Role
		path     string
		method   string
		expected bool
	}{
		{domain.RoleUser, "/api/me", "GET", true},
		{domain.RoleUser, "/api/expenses", "POST", true},
		{domain.RoleUser, "/api/expenses", "DELETE", false},
		{domain.RoleUser, "/api/referrals/commission", "GET", true},
		{domain.RoleUser, "/api/admin/pending", "GET", false},
		{domain.RoleStaff, "/api/referrals/commission", "GET", true},
		{domain.RoleStaff, "/api/admin/staff/4/decision", "POST", false},
		{domain.RoleAdmin, "/api/admin/staff/4/decision", "POST", true},
		{domain.RoleAdmin, "/api/admin/users/9/active", "PATCH", true},
		{domain.RoleAdmin, "/api/referrals/commission", "GET", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+" "+tt.method+" "+tt.path, func(t *testing.T) {
			allowed, err := policyService.CheckPermission(tt.role, tt.path, tt.method)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, allowed)
		})
	}
}
