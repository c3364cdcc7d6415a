package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/you/eventhub/domain"
	"github.com/you/eventhub/internal/mocks"
)

func TestCasbinMW_Enforce(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		authenticated  bool
		checkResult    bool
		checkErr       error
		expectedStatus int
	}{
		{name: "allowed", authenticated: true, checkResult: true, expectedStatus: http.StatusOK},
		{name: "denied", authenticated: true, checkResult: false, expectedStatus: http.StatusForbidden},
		{name: "enforcer failure", authenticated: true, checkErr: errors.New("model error"), expectedStatus: http.StatusInternalServerError},
		{name: "no claims", expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotRole domain.Role
			var gotPath, gotMethod string
			policy := &mocks.MockPolicyService{
				CheckPermissionFunc: func(role domain.Role, resource, action string) (bool, error) {
					gotRole, gotPath, gotMethod = role, resource, action
					return tt.checkResult, tt.checkErr
				},
			}

			r := gin.New()
			r.Use(func(c *gin.Context) {
				if tt.authenticated {
					c.Set(ClaimsKey, &domain.TokenClaims{AccountID: 3, Role: domain.RoleAdmin, Type: domain.TokenFull})
				}
				c.Next()
			})
			r.POST("/api/admin/approvals/:kind/:id", NewCasbinMW(policy).Enforce(), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/admin/approvals/staff/12", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.authenticated {
				assert.Equal(t, domain.RoleAdmin, gotRole)
				assert.Equal(t, "/api/admin/approvals/staff/12", gotPath)
				assert.Equal(t, http.MethodPost, gotMethod)
			}
		})
	}
}
