package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/you/eventhub/domain"
	"github.com/you/eventhub/internal/http/response"
)

// CasbinMiddleware defines the interface for Casbin authorization middleware
type CasbinMiddleware interface {
	Enforce() gin.HandlerFunc
}

// CasbinMW checks the caller's role against the route policies
type CasbinMW struct {
	policy domain.PolicyService
}

// NewCasbinMW creates new casbin middleware wrapper
func NewCasbinMW(policy domain.PolicyService) *CasbinMW {
	return &CasbinMW{policy: policy}
}

// Enforce must run after a token middleware.
func (mw *CasbinMW) Enforce() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Abort(c, domain.ErrAuthenticationMissing)
			return
		}

		allowed, err := mw.policy.CheckPermission(claims.Role, c.Request.URL.Path, c.Request.Method)
		if err != nil {
			response.Abort(c, err)
			return
		}
		if !allowed {
			response.Abort(c, domain.ErrInsufficientRole)
			return
		}
		c.Next()
	}
}
