package middleware

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/you/eventhub/domain"
	"github.com/you/eventhub/internal/http/response"
)

// Context keys set by the token middleware
const (
	ClaimsKey   = "claims"
	UserIDKey   = "user_id"
	UserRoleKey = "user_role"
)

// AuthMW wraps the token service for middleware
type AuthMW struct {
	tokenSvc domain.TokenService
}

// NewAuthMW creates new auth middleware wrapper
func NewAuthMW(tokenSvc domain.TokenService) *AuthMW {
	return &AuthMW{tokenSvc: tokenSvc}
}

// WithJWT admits only full tokens.
func (mw *AuthMW) WithJWT() gin.HandlerFunc {
	return mw.require(mw.tokenSvc.VerifyFullToken)
}

// WithTempToken admits only temp tokens, for the registration and bound
// phone steps.
func (mw *AuthMW) WithTempToken() gin.HandlerFunc {
	return mw.require(mw.tokenSvc.VerifyTempToken)
}

func (mw *AuthMW) require(verify func(string) (*domain.TokenClaims, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := BearerToken(c)
		if err != nil {
			response.Abort(c, err)
			return
		}

		claims, err := verify(token)
		if err != nil {
			response.Abort(c, err)
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(UserIDKey, strconv.FormatUint(uint64(claims.AccountID), 10))
		c.Set(UserRoleKey, claims.Role)
		c.Next()
	}
}

// BearerToken extracts the raw token from the Authorization header.
func BearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", domain.ErrAuthenticationMissing
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", domain.ErrTokenInvalid
	}
	return strings.TrimSpace(parts[1]), nil
}

// Claims returns the verified claims stored by the token middleware.
func Claims(c *gin.Context) (*domain.TokenClaims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*domain.TokenClaims)
	return claims, ok
}
