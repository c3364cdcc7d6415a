package handlers

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/you/eventhub/domain"
	"github.com/you/eventhub/internal/http/middleware"
	"github.com/you/eventhub/internal/http/response"
)

// Field errors are reported under their json names.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// bindJSON binds the body into req and writes a validation failure if it
// cannot. It reports whether the handler should continue.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, bindingError(err))
		return false
	}
	return true
}

func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.NewFieldError("body", "must be a valid JSON object")
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}
	return &domain.ValidationError{Fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "numeric":
		return "must contain only digits"
	}
	return "is invalid"
}

// parseKind reads an account kind, falling back to def when raw is blank.
func parseKind(raw string, def domain.Role) (domain.Role, error) {
	if strings.TrimSpace(raw) == "" && def != "" {
		return def, nil
	}
	role, err := domain.ParseRole(raw)
	if err != nil {
		return "", domain.NewFieldError("kind", "must be user, staff or admin")
	}
	return role, nil
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, domain.NewFieldError("id", "must be a positive integer")
	}
	return uint(id), nil
}

// callerClaims fetches the claims set by the token middleware, writing the
// failure itself when there are none.
func callerClaims(c *gin.Context) (*domain.TokenClaims, bool) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, domain.ErrAuthenticationMissing)
	}
	return claims, ok
}
