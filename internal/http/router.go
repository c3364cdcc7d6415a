package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/you/eventhub/internal/http/handlers"
	"github.com/you/eventhub/internal/http/middleware"
)

// Handlers groups every handler set the router mounts.
type Handlers struct {
	Auth    *handlers.AuthHandlers
	Admin   *handlers.AdminHandlers
	Expense *handlers.ExpenseHandlers
	Cleanup *handlers.CleanupHandlers
	Policy  *handlers.PolicyHandlers
}

func BuildRouter(h Handlers, jwtmw *middleware.AuthMW, cb middleware.CasbinMiddleware, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(log), gin.Recovery())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	api := r.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/otp/request", h.Auth.RequestOTP)
	auth.POST("/otp/verify", h.Auth.VerifyOTP)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/login/verify", h.Auth.LoginVerify)
	auth.POST("/google", h.Auth.Google)
	auth.POST("/refresh", h.Auth.Refresh)

	temp := auth.Group("/").Use(jwtmw.WithTempToken())
	temp.POST("/register", h.Auth.Register)
	temp.POST("/google/phone/request", h.Auth.GooglePhoneRequest)
	temp.POST("/google/phone/verify", h.Auth.GooglePhoneVerify)

	api.POST("/internal/cleanup", h.Cleanup.Run)

	v := api.Group("/").Use(jwtmw.WithJWT(), cb.Enforce())
	v.GET("/me", h.Auth.Me)
	v.GET("/expenses", h.Expense.List)
	v.POST("/expenses", h.Expense.Create)
	v.GET("/referrals/commission", h.Expense.Commission)

	adm := api.Group("/admin").Use(jwtmw.WithJWT(), cb.Enforce())
	adm.POST("/approvals/:kind/:id", h.Admin.Decide)
	adm.PATCH("/accounts/:kind/:id/active", h.Admin.SetActive)
	adm.GET("/accounts/pending", h.Admin.ListPending)
	adm.GET("/policies", h.Policy.List)

	return r
}
