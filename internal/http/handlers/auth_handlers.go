package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/you/eventhub/domain"
	"github.com/you/eventhub/internal/http/middleware"
	"github.com/you/eventhub/internal/http/response"
)

// AuthHandlers handles authentication HTTP requests
type AuthHandlers struct {
	authSvc domain.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authSvc domain.AuthService) *AuthHandlers {
	return &AuthHandlers{authSvc: authSvc}
}

// OTPRequest starts the phone flow
type OTPRequest struct {
	Phone string `json:"phone" binding:"required"`
	Kind  string `json:"kind"`
}

// OTPVerifyRequest completes the phone flow
type OTPVerifyRequest struct {
	Phone string `json:"phone" binding:"required"`
	Kind  string `json:"kind"`
	Code  string `json:"code" binding:"required,numeric"`
}

// LoginRequest starts an identifier login
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Kind       string `json:"kind" binding:"required"`
}

// LoginVerifyRequest completes an identifier login
type LoginVerifyRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Kind       string `json:"kind" binding:"required"`
	Code       string `json:"code" binding:"required,numeric"`
}

// RegisterRequest carries the profile submitted with a temp token
type RegisterRequest struct {
	DisplayName  string `json:"displayName" binding:"required,max=120"`
	Email        string `json:"email" binding:"omitempty,email"`
	Phone        string `json:"phone"`
	SocialHandle string `json:"socialHandle" binding:"max=120"`
	ReferredBy   string `json:"referredBy"`
	Kind         string `json:"kind"`
}

// GoogleRequest carries a Google ID token
type GoogleRequest struct {
	IDToken string `json:"idToken" binding:"required"`
	Kind    string `json:"kind" binding:"required"`
}

// GooglePhoneRequest is the bound phone step of the Google flow
type GooglePhoneRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// GooglePhoneVerifyRequest completes the bound phone step
type GooglePhoneVerifyRequest struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required,numeric"`
}

// RefreshRequest represents token refresh request
type RefreshRequest struct {
	Token string `json:"token" binding:"required"`
}

// RequestOTP handles POST /api/auth/otp/request
func (h *AuthHandlers) RequestOTP(c *gin.Context) {
	var req OTPRequest
	if !bindJSON(c, &req) {
		return
	}
	role, err := parseKind(req.Kind, domain.RoleUser)
	if err != nil {
		response.Error(c, err)
		return
	}

	dispatch, err := h.authSvc.RequestPhoneOTP(c.Request.Context(), req.Phone, role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, dispatchView(dispatch))
}

// VerifyOTP handles POST /api/auth/otp/verify
func (h *AuthHandlers) VerifyOTP(c *gin.Context) {
	var req OTPVerifyRequest
	if !bindJSON(c, &req) {
		return
	}
	role, err := parseKind(req.Kind, domain.RoleUser)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.authSvc.VerifyPhoneOTP(c.Request.Context(), req.Phone, role, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, authView(result))
}

// Login handles POST /api/auth/login
func (h *AuthHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	role, err := parseKind(req.Kind, "")
	if err != nil {
		response.Error(c, err)
		return
	}

	challenge, err := h.authSvc.InitiateLogin(c.Request.Context(), req.Identifier, role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"maskedPhone":       challenge.MaskedPhone,
		"shortCode":         challenge.ShortCode,
		"remainingAttempts": challenge.RemainingAttempts,
		"expiresAt":         challenge.ExpiresAt,
	})
}

// LoginVerify handles POST /api/auth/login/verify
func (h *AuthHandlers) LoginVerify(c *gin.Context) {
	var req LoginVerifyRequest
	if !bindJSON(c, &req) {
		return
	}
	role, err := parseKind(req.Kind, "")
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.authSvc.CompleteLogin(c.Request.Context(), req.Identifier, role, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, authView(result))
}

// Register handles POST /api/auth/register. Kind defaults to the temp
// token's role; a different kind is refused by the service.
func (h *AuthHandlers) Register(c *gin.Context) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}
	token, err := middleware.BearerToken(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	role, err := parseKind(req.Kind, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.authSvc.CompleteRegistration(c.Request.Context(), token, role, domain.RegistrationProfile{
		DisplayName:  req.DisplayName,
		Email:        req.Email,
		Phone:        req.Phone,
		SocialHandle: req.SocialHandle,
		ReferredBy:   req.ReferredBy,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	data := gin.H{
		"account":         accountView(result.Account),
		"pendingApproval": result.Token == "",
	}
	if result.Token != "" {
		data["token"] = result.Token
		data["tokenType"] = domain.TokenFull
		data["expiresAt"] = result.ExpiresAt
	}
	response.OK(c, http.StatusCreated, data)
}

// Google handles POST /api/auth/google
func (h *AuthHandlers) Google(c *gin.Context) {
	var req GoogleRequest
	if !bindJSON(c, &req) {
		return
	}
	role, err := parseKind(req.Kind, "")
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.authSvc.GoogleLogin(c.Request.Context(), req.IDToken, role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, authView(result))
}

// GooglePhoneRequest handles POST /api/auth/google/phone/request
func (h *AuthHandlers) GooglePhoneRequest(c *gin.Context) {
	token, err := middleware.BearerToken(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req GooglePhoneRequest
	if !bindJSON(c, &req) {
		return
	}

	dispatch, err := h.authSvc.RequestGooglePhoneOTP(c.Request.Context(), token, req.Phone)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, dispatchView(dispatch))
}

// GooglePhoneVerify handles POST /api/auth/google/phone/verify
func (h *AuthHandlers) GooglePhoneVerify(c *gin.Context) {
	token, err := middleware.BearerToken(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req GooglePhoneVerifyRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authSvc.VerifyGooglePhone(c.Request.Context(), token, req.Phone, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, authView(result))
}

// Refresh handles POST /api/auth/refresh
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req RefreshRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authSvc.Refresh(c.Request.Context(), req.Token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, authView(result))
}

// Me handles GET /api/me
func (h *AuthHandlers) Me(c *gin.Context) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}

	account, err := h.authSvc.Profile(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, accountView(account))
}
