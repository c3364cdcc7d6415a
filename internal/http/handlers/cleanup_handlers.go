package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/you/eventhub/domain"
	"github.com/you/eventhub/internal/http/response"
)

// CleanupSecretHeader authenticates the external cleanup trigger.
const CleanupSecretHeader = "X-Cleanup-Secret"

// CleanupHandlers exposes the OTP purge to a scheduler
type CleanupHandlers struct {
	otpSvc domain.OTPService
	secret string
}

// NewCleanupHandlers creates the cleanup trigger. An empty secret disables it.
func NewCleanupHandlers(otpSvc domain.OTPService, secret string) *CleanupHandlers {
	return &CleanupHandlers{otpSvc: otpSvc, secret: secret}
}

// Run handles POST /api/internal/cleanup
func (h *CleanupHandlers) Run(c *gin.Context) {
	given := c.GetHeader(CleanupSecretHeader)
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(given), []byte(h.secret)) != 1 {
		response.Error(c, domain.ErrInsufficientRole)
		return
	}

	deleted, err := h.otpSvc.Cleanup(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	zerolog.Ctx(c.Request.Context()).Info().Int64("deleted", deleted).Msg("otp cleanup triggered")
	response.OK(c, http.StatusOK, gin.H{"deleted": deleted})
}
