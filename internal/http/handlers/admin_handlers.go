package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/you/eventhub/domain"
	"github.com/you/eventhub/internal/http/response"
)

// AdminHandlers serves the registration approval workflow
type AdminHandlers struct {
	approvalSvc domain.ApprovalService
}

// NewAdminHandlers creates new admin handlers
func NewAdminHandlers(approvalSvc domain.ApprovalService) *AdminHandlers {
	return &AdminHandlers{approvalSvc: approvalSvc}
}

// DecideRequest carries an approval decision
type DecideRequest struct {
	Action string `json:"action" binding:"required"`
}

// SetActiveRequest toggles an approved account
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// Decide handles POST /api/admin/approvals/:kind/:id
func (h *AdminHandlers) Decide(c *gin.Context) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}
	role, id, err := target(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req DecideRequest
	if !bindJSON(c, &req) {
		return
	}
	action, err := domain.ParseApprovalAction(req.Action)
	if err != nil {
		response.Error(c, domain.NewFieldError("action", "must be approve or deny"))
		return
	}

	account, err := h.approvalSvc.Decide(c.Request.Context(), claims, role, id, action)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, accountView(account))
}

// SetActive handles PATCH /api/admin/accounts/:kind/:id/active
func (h *AdminHandlers) SetActive(c *gin.Context) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}
	role, id, err := target(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req SetActiveRequest
	if !bindJSON(c, &req) {
		return
	}

	account, err := h.approvalSvc.SetActive(c.Request.Context(), claims, role, id, *req.Active)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, accountView(account))
}

// ListPending handles GET /api/admin/accounts/pending?kind=
func (h *AdminHandlers) ListPending(c *gin.Context) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}
	role, err := parseKind(c.DefaultQuery("kind", "staff"), "")
	if err != nil {
		response.Error(c, err)
		return
	}

	accounts, err := h.approvalSvc.ListPending(c.Request.Context(), claims, role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, accountViews(accounts))
}

func target(c *gin.Context) (domain.Role, uint, error) {
	role, err := parseKind(c.Param("kind"), "")
	if err != nil {
		return "", 0, err
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		return "", 0, err
	}
	return role, id, nil
}
