package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/you/eventhub/domain"
	"github.com/you/eventhub/internal/http/response"
)

// PolicyHandlers exposes the route grants to admins
type PolicyHandlers struct {
	policySvc domain.PolicyService
}

// NewPolicyHandlers creates new policy handlers
func NewPolicyHandlers(policySvc domain.PolicyService) *PolicyHandlers {
	return &PolicyHandlers{policySvc: policySvc}
}

// PolicyView is one subject/resource/action grant
type PolicyView struct {
	Subject  string `json:"subject"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// List handles GET /api/admin/policies
func (h *PolicyHandlers) List(c *gin.Context) {
	policies := h.policySvc.GetPolicies()
	out := make([]PolicyView, 0, len(policies))
	for _, p := range policies {
		if len(p) < 3 {
			continue
		}
		out = append(out, PolicyView{Subject: p[0], Resource: p[1], Action: p[2]})
	}
	response.OK(c, http.StatusOK, out)
}
