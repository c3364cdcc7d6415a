package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/you/eventhub/domain"
	"github.com/you/eventhub/internal/http/response"
)

// ExpenseHandlers serves expense logging and the referral commission view
type ExpenseHandlers struct {
	expenseSvc domain.ExpenseService
}

// NewExpenseHandlers creates new expense handlers
func NewExpenseHandlers(expenseSvc domain.ExpenseService) *ExpenseHandlers {
	return &ExpenseHandlers{expenseSvc: expenseSvc}
}

// CreateExpenseRequest logs one expense
type CreateExpenseRequest struct {
	AmountCents int64      `json:"amountCents" binding:"required,gt=0"`
	Category    string     `json:"category" binding:"max=64"`
	Note        string     `json:"note" binding:"max=500"`
	SpentAt     *time.Time `json:"spentAt"`
}

// Create handles POST /api/expenses
func (h *ExpenseHandlers) Create(c *gin.Context) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}
	var req CreateExpenseRequest
	if !bindJSON(c, &req) {
		return
	}

	expense := &domain.Expense{
		AmountCents: req.AmountCents,
		Category:    req.Category,
		Note:        req.Note,
	}
	if req.SpentAt != nil {
		expense.SpentAt = *req.SpentAt
	}

	logged, err := h.expenseSvc.Log(c.Request.Context(), claims, expense)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusCreated, expenseView(logged))
}

// List handles GET /api/expenses
func (h *ExpenseHandlers) List(c *gin.Context) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}

	expenses, err := h.expenseSvc.List(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]*ExpenseView, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, expenseView(e))
	}
	response.OK(c, http.StatusOK, out)
}

// Commission handles GET /api/referrals/commission
func (h *ExpenseHandlers) Commission(c *gin.Context) {
	claims, ok := callerClaims(c)
	if !ok {
		return
	}

	rc, err := h.expenseSvc.ReferralCommission(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"referralCode":      rc.ReferralCode,
		"referredCount":     rc.ReferredCount,
		"totalExpenseCents": rc.TotalExpenseCents,
		"rateBasisPoints":   rc.RateBasisPoints,
		"commissionCents":   rc.CommissionCents,
	})
}
