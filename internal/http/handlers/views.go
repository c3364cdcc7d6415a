package handlers

import (
	"time"

	"github.com/you/eventhub/domain"
)

// AccountView is the public shape of an account.
type AccountView struct {
	ID           uint       `json:"id"`
	Kind         string     `json:"kind"`
	ShortCode    string     `json:"shortCode"`
	DisplayName  string     `json:"displayName"`
	Email        string     `json:"email,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	SocialHandle string     `json:"socialHandle,omitempty"`
	LoginMethod  string     `json:"loginMethod"`
	ReferredBy   string     `json:"referredBy,omitempty"`
	Status       string     `json:"status"`
	IsActive     bool       `json:"isActive"`
	IsSuperAdmin bool       `json:"isSuperAdmin,omitempty"`
	GoogleLinked bool       `json:"googleLinked"`
	ApprovedAt   *time.Time `json:"approvedAt,omitempty"`
	ApprovedBy   string     `json:"approvedBy,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func accountView(a *domain.Account) *AccountView {
	if a == nil {
		return nil
	}
	return &AccountView{
		ID:           a.ID,
		Kind:         string(a.Role),
		ShortCode:    a.ShortCode,
		DisplayName:  a.DisplayName,
		Email:        a.Email,
		Phone:        a.Phone,
		SocialHandle: a.SocialHandle,
		LoginMethod:  string(a.LoginMethod),
		ReferredBy:   a.ReferredBy,
		Status:       string(a.State.Status()),
		IsActive:     a.State.IsActive(),
		IsSuperAdmin: a.IsSuper(),
		GoogleLinked: a.GoogleID != "",
		ApprovedAt:   a.ApprovedAt,
		ApprovedBy:   a.ApprovedBy,
		CreatedAt:    a.CreatedAt,
	}
}

func accountViews(accounts []*domain.Account) []*AccountView {
	out := make([]*AccountView, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, accountView(a))
	}
	return out
}

// AuthView is returned by every step that issues a token.
type AuthView struct {
	Token                     string       `json:"token"`
	TokenType                 string       `json:"tokenType"`
	ExpiresAt                 time.Time    `json:"expiresAt"`
	IsNewAccount              bool         `json:"isNewAccount"`
	RequiresPhoneVerification bool         `json:"requiresPhoneVerification,omitempty"`
	Account                   *AccountView `json:"account,omitempty"`
}

func authView(r *domain.AuthResult) *AuthView {
	return &AuthView{
		Token:                     r.Token,
		TokenType:                 string(r.TokenType),
		ExpiresAt:                 r.ExpiresAt,
		IsNewAccount:              r.IsNewAccount,
		RequiresPhoneVerification: r.RequiresPhoneVerification,
		Account:                   accountView(r.Account),
	}
}

// DispatchView reports a sent code. The code itself is never returned.
type DispatchView struct {
	Phone             string    `json:"phone"`
	Purpose           string    `json:"purpose"`
	ExpiresAt         time.Time `json:"expiresAt"`
	RemainingAttempts int       `json:"remainingAttempts"`
}

func dispatchView(d *domain.OTPDispatch) *DispatchView {
	return &DispatchView{
		Phone:             d.Phone,
		Purpose:           string(d.Purpose),
		ExpiresAt:         d.ExpiresAt,
		RemainingAttempts: d.RemainingAttempts,
	}
}

// ExpenseView is the public shape of an expense.
type ExpenseView struct {
	ID          uint      `json:"id"`
	AmountCents int64     `json:"amountCents"`
	Category    string    `json:"category,omitempty"`
	Note        string    `json:"note,omitempty"`
	SpentAt     time.Time `json:"spentAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

func expenseView(e *domain.Expense) *ExpenseView {
	return &ExpenseView{
		ID:          e.ID,
		AmountCents: e.AmountCents,
		Category:    e.Category,
		Note:        e.Note,
		SpentAt:     e.SpentAt,
		CreatedAt:   e.CreatedAt,
	}
}
