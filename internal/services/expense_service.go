package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/you/eventhub/domain"
)

// ExpenseServiceImpl implements domain.ExpenseService
type ExpenseServiceImpl struct {
	expenses        domain.ExpenseRepository
	accounts        domain.AccountRepository
	rateBasisPoints int
	clock           func() time.Time
}

// NewExpenseService creates a new expense service
func NewExpenseService(expenses domain.ExpenseRepository, accounts domain.AccountRepository, rateBasisPoints int, clock func() time.Time) domain.ExpenseService {
	if clock == nil {
		clock = time.Now
	}
	return &ExpenseServiceImpl{
		expenses:        expenses,
		accounts:        accounts,
		rateBasisPoints: rateBasisPoints,
		clock:           clock,
	}
}

// Log implements domain.ExpenseService
func (s *ExpenseServiceImpl) Log(ctx context.Context, owner *domain.TokenClaims, expense *domain.Expense) (*domain.Expense, error) {
	if expense.AmountCents <= 0 {
		return nil, domain.NewFieldError("amountCents", "must be positive")
	}
	e := &domain.Expense{
		OwnerRole:   owner.Role,
		OwnerID:     owner.AccountID,
		AmountCents: expense.AmountCents,
		Category:    strings.TrimSpace(expense.Category),
		Note:        strings.TrimSpace(expense.Note),
		SpentAt:     expense.SpentAt,
	}
	if e.SpentAt.IsZero() {
		e.SpentAt = s.clock()
	}
	if err := s.expenses.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to log expense: %w", err)
	}
	return e, nil
}

// List implements domain.ExpenseService
func (s *ExpenseServiceImpl) List(ctx context.Context, owner *domain.TokenClaims) ([]*domain.Expense, error) {
	return s.expenses.ListByOwner(ctx, owner.Role, owner.AccountID)
}

// ReferralCommission implements domain.ExpenseService. It only reads.
func (s *ExpenseServiceImpl) ReferralCommission(ctx context.Context, referrer *domain.TokenClaims) (*domain.ReferralCommission, error) {
	if referrer.Role != domain.RoleUser && referrer.Role != domain.RoleStaff {
		return nil, domain.ErrInsufficientRole
	}

	code := referrer.ShortCode
	if code == "" {
		account, err := s.accounts.FindByID(ctx, referrer.Role, referrer.AccountID)
		if err != nil {
			return nil, err
		}
		code = account.ShortCode
	}

	referred, err := s.accounts.ListReferred(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to list referred users: %w", err)
	}
	ids := make([]uint, 0, len(referred))
	for _, a := range referred {
		ids = append(ids, a.ID)
	}

	total, err := s.expenses.SumByOwners(ctx, domain.RoleUser, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to sum referred expenses: %w", err)
	}

	return &domain.ReferralCommission{
		ReferralCode:      code,
		ReferredCount:     len(referred),
		TotalExpenseCents: total,
		RateBasisPoints:   s.rateBasisPoints,
		CommissionCents:   total * int64(s.rateBasisPoints) / 10000,
	}, nil
}
