package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/you/eventhub/domain"
)

// ExpenseRepositoryImpl implements domain.ExpenseRepository using GORM
type ExpenseRepositoryImpl struct {
	db *gorm.DB
}

// DBExpense represents the database model for Expense
type DBExpense struct {
	ID          uint      `gorm:"primaryKey"`
	OwnerRole   string    `gorm:"size:16;not null;index:idx_expenses_owner"`
	OwnerID     uint      `gorm:"not null;index:idx_expenses_owner"`
	AmountCents int64     `gorm:"not null"`
	Category    string    `gorm:"size:64;index"`
	Note        string    `gorm:"size:512"`
	SpentAt     time.Time `gorm:"index"`
	CreatedAt   time.Time
}

// TableName returns the table name for GORM
func (DBExpense) TableName() string {
	return "expenses"
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *gorm.DB) domain.ExpenseRepository {
	return &ExpenseRepositoryImpl{db: db}
}

// Create implements domain.ExpenseRepository
func (r *ExpenseRepositoryImpl) Create(ctx context.Context, expense *domain.Expense) error {
	row := &DBExpense{
		OwnerRole:   string(expense.OwnerRole),
		OwnerID:     expense.OwnerID,
		AmountCents: expense.AmountCents,
		Category:    expense.Category,
		Note:        expense.Note,
		SpentAt:     expense.SpentAt,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	expense.ID = row.ID
	expense.CreatedAt = row.CreatedAt
	return nil
}

// ListByOwner implements domain.ExpenseRepository
func (r *ExpenseRepositoryImpl) ListByOwner(ctx context.Context, role domain.Role, ownerID uint) ([]*domain.Expense, error) {
	var rows []DBExpense
	err := r.db.WithContext(ctx).
		Where("owner_role = ? AND owner_id = ?", string(role), ownerID).
		Order("spent_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Expense, 0, len(rows))
	for _, row := range rows {
		out = append(out, &domain.Expense{
			ID:          row.ID,
			OwnerRole:   domain.Role(row.OwnerRole),
			OwnerID:     row.OwnerID,
			AmountCents: row.AmountCents,
			Category:    row.Category,
			Note:        row.Note,
			SpentAt:     row.SpentAt,
			CreatedAt:   row.CreatedAt,
		})
	}
	return out, nil
}

// SumByOwners implements domain.ExpenseRepository
func (r *ExpenseRepositoryImpl) SumByOwners(ctx context.Context, role domain.Role, ownerIDs []uint) (int64, error) {
	if len(ownerIDs) == 0 {
		return 0, nil
	}
	var total int64
	err := r.db.WithContext(ctx).Model(&DBExpense{}).
		Select("COALESCE(SUM(amount_cents), 0)").
		Where("owner_role = ? AND owner_id IN ?", string(role), ownerIDs).
		Scan(&total).Error
	return total, err
}
