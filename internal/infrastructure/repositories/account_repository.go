package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/you/eventhub/domain"
)

// maxLookupMatches bounds how many candidate rows a login lookup loads.
const maxLookupMatches = 10

// AccountRepositoryImpl implements domain.AccountRepository using GORM
type AccountRepositoryImpl struct {
	db *gorm.DB
}

// DBAccount represents the database model for all three account kinds.
// Uniqueness anchors are unique per role; NULLs never collide.
type DBAccount struct {
	ID                 uint       `gorm:"primaryKey"`
	Role               string     `gorm:"size:16;not null;uniqueIndex:idx_accounts_role_email;uniqueIndex:idx_accounts_role_phone;uniqueIndex:idx_accounts_role_google;uniqueIndex:idx_accounts_role_handle"`
	ShortCode          string     `gorm:"size:16;not null;uniqueIndex"`
	DisplayName        string     `gorm:"size:255"`
	Email              *string    `gorm:"size:255;uniqueIndex:idx_accounts_role_email"`
	Phone              *string    `gorm:"size:32;uniqueIndex:idx_accounts_role_phone"`
	GoogleID           *string    `gorm:"size:255;uniqueIndex:idx_accounts_role_google"`
	SocialHandle       *string    `gorm:"size:255;uniqueIndex:idx_accounts_role_handle"`
	LoginMethod        string     `gorm:"size:16;not null"`
	ReferredBy         *string    `gorm:"size:16;index"`
	RegistrationStatus string     `gorm:"size:16;not null;index"`
	IsActive           bool       `gorm:"not null"`
	IsSuperAdmin       bool       `gorm:"not null"`
	ApprovedAt         *time.Time
	ApprovedBy         *string    `gorm:"size:16"`
	CreatedAt          time.Time  `gorm:"index"`
	UpdatedAt          time.Time
}

// TableName returns the table name for GORM
func (DBAccount) TableName() string {
	return "accounts"
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB) domain.AccountRepository {
	return &AccountRepositoryImpl{db: db}
}

// Create implements domain.AccountRepository
func (r *AccountRepositoryImpl) Create(ctx context.Context, account *domain.Account) error {
	row := r.domainToDB(account)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return &domain.ConflictError{}
		}
		return err
	}
	account.ID = row.ID
	account.CreatedAt = row.CreatedAt
	account.UpdatedAt = row.UpdatedAt
	return nil
}

// FindByID implements domain.AccountRepository
func (r *AccountRepositoryImpl) FindByID(ctx context.Context, role domain.Role, id uint) (*domain.Account, error) {
	return r.first(ctx, "role = ? AND id = ?", string(role), id)
}

// FindByEmail implements domain.AccountRepository
func (r *AccountRepositoryImpl) FindByEmail(ctx context.Context, role domain.Role, email string) (*domain.Account, error) {
	return r.first(ctx, "role = ? AND email = ?", string(role), normalizeEmail(email))
}

// FindByGoogleID implements domain.AccountRepository
func (r *AccountRepositoryImpl) FindByGoogleID(ctx context.Context, role domain.Role, googleID string) (*domain.Account, error) {
	return r.first(ctx, "role = ? AND google_id = ?", string(role), googleID)
}

// FindByPhone implements domain.AccountRepository
func (r *AccountRepositoryImpl) FindByPhone(ctx context.Context, role domain.Role, phone string) (*domain.Account, error) {
	return r.first(ctx, "role = ? AND phone = ?", string(role), phone)
}

// FindByAny implements domain.AccountRepository. Rows come back ordered by
// id; choosing among several matches is the caller's concern.
func (r *AccountRepositoryImpl) FindByAny(ctx context.Context, role domain.Role, lookup domain.AccountLookup) ([]*domain.Account, error) {
	var clauses []string
	var args []interface{}
	if len(lookup.Phones) > 0 {
		clauses = append(clauses, "phone IN ?")
		args = append(args, lookup.Phones)
	}
	if lookup.Email != "" {
		clauses = append(clauses, "email = ?")
		args = append(args, normalizeEmail(lookup.Email))
	}
	if lookup.ShortCode != "" {
		clauses = append(clauses, "short_code = ?")
		args = append(args, strings.ToUpper(strings.TrimSpace(lookup.ShortCode)))
	}
	if len(clauses) == 0 {
		return nil, nil
	}

	query := "role = ? AND (" + strings.Join(clauses, " OR ") + ")"
	var rows []DBAccount
	err := r.db.WithContext(ctx).
		Where(query, append([]interface{}{string(role)}, args...)...).
		Order("id").
		Limit(maxLookupMatches).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return r.dbListToDomain(rows), nil
}

// FindAnchorConflict implements domain.AccountRepository
func (r *AccountRepositoryImpl) FindAnchorConflict(ctx context.Context, role domain.Role, anchors domain.AccountAnchors) (string, error) {
	checks := []struct {
		field  string
		column string
		value  string
	}{
		{"socialHandle", "social_handle", strings.TrimSpace(anchors.SocialHandle)},
		{"email", "email", normalizeEmail(anchors.Email)},
		{"phone", "phone", anchors.Phone},
		{"googleId", "google_id", anchors.GoogleID},
	}
	for _, c := range checks {
		if c.value == "" {
			continue
		}
		var count int64
		err := r.db.WithContext(ctx).Model(&DBAccount{}).
			Where("role = ? AND "+c.column+" = ?", string(role), c.value).
			Count(&count).Error
		if err != nil {
			return "", err
		}
		if count > 0 {
			return c.field, nil
		}
	}
	return "", nil
}

// ShortCodeExists implements domain.AccountRepository
func (r *AccountRepositoryImpl) ShortCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&DBAccount{}).Where("short_code = ?", code).Count(&count).Error
	return count > 0, err
}

// LinkGoogleID implements domain.AccountRepository. An account already
// linked to a different Google identity is a conflict.
func (r *AccountRepositoryImpl) LinkGoogleID(ctx context.Context, role domain.Role, id uint, googleID string) error {
	result := r.db.WithContext(ctx).Model(&DBAccount{}).
		Where("role = ? AND id = ? AND (google_id IS NULL OR google_id = ?)", string(role), id, googleID).
		Update("google_id", googleID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return &domain.ConflictError{Field: "googleId"}
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, role, id); err != nil {
			return err
		}
		return &domain.ConflictError{Field: "googleId"}
	}
	return nil
}

// ResolvePending implements domain.AccountRepository
func (r *AccountRepositoryImpl) ResolvePending(ctx context.Context, role domain.Role, id uint, decision domain.ApprovalDecision) error {
	var approvedBy *string
	if decision.ApprovedBy != "" {
		approvedBy = &decision.ApprovedBy
	}
	result := r.db.WithContext(ctx).Model(&DBAccount{}).
		Where("role = ? AND id = ? AND registration_status = ?", string(role), id, string(domain.StatusPending)).
		Updates(map[string]interface{}{
			"registration_status": string(decision.State.Status()),
			"is_active":           decision.State.IsActive(),
			"approved_at":         decision.ApprovedAt,
			"approved_by":         approvedBy,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, role, id); err != nil {
			return err
		}
		return domain.ErrAlreadyProcessed
	}
	return nil
}

// SetActive implements domain.AccountRepository. Only approved accounts
// carry an active flag.
func (r *AccountRepositoryImpl) SetActive(ctx context.Context, role domain.Role, id uint, active bool) error {
	result := r.db.WithContext(ctx).Model(&DBAccount{}).
		Where("role = ? AND id = ? AND registration_status = ?", string(role), id, string(domain.StatusApproved)).
		Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, role, id); err != nil {
			return err
		}
		return domain.ErrInvalidStateTransition
	}
	return nil
}

// ListPending implements domain.AccountRepository
func (r *AccountRepositoryImpl) ListPending(ctx context.Context, role domain.Role) ([]*domain.Account, error) {
	var rows []DBAccount
	err := r.db.WithContext(ctx).
		Where("role = ? AND registration_status = ?", string(role), string(domain.StatusPending)).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return r.dbListToDomain(rows), nil
}

// ListReferred implements domain.AccountRepository
func (r *AccountRepositoryImpl) ListReferred(ctx context.Context, referralCode string) ([]*domain.Account, error) {
	var rows []DBAccount
	err := r.db.WithContext(ctx).
		Where("role = ? AND referred_by = ?", string(domain.RoleUser), strings.ToUpper(referralCode)).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return r.dbListToDomain(rows), nil
}

func (r *AccountRepositoryImpl) first(ctx context.Context, query string, args ...interface{}) (*domain.Account, error) {
	var row DBAccount
	err := r.db.WithContext(ctx).Where(query, args...).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return r.dbToDomain(&row), nil
}

// domainToDB converts domain account to database account
func (r *AccountRepositoryImpl) domainToDB(a *domain.Account) *DBAccount {
	var approvedBy *string
	if a.ApprovedBy != "" {
		approvedBy = &a.ApprovedBy
	}
	return &DBAccount{
		ID:                 a.ID,
		Role:               string(a.Role),
		ShortCode:          strings.ToUpper(a.ShortCode),
		DisplayName:        a.DisplayName,
		Email:              nullable(normalizeEmail(a.Email)),
		Phone:              nullable(a.Phone),
		GoogleID:           nullable(a.GoogleID),
		SocialHandle:       nullable(strings.TrimSpace(a.SocialHandle)),
		LoginMethod:        string(a.LoginMethod),
		ReferredBy:         nullable(strings.ToUpper(a.ReferredBy)),
		RegistrationStatus: string(a.State.Status()),
		IsActive:           a.State.IsActive(),
		IsSuperAdmin:       a.IsSuperAdmin,
		ApprovedAt:         a.ApprovedAt,
		ApprovedBy:         approvedBy,
	}
}

// dbToDomain converts database account to domain account
func (r *AccountRepositoryImpl) dbToDomain(row *DBAccount) *domain.Account {
	return &domain.Account{
		ID:           row.ID,
		Role:         domain.Role(row.Role),
		ShortCode:    row.ShortCode,
		DisplayName:  row.DisplayName,
		Email:        deref(row.Email),
		Phone:        deref(row.Phone),
		GoogleID:     deref(row.GoogleID),
		SocialHandle: deref(row.SocialHandle),
		LoginMethod:  domain.LoginMethod(row.LoginMethod),
		ReferredBy:   deref(row.ReferredBy),
		State:        domain.RestoreState(domain.RegistrationStatus(row.RegistrationStatus), row.IsActive),
		IsSuperAdmin: row.IsSuperAdmin,
		ApprovedAt:   row.ApprovedAt,
		ApprovedBy:   deref(row.ApprovedBy),
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func (r *AccountRepositoryImpl) dbListToDomain(rows []DBAccount) []*domain.Account {
	out := make([]*domain.Account, 0, len(rows))
	for i := range rows {
		out = append(out, r.dbToDomain(&rows[i]))
	}
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
