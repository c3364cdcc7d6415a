package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/you/eventhub/domain"
)

// OTPRepositoryImpl implements domain.OTPRepository using GORM
type OTPRepositoryImpl struct {
	db *gorm.DB
}

// DBOTPRecord is the single row per (phone, purpose) lineage.
type DBOTPRecord struct {
	ID             uint       `gorm:"primaryKey"`
	Phone          string     `gorm:"size:32;not null;uniqueIndex:idx_otp_phone_purpose"`
	Purpose        string     `gorm:"size:32;not null;uniqueIndex:idx_otp_phone_purpose"`
	Code           string     `gorm:"size:16;not null"`
	ExpiresAt      time.Time  `gorm:"index"`
	IsUsed         bool       `gorm:"not null;index"`
	UsedAt         *time.Time
	FailedVerifies int        `gorm:"not null"`
	AttemptCount   int        `gorm:"not null"`
	LastAttempt    *time.Time
	CooldownUntil  *time.Time `gorm:"index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName returns the table name for GORM
func (DBOTPRecord) TableName() string {
	return "otp_records"
}

// NewOTPRepository creates a new OTP record repository
func NewOTPRepository(db *gorm.DB) domain.OTPRepository {
	return &OTPRepositoryImpl{db: db}
}

func (r *OTPRepositoryImpl) lineage(ctx context.Context, phone string, purpose domain.OTPPurpose) *gorm.DB {
	return r.db.WithContext(ctx).Model(&DBOTPRecord{}).
		Where("phone = ? AND purpose = ?", phone, string(purpose))
}

// Find implements domain.OTPRepository
func (r *OTPRepositoryImpl) Find(ctx context.Context, phone string, purpose domain.OTPPurpose) (*domain.OTPRecord, error) {
	var row DBOTPRecord
	err := r.db.WithContext(ctx).
		Where("phone = ? AND purpose = ?", phone, string(purpose)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOTPNotFound
		}
		return nil, err
	}
	return r.dbToDomain(&row), nil
}

// SaveCode implements domain.OTPRepository. The first send creates the
// lineage; later sends replace the code in place and keep the counters.
func (r *OTPRepositoryImpl) SaveCode(ctx context.Context, phone string, purpose domain.OTPPurpose, code string, expiresAt time.Time) error {
	row := &DBOTPRecord{
		Phone:     phone,
		Purpose:   string(purpose),
		Code:      code,
		ExpiresAt: expiresAt,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "phone"}, {Name: "purpose"}},
			DoUpdates: clause.AssignmentColumns([]string{"code", "expires_at", "is_used", "used_at", "failed_verifies", "updated_at"}),
		}).
		Create(row).Error
}

// Consume implements domain.OTPRepository. It is a single compare-and-set:
// only one caller can flip is_used for a given code.
func (r *OTPRepositoryImpl) Consume(ctx context.Context, phone string, purpose domain.OTPPurpose, code string, now time.Time) (bool, error) {
	result := r.lineage(ctx, phone, purpose).
		Where("code = ? AND code <> ? AND is_used = ? AND expires_at > ?", code, domain.DelegatedCodeSentinel, false, now).
		Updates(map[string]interface{}{"is_used": true, "used_at": now})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ConsumeActive implements domain.OTPRepository
func (r *OTPRepositoryImpl) ConsumeActive(ctx context.Context, phone string, purpose domain.OTPPurpose, now time.Time) (int64, error) {
	result := r.lineage(ctx, phone, purpose).
		Where("is_used = ? AND expires_at > ?", false, now).
		Updates(map[string]interface{}{"is_used": true, "used_at": now})
	return result.RowsAffected, result.Error
}

// Invalidate implements domain.OTPRepository
func (r *OTPRepositoryImpl) Invalidate(ctx context.Context, phone string, purpose domain.OTPPurpose, code string, now time.Time) error {
	return r.lineage(ctx, phone, purpose).
		Where("code = ? AND is_used = ?", code, false).
		Updates(map[string]interface{}{"is_used": true, "used_at": now}).Error
}

// RecordFailedVerify implements domain.OTPRepository. Counting and retiring
// happen in the same statement, so parallel guesses cannot overshoot.
func (r *OTPRepositoryImpl) RecordFailedVerify(ctx context.Context, phone string, purpose domain.OTPPurpose, maxFailures int, now time.Time) (bool, error) {
	result := r.lineage(ctx, phone, purpose).
		Where("is_used = ? AND expires_at > ?", false, now).
		Updates(map[string]interface{}{
			"failed_verifies": gorm.Expr("failed_verifies + ?", 1),
			"is_used":         gorm.Expr("CASE WHEN failed_verifies + 1 >= ? THEN ? ELSE is_used END", maxFailures, true),
			"used_at":         gorm.Expr("CASE WHEN failed_verifies + 1 >= ? THEN ? ELSE used_at END", maxFailures, now),
		})
	if result.Error != nil || result.RowsAffected == 0 {
		return false, result.Error
	}
	rec, err := r.Find(ctx, phone, purpose)
	if err != nil {
		return false, err
	}
	return rec.IsUsed, nil
}

// RecordAttempt implements domain.OTPRepository. The counter only moves
// while no cooldown is stamped.
func (r *OTPRepositoryImpl) RecordAttempt(ctx context.Context, phone string, purpose domain.OTPPurpose, now time.Time) (bool, error) {
	result := r.lineage(ctx, phone, purpose).
		Where("cooldown_until IS NULL").
		Updates(map[string]interface{}{
			"attempt_count": gorm.Expr("attempt_count + ?", 1),
			"last_attempt":  now,
		})
	return result.RowsAffected == 1, result.Error
}

// StartCooldown implements domain.OTPRepository
func (r *OTPRepositoryImpl) StartCooldown(ctx context.Context, phone string, purpose domain.OTPPurpose, until time.Time) (bool, error) {
	result := r.lineage(ctx, phone, purpose).
		Where("cooldown_until IS NULL").
		Update("cooldown_until", until)
	return result.RowsAffected == 1, result.Error
}

// ClearExpiredCooldown implements domain.OTPRepository. It reopens a
// lineage whose cooldown has elapsed.
func (r *OTPRepositoryImpl) ClearExpiredCooldown(ctx context.Context, phone string, purpose domain.OTPPurpose, now time.Time) (bool, error) {
	result := r.lineage(ctx, phone, purpose).
		Where("cooldown_until IS NOT NULL AND cooldown_until <= ?", now).
		Updates(map[string]interface{}{
			"attempt_count":  0,
			"last_attempt":   nil,
			"cooldown_until": nil,
		})
	return result.RowsAffected == 1, result.Error
}

// ResetAttempts implements domain.OTPRepository
func (r *OTPRepositoryImpl) ResetAttempts(ctx context.Context, phone string, purpose domain.OTPPurpose) error {
	return r.lineage(ctx, phone, purpose).
		Updates(map[string]interface{}{
			"attempt_count":  0,
			"last_attempt":   nil,
			"cooldown_until": nil,
		}).Error
}

// DeleteStale implements domain.OTPRepository. Rows still inside a
// cooldown, or with sends inside the attempt window, survive so the
// lockout cannot be dodged by waiting for cleanup. That includes a lineage
// at the ceiling whose cooldown is only stamped by the next check.
func (r *OTPRepositoryImpl) DeleteStale(ctx context.Context, now time.Time, attemptWindow time.Duration) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ? OR is_used = ?", now, true).
		Where("cooldown_until IS NULL OR cooldown_until <= ?", now).
		Where("last_attempt IS NULL OR last_attempt <= ?", now.Add(-attemptWindow)).
		Delete(&DBOTPRecord{})
	return result.RowsAffected, result.Error
}

// dbToDomain converts database record to domain record
func (r *OTPRepositoryImpl) dbToDomain(row *DBOTPRecord) *domain.OTPRecord {
	return &domain.OTPRecord{
		ID:             row.ID,
		Phone:          row.Phone,
		Purpose:        domain.OTPPurpose(row.Purpose),
		Code:           row.Code,
		ExpiresAt:      row.ExpiresAt,
		IsUsed:         row.IsUsed,
		UsedAt:         row.UsedAt,
		FailedVerifies: row.FailedVerifies,
		AttemptCount:   row.AttemptCount,
		LastAttempt:    row.LastAttempt,
		CooldownUntil:  row.CooldownUntil,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}
