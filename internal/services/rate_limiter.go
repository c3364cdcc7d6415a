package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/you/eventhub/domain"
)

// RateLimitConfig holds the OTP send limits
type RateLimitConfig struct {
	MaxAttempts    int
	ResendInterval time.Duration
	Cooldown       time.Duration
}

// RateLimiterImpl implements domain.RateLimiter on top of the OTP record
// lineage. Every transition is one conditional update in the repository.
type RateLimiterImpl struct {
	repo   domain.OTPRepository
	config RateLimitConfig
	clock  func() time.Time
	log    zerolog.Logger
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(repo domain.OTPRepository, config RateLimitConfig, clock func() time.Time, log zerolog.Logger) domain.RateLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &RateLimiterImpl{
		repo:   repo,
		config: config,
		clock:  clock,
		log:    log.With().Str("component", "rate_limiter").Logger(),
	}
}

// Check implements domain.RateLimiter
func (r *RateLimiterImpl) Check(ctx context.Context, phone string, purpose domain.OTPPurpose) (*domain.RateLimitStatus, error) {
	now := r.clock()

	rec, err := r.repo.Find(ctx, phone, purpose)
	if errors.Is(err, domain.ErrOTPNotFound) {
		return r.allow(now, 0), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rate limit record: %w", err)
	}

	if rec.CooldownUntil != nil {
		if rec.InCooldown(now) {
			return nil, cooldownError(*rec.CooldownUntil, now)
		}
		if _, err := r.repo.ClearExpiredCooldown(ctx, phone, purpose, now); err != nil {
			return nil, fmt.Errorf("failed to clear expired cooldown: %w", err)
		}
		return r.allow(now, 0), nil
	}

	if rec.AttemptCount >= r.config.MaxAttempts {
		until := now.Add(r.config.Cooldown)
		started, err := r.repo.StartCooldown(ctx, phone, purpose, until)
		if err != nil {
			return nil, fmt.Errorf("failed to start cooldown: %w", err)
		}
		if !started {
			// a concurrent check stamped it first; report that instant
			if current, err := r.repo.Find(ctx, phone, purpose); err == nil && current.CooldownUntil != nil {
				until = *current.CooldownUntil
			}
		}
		r.log.Info().Str("purpose", string(purpose)).Time("cooldown_until", until).Msg("otp cooldown started")
		return nil, cooldownError(until, now)
	}

	if rec.LastAttempt != nil {
		next := rec.LastAttempt.Add(r.config.ResendInterval)
		if now.Before(next) {
			wait := int(math.Ceil(next.Sub(now).Seconds()))
			return nil, &domain.RateLimitError{
				Message:           fmt.Sprintf("Please wait %d seconds before requesting another code", wait),
				RemainingAttempts: r.config.MaxAttempts - rec.AttemptCount,
				NextResendAt:      &next,
			}
		}
	}

	return r.allow(now, rec.AttemptCount), nil
}

// RecordAttempt implements domain.RateLimiter
func (r *RateLimiterImpl) RecordAttempt(ctx context.Context, phone string, purpose domain.OTPPurpose) error {
	recorded, err := r.repo.RecordAttempt(ctx, phone, purpose, r.clock())
	if err != nil {
		return fmt.Errorf("failed to record otp attempt: %w", err)
	}
	if !recorded {
		r.log.Debug().Str("purpose", string(purpose)).Msg("attempt not recorded, lineage missing or cooling down")
	}
	return nil
}

// Reset implements domain.RateLimiter
func (r *RateLimiterImpl) Reset(ctx context.Context, phone string, purpose domain.OTPPurpose) error {
	if err := r.repo.ResetAttempts(ctx, phone, purpose); err != nil {
		return fmt.Errorf("failed to reset otp attempts: %w", err)
	}
	return nil
}

func (r *RateLimiterImpl) allow(now time.Time, attempts int) *domain.RateLimitStatus {
	return &domain.RateLimitStatus{
		RemainingAttempts: r.config.MaxAttempts - attempts - 1,
		NextResendAt:      now.Add(r.config.ResendInterval),
	}
}

func cooldownError(until, now time.Time) *domain.RateLimitError {
	minutes := int(math.Ceil(until.Sub(now).Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	return &domain.RateLimitError{
		Message:       fmt.Sprintf("Too many attempts. Please try again in %d minutes", minutes),
		CooldownUntil: &until,
		NextResendAt:  &until,
	}
}
