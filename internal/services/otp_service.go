package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/you/eventhub/domain"
	"github.com/you/eventhub/internal/phone"
)

// OTPConfig selects the operating mode and code shape.
type OTPConfig struct {
	Length int
	TTL    time.Duration
	// Delegated hands code generation and checking to the SMS provider.
	Delegated bool
	// DevFallback keeps a self-managed code usable when SMS delivery fails.
	// It must only be set in a development environment.
	DevFallback bool
	// MaxVerifyFailures retires a self-managed code after that many wrong
	// guesses. Zero disables the limit.
	MaxVerifyFailures int
	// AttemptWindow is how long a lineage keeps counting sends after the
	// last one; cleanup leaves younger lineages alone. Set it to the
	// rate-limit cooldown.
	AttemptWindow time.Duration
}

// OTPServiceImpl implements domain.OTPService
type OTPServiceImpl struct {
	repo       domain.OTPRepository
	limiter    domain.RateLimiter
	sms        domain.SMSProvider
	locker     domain.SendLocker
	normalizer *phone.Normalizer
	audit      domain.AuditLogger
	config     OTPConfig
	clock      func() time.Time
	log        zerolog.Logger
}

// NewOTPService creates a new OTP service
func NewOTPService(
	repo domain.OTPRepository,
	limiter domain.RateLimiter,
	sms domain.SMSProvider,
	locker domain.SendLocker,
	normalizer *phone.Normalizer,
	audit domain.AuditLogger,
	config OTPConfig,
	clock func() time.Time,
	log zerolog.Logger,
) domain.OTPService {
	if clock == nil {
		clock = time.Now
	}
	return &OTPServiceImpl{
		repo:       repo,
		limiter:    limiter,
		sms:        sms,
		locker:     locker,
		normalizer: normalizer,
		audit:      audit,
		config:     config,
		clock:      clock,
		log:        log.With().Str("component", "otp").Logger(),
	}
}

// Send implements domain.OTPService. Concurrent sends for the same lineage
// are collapsed by the send lock; the loser gets ErrOTPInFlight.
func (s *OTPServiceImpl) Send(ctx context.Context, rawPhone string, purpose domain.OTPPurpose) (*domain.OTPDispatch, error) {
	phoneNumber := s.normalizer.Normalize(rawPhone)
	if phoneNumber == "" {
		return nil, domain.ErrInvalidPhone
	}
	masked := s.normalizer.Mask(phoneNumber)

	lockToken, acquired, err := s.locker.Acquire(ctx, phoneNumber, purpose)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire otp send lock: %w", err)
	}
	if !acquired {
		return nil, domain.ErrOTPInFlight
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), phoneNumber, purpose, lockToken); err != nil {
			s.log.Warn().Err(err).Str("phone", masked).Msg("failed to release otp send lock")
		}
	}()

	if !s.sms.ValidatePhoneNumber(ctx, phoneNumber) {
		return nil, domain.ErrInvalidPhone
	}

	status, err := s.limiter.Check(ctx, phoneNumber, purpose)
	if err != nil {
		var rl *domain.RateLimitError
		if errors.As(err, &rl) {
			s.audit.LogEvent(ctx, domain.NewAuditEvent(domain.OTPRateLimitedEvent).
				WithPhone(masked).
				WithMetadata("purpose", string(purpose)).
				WithError(err))
		}
		return nil, err
	}

	code := domain.DelegatedCodeSentinel
	if !s.config.Delegated {
		if code, err = s.generateSecureCode(); err != nil {
			return nil, fmt.Errorf("failed to generate OTP code: %w", err)
		}
	}

	now := s.clock()
	expiresAt := now.Add(s.config.TTL)
	if err := s.repo.SaveCode(ctx, phoneNumber, purpose, code, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to store OTP: %w", err)
	}

	if err := s.dispatch(ctx, phoneNumber, code); err != nil {
		if s.config.DevFallback && !s.config.Delegated {
			s.log.Warn().Err(err).
				Str("phone", masked).
				Str("purpose", string(purpose)).
				Str("code", code).
				Msg("sms delivery failed, development fallback keeps the stored code usable")
		} else {
			if invErr := s.repo.Invalidate(ctx, phoneNumber, purpose, code, now); invErr != nil {
				s.log.Error().Err(invErr).Str("phone", masked).Msg("failed to invalidate undelivered otp")
			}
			s.audit.LogEvent(ctx, domain.NewAuditEvent(domain.OTPRequestedEvent).
				WithPhone(masked).
				WithMetadata("purpose", string(purpose)).
				WithError(err))
			return nil, fmt.Errorf("%w: %w", domain.ErrOTPDeliveryFailed, err)
		}
	}

	if err := s.limiter.RecordAttempt(ctx, phoneNumber, purpose); err != nil {
		return nil, err
	}

	s.audit.LogEvent(ctx, domain.NewAuditEvent(domain.OTPRequestedEvent).
		WithPhone(masked).
		WithMetadata("purpose", string(purpose)).
		WithMetadata("delegated", s.config.Delegated))

	return &domain.OTPDispatch{
		Phone:             phoneNumber,
		Purpose:           purpose,
		ExpiresAt:         expiresAt,
		RemainingAttempts: status.RemainingAttempts,
		Delegated:         s.config.Delegated,
	}, nil
}

// Verify implements domain.OTPService. A wrong or expired code is (false, nil).
func (s *OTPServiceImpl) Verify(ctx context.Context, rawPhone, code string, purpose domain.OTPPurpose) (bool, error) {
	phoneNumber := s.normalizer.Normalize(rawPhone)
	code = strings.TrimSpace(code)
	if phoneNumber == "" || code == "" {
		return false, nil
	}
	now := s.clock()

	var ok bool
	var err error
	if s.config.Delegated {
		ok, err = s.sms.VerifyOTPExternally(ctx, phoneNumber, code)
		// the local sentinel row is retired whatever the provider said
		if _, consumeErr := s.repo.ConsumeActive(ctx, phoneNumber, purpose, now); consumeErr != nil {
			s.log.Error().Err(consumeErr).Msg("failed to retire delegated otp record")
		}
		if err != nil {
			return false, fmt.Errorf("failed to verify OTP externally: %w", err)
		}
	} else {
		ok, err = s.repo.Consume(ctx, phoneNumber, purpose, code, now)
		if err != nil {
			return false, fmt.Errorf("failed to consume OTP: %w", err)
		}
	}

	event := domain.NewAuditEvent(domain.OTPVerifiedEvent).
		WithPhone(s.normalizer.Mask(phoneNumber)).
		WithMetadata("purpose", string(purpose))
	if !ok {
		event.EventType = domain.OTPVerifyFailureEvent
		if !s.config.Delegated && s.config.MaxVerifyFailures > 0 {
			retired, err := s.repo.RecordFailedVerify(ctx, phoneNumber, purpose, s.config.MaxVerifyFailures, now)
			if err != nil {
				s.log.Error().Err(err).Msg("failed to count wrong otp")
			}
			if retired {
				s.log.Info().Str("purpose", string(purpose)).Msg("otp retired after repeated wrong codes")
				event.WithMetadata("retired", true)
			}
		}
		s.audit.LogEvent(ctx, event.WithError(domain.ErrOTPInvalid))
		return false, nil
	}
	s.audit.LogEvent(ctx, event)

	if err := s.limiter.Reset(ctx, phoneNumber, purpose); err != nil {
		return false, err
	}
	return true, nil
}

// Cleanup implements domain.OTPService. It covers both expired codes and
// spent rate-limit lineages; rows still in cooldown or inside the attempt
// window survive.
func (s *OTPServiceImpl) Cleanup(ctx context.Context) (int64, error) {
	deleted, err := s.repo.DeleteStale(ctx, s.clock(), s.config.AttemptWindow)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale otp records: %w", err)
	}
	s.log.Info().Int64("deleted", deleted).Msg("otp cleanup finished")
	return deleted, nil
}

func (s *OTPServiceImpl) dispatch(ctx context.Context, phoneNumber, code string) error {
	if s.config.Delegated {
		return s.sms.SendOTP(ctx, phoneNumber, "")
	}
	return s.sms.SendOTP(ctx, phoneNumber, code)
}

// generateSecureCode generates a cryptographically secure OTP code
func (s *OTPServiceImpl) generateSecureCode() (string, error) {
	digits := make([]byte, s.config.Length)

	for i := 0; i < s.config.Length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate random digit: %w", err)
		}
		digits[i] = byte('0' + num.Int64())
	}

	return string(digits), nil
}
