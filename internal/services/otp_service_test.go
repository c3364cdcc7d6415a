package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/eventhub/domain"
)

func TestOTPService_SendAndVerify(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	dispatch, err := h.otp.Send(ctx, testLocalPhone, domain.PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, testPhone, dispatch.Phone)
	assert.Equal(t, baseTime.Add(5*time.Minute), dispatch.ExpiresAt)
	assert.False(t, dispatch.Delegated)

	code := h.lastCode(testPhone)
	assert.Len(t, code, 6)

	ok, err := h.otp.Verify(ctx, testLocalPhone, code, domain.PurposeLogin)
	require.NoError(t, err)
	assert.True(t, ok)

	// single use
	ok, err = h.otp.Verify(ctx, testPhone, code, domain.PurposeLogin)
	require.NoError(t, err)
	assert.False(t, ok)

	// success clears the send counter
	rec, err := h.otps.Find(ctx, testPhone, domain.PurposeLogin)
	require.NoError(t, err)
	assert.Zero(t, rec.AttemptCount)

	assert.Equal(t, []domain.AuditEventType{
		domain.OTPRequestedEvent,
		domain.OTPVerifiedEvent,
		domain.OTPVerifyFailureEvent,
	}, h.audit.Types())
}

func TestOTPService_VerifyRejects(t *testing.T) {
	tests := []struct {
		name    string
		advance time.Duration
		code    func(sent string) string
		purpose domain.OTPPurpose
	}{
		{
			name: "wrong code",
			code: func(string) string { return "000000x" },
		},
		{
			name:    "expired code",
			advance: 5*time.Minute + time.Second,
			code:    func(sent string) string { return sent },
		},
		{
			name:    "other purpose",
			code:    func(sent string) string { return sent },
			purpose: domain.PurposeStaffLogin,
		},
		{
			name: "blank code",
			code: func(string) string { return "  " },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()

			_, err := h.otp.Send(ctx, testPhone, domain.PurposeLogin)
			require.NoError(t, err)
			h.clock.Advance(tt.advance)

			purpose := tt.purpose
			if purpose == "" {
				purpose = domain.PurposeLogin
			}
			ok, err := h.otp.Verify(ctx, testPhone, tt.code(h.lastCode(testPhone)), purpose)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestOTPService_ResendReplacesCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.otp.Send(ctx, testPhone, domain.PurposeLogin)
	require.NoError(t, err)
	first := h.lastCode(testPhone)

	h.clock.Advance(61 * time.Second)
	_, err = h.otp.Send(ctx, testPhone, domain.PurposeLogin)
	require.NoError(t, err)
	second := h.lastCode(testPhone)

	if first != second {
		ok, err := h.otp.Verify(ctx, testPhone, first, domain.PurposeLogin)
		require.NoError(t, err)
		assert.False(t, ok, "superseded code must not verify")
	}
	ok, err := h.otp.Verify(ctx, testPhone, second, domain.PurposeLogin)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOTPService_Delegated(t *testing.T) {
	tests := []struct {
		name        string
		providerOK  bool
		providerErr error
		expectOK    bool
		expectErr   bool
	}{
		{name: "approved", providerOK: true, expectOK: true},
		{name: "rejected", providerOK: false, expectOK: false},
		{name: "provider failure", providerErr: errors.New("twilio down"), expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, withDelegatedOTP())
			ctx := context.Background()
			h.sms.VerifyOTPExternallyFunc = func(ctx context.Context, phone, code string) (bool, error) {
				assert.Equal(t, testPhone, phone)
				assert.Equal(t, "123456", code)
				return tt.providerOK, tt.providerErr
			}

			dispatch, err := h.otp.Send(ctx, testPhone, domain.PurposeLogin)
			require.NoError(t, err)
			assert.True(t, dispatch.Delegated)
			require.Len(t, h.sms.Sent, 1)
			assert.Empty(t, h.sms.Sent[0].Code)

			rec, err := h.otps.Find(ctx, testPhone, domain.PurposeLogin)
			require.NoError(t, err)
			assert.Equal(t, domain.DelegatedCodeSentinel, rec.Code)

			ok, err := h.otp.Verify(ctx, testPhone, "123456", domain.PurposeLogin)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expectOK, ok)

			// the local record is retired whatever the provider answered
			rec, err = h.otps.Find(ctx, testPhone, domain.PurposeLogin)
			require.NoError(t, err)
			assert.True(t, rec.IsUsed)
		})
	}
}

func TestOTPService_SentinelNeverVerifiesLocally(t *testing.T) {
	h := newHarness(t, withDelegatedOTP())
	ctx := context.Background()

	_, err := h.otp.Send(ctx, testPhone, domain.PurposeLogin)
	require.NoError(t, err)

	consumed, err := h.otps.Consume(ctx, testPhone, domain.PurposeLogin, domain.DelegatedCodeSentinel, h.clock.Now())
	require.NoError(t, err)
	assert.False(t, consumed)
}

func TestOTPService_DeliveryFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.sms.SendOTPFunc = func(ctx context.Context, phone, code string) error {
		return errors.New("carrier rejected")
	}

	_, err := h.otp.Send(ctx, testPhone, domain.PurposeLogin)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOTPDeliveryFailed)

	rec, err := h.otps.Find(ctx, testPhone, domain.PurposeLogin)
	require.NoError(t, err)
	assert.True(t, rec.IsUsed, "undelivered code must be invalidated")
	assert.Zero(t, rec.AttemptCount)

	ok, err := h.otp.Verify(ctx, testPhone, h.lastCode(testPhone), domain.PurposeLogin)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOTPService_DevFallbackKeepsCode(t *testing.T) {
	h := newHarness(t, withDevFallback())
	ctx := context.Background()
	h.sms.SendOTPFunc = func(ctx context.Context, phone, code string) error {
		return errors.New("no sms credentials")
	}

	dispatch, err := h.otp.Send(ctx, testPhone, domain.PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, 4, dispatch.RemainingAttempts)

	ok, err := h.otp.Verify(ctx, testPhone, h.lastCode(testPhone), domain.PurposeLogin)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOTPService_SendGuards(t *testing.T) {
	tests := []struct {
		name     string
		phone    string
		setup    func(h *harness)
		expected error
	}{
		{
			name:     "empty phone",
			phone:    "  ",
			expected: domain.ErrInvalidPhone,
		},
		{
			name:  "provider rejects number",
			phone: testPhone,
			setup: func(h *harness) {
				h.sms.ValidatePhoneNumberFunc = func(ctx context.Context, phone string) bool { return false }
			},
			expected: domain.ErrInvalidPhone,
		},
		{
			name:  "send already in flight",
			phone: testPhone,
			setup: func(h *harness) {
				h.locker.AcquireFunc = func(ctx context.Context, phone string, purpose domain.OTPPurpose) (string, bool, error) {
					return "", false, nil
				}
			},
			expected: domain.ErrOTPInFlight,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if tt.setup != nil {
				tt.setup(h)
			}

			_, err := h.otp.Send(context.Background(), tt.phone, domain.PurposeLogin)
			assert.ErrorIs(t, err, tt.expected)
			assert.Empty(t, h.sms.Sent)
		})
	}
}

func TestOTPService_RateLimitIsAudited(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.otp.Send(ctx, testPhone, domain.PurposeLogin)
	require.NoError(t, err)
	_, err = h.otp.Send(ctx, testPhone, domain.PurposeLogin)
	require.ErrorIs(t, err, domain.ErrRateLimited)

	assert.Contains(t, h.audit.Types(), domain.OTPRateLimitedEvent)
	assert.Len(t, h.sms.Sent, 1)
}

func TestOTPService_Cleanup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.otp.Send(ctx, testPhone, domain.PurposeLogin)
	require.NoError(t, err)
	_, err = h.otp.Send(ctx, "+628111111111", domain.PurposeLogin)
	require.NoError(t, err)

	// past both the code TTL and the attempt window
	h.clock.Advance(testRateLimits.Cooldown + time.Minute)
	_, err = h.otp.Send(ctx, "+628222222222", domain.PurposeLogin)
	require.NoError(t, err)

	deleted, err := h.otp.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, err = h.otps.Find(ctx, "+628222222222", domain.PurposeLogin)
	assert.NoError(t, err)
}

func TestOTPService_CleanupKeepsLockoutAtCeiling(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.sendUntilCeiling(testPhone, domain.PurposeLogin)

	// the last code has expired but no check has stamped a cooldown yet
	h.clock.Advance(6 * time.Minute)
	rec, err := h.otps.Find(ctx, testPhone, domain.PurposeLogin)
	require.NoError(t, err)
	require.Nil(t, rec.CooldownUntil)
	require.Equal(t, testRateLimits.MaxAttempts, rec.AttemptCount)

	deleted, err := h.otp.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	_, err = h.otp.Send(ctx, testPhone, domain.PurposeLogin)
	require.ErrorIs(t, err, domain.ErrRateLimited)
	var rl *domain.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.NotNil(t, rl.CooldownUntil)
	assert.Len(t, h.sms.Sent, testRateLimits.MaxAttempts)
}

func TestOTPService_CleanupKeepsPartialLineage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < testRateLimits.MaxAttempts-1; i++ {
		_, err := h.otp.Send(ctx, testPhone, domain.PurposeLogin)
		require.NoError(t, err)
		h.clock.Advance(testRateLimits.ResendInterval + time.Second)
	}
	h.clock.Advance(5 * time.Minute)

	deleted, err := h.otp.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	dispatch, err := h.otp.Send(ctx, testPhone, domain.PurposeLogin)
	require.NoError(t, err)
	assert.Zero(t, dispatch.RemainingAttempts, "the counter survives cleanup")
}

func TestOTPService_VerifyClearsCeiling(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	code := h.sendUntilCeiling(testPhone, domain.PurposeLogin)

	_, err := h.otp.Send(ctx, testPhone, domain.PurposeLogin)
	require.ErrorIs(t, err, domain.ErrRateLimited)

	ok, err := h.otp.Verify(ctx, testPhone, code, domain.PurposeLogin)
	require.NoError(t, err)
	require.True(t, ok)

	dispatch, err := h.otp.Send(ctx, testPhone, domain.PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, testRateLimits.MaxAttempts-1, dispatch.RemainingAttempts)
	assert.Len(t, h.sms.Sent, testRateLimits.MaxAttempts+1)
}

func TestOTPService_WrongCodesRetireCode(t *testing.T) {
	tests := []struct {
		name      string
		wrong     int
		wantValid bool
	}{
		{name: "below the limit", wrong: 2, wantValid: true},
		{name: "at the limit", wrong: 3, wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, withVerifyFailureLimit(3))
			ctx := context.Background()

			_, err := h.otp.Send(ctx, testPhone, domain.PurposeLogin)
			require.NoError(t, err)
			code := h.lastCode(testPhone)

			for i := 0; i < tt.wrong; i++ {
				ok, err := h.otp.Verify(ctx, testPhone, wrongCode(code), domain.PurposeLogin)
				require.NoError(t, err)
				require.False(t, ok)
			}

			ok, err := h.otp.Verify(ctx, testPhone, code, domain.PurposeLogin)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, ok)
		})
	}
}

func TestOTPService_ResendRestoresGuessBudget(t *testing.T) {
	h := newHarness(t, withVerifyFailureLimit(2))
	ctx := context.Background()

	_, err := h.otp.Send(ctx, testPhone, domain.PurposeLogin)
	require.NoError(t, err)
	first := h.lastCode(testPhone)
	for i := 0; i < 2; i++ {
		_, err := h.otp.Verify(ctx, testPhone, wrongCode(first), domain.PurposeLogin)
		require.NoError(t, err)
	}

	h.clock.Advance(testRateLimits.ResendInterval + time.Second)
	_, err = h.otp.Send(ctx, testPhone, domain.PurposeLogin)
	require.NoError(t, err)
	second := h.lastCode(testPhone)

	rec, err := h.otps.Find(ctx, testPhone, domain.PurposeLogin)
	require.NoError(t, err)
	assert.Zero(t, rec.FailedVerifies)

	ok, err := h.otp.Verify(ctx, testPhone, second, domain.PurposeLogin)
	require.NoError(t, err)
	assert.True(t, ok)
}
