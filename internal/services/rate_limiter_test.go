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

func requireRateLimit(t *testing.T, err error) *domain.RateLimitError {
	t.Helper()
	var rl *domain.RateLimitError
	require.True(t, errors.As(err, &rl), "expected rate limit error, got %v", err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	return rl
}

func TestRateLimiter_FirstRequestIsAllowed(t *testing.T) {
	h := newHarness(t)

	status, err := h.limiter.Check(context.Background(), testPhone, domain.PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, 4, status.RemainingAttempts)
	assert.Equal(t, baseTime.Add(time.Minute), status.NextResendAt)
}

func TestRateLimiter_ResendInterval(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.otp.Send(ctx, testPhone, domain.PurposeLogin)
	require.NoError(t, err)

	h.clock.Advance(20 * time.Second)
	_, err = h.otp.Send(ctx, testPhone, domain.PurposeLogin)
	rl := requireRateLimit(t, err)
	assert.Equal(t, "Please wait 40 seconds before requesting another code", rl.Message)
	require.NotNil(t, rl.NextResendAt)
	assert.Equal(t, baseTime.Add(time.Minute), *rl.NextResendAt)
	assert.Nil(t, rl.CooldownUntil)
	assert.Equal(t, 4, rl.RemainingAttempts)

	h.clock.Advance(40 * time.Second)
	dispatch, err := h.otp.Send(ctx, testPhone, domain.PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, 3, dispatch.RemainingAttempts)
}

func TestRateLimiter_CooldownAfterCeiling(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for want := 4; want >= 0; want-- {
		dispatch, err := h.otp.Send(ctx, testPhone, domain.PurposeLogin)
		require.NoError(t, err)
		assert.Equal(t, want, dispatch.RemainingAttempts)
		h.clock.Advance(61 * time.Second)
	}

	_, err := h.otp.Send(ctx, testPhone, domain.PurposeLogin)
	rl := requireRateLimit(t, err)
	assert.Equal(t, "Too many attempts. Please try again in 15 minutes", rl.Message)
	require.NotNil(t, rl.CooldownUntil)
	lockedUntil := *rl.CooldownUntil
	assert.Equal(t, h.clock.Now().Add(15*time.Minute), lockedUntil)

	// still locked, and the stamp does not move
	h.clock.Advance(14 * time.Minute)
	_, err = h.otp.Send(ctx, testPhone, domain.PurposeLogin)
	rl = requireRateLimit(t, err)
	assert.Equal(t, "Too many attempts. Please try again in 1 minutes", rl.Message)
	assert.Equal(t, lockedUntil, *rl.CooldownUntil)

	h.clock.Advance(time.Minute)
	dispatch, err := h.otp.Send(ctx, testPhone, domain.PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, 4, dispatch.RemainingAttempts)

	rec, err := h.otps.Find(ctx, testPhone, domain.PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.AttemptCount)
	assert.Nil(t, rec.CooldownUntil)
}

func TestRateLimiter_PurposesAreIndependent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.otp.Send(ctx, testPhone, domain.PurposeLogin)
	require.NoError(t, err)

	dispatch, err := h.otp.Send(ctx, testPhone, domain.PurposeStaffLogin)
	require.NoError(t, err)
	assert.Equal(t, 4, dispatch.RemainingAttempts)
}

func TestRateLimiter_Reset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.otp.Send(ctx, testPhone, domain.PurposeLogin)
	require.NoError(t, err)
	require.NoError(t, h.limiter.Reset(ctx, testPhone, domain.PurposeLogin))

	status, err := h.limiter.Check(ctx, testPhone, domain.PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, 4, status.RemainingAttempts)
}
