package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink/healthcare-identity/internal/domain"
)

func TestRequestOTP_IssuesSixDigitCode(t *testing.T) {
	env := newTestEnv(t)
	p := env.signup(t, domain.KindPatient, "p@example.com", "secret1")

	ch, err := env.otp.RequestOTP(context.Background(), p.ID)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^[0-9]{6}$`), ch.Code)
	assert.Equal(t, env.clock.Now().Add(10*time.Minute), ch.ExpiresAt)
	assert.Equal(t, ch.Code, env.events.lastOTP(t, p.ID))
}

func TestRequestOTP_UnknownIdentity(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.otp.RequestOTP(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
}

func TestRequestOTPFor_ResolvesIdentifier(t *testing.T) {
	env := newTestEnv(t)
	doc := env.signup(t, domain.KindDoctor, "doc@clinic.test", "secret1")

	ch, err := env.otp.RequestOTPFor(context.Background(), domain.KindDoctor, doc.Mobile)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, ch.IdentityID)

	_, err = env.otp.RequestOTPFor(context.Background(), domain.KindPatient, "doc@clinic.test")
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
}

func TestVerifyOTP_SingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.signup(t, domain.KindPatient, "p@example.com", "secret1")

	ch, err := env.otp.RequestOTP(ctx, p.ID)
	require.NoError(t, err)

	require.NoError(t, env.otp.VerifyOTP(ctx, p.ID, ch.Code))
	assert.ErrorIs(t, env.otp.VerifyOTP(ctx, p.ID, ch.Code), domain.ErrOTPAlreadyConsumed)
}

func TestVerifyOTP_ConcurrentCallersConsumeOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.signup(t, domain.KindPatient, "p@example.com", "secret1")

	ch, err := env.otp.RequestOTP(ctx, p.ID)
	require.NoError(t, err)

	const callers = 30
	results := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- env.otp.VerifyOTP(ctx, p.ID, ch.Code)
		}()
	}
	wg.Wait()
	close(results)

	var oks, consumed int
	for err := range results {
		switch {
		case err == nil:
			oks++
		case errors.Is(err, domain.ErrOTPAlreadyConsumed):
			consumed++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, oks)
	assert.Equal(t, callers-1, consumed)
}

func TestVerifyOTP_NewCodeInvalidatesOld(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.signup(t, domain.KindPatient, "p@example.com", "secret1")

	first, err := env.otp.RequestOTP(ctx, p.ID)
	require.NoError(t, err)
	second := first
	for second.Code == first.Code {
		second, err = env.otp.RequestOTP(ctx, p.ID)
		require.NoError(t, err)
	}

	assert.ErrorIs(t, env.otp.VerifyOTP(ctx, p.ID, first.Code), domain.ErrOTPMismatch)
	assert.NoError(t, env.otp.VerifyOTP(ctx, p.ID, second.Code))
}

func TestVerifyOTP_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.signup(t, domain.KindPatient, "p@example.com", "secret1")

	assert.ErrorIs(t, env.otp.VerifyOTP(ctx, p.ID, "123456"), domain.ErrOTPNotFound)

	ch, err := env.otp.RequestOTP(ctx, p.ID)
	require.NoError(t, err)

	env.clock.Advance(10 * time.Minute)
	assert.ErrorIs(t, env.otp.VerifyOTP(ctx, p.ID, ch.Code), domain.ErrOTPExpired)
}

func TestVerifyOTP_AttemptsExhausted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.signup(t, domain.KindPatient, "p@example.com", "secret1")

	ch, err := env.otp.RequestOTP(ctx, p.ID)
	require.NoError(t, err)
	wrong := "000000"
	if ch.Code == wrong {
		wrong = "111111"
	}

	for i := 0; i < env.cfg.OTP.MaxAttempts; i++ {
		assert.ErrorIs(t, env.otp.VerifyOTP(ctx, p.ID, wrong), domain.ErrOTPMismatch)
	}
	assert.ErrorIs(t, env.otp.VerifyOTP(ctx, p.ID, ch.Code), domain.ErrOTPAttemptsExceeded)
}

func TestRequestOTP_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.signup(t, domain.KindPatient, "p@example.com", "secret1")

	for i := 0; i < env.cfg.OTP.MaxRequests; i++ {
		_, err := env.otp.RequestOTP(ctx, p.ID)
		require.NoError(t, err)
	}
	_, err := env.otp.RequestOTP(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrOTPRateLimited)

	env.redis.FastForward(time.Hour + time.Second)
	_, err = env.otp.RequestOTP(ctx, p.ID)
	assert.NoError(t, err)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func TestRequestOTP_FailsClosedWhenLimiterErrors(t *testing.T) {
	env := newTestEnv(t)
	p := env.signup(t, domain.KindPatient, "p@example.com", "secret1")

	env.otp.limiter = failingLimiter{}
	_, err := env.otp.RequestOTP(context.Background(), p.ID)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrOTPRateLimited)
	assert.Empty(t, env.events.ofType("otp_issued"))
}

func TestResetPassword_RequiresVerifiedOTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.signup(t, domain.KindPatient, "p@example.com", "secret1")

	assert.ErrorIs(t, env.otp.ResetPassword(ctx, p.ID, "newsecret"), domain.ErrResetNotAuthorized)

	ch, err := env.otp.RequestOTP(ctx, p.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, env.otp.ResetPassword(ctx, p.ID, "newsecret"), domain.ErrResetNotAuthorized)

	require.NoError(t, env.otp.VerifyOTP(ctx, p.ID, ch.Code))

	// A rejected password does not burn the grant.
	assert.ErrorIs(t, env.otp.ResetPassword(ctx, p.ID, "x"), domain.ErrInvalidField)
	require.NoError(t, env.otp.ResetPassword(ctx, p.ID, "newsecret"))

	// The grant is single use.
	assert.ErrorIs(t, env.otp.ResetPassword(ctx, p.ID, "another1"), domain.ErrResetNotAuthorized)
	assert.Len(t, env.events.ofType("password_reset"), 1)
}

func TestResetPassword_RejectsOverlongPasswordBeforeUsingGrant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.signup(t, domain.KindPatient, "p@example.com", "secret1")

	ch, err := env.otp.RequestOTP(ctx, p.ID)
	require.NoError(t, err)
	require.NoError(t, env.otp.VerifyOTP(ctx, p.ID, ch.Code))

	// 40 runes, 80 bytes.
	assert.ErrorIs(t, env.otp.ResetPassword(ctx, p.ID, strings.Repeat("é", 40)), domain.ErrInvalidField)
	assert.NoError(t, env.otp.ResetPassword(ctx, p.ID, "newsecret"))
}

func TestResetPassword_GrantExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.signup(t, domain.KindPatient, "p@example.com", "secret1")

	ch, err := env.otp.RequestOTP(ctx, p.ID)
	require.NoError(t, err)
	require.NoError(t, env.otp.VerifyOTP(ctx, p.ID, ch.Code))

	env.redis.FastForward(11 * time.Minute)
	assert.ErrorIs(t, env.otp.ResetPassword(ctx, p.ID, "newsecret"), domain.ErrResetNotAuthorized)
}
