package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carelink/healthcare-identity/internal/domain"
)

const otpRetryBackoff = 2 * time.Millisecond

// OTPRepository stores at most one challenge per identity plus the reset grant
// written when a challenge is verified.
type OTPRepository interface {
	// Save replaces any existing challenge for the identity. The record is
	// retained for the given duration so that reuse reports AlreadyConsumed.
	Save(ctx context.Context, challenge *domain.OTPChallenge, retention time.Duration) error
	// Update loads the challenge, applies fn and writes the consumed flag and
	// attempt counter back atomically when fn changed them. fn's error is
	// returned after the write.
	Update(ctx context.Context, identityID string, fn func(*domain.OTPChallenge) error) (*domain.OTPChallenge, error)
	GrantReset(ctx context.Context, identityID string, ttl time.Duration) error
	// TakeReset consumes the reset grant, reporting whether one existed.
	TakeReset(ctx context.Context, identityID string) (bool, error)
}

type otpRepository struct {
	client *redis.Client
}

// NewOTPRepository returns a Redis-backed implementation.
func NewOTPRepository(client *redis.Client) OTPRepository {
	return &otpRepository{client: client}
}

func otpKey(identityID string) string {
	return "otp:challenge:" + identityID
}

func resetKey(identityID string) string {
	return "otp:reset:" + identityID
}

func (r *otpRepository) Save(ctx context.Context, challenge *domain.OTPChallenge, retention time.Duration) error {
	key := otpKey(challenge.IdentityID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, map[string]interface{}{
			"code":       challenge.Code,
			"issued_at":  challenge.IssuedAt.UnixNano(),
			"expires_at": challenge.ExpiresAt.UnixNano(),
			"consumed":   boolToInt(challenge.Consumed),
			"attempts":   challenge.Attempts,
		})
		pipe.Expire(ctx, key, retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store otp challenge: %w", err)
	}
	return nil
}

func (r *otpRepository) Update(ctx context.Context, identityID string, fn func(*domain.OTPChallenge) error) (*domain.OTPChallenge, error) {
	key := otpKey(identityID)
	var result *domain.OTPChallenge

	txf := func(tx *redis.Tx) error {
		vals, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(vals) == 0 {
			return domain.ErrOTPNotFound
		}
		challenge, err := decodeChallenge(identityID, vals)
		if err != nil {
			return err
		}

		consumed, attempts := challenge.Consumed, challenge.Attempts
		fnErr := fn(challenge)
		result = challenge
		if challenge.Consumed == consumed && challenge.Attempts == attempts {
			return fnErr
		}
		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "consumed", boolToInt(challenge.Consumed), "attempts", challenge.Attempts)
			return nil
		}); err != nil {
			return err
		}
		return fnErr
	}

	// A lost race means another caller changed the challenge; re-read and
	// re-apply fn until one of them sees a stable record.
	for {
		err := r.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return result, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("update otp challenge: %w", ctx.Err())
		case <-time.After(otpRetryBackoff):
		}
	}
}

func (r *otpRepository) GrantReset(ctx context.Context, identityID string, ttl time.Duration) error {
	return r.client.Set(ctx, resetKey(identityID), 1, ttl).Err()
}

func (r *otpRepository) TakeReset(ctx context.Context, identityID string) (bool, error) {
	err := r.client.GetDel(ctx, resetKey(identityID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func decodeChallenge(identityID string, vals map[string]string) (*domain.OTPChallenge, error) {
	issued, err := strconv.ParseInt(vals["issued_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode otp issued_at: %w", err)
	}
	expires, err := strconv.ParseInt(vals["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode otp expires_at: %w", err)
	}
	attempts, err := strconv.Atoi(vals["attempts"])
	if err != nil {
		return nil, fmt.Errorf("decode otp attempts: %w", err)
	}
	return &domain.OTPChallenge{
		IdentityID: identityID,
		Code:       vals["code"],
		IssuedAt:   time.Unix(0, issued).UTC(),
		ExpiresAt:  time.Unix(0, expires).UTC(),
		Consumed:   vals["consumed"] == "1",
		Attempts:   attempts,
	}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
