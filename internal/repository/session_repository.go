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

// SessionRepository stores sessions server-side, keyed by opaque token.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, token string) (*domain.Session, error)
	Delete(ctx context.Context, token string) error
	DeleteAllForIdentity(ctx context.Context, identityID string) error
}

type sessionRepository struct {
	client *redis.Client
}

// NewSessionRepository returns a Redis-backed implementation.
func NewSessionRepository(client *redis.Client) SessionRepository {
	return &sessionRepository{client: client}
}

func sessionKey(token string) string {
	return "session:" + token
}

func identitySessionsKey(identityID string) string {
	return "identity_sessions:" + identityID
}

func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	ttl := session.ExpiresAt.Sub(session.IssuedAt)
	if ttl <= 0 {
		return errors.New("session expires before it is issued")
	}

	key := sessionKey(session.Token)
	setKey := identitySessionsKey(session.IdentityID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]interface{}{
			"identity_id": session.IdentityID,
			"kind":        string(session.Kind),
			"issued_at":   session.IssuedAt.UnixNano(),
			"expires_at":  session.ExpiresAt.UnixNano(),
		})
		pipe.Expire(ctx, key, ttl)
		pipe.SAdd(ctx, setKey, session.Token)
		pipe.Expire(ctx, setKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (r *sessionRepository) Get(ctx context.Context, token string) (*domain.Session, error) {
	vals, err := r.client.HGetAll(ctx, sessionKey(token)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, domain.ErrSessionNotFound
	}

	issued, err := strconv.ParseInt(vals["issued_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode session issued_at: %w", err)
	}
	expires, err := strconv.ParseInt(vals["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode session expires_at: %w", err)
	}
	return &domain.Session{
		Token:      token,
		IdentityID: vals["identity_id"],
		Kind:       domain.IdentityKind(vals["kind"]),
		IssuedAt:   time.Unix(0, issued).UTC(),
		ExpiresAt:  time.Unix(0, expires).UTC(),
	}, nil
}

func (r *sessionRepository) Delete(ctx context.Context, token string) error {
	key := sessionKey(token)
	identityID, err := r.client.HGet(ctx, key, "identity_id").Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SRem(ctx, identitySessionsKey(identityID), token)
		return nil
	})
	return err
}

func (r *sessionRepository) DeleteAllForIdentity(ctx context.Context, identityID string) error {
	setKey := identitySessionsKey(identityID)
	tokens, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, sessionKey(token))
	}
	keys = append(keys, setKey)
	return r.client.Del(ctx, keys...).Err()
}
