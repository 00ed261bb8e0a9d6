package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/minhhle/authgate/internal/core/domain"
)

const sessionKeyPrefix = "session:"

// RedisSessionRepository implements domain.SessionRepository on a shared
// Redis instance. Records are JSON blobs with a server-side TTL matching
// the session expiry; the TTL is a backstop, not the source of truth,
// since the Logic layer re-checks ExpiresAt on every read.
type RedisSessionRepository struct {
	rdb *redis.Client
}

// NewRedisSessionRepository creates a new RedisSessionRepository.
func NewRedisSessionRepository(rdb *redis.Client) *RedisSessionRepository {
	return &RedisSessionRepository{rdb: rdb}
}

// Create persists a new session record keyed by its token.
func (r *RedisSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired at %v", session.ExpiresAt)
	}

	if err := r.rdb.Set(ctx, sessionKey(session.Token), payload, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Get looks up a session by token. Returns (nil, nil) when absent.
func (r *RedisSessionRepository) Get(ctx context.Context, token string) (*domain.Session, error) {
	data, err := r.rdb.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	session.Token = token

	return &session, nil
}

// Refresh rewrites the record with the new expiry and a matching TTL.
// Last-writer-wins if the owning client races itself; that is acceptable
// because both writers extend, never shorten, the expiry.
func (r *RedisSessionRepository) Refresh(ctx context.Context, token string, expiresAt time.Time) error {
	session, err := r.Get(ctx, token)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}

	session.ExpiresAt = expiresAt
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := r.rdb.Set(ctx, sessionKey(token), payload, time.Until(expiresAt)).Err(); err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	return nil
}

// Delete removes the session if present. DEL on a missing key is a no-op
// in Redis, which gives the idempotence the contract asks for.
func (r *RedisSessionRepository) Delete(ctx context.Context, token string) error {
	if err := r.rdb.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func sessionKey(token string) string {
	return sessionKeyPrefix + token
}
